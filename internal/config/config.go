package config

import (
	"errors"
	"io/fs"
	"os"

	"sigs.k8s.io/yaml"
)

// FilePath is the default config file location inside CI containers.
const FilePath = "/config/ecr-push.yaml"

// sigs.k8s.io/yaml unmarshals through JSON, so the keys live in json tags.
type ECR struct {
	AccountID       string `json:"accountID"`
	Region          string `json:"region"`
	RoleARN         string `json:"roleARN"`
	CreateRepo      *bool  `json:"createRepo"`
	LifecyclePolicy string `json:"lifecyclePolicyFile"`
}

type Docker struct {
	Registry string `json:"registry"`
	Insecure bool   `json:"insecure"`
	// Username/Password should come from pipeline secrets, not the config file.
}

type Source struct {
	ImageName string `json:"imageName"`
	ImageTag  string `json:"imageTag"`
	ImageID   string `json:"imageID"`
}

type Config struct {
	TargetKind      string   `json:"targetKind"` // ecr | docker
	ECR             ECR      `json:"ecr"`
	Docker          Docker   `json:"docker"`
	Source          Source   `json:"source"`
	Repository      string   `json:"repository"`
	PushTags        []string `json:"pushTags"`
	ForceNaming     *bool    `json:"forceDockerNamingConventions"`
	RemoveAfterPush bool     `json:"removeAfterPush"`
	OutputVariable  string   `json:"outputVariable"`
	Engine          string   `json:"engine"`
	DryRun          bool     `json:"dryRun"`
	MetricsFile     string   `json:"metricsFile"`
}

// Load reads the optional config file. A missing or unreadable file is not
// an error, the second return value reports whether a file was loaded.
func Load(path string) (Config, bool, error) {
	var c Config
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, false, nil
		}
		// treat permission-denied on the default mount as non-fatal not-found
		if errors.Is(err, fs.ErrPermission) {
			return c, false, nil
		}
		return c, false, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, false, err
	}
	return c, true, nil
}
