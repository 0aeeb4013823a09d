package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/automoviles/aws-vsts-tools/internal/config"
	"github.com/automoviles/aws-vsts-tools/internal/engine"
	"github.com/automoviles/aws-vsts-tools/internal/registry"
	"github.com/automoviles/aws-vsts-tools/internal/task"
)

// runtimeConfig holds everything the push command needs after resolving
// flags, environment variables and the optional config file.
type runtimeConfig struct {
	Target      registry.Target
	TaskOpts    task.Options
	EngineBin   string
	DryRun      bool
	MetricsFile string
}

func envKey(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

func envIsSet(key string) bool {
	_, ok := os.LookupEnv(envKey(key))
	return ok
}

// loadRuntimeConfig resolves task inputs with flag > env > config file
// precedence, then builds the registry target.
func loadRuntimeConfig(ctx context.Context, flags *pflag.FlagSet, v *viper.Viper) (runtimeConfig, error) {
	cfgPath := v.GetString("config")
	if cfgPath == "" {
		cfgPath = config.FilePath
	}
	fileCfg, _, err := config.Load(cfgPath)
	if err != nil {
		return runtimeConfig{}, fmt.Errorf("load config file: %w", err)
	}

	// v covers changed flags and ECR_PUSH_* env vars, the file fills the rest.
	str := func(key, fileVal string) string {
		if s := strings.TrimSpace(v.GetString(key)); s != "" {
			return s
		}
		return fileVal
	}
	boolVal := func(key string, fileVal *bool, def bool) bool {
		if flags.Changed(key) || envIsSet(key) {
			return v.GetBool(key)
		}
		if fileVal != nil {
			return *fileVal
		}
		return def
	}

	targetKind := strings.ToLower(str("target-kind", fileCfg.TargetKind))
	if targetKind == "" {
		targetKind = "ecr"
	}

	dryRun := v.GetBool("dry-run") || fileCfg.DryRun

	var t registry.Target
	switch targetKind {
	case "ecr":
		eCfg := registry.ECRConfig{
			AccountID:       str("account-id", fileCfg.ECR.AccountID),
			Region:          str("region", fileCfg.ECR.Region),
			AccessKeyID:     v.GetString("access-key-id"),
			SecretAccessKey: v.GetString("secret-access-key"),
			SessionToken:    v.GetString("session-token"),
			RoleARN:         str("role-arn", fileCfg.ECR.RoleARN),
			CreateRepo:      boolVal("auto-create", fileCfg.ECR.CreateRepo, true),
			DryRun:          dryRun,
		}
		if eCfg.AccountID == "" || eCfg.Region == "" {
			return runtimeConfig{}, fmt.Errorf("for target-kind ecr both an account ID and a region are required")
		}
		if policyPath := str("lifecycle-policy-file", fileCfg.ECR.LifecyclePolicy); policyPath != "" {
			policy, readErr := os.ReadFile(policyPath)
			if readErr != nil {
				return runtimeConfig{}, fmt.Errorf("read lifecycle policy: %w", readErr)
			}
			eCfg.LifecyclePolicy = string(policy)
		}
		t, err = registry.NewECR(ctx, eCfg)

	case "docker":
		dCfg := registry.DockerConfig{
			Registry: str("registry", fileCfg.Docker.Registry),
			Username: v.GetString("registry-username"),
			Password: v.GetString("registry-password"),
			Insecure: boolVal("insecure", nil, fileCfg.Docker.Insecure),
		}
		if dCfg.Registry == "" {
			return runtimeConfig{}, fmt.Errorf("for target-kind docker a registry host is required")
		}
		t, err = registry.NewDocker(dCfg)

	default:
		return runtimeConfig{}, fmt.Errorf("unknown target-kind %s", targetKind)
	}
	if err != nil {
		return runtimeConfig{}, fmt.Errorf("init registry target failed: %w", err)
	}

	pushTags := v.GetStringSlice("push-tag")
	if len(pushTags) == 0 {
		pushTags = fileCfg.PushTags
	}

	engineBin := fileCfg.Engine
	if flags.Changed("engine") || envIsSet("engine") || engineBin == "" {
		engineBin = v.GetString("engine")
	}
	if engineBin == "" {
		engineBin = engine.DefaultBinary
	}

	opts := task.Options{
		SourceImageName: str("source-image", fileCfg.Source.ImageName),
		SourceImageTag:  str("source-tag", fileCfg.Source.ImageTag),
		SourceImageID:   str("source-image-id", fileCfg.Source.ImageID),
		Repository:      str("repository", fileCfg.Repository),
		PushTags:        pushTags,
		ForceNaming:     boolVal("force-naming", fileCfg.ForceNaming, false),
		RemoveAfterPush: v.GetBool("remove-after-push") || fileCfg.RemoveAfterPush,
		OutputVariable:  str("output-variable", fileCfg.OutputVariable),
		DryRun:          dryRun,
	}

	return runtimeConfig{
		Target:      t,
		TaskOpts:    opts,
		EngineBin:   engineBin,
		DryRun:      dryRun,
		MetricsFile: str("metrics-file", fileCfg.MetricsFile),
	}, nil
}
