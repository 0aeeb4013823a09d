package registry

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	ecr "github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/ecr/types"
	sts "github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/go-logr/logr"
)

type ECRConfig struct {
	AccountID string
	Region    string

	// Explicit key pair from the pipeline service connection. When empty the
	// default AWS credential chain is used.
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	// RoleARN, when set, is assumed on top of the base credentials.
	RoleARN string

	CreateRepo bool
	// LifecyclePolicy contains optional policy JSON applied when repositories are created.
	LifecyclePolicy string
	// DryRun keeps registry reads but suppresses CreateRepository and
	// PutLifecyclePolicy.
	DryRun bool
}

// ecrAPI is the subset of the ECR client the target needs.
type ecrAPI interface {
	DescribeRepositories(ctx context.Context, in *ecr.DescribeRepositoriesInput, opts ...func(*ecr.Options)) (*ecr.DescribeRepositoriesOutput, error)
	CreateRepository(ctx context.Context, in *ecr.CreateRepositoryInput, opts ...func(*ecr.Options)) (*ecr.CreateRepositoryOutput, error)
	PutLifecyclePolicy(ctx context.Context, in *ecr.PutLifecyclePolicyInput, opts ...func(*ecr.Options)) (*ecr.PutLifecyclePolicyOutput, error)
	GetAuthorizationToken(ctx context.Context, in *ecr.GetAuthorizationTokenInput, opts ...func(*ecr.Options)) (*ecr.GetAuthorizationTokenOutput, error)
}

type ecrClient struct {
	cfg      ECRConfig
	client   ecrAPI
	registry string
}

func NewECR(ctx context.Context, cfg ECRConfig) (Target, error) {
	opts := []func(*awscfg.LoadOptions) error{awscfg.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}
	awsCfg, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if cfg.RoleARN != "" {
		provider := stscreds.NewAssumeRoleProvider(sts.NewFromConfig(awsCfg), cfg.RoleARN)
		awsCfg.Credentials = aws.NewCredentialsCache(provider)
	}
	c := ecr.NewFromConfig(awsCfg)
	reg := fmt.Sprintf("%s.dkr.ecr.%s.amazonaws.com", cfg.AccountID, cfg.Region)
	return &ecrClient{cfg: cfg, client: c, registry: reg}, nil
}

func (c *ecrClient) Registry() string { return c.registry }
func (c *ecrClient) Insecure() bool   { return false }

func (c *ecrClient) EnsureRepository(ctx context.Context, name string) error {
	log := logr.FromContextOrDiscard(ctx).WithValues("repository", name, "registry", c.registry)

	describeInput := &ecr.DescribeRepositoriesInput{RepositoryNames: []string{name}}
	if c.cfg.AccountID != "" {
		describeInput.RegistryId = aws.String(c.cfg.AccountID)
	}

	if _, err := c.client.DescribeRepositories(ctx, describeInput); err == nil {
		log.V(1).Info("repository already exists")
		return nil
	} else {
		var rnfe *types.RepositoryNotFoundException
		if !errors.As(err, &rnfe) && !strings.Contains(err.Error(), "RepositoryNotFound") {
			log.Error(err, "failed to describe repository")
			return err
		}
		if !c.cfg.CreateRepo {
			log.Error(err, "repository is missing and auto-create is disabled")
			return fmt.Errorf("repository %s not found in %s: %w", name, c.registry, err)
		}
	}

	if c.cfg.DryRun {
		log.Info("dry run: would create repository", "result", "skipped", "dryRun", true)
		return nil
	}

	log.Info("creating repository")
	createInput := &ecr.CreateRepositoryInput{RepositoryName: &name}
	if c.cfg.AccountID != "" {
		createInput.RegistryId = aws.String(c.cfg.AccountID)
	}
	if _, createErr := c.client.CreateRepository(ctx, createInput); createErr != nil {
		// A parallel job may have created the repository first.
		var raee *types.RepositoryAlreadyExistsException
		if errors.As(createErr, &raee) {
			log.V(1).Info("repository was created concurrently")
			return nil
		}
		log.Error(createErr, "failed to create repository")
		return createErr
	}
	log.Info("repository created")

	policy := strings.TrimSpace(c.cfg.LifecyclePolicy)
	if policy != "" {
		putInput := &ecr.PutLifecyclePolicyInput{
			RepositoryName:      aws.String(name),
			LifecyclePolicyText: aws.String(policy),
		}
		if c.cfg.AccountID != "" {
			putInput.RegistryId = aws.String(c.cfg.AccountID)
		}
		if _, putErr := c.client.PutLifecyclePolicy(ctx, putInput); putErr != nil {
			log.Error(putErr, "failed to apply lifecycle policy")
			return putErr
		}
		log.Info("applied lifecycle policy")
	}
	return nil
}

func (c *ecrClient) BasicAuth(ctx context.Context) (username, password string, err error) {
	log := logr.FromContextOrDiscard(ctx).WithValues("registry", c.registry)

	out, err := c.client.GetAuthorizationToken(ctx, &ecr.GetAuthorizationTokenInput{})
	if err != nil {
		log.Error(err, "failed to get authorization token")
		return "", "", err
	}
	if len(out.AuthorizationData) == 0 {
		noDataErr := fmt.Errorf("no ECR auth data")
		log.Error(noDataErr, "received empty authorization data")
		return "", "", noDataErr
	}
	tok := out.AuthorizationData[0].AuthorizationToken
	if tok == nil {
		missingErr := fmt.Errorf("missing authorization token")
		log.Error(missingErr, "authorization data has no token")
		return "", "", missingErr
	}
	dec, err := base64.StdEncoding.DecodeString(*tok)
	if err != nil {
		log.Error(err, "failed to decode authorization token")
		return "", "", err
	}
	parts := strings.SplitN(string(dec), ":", 2)
	if len(parts) != 2 {
		unexpectedErr := fmt.Errorf("unexpected token")
		log.Error(unexpectedErr, "authorization token in unexpected format")
		return "", "", unexpectedErr
	}
	return parts[0], parts[1], nil
}
