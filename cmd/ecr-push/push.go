package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/automoviles/aws-vsts-tools/internal/engine"
	"github.com/automoviles/aws-vsts-tools/internal/task"
	"github.com/automoviles/aws-vsts-tools/pkg/metrics"
)

const envPrefix = "ECR_PUSH"

func newPushCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Tag the source image and push it to the target registry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			logger, err := newLogger(debug)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			rc, err := loadRuntimeConfig(ctx, cmd.Flags(), v)
			if err != nil {
				logger.Error(err, "resolve configuration failed")
				return err
			}

			eng := engine.New(rc.EngineBin, rc.DryRun, logger)
			if !rc.DryRun {
				if err := eng.Version(ctx); err != nil {
					logger.Error(err, "container engine is not usable")
					return err
				}
			}

			tk, err := task.New(rc.Target, eng, rc.TaskOpts, logger, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			_, runErr := tk.Run(ctx)

			if rc.MetricsFile != "" {
				if mErr := metrics.WriteFile(rc.MetricsFile); mErr != nil {
					logger.Error(mErr, "failed to write metrics file", "path", rc.MetricsFile)
				}
			}
			return runErr
		},
	}

	registerPushFlags(cmd.Flags(), v)

	return cmd
}

func registerPushFlags(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("config", "", "path to an optional YAML config file")
	flags.String("target-kind", "", "target registry kind: ecr or docker")
	flags.String("account-id", "", "AWS account ID owning the ECR registry")
	flags.String("region", "", "AWS region of the ECR registry")
	flags.String("access-key-id", "", "AWS access key ID (default credential chain when empty)")
	flags.String("secret-access-key", "", "AWS secret access key")
	flags.String("session-token", "", "AWS session token")
	flags.String("role-arn", "", "IAM role to assume before calling ECR")
	flags.String("registry", "", "registry host for target-kind docker")
	flags.String("registry-username", "", "username for target-kind docker")
	flags.String("registry-password", "", "password for target-kind docker")
	flags.Bool("insecure", false, "allow plain HTTP for target-kind docker")
	flags.String("source-image", "", "name of the locally built image, optionally with tag")
	flags.String("source-tag", "", "tag of the locally built image")
	flags.String("source-image-id", "", "engine image ID of the locally built image")
	flags.String("repository", "", "target repository name")
	flags.StringSlice("push-tag", nil, "tag to push, repeatable")
	flags.Bool("auto-create", true, "create the repository when it does not exist")
	flags.String("lifecycle-policy-file", "", "lifecycle policy JSON applied to created repositories")
	flags.Bool("force-naming", false, "rewrite the repository name to satisfy docker naming conventions")
	flags.Bool("remove-after-push", false, "remove the pushed tags from the local engine")
	flags.String("output-variable", "", "pipeline variable receiving the pushed image reference")
	flags.String("engine", engine.DefaultBinary, "container engine binary")
	flags.Bool("dry-run", false, "log what would be done without pushing")
	flags.String("metrics-file", "", "write Prometheus metrics to this file at the end of the run")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		panic(err)
	}
}
