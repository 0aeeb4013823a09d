// Package task implements the push pipeline: authenticate against the
// target registry, make sure the repository exists, tag the locally built
// image and push it, then surface the pushed reference to the pipeline.
package task

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/google/go-containerregistry/pkg/name"

	"github.com/automoviles/aws-vsts-tools/internal/registry"
	"github.com/automoviles/aws-vsts-tools/pkg/metrics"
	"github.com/automoviles/aws-vsts-tools/pkg/util"
)

// ContainerEngine is the subset of the engine CLI the task drives.
type ContainerEngine interface {
	Login(ctx context.Context, registryHost, username, password string) error
	Tag(ctx context.Context, source, target string) error
	Push(ctx context.Context, ref string) error
	Remove(ctx context.Context, ref string) error
	Logout(ctx context.Context, registryHost string) error
}

// Options carries the task inputs after config resolution.
type Options struct {
	// SourceImageName/SourceImageTag identify the local image by name. When
	// SourceImageID is set it takes precedence and the image is tagged by ID.
	SourceImageName string
	SourceImageTag  string
	SourceImageID   string

	Repository string
	PushTags   []string

	// ForceNaming rewrites the repository name to satisfy docker naming
	// conventions instead of failing on invalid input.
	ForceNaming     bool
	RemoveAfterPush bool
	OutputVariable  string
	DryRun          bool
}

// Result reports what the task pushed.
type Result struct {
	PushedRefs []string
	// OutputRef is the reference surfaced through the output variable, the
	// last pushed tag.
	OutputRef string
	// Digest is the remote manifest digest when post-push verification
	// succeeded, empty otherwise.
	Digest string
}

type Task struct {
	target registry.Target
	engine ContainerEngine
	opts   Options
	logger logr.Logger
	out    io.Writer
}

func New(target registry.Target, eng ContainerEngine, opts Options, logger logr.Logger, out io.Writer) (*Task, error) {
	if target == nil {
		return nil, fmt.Errorf("no registry target")
	}
	if eng == nil {
		return nil, fmt.Errorf("no container engine")
	}
	if strings.TrimSpace(opts.SourceImageName) == "" && strings.TrimSpace(opts.SourceImageID) == "" {
		return nil, fmt.Errorf("either a source image name or a source image ID is required")
	}
	if strings.TrimSpace(opts.Repository) == "" {
		return nil, fmt.Errorf("a target repository name is required")
	}
	if out == nil {
		out = os.Stdout
	}
	return &Task{
		target: target,
		engine: eng,
		opts:   opts,
		logger: logger.WithName("task"),
		out:    out,
	}, nil
}

// Run executes the pipeline. It stops at the first failing push; cleanup
// steps (rmi, logout) are best effort.
func (t *Task) Run(ctx context.Context) (*Result, error) {
	source, sourceTag := t.resolveSource()
	repo, err := t.resolveRepository()
	if err != nil {
		return nil, err
	}

	log := t.logger.WithValues("source", source, "repository", repo, "registry", t.target.Registry())
	ctx = logr.NewContext(ctx, log)

	if err := t.target.EnsureRepository(ctx, repo); err != nil {
		return nil, fmt.Errorf("ensure repository %s: %w", repo, err)
	}

	username, password, err := t.target.BasicAuth(ctx)
	if err != nil {
		metrics.RecordAuthError(t.target.Registry())
		return nil, fmt.Errorf("registry auth: %w", err)
	}
	if err := t.engine.Login(ctx, t.target.Registry(), username, password); err != nil {
		metrics.RecordAuthError(t.target.Registry())
		return nil, fmt.Errorf("engine login: %w", err)
	}
	defer func() {
		if logoutErr := t.engine.Logout(ctx, t.target.Registry()); logoutErr != nil {
			log.V(1).Info("engine logout failed", "error", logoutErr.Error())
		}
	}()

	nameOpts := []name.Option{name.WeakValidation}
	if t.target.Insecure() {
		nameOpts = append(nameOpts, name.Insecure)
	}

	res := &Result{}
	for _, tag := range t.pushTags(sourceTag) {
		ref := fmt.Sprintf("%s/%s:%s", t.target.Registry(), repo, tag)
		tagRef, err := name.NewTag(ref, nameOpts...)
		if err != nil {
			return res, fmt.Errorf("parse target %s: %w", ref, err)
		}

		if err := t.engine.Tag(ctx, source, ref); err != nil {
			return res, fmt.Errorf("tag %s: %w", ref, err)
		}

		if t.opts.DryRun {
			log.Info("dry run: would push image to target", "target", ref, "dryRun", true)
		} else {
			log.Info("pushing image to target", "target", ref)
		}
		if err := t.engine.Push(ctx, ref); err != nil {
			metrics.RecordPushError(ref)
			return res, fmt.Errorf("push %s: %w", ref, err)
		}
		if !t.opts.DryRun {
			metrics.RecordPushSuccess(ref)
			if digest, verifyErr := verifyPushedDigest(ctx, tagRef, username, password, t.target.Insecure()); verifyErr != nil {
				log.V(1).Info("unable to confirm target digest after push", "error", verifyErr.Error())
			} else {
				log.Info("finished pushing image", "target", ref, "digest", digest)
				res.Digest = digest
			}
		}

		res.PushedRefs = append(res.PushedRefs, ref)
		res.OutputRef = ref
	}

	if t.opts.OutputVariable != "" {
		if t.opts.DryRun {
			log.V(1).Info("dry run: skipping output variable", "variable", t.opts.OutputVariable, "result", "skipped", "dryRun", true)
		} else if res.OutputRef != "" {
			SetVariable(t.out, t.opts.OutputVariable, res.OutputRef)
			log.Info("set output variable", "variable", t.opts.OutputVariable, "value", res.OutputRef)
		}
	}

	if t.opts.RemoveAfterPush {
		for _, ref := range res.PushedRefs {
			if rmErr := t.engine.Remove(ctx, ref); rmErr != nil {
				log.V(1).Info("failed to remove local tag", "target", ref, "error", rmErr.Error())
			}
		}
	}

	return res, nil
}

// resolveSource returns the local reference handed to the engine and the
// tag implied by the source, if any.
func (t *Task) resolveSource() (source, sourceTag string) {
	if id := strings.TrimSpace(t.opts.SourceImageID); id != "" {
		if !util.LooksLikeImageID(id) {
			t.logger.Info("source image ID does not look like an engine image ID", "imageID", id)
		}
		return id, ""
	}

	imgName, embedded := util.SplitNameTag(t.opts.SourceImageName)
	tag := strings.TrimSpace(t.opts.SourceImageTag)
	if tag == "" {
		tag = embedded
	}
	if tag == "" {
		tag = "latest"
	}
	return imgName + ":" + tag, tag
}

func (t *Task) resolveRepository() (string, error) {
	repo := strings.TrimSpace(t.opts.Repository)
	if t.opts.ForceNaming {
		normalized := util.NormalizeRepoName(repo)
		if normalized == "" {
			return "", fmt.Errorf("repository name %q is empty after normalization", repo)
		}
		if normalized != repo {
			t.logger.Info("rewrote repository name to satisfy docker naming conventions", "from", repo, "to", normalized)
		}
		return normalized, nil
	}
	if repo != util.NormalizeRepoName(repo) {
		return "", fmt.Errorf("repository name %q violates docker naming conventions", repo)
	}
	return repo, nil
}

func (t *Task) pushTags(sourceTag string) []string {
	tags := make([]string, 0, len(t.opts.PushTags))
	seen := make(map[string]struct{}, len(t.opts.PushTags))
	for _, tag := range t.opts.PushTags {
		if tag = strings.TrimSpace(tag); tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		tags = append(tags, tag)
		seen[tag] = struct{}{}
	}
	if len(tags) > 0 {
		return tags
	}
	if sourceTag != "" {
		return []string{sourceTag}
	}
	return []string{"latest"}
}
