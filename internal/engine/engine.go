// Package engine drives a container engine CLI (docker, podman, nerdctl)
// for the image operations the registry API cannot do: tagging local images
// and pushing them.
package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/go-logr/logr"
)

// DefaultBinary is used when no engine binary is configured.
const DefaultBinary = "docker"

var execCommand = exec.CommandContext

type Engine struct {
	bin    string
	dryRun bool
	logger logr.Logger
}

func New(bin string, dryRun bool, logger logr.Logger) *Engine {
	if strings.TrimSpace(bin) == "" {
		bin = DefaultBinary
	}
	return &Engine{bin: bin, dryRun: dryRun, logger: logger.WithName("engine").WithValues("binary", bin)}
}

func (e *Engine) Binary() string { return e.bin }

// Version probes the engine binary so a missing or broken installation
// fails the task before any registry call is made.
func (e *Engine) Version(ctx context.Context) error {
	return e.run(ctx, nil, "version")
}

// Login authenticates the engine against the registry. The password is
// written to stdin so it never appears in the process list.
func (e *Engine) Login(ctx context.Context, registryHost, username, password string) error {
	return e.run(ctx, strings.NewReader(password), "login", "--username", username, "--password-stdin", registryHost)
}

func (e *Engine) Tag(ctx context.Context, source, target string) error {
	return e.run(ctx, nil, "tag", source, target)
}

func (e *Engine) Push(ctx context.Context, ref string) error {
	return e.run(ctx, nil, "push", ref)
}

func (e *Engine) Remove(ctx context.Context, ref string) error {
	return e.run(ctx, nil, "rmi", ref)
}

func (e *Engine) Logout(ctx context.Context, registryHost string) error {
	return e.run(ctx, nil, "logout", registryHost)
}

func (e *Engine) run(ctx context.Context, stdin io.Reader, args ...string) error {
	log := e.logger.WithValues("args", strings.Join(args, " "))
	if e.dryRun {
		log.Info("dry run: skipping engine invocation", "result", "skipped", "dryRun", true)
		return nil
	}

	cmd := execCommand(ctx, e.bin, args...)
	if stdin != nil {
		cmd.Stdin = stdin
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	log.V(1).Info("running engine command")
	err := cmd.Run()
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			log.V(1).Info(line)
		}
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w: %s", e.bin, args[0], err, tail(out.String()))
	}
	return nil
}

// tail returns the last non-empty output line, usually the engine's error message.
func tail(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return "no output"
}
