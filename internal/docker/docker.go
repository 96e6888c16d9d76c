// Package docker wraps the docker CLI for building and pushing images.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/shipit-dev/shipit/pkg/logging"
	"go.uber.org/zap"
)

// Builder provides the build-and-push capability for one service directory
type Builder interface {
	// Preflight verifies the docker binary is present and the daemon is
	// reachable
	Preflight(ctx context.Context) error
	// CheckContext verifies dir is a usable build context
	CheckContext(dir string) error
	// Build builds dir into imageRef
	Build(ctx context.Context, dir, imageRef string) error
	// Push publishes imageRef to its registry
	Push(ctx context.Context, imageRef string) error
}

// ShellBuilder implements Builder by shelling out to the docker command
type ShellBuilder struct{}

// NewShellBuilder creates a builder that uses the docker CLI
func NewShellBuilder() *ShellBuilder {
	return &ShellBuilder{}
}

// Preflight checks for the docker binary and a reachable daemon
func (b *ShellBuilder) Preflight(ctx context.Context) error {
	if _, err := exec.LookPath("docker"); err != nil {
		return fmt.Errorf("docker binary not found in PATH: %w", err)
	}

	cmd := exec.CommandContext(ctx, "docker", "info", "--format", "{{.ServerVersion}}")
	if err := b.runCommand(cmd); err != nil {
		return fmt.Errorf("docker daemon not reachable: %w", err)
	}
	return nil
}

// CheckContext verifies the directory exists and contains a Dockerfile
func (b *ShellBuilder) CheckContext(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("directory not found: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	if _, err := os.Stat(filepath.Join(dir, "Dockerfile")); err != nil {
		return fmt.Errorf("no Dockerfile in %s: %w", dir, err)
	}
	return nil
}

// Build runs docker build with dir as the context
func (b *ShellBuilder) Build(ctx context.Context, dir, imageRef string) error {
	logging.Logger.Info("Building image",
		zap.String("dir", dir),
		zap.String("image", imageRef))

	cmd := exec.CommandContext(ctx, "docker", "build", "-t", imageRef, dir)
	if err := b.runCommand(cmd); err != nil {
		return fmt.Errorf("docker build failed: %w", err)
	}
	return nil
}

// Push publishes the image to its registry
func (b *ShellBuilder) Push(ctx context.Context, imageRef string) error {
	logging.Logger.Info("Pushing image", zap.String("image", imageRef))

	cmd := exec.CommandContext(ctx, "docker", "push", imageRef)
	if err := b.runCommand(cmd); err != nil {
		return fmt.Errorf("docker push failed: %w", err)
	}
	return nil
}

// runCommand executes a command, keeping stderr for error reporting
func (b *ShellBuilder) runCommand(cmd *exec.Cmd) error {
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if len(output) > 0 {
		logging.Logger.Debug("docker output",
			zap.String("command", strings.Join(cmd.Args, " ")),
			zap.String("output", string(output)))
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("%s: %w", msg, err)
		}
		return err
	}
	return nil
}
