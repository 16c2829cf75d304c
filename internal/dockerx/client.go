// Package dockerx wraps local container-engine access: listing and
// inspecting containers through the Docker SDK, and streaming data in and
// out of them through docker CLI subprocesses. The engine and the database
// engines inside the containers are black boxes invoked via their standard
// administrative interfaces.
package dockerx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

// Status is the tri-state runtime condition of a container.
type Status int

const (
	StatusAbsent Status = iota
	StatusStopped
	StatusRunning
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusStopped:
		return "stopped"
	default:
		return "absent"
	}
}

// Client is the engine surface the backup and restore paths consume. The
// real implementation talks to the local daemon; tests substitute a fake.
type Client interface {
	// Running lists the names of all running containers.
	Running(ctx context.Context) ([]string, error)
	// Status reports whether a named container is running, stopped or
	// absent.
	Status(ctx context.Context, name string) (Status, error)
	// Image returns the declared image string of a container.
	Image(ctx context.Context, name string) (string, error)
	// Output runs a command inside a container and streams its stdout to w.
	Output(ctx context.Context, name string, env []string, w io.Writer, args ...string) error
	// Input runs a command inside a container feeding r to its stdin.
	Input(ctx context.Context, name string, env []string, r io.Reader, args ...string) error
	// CopyFrom copies a path out of a container's filesystem to destDir.
	CopyFrom(ctx context.Context, name, src, destDir string) error
	// CopyTo copies a local path into a container's filesystem.
	CopyTo(ctx context.Context, name, src, dest string) error
	// Restart restarts a container.
	Restart(ctx context.Context, name string) error
}

// Engine is the production Client backed by the local Docker daemon.
type Engine struct {
	cli *client.Client
}

// NewEngine connects to the local daemon using the standard environment
// configuration.
func NewEngine() (*Engine, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Engine{cli: cli}, nil
}

func (e *Engine) Running(ctx context.Context) ([]string, error) {
	containers, err := e.cli.ContainerList(ctx, container.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	var names []string
	for _, c := range containers {
		for _, n := range c.Names {
			names = append(names, trimSlash(n))
		}
	}
	return names, nil
}

func (e *Engine) Status(ctx context.Context, name string) (Status, error) {
	info, err := e.cli.ContainerInspect(ctx, name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return StatusAbsent, nil
		}
		return StatusAbsent, fmt.Errorf("failed to inspect container %s: %w", name, err)
	}
	if info.State != nil && info.State.Running {
		return StatusRunning, nil
	}
	return StatusStopped, nil
}

func (e *Engine) Image(ctx context.Context, name string) (string, error) {
	info, err := e.cli.ContainerInspect(ctx, name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to inspect container %s: %w", name, err)
	}
	if info.Config == nil {
		return "", nil
	}
	return info.Config.Image, nil
}

// Output shells out to the docker CLI so command stdout can be streamed
// through a compression filter without buffering whole dumps in memory.
func (e *Engine) Output(ctx context.Context, name string, env []string, w io.Writer, args ...string) error {
	cmdArgs := []string{"exec"}
	for _, kv := range env {
		cmdArgs = append(cmdArgs, "-e", kv)
	}
	cmdArgs = append(cmdArgs, name)
	cmdArgs = append(cmdArgs, args...)

	cmd := exec.CommandContext(ctx, "docker", cmdArgs...)
	var stderr bytes.Buffer
	cmd.Stdout = w
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("docker exec %s failed: %w (stderr: %s)", name, err, stderr.String())
	}
	return nil
}

func (e *Engine) Input(ctx context.Context, name string, env []string, r io.Reader, args ...string) error {
	cmdArgs := []string{"exec", "-i"}
	for _, kv := range env {
		cmdArgs = append(cmdArgs, "-e", kv)
	}
	cmdArgs = append(cmdArgs, name)
	cmdArgs = append(cmdArgs, args...)

	cmd := exec.CommandContext(ctx, "docker", cmdArgs...)
	var stderr bytes.Buffer
	cmd.Stdin = r
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("docker exec -i %s failed: %w (stderr: %s)", name, err, stderr.String())
	}
	return nil
}

func (e *Engine) CopyFrom(ctx context.Context, name, src, destDir string) error {
	cmd := exec.CommandContext(ctx, "docker", "cp", fmt.Sprintf("%s:%s", name, src), destDir)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("docker cp from %s:%s failed: %w (stderr: %s)", name, src, err, stderr.String())
	}
	return nil
}

func (e *Engine) CopyTo(ctx context.Context, name, src, dest string) error {
	cmd := exec.CommandContext(ctx, "docker", "cp", src, fmt.Sprintf("%s:%s", name, dest))
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("docker cp to %s:%s failed: %w (stderr: %s)", name, dest, err, stderr.String())
	}
	return nil
}

func (e *Engine) Restart(ctx context.Context, name string) error {
	if err := e.cli.ContainerRestart(ctx, name, container.StopOptions{}); err != nil {
		return fmt.Errorf("failed to restart container %s: %w", name, err)
	}
	return nil
}

func trimSlash(name string) string {
	if len(name) > 0 && name[0] == '/' {
		return name[1:]
	}
	return name
}
