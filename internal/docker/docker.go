// Package docker drives the docker CLI for building and running the tracker
// container.
package docker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"

	"github.com/fakeyudi/gazetrace/internal/logging"
)

// ErrUnavailable means the docker CLI could not be invoked.
var ErrUnavailable = errors.New("docker is not available")

// RunSpec describes one tracker container launch.
type RunSpec struct {
	Image         string
	Name          string
	HostNetwork   bool
	HostPort      int
	ContainerPort int
}

// Args returns the docker CLI arguments for the launch.
func (s RunSpec) Args() []string {
	args := []string{"run", "--rm", "--name", s.Name}
	if s.HostNetwork {
		args = append(args, "--network=host")
	} else {
		args = append(args, "-p", strconv.Itoa(s.HostPort)+":"+strconv.Itoa(s.ContainerPort))
	}
	return append(args, s.Image)
}

// CLI wraps the docker command-line client.
type CLI struct {
	// Binary is the docker executable; "docker" when empty.
	Binary string
	// Runner, if nil, runs Binary as a real subprocess.
	Runner Runner
	// Start, if nil, is StartProcess.
	Start  func(ctx context.Context, name string, args ...string) (Process, error)
	Logger *slog.Logger
}

func (c *CLI) binary() string {
	if c.Binary == "" {
		return "docker"
	}
	return c.Binary
}

func (c *CLI) runner() Runner {
	if c.Runner != nil {
		return c.Runner
	}
	return execRunner(c.binary())
}

func (c *CLI) log() *slog.Logger {
	return logging.OrDiscard(c.Logger).With("component", "docker")
}

// Version probes the CLI and returns its version line.
func (c *CLI) Version(ctx context.Context) (string, error) {
	out, err := capture(ctx, c.runner(), "--version")
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) || ctx.Err() != nil {
			return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return "", fmt.Errorf("%w: %v: %s", ErrUnavailable, err, out)
	}
	return out, nil
}

// ImageExists reports whether tag is present locally. Any inspect failure
// counts as absent.
func (c *CLI) ImageExists(ctx context.Context, tag string) (bool, error) {
	if err := c.runner()(ctx, nil, "image", "inspect", tag); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, nil
	}
	return true, nil
}

// Build builds tag from the context in dir, logging output line by line.
func (c *CLI) Build(ctx context.Context, tag, dir string) error {
	w := newLineLogger(c.log(), "docker build")
	err := c.runner()(ctx, w, "build", "-t", tag, dir)
	w.Flush()
	if err != nil {
		return fmt.Errorf("building image %s: %w", tag, err)
	}
	return nil
}

// Remove force-removes the named container.
func (c *CLI) Remove(ctx context.Context, name string) error {
	out, err := capture(ctx, c.runner(), "rm", "-f", name)
	if err != nil {
		return fmt.Errorf("removing container %s: %w: %s", name, err, out)
	}
	return nil
}

// Stop asks the daemon to stop the named container.
func (c *CLI) Stop(ctx context.Context, name string) error {
	out, err := capture(ctx, c.runner(), "stop", name)
	if err != nil {
		return fmt.Errorf("stopping container %s: %w: %s", name, err, out)
	}
	return nil
}

// Run launches the container described by spec.
func (c *CLI) Run(ctx context.Context, spec RunSpec) (Process, error) {
	start := c.Start
	if start == nil {
		start = StartProcess
	}
	c.log().Info("launching tracker container", "image", spec.Image, "name", spec.Name,
		"host_network", spec.HostNetwork, "host_port", spec.HostPort)
	return start(ctx, c.binary(), spec.Args()...)
}
