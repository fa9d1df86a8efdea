package container

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/api/types/container"
	"golang.org/x/sync/errgroup"
)

// RunConfig holds the configuration for running a container.
type RunConfig struct {
	Name    string
	Image   string
	WorkDir string
	Env     []string

	// Command replaces the image entrypoint when set.
	Command []string

	Mounts      []VolumeMount
	NetworkMode string
	ExtraHosts  []string

	// ExposedPorts are declared on the container whether or not they are published.
	ExposedPorts []int

	// PortMappings are published on BindAddress. Leave empty in host network mode.
	PortMappings []PortMapping
	BindAddress  string

	GPU    bool
	Labels map[string]string
}

// PortMapping represents a port mapping.
type PortMapping struct {
	Host      int
	Container int
}

// Summary is one row of a prefix listing.
type Summary struct {
	ID     string
	Name   string
	State  string
	Status string
}

// Run creates and starts a new container.
func (c *Client) Run(ctx context.Context, cfg RunConfig) (string, error) {
	containerConfig := buildContainerConfig(cfg)
	hostConfig := buildHostConfig(cfg)

	resp, err := c.cli.ContainerCreate(
		ctx,
		containerConfig,
		hostConfig,
		nil,
		nil,
		cfg.Name,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create container: %w", err)
	}

	if err := c.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("failed to start container: %w", err)
	}

	return resp.ID, nil
}

// Start starts a created or exited container.
func (c *Client) Start(ctx context.Context, nameOrID string) error {
	if err := c.cli.ContainerStart(ctx, nameOrID, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}
	return nil
}

// Stop stops a running container without removing it.
func (c *Client) Stop(ctx context.Context, nameOrID string) error {
	if err := c.cli.ContainerStop(ctx, nameOrID, container.StopOptions{}); err != nil {
		return fmt.Errorf("failed to stop container: %w", err)
	}
	return nil
}

// Remove removes a container. A missing container is not an error.
func (c *Client) Remove(ctx context.Context, nameOrID string, force bool) error {
	options := container.RemoveOptions{
		Force:         force,
		RemoveVolumes: false,
	}

	err := c.cli.ContainerRemove(ctx, nameOrID, options)
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("failed to remove container: %w", err)
	}

	return nil
}

// List returns every container, running or not, whose name starts with prefix.
func (c *Client) List(ctx context.Context, prefix string) ([]Summary, error) {
	containers, err := c.cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: mustNewFilter(map[string][]string{"name": {prefix}}),
	})
	if err != nil {
		return nil, err
	}

	var result []Summary
	for _, ctr := range containers {
		for _, name := range ctr.Names {
			name = trimSlash(name)
			// The engine's name filter is a substring match.
			if matchesPrefix(name, prefix) {
				result = append(result, Summary{ID: ctr.ID, Name: name, State: ctr.State, Status: ctr.Status})
				break
			}
		}
	}

	return result, nil
}

// StopAll stops every container whose name starts with prefix.
// Per-container failures are ignored so one stuck container cannot block the rest.
func (c *Client) StopAll(ctx context.Context, prefix string) error {
	summaries, err := c.List(ctx, prefix)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range summaries {
		if s.State != "running" {
			continue
		}
		g.Go(func() error {
			_ = c.Stop(gctx, s.ID)
			return nil
		})
	}
	return g.Wait()
}

// RemoveAll force-removes every container whose name starts with prefix.
func (c *Client) RemoveAll(ctx context.Context, prefix string) error {
	summaries, err := c.List(ctx, prefix)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range summaries {
		g.Go(func() error {
			return c.Remove(gctx, s.ID, true)
		})
	}
	return g.Wait()
}

// PublishedPorts returns every port number, host or container side, that a
// running container currently declares in its port list.
func (c *Client) PublishedPorts(ctx context.Context) (map[int]struct{}, error) {
	containers, err := c.cli.ContainerList(ctx, container.ListOptions{})
	if err != nil {
		return nil, err
	}

	ports := make(map[int]struct{})
	for _, ctr := range containers {
		for _, p := range ctr.Ports {
			if p.PublicPort != 0 {
				ports[int(p.PublicPort)] = struct{}{}
			}
			if p.PrivatePort != 0 {
				ports[int(p.PrivatePort)] = struct{}{}
			}
		}
	}

	return ports, nil
}

// Uptime returns the uptime of a container as a human-readable string.
func (c *Client) Uptime(ctx context.Context, name string) (string, error) {
	inspect, err := c.cli.ContainerInspect(ctx, name)
	if err != nil {
		return "", fmt.Errorf("failed to inspect container: %w", err)
	}

	if !inspect.State.Running {
		return "", fmt.Errorf("container is not running")
	}

	startedAt, err := parseDockerTimestamp(inspect.State.StartedAt)
	if err != nil {
		return "", fmt.Errorf("failed to parse start time: %w", err)
	}

	return formatUptime(time.Since(startedAt)), nil
}

// formatUptime formats a duration into a human-readable uptime string.
func formatUptime(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
