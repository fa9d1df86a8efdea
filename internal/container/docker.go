// Package container handles Docker operations, port allocation, and volume management.
package container

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"
)

// Client wraps the Docker client with our operations.
type Client struct {
	cli *client.Client
}

// Info is the subset of a container's inspect data the sandbox runtime reads back.
type Info struct {
	ID     string
	Name   string
	Status string // created, running, paused, restarting, exited, dead

	// Env is the declared environment in KEY=VALUE form.
	Env []string

	// ExposedPorts is the declared exposed port set, ascending.
	ExposedPorts []int

	IPAddress string
	Gateway   string
}

// NewClient creates a new Docker client wrapper from the environment.
// Extra options are applied after the defaults.
func NewClient(opts ...client.Opt) (*Client, error) {
	opts = append([]client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}, opts...)
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, err
	}
	return &Client{cli: cli}, nil
}

var shared = sync.OnceValues(func() (*Client, error) {
	c, err := NewClient()
	if err != nil {
		return nil, fmt.Errorf("launch docker client failed (is the docker daemon running?): %w", err)
	}
	return c, nil
})

// Shared returns the process-wide Docker client, creating it on first use.
// A construction failure is returned to every caller; it is not retried.
func Shared() (*Client, error) {
	return shared()
}

// ImageExists checks if an image reference exists locally.
func (c *Client) ImageExists(ctx context.Context, ref string) (bool, error) {
	_, _, err := c.cli.ImageInspectWithRaw(ctx, ref)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// BuildImage builds a Docker image. A failing build step is reported by the
// engine inside the progress stream and is returned as an error.
func (c *Client) BuildImage(ctx context.Context, buildContext io.Reader, opts types.ImageBuildOptions) error {
	resp, err := c.cli.ImageBuild(ctx, buildContext, opts)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := jsonmessage.DisplayJSONMessagesStream(resp.Body, io.Discard, 0, false, nil); err != nil {
		return fmt.Errorf("building image %v: %w", opts.Tags, err)
	}
	return nil
}

// Inspect returns the state of the named container.
// The returned error satisfies IsNotFound when no such container exists.
func (c *Client) Inspect(ctx context.Context, name string) (*Info, error) {
	inspect, err := c.cli.ContainerInspect(ctx, name)
	if err != nil {
		return nil, err
	}

	info := &Info{
		ID:   inspect.ID,
		Name: strings.TrimPrefix(inspect.Name, "/"),
	}
	if inspect.State != nil {
		info.Status = inspect.State.Status
	}
	if inspect.Config != nil {
		info.Env = append([]string(nil), inspect.Config.Env...)
		for port := range inspect.Config.ExposedPorts {
			if n, err := strconv.Atoi(port.Port()); err == nil {
				info.ExposedPorts = append(info.ExposedPorts, n)
			}
		}
		sort.Ints(info.ExposedPorts)
	}
	if inspect.NetworkSettings != nil {
		info.IPAddress = inspect.NetworkSettings.IPAddress
		info.Gateway = inspect.NetworkSettings.Gateway
	}

	return info, nil
}

// Logs returns the last tail lines of a container's combined stdout/stderr.
func (c *Client) Logs(ctx context.Context, name string, tail int) (string, error) {
	reader, err := c.cli.ContainerLogs(ctx, name, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       strconv.Itoa(tail),
	})
	if err != nil {
		return "", fmt.Errorf("reading container logs: %w", err)
	}
	defer reader.Close()

	var buf bytes.Buffer
	if _, err := stdcopy.StdCopy(&buf, &buf, reader); err != nil {
		return "", fmt.Errorf("demultiplexing container logs: %w", err)
	}
	return buf.String(), nil
}

// FollowLogs streams a container's multiplexed log output from now on.
// The caller closes the reader; cancelling ctx also ends the stream.
func (c *Client) FollowLogs(ctx context.Context, name string) (io.ReadCloser, error) {
	return c.cli.ContainerLogs(ctx, name, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
		Tail:       "0",
	})
}

// Exec runs a command inside a running container and returns its exit code.
func (c *Client) Exec(ctx context.Context, name string, cmd []string, privileged bool) (int, error) {
	created, err := c.cli.ContainerExecCreate(ctx, name, container.ExecOptions{
		Cmd:          cmd,
		Privileged:   privileged,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return -1, fmt.Errorf("creating exec: %w", err)
	}

	attach, err := c.cli.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return -1, fmt.Errorf("attaching exec: %w", err)
	}
	_, _ = stdcopy.StdCopy(io.Discard, io.Discard, attach.Reader)
	attach.Close()

	inspect, err := c.cli.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return -1, fmt.Errorf("inspecting exec: %w", err)
	}
	return inspect.ExitCode, nil
}

// ServerComponents returns the component names reported by the engine's version endpoint.
func (c *Client) ServerComponents(ctx context.Context) ([]string, error) {
	version, err := c.cli.ServerVersion(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(version.Components))
	for _, component := range version.Components {
		names = append(names, component.Name)
	}
	return names, nil
}

// BridgeGateway returns the gateway address of the default bridge network.
func (c *Client) BridgeGateway(ctx context.Context) (string, error) {
	bridge, err := c.cli.NetworkInspect(ctx, "bridge", network.InspectOptions{})
	if err != nil {
		return "", err
	}

	for _, cfg := range bridge.IPAM.Config {
		if cfg.Gateway != "" {
			return cfg.Gateway, nil
		}
	}
	return "", fmt.Errorf("bridge network has no gateway")
}
