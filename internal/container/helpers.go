package container

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

// DefaultBindAddress is used for published ports when none is configured.
const DefaultBindAddress = "127.0.0.1"

// buildContainerConfig creates a container.Config from RunConfig.
func buildContainerConfig(cfg RunConfig) *container.Config {
	config := &container.Config{
		Image:      cfg.Image,
		WorkingDir: cfg.WorkDir,
		Env:        cfg.Env,
		Labels:     cfg.Labels,
	}

	if len(cfg.Command) > 0 {
		config.Entrypoint = cfg.Command
	}

	exposed := make(nat.PortSet)
	for _, p := range cfg.ExposedPorts {
		exposed[tcpPort(p)] = struct{}{}
	}
	for _, pm := range cfg.PortMappings {
		exposed[tcpPort(pm.Container)] = struct{}{}
	}
	if len(exposed) > 0 {
		config.ExposedPorts = exposed
	}

	return config
}

// buildHostConfig creates a container.HostConfig from RunConfig.
func buildHostConfig(cfg RunConfig) *container.HostConfig {
	hostConfig := &container.HostConfig{
		ExtraHosts: cfg.ExtraHosts,
	}

	if cfg.NetworkMode != "" {
		hostConfig.NetworkMode = container.NetworkMode(cfg.NetworkMode)
	}

	// The engine discards bindings in host mode anyway; never send them.
	if len(cfg.PortMappings) > 0 && !hostConfig.NetworkMode.IsHost() {
		bindAddress := cfg.BindAddress
		if bindAddress == "" {
			bindAddress = DefaultBindAddress
		}

		portBindings := make(nat.PortMap)
		for _, pm := range cfg.PortMappings {
			portBindings[tcpPort(pm.Container)] = []nat.PortBinding{
				{
					HostIP:   bindAddress,
					HostPort: strconv.Itoa(pm.Host),
				},
			}
		}
		hostConfig.PortBindings = portBindings
	}

	if len(cfg.Mounts) > 0 {
		hostConfig.Mounts = toMounts(cfg.Mounts)
	}

	if cfg.GPU {
		hostConfig.DeviceRequests = []container.DeviceRequest{
			{Count: -1, Capabilities: [][]string{{"gpu"}}},
		}
	}

	return hostConfig
}

// toMounts converts volume mounts to engine mounts.
func toMounts(volumes []VolumeMount) []mount.Mount {
	mounts := make([]mount.Mount, 0, len(volumes))
	for _, v := range volumes {
		mountType := mount.TypeBind
		source := v.Source
		if v.Type == "volume" {
			mountType = mount.TypeVolume
		} else {
			source = expandPath(source)
		}

		mounts = append(mounts, mount.Mount{
			Type:     mountType,
			Source:   source,
			Target:   v.Target,
			ReadOnly: v.ReadOnly,
		})
	}
	return mounts
}

func tcpPort(p int) nat.Port {
	return nat.Port(fmt.Sprintf("%d/tcp", p))
}

// mustNewFilter creates a filter args from a key/values map.
func mustNewFilter(kv map[string][]string) filters.Args {
	f := filters.NewArgs()
	for k, values := range kv {
		for _, v := range values {
			f.Add(k, v)
		}
	}
	return f
}

// matchesPrefix checks if a container name matches the expected prefix pattern.
func matchesPrefix(name, prefix string) bool {
	return strings.HasPrefix(name, prefix)
}

// trimSlash drops the leading "/" the engine puts on container names.
func trimSlash(name string) string {
	return strings.TrimPrefix(name, "/")
}

// IsNotFound reports whether err means the container or image does not exist.
func IsNotFound(err error) bool {
	return cerrdefs.IsNotFound(err) || client.IsErrNotFound(err)
}

// IsConflict reports whether err is a name conflict (HTTP 409) from the engine.
func IsConflict(err error) bool {
	return cerrdefs.IsConflict(err)
}

// parseDockerTimestamp parses a Docker timestamp string.
func parseDockerTimestamp(ts string) (time.Time, error) {
	// Docker timestamps are in RFC3339Nano format
	return time.Parse(time.RFC3339Nano, ts)
}
