package runtime

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/rickgorman/sandboxrt/internal/container"
)

// reservedEnv may not be overridden by startup or caller environment.
var reservedEnv = map[string]bool{
	envControlPort: true,
	envEditorPort:  true,
}

// provision creates the session's container. A name conflict removes the
// existing container and retries, at most maxConflictRetries times.
func (r *Runtime) provision(ctx context.Context, image string) error {
	for retries := 0; ; retries++ {
		err := r.provisionOnce(ctx, image)
		if err == nil {
			return nil
		}

		if !container.IsConflict(err) || retries >= maxConflictRetries {
			r.resetPorts()
			r.log.WithError(err).Error("Failed to start container")
			return err
		}

		r.log.Warn("Container already exists, removing")
		if err := r.engine.Remove(ctx, r.name, true); err != nil {
			r.log.WithError(err).Warn("Failed to remove conflicting container")
		}
	}
}

func (r *Runtime) provisionOnce(ctx context.Context, image string) error {
	r.log.Debug("Preparing to start container")
	r.status(StatusPreparingContainer)

	network := ResolveNetwork(ctx, r.engine, r.cfg.Sandbox.UseHostNetwork, r.log)

	ranges := append([]container.PortRange{container.ControlPortRange, container.EditorPortRange}, container.AppPortRanges...)
	allocated, err := r.alloc.AllocateAll(ctx, ranges...)
	if err != nil {
		return fmt.Errorf("allocating ports: %w", err)
	}
	r.ports = PortAssignment{Control: allocated[0], Editor: allocated[1], App: allocated[2:]}

	host := Hostname(r.goos, r.baseURL)
	r.apiURL = fmt.Sprintf("http://%s:%d", host, r.ports.Control)
	r.log.WithField("hostname", host).Debug("Using hostname for container communication")

	if network.Mode == NetworkHost {
		r.log.Warn("Using host network mode. On macOS this requires a recent Docker Desktop with host networking enabled")
	}

	runCfg := r.runConfig(image, network)
	if err := container.PrepareVolumeMounts(runCfg.Mounts); err != nil {
		return err
	}

	id, err := r.engine.Run(ctx, runCfg)
	if err != nil {
		return err
	}
	r.handle = id
	r.log.WithField("url", r.apiURL).Debug("Container started")

	if network.Mode != NetworkHost {
		if info, err := r.engine.Inspect(ctx, id); err == nil {
			r.log.WithField("ip", info.IPAddress).Debug("Container IP")
		}
	}

	r.status(StatusContainerStarted)
	return nil
}

// runConfig assembles the container run config for the current port assignment.
func (r *Runtime) runConfig(image string, network NetworkConfig) container.RunConfig {
	s := r.cfg.Sandbox

	exposed := append([]int{r.ports.Control, r.ports.Editor}, r.ports.App...)

	var mappings []container.PortMapping
	if network.Mode != NetworkHost {
		mappings = append(mappings, container.PortMapping{Host: r.ports.Control, Container: r.ports.Control})
		if s.EnableEditor {
			mappings = append(mappings, container.PortMapping{Host: r.ports.Editor, Container: r.ports.Editor})
		}
		for _, p := range r.ports.App {
			mappings = append(mappings, container.PortMapping{Host: p, Container: p})
		}
	}

	return container.RunConfig{
		Name:         r.name,
		Image:        image,
		WorkDir:      s.WorkingDir,
		Env:          r.environment(),
		Command:      r.serverCommand(),
		Mounts:       container.WorkspaceMounts(r.cfg.WorkspaceMountPath, r.cfg.WorkspaceMountPathInSandbox),
		NetworkMode:  network.Mode,
		ExtraHosts:   network.ExtraHosts,
		ExposedPorts: exposed,
		PortMappings: mappings,
		BindAddress:  s.BindAddress,
		GPU:          s.EnableGPU,
		Labels:       map[string]string{"sandboxrt.session": r.opts.SessionID},
	}
}

// environment returns the container environment in KEY=VALUE form, sorted by key.
func (r *Runtime) environment() []string {
	platform := r.cfg.Sandbox.Platform
	if platform == "" {
		platform = "linux/amd64"
	}

	env := map[string]string{
		envControlPort:              strconv.Itoa(r.ports.Control),
		envEditorPort:               strconv.Itoa(r.ports.Editor),
		"PYTHONUNBUFFERED":          "1",
		"PIP_BREAK_SYSTEM_PACKAGES": "1",
		"HOST_HOSTNAME":             HostGatewayAlias,
		"DOCKER_DEFAULT_PLATFORM":   platform,
		"DOCKER_BUILDKIT":           "1",
		"DOCKER_DNS":                "8.8.8.8",
	}
	if r.cfg.Debug {
		env["DEBUG"] = "true"
		env["DOCKER_BUILDKIT_PROGRESS"] = "plain"
	}

	for _, extra := range []map[string]string{r.cfg.Sandbox.StartupEnv, r.opts.Env} {
		for k, v := range extra {
			if reservedEnv[k] {
				r.log.WithField("key", k).Warn("Ignoring override of reserved environment variable")
				continue
			}
			env[k] = v
		}
	}

	out := make([]string, 0, len(env))
	for _, k := range slices.Sorted(maps.Keys(env)) {
		out = append(out, k+"="+env[k])
	}
	return out
}

// serverCommand substitutes the control port into the configured command.
func (r *Runtime) serverCommand() []string {
	port := strconv.Itoa(r.ports.Control)
	cmd := make([]string, len(r.cfg.Sandbox.ServerCommand))
	for i, arg := range r.cfg.Sandbox.ServerCommand {
		cmd[i] = strings.ReplaceAll(arg, "{port}", port)
	}
	return cmd
}
