package runtime

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/rickgorman/sandboxrt/internal/container"
)

const (
	envControlPort = "port"
	envEditorPort  = "VSCODE_PORT"
)

// attach binds the runtime to an existing container, starting it if it has exited.
// Ports are read back from the container, never allocated.
func (r *Runtime) attach(ctx context.Context) error {
	info, err := r.engine.Inspect(ctx, r.name)
	if err != nil {
		return err
	}

	if info.Status == "exited" {
		if err := r.engine.Start(ctx, info.ID); err != nil {
			return err
		}
	}

	ports, err := ReconstructPorts(info)
	if err != nil {
		return err
	}

	r.handle = info.ID
	r.ports = ports
	r.apiURL = fmt.Sprintf("%s:%d", r.baseURL, ports.Control)

	r.log.WithField("url", r.apiURL).Debug("Attached to existing container")
	return nil
}

// ReconstructPorts recovers the port assignment of a container this package created.
// The control and editor ports come from the environment; every other exposed
// port is an application port, in ascending order. The engine keeps exposed
// ports as a set, so declaration order is lost; ascending matches allocation
// order because the application port ranges are themselves ascending.
func ReconstructPorts(info *container.Info) (PortAssignment, error) {
	var ports PortAssignment

	for _, kv := range info.Env {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		switch key {
		case envControlPort:
			n, err := strconv.Atoi(value)
			if err != nil {
				return PortAssignment{}, fmt.Errorf("container %s: invalid %s=%q", info.Name, key, value)
			}
			ports.Control = n
		case envEditorPort:
			n, err := strconv.Atoi(value)
			if err != nil {
				return PortAssignment{}, fmt.Errorf("container %s: invalid %s=%q", info.Name, key, value)
			}
			ports.Editor = n
		}
	}

	if ports.Control == 0 {
		return PortAssignment{}, fmt.Errorf("container %s does not declare a control port", info.Name)
	}

	for _, p := range info.ExposedPorts {
		if p != ports.Control && p != ports.Editor {
			ports.App = append(ports.App, p)
		}
	}
	slices.Sort(ports.App)

	return ports, nil
}
