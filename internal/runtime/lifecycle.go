package runtime

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Pause stops the container without removing it.
func (r *Runtime) Pause(ctx context.Context) error {
	if r.handle == "" {
		return ErrNotInitialized
	}
	if err := r.engine.Stop(ctx, r.handle); err != nil {
		return err
	}
	r.setState(StateDisconnected)
	r.log.Debug("Container paused")
	return nil
}

// Resume starts a paused container and waits for the control endpoint.
func (r *Runtime) Resume(ctx context.Context) error {
	if r.handle == "" {
		return ErrNotInitialized
	}
	if err := r.engine.Start(ctx, r.handle); err != nil {
		return err
	}
	r.log.Debug("Container resumed")

	r.setState(StateAwaitingLiveness)
	if err := r.waitUntilAlive(ctx); err != nil {
		return r.fail(err)
	}
	r.setState(StateAlive)
	return nil
}

// Close releases the session. The container is kept when keep-alive is
// configured or the runtime was created attach-only; otherwise it is removed,
// together with every container under the prefix when rm-all is configured.
// Only the first call has any effect.
func (r *Runtime) Close(ctx context.Context) error {
	if r.closed {
		return nil
	}
	r.closed = true

	if r.streamer != nil {
		r.streamer.Close()
		r.streamer = nil
	}

	defer r.setState(StateDisconnected)

	if r.cfg.Sandbox.KeepRuntimeAlive || r.opts.AttachToExisting {
		return nil
	}

	if r.cfg.Sandbox.RmAllContainers {
		prefix := r.cfg.Sandbox.ContainerPrefix
		if err := r.engine.RemoveAll(ctx, prefix); err != nil {
			return fmt.Errorf("removing containers with prefix %s: %w", prefix, err)
		}
		return nil
	}

	if err := r.engine.Remove(ctx, r.name, true); err != nil {
		return fmt.Errorf("removing %s: %w", r.name, err)
	}
	return nil
}

// Remover force-removes containers by name.
type Remover interface {
	Remove(ctx context.Context, nameOrID string, force bool) error
}

// Delete force-removes the container of sessionID. Failures are logged and dropped.
func Delete(ctx context.Context, engine Remover, prefix, sessionID string) {
	name := prefix + sessionID
	if err := engine.Remove(ctx, name, true); err != nil {
		logrus.WithError(err).WithField("container", name).Debug("Delete failed")
	}
}
