package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"

	"github.com/rickgorman/sandboxrt/internal/builder"
	"github.com/rickgorman/sandboxrt/internal/container"
	"github.com/rickgorman/sandboxrt/internal/logstream"
)

// Connect attaches to the session's container, or creates one, and returns
// once its control endpoint answers. Fatal outcomes are *DisconnectedError
// unless they come from configuration or the engine itself.
func (r *Runtime) Connect(ctx context.Context) error {
	r.status(StatusStartingRuntime)

	if r.baseURL == "" {
		r.baseURL = DefaultBaseURL(ctx, r.engine, r.goos)
		r.log.WithField("url", r.baseURL).Debug("Using detected local runtime URL")
	}

	r.setState(StateAttaching)
	if err := r.attachWithRetry(ctx); err != nil {
		if ctx.Err() != nil || !isAttachRetryable(err) {
			return r.fail(err)
		}
		if r.opts.AttachToExisting {
			r.log.Error("Container not found")
			return r.fail(&DisconnectedError{Container: r.name, Reason: "container not found", Err: err})
		}

		r.setState(StateProvisioning)
		image, err := r.resolveImage(ctx)
		if err != nil {
			return r.fail(err)
		}
		r.log.WithField("image", image).Info("Starting runtime")
		if err := r.provision(ctx, image); err != nil {
			return r.fail(err)
		}
		r.created = true
		r.log.WithField("url", r.apiURL).Info("Container started")
	}

	if r.created {
		r.log.WithField("url", r.apiURL).Info("Waiting for client to become ready")
		r.status(StatusWaitingForClient)
	}

	r.setState(StateAwaitingLiveness)
	if err := r.waitUntilAlive(ctx); err != nil {
		return r.fail(err)
	}
	r.setState(StateAlive)

	if r.cfg.VerboseRuntimeLogs && r.streamer == nil {
		s, err := logstream.Start(context.WithoutCancel(ctx), r.engine, r.name, r.log)
		if err != nil {
			r.log.WithError(err).Warn("Failed to attach log streamer")
		} else {
			r.streamer = s
		}
	}

	if !r.created {
		return nil
	}

	r.log.Info("Runtime is ready")
	if r.opts.Setup != nil {
		if err := r.opts.Setup(ctx, r); err != nil {
			return r.fail(fmt.Errorf("initial environment setup: %w", err))
		}
	}
	r.status(StatusReady)
	return nil
}

func (r *Runtime) attachWithRetry(ctx context.Context) error {
	attempt := 0
	op := func() (struct{}, error) {
		attempt++
		err := r.attach(ctx)
		if err != nil && !isAttachRetryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(r.attachBackOff()),
		backoff.WithMaxTries(r.attachTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			r.log.WithFields(logrus.Fields{"attempt": attempt, "retry_in": next}).
				WithError(err).Warn("Connection attempt failed, retrying")
		}),
	)
	return err
}

// isAttachRetryable reports whether an attach failure is a missing container
// or a timeout reaching the engine.
func isAttachRetryable(err error) bool {
	if container.IsNotFound(err) {
		return true
	}
	return isTimeout(err)
}

func (r *Runtime) resolveImage(ctx context.Context) (string, error) {
	s := r.cfg.Sandbox
	if s.RuntimeImage != "" {
		return s.RuntimeImage, nil
	}
	if s.BaseImage == "" {
		return "", ErrNoImage
	}
	if r.opts.Builder == nil {
		return "", errors.New("no image builder available for base image " + s.BaseImage)
	}

	r.status(StatusStartingContainer)
	image, err := r.opts.Builder.Build(ctx, builder.Request{
		BaseImage: s.BaseImage,
		ExtraDeps: s.ExtraDeps,
		Platform:  s.Platform,
		Force:     s.ForceRebuild,
		BuildArgs: s.ExtraBuildArgs,
	})
	if err != nil {
		return "", fmt.Errorf("building runtime image: %w", err)
	}
	return image, nil
}

// Attach binds the runtime to the session's existing container without
// waiting for liveness. A missing container is a *DisconnectedError.
func (r *Runtime) Attach(ctx context.Context) error {
	if r.baseURL == "" {
		r.baseURL = DefaultBaseURL(ctx, r.engine, r.goos)
	}

	r.setState(StateAttaching)
	if err := r.attachWithRetry(ctx); err != nil {
		if ctx.Err() == nil && isAttachRetryable(err) {
			err = &DisconnectedError{Container: r.name, Reason: "container not found", Err: err}
		}
		return r.fail(err)
	}
	r.setState(StateDisconnected)
	return nil
}
