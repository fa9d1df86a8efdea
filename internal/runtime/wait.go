package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"

	"github.com/rickgorman/sandboxrt/internal/container"
)

// waitUntilAlive polls the control endpoint until it answers, the liveness
// budget runs out, ctx is cancelled or ShouldStop reports true. Running out
// or stopping yields a *DisconnectedError wrapping the last probe error.
func (r *Runtime) waitUntilAlive(ctx context.Context) error {
	var lastErr error
	op := func() (struct{}, error) {
		if r.opts.ShouldStop() {
			return struct{}{}, backoff.Permanent(errStopped(lastErr))
		}

		err := r.checkAlive(ctx)
		if err == nil {
			return struct{}{}, nil
		}
		lastErr = err
		if !isLivenessRetryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(r.livenessBackOff()),
		backoff.WithMaxElapsedTime(r.cfg.Sandbox.LivenessTimeout),
		backoff.WithNotify(func(err error, next time.Duration) {
			r.log.WithError(err).WithFields(logrus.Fields{"url": r.apiURL, "retry_in": next}).
				Debug("Runtime not alive yet")
		}),
	)
	if err == nil {
		return nil
	}

	var stopped *stoppedError
	switch {
	case errors.As(err, &stopped):
		err = stopped.last
	case ctx.Err() != nil && lastErr != nil:
		err = lastErr
	case !isLivenessRetryable(err):
		// Exited containers and engine failures surface as they are.
		return err
	}

	return &DisconnectedError{
		Container: r.name,
		URL:       r.apiURL,
		Reason:    "runtime did not become alive",
		Err:       err,
	}
}

type stoppedError struct {
	last error
}

func errStopped(last error) *stoppedError {
	if last == nil {
		last = ErrStopped
	}
	return &stoppedError{last: last}
}

func (e *stoppedError) Error() string { return "stopped: " + e.last.Error() }

// checkAlive runs one liveness attempt.
func (r *Runtime) checkAlive(ctx context.Context) error {
	info, err := r.engine.Inspect(ctx, r.name)
	if err != nil {
		if container.IsNotFound(err) {
			return fmt.Errorf("%w: %s", ErrContainerNotFound, r.name)
		}
		return fmt.Errorf("checking container status: %w", err)
	}

	if info.Status == "exited" {
		logs, err := r.engine.Logs(ctx, r.name, exitedLogTail)
		if err != nil {
			r.log.WithError(err).Debug("Failed to read logs of exited container")
		}
		return &DisconnectedError{Container: r.name, URL: r.apiURL, Reason: "container has exited", Logs: logs}
	}

	if info.IPAddress == "" {
		resolvable := r.hostAliasResolves(ctx)
		if u, ok := GatewayOverride(info.IPAddress, info.Gateway, resolvable, r.ports.Control); ok {
			r.apiURL = u
			r.log.WithField("url", u).Debug("Updated API URL to use container gateway")
		}
	}

	r.log.WithField("url", r.apiURL).Debug("Attempting to connect to runtime")
	return r.probe(ctx)
}

// hostAliasResolves pings the host alias from inside the container.
// Failures are logged and reported as unresolvable.
func (r *Runtime) hostAliasResolves(ctx context.Context) bool {
	code, err := r.engine.Exec(ctx, r.name, []string{"ping", "-c", "1", HostGatewayAlias}, true)
	if err != nil {
		r.log.WithError(err).Warn("DNS resolution test failed, using fallback configuration")
		return false
	}
	if code != 0 {
		r.log.WithField("exit_code", code).Warn("DNS resolution test failed, using fallback configuration")
		return false
	}
	r.log.Debug("Successfully verified host alias DNS resolution")
	return true
}

// probe issues GET {url}/alive.
func (r *Runtime) probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	u := r.apiURL + "/alive"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return &StatusError{URL: u, StatusCode: resp.StatusCode}
	}
	return nil
}

// isLivenessRetryable reports whether a liveness failure is transient:
// network errors, error statuses and a not-yet-visible container.
func isLivenessRetryable(err error) bool {
	if errors.Is(err, ErrContainerNotFound) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
