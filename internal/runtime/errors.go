package runtime

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDisconnected matches every *DisconnectedError.
	ErrDisconnected = errors.New("sandbox disconnected")

	// ErrContainerNotFound is a missing container seen while waiting for liveness.
	// It is retried there; attach-only absence is a DisconnectedError instead.
	ErrContainerNotFound = errors.New("container not found")

	// ErrNoImage means neither a runtime image nor a base image is configured.
	ErrNoImage = errors.New("neither runtime image nor base image is set")

	// ErrNotInitialized is returned by Pause and Resume before Connect.
	ErrNotInitialized = errors.New("container not initialized")

	// ErrStopped is reported when the liveness wait was told to stop before any probe ran.
	ErrStopped = errors.New("liveness wait stopped")
)

// DisconnectedError means the sandbox is unreachable and will not recover on its own.
type DisconnectedError struct {
	Container string
	URL       string
	Reason    string

	// Logs holds the tail of the container output when it exited.
	Logs string

	Err error
}

func (e *DisconnectedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "container %s: %s", e.Container, e.Reason)
	if e.URL != "" {
		fmt.Fprintf(&b, " (url %s)", e.URL)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Logs != "" {
		fmt.Fprintf(&b, "\nLast logs:\n%s", e.Logs)
	}
	return b.String()
}

func (e *DisconnectedError) Unwrap() error { return e.Err }

func (e *DisconnectedError) Is(target error) bool { return target == ErrDisconnected }

// StatusError is an HTTP error status from the control endpoint.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}
