// Package runtime connects a session to its sandbox container.
//
// A Runtime owns one container named prefix+session id. Connect first tries
// to attach to an existing container, reading its ports back from the
// container's environment and exposed ports. When none exists it resolves an
// image (configured, or built from a base image), allocates ports, creates
// the container and waits for the control endpoint to answer GET /alive.
//
// Connection states:
//
//	disconnected -> attaching -> awaiting-liveness -> alive
//	                    |               ^       \
//	                    v               |        -> disconnected-error
//	               provisioning --------+
//
// Attach is tried 3 times with 2s and 4s pauses, and only missing-container
// and timeout failures are retried. Attach-only runtimes stop there with a
// *DisconnectedError. The liveness wait backs off from 4s to 10s within the
// configured budget (180s by default) and is cut short by ctx or by
// Options.ShouldStop.
//
// Pause and Resume stop and start the container; Resume waits for liveness
// again. Close removes the container unless it is kept alive or was only
// attached to. Delete removes a session's container without a Runtime.
//
// The first Runtime created in a process registers a shutdown listener that
// stops every container under the configured prefix.
package runtime
