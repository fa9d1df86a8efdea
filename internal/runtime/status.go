package runtime

// Status is a progress notification for observers of Connect.
type Status string

const (
	StatusStartingRuntime    Status = "STATUS$STARTING_RUNTIME"
	StatusStartingContainer  Status = "STATUS$STARTING_CONTAINER"
	StatusPreparingContainer Status = "STATUS$PREPARING_CONTAINER"
	StatusWaitingForClient   Status = "STATUS$WAITING_FOR_CLIENT"
	StatusContainerStarted   Status = "STATUS$CONTAINER_STARTED"

	// StatusReady clears the status line once a fresh sandbox is usable.
	StatusReady Status = ""
)

// StatusCallback receives status notifications. It must not block.
type StatusCallback func(Status)

func (r *Runtime) status(s Status) {
	if r.opts.StatusCallback != nil {
		r.opts.StatusCallback(s)
	}
}
