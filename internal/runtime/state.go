package runtime

// State is the connection state of a Runtime.
type State int

const (
	StateDisconnected State = iota
	StateAttaching
	StateProvisioning
	StateAwaitingLiveness
	StateAlive
	StateDisconnectedError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateAttaching:
		return "attaching"
	case StateProvisioning:
		return "provisioning"
	case StateAwaitingLiveness:
		return "awaiting-liveness"
	case StateAlive:
		return "alive"
	case StateDisconnectedError:
		return "disconnected-error"
	default:
		return "unknown"
	}
}
