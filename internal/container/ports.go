package container

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net"
	"strconv"
)

// PortRange is an inclusive range of TCP ports.
type PortRange struct {
	Min int
	Max int
}

// Contains reports whether port lies inside the range.
func (r PortRange) Contains(port int) bool {
	return port >= r.Min && port <= r.Max
}

// Overlaps reports whether the two ranges share any port.
func (r PortRange) Overlaps(o PortRange) bool {
	return r.Min <= o.Max && o.Min <= r.Max
}

func (r PortRange) String() string {
	return fmt.Sprintf("%d-%d", r.Min, r.Max)
}

// Port ranges per purpose. They are disjoint so two purposes never collide by range alone.
var (
	ControlPortRange = PortRange{Min: 30000, Max: 39999}
	EditorPortRange  = PortRange{Min: 40000, Max: 49999}
	AppPortRanges    = []PortRange{
		{Min: 50000, Max: 54999},
		{Min: 55000, Max: 59999},
	}
)

const (
	// DefaultAllocateAttempts bounds the cross-check against running containers.
	DefaultAllocateAttempts = 5

	// defaultProbeAttempts bounds the OS-level search for an unbound port.
	defaultProbeAttempts = 10
)

// PortAllocator draws free host ports that no running container already publishes.
//
// The cross-check is best-effort: another process may bind the port between
// the check and container creation.
type PortAllocator struct {
	// Published returns the ports currently declared by running containers.
	Published func(ctx context.Context) (map[int]struct{}, error)

	// Available reports whether a port can be bound on the host.
	// Defaults to CheckPortAvailable.
	Available func(port int) bool

	// MaxAttempts defaults to DefaultAllocateAttempts.
	MaxAttempts int

	// ProbeAttempts defaults to 10.
	ProbeAttempts int

	// Intn draws a value in [0, n). Defaults to math/rand/v2.
	Intn func(n int) int
}

// Allocate returns a port in r that is unbound on the host and not published
// by a running container. If every attempt collides with a published port,
// the last candidate is returned anyway.
func (a *PortAllocator) Allocate(ctx context.Context, r PortRange) (int, error) {
	if r.Min <= 0 || r.Max < r.Min || r.Max > 65535 {
		return 0, fmt.Errorf("invalid port range %s", r)
	}

	attempts := a.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultAllocateAttempts
	}

	port := r.Max
	for i := 0; i < attempts; i++ {
		candidate, err := a.findAvailable(r)
		if err != nil {
			return 0, err
		}
		port = candidate

		if !a.isPublished(ctx, port) {
			return port, nil
		}
	}

	return port, nil
}

// AllocateAll draws one port from each range, in order.
func (a *PortAllocator) AllocateAll(ctx context.Context, ranges ...PortRange) ([]int, error) {
	ports := make([]int, 0, len(ranges))
	for _, r := range ranges {
		port, err := a.Allocate(ctx, r)
		if err != nil {
			return nil, fmt.Errorf("allocating port in %s: %w", r, err)
		}
		ports = append(ports, port)
	}
	return ports, nil
}

func (a *PortAllocator) isPublished(ctx context.Context, port int) bool {
	if a.Published == nil {
		return false
	}
	published, err := a.Published(ctx)
	if err != nil {
		// Listing failures leave only the host-level check.
		return false
	}
	_, ok := published[port]
	return ok
}

// findAvailable draws random candidates from r until one can be bound.
func (a *PortAllocator) findAvailable(r PortRange) (int, error) {
	available := a.Available
	if available == nil {
		available = CheckPortAvailable
	}
	intn := a.Intn
	if intn == nil {
		intn = rand.IntN
	}
	tries := a.ProbeAttempts
	if tries <= 0 {
		tries = defaultProbeAttempts
	}

	span := r.Max - r.Min + 1
	for i := 0; i < tries; i++ {
		candidate := r.Min + intn(span)
		if available(candidate) {
			return candidate, nil
		}
	}

	return 0, fmt.Errorf("no free TCP port in %s after %d attempts", r, tries)
}

// CheckPortAvailable reports whether a TCP port can be bound on all interfaces.
func CheckPortAvailable(port int) bool {
	ln, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}
