package runtime

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	goruntime "runtime"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"

	"github.com/rickgorman/sandboxrt/internal/builder"
	"github.com/rickgorman/sandboxrt/internal/config"
	"github.com/rickgorman/sandboxrt/internal/container"
	"github.com/rickgorman/sandboxrt/internal/logstream"
	"github.com/rickgorman/sandboxrt/internal/shutdown"
)

// Engine is the container engine as the runtime uses it. *container.Client implements it.
type Engine interface {
	Inspect(ctx context.Context, name string) (*container.Info, error)
	Run(ctx context.Context, cfg container.RunConfig) (string, error)
	Start(ctx context.Context, nameOrID string) error
	Stop(ctx context.Context, nameOrID string) error
	Remove(ctx context.Context, nameOrID string, force bool) error
	StopAll(ctx context.Context, prefix string) error
	RemoveAll(ctx context.Context, prefix string) error
	PublishedPorts(ctx context.Context) (map[int]struct{}, error)
	Logs(ctx context.Context, name string, tail int) (string, error)
	FollowLogs(ctx context.Context, name string) (io.ReadCloser, error)
	Exec(ctx context.Context, name string, cmd []string, privileged bool) (int, error)
	ServerComponents(ctx context.Context) ([]string, error)
	BridgeGateway(ctx context.Context) (string, error)
}

// ImageBuilder turns a base image into a runnable runtime image.
type ImageBuilder interface {
	Build(ctx context.Context, req builder.Request) (string, error)
}

// Options configure a Runtime beyond the shared Config.
type Options struct {
	// SessionID names the sandbox. Required.
	SessionID string

	// AttachToExisting only reconnects; Connect never creates a container
	// and Close never removes it.
	AttachToExisting bool

	// Env is extra container environment, merged after the config's startup env.
	Env map[string]string

	StatusCallback StatusCallback

	// Setup runs once after a freshly created sandbox becomes alive.
	Setup func(ctx context.Context, r *Runtime) error

	// Builder is used when no runtime image is configured. Defaults to a
	// builder over the engine when the engine can build images.
	Builder ImageBuilder

	// Tokens supplies the editor access token. Defaults to asking the control endpoint.
	Tokens TokenSource

	// Ports allocates host ports. Defaults to an allocator cross-checked against the engine.
	Ports *container.PortAllocator

	HTTPClient *http.Client
	Logger     *logrus.Entry

	// ShouldStop is polled between liveness attempts. Defaults to shutdown.ShouldExit.
	ShouldStop func() bool
}

// PortAssignment is the set of ports bound to one sandbox.
type PortAssignment struct {
	Control int
	Editor  int
	App     []int
}

const (
	attachAttempts     = 3
	maxConflictRetries = 1
	probeTimeout       = 10 * time.Second
	exitedLogTail      = 50
	shutdownTimeout    = 30 * time.Second
)

// Runtime owns one sandbox container for the lifetime of a session.
// It is not safe for concurrent use.
type Runtime struct {
	cfg    *config.Config
	engine Engine
	opts   Options
	log    *logrus.Entry
	name   string
	http   *http.Client
	alloc  *container.PortAllocator
	goos   string

	baseURL string
	apiURL  string
	ports   PortAssignment

	handle   string
	created  bool
	state    State
	streamer *logstream.Streamer
	closed   bool

	attachBackOff   func() backoff.BackOff
	attachTries     uint
	livenessBackOff func() backoff.BackOff
}

var (
	shutdownOnce sync.Once
	shutdownAdd  = shutdown.Add
)

// registerShutdown stops every container under prefix when the process exits.
// Only the first Runtime in a process registers.
func registerShutdown(engine Engine, prefix string) {
	shutdownOnce.Do(func() {
		shutdownAdd(func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := engine.StopAll(ctx, prefix); err != nil {
				logrus.WithError(err).WithField("prefix", prefix).Warn("Failed to stop containers on shutdown")
			}
		})
	})
}

// New returns a disconnected Runtime for opts.SessionID. It does not contact the engine.
func New(cfg *config.Config, engine Engine, opts Options) (*Runtime, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if opts.SessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}

	registerShutdown(engine, cfg.Sandbox.ContainerPrefix)

	name := cfg.ContainerName(opts.SessionID)

	log := opts.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithFields(logrus.Fields{"session": opts.SessionID, "container": name})

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	alloc := opts.Ports
	if alloc == nil {
		alloc = &container.PortAllocator{Published: engine.PublishedPorts}
	}

	if opts.Builder == nil {
		if be, ok := engine.(builder.Engine); ok {
			opts.Builder = builder.New(be, log)
		}
	}
	if opts.Tokens == nil {
		opts.Tokens = &ConnectionTokenSource{Client: httpClient}
	}
	if opts.ShouldStop == nil {
		opts.ShouldStop = shutdown.ShouldExit
	}

	if cfg.Sandbox.ExtraDeps != "" {
		log.WithField("deps", cfg.Sandbox.ExtraDeps).Debug("Installing extra user-provided dependencies in the runtime image")
	}

	return &Runtime{
		cfg:             cfg,
		engine:          engine,
		opts:            opts,
		log:             log,
		name:            name,
		http:            httpClient,
		alloc:           alloc,
		goos:            goruntime.GOOS,
		baseURL:         cfg.Sandbox.LocalRuntimeURL,
		attachBackOff:   defaultAttachBackOff,
		attachTries:     attachAttempts,
		livenessBackOff: defaultLivenessBackOff,
	}, nil
}

// attempt n waits 2^n seconds before the next.
func defaultAttachBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Second
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = 8 * time.Second
	return b
}

func defaultLivenessBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 4 * time.Second
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = 10 * time.Second
	return b
}

// Name returns the container name.
func (r *Runtime) Name() string { return r.name }

// State returns the connection state.
func (r *Runtime) State() State { return r.state }

// URL returns the control endpoint URL. It may change during liveness checks.
func (r *Runtime) URL() string { return r.apiURL }

// Ports returns a copy of the port assignment.
func (r *Runtime) Ports() PortAssignment {
	p := r.ports
	p.App = append([]int(nil), r.ports.App...)
	return p
}

// WebHosts maps each application port's local URL to the port.
func (r *Runtime) WebHosts() map[string]int {
	hosts := make(map[string]int, len(r.ports.App))
	for _, port := range r.ports.App {
		hosts[fmt.Sprintf("http://localhost:%d", port)] = port
	}
	return hosts
}

// EditorURL returns the editor address, or "" while no token is available.
func (r *Runtime) EditorURL(ctx context.Context) string {
	if !r.cfg.Sandbox.EnableEditor || r.ports.Editor == 0 || r.apiURL == "" {
		return ""
	}
	token, err := r.opts.Tokens.Token(ctx, r.apiURL)
	if err != nil {
		r.log.WithError(err).Debug("Editor token unavailable")
		return ""
	}
	if token == "" {
		return ""
	}
	q := url.Values{}
	q.Set("tkn", token)
	q.Set("folder", r.cfg.WorkspaceMountPathInSandbox)
	return fmt.Sprintf("http://localhost:%d/?%s", r.ports.Editor, q.Encode())
}

func (r *Runtime) setState(s State) {
	if r.state != s {
		r.log.WithField("state", s.String()).Debug("Connection state changed")
	}
	r.state = s
}

// fail records a fatal outcome and logs it with the container and URL.
func (r *Runtime) fail(err error) error {
	r.setState(StateDisconnectedError)
	r.log.WithError(err).WithField("url", r.apiURL).Error("Sandbox connection failed")
	return err
}

func (r *Runtime) resetPorts() {
	r.ports = PortAssignment{}
}
