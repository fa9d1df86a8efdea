package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	cerrdefs "github.com/containerd/errdefs"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/rickgorman/sandboxrt/internal/builder"
	"github.com/rickgorman/sandboxrt/internal/config"
	"github.com/rickgorman/sandboxrt/internal/container"
)

// fakeEngine is an in-memory container engine.
type fakeEngine struct {
	mu         sync.Mutex
	containers map[string]*container.Info
	nextID     int

	published     map[int]struct{}
	components    []string
	componentsErr error
	gateway       string
	gatewayErr    error
	ipAddress     string
	logs          string
	execCode      int
	execErr       error

	// runErrs fail Run calls in order before it starts succeeding.
	runErrs []error
	// inspectErr fails every Inspect when set.
	inspectErr error
	removeErr  error

	inspectCalls      int
	inspectsBeforeRun int
	startCalls        int
	stopCalls         int
	execCalls         int
	runs              []container.RunConfig
	removed           []string
	removedAll        []string
	stoppedAll        []string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		containers: make(map[string]*container.Info),
		published:  make(map[int]struct{}),
		gateway:    "172.17.0.1",
		ipAddress:  "172.17.0.2",
	}
}

func notFound(name string) error {
	return fmt.Errorf("no such container %s: %w", name, cerrdefs.ErrNotFound)
}

func (f *fakeEngine) lookup(nameOrID string) *container.Info {
	if info, ok := f.containers[nameOrID]; ok {
		return info
	}
	for _, info := range f.containers {
		if info.ID == nameOrID {
			return info
		}
	}
	return nil
}

func (f *fakeEngine) Inspect(_ context.Context, name string) (*container.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.inspectCalls++
	if len(f.runs) == 0 {
		f.inspectsBeforeRun++
	}
	if f.inspectErr != nil {
		return nil, f.inspectErr
	}
	info := f.lookup(name)
	if info == nil {
		return nil, notFound(name)
	}
	cp := *info
	cp.Env = slices.Clone(info.Env)
	cp.ExposedPorts = slices.Clone(info.ExposedPorts)
	return &cp, nil
}

func (f *fakeEngine) Run(_ context.Context, cfg container.RunConfig) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.runs = append(f.runs, cfg)
	if len(f.runErrs) > 0 {
		err := f.runErrs[0]
		f.runErrs = f.runErrs[1:]
		return "", err
	}
	if _, ok := f.containers[cfg.Name]; ok {
		return "", fmt.Errorf("failed to create container: %w", cerrdefs.ErrConflict)
	}

	exposed := slices.Clone(cfg.ExposedPorts)
	for _, m := range cfg.PortMappings {
		if !slices.Contains(exposed, m.Container) {
			exposed = append(exposed, m.Container)
		}
	}
	slices.Sort(exposed)

	f.nextID++
	info := &container.Info{
		ID:           fmt.Sprintf("id-%d", f.nextID),
		Name:         cfg.Name,
		Status:       "running",
		Env:          slices.Clone(cfg.Env),
		ExposedPorts: exposed,
		IPAddress:    f.ipAddress,
		Gateway:      "172.17.0.1",
	}
	f.containers[cfg.Name] = info
	return info.ID, nil
}

func (f *fakeEngine) Start(_ context.Context, nameOrID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.startCalls++
	info := f.lookup(nameOrID)
	if info == nil {
		return notFound(nameOrID)
	}
	info.Status = "running"
	return nil
}

func (f *fakeEngine) Stop(_ context.Context, nameOrID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stopCalls++
	info := f.lookup(nameOrID)
	if info == nil {
		return notFound(nameOrID)
	}
	info.Status = "exited"
	return nil
}

func (f *fakeEngine) Remove(_ context.Context, nameOrID string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.removed = append(f.removed, nameOrID)
	if f.removeErr != nil {
		return f.removeErr
	}
	if info := f.lookup(nameOrID); info != nil {
		delete(f.containers, info.Name)
	}
	return nil
}

func (f *fakeEngine) StopAll(_ context.Context, prefix string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stoppedAll = append(f.stoppedAll, prefix)
	for name, info := range f.containers {
		if strings.HasPrefix(name, prefix) {
			info.Status = "exited"
		}
	}
	return nil
}

func (f *fakeEngine) RemoveAll(_ context.Context, prefix string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.removedAll = append(f.removedAll, prefix)
	for name := range f.containers {
		if strings.HasPrefix(name, prefix) {
			delete(f.containers, name)
		}
	}
	return nil
}

func (f *fakeEngine) PublishedPorts(context.Context) (map[int]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.published, nil
}

func (f *fakeEngine) Logs(context.Context, string, int) (string, error) {
	return f.logs, nil
}

func (f *fakeEngine) FollowLogs(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func (f *fakeEngine) Exec(context.Context, string, []string, bool) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execCalls++
	return f.execCode, f.execErr
}

func (f *fakeEngine) ServerComponents(context.Context) ([]string, error) {
	return f.components, f.componentsErr
}

func (f *fakeEngine) BridgeGateway(context.Context) (string, error) {
	return f.gateway, f.gatewayErr
}

func (f *fakeEngine) count(n *int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *n
}

type fakeBuilder struct {
	requests []builder.Request
	err      error
}

func (b *fakeBuilder) Build(_ context.Context, req builder.Request) (string, error) {
	b.requests = append(b.requests, req)
	if b.err != nil {
		return "", b.err
	}
	return builder.Tag(req), nil
}

// liveServer is a control endpoint whose /alive status can be changed.
type liveServer struct {
	*httptest.Server
	status atomic.Int32
	hits   atomic.Int32

	mu    sync.Mutex
	hosts []string
}

func newLiveServer(t *testing.T) *liveServer {
	t.Helper()
	s := &liveServer{}
	s.status.Store(http.StatusOK)
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/alive":
			s.hits.Add(1)
			s.mu.Lock()
			s.hosts = append(s.hosts, r.Host)
			s.mu.Unlock()
			w.WriteHeader(int(s.status.Load()))
		case "/vscode/connection_token":
			_, _ = io.WriteString(w, `{"token":"secret"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *liveServer) lastHost() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.hosts) == 0 {
		return ""
	}
	return s.hosts[len(s.hosts)-1]
}

// client sends every request to the server whatever the URL host.
func (s *liveServer) client() *http.Client {
	addr := s.Listener.Addr().String()
	return &http.Client{Transport: &http.Transport{
		DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		},
	}}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Sandbox.LocalRuntimeURL = "http://127.0.0.1"
	cfg.Sandbox.RuntimeImage = "runtime:test"
	cfg.Sandbox.LivenessTimeout = 2 * time.Second
	return cfg
}

func newTestRuntime(t *testing.T, cfg *config.Config, engine *fakeEngine, srv *liveServer, opts Options) *Runtime {
	t.Helper()

	if opts.SessionID == "" {
		opts.SessionID = "abc"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = srv.client()
	}
	if opts.Ports == nil {
		opts.Ports = &container.PortAllocator{
			Published: engine.PublishedPorts,
			Available: func(int) bool { return true },
		}
	}
	if opts.ShouldStop == nil {
		opts.ShouldStop = func() bool { return false }
	}
	if opts.Logger == nil {
		logger, _ := test.NewNullLogger()
		opts.Logger = logrus.NewEntry(logger)
	}

	r, err := New(cfg, engine, opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	r.goos = "linux"
	r.attachBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	r.livenessBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(5 * time.Millisecond) }
	return r
}

var errBoom = errors.New("boom")

func conflictErr() error {
	return fmt.Errorf("failed to create container: %w", cerrdefs.ErrConflict)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
