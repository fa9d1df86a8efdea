package runtime

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func TestPauseResumeRequireHandle(t *testing.T) {
	r := newTestRuntime(t, testConfig(), newFakeEngine(), newLiveServer(t), Options{})

	assert.ErrorIs(t, r.Pause(context.Background()), ErrNotInitialized)
	assert.ErrorIs(t, r.Resume(context.Background()), ErrNotInitialized)
}

func TestPauseResume(t *testing.T) {
	engine := newFakeEngine()
	srv := newLiveServer(t)
	r := connectedRuntime(t, testConfig(), engine, srv, Options{})

	assert.NilError(t, r.Pause(context.Background()))
	assert.Equal(t, engine.stopCalls, 1)
	assert.Equal(t, engine.containers[r.name].Status, "exited")
	assert.Equal(t, r.State(), StateDisconnected)

	assert.NilError(t, r.Resume(context.Background()))
	assert.Equal(t, engine.startCalls, 1)
	assert.Equal(t, r.State(), StateAlive)
	assert.Assert(t, srv.hits.Load() >= 1)
}

func TestResumeSurfacesLivenessFailure(t *testing.T) {
	engine := newFakeEngine()
	srv := newLiveServer(t)
	cfg := testConfig()
	r := connectedRuntime(t, cfg, engine, srv, Options{})

	assert.NilError(t, r.Pause(context.Background()))
	cfg.Sandbox.LivenessTimeout = 50 * time.Millisecond
	srv.status.Store(http.StatusServiceUnavailable)

	err := r.Resume(context.Background())
	assert.Assert(t, errors.Is(err, ErrDisconnected))
	assert.Equal(t, r.State(), StateDisconnectedError)
}

func TestCloseIsIdempotent(t *testing.T) {
	engine := newFakeEngine()
	r := connectedRuntime(t, testConfig(), engine, newLiveServer(t), Options{})

	assert.NilError(t, r.Close(context.Background()))
	assert.NilError(t, r.Close(context.Background()))

	assert.DeepEqual(t, engine.removed, []string{"openhands-runtime-abc"})
	assert.Assert(t, is.Len(engine.containers, 0))
	assert.Equal(t, r.State(), StateDisconnected)
}

func TestCloseKeepsContainer(t *testing.T) {
	tests := []struct {
		name      string
		keepAlive bool
		attach    bool
	}{
		{name: "keep alive", keepAlive: true},
		{name: "attach only", attach: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newFakeEngine()
			srv := newLiveServer(t)
			cfg := testConfig()
			cfg.Sandbox.KeepRuntimeAlive = tt.keepAlive

			owner := connectedRuntime(t, cfg, engine, srv, Options{})
			r := owner
			if tt.attach {
				r = connectedRuntime(t, cfg, engine, srv, Options{AttachToExisting: true})
			}

			assert.NilError(t, r.Close(context.Background()))
			assert.Assert(t, is.Len(engine.removed, 0))
			assert.Assert(t, is.Len(engine.removedAll, 0))
			assert.Assert(t, is.Len(engine.containers, 1))
		})
	}
}

func TestCloseRemovesAllUnderPrefix(t *testing.T) {
	engine := newFakeEngine()
	srv := newLiveServer(t)
	cfg := testConfig()
	cfg.Sandbox.RmAllContainers = true

	connectedRuntime(t, cfg, engine, srv, Options{SessionID: "other"})
	r := connectedRuntime(t, cfg, engine, srv, Options{SessionID: "abc"})

	assert.NilError(t, r.Close(context.Background()))
	assert.DeepEqual(t, engine.removedAll, []string{"openhands-runtime-"})
	assert.Assert(t, is.Len(engine.containers, 0))
}

func TestCloseReportsRemovalFailure(t *testing.T) {
	engine := newFakeEngine()
	r := connectedRuntime(t, testConfig(), engine, newLiveServer(t), Options{})
	engine.removeErr = errBoom

	assert.ErrorIs(t, r.Close(context.Background()), errBoom)
	assert.NilError(t, r.Close(context.Background()))
	assert.Assert(t, is.Len(engine.removed, 1))
}

func TestDeleteMissingContainer(t *testing.T) {
	engine := newFakeEngine()

	Delete(context.Background(), engine, "openhands-runtime-", "xyz")

	assert.DeepEqual(t, engine.removed, []string{"openhands-runtime-xyz"})
}

func TestDeleteSwallowsEngineErrors(t *testing.T) {
	engine := newFakeEngine()
	engine.removeErr = errBoom

	Delete(context.Background(), engine, "openhands-runtime-", "xyz")
	assert.Assert(t, is.Len(engine.removed, 1))
}

func TestShutdownListenerRegisteredOnce(t *testing.T) {
	origAdd := shutdownAdd
	shutdownOnce = sync.Once{}
	t.Cleanup(func() { shutdownAdd = origAdd })

	var listeners []func()
	shutdownAdd = func(fn func()) {
		listeners = append(listeners, fn)
	}

	engine := newFakeEngine()
	srv := newLiveServer(t)
	for _, sid := range []string{"a", "b", "c"} {
		newTestRuntime(t, testConfig(), engine, srv, Options{SessionID: sid})
	}
	assert.Assert(t, is.Len(listeners, 1))

	listeners[0]()
	assert.DeepEqual(t, engine.stoppedAll, []string{"openhands-runtime-"})
}

func TestAccessors(t *testing.T) {
	engine := newFakeEngine()
	srv := newLiveServer(t)
	cfg := testConfig()
	cfg.WorkspaceMountPathInSandbox = "/workspace"
	r := connectedRuntime(t, cfg, engine, srv, Options{})

	ports := r.Ports()
	hosts := r.WebHosts()
	assert.Assert(t, is.Len(hosts, 2))
	for _, p := range ports.App {
		assert.Equal(t, hosts["http://localhost:"+itoa(p)], p)
	}

	editor, err := url.Parse(r.EditorURL(context.Background()))
	assert.NilError(t, err)
	assert.Equal(t, editor.Host, "localhost:"+itoa(ports.Editor))
	assert.Equal(t, editor.Query().Get("tkn"), "secret")
	assert.Equal(t, editor.Query().Get("folder"), "/workspace")

	r.opts.Tokens = staticToken("a&b=c d")
	editor, err = url.Parse(r.EditorURL(context.Background()))
	assert.NilError(t, err)
	assert.Equal(t, editor.Query().Get("tkn"), "a&b=c d")
	assert.Check(t, is.Len(editor.Query(), 2))

	r.opts.Tokens = staticToken("")
	assert.Equal(t, r.EditorURL(context.Background()), "")

	r.opts.Tokens = staticToken("abc")
	cfg.Sandbox.EnableEditor = false
	assert.Equal(t, r.EditorURL(context.Background()), "")
}

func TestNewRequiresSessionID(t *testing.T) {
	_, err := New(testConfig(), newFakeEngine(), Options{})
	assert.Assert(t, err != nil)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, StateAwaitingLiveness.String(), "awaiting-liveness")
	assert.Equal(t, StateDisconnectedError.String(), "disconnected-error")
	assert.Equal(t, State(99).String(), "unknown")
}

type staticToken string

func (t staticToken) Token(context.Context, string) (string, error) {
	return string(t), nil
}
