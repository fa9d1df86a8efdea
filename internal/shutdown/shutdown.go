// Package shutdown keeps the process-wide list of work to run on exit.
//
// Listeners run once, in registration order, either when Run is called
// or when the process receives SIGINT or SIGTERM after Install.
// Long-running loops poll ShouldExit to stop early.
package shutdown

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/sirupsen/logrus"
)

// Registry holds shutdown listeners.
type Registry struct {
	mu        sync.Mutex
	listeners []func()

	exiting atomic.Bool
	runOnce sync.Once

	installOnce sync.Once
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{}
}

// Add registers fn.
func (r *Registry) Add(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// ShouldExit reports whether shutdown has begun.
func (r *Registry) ShouldExit() bool {
	return r.exiting.Load()
}

// Run marks the registry as exiting and runs every listener. Later calls do nothing.
// A panicking listener is logged and does not stop the others.
func (r *Registry) Run() {
	r.exiting.Store(true)
	r.runOnce.Do(func() {
		r.mu.Lock()
		fns := append([]func(){}, r.listeners...)
		r.mu.Unlock()

		for _, fn := range fns {
			runListener(fn)
		}
	})
}

func runListener(fn func()) {
	defer func() {
		if p := recover(); p != nil {
			logrus.WithField("panic", p).Error("Shutdown listener panicked")
		}
	}()
	fn()
}

// Install runs the listeners when the process receives SIGINT or SIGTERM.
// Only the first call installs the handler.
func (r *Registry) Install() {
	r.installOnce.Do(func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		go func() {
			sig := <-c
			logrus.WithField("signal", sig.String()).Info("Received signal, shutting down")
			r.Run()
		}()
	})
}

var defaultRegistry = New()

// Add registers fn with the process-wide registry.
func Add(fn func()) { defaultRegistry.Add(fn) }

// ShouldExit reports whether the process-wide registry is shutting down.
func ShouldExit() bool { return defaultRegistry.ShouldExit() }

// Run runs the process-wide listeners.
func Run() { defaultRegistry.Run() }

// Install hooks the process-wide registry to SIGINT and SIGTERM.
func Install() { defaultRegistry.Install() }
