// Package logstream tails a container's output into a logger.
package logstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/docker/docker/pkg/stdcopy"
	"github.com/sirupsen/logrus"
)

// Source opens a following log stream in the engine's multiplexed format.
type Source interface {
	FollowLogs(ctx context.Context, name string) (io.ReadCloser, error)
}

// Streamer forwards each log line of one container to a logrus entry.
type Streamer struct {
	cancel context.CancelFunc
	done   chan struct{}

	closeOnce sync.Once
}

// Start begins tailing name. The stream runs until Close is called,
// ctx is cancelled, or the container stops producing output.
func Start(ctx context.Context, src Source, name string, log *logrus.Entry) (*Streamer, error) {
	ctx, cancel := context.WithCancel(ctx)

	rc, err := src.FollowLogs(ctx, name)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("following logs of %s: %w", name, err)
	}

	log = log.WithField("container", name)
	s := &Streamer{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(s.done)
		defer rc.Close()

		stdout := &lineWriter{log: log.WithField("stream", "stdout")}
		stderr := &lineWriter{log: log.WithField("stream", "stderr")}
		if _, err := stdcopy.StdCopy(stdout, stderr, rc); err != nil && ctx.Err() == nil {
			log.WithError(err).Debug("Log stream ended")
		}
		stdout.flush()
		stderr.flush()
	}()

	// Closing the reader unblocks StdCopy when the transport ignores ctx.
	go func() {
		select {
		case <-ctx.Done():
			rc.Close()
		case <-s.done:
		}
	}()

	return s, nil
}

// Close stops the stream and waits for buffered lines to be logged. Safe to call more than once.
func (s *Streamer) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
	})
}

type lineWriter struct {
	log *logrus.Entry
	buf bytes.Buffer
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadBytes('\n')
		if err != nil {
			// Partial line; keep it for the next write.
			w.buf.Reset()
			w.buf.Write(line)
			return len(p), nil
		}
		w.emit(line)
	}
}

func (w *lineWriter) flush() {
	if w.buf.Len() > 0 {
		w.emit(w.buf.Bytes())
		w.buf.Reset()
	}
}

func (w *lineWriter) emit(line []byte) {
	line = bytes.TrimRight(line, "\r\n")
	if len(line) == 0 {
		return
	}
	w.log.Debug(string(line))
}
