package logstream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/docker/docker/pkg/stdcopy"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

type fakeSource struct {
	data []byte
	err  error
}

func (f *fakeSource) FollowLogs(_ context.Context, _ string) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

func multiplexed(t *testing.T, stdout, stderr string) []byte {
	t.Helper()
	var buf bytes.Buffer
	if _, err := stdcopy.NewStdWriter(&buf, stdcopy.Stdout).Write([]byte(stdout)); err != nil {
		t.Fatal(err)
	}
	if _, err := stdcopy.NewStdWriter(&buf, stdcopy.Stderr).Write([]byte(stderr)); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestStreamerLogsEachLine(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	src := &fakeSource{data: multiplexed(t, "starting server\nlistening on 30001\npartial", "warning: slow disk\n")}

	s, err := Start(context.Background(), src, "openhands-runtime-abc", logrus.NewEntry(logger))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not finish")
	}
	s.Close()
	s.Close()

	entries := hook.AllEntries()
	if len(entries) != 4 {
		t.Fatalf("expected 4 log lines, got %d", len(entries))
	}

	want := map[string]string{
		"starting server":    "stdout",
		"listening on 30001": "stdout",
		"partial":            "stdout",
		"warning: slow disk": "stderr",
	}
	for _, e := range entries {
		stream, ok := want[e.Message]
		if !ok {
			t.Errorf("unexpected line %q", e.Message)
			continue
		}
		if e.Data["stream"] != stream {
			t.Errorf("line %q logged on %v, want %s", e.Message, e.Data["stream"], stream)
		}
		if e.Data["container"] != "openhands-runtime-abc" {
			t.Errorf("container field = %v", e.Data["container"])
		}
	}
}

func TestStartFailure(t *testing.T) {
	logger, _ := test.NewNullLogger()

	_, err := Start(context.Background(), &fakeSource{err: errors.New("no such container")}, "x", logrus.NewEntry(logger))
	if err == nil {
		t.Fatal("Start() expected error")
	}
}

func TestCloseStopsBlockedStream(t *testing.T) {
	logger, _ := test.NewNullLogger()
	pr, pw := io.Pipe()
	defer pw.Close()

	s, err := Start(context.Background(), pipeSource{pr}, "x", logrus.NewEntry(logger))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	closed := make(chan struct{})
	go func() {
		s.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close() did not return")
	}
}

type pipeSource struct {
	r *io.PipeReader
}

func (p pipeSource) FollowLogs(context.Context, string) (io.ReadCloser, error) {
	return p.r, nil
}
