package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevNoColor := Out, color.NoColor
	Out = &buf
	color.NoColor = true
	t.Cleanup(func() {
		Out = prevOut
		color.NoColor = prevNoColor
	})
	return &buf
}

func TestMessages(t *testing.T) {
	buf := capture(t)

	Info("starting %s", "abc")
	Success("ready")
	Warn("slow")
	Fail("broken")

	want := "  → starting abc\n  ✔ ready\n  ○ slow\n  ✘ broken\n"
	if got := buf.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestHeaderFooter(t *testing.T) {
	buf := capture(t)

	Header()
	Footer()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", buf.String())
	}
	if !strings.Contains(lines[0], "sandboxrt") {
		t.Errorf("header %q is missing the tool name", lines[0])
	}
	if !strings.HasPrefix(lines[1], "  └") {
		t.Errorf("footer = %q", lines[1])
	}
}

func TestAskYesNo(t *testing.T) {
	tests := []struct {
		input      string
		defaultYes bool
		want       bool
	}{
		{"\n", true, true},
		{"\n", false, false},
		{"y\n", false, true},
		{"YES\n", false, true},
		{"n\n", true, false},
		{"maybe\n", true, false},
		{"", true, true},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			capture(t)
			prevIn := In
			In = strings.NewReader(tt.input)
			t.Cleanup(func() { In = prevIn })

			if got := AskYesNo("Continue?", tt.defaultYes); got != tt.want {
				t.Errorf("AskYesNo(%q, %v) = %v, want %v", tt.input, tt.defaultYes, got, tt.want)
			}
		})
	}
}
