package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

const (
	BoxWidth = 46
	brand    = "sandboxrt"
)

var (
	Bold   = color.New(color.Bold).SprintFunc()
	Dim    = color.New(color.Faint).SprintFunc()
	Green  = color.New(color.FgGreen).SprintFunc()
	Cyan   = color.New(color.FgCyan).SprintFunc()
	Yellow = color.New(color.FgYellow).SprintFunc()
	Red    = color.New(color.FgRed).SprintFunc()

	// Out receives all status output. Stdout is left for data.
	Out io.Writer = os.Stderr
)

// Header prints the top border with the tool name.
func Header() {
	border := strings.Repeat("─", BoxWidth-len(brand)-3)
	fmt.Fprintf(Out, "  ┌ %s %s\n", Bold(brand), Dim(border))
}

// Footer prints the bottom border.
func Footer() {
	fmt.Fprintf(Out, "  └%s\n", Dim(strings.Repeat("─", BoxWidth-1)))
}

// Info prints an informational message with a cyan arrow.
func Info(format string, args ...any) {
	line(Cyan("→"), format, args...)
}

// Success prints a success message with a green checkmark.
func Success(format string, args ...any) {
	line(Green("✔"), format, args...)
}

// Fail prints an error message with a red X.
func Fail(format string, args ...any) {
	line(Red("✘"), format, args...)
}

// Warn prints a warning message with a yellow circle.
func Warn(format string, args ...any) {
	line(Yellow("○"), format, args...)
}

// DimMsg prints a dimmed message.
func DimMsg(format string, args ...any) {
	fmt.Fprintf(Out, "  %s\n", Dim(fmt.Sprintf(format, args...)))
}

// BlankLine prints an empty line.
func BlankLine() {
	fmt.Fprintln(Out)
}

func line(mark, format string, args ...any) {
	fmt.Fprintf(Out, "  %s %s\n", mark, fmt.Sprintf(format, args...))
}
