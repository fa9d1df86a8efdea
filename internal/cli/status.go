package cli

import (
	"github.com/rickgorman/sandboxrt/internal/runtime"
	"github.com/rickgorman/sandboxrt/internal/ui"
)

var statusMessages = map[runtime.Status]string{
	runtime.StatusStartingRuntime:    "Starting runtime",
	runtime.StatusStartingContainer:  "Building runtime image",
	runtime.StatusPreparingContainer: "Preparing container",
	runtime.StatusContainerStarted:   "Container started",
	runtime.StatusWaitingForClient:   "Waiting for the sandbox to come up",
}

func printStatus(s runtime.Status) {
	if s == runtime.StatusReady {
		ui.Success("Sandbox ready")
		return
	}
	if msg, ok := statusMessages[s]; ok {
		ui.Info("%s", msg)
		return
	}
	ui.DimMsg("%s", string(s))
}
