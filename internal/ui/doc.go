// Package ui formats terminal output for the sandboxrt CLI.
//
// Status lines go to ui.Out (stderr by default) so stdout stays usable for
// listings and URLs:
//
//	ui.Header()
//	ui.Info("Starting sandbox %s", name)
//	ui.Success("Sandbox ready")
//	ui.Footer()
//
// Marks:
//   - Info:    → cyan arrow
//   - Success: ✔ green checkmark
//   - Fail:    ✘ red X
//   - Warn:    ○ yellow circle
//
// AskYesNo reads its answer from ui.In.
package ui
