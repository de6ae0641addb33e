// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program for import progress
package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sampledeck/sampledeck-go/internal/library"
)

// Progress drives a running import TUI
type Progress struct {
	program *tea.Program
}

// Run creates the TUI program for the named files. The caller runs it
// with program.Run and reports progress through the returned handle.
func Run(names []string) (*tea.Program, *Progress) {
	p := tea.NewProgram(NewModel(names))
	return p, &Progress{program: p}
}

// Report forwards an importer progress report
func (p *Progress) Report(report library.Progress, outputPath string) {
	p.program.Send(FromProgress(report, outputPath))
}

// Done marks the import finished
func (p *Progress) Done(elapsed time.Duration) {
	p.program.Send(DoneMsg{Elapsed: elapsed})
}
