// ABOUTME: Bubbletea model for the import progress TUI
// ABOUTME: Tracks per-file import state and renders progress and a summary
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sampledeck/sampledeck-go/internal/library"
)

// File states
const (
	StatePending = "pending"
	StateDone    = "done"
	StateFailed  = "failed"
)

// FileStatus is one row of the file list
type FileStatus struct {
	Name   string
	State  string
	Detail string
}

// Model represents the TUI state
type Model struct {
	files     []FileStatus
	completed int
	failed    int
	started   time.Time
	elapsed   time.Duration
	finished  bool

	// Display
	showErrors bool
	width      int
	height     int
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	helpStyle   = lipgloss.NewStyle().Faint(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
)

// NewModel creates a model for importing the named files
func NewModel(names []string) Model {
	files := make([]FileStatus, len(names))
	for i, name := range names {
		files[i] = FileStatus{Name: name, State: StatePending}
	}
	return Model{
		files:   files,
		started: time.Now(),
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case ProgressMsg:
		m.applyProgress(msg)
	case DoneMsg:
		m.finished = true
		m.elapsed = msg.Elapsed
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("SampleDeck Import"))
	b.WriteString("\n\n")
	b.WriteString(m.renderProgress())
	b.WriteString("\n\n")
	b.WriteString(m.renderFiles())

	if m.showErrors {
		b.WriteString(m.renderErrors())
	}

	if m.finished {
		b.WriteString("\n")
		b.WriteString(m.renderSummary())
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("e:Errors  q:Quit"))
	b.WriteString("\n")

	return b.String()
}

// renderProgress renders the bar and counters
func (m Model) renderProgress() string {
	total := len(m.files)
	done := m.completed + m.failed
	if total == 0 {
		return dimStyle.Render("No files")
	}
	return fmt.Sprintf("[%s] %d/%d", renderBar(done, total, 30), done, total)
}

// renderFiles renders the rows that fit in the window
func (m Model) renderFiles() string {
	rows := m.files
	if limit := m.height - 10; m.height > 0 && limit > 0 && len(rows) > limit {
		rows = rows[len(rows)-limit:]
	}

	var b strings.Builder
	for _, f := range rows {
		name := truncate(f.Name, 40)
		switch f.State {
		case StateDone:
			b.WriteString(doneStyle.Render("✓ " + name))
			b.WriteString(dimStyle.Render("  " + f.Detail))
		case StateFailed:
			b.WriteString(failStyle.Render("✗ " + name))
		default:
			b.WriteString(dimStyle.Render("· " + name))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// renderErrors renders the failure details
func (m Model) renderErrors() string {
	if m.failed == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(headerStyle.Render("Errors"))
	b.WriteString("\n")
	for _, f := range m.files {
		if f.State == StateFailed {
			b.WriteString(failStyle.Render(fmt.Sprintf("  %s: %s", f.Name, f.Detail)))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// renderSummary renders the final counts
func (m Model) renderSummary() string {
	return headerStyle.Render(fmt.Sprintf("Imported %d, failed %d in %v",
		m.completed, m.failed, m.elapsed.Round(time.Millisecond)))
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "e":
		m.showErrors = !m.showErrors
	}

	return m, nil
}

// applyProgress updates the row for one finished file
func (m *Model) applyProgress(msg ProgressMsg) {
	if msg.Index < 0 || msg.Index >= len(m.files) {
		return
	}

	f := &m.files[msg.Index]
	if f.State != StatePending {
		return
	}

	if msg.Err != nil {
		f.State = StateFailed
		f.Detail = msg.Err.Error()
		m.failed++
		return
	}

	f.State = StateDone
	f.Detail = fmt.Sprintf("%s %dHz %s %d frames", msg.Kind, msg.NativeRate, channelName(msg.Channels), msg.Frames)
	if msg.OutputPath != "" {
		f.Detail += " → " + msg.OutputPath
	}
	m.completed++
}

// ProgressMsg reports one finished file
type ProgressMsg struct {
	Index      int
	Err        error
	Kind       string
	NativeRate int
	Channels   int
	Frames     int
	OutputPath string
}

// DoneMsg marks the end of the import
type DoneMsg struct {
	Elapsed time.Duration
}

// FromProgress converts an importer progress report
func FromProgress(p library.Progress, outputPath string) ProgressMsg {
	msg := ProgressMsg{Index: p.Result.Index, Err: p.Result.Err, OutputPath: outputPath}
	if s := p.Result.Sample; s != nil {
		msg.Kind = string(s.Kind)
		msg.NativeRate = s.NativeRate
		msg.Channels = s.Buffer.NumChannels()
		msg.Frames = s.Frames()
	}
	return msg
}

// Utility functions
func renderBar(value, max, width int) string {
	filled := 0
	if max > 0 {
		filled = (value * width) / max
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func channelName(channels int) string {
	if channels == 1 {
		return "Mono"
	}
	return "Stereo"
}
