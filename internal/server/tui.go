// ABOUTME: Server TUI for displaying connected clients and conversions
// ABOUTME: Real-time service status display using bubbletea
package server

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ServerTUI manages the server TUI
type ServerTUI struct {
	program  *tea.Program
	updates  chan ServerStatus
	quitChan chan struct{} // Signal to stop the server
	done     chan struct{}
	stopOnce sync.Once
}

// ServerStatus holds server state for TUI
type ServerStatus struct {
	Name       string
	Port       int
	Clients    []ClientInfo
	Samples    int
	LastSample string
}

// ClientInfo holds client information for display
type ClientInfo struct {
	Addr        string
	ID          string
	State       string
	Conversions int
}

// tuiModel is the bubbletea model for server TUI
type tuiModel struct {
	status    ServerStatus
	startTime time.Time
	quitting  bool
	quitChan  chan struct{} // Channel to signal server stop
}

type tickMsg time.Time
type statusMsg ServerStatus

func (m tuiModel) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.quitting = true
			// Signal the server to stop
			select {
			case m.quitChan <- struct{}{}:
			default:
			}
			return m, tea.Quit
		}

	case tickMsg:
		return m, tickEvery()

	case statusMsg:
		m.status = ServerStatus(msg)
		return m, nil
	}

	return m, nil
}

var (
	tuiTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	tuiLabelStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	tuiValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	tuiHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
	tuiBusyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	tuiHelpStyle   = lipgloss.NewStyle().Faint(true)
)

func (m tuiModel) View() string {
	if m.quitting {
		return "Shutting down server...\n"
	}

	var b strings.Builder
	b.WriteString(tuiTitleStyle.Render("SampleDeck Converter"))
	b.WriteString("\n\n")

	rows := [][2]string{
		{"Server", m.status.Name},
		{"Endpoint", fmt.Sprintf("ws://0.0.0.0:%d/convert", m.status.Port)},
		{"Uptime", time.Since(m.startTime).Round(time.Second).String()},
		{"Library", fmt.Sprintf("%d samples", m.status.Samples)},
	}
	if m.status.LastSample != "" {
		rows = append(rows, [2]string{"Last", m.status.LastSample})
	}
	for _, row := range rows {
		b.WriteString(tuiLabelStyle.Render(fmt.Sprintf("%-9s", row[0]+":")))
		b.WriteString(tuiValueStyle.Render(row[1]))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(tuiHeaderStyle.Render(fmt.Sprintf("Clients (%d)", len(m.status.Clients))))
	b.WriteString("\n")
	b.WriteString(renderClients(m.status.Clients))

	b.WriteString("\n")
	b.WriteString(tuiHelpStyle.Render("q:Quit"))
	return b.String()
}

// renderClients renders one line per connection
func renderClients(clients []ClientInfo) string {
	if len(clients) == 0 {
		return tuiValueStyle.Render("  none") + "\n"
	}

	var b strings.Builder
	for _, c := range clients {
		state := tuiValueStyle.Render(c.State)
		if c.State == "converting" {
			state = tuiBusyStyle.Render(c.State)
		}
		fmt.Fprintf(&b, "  %-8s %-22s %s  %d converted\n", shortID(c.ID), c.Addr, state, c.Conversions)
	}
	return b.String()
}

// shortID returns the first 8 characters of a client ID
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// NewServerTUI creates a new server TUI
func NewServerTUI() *ServerTUI {
	return &ServerTUI{
		updates:  make(chan ServerStatus, 10),
		quitChan: make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Start runs the TUI until it quits
func (t *ServerTUI) Start(serverName string, port int) error {
	m := tuiModel{
		status: ServerStatus{
			Name:    serverName,
			Port:    port,
			Clients: []ClientInfo{},
		},
		startTime: time.Now(),
		quitChan:  t.quitChan,
	}

	t.program = tea.NewProgram(m, tea.WithAltScreen())

	go func() {
		for {
			select {
			case status := <-t.updates:
				t.program.Send(statusMsg(status))
			case <-t.done:
				return
			}
		}
	}()

	_, err := t.program.Run()
	return err
}

// Update sends a status update to the TUI
func (t *ServerTUI) Update(status ServerStatus) {
	select {
	case t.updates <- status:
	default:
		// Don't block if channel is full
	}
}

// Stop stops the TUI. Updates sent afterwards are dropped.
func (t *ServerTUI) Stop() {
	t.stopOnce.Do(func() {
		close(t.done)
		if t.program != nil {
			t.program.Quit()
		}
	})
}

// QuitChan returns the channel that signals when user wants to quit
func (t *ServerTUI) QuitChan() <-chan struct{} {
	return t.quitChan
}
