// ABOUTME: Server TUI showing sessions and playing sounds
// ABOUTME: Real-time status display using bubbletea
package server

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Status holds the server state snapshot rendered by the TUI.
type Status struct {
	Sessions int
	Sounds   int
	Playing  []string
}

// StatusTUI manages the server status display.
type StatusTUI struct {
	program  *tea.Program
	name     string
	port     int
	status   func() Status
	quitChan chan struct{}
}

// NewStatusTUI creates a TUI that pulls fresh state via status on every tick.
func NewStatusTUI(name string, port int, status func() Status) *StatusTUI {
	return &StatusTUI{
		name:     name,
		port:     port,
		status:   status,
		quitChan: make(chan struct{}, 1),
	}
}

type tuiModel struct {
	name      string
	port      int
	status    func() Status
	latest    Status
	startTime time.Time
	quitting  bool
	quitChan  chan struct{}
}

type tickMsg time.Time

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tickEvery()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.quitting = true
			select {
			case m.quitChan <- struct{}{}:
			default:
			}
			return m, tea.Quit
		}

	case tickMsg:
		m.latest = m.status()
		return m, tickEvery()
	}

	return m, nil
}

func (m tuiModel) View() string {
	if m.quitting {
		return "Shutting down server...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		MarginBottom(1)

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86"))

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("250"))

	playingStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("220"))

	var b strings.Builder

	b.WriteString(titleStyle.Render("Soundboard Server"))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("Server: "))
	b.WriteString(valueStyle.Render(m.name))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Port: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d", m.port)))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Uptime: "))
	b.WriteString(valueStyle.Render(time.Since(m.startTime).Round(time.Second).String()))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Sessions: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d", m.latest.Sessions)))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Sounds: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d", m.latest.Sounds)))
	b.WriteString("\n\n")

	b.WriteString(playingStyle.Render(fmt.Sprintf("Now Playing (%d)", len(m.latest.Playing))))
	b.WriteString("\n\n")

	if len(m.latest.Playing) == 0 {
		b.WriteString(valueStyle.Render("  Silence"))
		b.WriteString("\n")
	} else {
		for _, id := range m.latest.Playing {
			b.WriteString(fmt.Sprintf("  • %s\n", id))
		}
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Faint(true).Render("Press 'q' or Ctrl+C to quit"))

	return b.String()
}

// Start runs the TUI until quit.
func (t *StatusTUI) Start() error {
	m := tuiModel{
		name:      t.name,
		port:      t.port,
		status:    t.status,
		startTime: time.Now(),
		quitChan:  t.quitChan,
	}

	t.program = tea.NewProgram(m, tea.WithAltScreen())
	_, err := t.program.Run()
	return err
}

// Stop stops the TUI.
func (t *StatusTUI) Stop() {
	if t.program != nil {
		t.program.Quit()
	}
}

// QuitChan returns the channel that signals when the user wants to quit.
func (t *StatusTUI) QuitChan() <-chan struct{} {
	return t.quitChan
}
