// Package console is the terminal control surface: the same operations as
// the web page, driven from the keyboard.
package console

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/audiolibrelab/robocapture/internal/service"
)

const refreshInterval = 500 * time.Millisecond

type statusMsg struct {
	status service.Status
}

type actionMsg struct {
	action string
	err    error
}

type tickMsg time.Time

type closedMsg struct{}

// Model is the Bubble Tea model of the console.
type Model struct {
	ctx context.Context
	svc service.Service

	keys     keyMap
	help     help.Model
	label    textinput.Model
	editing  bool
	busy     bool
	status   service.Status
	message  string
	failed   bool
	closing  bool
	width    int
	interval time.Duration
}

// New creates the console model over svc.
func New(ctx context.Context, svc service.Service) Model {
	label := textinput.New()
	label.Placeholder = "label"
	label.CharLimit = 64
	label.Prompt = "Label: "

	return Model{
		ctx:      ctx,
		svc:      svc,
		keys:     defaultKeys(),
		help:     help.New(),
		label:    label,
		status:   svc.Status(),
		interval: refreshInterval,
	}
}

// Run blocks until the operator closes the console.
func Run(ctx context.Context, svc service.Service) error {
	_, err := tea.NewProgram(New(ctx, svc), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refreshCmd(), m.tickCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tickMsg:
		if m.closing {
			return m, nil
		}
		return m, tea.Batch(m.refreshCmd(), m.tickCmd())

	case statusMsg:
		m.status = msg.status
		return m, nil

	case actionMsg:
		m.busy = false
		if msg.err != nil {
			m.failed = true
			m.message = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
		} else {
			m.failed = false
			m.message = msg.action + " done"
		}
		return m, m.refreshCmd()

	case closedMsg:
		return m, tea.Quit

	case tea.KeyMsg:
		if m.editing {
			return m.updateLabel(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		if m.closing {
			return m, nil
		}
		m.closing = true
		m.message = "Closing..."
		return m, m.closeCmd()
	}
	if key.Matches(msg, m.keys.Help) {
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}
	if m.busy || m.closing {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Connect):
		return m.run("Connect", func(ctx context.Context) error {
			return m.svc.Connect(ctx, "", 0)
		})
	case key.Matches(msg, m.keys.Start):
		return m.run("Start", m.svc.Start)
	case key.Matches(msg, m.keys.Stop):
		return m.run("Stop", m.svc.Stop)
	case key.Matches(msg, m.keys.Camera):
		return m.run("Camera switch", func(ctx context.Context) error {
			_, err := m.svc.SwitchCamera(ctx)
			return err
		})
	case key.Matches(msg, m.keys.Audio):
		return m.run("Audio switch", func(context.Context) error {
			_, err := m.svc.SwitchAudio()
			return err
		})
	case key.Matches(msg, m.keys.Sonar):
		enabled := !m.status.Options.SonarLogging
		return m.run("Sonar logging", func(context.Context) error {
			_, err := m.svc.SetOptions(service.OptionsUpdate{SonarLogging: &enabled})
			return err
		})
	case key.Matches(msg, m.keys.Touch):
		enabled := !m.status.Options.TouchLogging
		return m.run("Touch logging", func(context.Context) error {
			_, err := m.svc.SetOptions(service.OptionsUpdate{TouchLogging: &enabled})
			return err
		})
	case key.Matches(msg, m.keys.Label):
		m.editing = true
		m.label.SetValue(m.status.Options.Label)
		m.label.CursorEnd()
		return m, m.label.Focus()
	}
	return m, nil
}

func (m Model) updateLabel(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.editing = false
		m.label.Blur()
		value := m.label.Value()
		return m.run("Label", func(context.Context) error {
			_, err := m.svc.SetOptions(service.OptionsUpdate{Label: &value})
			return err
		})
	case tea.KeyEsc:
		m.editing = false
		m.label.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.label, cmd = m.label.Update(msg)
	return m, cmd
}

// run executes op off the update loop and reports back with an actionMsg.
func (m Model) run(action string, op func(ctx context.Context) error) (tea.Model, tea.Cmd) {
	m.busy = true
	m.message = action + "..."
	ctx := m.ctx
	return m, func() tea.Msg {
		return actionMsg{action: action, err: op(ctx)}
	}
}

func (m Model) refreshCmd() tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		return statusMsg{status: svc.Status()}
	}
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) closeCmd() tea.Cmd {
	svc, ctx := m.svc, context.WithoutCancel(m.ctx)
	return func() tea.Msg {
		svc.Close(ctx)
		return closedMsg{}
	}
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("robocapture"))
	if m.status.Address != "" {
		b.WriteString(mutedStyle.Render("  " + m.status.Address))
	}
	b.WriteString("\n\n")

	display := string(m.status.Display)
	style, ok := statusStyles[display]
	if !ok {
		style = mutedStyle
	}
	line := style.Render(display)
	if m.status.Elapsed != "" {
		line += "  " + m.status.Elapsed
	}
	if m.status.Current != nil {
		line += mutedStyle.Render("  " + m.status.Current.Stem)
	}

	label := m.status.Options.Label
	if label == "" {
		label = mutedStyle.Render("(none)")
	}
	rows := []string{
		line,
		"",
		fmt.Sprintf("Camera:  %s", m.status.Camera),
		fmt.Sprintf("Audio:   %s", m.status.AudioFormat),
		fmt.Sprintf("Label:   %s", label),
		fmt.Sprintf("Sonar:   %s", onOff(m.status.Options.SonarLogging)),
		fmt.Sprintf("Touch:   %s", onOff(m.status.Options.TouchLogging)),
	}
	if m.status.Last != nil && m.status.Current == nil {
		rows = append(rows, "", mutedStyle.Render("Last: "+m.status.Last.Stem))
	}
	b.WriteString(paneStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)))
	b.WriteString("\n")

	if m.editing {
		b.WriteString(m.label.View())
		b.WriteString("\n")
	}
	if m.message != "" {
		if m.failed {
			b.WriteString(errorStyle.Render(m.message))
		} else {
			b.WriteString(mutedStyle.Render(m.message))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func onOff(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}
