// ============================================================================
// InboxPilot Voice - Hands-free mail assistant
// ============================================================================
//
// Package:     ui
// Description: Terminal console for typed turns and live status
// Author:      Mike Stoffels
// Created:     2025-12-15
// License:     MIT
// ============================================================================

package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/inboxpilot/voicepilot/internal/voice"
)

// Logo is shown in the console header
const Logo = "◉ InboxPilot Voice"

// maxLines bounds the transcript kept in the console
const maxLines = 500

// Controller is the part of the voice controller the console drives
type Controller interface {
	SubmitText(text string) error
	Toggle() error
	Stop()
	SetMode(mode voice.Mode) error
	ResolveConfirmation(approve bool) error
	Status() voice.Status
}

// Messages delivered by the sink
type statusMsg struct{ status voice.Status }

type messageMsg struct{ msg voice.Message }

// actionDoneMsg reports the result of a controller call made from a key
type actionDoneMsg struct {
	action string
	err    error
}

// ConsoleSink forwards controller output to the console program. Render and
// Message never block; when the buffer is full the event is dropped.
type ConsoleSink struct {
	events chan tea.Msg
}

var _ voice.StatusSink = (*ConsoleSink)(nil)

// NewConsoleSink creates a sink with room for a burst of updates
func NewConsoleSink() *ConsoleSink {
	return &ConsoleSink{events: make(chan tea.Msg, 128)}
}

// Render queues a status update
func (s *ConsoleSink) Render(st voice.Status) {
	s.push(statusMsg{status: st})
}

// Message queues a user-visible message
func (s *ConsoleSink) Message(msg voice.Message) {
	s.push(messageMsg{msg: msg})
}

func (s *ConsoleSink) push(msg tea.Msg) {
	select {
	case s.events <- msg:
	default:
	}
}

// waitForActivity returns a command that waits for the next sink event
func (s *ConsoleSink) waitForActivity() tea.Cmd {
	return func() tea.Msg {
		return <-s.events
	}
}

// consoleLine is one transcript entry
type consoleLine struct {
	user  bool
	level voice.MessageLevel
	text  string
	at    time.Time
}

// Model is the Bubbletea model of the console
type Model struct {
	ctrl Controller
	sink *ConsoleSink

	width  int
	height int
	ready  bool

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	status voice.Status
	lines  []consoleLine
	now    func() time.Time
}

// NewModel creates the console model
func NewModel(ctrl Controller, sink *ConsoleSink) Model {
	ti := textinput.New()
	ti.Placeholder = "Digite um comando (ex.: ler email 1)..."
	ti.Prompt = "› "
	ti.CharLimit = 500
	ti.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ColorPrimary)

	return Model{
		ctrl:    ctrl,
		sink:    sink,
		input:   ti,
		spinner: s,
		status:  ctrl.Status(),
		now:     time.Now,
	}
}

// RunConsole runs the console until the user quits
func RunConsole(ctrl Controller, sink *ConsoleSink) error {
	p := tea.NewProgram(NewModel(ctrl, sink), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.sink.waitForActivity())
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 2 // Logo + status bar
		footerHeight := 5 // Input box + help
		viewportHeight := msg.Height - headerHeight - footerHeight
		if viewportHeight < 1 {
			viewportHeight = 1
		}

		if !m.ready {
			m.viewport = viewport.New(msg.Width-2, viewportHeight)
			m.viewport.YPosition = headerHeight
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 2
			m.viewport.Height = viewportHeight
		}
		m.input.Width = msg.Width - 8
		m.updateViewportContent()

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case statusMsg:
		m.status = msg.status
		cmds = append(cmds, m.sink.waitForActivity())

	case messageMsg:
		at := msg.msg.At
		if at.IsZero() {
			at = m.now()
		}
		m.appendLine(consoleLine{level: msg.msg.Level, text: msg.msg.Text, at: at})
		cmds = append(cmds, m.sink.waitForActivity())

	case actionDoneMsg:
		if msg.err != nil {
			m.appendLine(consoleLine{
				level: voice.LevelError,
				text:  fmt.Sprintf("%s: %s", msg.action, userMessage(msg.err)),
				at:    m.now(),
			})
		}
	}

	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "enter":
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		m.input.Reset()
		m.appendLine(consoleLine{user: true, text: text, at: m.now()})
		return m, m.call("Comando", func() error { return m.ctrl.SubmitText(text) })

	case "ctrl+r":
		return m, m.call("Gravação", m.ctrl.Toggle)

	case "esc":
		return m, m.call("Parar", func() error {
			m.ctrl.Stop()
			return nil
		})

	case "ctrl+o":
		next := nextMode(m.status.Mode)
		return m, m.call("Modo", func() error { return m.ctrl.SetMode(next) })

	case "ctrl+y":
		return m, m.call("Confirmação", func() error { return m.ctrl.ResolveConfirmation(true) })

	case "ctrl+n":
		return m, m.call("Confirmação", func() error { return m.ctrl.ResolveConfirmation(false) })

	case "pgup":
		m.viewport.HalfViewUp()
		return m, nil

	case "pgdown":
		m.viewport.HalfViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// call runs fn off the update loop and reports its error
func (m Model) call(action string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{action: action, err: fn()}
	}
}

func (m *Model) appendLine(l consoleLine) {
	m.lines = append(m.lines, l)
	if len(m.lines) > maxLines {
		m.lines = m.lines[len(m.lines)-maxLines:]
	}
	m.updateViewportContent()
}

func (m *Model) updateViewportContent() {
	if !m.ready {
		return
	}
	var content strings.Builder
	for _, l := range m.lines {
		content.WriteString(TimestampStyle.Render(l.at.Format("15:04:05")))
		content.WriteString(" ")
		if l.user {
			content.WriteString(UserLineStyle.Render("Você: " + l.text))
		} else {
			content.WriteString(messageStyle(l.level).Width(max(m.width-12, 10)).Render(l.text))
		}
		content.WriteString("\n")
	}
	m.viewport.SetContent(content.String())
	m.viewport.GotoBottom()
}

// View implements tea.Model
func (m Model) View() string {
	if !m.ready {
		return "Iniciando InboxPilot Voice..."
	}

	var b strings.Builder
	b.WriteString(LogoStyle.Render(Logo))
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(InputBorderStyle.Width(max(m.width-4, 10)).Render(m.input.View()))
	b.WriteString("\n")
	b.WriteString(HelpStyle.Render("enter enviar · ctrl+r gravar · esc parar · ctrl+o modo · ctrl+y/ctrl+n confirmar · ctrl+c sair"))
	return b.String()
}

func (m Model) renderStatusBar() string {
	st := m.status
	badge := stateStyle(st.State).Render(st.State.Icon() + " " + st.State.Label())
	if st.State == voice.StateProcessing || st.Busy {
		badge += " " + m.spinner.View()
	}

	parts := []string{
		badge,
		StatusBarStyle.Render("modo: " + string(st.Mode)),
		StatusBarStyle.Render(queueTitle(st.Queue)),
	}
	if st.Snapshot > 0 {
		parts = append(parts, StatusBarStyle.Render(fmt.Sprintf("%d emails", st.Snapshot)))
	}
	if st.Pending != "" {
		parts = append(parts, PendingStyle.Render("aguardando confirmação"))
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, parts...)
}

func nextMode(m voice.Mode) voice.Mode {
	switch m {
	case voice.ModeManual:
		return voice.ModeAuto
	case voice.ModeAuto:
		return voice.ModeAlwaysOn
	}
	return voice.ModeManual
}

func userMessage(err error) string {
	if uf, ok := err.(voice.UserFacing); ok {
		return uf.UserMessage()
	}
	return err.Error()
}
