package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fakeyudi/gazetrace/internal/dispatch"
	"github.com/fakeyudi/gazetrace/internal/protocol"
)

// liveBacklog bounds how many recent updates the monitor keeps.
const liveBacklog = 500

// UpdateMsg carries one realtime update into the monitor.
type UpdateMsg dispatch.Update

// StatusMsg carries a tracker status or error line into the monitor.
type StatusMsg struct {
	Text  string
	Error bool
}

// LiveModel shows realtime updates for a running session.
type LiveModel struct {
	title   string
	updates []dispatch.Update
	hits    int
	fails   int
	status  StatusMsg
	follow  bool
	vp      viewport.Model
	width   int
	height  int
	ready   bool
}

// NewLiveModel returns an empty monitor titled title.
func NewLiveModel(title string) LiveModel {
	return LiveModel{title: title, follow: true, status: StatusMsg{Text: "waiting for tracker"}}
}

func (m LiveModel) Init() tea.Cmd { return nil }

func (m LiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "f":
			m.follow = !m.follow
			if m.follow {
				m.vp.GotoBottom()
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.vp, cmd = m.vp.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.vp = viewport.New(m.width, max(m.height-3, 1))
		m.ready = true
		m.refresh()
		return m, nil

	case UpdateMsg:
		u := dispatch.Update(msg)
		if u.Hit {
			m.hits++
		} else {
			m.fails++
		}
		m.updates = append(m.updates, u)
		if over := len(m.updates) - liveBacklog; over > 0 {
			m.updates = append(m.updates[:0], m.updates[over:]...)
		}
		m.refresh()
		return m, nil

	case StatusMsg:
		m.status = msg
		return m, nil
	}
	return m, nil
}

func (m *LiveModel) refresh() {
	if !m.ready {
		return
	}
	var sb strings.Builder
	for _, u := range m.updates {
		sb.WriteString(formatUpdate(u) + "\n")
	}
	m.vp.SetContent(sb.String())
	if m.follow {
		m.vp.GotoBottom()
	}
}

func formatUpdate(u dispatch.Update) string {
	ts := timeStyle.Render(fmt.Sprintf("%10.3f", u.Timestamp))
	if !u.Hit {
		return fmt.Sprintf("  %s  %s %s", ts, failStyle.Render("✗"), dimStyle.Render(u.Remark))
	}
	line := fmt.Sprintf("  %s  %s %d:%d %-20s", ts, hitStyle.Render("✓"), u.Line, u.Column, u.Word)
	if u.TokenType != "" {
		line += " " + dimStyle.Render(u.TokenType)
	}
	return line
}

func (m LiveModel) View() string {
	if !m.ready {
		return "Loading…"
	}
	title := titleStyle.Width(m.width).Render("  gazetrace  " + m.title)

	status := m.status.Text
	if m.status.Error {
		status = failStyle.Render(status)
	}
	counts := fmt.Sprintf("%s %d  %s %d  %s",
		hitStyle.Render("hits"), m.hits, failStyle.Render("fails"), m.fails, dimStyle.Render(status))
	header := lipgloss.NewStyle().Background(lipgloss.Color("235")).Width(m.width).Render(" " + counts)

	follow := "on"
	if !m.follow {
		follow = "off"
	}
	statusBar := statusBarStyle.Width(m.width).Render("  ↑/↓ scroll  f follow (" + follow + ")  q quit")

	return lipgloss.JoinVertical(lipgloss.Left, title, header, m.vp.View(), statusBar)
}

// Live runs a LiveModel and feeds it from dispatcher callbacks.
type Live struct {
	prog *tea.Program
}

// NewLive prepares a monitor program. opts are passed to tea.NewProgram.
func NewLive(title string, opts ...tea.ProgramOption) *Live {
	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen()}
	}
	return &Live{prog: tea.NewProgram(NewLiveModel(title), opts...)}
}

// Listener forwards realtime updates to the monitor. Sends block until the
// program reads them and are dropped once it has exited.
func (l *Live) Listener() dispatch.Listener {
	return func(u dispatch.Update) { l.prog.Send(UpdateMsg(u)) }
}

// StatusListener forwards tracker status and error events to the monitor.
func (l *Live) StatusListener() dispatch.StatusListener {
	return func(ev protocol.Event) {
		switch ev.Kind {
		case protocol.KindStatus:
			l.prog.Send(StatusMsg{Text: "tracker: " + ev.Status})
		case protocol.KindError:
			l.prog.Send(StatusMsg{Text: fmt.Sprintf("tracker error %s: %s", ev.ErrorType, ev.Message), Error: true})
		}
	}
}

// Run blocks until the user quits or Quit is called.
func (l *Live) Run() error {
	_, err := l.prog.Run()
	return err
}

func (l *Live) Quit() { l.prog.Quit() }
