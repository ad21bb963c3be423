// Package tui provides Bubble Tea views over gaze traces: a tabbed viewer
// for a recorded trace and a live monitor for a running session.
package tui

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fakeyudi/gazetrace/internal/trace"
)

// ── Styles ────────────

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245")).
				Background(lipgloss.Color("235")).
				Padding(0, 1)

	tabSepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238")).
			Background(lipgloss.Color("235"))

	sectionHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("178"))

	hitStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	barStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("245")).
			Padding(0, 1)

	selectedRowStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("237"))
)

// ── Tab definitions ─────────────────

type tabID int

const (
	tabSummary tabID = iota
	tabGazes
	tabTokens
	tabFailures
	tabCount
)

var tabNames = [tabCount]string{"Summary", "Gazes", "Tokens", "Failures"}

// ── Model ────────────────────

// Model is the root Bubble Tea model for viewing a recorded trace.
type Model struct {
	doc       *trace.Document
	filename  string
	activeTab tabID
	viewports [tabCount]viewport.Model
	width     int
	height    int
	ready     bool
	// Tokens tab: sort by count (default) or alphabetically.
	sortByName bool
	// Gazes tab: cursor position, its rendered line, and expanded set.
	cursor     int
	cursorLine int
	expanded   map[int]bool
}

// New creates a viewer for doc loaded from filename.
func New(doc *trace.Document, filename string) Model {
	return Model{
		doc:      doc,
		filename: filepath.Base(filename),
		expanded: make(map[int]bool),
	}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab", "l", "right":
			m.activeTab = (m.activeTab + 1) % tabCount
		case "shift+tab", "h", "left":
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
		case "1", "2", "3", "4":
			m.activeTab = tabID(msg.String()[0] - '1')
		case "s":
			if m.activeTab == tabTokens {
				m.sortByName = !m.sortByName
				m.refresh(tabTokens)
				m.viewports[tabTokens].GotoTop()
			}
		case "up", "k":
			if m.activeTab == tabGazes && m.cursor > 0 {
				m.cursor--
				m.refresh(tabGazes)
				m.followCursor()
				return m, nil
			}
		case "down", "j":
			if m.activeTab == tabGazes && m.cursor < len(m.doc.Entries)-1 {
				m.cursor++
				m.refresh(tabGazes)
				m.followCursor()
				return m, nil
			}
		case "enter", " ":
			if m.activeTab == tabGazes && len(m.doc.Entries) > 0 {
				if m.expanded[m.cursor] {
					delete(m.expanded, m.cursor)
				} else {
					m.expanded[m.cursor] = true
				}
				m.refresh(tabGazes)
				return m, nil
			}
		}
		var cmd tea.Cmd
		m.viewports[m.activeTab], cmd = m.viewports[m.activeTab].Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.initViewports()
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}

	title := titleStyle.Width(m.width).Render("  gazetrace  " + m.filename)

	var tabParts []string
	for i := tabID(0); i < tabCount; i++ {
		label := fmt.Sprintf(" %d %s ", i+1, tabNames[i])
		if i == m.activeTab {
			tabParts = append(tabParts, activeTabStyle.Render(label))
		} else {
			tabParts = append(tabParts, inactiveTabStyle.Render(label))
		}
		if i < tabCount-1 {
			tabParts = append(tabParts, tabSepStyle.Render("│"))
		}
	}
	tabRow := lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Width(m.width).
		Render(lipgloss.JoinHorizontal(lipgloss.Top, tabParts...))

	content := m.viewports[m.activeTab].View()

	hint := "  ←/→ tab  ↑/↓ scroll  1-4 jump  q quit"
	switch m.activeTab {
	case tabTokens:
		order := "by count"
		if m.sortByName {
			order = "by name"
		}
		hint += "  s sort (" + order + ")"
	case tabGazes:
		hint += "  ↑/↓ select  enter expand/collapse"
	}
	pct := fmt.Sprintf("%3.0f%%", m.viewports[m.activeTab].ScrollPercent()*100)
	pad := m.width - lipgloss.Width(hint) - len(pct) - 2
	if pad < 1 {
		pad = 1
	}
	statusBar := statusBarStyle.Width(m.width).Render(hint + strings.Repeat(" ", pad) + pct)

	return lipgloss.JoinVertical(lipgloss.Left, title, tabRow, content, statusBar)
}

// ── Viewport management ───────────────────────────────────────────────────────

func (m *Model) initViewports() {
	// title + tab row + status bar
	vpHeight := m.height - 3
	if vpHeight < 1 {
		vpHeight = 1
	}
	for i := tabID(0); i < tabCount; i++ {
		vp := viewport.New(m.width, vpHeight)
		vp.SetContent(m.renderTab(i))
		m.viewports[i] = vp
	}
}

func (m *Model) refresh(t tabID) {
	m.viewports[t].SetContent(m.renderTab(t))
}

// followCursor scrolls the Gazes viewport so the selected row is visible.
func (m *Model) followCursor() {
	vp := &m.viewports[tabGazes]
	switch {
	case m.cursorLine < vp.YOffset:
		vp.SetYOffset(m.cursorLine)
	case m.cursorLine >= vp.YOffset+vp.Height:
		vp.SetYOffset(m.cursorLine - vp.Height + 1)
	}
}

// ── Tab renderers ─────────────────────────────────────────────────────────────

func (m *Model) renderTab(t tabID) string {
	switch t {
	case tabSummary:
		return m.renderSummary()
	case tabGazes:
		return m.renderGazes()
	case tabTokens:
		return m.renderTokens()
	case tabFailures:
		return m.renderFailures()
	}
	return ""
}

func heading(s string) string {
	return "\n" + sectionHeader.Render("  "+s) + "\n\n"
}

func (m *Model) renderSummary() string {
	s := m.doc.Settings
	var sb strings.Builder
	sb.WriteString(heading("Session"))

	row := func(label, value string) {
		sb.WriteString(labelStyle.Render(fmt.Sprintf("  %-14s", label)) + "  " + value + "\n")
	}
	row("Project:", s.ProjectPath)
	row("File:", s.FilePath)
	row("Host:", s.IDE)
	row("Tracker:", s.Tracker)
	if s.Participant != "" {
		row("Participant:", s.Participant)
	}
	if s.SessionID != "" {
		row("Session:", s.SessionID)
	}
	if s.StartedAt != "" {
		row("Started:", s.StartedAt)
	}

	st := Summarize(m.doc)
	sb.WriteString(heading("Counts"))
	row("Gazes:", fmt.Sprintf("%d", st.Total))
	row("Hits:", fmt.Sprintf("%d (%.0f%%)", st.Hits, st.HitRate()*100))
	row("Failures:", fmt.Sprintf("%d", st.Total-st.Hits))
	if st.Total > 0 {
		row("Span:", fmt.Sprintf("%.3f → %.3f", st.First, st.Last))
	}
	return sb.String()
}

func (m *Model) renderGazes() string {
	var sb strings.Builder
	sb.WriteString(heading(fmt.Sprintf("Gazes (%d)", len(m.doc.Entries))))
	if len(m.doc.Entries) == 0 {
		sb.WriteString(dimStyle.Render("  (none)") + "\n")
		return sb.String()
	}
	for i, e := range m.doc.Entries {
		toggle := dimStyle.Render("  ▶ ")
		if m.expanded[i] {
			toggle = dimStyle.Render("  ▼ ")
		}
		row := fmt.Sprintf("%s%5d  %s  %s", toggle, e.Seq, timeStyle.Render(formatFloat(e.Timestamp)), entryLabel(e))
		if i == m.cursor {
			m.cursorLine = strings.Count(sb.String(), "\n")
			row = selectedRowStyle.Width(max(m.width-2, 1)).Render(row)
		}
		sb.WriteString(row + "\n")
		if m.expanded[i] {
			sb.WriteString(renderEntryDetail(e))
		}
	}
	return sb.String()
}

func entryLabel(e trace.Entry) string {
	if e.Failed() {
		return failStyle.Render("✗") + " " + dimStyle.Render(e.Remark)
	}
	label := fmt.Sprintf("%d:%d %q", e.Location.Line, e.Location.Column, e.Location.Word)
	if e.AST != nil && e.AST.Type != "" {
		label += "  " + dimStyle.Render(e.AST.Type)
	}
	return hitStyle.Render("✓") + " " + label
}

func renderEntryDetail(e trace.Entry) string {
	var sb strings.Builder
	line := func(format string, args ...any) {
		sb.WriteString(dimStyle.Render("         "+fmt.Sprintf(format, args...)) + "\n")
	}
	line("gaze (%s, %s)  left (%s, %s)  right (%s, %s)",
		formatFloat(e.GX), formatFloat(e.GY), formatFloat(e.LeftX), formatFloat(e.LeftY), formatFloat(e.RightX), formatFloat(e.RightY))
	if l := e.Location; l != nil {
		line("screen (%d, %d)  view (%d, %d)  local (%d, %d)", l.ScreenX, l.ScreenY, l.EditorX, l.EditorY, l.LocalX, l.LocalY)
		line("%s  offset %d  char %q", l.Path, l.Offset, l.Char)
	}
	if a := e.AST; a != nil {
		if a.Remark != "" {
			line("syntax: %s", a.Remark)
		}
		for depth, lv := range a.Levels {
			line("%s%s [%d,%d) %s", strings.Repeat("  ", depth), lv.Tag, lv.Start, lv.End, oneLine(lv.Text))
		}
	}
	sb.WriteString("\n")
	return sb.String()
}

func (m *Model) renderTokens() string {
	var sb strings.Builder
	st := Summarize(m.doc)
	sb.WriteString(heading(fmt.Sprintf("Token types (%d)", len(st.Types))))
	writeCounts(&sb, st.Types, m.sortByName, m.width)
	sb.WriteString(heading(fmt.Sprintf("Words (%d)", len(st.Words))))
	writeCounts(&sb, st.Words, m.sortByName, m.width)
	return sb.String()
}

func (m *Model) renderFailures() string {
	var sb strings.Builder
	st := Summarize(m.doc)
	sb.WriteString(heading(fmt.Sprintf("Failures (%d)", st.Total-st.Hits)))
	writeCounts(&sb, st.Remarks, false, m.width)
	return sb.String()
}

func writeCounts(sb *strings.Builder, counts []Count, byName bool, width int) {
	if len(counts) == 0 {
		sb.WriteString(dimStyle.Render("  (none)") + "\n")
		return
	}
	rows := append([]Count(nil), counts...)
	if byName {
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })
	}
	top := rows[0].N
	for _, c := range counts {
		top = max(top, c.N)
	}
	barWidth := max(width-50, 10)
	for _, c := range rows {
		n := int(math.Round(float64(c.N) / float64(top) * float64(barWidth)))
		sb.WriteString(fmt.Sprintf("  %-28s %5d  %s\n", clipLabel(c.Key, 28), c.N, barStyle.Render(strings.Repeat("█", max(n, 1)))))
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func formatFloat(f trace.Float) string {
	v := float64(f)
	if math.IsNaN(v) {
		return "NaN"
	}
	return fmt.Sprintf("%.3f", v)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func clipLabel(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// Run starts the viewer for doc.
func Run(doc *trace.Document, filename string) error {
	p := tea.NewProgram(New(doc, filename), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
