package tui

import (
	"fmt"
	"strings"

	"repolens/internal/app"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	stageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
)

// ProgressMsg carries a pipeline progress event into the UI.
type ProgressMsg app.Progress

// TokenMsg carries one streamed report token.
type TokenMsg string

// DoneMsg ends the program; Err is nil on success.
type DoneMsg struct {
	Report string
	Err    error
}

// Model renders one analysis run: stage line, chunk progress and the report
// as it streams in.
type Model struct {
	key     string
	spin    spinner.Model
	bar     progress.Model
	stage   string
	current int
	total   int
	output  strings.Builder
	err     error
	done    bool
	width   int
}

func New(key string) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED"))

	return &Model{
		key:   key,
		spin:  sp,
		bar:   progress.New(progress.WithDefaultGradient()),
		stage: "planning",
		width: 80,
	}
}

func (m *Model) Init() tea.Cmd {
	return m.spin.Tick
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = msg.Width - 10
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.err = app.ErrRunCancelled
			return m, tea.Quit
		}
		return m, nil

	case ProgressMsg:
		m.stage = msg.Stage
		m.current = msg.CurrentChunk
		m.total = msg.TotalChunks
		return m, nil

	case TokenMsg:
		m.output.WriteString(string(msg))
		return m, nil

	case DoneMsg:
		m.done = true
		m.err = msg.Err
		if msg.Report != "" {
			m.output.Reset()
			m.output.WriteString(msg.Report)
		}
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

// Report returns the final report, or the error that ended the run
// (including the user quitting mid-run).
func (m *Model) Report() (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.output.String(), nil
}

func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("repolens") + " " + m.key + "\n\n")

	if m.err != nil {
		b.WriteString(errStyle.Render("error: "+m.err.Error()) + "\n")
		return b.String()
	}

	if !m.done {
		line := m.spin.View() + " " + stageStyle.Render(m.stage)
		if m.stage == app.StageAnalyzing && m.total > 0 {
			line += fmt.Sprintf(" (chunk %d of %d)", m.current, m.total)
		}
		b.WriteString(line + "\n")
		if m.total > 1 {
			b.WriteString(m.bar.ViewAs(float64(m.current)/float64(m.total)) + "\n")
		}
		b.WriteString("\n")
	}

	if m.output.Len() > 0 {
		b.WriteString(tail(m.output.String(), 20))
		b.WriteString("\n")
	}
	return b.String()
}

// tail returns the last n lines, keeping the view bounded while streaming.
func tail(text string, n int) string {
	lines := strings.Split(text, "\n")
	if len(lines) <= n {
		return text
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
