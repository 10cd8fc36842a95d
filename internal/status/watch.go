package status

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#767676"))

type tickMsg time.Time

type model struct {
	path    string
	refresh time.Duration

	report   *Report
	loadErr  error
	progress progress.Model
	width    int
}

func newModel(path string, refresh time.Duration) model {
	return model{
		path:     path,
		refresh:  refresh,
		progress: progress.New(progress.WithDefaultGradient()),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.reload, m.tick())
}

func (m model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// reload re-reads the checkpoint file. Reading a snapshot file is the only
// way the viewer observes a live run.
func (m model) reload() tea.Msg {
	r, err := Analyze(m.path)
	if err != nil {
		return err
	}
	return r
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case *Report:
		m.report = msg
		m.loadErr = nil
		return m, m.progress.SetPercent(msg.SuccessRate / 100)

	case error:
		m.loadErr = msg
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.reload, m.tick())

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		w := msg.Width - 6
		if w < 10 {
			w = 10
		}
		m.progress.Width = w
		return m, nil

	case progress.FrameMsg:
		prog, cmd := m.progress.Update(msg)
		m.progress = prog.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func (m model) View() string {
	var body string
	switch {
	case m.loadErr != nil:
		body = warnStyle.Render(fmt.Sprintf("cannot read checkpoint: %v", m.loadErr)) + "\n"
	case m.report == nil:
		body = footerStyle.Render("loading...") + "\n"
	default:
		body = m.report.Render() +
			"\n  " + labelStyle.Render("success rate") + "\n  " + m.progress.View() + "\n"
	}

	footer := footerStyle.Render(fmt.Sprintf("\nrefreshing every %s • q to quit\n", m.refresh))
	return body + footer
}

// Watch renders the status report continuously, re-reading the checkpoint
// file on a timer, until the user quits.
func Watch(path string, refresh time.Duration) error {
	if refresh <= 0 {
		refresh = 30 * time.Second
	}
	p := tea.NewProgram(newModel(path, refresh))
	_, err := p.Run()
	return err
}
