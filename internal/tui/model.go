// Package tui is the optional live dashboard shown during a run.
package tui

import (
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"fraudload/internal/scenario"
	"fraudload/internal/stats"
	"fraudload/internal/tui/live"
	"fraudload/internal/tui/styles"
)

// DoneMsg tells the dashboard the run has drained.
type DoneMsg struct{}

type Model struct {
	Live     live.Model
	Scenario scenario.Config
	URL      string

	updates <-chan stats.Snapshot
	done    <-chan struct{}
	stop    func()

	Stopping bool
	Finished bool
}

// NewModel builds a dashboard fed by updates. stop is called once when the
// user asks to end the run early; the dashboard then waits for done.
func NewModel(sc scenario.Config, url string, updates <-chan stats.Snapshot, done <-chan struct{}, stop func()) Model {
	return Model{
		Live:     live.NewModel(sc.Total(), len(sc.Steps())),
		Scenario: sc,
		URL:      url,
		updates:  updates,
		done:     done,
		stop:     stop,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.updates), waitForDone(m.done))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.Stopping {
				return m, tea.Quit
			}
			m.Stopping = true
			if m.stop != nil {
				m.stop()
			}
			return m, nil
		}

	case stats.Snapshot:
		var cmd tea.Cmd
		m.Live, cmd = m.Live.Update(msg)
		return m, tea.Batch(cmd, waitForUpdate(m.updates))

	case DoneMsg:
		m.Finished = true
		return m, tea.Quit

	default:
		var cmd tea.Cmd
		m.Live, cmd = m.Live.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	if m.Finished {
		return ""
	}

	s := strings.Builder{}
	s.WriteString(styles.Title.Render("fraudload: " + m.Scenario.Name))
	s.WriteString("\n")
	s.WriteString(styles.Subtle.Render(fmt.Sprintf("%s | %s | peak %.0f/s | workers %d-%d",
		m.URL, m.Scenario.Total(), m.Scenario.PeakRate(), m.Scenario.MinWorkers, m.Scenario.MaxWorkers)))
	s.WriteString("\n\n")
	s.WriteString(m.Live.View())
	s.WriteString("\n")

	if m.Stopping {
		s.WriteString(styles.Warn.Render("Stopping arrivals, draining in-flight requests... (q again to leave)"))
	} else {
		s.WriteString(styles.FooterBase.Render(styles.RenderKey("q", "stop run")))
	}
	return s.String()
}

// Run shows the dashboard on out until the run finishes or the user leaves.
func Run(m Model, out io.Writer) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithOutput(out))
	_, err := p.Run()
	return err
}

func waitForUpdate(ch <-chan stats.Snapshot) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return s
	}
}

func waitForDone(done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-done
		return DoneMsg{}
	}
}
