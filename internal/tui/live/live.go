package live

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"fraudload/internal/stats"
	"fraudload/internal/tui/components"
	"fraudload/internal/tui/styles"
)

// Model renders live run metrics from runner snapshots.
type Model struct {
	Stats    stats.Snapshot
	Progress progress.Model

	RpsLine     components.Sparkline
	LatencyLine components.Sparkline

	Duration time.Duration
	Stages   int

	lastElapsed time.Duration
	lastReqs    uint64

	Width  int
	Height int
}

func NewModel(total time.Duration, stages int) Model {
	return Model{
		Progress:    progress.New(progress.WithDefaultGradient()),
		RpsLine:     components.NewSparkline(40, "Achieved RPS", styles.Active),
		LatencyLine: components.NewSparkline(40, "Latency P95 (ms)", styles.Warn),
		Duration:    total,
		Stages:      stages,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stats.Snapshot:
		// rate over the runner's own clock, not the render clock
		dt := (msg.Elapsed - m.lastElapsed).Seconds()
		if dt > 0 && msg.Requests >= m.lastReqs {
			m.RpsLine.Add(float64(msg.Requests-m.lastReqs) / dt)
		}
		m.LatencyLine.Add(msg.P95Ms)

		m.Stats = msg
		m.lastReqs = msg.Requests
		m.lastElapsed = msg.Elapsed

		return m, m.Progress.SetPercent(m.Percent())

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Progress.Width = msg.Width - 4

		half := (msg.Width / 2) - 8
		if half < 10 {
			half = 10
		}
		m.RpsLine.Width = half
		m.LatencyLine.Width = half
		return m, nil

	case progress.FrameMsg:
		prog, cmd := m.Progress.Update(msg)
		m.Progress = prog.(progress.Model)
		return m, cmd
	}

	return m, nil
}

// Percent is the share of the schedule elapsed, capped at 1.
func (m Model) Percent() float64 {
	if m.Duration <= 0 {
		return 1
	}
	pct := float64(m.Stats.Elapsed) / float64(m.Duration)
	if pct > 1 {
		pct = 1
	}
	return pct
}

func (m Model) View() string {
	s := strings.Builder{}

	errRate := m.Stats.ErrorRate()
	col1 := fmt.Sprintf("REQ: %d\nINF: %d", m.Stats.Requests, m.Stats.Inflight)
	col2 := styles.Threshold(errRate, 0.5, 1).Render(
		fmt.Sprintf("ERR: %.2f%%\nFAIL: %d", errRate, m.Stats.Fail))

	qWait := m.Stats.AvgQueueWaitMs
	col3 := fmt.Sprintf("LAG: %s\nDELAYED: %d  DROPPED: %d",
		styles.Threshold(qWait, 2, 10).Render(fmt.Sprintf("%.2f ms", qWait)),
		m.Stats.Delayed, m.Stats.Dropped,
	)

	stage := "draining"
	if m.Stats.Elapsed < m.Duration {
		stage = fmt.Sprintf("%d/%d @ %.0f/s", m.Stats.Stage+1, m.Stages, m.Stats.Target)
	}
	col4 := fmt.Sprintf("STAGE: %s\nKB: %d", stage, m.Stats.Bytes/1024)

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(col1),
		styles.Box.Render(col2),
		styles.Box.Render(col3),
		styles.Box.Render(col4),
	))
	s.WriteString("\n\n")

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(m.RpsLine.View()),
		styles.Box.Render(m.LatencyLine.View()),
	))
	s.WriteString("\n\n")

	latencies := fmt.Sprintf(
		"P50: %.2f ms  |  P90: %.2f ms  |  P95: %s  |  P99: %.2f ms  |  Max: %.0f ms",
		m.Stats.P50Ms,
		m.Stats.P90Ms,
		styles.Threshold(m.Stats.P95Ms, 100, 150).Render(fmt.Sprintf("%.2f ms", m.Stats.P95Ms)),
		m.Stats.P99Ms,
		m.Stats.MaxMs,
	)
	box := styles.Box
	if m.Width > 4 {
		box = box.Width(m.Width - 4)
	}
	s.WriteString(box.Render(latencies))
	s.WriteString("\n\n")

	s.WriteString(m.Progress.View())

	return s.String()
}
