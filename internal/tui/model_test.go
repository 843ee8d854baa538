package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"fraudload/internal/scenario"
	"fraudload/internal/stats"
)

func newTestModel(stop func()) Model {
	sc, _ := scenario.Resolve(scenario.Burst)
	return NewModel(sc, "http://localhost:8081/api/v1/transactions",
		make(chan stats.Snapshot), make(chan struct{}), stop)
}

func TestSnapshotUpdatesView(t *testing.T) {
	m := newTestModel(nil)
	next, cmd := m.Update(stats.Snapshot{
		Requests: 3000, Fail: 3, Elapsed: time.Second, Target: 3000, P95Ms: 12.5,
	})
	if cmd == nil {
		t.Fatalf("expected a follow-up command to keep listening")
	}

	view := next.View()
	for _, want := range []string{"fraudload: burst", "REQ: 3000", "FAIL: 3", "1/1 @ 3000/s"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
	if got := next.(Model).Live.RpsLine.Last(); got != 3000 {
		t.Fatalf("rps sample %v, want 3000", got)
	}
}

func TestQuitStopsRunThenLeaves(t *testing.T) {
	var stops int
	m := newTestModel(func() { stops++ })

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if stops != 1 || cmd != nil {
		t.Fatalf("first q should stop arrivals without quitting (stops=%d)", stops)
	}
	if !next.(Model).Stopping {
		t.Fatalf("model not marked as stopping")
	}

	_, cmd = next.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if stops != 1 || cmd == nil {
		t.Fatalf("second q should quit without stopping again")
	}
}

func TestDoneQuits(t *testing.T) {
	m := newTestModel(nil)
	next, cmd := m.Update(DoneMsg{})
	if cmd == nil || !next.(Model).Finished {
		t.Fatalf("done should finish the dashboard")
	}
	if next.View() != "" {
		t.Fatalf("finished dashboard should render nothing")
	}
}
