package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/signalsfoundry/orbit-visualizer/render"
	"github.com/signalsfoundry/orbit-visualizer/simclock"
)

func testModel(t *testing.T) (Model, *Screen, *simclock.Clock) {
	t.Helper()
	screen := NewScreen()
	start := time.Date(2024, time.April, 14, 0, 0, 0, 0, time.UTC)
	clock := simclock.New(start, start.Add(72*time.Hour), 60)
	return NewModel(screen, clock, "parallel"), screen, clock
}

func TestFrameAdvancesClockAndRunsHooks(t *testing.T) {
	m, screen, clock := testModel(t)

	hookRuns := 0
	screen.OnPreRender(func() { hookRuns++ })

	wall := time.Now()
	next, _ := m.Update(frameMsg(wall))
	m = next.(Model)
	// The first frame only anchors the wall clock.
	if hookRuns != 1 {
		t.Fatalf("hookRuns = %d after first frame, want 1", hookRuns)
	}

	next, _ = m.Update(frameMsg(wall.Add(time.Second)))
	m = next.(Model)
	if hookRuns != 2 {
		t.Fatalf("hookRuns = %d after second frame, want 2", hookRuns)
	}

	// One wall second at multiplier 60 advances sim time by a minute.
	want := clock.Start().Add(time.Minute)
	if got := clock.Now(); !got.Equal(want) {
		t.Fatalf("clock = %v, want %v", got, want)
	}
}

func TestPauseTogglesMultiplier(t *testing.T) {
	m, _, clock := testModel(t)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeySpace})
	m = next.(Model)
	if got := clock.Multiplier(); got != 0 {
		t.Fatalf("multiplier = %v after pause, want 0", got)
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeySpace})
	_ = next
	if got := clock.Multiplier(); got == 0 {
		t.Fatal("multiplier still 0 after unpause")
	}
}

func TestViewPlotsPoints(t *testing.T) {
	m, screen, _ := testModel(t)

	col, err := screen.CreatePoints(make([]render.PointSpec, 1))
	if err != nil {
		t.Fatalf("CreatePoints: %v", err)
	}
	// A point on the +X axis sits at lat 0, lon 0: mid-map.
	col.Set(0, &render.Point{Position: render.Vec3{X: 7000e3}})

	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = next.(Model)

	view := m.View()
	if !strings.Contains(view, "*") {
		t.Fatal("view does not plot the satellite marker")
	}
	if !strings.Contains(view, "parallel") {
		t.Fatal("status bar does not name the backend")
	}
}

func TestViewBeforeWindowSize(t *testing.T) {
	m, _, _ := testModel(t)
	if got := m.View(); !strings.Contains(got, "initializing") {
		t.Fatalf("View = %q, want initializing placeholder", got)
	}
}
