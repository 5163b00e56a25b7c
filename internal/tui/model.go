package tui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/signalsfoundry/orbit-visualizer/simclock"
)

const frameInterval = 33 * time.Millisecond

var (
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("24")).
			Padding(0, 1)
	satStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	gridStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

// frameMsg drives one render frame.
type frameMsg time.Time

// Model is the root Bubble Tea model.
type Model struct {
	screen  *Screen
	clock   *simclock.Clock
	backend string

	width  int
	height int
	ready  bool

	lastFrameWall time.Time
	frameCost     time.Duration
	fps           float64
}

// NewModel builds the root model for a session.
func NewModel(screen *Screen, clock *simclock.Clock, backend string) Model {
	return Model{screen: screen, clock: clock, backend: backend}
}

func (m Model) Init() tea.Cmd {
	return frameTick()
}

func frameTick() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			if m.clock.Multiplier() == 0 {
				m.clock.SetMultiplier(60)
			} else {
				m.clock.SetMultiplier(0)
			}
		case "+", "=":
			m.clock.SetMultiplier(m.clock.Multiplier() * 2)
		case "-", "_":
			m.clock.SetMultiplier(m.clock.Multiplier() / 2)
		case "r":
			m.clock.Reset()
		}
		return m, nil

	case frameMsg:
		now := time.Time(msg)
		if !m.lastFrameWall.IsZero() {
			wallDelta := now.Sub(m.lastFrameWall)
			m.clock.Advance(wallDelta)
			if secs := wallDelta.Seconds(); secs > 0 {
				inst := 1 / secs
				if m.fps == 0 {
					m.fps = inst
				} else {
					m.fps = 0.9*m.fps + 0.1*inst
				}
			}
		}
		m.lastFrameWall = now

		frameStart := time.Now()
		m.screen.Frame()
		m.frameCost = time.Since(frameStart)

		return m, frameTick()
	}
	return m, nil
}

func (m Model) View() string {
	if !m.ready {
		return "initializing..."
	}

	mapHeight := m.height - 2
	if mapHeight < 4 || m.width < 20 {
		return "window too small"
	}

	var b strings.Builder
	b.WriteString(m.drawMap(m.width, mapHeight))
	b.WriteString("\n")
	b.WriteString(m.statusBar())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("q quit · space pause · +/- speed · r restart"))
	return b.String()
}

// drawMap plots every point on a plate-carrée grid. The collection's uniform
// transform takes buffered inertial positions into the Earth-fixed frame, so
// longitude comes out geographic.
func (m Model) drawMap(w, h int) string {
	grid := make([][]rune, h)
	for r := range grid {
		grid[r] = make([]rune, w)
		for c := range grid[r] {
			grid[r][c] = ' '
		}
	}
	// Sparse graticule so empty space reads as a map.
	for r := 0; r < h; r += 4 {
		for c := 0; c < w; c += 8 {
			grid[r][c] = '·'
		}
	}

	points, transform := m.screen.Snapshot()
	for _, p := range points {
		if p == nil {
			continue
		}
		fixed := transform.Apply(p.Position)
		r := math.Sqrt(fixed.X*fixed.X + fixed.Y*fixed.Y + fixed.Z*fixed.Z)
		if r == 0 {
			continue
		}
		lat := math.Asin(fixed.Z/r) * 180 / math.Pi
		lon := math.Atan2(fixed.Y, fixed.X) * 180 / math.Pi

		col := int((lon + 180) / 360 * float64(w))
		row := int((90 - lat) / 180 * float64(h))
		if col < 0 || col >= w || row < 0 || row >= h {
			continue
		}
		grid[row][col] = '*'
	}

	var b strings.Builder
	for r, line := range grid {
		styled := strings.Builder{}
		for _, ch := range line {
			switch ch {
			case '*':
				styled.WriteString(satStyle.Render("*"))
			case '·':
				styled.WriteString(gridStyle.Render("·"))
			default:
				styled.WriteRune(ch)
			}
		}
		b.WriteString(styled.String())
		if r != len(grid)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m Model) statusBar() string {
	points, _ := m.screen.Snapshot()
	status := fmt.Sprintf("%s · %d sats · %s ·  x%g · %.0f fps · frame %.2fms",
		m.backend,
		len(points),
		m.clock.Now().Format("2006-01-02 15:04:05 UTC"),
		m.clock.Multiplier(),
		m.fps,
		float64(m.frameCost.Microseconds())/1000,
	)
	return statusStyle.Width(m.width).Render(status)
}

// Run starts the terminal renderer and blocks until the user quits or ctx is
// cancelled.
func Run(ctx context.Context, screen *Screen, clock *simclock.Clock, backend string) error {
	p := tea.NewProgram(NewModel(screen, clock, backend), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
