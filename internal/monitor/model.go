package monitor

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rileyhilliard/teleop/internal/config"
	"github.com/rileyhilliard/teleop/internal/output"
	"github.com/rileyhilliard/teleop/internal/pipeline"
	"github.com/rileyhilliard/teleop/internal/poll"
	"github.com/rileyhilliard/teleop/internal/render"
	"github.com/rileyhilliard/teleop/internal/ui"
)

// Height breakpoints for layout adjustments
const (
	HeightMinimal = 12
)

// spinnerInterval is the animation frame rate for the connecting spinner
const spinnerInterval = 150 * time.Millisecond

// Options describes what the dashboard is watching.
type Options struct {
	PID      int
	Host     string // empty for a local process
	Policy   render.BacklogPolicy
	Interval time.Duration
	Scale    int
	// File receives every rendered cycle. May be nil.
	File *output.GraphFile
}

// Model is the Bubble Tea model for the dashboard.
type Model struct {
	opts   Options
	events <-chan poll.Event
	cancel context.CancelFunc

	phase    poll.Phase
	outcome  poll.Outcome
	err      error
	cycle    int
	topology pipeline.Topology
	snapshot pipeline.Snapshot
	graph    render.RenderedGraph
	lastAt   time.Time
	writeErr error
	scale    int
	closed   bool

	width    int
	height   int
	showHelp bool
	quitting bool

	spinnerFrame int

	body          viewport.Model
	viewportReady bool
}

// eventMsg carries one scheduler event into the update loop.
type eventMsg poll.Event

// eventsClosedMsg reports that the scheduler returned.
type eventsClosedMsg struct{}

// spinnerTickMsg signals a spinner animation frame update.
type spinnerTickMsg time.Time

// NewModel creates a dashboard reading events. cancel stops the scheduler
// and is called when the user quits.
func NewModel(opts Options, events <-chan poll.Event, cancel context.CancelFunc) Model {
	if opts.Policy == (render.BacklogPolicy{}) {
		opts.Policy = render.DefaultPolicy()
	}
	scale := opts.Scale
	if opts.File != nil {
		scale = opts.File.Scale()
	}
	if config.ValidateScale(scale) != nil {
		scale = config.DefaultScale
	}
	if cancel == nil {
		cancel = func() {}
	}

	return Model{
		opts:   opts,
		events: events,
		cancel: cancel,
		phase:  poll.PhaseConnecting,
		scale:  scale,
	}
}

// Init starts draining events and the spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.waitForEvent(),
		m.spinnerTickCmd(),
	)
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		handled, cmd := m.HandleKeyMsg(msg)
		if handled {
			return m, cmd
		}
		// Unhandled keys scroll the body.
		var vcmd tea.Cmd
		m.body, vcmd = m.body.Update(msg)
		return m, vcmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 2
		footerHeight := 2
		viewportHeight := m.height - headerHeight - footerHeight
		if viewportHeight < 1 {
			viewportHeight = 1
		}

		if !m.viewportReady {
			m.body = viewport.New(m.width, viewportHeight)
			m.body.YPosition = headerHeight
			m.viewportReady = true
		} else {
			m.body.Width = m.width
			m.body.Height = viewportHeight
		}
		m.refreshBody()

	case spinnerTickMsg:
		m.spinnerFrame = (m.spinnerFrame + 1) % 10000
		if m.closed {
			return m, nil
		}
		return m, m.spinnerTickCmd()

	case eventMsg:
		m.apply(poll.Event(msg))
		m.refreshBody()
		return m, m.waitForEvent()

	case eventsClosedMsg:
		m.closed = true
	}

	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.showHelp {
		return m.renderHelpOverlay()
	}
	return m.renderDashboard()
}

// apply folds one scheduler event into the model.
func (m *Model) apply(e poll.Event) {
	m.phase = e.Phase
	m.lastAt = e.At

	switch {
	case e.IsCycle():
		m.cycle = e.Cycle
		m.topology = e.Topology
		m.snapshot = e.Snapshot
		m.graph = e.Graph
		m.writeGraph()
	case e.Phase == poll.PhasePolling:
		m.topology = e.Topology
	case e.Phase == poll.PhaseDisconnected:
		m.outcome = e.Outcome
		m.err = e.Err
	}
}

// writeGraph stores the latest graph in the output file, if any.
func (m *Model) writeGraph() {
	if m.opts.File == nil || m.cycle == 0 {
		return
	}
	m.writeErr = m.opts.File.Write(m.graph)
}

// stepScale changes the image scale and rewrites the output file with the
// last graph.
func (m *Model) stepScale(steps int) {
	if m.opts.File != nil {
		m.scale = m.opts.File.StepScale(steps)
		m.writeGraph()
		return
	}
	m.scale = config.StepScale(m.scale, steps)
}

// waitForEvent returns a command that receives the next scheduler event.
func (m Model) waitForEvent() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(e)
	}
}

// spinnerTickCmd returns a command that sends a spinner tick for animation.
func (m Model) spinnerTickCmd() tea.Cmd {
	return tea.Tick(spinnerInterval, func(t time.Time) tea.Msg {
		return spinnerTickMsg(t)
	})
}

// Indicator is the connection indicator for the current phase and outcome.
func (m Model) Indicator() ui.Indicator {
	return ui.IndicatorFor(m.phase, m.outcome)
}

// Phase returns the last phase reported by the scheduler.
func (m Model) Phase() poll.Phase {
	return m.phase
}

// Cycle returns the number of the last rendered cycle.
func (m Model) Cycle() int {
	return m.cycle
}

// Scale returns the current image scale in percent.
func (m Model) Scale() int {
	return m.scale
}

// Err returns the error that ended the session, if any.
func (m Model) Err() error {
	return m.err
}

// ShowFooter returns true if the terminal is tall enough to show the footer.
func (m Model) ShowFooter() bool {
	return m.height == 0 || m.height >= HeightMinimal
}

// ConnectingSpinner returns the current spinner character for the connecting animation.
func (m Model) ConnectingSpinner() string {
	return ConnectingSpinnerFrames[m.spinnerFrame%len(ConnectingSpinnerFrames)]
}

// SecondsSinceUpdate returns how many seconds have passed since the last event.
func (m Model) SecondsSinceUpdate() int {
	if m.lastAt.IsZero() {
		return 0
	}
	return int(time.Since(m.lastAt).Seconds())
}
