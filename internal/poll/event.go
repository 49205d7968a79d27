package poll

import (
	"time"

	"github.com/rileyhilliard/teleop/internal/pipeline"
	"github.com/rileyhilliard/teleop/internal/render"
)

// Phase is the connection lifecycle state of a session.
type Phase int

const (
	PhaseConnecting Phase = iota
	PhaseConnected
	PhasePolling
	PhaseDisconnected
)

func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhaseConnected:
		return "connected"
	case PhasePolling:
		return "polling"
	case PhaseDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// Outcome says why a session ended.
type Outcome int

const (
	// OutcomeNone means the session has not ended.
	OutcomeNone Outcome = iota
	// OutcomeFinished means every node reached a terminal state.
	OutcomeFinished
	// OutcomeFailed means a connect, RPC or render error ended the session.
	OutcomeFailed
	// OutcomeCancelled means the caller stopped the session.
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFinished:
		return "finished"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	}
	return "none"
}

// Event is published on every phase transition and after every completed
// cycle. Cycle events carry Phase == PhasePolling and Cycle > 0.
type Event struct {
	PID      int
	Phase    Phase
	Outcome  Outcome
	Cycle    int
	Topology pipeline.Topology
	Snapshot pipeline.Snapshot
	Graph    render.RenderedGraph
	Err      error
	At       time.Time
}

// IsCycle reports whether the event carries a rendered snapshot.
func (e Event) IsCycle() bool {
	return e.Phase == PhasePolling && e.Cycle > 0
}

// EventSink receives events on the scheduler's goroutine. It must not block
// for long; the next cycle waits for it.
type EventSink func(Event)
