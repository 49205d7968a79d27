package web

import (
	"context"
	"sync"
	"time"

	"github.com/rileyhilliard/teleop/internal/logger"
	"github.com/rileyhilliard/teleop/internal/pipeline"
	"github.com/rileyhilliard/teleop/internal/poll"
	"github.com/rileyhilliard/teleop/internal/render"
)

// Starter runs one watch of pid, publishing to sink, until ctx is done or
// the session ends.
type Starter func(ctx context.Context, pid int, sink poll.EventSink) (poll.Outcome, error)

// WatchState is the latest view of a watched process.
type WatchState struct {
	PID       int
	Phase     poll.Phase
	Outcome   poll.Outcome
	Cycle     int
	Topology  pipeline.Topology
	Snapshot  pipeline.Snapshot
	Graph     render.RenderedGraph
	Err       error
	UpdatedAt time.Time
	Running   bool
}

type watch struct {
	pid    int
	cancel context.CancelFunc
	done   chan struct{}

	mu    sync.RWMutex
	state WatchState
}

func (w *watch) apply(e poll.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.state.Phase = e.Phase
	w.state.UpdatedAt = e.At
	switch {
	case e.IsCycle():
		w.state.Cycle = e.Cycle
		w.state.Topology = e.Topology
		w.state.Snapshot = e.Snapshot
		w.state.Graph = e.Graph
	case e.Phase == poll.PhasePolling:
		w.state.Topology = e.Topology
	case e.Phase == poll.PhaseDisconnected:
		w.state.Outcome = e.Outcome
		w.state.Err = e.Err
	}
}

func (w *watch) snapshot() WatchState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

func (w *watch) finish() {
	w.mu.Lock()
	w.state.Running = false
	w.mu.Unlock()
	close(w.done)
}

// Hub owns the single active watch.
type Hub struct {
	ctx     context.Context
	start   Starter
	metrics *poll.Metrics
	log     logger.Logger

	mu      sync.Mutex
	current *watch
}

// NewHub creates a hub whose watches live at most as long as ctx. metrics
// may be nil.
func NewHub(ctx context.Context, start Starter, metrics *poll.Metrics, log logger.Logger) *Hub {
	if log == nil {
		log = logger.Noop()
	}
	return &Hub{ctx: ctx, start: start, metrics: metrics, log: log}
}

// Watch makes pid the watched process. An existing watch of pid is kept
// unless restart is set; a watch of another pid is cancelled first.
func (h *Hub) Watch(pid int, restart bool) WatchState {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cur := h.current; cur != nil {
		if cur.pid == pid && !restart {
			return cur.snapshot()
		}
		h.stopLocked()
	}

	ctx, cancel := context.WithCancel(h.ctx)
	w := &watch{
		pid:    pid,
		cancel: cancel,
		done:   make(chan struct{}),
		state:  WatchState{PID: pid, Phase: poll.PhaseConnecting, Running: true},
	}
	h.current = w
	h.log.Info("watching pid %d", pid)

	go func() {
		defer w.finish()
		outcome, err := h.start(ctx, pid, w.apply)
		if err != nil {
			h.log.Warn("pid %d: %s: %v", pid, outcome, err)
		}
	}()

	return w.snapshot()
}

// State returns the state of pid if it is the watched process.
func (h *Hub) State(pid int) (WatchState, bool) {
	h.mu.Lock()
	cur := h.current
	h.mu.Unlock()

	if cur == nil || cur.pid != pid {
		return WatchState{}, false
	}
	return cur.snapshot(), true
}

// Current returns the pid being watched, or 0.
func (h *Hub) Current() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return 0
	}
	return h.current.pid
}

// Stop cancels the active watch and waits for it to close its connection.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopLocked()
}

func (h *Hub) stopLocked() {
	w := h.current
	if w == nil {
		return
	}
	w.cancel()
	<-w.done
	h.metrics.Forget(w.pid)
	h.current = nil
	h.log.Info("stopped watching pid %d", w.pid)
}
