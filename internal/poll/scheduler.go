package poll

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rileyhilliard/teleop/internal/config"
	"github.com/rileyhilliard/teleop/internal/errors"
	"github.com/rileyhilliard/teleop/internal/logger"
	"github.com/rileyhilliard/teleop/internal/pipeline"
	"github.com/rileyhilliard/teleop/internal/render"
	"github.com/rileyhilliard/teleop/internal/rpc"
	"github.com/rileyhilliard/teleop/internal/transport"
)

// ErrAlreadyRun is returned by a second call to Run.
var ErrAlreadyRun = stderrors.New("scheduler already ran")

// Options configures a Scheduler. Dialer and Renderer are required.
type Options struct {
	PID      int
	Dialer   transport.Dialer
	Renderer render.ImageRenderer
	Scheme   render.Scheme
	Policy   render.BacklogPolicy
	Interval time.Duration

	// ConnectTimeout bounds the dial, service lookup and topology fetch.
	// Expiry during the dial is a CONNECT failure, afterwards an RPC one.
	ConnectTimeout time.Duration

	Sink    EventSink
	Metrics *Metrics
	Logger  logger.Logger

	// After replaces time.After for the inter-cycle delay in tests.
	After func(time.Duration) <-chan time.Time
	// Now replaces time.Now for event timestamps.
	Now func() time.Time
}

// Scheduler runs the connect, fetch and render loop for one process.
type Scheduler struct {
	opts    Options
	log     logger.Logger
	started atomic.Bool
	phase   atomic.Int32
}

// New validates opts and fills defaults for unset fields.
func New(opts Options) (*Scheduler, error) {
	if opts.Dialer == nil {
		return nil, fmt.Errorf("poll: no dialer")
	}
	if opts.Renderer == nil {
		return nil, fmt.Errorf("poll: no renderer")
	}
	if opts.PID <= 0 {
		return nil, fmt.Errorf("poll: invalid pid %d", opts.PID)
	}
	if opts.Interval <= 0 {
		opts.Interval = config.DefaultPollInterval
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = config.DefaultConnectTimeout
	}
	if opts.Policy == (render.BacklogPolicy{}) {
		opts.Policy = render.DefaultPolicy()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	log := opts.Logger
	if log == nil {
		log = logger.Noop()
	}
	return &Scheduler{opts: opts, log: log}, nil
}

// Phase returns the phase most recently published.
func (s *Scheduler) Phase() Phase {
	return Phase(s.phase.Load())
}

// Run observes the process until it finishes, fails, or ctx is cancelled.
// The returned error is non-nil only for OutcomeFailed. The stream is
// closed on every path.
func (s *Scheduler) Run(ctx context.Context) (Outcome, error) {
	if !s.started.CompareAndSwap(false, true) {
		return OutcomeNone, ErrAlreadyRun
	}

	s.emit(Event{Phase: PhaseConnecting})
	s.log.Info("pid %d: connecting", s.opts.PID)

	connectCtx, cancelConnect := context.WithTimeout(ctx, s.opts.ConnectTimeout)
	defer cancelConnect()

	stream, err := s.opts.Dialer.Dial(connectCtx, s.opts.PID)
	if err != nil {
		return s.end(ctx, s.connectError(ctx, connectCtx, err))
	}

	session := rpc.Open(ctx, stream, s.log)
	defer func() {
		if err := session.Close(); err != nil {
			s.log.Debug("pid %d: close: %v", s.opts.PID, err)
		}
	}()
	s.emit(Event{Phase: PhaseConnected})

	fetcher, err := rpc.NewFetcher(connectCtx, session)
	if err != nil {
		return s.end(ctx, s.setupError(ctx, connectCtx, err))
	}
	topo, err := fetcher.FetchTopology(connectCtx)
	if err != nil {
		return s.end(ctx, s.setupError(ctx, connectCtx, err))
	}
	cancelConnect()

	s.emit(Event{Phase: PhasePolling, Topology: topo})
	s.log.Info("pid %d: polling %d nodes, %d edges every %s",
		s.opts.PID, len(topo.Nodes), len(topo.Edges), s.opts.Interval)

	for cycle := 1; ; cycle++ {
		snap, err := s.cycle(ctx, fetcher, topo, cycle)
		if err != nil {
			return s.end(ctx, err)
		}
		if pipeline.IsFinished(snap) {
			s.log.Info("pid %d: finished after %d cycles", s.opts.PID, cycle)
			return s.finish(OutcomeFinished, nil)
		}
		if err := s.wait(ctx, session.Done()); err != nil {
			return s.end(ctx, err)
		}
	}
}

// cycle fetches, renders and publishes one snapshot. Nothing is published
// when any step fails.
func (s *Scheduler) cycle(ctx context.Context, f *rpc.Fetcher, topo pipeline.Topology, n int) (pipeline.Snapshot, error) {
	start := time.Now()

	snap, err := f.FetchStatus(ctx, topo)
	if err != nil {
		return nil, err
	}
	dot, err := render.DOT(topo, snap, s.opts.Scheme, s.opts.Policy)
	if err != nil {
		return nil, err
	}
	graph, err := s.opts.Renderer.Render(ctx, dot)
	if err != nil {
		return nil, err
	}

	s.opts.Metrics.observeCycle(s.opts.PID, topo, snap, time.Since(start))
	s.emit(Event{
		Phase:    PhasePolling,
		Cycle:    n,
		Topology: topo,
		Snapshot: snap,
		Graph:    graph,
	})
	s.log.Debug("pid %d: cycle %d took %s", s.opts.PID, n, time.Since(start))
	return snap, nil
}

// wait sleeps for the poll interval. It returns ctx.Err() on cancellation
// and a connect error when the message loop stops first.
func (s *Scheduler) wait(ctx context.Context, done <-chan struct{}) error {
	var fire <-chan time.Time
	if s.opts.After != nil {
		fire = s.opts.After(s.opts.Interval)
	} else {
		timer := time.NewTimer(s.opts.Interval)
		defer timer.Stop()
		fire = timer.C
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		s.log.Warn("pid %d: %s", s.opts.PID, rpc.ErrDisconnected)
		return errors.WrapWithCode(rpc.ErrDisconnected, errors.ErrConnect,
			fmt.Sprintf("Lost connection to process %d", s.opts.PID),
			"The process may have exited")
	case <-fire:
		return nil
	}
}

// connectError classifies a dial failure.
func (s *Scheduler) connectError(ctx, connectCtx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if connectCtx.Err() != nil {
		return errors.WrapWithCode(err, errors.ErrConnect,
			fmt.Sprintf("Timed out connecting to process %d after %s", s.opts.PID, s.opts.ConnectTimeout),
			"Raise poll.connect_timeout or check the process is responsive")
	}
	if errors.CodeOf(err) != "" {
		return err
	}
	return errors.WrapWithCode(err, errors.ErrConnect,
		fmt.Sprintf("Can't connect to process %d", s.opts.PID),
		"Run: teleop list")
}

// setupError classifies a failure of the service lookup or topology fetch.
// These are RPC failures even when the connect timeout cut them short.
func (s *Scheduler) setupError(ctx, connectCtx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if connectCtx.Err() != nil {
		return errors.WrapWithCode(err, errors.ErrRPC,
			fmt.Sprintf("Process %d did not return its graph within %s", s.opts.PID, s.opts.ConnectTimeout),
			"Raise poll.connect_timeout or check the process is responsive")
	}
	if errors.CodeOf(err) != "" {
		return err
	}
	return errors.WrapWithCode(err, errors.ErrRPC, fmt.Sprintf("Graph fetch from process %d failed", s.opts.PID), "")
}

// end maps a loop error to its outcome. Any error after the caller's
// context is done counts as cancellation.
func (s *Scheduler) end(ctx context.Context, err error) (Outcome, error) {
	if ctx.Err() != nil {
		s.log.Info("pid %d: cancelled", s.opts.PID)
		return s.finish(OutcomeCancelled, nil)
	}

	kind := strings.ToLower(errors.CodeOf(err))
	if kind == "" {
		kind = "other"
	}
	s.opts.Metrics.observeFailure(kind)
	s.log.Error("pid %d: %s", s.opts.PID, errors.Summary(err))
	return s.finish(OutcomeFailed, err)
}

func (s *Scheduler) finish(outcome Outcome, err error) (Outcome, error) {
	s.emit(Event{Phase: PhaseDisconnected, Outcome: outcome, Err: err})
	return outcome, err
}

func (s *Scheduler) emit(e Event) {
	e.PID = s.opts.PID
	e.At = s.opts.Now()
	s.phase.Store(int32(e.Phase))
	if s.opts.Sink != nil {
		s.opts.Sink(e)
	}
}
