package poll_test

import (
	"context"
	stderrors "errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rileyhilliard/teleop/internal/errors"
	"github.com/rileyhilliard/teleop/internal/logger"
	"github.com/rileyhilliard/teleop/internal/pipeline"
	"github.com/rileyhilliard/teleop/internal/poll"
	"github.com/rileyhilliard/teleop/internal/render"
	"github.com/rileyhilliard/teleop/internal/render/rendertest"
	"github.com/rileyhilliard/teleop/internal/rpc"
	"github.com/rileyhilliard/teleop/internal/rpc/rpctest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var lineTopology = pipeline.Topology{
	Nodes: []pipeline.NodeID{"A", "B"},
	Edges: []pipeline.Edge{{Tail: "A", Head: "B"}},
}

var (
	runningSnapshot = pipeline.Snapshot{
		"A": {State: pipeline.Running{}, OutputWritten: pipeline.Counters(100)},
		"B": {State: pipeline.Running{}, InputRead: pipeline.Counters(80)},
	}
	finishedSnapshot = pipeline.Snapshot{
		"A": {State: pipeline.Success{}, OutputWritten: pipeline.Counters(150)},
		"B": {State: pipeline.Success{}, InputRead: pipeline.Counters(150)},
	}
)

type dialerFunc func(ctx context.Context, pid int) (io.ReadWriteCloser, error)

func (f dialerFunc) Dial(ctx context.Context, pid int) (io.ReadWriteCloser, error) {
	return f(ctx, pid)
}

// harness wires a scheduler to a fake process and records what it emits.
type harness struct {
	srv      *rpctest.Server
	renderer *rendertest.Renderer
	events   []poll.Event
	delays   int
	log      *logger.BufferLogger

	// onEvent runs after each event is recorded.
	onEvent func(poll.Event)
	// delay is returned from the injected After. A nil channel never fires.
	delay func() <-chan time.Time
}

func newHarness(t *testing.T, snapshots ...pipeline.Snapshot) *harness {
	t.Helper()
	h := &harness{
		srv:      rpctest.NewServer(lineTopology, snapshots...),
		renderer: rendertest.New(),
		log:      logger.NewBufferLogger(),
	}
	h.delay = func() <-chan time.Time {
		ch := make(chan time.Time, 1)
		ch <- time.Time{}
		return ch
	}
	t.Cleanup(h.srv.Close)
	return h
}

func (h *harness) options() poll.Options {
	return poll.Options{
		PID:      4242,
		Dialer:   h.srv,
		Renderer: h.renderer,
		Scheme:   render.SchemeLight,
		Interval: time.Second,
		Logger:   h.log,
		Sink: func(e poll.Event) {
			h.events = append(h.events, e)
			if h.onEvent != nil {
				h.onEvent(e)
			}
		},
		After: func(time.Duration) <-chan time.Time {
			h.delays++
			return h.delay()
		},
	}
}

func (h *harness) run(t *testing.T, ctx context.Context, opts poll.Options) (poll.Outcome, error) {
	t.Helper()
	s, err := poll.New(opts)
	require.NoError(t, err)
	return s.Run(ctx)
}

func (h *harness) phases() []poll.Phase {
	var out []poll.Phase
	for _, e := range h.events {
		out = append(out, e.Phase)
	}
	return out
}

func (h *harness) cycles() []poll.Event {
	var out []poll.Event
	for _, e := range h.events {
		if e.IsCycle() {
			out = append(out, e)
		}
	}
	return out
}

func (h *harness) last() poll.Event {
	return h.events[len(h.events)-1]
}

func (h *harness) assertStreamsClosed(t *testing.T) {
	t.Helper()
	streams := h.srv.Streams()
	require.NotEmpty(t, streams)
	for _, s := range streams {
		assert.True(t, s.IsClosed(), "stream left open")
	}
}

func TestRun_FinishesWithoutFurtherDelay(t *testing.T) {
	h := newHarness(t, runningSnapshot, finishedSnapshot)

	outcome, err := h.run(t, context.Background(), h.options())
	require.NoError(t, err)
	assert.Equal(t, poll.OutcomeFinished, outcome)

	assert.Equal(t, []poll.Phase{
		poll.PhaseConnecting,
		poll.PhaseConnected,
		poll.PhasePolling,
		poll.PhasePolling,
		poll.PhasePolling,
		poll.PhaseDisconnected,
	}, h.phases())

	cycles := h.cycles()
	require.Len(t, cycles, 2)
	assert.Equal(t, 1, cycles[0].Cycle)
	assert.Equal(t, 2, cycles[1].Cycle)
	assert.Equal(t, runningSnapshot, cycles[0].Snapshot)
	assert.Equal(t, 200, cycles[0].Graph.Width)
	assert.Contains(t, cycles[0].Graph.DOT, `"A" -> "B" [taillabel="100", headlabel="80 (20)", color="#dbab0a"];`)

	assert.Equal(t, 1, h.delays, "no delay after the finishing cycle")
	assert.Equal(t, 2, h.srv.StatusCalls())
	assert.Equal(t, 1, h.srv.GraphCalls())
	assert.Equal(t, 2, h.renderer.Calls())

	last := h.last()
	assert.Equal(t, poll.OutcomeFinished, last.Outcome)
	assert.NoError(t, last.Err)
	for _, e := range h.events {
		assert.Equal(t, 4242, e.PID)
		assert.False(t, e.At.IsZero())
	}
	h.assertStreamsClosed(t)
}

func TestRun_AlreadyFinishedOnFirstCycle(t *testing.T) {
	h := newHarness(t, finishedSnapshot)

	outcome, err := h.run(t, context.Background(), h.options())
	require.NoError(t, err)
	assert.Equal(t, poll.OutcomeFinished, outcome)
	assert.Len(t, h.cycles(), 1)
	assert.Zero(t, h.delays)
}

func TestRun_Failures(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(h *harness)
		wantCode  string
		wantPhase []poll.Phase
		wantCycle int
	}{
		{
			name:     "dial fails",
			setup:    func(h *harness) { h.srv.FailDial(stderrors.New("no such file or directory")) },
			wantCode: errors.ErrConnect,
			wantPhase: []poll.Phase{
				poll.PhaseConnecting,
				poll.PhaseDisconnected,
			},
		},
		{
			name:     "service lookup fails",
			setup:    func(h *harness) { h.srv.Fail(rpc.ServiceMethod, "no state service") },
			wantCode: errors.ErrRPC,
			wantPhase: []poll.Phase{
				poll.PhaseConnecting,
				poll.PhaseConnected,
				poll.PhaseDisconnected,
			},
		},
		{
			name:     "graph fetch fails",
			setup:    func(h *harness) { h.srv.Fail(rpc.GraphMethod, "not ready") },
			wantCode: errors.ErrRPC,
			wantPhase: []poll.Phase{
				poll.PhaseConnecting,
				poll.PhaseConnected,
				poll.PhaseDisconnected,
			},
		},
		{
			name:     "status fetch fails",
			setup:    func(h *harness) { h.srv.Fail(rpc.StatusMethod, "internal error") },
			wantCode: errors.ErrRPC,
			wantPhase: []poll.Phase{
				poll.PhaseConnecting,
				poll.PhaseConnected,
				poll.PhasePolling,
				poll.PhaseDisconnected,
			},
		},
		{
			name:     "malformed status",
			setup:    func(h *harness) { h.srv.Respond(rpc.StatusMethod, `{"statuses":[{"node_name":"A"}]}`) },
			wantCode: errors.ErrRPC,
			wantPhase: []poll.Phase{
				poll.PhaseConnecting,
				poll.PhaseConnected,
				poll.PhasePolling,
				poll.PhaseDisconnected,
			},
		},
		{
			name: "image renderer fails on second cycle",
			setup: func(h *harness) {
				h.renderer.FailWith(2, errors.New(errors.ErrRender, "dot failed to render the graph", ""))
			},
			wantCode:  errors.ErrRender,
			wantCycle: 1,
			wantPhase: []poll.Phase{
				poll.PhaseConnecting,
				poll.PhaseConnected,
				poll.PhasePolling,
				poll.PhasePolling,
				poll.PhaseDisconnected,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, runningSnapshot)
			tt.setup(h)

			outcome, err := h.run(t, context.Background(), h.options())
			require.Error(t, err)
			assert.Equal(t, poll.OutcomeFailed, outcome)
			assert.True(t, errors.IsCode(err, tt.wantCode), "got %v", err)

			assert.Equal(t, tt.wantPhase, h.phases())
			assert.Len(t, h.cycles(), tt.wantCycle)

			last := h.last()
			assert.Equal(t, poll.OutcomeFailed, last.Outcome)
			assert.Equal(t, err, last.Err)
			assert.True(t, h.log.HasLevel(logger.LevelError))
		})
	}
}

func TestRun_DOTPreconditionFails(t *testing.T) {
	topo := pipeline.Topology{Nodes: []pipeline.NodeID{`bad"name`}}
	srv := rpctest.NewServer(topo, pipeline.Snapshot{`bad"name`: {State: pipeline.Running{}}})
	t.Cleanup(srv.Close)
	renderer := rendertest.New()

	s, err := poll.New(poll.Options{PID: 1, Dialer: srv, Renderer: renderer})
	require.NoError(t, err)

	outcome, err := s.Run(context.Background())
	assert.Equal(t, poll.OutcomeFailed, outcome)
	assert.True(t, errors.IsCode(err, errors.ErrRender))
	assert.Zero(t, renderer.Calls(), "nothing rendered after a DOT failure")
}

func TestRun_CancelDuringDelay(t *testing.T) {
	h := newHarness(t, runningSnapshot)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.delay = func() <-chan time.Time { return nil }
	h.onEvent = func(e poll.Event) {
		if e.Cycle == 1 {
			cancel()
		}
	}

	outcome, err := h.run(t, ctx, h.options())
	require.NoError(t, err)
	assert.Equal(t, poll.OutcomeCancelled, outcome)

	assert.Equal(t, 1, h.srv.StatusCalls(), "no fetch after cancellation")
	assert.Len(t, h.cycles(), 1)
	assert.Equal(t, poll.OutcomeCancelled, h.last().Outcome)
	h.assertStreamsClosed(t)
}

func TestRun_CancelDuringRPC(t *testing.T) {
	h := newHarness(t, runningSnapshot)
	h.srv.Stall(rpc.StatusMethod)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.onEvent = func(e poll.Event) {
		if e.Phase == poll.PhasePolling && e.Cycle == 0 {
			go func() {
				time.Sleep(20 * time.Millisecond)
				cancel()
			}()
		}
	}

	outcome, err := h.run(t, ctx, h.options())
	require.NoError(t, err)
	assert.Equal(t, poll.OutcomeCancelled, outcome)
	assert.Empty(t, h.cycles())
	h.assertStreamsClosed(t)
}

func TestRun_CancelBeforeConnect(t *testing.T) {
	h := newHarness(t, runningSnapshot)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := h.options()
	opts.Dialer = dialerFunc(func(ctx context.Context, pid int) (io.ReadWriteCloser, error) {
		return nil, ctx.Err()
	})

	outcome, err := h.run(t, ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, poll.OutcomeCancelled, outcome)
	assert.Equal(t, []poll.Phase{poll.PhaseConnecting, poll.PhaseDisconnected}, h.phases())
}

func TestRun_ConnectTimeout(t *testing.T) {
	h := newHarness(t)
	opts := h.options()
	opts.ConnectTimeout = 20 * time.Millisecond
	opts.Dialer = dialerFunc(func(ctx context.Context, pid int) (io.ReadWriteCloser, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	outcome, err := h.run(t, context.Background(), opts)
	assert.Equal(t, poll.OutcomeFailed, outcome)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConnect))
	assert.Contains(t, err.Error(), "Timed out connecting to process 4242")
}

func TestRun_SlowGraphFetchIsAnRPCFailure(t *testing.T) {
	h := newHarness(t, runningSnapshot)
	h.srv.Stall(rpc.GraphMethod)
	opts := h.options()
	opts.ConnectTimeout = 20 * time.Millisecond

	outcome, err := h.run(t, context.Background(), opts)
	assert.Equal(t, poll.OutcomeFailed, outcome)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrRPC), "got %v", err)
	assert.Contains(t, err.Error(), "Process 4242 did not return its graph within 20ms")
	assert.Equal(t, []poll.Phase{poll.PhaseConnecting, poll.PhaseConnected, poll.PhaseDisconnected}, h.phases())
	assert.True(t, h.log.HasLevel(logger.LevelError))
}

func TestRun_ConnectionLostDuringDelay(t *testing.T) {
	h := newHarness(t, runningSnapshot)
	h.delay = func() <-chan time.Time { return nil }
	h.onEvent = func(e poll.Event) {
		if e.Cycle == 1 {
			h.srv.Disconnect()
		}
	}

	outcome, err := h.run(t, context.Background(), h.options())
	assert.Equal(t, poll.OutcomeFailed, outcome)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConnect))
	assert.ErrorIs(t, err, rpc.ErrDisconnected)
	assert.True(t, h.log.Contains("connection interrupted"))
	h.assertStreamsClosed(t)
}

func TestRun_Twice(t *testing.T) {
	h := newHarness(t, finishedSnapshot)
	s, err := poll.New(h.options())
	require.NoError(t, err)

	_, err = s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, poll.PhaseDisconnected, s.Phase())

	outcome, err := s.Run(context.Background())
	assert.ErrorIs(t, err, poll.ErrAlreadyRun)
	assert.Equal(t, poll.OutcomeNone, outcome)
	assert.Equal(t, 1, h.srv.GraphCalls())
}

func TestNew_Validation(t *testing.T) {
	srv := rpctest.NewServer(lineTopology)
	renderer := rendertest.New()

	tests := []struct {
		name string
		opts poll.Options
		want string
	}{
		{"no dialer", poll.Options{PID: 1, Renderer: renderer}, "no dialer"},
		{"no renderer", poll.Options{PID: 1, Dialer: srv}, "no renderer"},
		{"bad pid", poll.Options{PID: 0, Dialer: srv, Renderer: renderer}, "invalid pid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := poll.New(tt.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRun_Metrics(t *testing.T) {
	h := newHarness(t, runningSnapshot, finishedSnapshot)
	reg := prometheus.NewRegistry()
	opts := h.options()
	opts.Metrics = poll.NewMetrics(reg)

	_, err := h.run(t, context.Background(), opts)
	require.NoError(t, err)

	expected := `
# HELP teleop_poll_cycles_total Completed poll cycles.
# TYPE teleop_poll_cycles_total counter
teleop_poll_cycles_total 2
# HELP teleop_edge_backlog Records written by the tail port and not yet read by the head port.
# TYPE teleop_edge_backlog gauge
teleop_edge_backlog{head="B",pid="4242",tail="A"} 0
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"teleop_poll_cycles_total", "teleop_edge_backlog"))

	count, err := testutil.GatherAndCount(reg, "teleop_nodes")
	require.NoError(t, err)
	assert.Equal(t, 4, count, "one series per state")

	opts.Metrics.Forget(4242)
	count, err = testutil.GatherAndCount(reg, "teleop_nodes", "teleop_edge_backlog")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRun_FailureMetric(t *testing.T) {
	h := newHarness(t, runningSnapshot)
	h.srv.Fail(rpc.StatusMethod, "boom")
	reg := prometheus.NewRegistry()
	opts := h.options()
	opts.Metrics = poll.NewMetrics(reg)

	_, err := h.run(t, context.Background(), opts)
	require.Error(t, err)

	expected := `
# HELP teleop_poll_failures_total Sessions ended by a failure, by kind.
# TYPE teleop_poll_failures_total counter
teleop_poll_failures_total{kind="rpc"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "teleop_poll_failures_total"))
}

func TestPhaseAndOutcome_String(t *testing.T) {
	assert.Equal(t, "connecting", poll.PhaseConnecting.String())
	assert.Equal(t, "polling", poll.PhasePolling.String())
	assert.Equal(t, "disconnected", poll.PhaseDisconnected.String())
	assert.Equal(t, "finished", poll.OutcomeFinished.String())
	assert.Equal(t, "cancelled", poll.OutcomeCancelled.String())
	assert.Equal(t, "none", poll.OutcomeNone.String())
}
