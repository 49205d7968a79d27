package web

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rileyhilliard/teleop/internal/logger"
	"github.com/rileyhilliard/teleop/internal/pipeline"
	"github.com/rileyhilliard/teleop/internal/poll"
	"github.com/rileyhilliard/teleop/internal/render"
	"github.com/rileyhilliard/teleop/internal/render/rendertest"
	"github.com/rileyhilliard/teleop/internal/rpc/rpctest"
	"github.com/rileyhilliard/teleop/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, start Starter, discover DiscoverFunc) (*Server, *Hub) {
	t.Helper()
	hub := NewHub(context.Background(), start, nil, nil)
	t.Cleanup(hub.Stop)
	if discover == nil {
		discover = func(context.Context) ([]transport.Process, error) { return nil, nil }
	}
	srv := NewServer(Options{
		Hub:      hub,
		Discover: discover,
		Interval: 1500 * time.Millisecond,
		Logger:   logger.NewBufferLogger(),
	})
	return srv, hub
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestServer_Index(t *testing.T) {
	tests := []struct {
		name     string
		discover DiscoverFunc
		contains []string
	}{
		{
			name: "lists processes",
			discover: func(context.Context) ([]transport.Process, error) {
				return []transport.Process{
					{PID: 4242, Command: "python etl.py"},
					{PID: 77, Socket: "/tmp/.teleop_pid77"},
				}, nil
			},
			contains: []string{`href="/teleop/4242"`, "python etl.py", `href="/teleop/77"`, "/tmp/.teleop_pid77"},
		},
		{
			name:     "no processes",
			contains: []string{"No observable processes found."},
		},
		{
			name: "discovery error",
			discover: func(context.Context) ([]transport.Process, error) {
				return nil, errors.New("permission denied")
			},
			contains: []string{"permission denied"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, (&fakeProcess{}).start, tt.discover)
			rec := get(t, srv.Routes(), "/")

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
			for _, want := range tt.contains {
				assert.Contains(t, rec.Body.String(), want)
			}
			assert.NotContains(t, rec.Body.String(), `http-equiv="refresh"`)
		})
	}
}

func TestServer_WatchPage(t *testing.T) {
	srv, hub := newTestServer(t, (&fakeProcess{}).start, nil)
	routes := srv.Routes()

	first := get(t, routes, "/teleop/4242")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Contains(t, first.Body.String(), `content="2"`, "refresh rounds the interval up")

	waitForCycle(t, hub, 4242)
	rec := get(t, routes, "/teleop/4242?scale=50")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `/teleop/4242/graph.svg?scale=50&amp;cycle=1`)
	assert.Contains(t, body, `width="100" height="50"`)
	assert.Contains(t, body, `<option value="50" selected>50%</option>`)
	assert.Contains(t, body, "A:0 -&gt; B:0")
	assert.Contains(t, body, "error: disk full")
	assert.Contains(t, body, render.ColorError)
	assert.NotContains(t, body, "Reconnect", "running watches have no reconnect link")
}

func TestServer_WatchPageFinished(t *testing.T) {
	srv, hub := newTestServer(t, (&fakeProcess{finish: true}).start, nil)
	routes := srv.Routes()

	get(t, routes, "/teleop/4242")
	require.Eventually(t, func() bool {
		state, _ := hub.State(4242)
		return !state.Running
	}, 2*time.Second, 5*time.Millisecond)

	body := get(t, routes, "/teleop/4242").Body.String()
	assert.Contains(t, body, "Reconnect")
	assert.Contains(t, body, `class="indicator finished"`)
	assert.NotContains(t, body, `http-equiv="refresh"`)
}

func TestServer_BadParams(t *testing.T) {
	srv, _ := newTestServer(t, (&fakeProcess{}).start, nil)
	routes := srv.Routes()

	tests := []struct {
		target string
		code   int
	}{
		{"/teleop/abc", http.StatusBadRequest},
		{"/teleop/0", http.StatusBadRequest},
		{"/teleop/4242?scale=5", http.StatusBadRequest},
		{"/teleop/4242?scale=big", http.StatusBadRequest},
		{"/teleop/-1/status", http.StatusBadRequest},
		{"/teleop/4242/graph.svg?scale=300", http.StatusBadRequest},
		{"/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			assert.Equal(t, tt.code, get(t, routes, tt.target).Code)
		})
	}
}

func TestServer_Graph(t *testing.T) {
	srv, hub := newTestServer(t, (&fakeProcess{}).start, nil)
	routes := srv.Routes()

	assert.Equal(t, http.StatusNotFound, get(t, routes, "/teleop/4242/graph.svg").Code, "not watched")

	hub.Watch(4242, false)
	waitForCycle(t, hub, 4242)

	rec := get(t, routes, "/teleop/4242/graph.svg?scale=150")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Body.String(), `width="300px" height="150px"`)

	def := get(t, routes, "/teleop/4242/graph.svg")
	assert.Contains(t, def.Body.String(), `width="200px" height="100px"`)
}

func TestServer_Status(t *testing.T) {
	srv, hub := newTestServer(t, (&fakeProcess{}).start, nil)
	routes := srv.Routes()

	var idle statusResponse
	require.NoError(t, sonic.Unmarshal(get(t, routes, "/teleop/4242/status").Body.Bytes(), &idle))
	assert.False(t, idle.Watching)

	hub.Watch(4242, false)
	waitForCycle(t, hub, 4242)

	rec := get(t, routes, "/teleop/4242/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp statusResponse
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Watching)
	assert.Equal(t, "polling", resp.Phase)
	assert.Equal(t, 1, resp.Cycle)
	assert.Equal(t, 200, resp.Width)
	assert.Equal(t, "error: disk full", resp.Nodes["B"].State)
	require.NotNil(t, resp.Nodes["A"].Written)
	assert.Equal(t, int64(100), *resp.Nodes["A"].Written)
	assert.Nil(t, resp.Nodes["A"].Read)

	require.Len(t, resp.Edges, 1)
	require.NotNil(t, resp.Edges[0].Backlog)
	assert.Equal(t, int64(20), *resp.Edges[0].Backlog)
	assert.Equal(t, "warning", resp.Edges[0].Severity)
	assert.Equal(t, 1, resp.States["running"])
	assert.Equal(t, 1, resp.States["error"])
}

func TestServer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := poll.NewMetrics(reg)
	hub := NewHub(context.Background(), (&fakeProcess{}).start, metrics, nil)
	t.Cleanup(hub.Stop)
	srv := NewServer(Options{
		Hub:      hub,
		Discover: func(context.Context) ([]transport.Process, error) { return nil, nil },
		Gatherer: reg,
	})

	rec := get(t, srv.Routes(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "teleop_poll_cycles_total")
}

func TestServer_ServeShutsDownWithContext(t *testing.T) {
	srv, hub := newTestServer(t, (&fakeProcess{}).start, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/teleop/4242")
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	waitForCycle(t, hub, 4242)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	assert.Equal(t, 0, hub.Current(), "shutdown stops the watch")
}

func TestServer_ListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	srv, _ := newTestServer(t, (&fakeProcess{}).start, nil)
	err = srv.ListenAndServe(context.Background(), ln.Addr().String())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Can't listen on")
}

// TestServer_WatchRealScheduler drives a scheduler against an in-memory
// process through the HTTP surface.
func TestServer_WatchRealScheduler(t *testing.T) {
	proc := rpctest.NewServer(lineTopology,
		pipeline.Snapshot{
			"A": {State: pipeline.Running{}, OutputWritten: pipeline.Counters(10)},
			"B": {State: pipeline.Running{}, InputRead: pipeline.Counters(4)},
		},
		pipeline.Snapshot{
			"A": {State: pipeline.Success{}, OutputWritten: pipeline.Counters(10)},
			"B": {State: pipeline.Success{}, InputRead: pipeline.Counters(10)},
		},
	)
	t.Cleanup(proc.Close)
	renderer := rendertest.New()

	start := func(ctx context.Context, pid int, sink poll.EventSink) (poll.Outcome, error) {
		s, err := poll.New(poll.Options{
			PID:      pid,
			Dialer:   proc,
			Renderer: renderer,
			Interval: time.Millisecond,
			Sink:     sink,
		})
		if err != nil {
			return poll.OutcomeFailed, err
		}
		return s.Run(ctx)
	}
	srv, hub := newTestServer(t, start, nil)
	routes := srv.Routes()

	get(t, routes, "/teleop/4242")
	require.Eventually(t, func() bool {
		state, _ := hub.State(4242)
		return !state.Running
	}, 5*time.Second, 5*time.Millisecond)

	var resp statusResponse
	require.NoError(t, sonic.Unmarshal(get(t, routes, "/teleop/4242/status").Body.Bytes(), &resp))
	assert.Equal(t, "finished", resp.Outcome)
	assert.Equal(t, 2, resp.Cycle)
	assert.Equal(t, 2, resp.States["success"])

	graph := get(t, routes, "/teleop/4242/graph.svg")
	assert.Equal(t, http.StatusOK, graph.Code)
	assert.True(t, strings.HasPrefix(graph.Body.String(), "<svg"))
}
