package web

import (
	"bytes"
	"context"
	"embed"
	stderrors "errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rileyhilliard/teleop/internal/config"
	"github.com/rileyhilliard/teleop/internal/errors"
	"github.com/rileyhilliard/teleop/internal/logger"
	"github.com/rileyhilliard/teleop/internal/pipeline"
	"github.com/rileyhilliard/teleop/internal/render"
	"github.com/rileyhilliard/teleop/internal/transport"
	"github.com/rileyhilliard/teleop/internal/ui"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// DiscoverFunc lists processes that can be watched.
type DiscoverFunc func(ctx context.Context) ([]transport.Process, error)

// Options configures a Server.
type Options struct {
	Hub      *Hub
	Discover DiscoverFunc
	Gatherer prometheus.Gatherer
	Policy   render.BacklogPolicy
	Interval time.Duration
	Scale    int
	Host     string // shown on the index page; empty for local
	Logger   logger.Logger
}

// Server is the HTTP viewer.
type Server struct {
	opts Options
	log  logger.Logger
}

// NewServer creates a viewer. Hub and Discover are required.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logger.Noop()
	}
	if config.ValidateScale(opts.Scale) != nil {
		opts.Scale = config.DefaultScale
	}
	if opts.Interval <= 0 {
		opts.Interval = config.DefaultPollInterval
	}
	if opts.Policy == (render.BacklogPolicy{}) {
		opts.Policy = render.DefaultPolicy()
	}
	return &Server{opts: opts, log: opts.Logger}
}

// Routes returns the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/", s.handleIndex)
	r.Route("/teleop/{pid}", func(r chi.Router) {
		r.Get("/", s.handleWatch)
		r.Get("/graph.svg", s.handleGraph)
		r.Get("/status", s.handleStatus)
	})
	if s.opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// ListenAndServe serves on addr until ctx is done, then shuts down and
// stops the active watch.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Can't listen on %s", addr),
			"Pick another address with --addr or serve.addr")
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.log.Info("serving on http://%s", ln.Addr())

	select {
	case err := <-errCh:
		s.opts.Hub.Stop()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.opts.Hub.Stop()
	if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("%s %s -> %d (%s)", r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}

type indexPage struct {
	Title     string
	Refresh   int
	Host      string
	Error     string
	Processes []transport.Process
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page := indexPage{Title: "teleop", Host: s.opts.Host}
	procs, err := s.opts.Discover(r.Context())
	if err != nil {
		page.Error = errors.Summary(err)
	}
	page.Processes = procs
	s.render(w, "index", page)
}

type nodeRow struct {
	Name, State, Color string
	Read, Written      string
}

type edgeRow struct {
	Name, Color            string
	Written, Read, Backlog string
}

type watchPage struct {
	Title           string
	Refresh         int
	PID             int
	IndicatorClass  string
	IndicatorSymbol string
	IndicatorLabel  string
	Running         bool
	Cycle           int
	Error           string
	Scale           int
	Scales          []int
	HasGraph        bool
	Width, Height   int
	Nodes           []nodeRow
	Edges           []edgeRow
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	pid, ok := pidParam(w, r)
	if !ok {
		return
	}
	scale, ok := s.scaleParam(w, r)
	if !ok {
		return
	}

	state := s.opts.Hub.Watch(pid, r.URL.Query().Get("restart") != "")
	s.render(w, "watch", s.watchPage(state, scale))
}

func (s *Server) watchPage(state WatchState, scale int) watchPage {
	indicator := ui.IndicatorFor(state.Phase, state.Outcome)
	page := watchPage{
		Title:           fmt.Sprintf("teleop: pid %d", state.PID),
		PID:             state.PID,
		IndicatorClass:  indicatorClass(indicator),
		IndicatorSymbol: indicator.Symbol(),
		IndicatorLabel:  indicator.Label(),
		Running:         state.Running,
		Cycle:           state.Cycle,
		Error:           errors.Summary(state.Err),
		Scale:           scale,
		HasGraph:        state.Graph.Width > 0,
	}
	if state.Running {
		page.Refresh = refreshSeconds(s.opts.Interval)
	}
	for v := config.MinScale; v <= config.MaxScale; v += config.ScaleStep {
		page.Scales = append(page.Scales, v)
	}
	if page.HasGraph {
		page.Width, page.Height = render.Scaled(state.Graph.Width, state.Graph.Height, scale)
	}

	for _, id := range state.Topology.Nodes {
		status, seen := state.Snapshot[id]
		row := nodeRow{Name: string(id), State: "-", Color: render.ColorIdle}
		if seen && status.State != nil {
			row.State = status.State.String()
			row.Color = render.NodeColor(status)
		}
		row.Read = formatCount(sumCounters(status.InputRead))
		row.Written = formatCount(sumCounters(status.OutputWritten))
		page.Nodes = append(page.Nodes, row)
	}
	for _, e := range state.Topology.Edges {
		flow := render.FlowOf(e, state.Snapshot)
		row := edgeRow{
			Name:    e.String(),
			Written: formatCount(flow.Written),
			Read:    formatCount(flow.Read),
			Backlog: "-",
		}
		if d, ok := flow.Backlog(); ok {
			row.Backlog = strconv.FormatInt(d, 10)
			row.Color = s.opts.Policy.Classify(d).Color()
		}
		page.Edges = append(page.Edges, row)
	}
	return page
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	pid, ok := pidParam(w, r)
	if !ok {
		return
	}
	scale, ok := s.scaleParam(w, r)
	if !ok {
		return
	}

	state, watched := s.opts.Hub.State(pid)
	if !watched || state.Graph.Width == 0 {
		http.Error(w, "no graph rendered yet", http.StatusNotFound)
		return
	}

	svg, err := render.ScaleSVG(state.Graph.SVG, scale)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(svg)
}

// statusResponse is the JSON shape of /teleop/{pid}/status.
type statusResponse struct {
	PID       int                   `json:"pid"`
	Watching  bool                  `json:"watching"`
	Phase     string                `json:"phase"`
	Outcome   string                `json:"outcome"`
	Indicator string                `json:"indicator"`
	Cycle     int                   `json:"cycle"`
	Error     string                `json:"error,omitempty"`
	UpdatedAt *time.Time            `json:"updated_at,omitempty"`
	Width     int                   `json:"width,omitempty"`
	Height    int                   `json:"height,omitempty"`
	Nodes     map[string]nodeStatus `json:"nodes,omitempty"`
	Edges     []edgeStatus          `json:"edges,omitempty"`
	States    map[string]int        `json:"states,omitempty"`
}

type nodeStatus struct {
	State   string `json:"state"`
	Read    *int64 `json:"read"`
	Written *int64 `json:"written"`
}

type edgeStatus struct {
	Tail     string `json:"tail"`
	TailPort int    `json:"tail_port"`
	Head     string `json:"head"`
	HeadPort int    `json:"head_port"`
	Written  *int64 `json:"written"`
	Read     *int64 `json:"read"`
	Backlog  *int64 `json:"backlog"`
	Severity string `json:"severity,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	pid, ok := pidParam(w, r)
	if !ok {
		return
	}

	state, watched := s.opts.Hub.State(pid)
	resp := statusResponse{PID: pid, Watching: watched}
	if watched {
		resp.Phase = state.Phase.String()
		resp.Outcome = state.Outcome.String()
		resp.Indicator = ui.IndicatorFor(state.Phase, state.Outcome).Label()
		resp.Cycle = state.Cycle
		resp.Error = errors.Summary(state.Err)
		if !state.UpdatedAt.IsZero() {
			at := state.UpdatedAt
			resp.UpdatedAt = &at
		}
		resp.Width, resp.Height = state.Graph.Width, state.Graph.Height
		if state.Cycle > 0 {
			resp.Nodes, resp.Edges = s.statusDetail(state)
			resp.States = pipeline.StateCounts(state.Snapshot)
		}
	}

	body, err := sonic.Marshal(resp)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

func (s *Server) statusDetail(state WatchState) (map[string]nodeStatus, []edgeStatus) {
	nodes := make(map[string]nodeStatus, len(state.Snapshot))
	for id, status := range state.Snapshot {
		ns := nodeStatus{
			Read:    sumCounters(status.InputRead),
			Written: sumCounters(status.OutputWritten),
		}
		if status.State != nil {
			ns.State = status.State.String()
		}
		nodes[string(id)] = ns
	}

	edges := make([]edgeStatus, 0, len(state.Topology.Edges))
	for _, e := range state.Topology.Edges {
		flow := render.FlowOf(e, state.Snapshot)
		es := edgeStatus{
			Tail:     string(e.Tail),
			TailPort: e.TailPort,
			Head:     string(e.Head),
			HeadPort: e.HeadPort,
			Written:  flow.Written,
			Read:     flow.Read,
		}
		if d, ok := flow.Backlog(); ok {
			es.Backlog = &d
			es.Severity = s.opts.Policy.Classify(d).String()
		}
		edges = append(edges, es)
	}
	return nodes, edges
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.log.Error("template %s: %v", name, err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func pidParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	pid, err := strconv.Atoi(chi.URLParam(r, "pid"))
	if err != nil || pid <= 0 {
		http.Error(w, "invalid pid", http.StatusBadRequest)
		return 0, false
	}
	return pid, true
}

func (s *Server) scaleParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("scale")
	if raw == "" {
		return s.opts.Scale, true
	}
	scale, err := strconv.Atoi(raw)
	if err == nil {
		err = config.ValidateScale(scale)
	}
	if err != nil {
		http.Error(w, "invalid scale", http.StatusBadRequest)
		return 0, false
	}
	return scale, true
}

func indicatorClass(i ui.Indicator) string {
	switch i {
	case ui.IndicatorLive:
		return "live"
	case ui.IndicatorFinished:
		return "finished"
	case ui.IndicatorError:
		return "error"
	case ui.IndicatorStopped:
		return "stopped"
	}
	return "neutral"
}

func refreshSeconds(interval time.Duration) int {
	secs := int((interval + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

func sumCounters(counters []*int64) *int64 {
	var total int64
	seen := false
	for _, c := range counters {
		if c != nil {
			total += *c
			seen = true
		}
	}
	if !seen {
		return nil
	}
	return &total
}

func formatCount(n *int64) string {
	if n == nil {
		return "-"
	}
	return strconv.FormatInt(*n, 10)
}
