package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/rileyhilliard/teleop/internal/errors"
	"github.com/rileyhilliard/teleop/internal/pipeline"
	"github.com/rileyhilliard/teleop/internal/poll"
	"github.com/rileyhilliard/teleop/internal/render"
	"github.com/rileyhilliard/teleop/internal/ui"
)

// Printer writes one line per poll event, for pipes, CI logs and --plain.
type Printer struct {
	mu     sync.Mutex
	w      io.Writer
	policy render.BacklogPolicy
	file   *GraphFile
	lines  int
}

// NewPrinter creates a printer writing to w. file may be nil.
func NewPrinter(w io.Writer, policy render.BacklogPolicy, file *GraphFile) *Printer {
	return &Printer{w: w, policy: policy, file: file}
}

// Lines returns the number of lines written so far.
func (p *Printer) Lines() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lines
}

// Handle is a poll.EventSink. Write errors on the graph file are reported
// inline and do not stop the session.
func (p *Printer) Handle(e poll.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case e.IsCycle():
		p.println(p.cycleLine(e))
		if p.file != nil {
			if err := p.file.Write(e.Graph); err != nil {
				p.println(ui.ErrorStyle().Render(ui.SymbolFail + " " + errors.Summary(err)))
			}
		}
	case e.Phase == poll.PhaseConnecting:
		p.println(fmt.Sprintf("%s connecting to pid %d", ui.SymbolProgress, e.PID))
	case e.Phase == poll.PhaseConnected:
		p.println(ui.IndicatorLive.Render())
	case e.Phase == poll.PhasePolling:
		p.println(ui.MutedStyle().Render(fmt.Sprintf("topology: %d nodes, %d edges",
			len(e.Topology.Nodes), len(e.Topology.Edges))))
	case e.Phase == poll.PhaseDisconnected:
		line := ui.IndicatorFor(e.Phase, e.Outcome).Render()
		if e.Err != nil {
			line += ": " + errors.Summary(e.Err)
		}
		p.println(line)
	}
}

func (p *Printer) cycleLine(e poll.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] cycle %d", e.At.Format("15:04:05"), e.Cycle)

	counts := pipeline.StateCounts(e.Snapshot)
	for _, state := range []string{"waiting", "running", "success", "error"} {
		if counts[state] > 0 {
			fmt.Fprintf(&b, " %s=%d", state, counts[state])
		}
	}

	for _, edge := range e.Topology.Edges {
		flow := render.FlowOf(edge, e.Snapshot)
		backlog, ok := flow.Backlog()
		if !ok {
			continue
		}
		sev := p.policy.Classify(backlog)
		if sev == render.SeverityHealthy {
			continue
		}
		b.WriteString(" | ")
		b.WriteString(ui.HexStyle(sev.Color()).Render(fmt.Sprintf("%s backlog %d", edge, backlog)))
	}

	if failed := failedNodes(e.Snapshot); len(failed) > 0 {
		b.WriteString(" | ")
		b.WriteString(ui.ErrorStyle().Render("failed: " + strings.Join(failed, ", ")))
	}
	return b.String()
}

func failedNodes(snap pipeline.Snapshot) []string {
	var out []string
	for id, status := range snap {
		if f, ok := status.State.(pipeline.Failed); ok {
			name := string(id)
			if f.Detail != "" {
				name += " (" + f.Detail + ")"
			}
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (p *Printer) println(line string) {
	p.lines++
	fmt.Fprintln(p.w, line)
}
