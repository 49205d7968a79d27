package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rileyhilliard/teleop/internal/errors"
	"github.com/rileyhilliard/teleop/internal/pipeline"
)

// NodeColor is the fill color for a node status. Failed wins over any
// counters; a running node is only "active" once it has counted a record.
func NodeColor(status pipeline.NodeStatus) string {
	switch status.State.(type) {
	case pipeline.Success:
		return ColorSuccess
	case pipeline.Failed:
		return ColorError
	case pipeline.Running:
		if status.Total() != nil {
			return ColorActive
		}
	}
	return ColorIdle
}

// EdgeFlow holds the counters at both ends of an edge.
type EdgeFlow struct {
	Edge    pipeline.Edge
	Written *int64 // tail output counter
	Read    *int64 // head input counter
}

// FlowOf looks up the counters for e in snap.
func FlowOf(e pipeline.Edge, snap pipeline.Snapshot) EdgeFlow {
	return EdgeFlow{
		Edge:    e,
		Written: snap[e.Tail].OutputAt(e.TailPort),
		Read:    snap[e.Head].InputAt(e.HeadPort),
	}
}

// Backlog returns written minus read, or false when either side is absent.
func (f EdgeFlow) Backlog() (int64, bool) {
	if f.Written == nil || f.Read == nil {
		return 0, false
	}
	return *f.Written - *f.Read, true
}

// DOT renders the graph for one snapshot. Nodes and edges follow topology
// order. Names are quoted verbatim; a name containing a double quote is
// rejected rather than escaped.
func DOT(topo pipeline.Topology, snap pipeline.Snapshot, scheme Scheme, policy BacklogPolicy) (string, error) {
	for _, n := range topo.Nodes {
		if strings.ContainsRune(string(n), '"') {
			return "", errors.New(errors.ErrRender,
				fmt.Sprintf("Node name %q can't be used as a graph identifier", n),
				"Rename the node so it contains no double quote")
		}
	}
	if err := snap.Covers(topo); err != nil {
		return "", errors.WrapWithCode(err, errors.ErrRender, "Snapshot does not match the graph", "")
	}

	var b strings.Builder
	fg := scheme.Foreground()

	b.WriteString("digraph G {\n")
	b.WriteString("    graph [bgcolor=\"transparent\"];\n")
	fmt.Fprintf(&b, "    node [fontcolor=%q, color=%q];\n", fg, fg)
	fmt.Fprintf(&b, "    edge [fontcolor=%q, color=%q];\n", fg, fg)

	for _, n := range topo.Nodes {
		fmt.Fprintf(&b, "    %s [color=%q];\n", quoteID(n), NodeColor(snap[n]))
	}

	for _, e := range topo.Edges {
		flow := FlowOf(e, snap)
		attrs := edgeAttrs(flow, policy)
		fmt.Fprintf(&b, "    %s -> %s", quoteID(e.Tail), quoteID(e.Head))
		if len(attrs) > 0 {
			b.WriteString(" [" + strings.Join(attrs, ", ") + "]")
		}
		b.WriteString(";\n")
	}

	b.WriteString("}\n")
	return b.String(), nil
}

func edgeAttrs(flow EdgeFlow, policy BacklogPolicy) []string {
	var attrs []string
	if flow.Written != nil {
		attrs = append(attrs, attr("taillabel", strconv.FormatInt(*flow.Written, 10)))
	}
	if flow.Read != nil {
		label := strconv.FormatInt(*flow.Read, 10)
		if backlog, ok := flow.Backlog(); ok {
			label = fmt.Sprintf("%d (%d)", *flow.Read, backlog)
		}
		attrs = append(attrs, attr("headlabel", label))
	}
	if backlog, ok := flow.Backlog(); ok {
		attrs = append(attrs, attr("color", policy.Classify(backlog).Color()))
	}
	return attrs
}

func attr(key, value string) string {
	return key + "=\"" + value + "\""
}

func quoteID(n pipeline.NodeID) string {
	return "\"" + string(n) + "\""
}
