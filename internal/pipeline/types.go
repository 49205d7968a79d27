package pipeline

import "fmt"

// NodeID is the unique name of a processing stage.
type NodeID string

// Edge connects an output port of one node to an input port of another.
type Edge struct {
	Tail     NodeID
	TailPort int
	Head     NodeID
	HeadPort int
}

// String returns the edge as "tail:port -> head:port".
func (e Edge) String() string {
	return fmt.Sprintf("%s:%d -> %s:%d", e.Tail, e.TailPort, e.Head, e.HeadPort)
}

// Topology is the static execution graph of a pipeline. It is fetched once
// per session and never mutated afterwards.
type Topology struct {
	Nodes []NodeID
	Edges []Edge
}

// Validate checks that node names are unique and that every edge references
// a declared node.
func (t Topology) Validate() error {
	known := make(map[NodeID]bool, len(t.Nodes))
	for _, n := range t.Nodes {
		if known[n] {
			return fmt.Errorf("duplicate node %q", n)
		}
		known[n] = true
	}
	for _, e := range t.Edges {
		if !known[e.Tail] {
			return fmt.Errorf("edge %s: unknown tail node %q", e, e.Tail)
		}
		if !known[e.Head] {
			return fmt.Errorf("edge %s: unknown head node %q", e, e.Head)
		}
		if e.TailPort < 0 || e.HeadPort < 0 {
			return fmt.Errorf("edge %s: negative port index", e)
		}
	}
	return nil
}

// NodeStatus is the live status of one node. Each counter slot maps to a port
// index; a nil slot has not been observed yet, which is distinct from zero.
type NodeStatus struct {
	State         State
	InputRead     []*int64
	OutputWritten []*int64
}

// InputAt returns the read counter of the given input port, or nil when the
// port is unknown or not yet observed.
func (s NodeStatus) InputAt(port int) *int64 {
	return slot(s.InputRead, port)
}

// OutputAt returns the written counter of the given output port, or nil when
// the port is unknown or not yet observed.
func (s NodeStatus) OutputAt(port int) *int64 {
	return slot(s.OutputWritten, port)
}

// Total sums every present counter on both sides. It returns nil when no
// counter has been observed at all.
func (s NodeStatus) Total() *int64 {
	var total int64
	seen := false
	for _, counters := range [][]*int64{s.InputRead, s.OutputWritten} {
		for _, c := range counters {
			if c != nil {
				total += *c
				seen = true
			}
		}
	}
	if !seen {
		return nil
	}
	return &total
}

func slot(counters []*int64, port int) *int64 {
	if port < 0 || port >= len(counters) {
		return nil
	}
	return counters[port]
}

// Snapshot is one point-in-time read of every node's status. It is replaced
// wholesale every poll cycle.
type Snapshot map[NodeID]NodeStatus

// Covers reports the first topology node missing from the snapshot.
func (s Snapshot) Covers(t Topology) error {
	for _, n := range t.Nodes {
		if _, ok := s[n]; !ok {
			return fmt.Errorf("no status for node %q", n)
		}
	}
	return nil
}

// Count returns a pointer to n, for building counter slots.
func Count(n int64) *int64 {
	return &n
}

// Counters builds a counter slice from values, where a negative value stands
// for an unobserved slot.
func Counters(values ...int64) []*int64 {
	out := make([]*int64, len(values))
	for i, v := range values {
		if v >= 0 {
			out[i] = Count(v)
		}
	}
	return out
}
