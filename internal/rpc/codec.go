package rpc

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/rileyhilliard/teleop/internal/pipeline"
)

// Wire state tags.
const (
	TagWaiting = "waiting"
	TagRunning = "running"
	TagSuccess = "success"
	TagError   = "error"
)

type serviceRequest struct {
	Name string `json:"name"`
}

type serviceResponse struct {
	Service string `json:"service"`
}

type graphResponse struct {
	Graph *wireGraph `json:"graph"`
}

type wireGraph struct {
	Nodes []wireNode `json:"nodes"`
	Edges []wireEdge `json:"edges"`
}

type wireNode struct {
	Name string `json:"name"`
}

type wireEdge struct {
	TailName  string `json:"tail_name"`
	TailIndex int    `json:"tail_index"`
	HeadName  string `json:"head_name"`
	HeadIndex int    `json:"head_index"`
}

type statusResponse struct {
	Statuses *[]wireStatus `json:"statuses"`
}

type wireStatus struct {
	NodeName      string     `json:"node_name"`
	State         *wireState `json:"state"`
	InputRead     []*int64   `json:"input_read"`
	OutputWritten []*int64   `json:"output_written"`
}

type wireState struct {
	Tag    string `json:"tag"`
	Detail string `json:"detail,omitempty"`
}

func decodeServiceHandle(raw []byte) (string, error) {
	var resp serviceResponse
	if err := sonic.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode service handle: %w", err)
	}
	if resp.Service == "" {
		return "", fmt.Errorf("decode service handle: empty handle")
	}
	return resp.Service, nil
}

// DecodeTopology decodes a graph response and validates it.
func DecodeTopology(raw []byte) (pipeline.Topology, error) {
	var resp graphResponse
	if err := sonic.Unmarshal(raw, &resp); err != nil {
		return pipeline.Topology{}, fmt.Errorf("decode graph: %w", err)
	}
	if resp.Graph == nil {
		return pipeline.Topology{}, fmt.Errorf("decode graph: missing graph field")
	}

	topo := pipeline.Topology{
		Nodes: make([]pipeline.NodeID, 0, len(resp.Graph.Nodes)),
		Edges: make([]pipeline.Edge, 0, len(resp.Graph.Edges)),
	}
	for _, n := range resp.Graph.Nodes {
		topo.Nodes = append(topo.Nodes, pipeline.NodeID(n.Name))
	}
	for _, e := range resp.Graph.Edges {
		topo.Edges = append(topo.Edges, pipeline.Edge{
			Tail:     pipeline.NodeID(e.TailName),
			TailPort: e.TailIndex,
			Head:     pipeline.NodeID(e.HeadName),
			HeadPort: e.HeadIndex,
		})
	}

	if err := topo.Validate(); err != nil {
		return pipeline.Topology{}, fmt.Errorf("invalid graph: %w", err)
	}
	return topo, nil
}

// DecodeStatuses decodes a node_statuses response into a snapshot. A
// repeated node name or an unknown state tag fails the whole decode.
func DecodeStatuses(raw []byte) (pipeline.Snapshot, error) {
	var resp statusResponse
	if err := sonic.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode statuses: %w", err)
	}
	if resp.Statuses == nil {
		return nil, fmt.Errorf("decode statuses: missing statuses field")
	}

	snap := make(pipeline.Snapshot, len(*resp.Statuses))
	for i, ws := range *resp.Statuses {
		if ws.NodeName == "" {
			return nil, fmt.Errorf("decode statuses: entry %d has no node name", i)
		}
		id := pipeline.NodeID(ws.NodeName)
		if _, dup := snap[id]; dup {
			return nil, fmt.Errorf("decode statuses: duplicate node %q", id)
		}
		if ws.State == nil {
			return nil, fmt.Errorf("decode statuses: node %q has no state", id)
		}
		state, err := decodeState(*ws.State)
		if err != nil {
			return nil, fmt.Errorf("decode statuses: node %q: %w", id, err)
		}
		snap[id] = pipeline.NodeStatus{
			State:         state,
			InputRead:     ws.InputRead,
			OutputWritten: ws.OutputWritten,
		}
	}
	return snap, nil
}

func decodeState(ws wireState) (pipeline.State, error) {
	switch ws.Tag {
	case TagWaiting:
		return pipeline.Waiting{}, nil
	case TagRunning:
		return pipeline.Running{}, nil
	case TagSuccess:
		return pipeline.Success{}, nil
	case TagError:
		return pipeline.Failed{Detail: ws.Detail}, nil
	}
	return nil, fmt.Errorf("unknown state tag %q", ws.Tag)
}

func encodeState(s pipeline.State) wireState {
	switch v := s.(type) {
	case pipeline.Running:
		return wireState{Tag: TagRunning}
	case pipeline.Success:
		return wireState{Tag: TagSuccess}
	case pipeline.Failed:
		return wireState{Tag: TagError, Detail: v.Detail}
	}
	return wireState{Tag: TagWaiting}
}

// EncodeService builds the result of a service lookup.
func EncodeService(handle string) ([]byte, error) {
	return sonic.Marshal(serviceResponse{Service: handle})
}

// EncodeTopology builds the result of a graph call.
func EncodeTopology(t pipeline.Topology) ([]byte, error) {
	g := &wireGraph{
		Nodes: make([]wireNode, 0, len(t.Nodes)),
		Edges: make([]wireEdge, 0, len(t.Edges)),
	}
	for _, n := range t.Nodes {
		g.Nodes = append(g.Nodes, wireNode{Name: string(n)})
	}
	for _, e := range t.Edges {
		g.Edges = append(g.Edges, wireEdge{
			TailName:  string(e.Tail),
			TailIndex: e.TailPort,
			HeadName:  string(e.Head),
			HeadIndex: e.HeadPort,
		})
	}
	return sonic.Marshal(graphResponse{Graph: g})
}

// EncodeStatuses builds the result of a node_statuses call. Nodes are
// emitted in the order given by order, then any remaining nodes.
func EncodeStatuses(s pipeline.Snapshot, order []pipeline.NodeID) ([]byte, error) {
	statuses := make([]wireStatus, 0, len(s))
	seen := make(map[pipeline.NodeID]bool, len(s))
	add := func(id pipeline.NodeID) {
		st, ok := s[id]
		if !ok || seen[id] {
			return
		}
		seen[id] = true
		ws := encodeState(st.State)
		statuses = append(statuses, wireStatus{
			NodeName:      string(id),
			State:         &ws,
			InputRead:     st.InputRead,
			OutputWritten: st.OutputWritten,
		})
	}
	for _, id := range order {
		add(id)
	}
	for id := range s {
		add(id)
	}
	return sonic.Marshal(statusResponse{Statuses: &statuses})
}
