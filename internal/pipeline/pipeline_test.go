package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsFinished(t *testing.T) {
	tests := []struct {
		name     string
		snapshot Snapshot
		expected bool
	}{
		{
			name:     "empty snapshot",
			snapshot: Snapshot{},
			expected: true,
		},
		{
			name: "all success",
			snapshot: Snapshot{
				"A": {State: Success{}},
				"B": {State: Success{}},
			},
			expected: true,
		},
		{
			name: "success and error",
			snapshot: Snapshot{
				"A": {State: Success{}},
				"B": {State: Failed{Detail: "boom"}},
			},
			expected: true,
		},
		{
			name: "one waiting",
			snapshot: Snapshot{
				"A": {State: Success{}},
				"B": {State: Waiting{}},
			},
			expected: false,
		},
		{
			name: "one running",
			snapshot: Snapshot{
				"A": {State: Failed{}},
				"B": {State: Running{}},
			},
			expected: false,
		},
		{
			name: "missing state",
			snapshot: Snapshot{
				"A": {},
			},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsFinished(tt.snapshot))
		})
	}
}

func TestNodeStatus_Total(t *testing.T) {
	tests := []struct {
		name     string
		status   NodeStatus
		expected *int64
	}{
		{
			name:     "no ports",
			status:   NodeStatus{State: Running{}},
			expected: nil,
		},
		{
			name: "all slots absent",
			status: NodeStatus{
				State:         Running{},
				InputRead:     []*int64{nil},
				OutputWritten: []*int64{nil},
			},
			expected: nil,
		},
		{
			name: "zero is present",
			status: NodeStatus{
				InputRead: Counters(0),
			},
			expected: Count(0),
		},
		{
			name: "sums both sides",
			status: NodeStatus{
				InputRead:     Counters(3, -1, 4),
				OutputWritten: Counters(10),
			},
			expected: Count(17),
		},
		{
			name: "output only",
			status: NodeStatus{
				InputRead:     []*int64{nil},
				OutputWritten: Counters(1),
			},
			expected: Count(1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.status.Total()
			if tt.expected == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.expected, *got)
		})
	}
}

func TestNodeStatus_PortAccess(t *testing.T) {
	status := NodeStatus{
		InputRead:     Counters(5, -1),
		OutputWritten: Counters(7),
	}

	require.NotNil(t, status.InputAt(0))
	assert.Equal(t, int64(5), *status.InputAt(0))
	assert.Nil(t, status.InputAt(1), "unobserved slot")
	assert.Nil(t, status.InputAt(2), "out of range")
	assert.Nil(t, status.InputAt(-1))

	require.NotNil(t, status.OutputAt(0))
	assert.Equal(t, int64(7), *status.OutputAt(0))
	assert.Nil(t, status.OutputAt(1))
}

func TestTopology_Validate(t *testing.T) {
	tests := []struct {
		name    string
		topo    Topology
		wantErr string
	}{
		{
			name: "valid",
			topo: Topology{
				Nodes: []NodeID{"A", "B"},
				Edges: []Edge{{Tail: "A", Head: "B"}},
			},
		},
		{
			name: "unknown head",
			topo: Topology{
				Nodes: []NodeID{"A"},
				Edges: []Edge{{Tail: "A", Head: "B"}},
			},
			wantErr: `unknown head node "B"`,
		},
		{
			name: "unknown tail",
			topo: Topology{
				Nodes: []NodeID{"B"},
				Edges: []Edge{{Tail: "A", Head: "B"}},
			},
			wantErr: `unknown tail node "A"`,
		},
		{
			name:    "duplicate node",
			topo:    Topology{Nodes: []NodeID{"A", "A"}},
			wantErr: `duplicate node "A"`,
		},
		{
			name: "negative port",
			topo: Topology{
				Nodes: []NodeID{"A", "B"},
				Edges: []Edge{{Tail: "A", TailPort: -1, Head: "B"}},
			},
			wantErr: "negative port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.topo.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSnapshot_Covers(t *testing.T) {
	topo := Topology{Nodes: []NodeID{"A", "B"}}

	assert.NoError(t, Snapshot{"A": {}, "B": {}, "extra": {}}.Covers(topo))

	err := Snapshot{"A": {}}.Covers(topo)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"B"`)
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
		terminal bool
	}{
		{Waiting{}, "waiting", false},
		{Running{}, "running", false},
		{Success{}, "success", true},
		{Failed{}, "error", true},
		{Failed{Detail: "disk full"}, "error: disk full", true},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.state.String())
			assert.Equal(t, tt.terminal, tt.state.Terminal())
		})
	}
}

func TestStateCounts(t *testing.T) {
	counts := StateCounts(Snapshot{
		"A": {State: Success{}},
		"B": {State: Running{}},
		"C": {State: Running{}},
		"D": {State: Failed{}},
	})

	assert.Equal(t, map[string]int{"waiting": 0, "running": 2, "success": 1, "error": 1}, counts)
}
