package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/table"
	"github.com/rileyhilliard/teleop/internal/errors"
	"github.com/rileyhilliard/teleop/internal/poll"
	"github.com/rileyhilliard/teleop/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndicatorFor(t *testing.T) {
	tests := []struct {
		name    string
		phase   poll.Phase
		outcome poll.Outcome
		want    Indicator
		label   string
	}{
		{"connecting", poll.PhaseConnecting, poll.OutcomeNone, IndicatorNeutral, "connecting"},
		{"connected", poll.PhaseConnected, poll.OutcomeNone, IndicatorLive, "connected"},
		{"polling", poll.PhasePolling, poll.OutcomeNone, IndicatorLive, "connected"},
		{"finished", poll.PhaseDisconnected, poll.OutcomeFinished, IndicatorFinished, "finished"},
		{"failed", poll.PhaseDisconnected, poll.OutcomeFailed, IndicatorError, "error"},
		{"cancelled", poll.PhaseDisconnected, poll.OutcomeCancelled, IndicatorStopped, "stopped"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IndicatorFor(tt.phase, tt.outcome)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.label, got.Label())
			assert.Contains(t, got.Render(), tt.label)
		})
	}
}

func TestIndicator_DistinctSymbols(t *testing.T) {
	seen := map[string]Indicator{}
	for _, i := range []Indicator{IndicatorNeutral, IndicatorLive, IndicatorFinished, IndicatorError, IndicatorStopped} {
		prev, dup := seen[i.Symbol()]
		assert.False(t, dup, "%v and %v share a symbol", prev, i)
		seen[i.Symbol()] = i
	}
}

func TestNewTable(t *testing.T) {
	columns := []TableColumn{
		{Title: "Node", Width: 20},
		{Title: "State", Width: 10},
	}
	rows := []table.Row{
		{"source", "running"},
		{"sink", "waiting"},
	}

	view := NewTable(columns, rows).View()
	assert.Contains(t, view, "Node")
	assert.Contains(t, view, "State")
	assert.Contains(t, view, "source")
	assert.Contains(t, view, "sink")
}

func TestRenderSimpleTable_Empty(t *testing.T) {
	assert.Empty(t, RenderSimpleTable([]TableColumn{{Title: "A", Width: 5}}, nil))
}

func TestRenderProcessTable(t *testing.T) {
	out := RenderProcessTable([]transport.Process{
		{PID: 4242, Socket: "/tmp/.teleop_pid4242", Command: "pipeline --run"},
		{PID: 7, Socket: "/tmp/.teleop_pid7", Host: "gpu-box"},
	})

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Contains(t, out, "PID")
	assert.Contains(t, out, "4242")
	assert.Contains(t, out, "local")
	assert.Contains(t, out, "pipeline --run")
	assert.Contains(t, out, "gpu-box")
	assert.Contains(t, out, "/tmp/.teleop_pid7", "socket shown when command unknown")
}

func TestRenderProcessTable_Empty(t *testing.T) {
	assert.Contains(t, RenderProcessTable(nil), "No observable processes")
}

func TestRenderHeader(t *testing.T) {
	out := RenderHeader(HeaderInfo{Version: "v1.2.3", Tagline: "pipeline observer"})
	assert.Contains(t, out, "teleop")
	assert.Contains(t, out, "v1.2.3")
	assert.Contains(t, out, "pipeline observer")
	assert.Contains(t, out, "━")
}

func TestProcessOptions(t *testing.T) {
	opts := ProcessOptions([]transport.Process{
		{PID: 1, Command: "a"},
		{PID: 2, Socket: "/tmp/.teleop_pid2"},
	})
	require.Len(t, opts, 2)
	assert.Equal(t, "1  a", opts[0].Key)
	assert.Equal(t, 0, opts[0].Value)
	assert.Equal(t, "2  /tmp/.teleop_pid2", opts[1].Key)
	assert.Equal(t, 1, opts[1].Value)
}

func TestPickProcess_Shortcuts(t *testing.T) {
	_, err := PickProcessWithIO(nil, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConnect))

	only := []transport.Process{{PID: 9}}
	p, err := PickProcessWithIO(only, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 9, p.PID)
}

func TestPadRight(t *testing.T) {
	assert.Equal(t, "ab   ", padRight("ab", 5))
	assert.Equal(t, "abcdef ", padRight("abcdef", 3))
}
