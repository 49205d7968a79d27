package monitor

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/teleop/internal/pipeline"
	"github.com/stretchr/testify/assert"
)

func TestSectionHeader(t *testing.T) {
	header := SectionHeader("Nodes", "3", 40)
	assert.Equal(t, 40, lipgloss.Width(header))
	assert.Contains(t, header, "Nodes")
	assert.Contains(t, header, "3")
}

func TestSectionContentLine(t *testing.T) {
	line := SectionContentLine("hello", 20)
	assert.Equal(t, 20, lipgloss.Width(line))
	assert.True(t, strings.HasPrefix(line, "│") || strings.Contains(line, "│"))
}

func TestSectionFooter(t *testing.T) {
	assert.Equal(t, 12, lipgloss.Width(SectionFooter(12)))
}

func TestCell(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		width int
		want  string
	}{
		{"pad", "ab", 4, "ab  "},
		{"exact", "abcd", 4, "abcd"},
		{"truncate", "abcdef", 4, "abc…"},
		{"zero width", "abc", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cell(tt.in, tt.width))
		})
	}

	assert.Equal(t, "  ab", rcell("ab", 4))
	assert.Equal(t, "abcdef", rcell("abcdef", 4))
}

func TestSum(t *testing.T) {
	assert.Nil(t, sum(nil))
	assert.Nil(t, sum([]*int64{nil, nil}))
	assert.Equal(t, int64(7), *sum(pipeline.Counters(3, -1, 4)))
	assert.Equal(t, "-", formatCount(nil))
	assert.Equal(t, "12", formatCount(pipeline.Count(12)))
}
