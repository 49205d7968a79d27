package render

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/rileyhilliard/teleop/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSVG = `<?xml version="1.0" encoding="UTF-8" standalone="no"?>
<svg width="134pt" height="116pt"
 viewBox="0.00 0.00 134.00 116.00" xmlns="http://www.w3.org/2000/svg">
<g id="graph0" class="graph"></g>
</svg>
`

func TestParseDimensions(t *testing.T) {
	w, h, err := ParseDimensions([]byte(`<svg width="134pt" height="116pt" viewBox="0 0 134 116">`))
	require.NoError(t, err)
	assert.Equal(t, 134, w)
	assert.Equal(t, 116, h)

	_, _, err = ParseDimensions([]byte(`<svg width="10px" height="5px">`))
	assert.Error(t, err)
}

func TestScaleSVG(t *testing.T) {
	tests := []struct {
		percent  int
		expected string
	}{
		{100, `width="134px" height="116px"`},
		{50, `width="67px" height="58px"`},
		{10, `width="13px" height="11px"`},
		{200, `width="268px" height="232px"`},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			out, err := ScaleSVG([]byte(sampleSVG), tt.percent)
			require.NoError(t, err)
			assert.Contains(t, string(out), tt.expected)
			assert.Contains(t, string(out), `viewBox="0.00 0.00 134.00 116.00"`)
		})
	}

	_, err := ScaleSVG([]byte("<svg/>"), 100)
	assert.Error(t, err)
}

// fakeDot writes a shell script standing in for the graphviz binary.
func fakeDot(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "dot")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestGraphvizRenderer_Render(t *testing.T) {
	path := fakeDot(t, `[ "$1" = "-Tsvg" ] || exit 3
cat > /dev/null
echo '<svg width="40pt" height="20pt" viewBox="0 0 40 20"></svg>'`)

	r := NewGraphvizRenderer(path)
	graph, err := r.Render(context.Background(), "digraph G {}\n")
	require.NoError(t, err)

	assert.Equal(t, "digraph G {}\n", graph.DOT)
	assert.Equal(t, 40, graph.Width)
	assert.Equal(t, 20, graph.Height)
	assert.Contains(t, string(graph.SVG), "<svg")
}

func TestGraphvizRenderer_Failures(t *testing.T) {
	t.Run("non-zero exit", func(t *testing.T) {
		path := fakeDot(t, `cat > /dev/null; echo "syntax error in line 1" >&2; exit 1`)

		_, err := NewGraphvizRenderer(path).Render(context.Background(), "digraph {")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrRender))
		assert.Contains(t, err.Error(), "syntax error in line 1")
	})

	t.Run("no dimensions", func(t *testing.T) {
		path := fakeDot(t, `cat > /dev/null; echo '<svg></svg>'`)

		_, err := NewGraphvizRenderer(path).Render(context.Background(), "digraph G {}")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrRender))
	})

	t.Run("binary missing", func(t *testing.T) {
		_, err := NewGraphvizRenderer(filepath.Join(t.TempDir(), "no-dot")).Render(context.Background(), "digraph G {}")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrRender))
	})

	t.Run("cancelled", func(t *testing.T) {
		path := fakeDot(t, `sleep 5`)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewGraphvizRenderer(path).Render(ctx, "digraph G {}")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestNewGraphvizRenderer_DefaultPath(t *testing.T) {
	assert.Equal(t, "dot", NewGraphvizRenderer("").Path)
}
