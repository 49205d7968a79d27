package render

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/rileyhilliard/teleop/internal/errors"
)

// RenderedGraph is one cycle's output: the DOT source, the SVG produced from
// it and the image's natural size in points.
type RenderedGraph struct {
	DOT    string
	SVG    []byte
	Width  int
	Height int
}

// ImageRenderer converts DOT into an image. Implementations must honor ctx.
type ImageRenderer interface {
	Render(ctx context.Context, dot string) (RenderedGraph, error)
}

var svgSizePattern = regexp.MustCompile(`width="([0-9]+)pt" height="([0-9]+)pt"`)

// GraphvizRenderer pipes DOT through the Graphviz "dot" binary.
type GraphvizRenderer struct {
	Path string
}

// NewGraphvizRenderer returns a renderer using the binary at path, or "dot"
// from PATH when path is empty.
func NewGraphvizRenderer(path string) *GraphvizRenderer {
	if path == "" {
		path = "dot"
	}
	return &GraphvizRenderer{Path: path}
}

// Render runs dot -Tsvg with the source on stdin.
func (g *GraphvizRenderer) Render(ctx context.Context, dot string) (RenderedGraph, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, g.Path, "-Tsvg")
	cmd.Stdin = strings.NewReader(dot)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return RenderedGraph{}, ctx.Err()
		}
		if stderrors.Is(err, exec.ErrNotFound) {
			return RenderedGraph{}, errors.WrapWithCode(err, errors.ErrRender,
				fmt.Sprintf("Graphviz binary %q not found", g.Path),
				"Install graphviz, or point render.dot_path at the dot binary")
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return RenderedGraph{}, errors.WrapWithCode(fmt.Errorf("%s", detail), errors.ErrRender,
			"dot failed to render the graph", "")
	}

	svg := stdout.Bytes()
	width, height, err := ParseDimensions(svg)
	if err != nil {
		return RenderedGraph{}, errors.WrapWithCode(err, errors.ErrRender,
			"dot produced an unreadable SVG", "")
	}

	return RenderedGraph{DOT: dot, SVG: svg, Width: width, Height: height}, nil
}

// ParseDimensions reads the first width="Npt" height="Npt" pair from svg.
func ParseDimensions(svg []byte) (int, int, error) {
	m := svgSizePattern.FindSubmatch(svg)
	if m == nil {
		return 0, 0, fmt.Errorf("no width/height in points found in SVG")
	}
	width, err := strconv.Atoi(string(m[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("bad SVG width: %w", err)
	}
	height, err := strconv.Atoi(string(m[2]))
	if err != nil {
		return 0, 0, fmt.Errorf("bad SVG height: %w", err)
	}
	return width, height, nil
}

// Scaled returns width and height multiplied by percent/100.
func Scaled(width, height, percent int) (int, int) {
	return width * percent / 100, height * percent / 100
}

// ScaleSVG rewrites the SVG's size attributes to the scaled dimensions in
// pixels. The viewBox is left alone so the drawing stretches to fit.
func ScaleSVG(svg []byte, percent int) ([]byte, error) {
	width, height, err := ParseDimensions(svg)
	if err != nil {
		return nil, err
	}
	w, h := Scaled(width, height, percent)
	loc := svgSizePattern.FindIndex(svg)

	out := make([]byte, 0, len(svg)+8)
	out = append(out, svg[:loc[0]]...)
	out = append(out, fmt.Sprintf(`width="%dpx" height="%dpx"`, w, h)...)
	out = append(out, svg[loc[1]:]...)
	return out, nil
}
