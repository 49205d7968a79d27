package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rileyhilliard/teleop/internal/config"
	"github.com/rileyhilliard/teleop/internal/errors"
	"github.com/rileyhilliard/teleop/internal/render"
)

// Format selects what GraphFile writes.
type Format int

const (
	FormatSVG Format = iota
	FormatDOT
)

func (f Format) String() string {
	if f == FormatDOT {
		return "dot"
	}
	return "svg"
}

// ParseFormat accepts "svg" or "dot". An empty name guesses from path's
// extension.
func ParseFormat(name, path string) (Format, error) {
	switch strings.ToLower(name) {
	case "svg":
		return FormatSVG, nil
	case "dot", "gv":
		return FormatDOT, nil
	case "":
		switch strings.ToLower(filepath.Ext(path)) {
		case ".dot", ".gv":
			return FormatDOT, nil
		}
		return FormatSVG, nil
	}
	return FormatSVG, fmt.Errorf("unknown output format %q (want svg or dot)", name)
}

// GraphFile rewrites one file with every rendered cycle. Writes go through
// a temp file and a rename so readers never see a partial graph.
type GraphFile struct {
	path   string
	format Format

	mu    sync.Mutex
	scale int
}

// NewGraphFile creates a sink for path. The file is not touched until the
// first Write.
func NewGraphFile(path string, format Format, scale int) (*GraphFile, error) {
	if err := config.ValidateScale(scale); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig, "Invalid output scale", "")
	}
	return &GraphFile{path: path, format: format, scale: scale}, nil
}

// Path returns the output path.
func (f *GraphFile) Path() string { return f.path }

// Format returns the output format.
func (f *GraphFile) Format() Format { return f.format }

// Scale returns the current SVG scale in percent.
func (f *GraphFile) Scale() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scale
}

// StepScale moves the scale by steps increments and returns the new value.
// It applies from the next Write.
func (f *GraphFile) StepScale(steps int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scale = config.StepScale(f.scale, steps)
	return f.scale
}

// Write stores g in the configured format.
func (f *GraphFile) Write(g render.RenderedGraph) error {
	var data []byte
	switch f.format {
	case FormatDOT:
		data = []byte(g.DOT)
	default:
		scaled, err := render.ScaleSVG(g.SVG, f.Scale())
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrRender, "Can't scale the rendered graph", "")
		}
		data = scaled
	}

	if err := writeAtomic(f.path, data); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Can't write graph to %s", f.path),
			"Check the directory exists and is writable")
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Chmod(name, 0644); err != nil {
		os.Remove(name)
		return err
	}
	return os.Rename(name, path)
}
