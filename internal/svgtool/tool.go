// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package svgtool detects and runs command-line SVG rasterizers. Each call
// writes the SVG to its own temporary directory, runs the tool with a
// deadline, and reads back the PNG it produced. The directory is removed on
// every exit path.
package svgtool

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	binMagick   = "magick"
	binRsvg     = "rsvg-convert"
	binInkscape = "inkscape"

	// Auto selects the first tool found; Off disables the fallback.
	Auto = "auto"
	Off  = "off"
)

var (
	// ErrNotFound indicates no usable tool was detected.
	ErrNotFound = errors.New("no svg rasterizer tool available")
	// ErrDisabled indicates the fallback tool was turned off by configuration.
	ErrDisabled = errors.New("svg rasterizer tool disabled")
	// ErrTimeout indicates the tool did not finish before its deadline.
	ErrTimeout = errors.New("svg rasterizer timed out")
	// ErrNoOutput indicates the tool exited cleanly but wrote no image.
	ErrNoOutput = errors.New("svg rasterizer produced no output")
)

// Tools lists the supported binaries in detection order.
var Tools = []string{binMagick, binRsvg, binInkscape}

// Tool converts SVG bytes to PNG bytes with an external command.
type Tool interface {
	// Name returns the binary name.
	Name() string

	// Available reports whether the binary is on PATH and answers a version query.
	Available() bool

	// Rasterize renders svg at width x height pixels and returns PNG bytes.
	Rasterize(ctx context.Context, svg []byte, width, height int) ([]byte, error)
}

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = 2 * time.Second
	return cmd.CombinedOutput()
}

// tool implements Tool for one binary. The binaries differ only in their
// version flag and argument layout.
type tool struct {
	bin         string
	versionArgs []string
	args        func(in, out string, width, height int) []string
	timeout     time.Duration
	exec        executor
}

func (t *tool) Name() string { return t.bin }

func (t *tool) Available() bool {
	if _, err := t.exec.LookPath(t.bin); err != nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := t.exec.Run(ctx, t.bin, t.versionArgs...)
	return err == nil
}

func (t *tool) Rasterize(ctx context.Context, svg []byte, width, height int) ([]byte, error) {
	dir, err := os.MkdirTemp("", "notebook-svg-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir for %s: %w", t.bin, err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "page.svg")
	out := filepath.Join(dir, "page.png")
	if err := os.WriteFile(in, svg, 0o600); err != nil {
		return nil, fmt.Errorf("writing svg for %s: %w", t.bin, err)
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	output, err := t.exec.Run(ctx, t.bin, t.args(in, out, width, height)...)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%s: %w after %s", t.bin, ErrTimeout, t.timeout)
	}
	if err != nil {
		if msg := firstLine(output); msg != "" {
			return nil, fmt.Errorf("running %s: %w: %s", t.bin, err, msg)
		}
		return nil, fmt.Errorf("running %s: %w", t.bin, err)
	}

	data, err := os.ReadFile(out)
	if errors.Is(err, os.ErrNotExist) || (err == nil && len(data) == 0) {
		return nil, fmt.Errorf("%s: %w", t.bin, ErrNoOutput)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s output: %w", t.bin, err)
	}
	return data, nil
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func newTool(bin string, timeout time.Duration, exec executor) (*tool, bool) {
	t := &tool{bin: bin, timeout: timeout, exec: exec, versionArgs: []string{"--version"}}
	switch bin {
	case binMagick:
		t.versionArgs = []string{"-version"}
		t.args = func(in, out string, w, h int) []string {
			return []string{
				"-background", "white",
				in,
				"-resize", fmt.Sprintf("%dx%d!", w, h),
				"-flatten",
				"png:" + out,
			}
		}
	case binRsvg:
		t.args = func(in, out string, w, h int) []string {
			return []string{
				"--width", fmt.Sprint(w),
				"--height", fmt.Sprint(h),
				"--background-color", "white",
				"--format", "png",
				"--output", out,
				in,
			}
		}
	case binInkscape:
		t.args = func(in, out string, w, h int) []string {
			return []string{
				in,
				"--export-type=png",
				"--export-filename=" + out,
				"--export-width=" + fmt.Sprint(w),
				"--export-height=" + fmt.Sprint(h),
				"--export-background=white",
				"--export-background-opacity=1",
			}
		}
	default:
		return nil, false
	}
	return t, true
}

var defaultExec = &osExecutor{}

// Detect returns the tool named by name, or the first available tool in
// Tools order when name is Auto. Off yields ErrDisabled.
func Detect(name string, timeout time.Duration) (Tool, error) {
	return detect(name, timeout, defaultExec)
}

func detect(name string, timeout time.Duration, exec executor) (Tool, error) {
	switch name {
	case Off:
		return nil, ErrDisabled
	case "", Auto:
		for _, bin := range Tools {
			t, _ := newTool(bin, timeout, exec)
			if t.Available() {
				return t, nil
			}
		}
		return nil, fmt.Errorf("%w: none of %s found or operational", ErrNotFound, strings.Join(Tools, ", "))
	}

	t, ok := newTool(name, timeout, exec)
	if !ok {
		return nil, fmt.Errorf("unknown svg rasterizer %q (want one of %s, %s or %s)", name, strings.Join(Tools, ", "), Auto, Off)
	}
	if !t.Available() {
		return nil, fmt.Errorf("%w: %s not found or not operational", ErrNotFound, name)
	}
	return t, nil
}

// Probe reports, for each supported binary, whether it is available.
func Probe() map[string]bool {
	out := make(map[string]bool, len(Tools))
	for _, bin := range Tools {
		t, _ := newTool(bin, 0, defaultExec)
		out[bin] = t.Available()
	}
	return out
}
