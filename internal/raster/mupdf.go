// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package raster

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gen2brain/go-fitz"
)

// StageMuPDF names the in-process MuPDF stage.
const StageMuPDF = "mupdf"

// renders counts native calls still running, including ones whose caller
// gave up after a deadline.
var renders sync.WaitGroup

// Drain waits up to timeout for abandoned MuPDF renders to finish and remove
// their temporary files. It reports whether none were left running.
func Drain(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		renders.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// probeSVG is a black square; a working renderer paints its center dark.
var probeSVG = []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="16" height="16" viewBox="0 0 16 16"><rect width="16" height="16" fill="#000"/></svg>`)

// MuPDF renders SVG pages in-process through the MuPDF library. The library
// is probed on first use; when the probe fails every conversion fails with
// ErrUnavailable so the chain moves on to the next stage.
type MuPDF struct {
	timeout time.Duration

	probeOnce sync.Once
	probeErr  error
}

// NewMuPDF returns the MuPDF stage. A zero timeout means no deadline.
func NewMuPDF(timeout time.Duration) *MuPDF {
	return &MuPDF{timeout: timeout}
}

func (m *MuPDF) Name() string { return StageMuPDF }

// Check reports whether the library renders correctly in this process.
func (m *MuPDF) Check() error {
	m.probeOnce.Do(func() {
		m.probeErr = m.probe()
	})
	return m.probeErr
}

func (m *MuPDF) probe() error {
	ctx := context.Background()
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	img, err := m.render(ctx, probeSVG, 16, 16)
	if err != nil {
		return fmt.Errorf("%w: mupdf probe failed: %w", ErrUnavailable, err)
	}
	b := img.Bounds()
	if b.Empty() {
		return fmt.Errorf("%w: mupdf probe rendered an empty image", ErrUnavailable)
	}
	r, g, bl, _ := img.At(b.Min.X+b.Dx()/2, b.Min.Y+b.Dy()/2).RGBA()
	if r > 0x4000 || g > 0x4000 || bl > 0x4000 {
		return fmt.Errorf("%w: mupdf probe rendered no content", ErrUnavailable)
	}
	return nil
}

func (m *MuPDF) Convert(ctx context.Context, svg []byte, width, height int) (image.Image, error) {
	if err := m.Check(); err != nil {
		return nil, err
	}
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	return m.render(ctx, svg, width, height)
}

type renderResult struct {
	img image.Image
	err error
}

// render runs the native call on its own goroutine so a deadline can be
// honored. The call itself cannot be interrupted; on timeout it finishes in
// the background and removes its own temporary files; Drain waits for it.
func (m *MuPDF) render(ctx context.Context, svg []byte, width, height int) (image.Image, error) {
	ch := make(chan renderResult, 1)
	renders.Add(1)
	go func() {
		defer renders.Done()
		defer func() {
			if r := recover(); r != nil {
				ch <- renderResult{err: fmt.Errorf("mupdf panicked: %v", r)}
			}
		}()
		img, err := renderSVG(svg, width)
		ch <- renderResult{img: img, err: err}
	}()

	select {
	case r := <-ch:
		return r.img, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("mupdf timed out after %s", m.timeout)
		}
		return nil, ctx.Err()
	}
}

func renderSVG(svg []byte, width int) (image.Image, error) {
	dir, err := os.MkdirTemp("", "notebook-mupdf-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "page.svg")
	if err := os.WriteFile(path, svg, 0o600); err != nil {
		return nil, fmt.Errorf("writing svg: %w", err)
	}

	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("opening svg: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() < 1 {
		return nil, errors.New("svg has no renderable page")
	}

	dpi := 72.0
	if bound, err := doc.Bound(0); err == nil && bound.Dx() > 0 {
		dpi = 72 * float64(width) / float64(bound.Dx())
	}
	dpi = min(max(dpi, 1), 2400)

	img, err := doc.ImageDPI(0, dpi)
	if err != nil {
		return nil, fmt.Errorf("rendering svg: %w", err)
	}
	return img, nil
}
