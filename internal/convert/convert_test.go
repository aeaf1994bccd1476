// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/bernie-nyc/smart-notebook-converter/internal/event"
	"github.com/bernie-nyc/smart-notebook-converter/internal/raster"
	"github.com/bernie-nyc/smart-notebook-converter/pkg/types"
)

// fakeStage implements raster.Stage. It returns a solid image or an error.
type fakeStage struct {
	name  string
	err   error
	calls atomic.Int32
}

func (f *fakeStage) Name() string { return f.name }

func (f *fakeStage) Convert(_ context.Context, _ []byte, width, height int) (image.Image, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return img, nil
}

func pngData(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// writeNotebook creates a zip archive at dir/name holding files in order.
func writeNotebook(t *testing.T, dir, name string, files [][2]string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.Create(f[0])
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(f[1])); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func slideCount(t *testing.T, path string) int {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("opening deck: %v", err)
	}
	defer zr.Close()
	n := 0
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "ppt/slides/slide") && strings.HasSuffix(f.Name, ".xml") {
			n++
		}
	}
	return n
}

func newConverter(stages ...raster.Stage) (*Converter, *event.Recorder) {
	rec := &event.Recorder{}
	cfg := types.DefaultConversionConfig()
	return New(cfg, raster.New(raster.Chain(stages), raster.Options{}), rec), rec
}

const svgPage = `<svg xmlns="http://www.w3.org/2000/svg" width="64" height="48"><rect width="64" height="48"/></svg>`

func TestConvertArchive(t *testing.T) {
	tests := []struct {
		name       string
		files      func(t *testing.T) [][2]string
		stage      *fakeStage
		wantStatus types.ArchiveStatus
		wantReason string
		wantSlides int
		wantFailed int
	}{
		{
			name: "svg and raster pages",
			files: func(t *testing.T) [][2]string {
				return [][2]string{
					{"page3.png", string(pngData(t, 40, 30))},
					{"page1.svg", svgPage},
					{"page2.svg", svgPage},
					{"metadata.xml", "<meta/>"},
					{"notes.txt", "hello"},
				}
			},
			stage:      &fakeStage{name: "primary"},
			wantStatus: types.ArchiveConverted,
			wantSlides: 3,
		},
		{
			name: "no resolvable pages",
			files: func(t *testing.T) [][2]string {
				return [][2]string{{"imsmanifest.xml", "<m/>"}, {"notes.txt", "hello"}}
			},
			stage:      &fakeStage{name: "primary"},
			wantStatus: types.ArchiveSkipped,
			wantReason: types.SkipNoPages,
		},
		{
			name: "every page fails",
			files: func(t *testing.T) [][2]string {
				return [][2]string{{"1.svg", svgPage}, {"2.svg", svgPage}}
			},
			stage:      &fakeStage{name: "primary", err: errors.New("renderer crashed")},
			wantStatus: types.ArchiveSkipped,
			wantReason: types.SkipAllPagesFailed,
			wantFailed: 2,
		},
		{
			name: "one page dropped",
			files: func(t *testing.T) [][2]string {
				return [][2]string{{"1.svg", svgPage}, {"2.png", "\x89PNG\r\n\x1a\ntruncated"}}
			},
			stage:      &fakeStage{name: "primary"},
			wantStatus: types.ArchiveConverted,
			wantSlides: 1,
			wantFailed: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			src := writeNotebook(t, dir, "lesson.notebook", tt.files(t))
			out := filepath.Join(dir, "out", "lesson.pptx")
			c, _ := newConverter(tt.stage)

			sum := c.ConvertArchive(context.Background(), src, out)

			if sum.Status != tt.wantStatus {
				t.Fatalf("status = %q, want %q (error %q)", sum.Status, tt.wantStatus, sum.Error)
			}
			if sum.Reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", sum.Reason, tt.wantReason)
			}
			if sum.Slides != tt.wantSlides {
				t.Errorf("slides = %d, want %d", sum.Slides, tt.wantSlides)
			}
			if sum.Failed != tt.wantFailed {
				t.Errorf("failed = %d, want %d", sum.Failed, tt.wantFailed)
			}

			_, statErr := os.Stat(out)
			if tt.wantStatus == types.ArchiveConverted {
				if statErr != nil {
					t.Fatalf("expected deck at %s: %v", out, statErr)
				}
				if n := slideCount(t, out); n != tt.wantSlides {
					t.Errorf("deck has %d slides, want %d", n, tt.wantSlides)
				}
			} else if statErr == nil {
				t.Errorf("no deck should be written for status %q", sum.Status)
			}
		})
	}
}

func TestConvertArchiveCounts(t *testing.T) {
	dir := t.TempDir()
	src := writeNotebook(t, dir, "lesson.notebook", [][2]string{
		{"1.svg", svgPage},
		{"images/1.svg", svgPage},
		{"2.svg", `<svg xmlns="http://www.w3.org/2000/svg"/>`},
		{"settings.xml", "<s/>"},
		{"thumbnail.png", string(pngData(t, 4, 4))},
		{"readme", "plain text"},
	})
	fallback := &fakeStage{name: "magick"}
	c, rec := newConverter(raster.Unavailable(raster.StageMuPDF, errors.New("no library")), fallback)

	sum := c.ConvertArchive(context.Background(), src, filepath.Join(dir, "lesson.pptx"))
	if sum.Status != types.ArchiveConverted {
		t.Fatalf("status = %q (%s)", sum.Status, sum.Error)
	}
	if sum.Pages != 3 || sum.Slides != 3 {
		t.Errorf("pages/slides = %d/%d, want 3/3", sum.Pages, sum.Slides)
	}
	if sum.Ignored != 2 {
		t.Errorf("ignored = %d, want 2", sum.Ignored)
	}
	if sum.Unsupported != 1 {
		t.Errorf("unsupported = %d, want 1", sum.Unsupported)
	}
	if sum.Duplicates != 1 {
		t.Errorf("duplicates = %d, want 1", sum.Duplicates)
	}
	if sum.Fallback != 3 {
		t.Errorf("fallback = %d, want 3", sum.Fallback)
	}
	if sum.DefaultSized != 1 {
		t.Errorf("default sized = %d, want 1", sum.DefaultSized)
	}
	if got := rec.Count(event.FallbackUsed); got != 3 {
		t.Errorf("fallback events = %d, want 3", got)
	}
	if got := rec.Count(event.ArchiveConverted); got != 1 {
		t.Errorf("converted events = %d, want 1", got)
	}
	for _, e := range rec.Events() {
		if e.Archive != src {
			t.Errorf("event %s not stamped with archive: %q", e.Kind, e.Archive)
		}
	}
}

func TestConvertArchiveFailures(t *testing.T) {
	dir := t.TempDir()

	notArchive := filepath.Join(dir, "broken.notebook")
	if err := os.WriteFile(notArchive, []byte("not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}
	good := writeNotebook(t, dir, "good.notebook", [][2]string{{"1.svg", svgPage}})
	blocked := filepath.Join(dir, "blocked.pptx")
	if err := os.MkdirAll(filepath.Join(blocked, "child"), 0o755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		archive  string
		output   string
		wantKind string
	}{
		{"not an archive", notArchive, filepath.Join(dir, "broken.pptx"), types.ErrorKindArchive},
		{"missing archive", filepath.Join(dir, "missing.notebook"), filepath.Join(dir, "missing.pptx"), types.ErrorKindArchive},
		{"output is a directory", good, blocked, types.ErrorKindAssembly},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newConverter(&fakeStage{name: "primary"})
			sum := c.ConvertArchive(context.Background(), tt.archive, tt.output)
			if sum.Status != types.ArchiveFailed {
				t.Fatalf("status = %q, want failed", sum.Status)
			}
			if sum.ErrorKind != tt.wantKind {
				t.Errorf("error kind = %q, want %q", sum.ErrorKind, tt.wantKind)
			}
			if sum.Error == "" {
				t.Error("error message should be set")
			}
			if rec.Count(event.ArchiveFailed) != 1 {
				t.Error("expected one archive-failed event")
			}
		})
	}
}

func TestConvertArchiveCanceled(t *testing.T) {
	dir := t.TempDir()
	src := writeNotebook(t, dir, "a.notebook", [][2]string{{"1.svg", svgPage}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stage := &fakeStage{name: "primary"}
	c, _ := newConverter(stage)
	sum := c.ConvertArchive(ctx, src, filepath.Join(dir, "a.pptx"))
	if sum.Status != types.ArchiveFailed || sum.ErrorKind != types.ErrorKindCanceled {
		t.Errorf("got %q/%q, want failed/canceled", sum.Status, sum.ErrorKind)
	}
	if stage.calls.Load() != 0 {
		t.Error("no page should be rasterized after cancellation")
	}
}

// cancelingStage renders normally and cancels the run once the page at
// cancelAt has been rendered.
type cancelingStage struct {
	fakeStage
	cancel   context.CancelFunc
	cancelAt int32
}

func (s *cancelingStage) Convert(ctx context.Context, svg []byte, width, height int) (image.Image, error) {
	img, err := s.fakeStage.Convert(ctx, svg, width, height)
	if s.calls.Load() == s.cancelAt {
		s.cancel()
	}
	return img, err
}

func TestConvertArchiveCanceledDuringLastPage(t *testing.T) {
	dir := t.TempDir()
	src := writeNotebook(t, dir, "a.notebook", [][2]string{{"1.svg", svgPage}, {"2.svg", svgPage}})
	out := filepath.Join(dir, "a.pptx")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stage := &cancelingStage{fakeStage: fakeStage{name: "primary"}, cancel: cancel, cancelAt: 2}
	c, _ := newConverter(stage)
	sum := c.ConvertArchive(ctx, src, out)
	if sum.Status != types.ArchiveFailed || sum.ErrorKind != types.ErrorKindCanceled {
		t.Errorf("got %q/%q, want failed/canceled", sum.Status, sum.ErrorKind)
	}
	if got := stage.calls.Load(); got != 2 {
		t.Errorf("rendered %d pages, want 2", got)
	}
	if _, err := os.Stat(out); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("no deck should be written after cancellation, stat err = %v", err)
	}
}
