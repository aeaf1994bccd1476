// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package raster

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bernie-nyc/smart-notebook-converter/internal/event"
	"github.com/bernie-nyc/smart-notebook-converter/internal/svgtool"
	"github.com/bernie-nyc/smart-notebook-converter/pkg/types"
)

// fakeStage returns a fixed image or error and records what it was given.
type fakeStage struct {
	name    string
	img     image.Image
	err     error
	panics  bool
	calls   int
	lastSVG []byte
	lastW   int
	lastH   int
}

func (f *fakeStage) Name() string { return f.name }

func (f *fakeStage) Convert(_ context.Context, svg []byte, width, height int) (image.Image, error) {
	f.calls++
	f.lastSVG, f.lastW, f.lastH = svg, width, height
	if f.panics {
		panic("native crash")
	}
	return f.img, f.err
}

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(w, h, color.RGBA{R: 200, A: 255})))
	return buf.Bytes()
}

func svgPage(pos int, name, doc string) types.Page {
	return types.Page{Position: pos, Source: types.Entry{Name: name, Kind: types.KindSVG, Data: []byte(doc)}}
}

func decodeOutput(t *testing.T, img types.NormalizedImage) image.Image {
	t.Helper()
	decoded, err := png.Decode(bytes.NewReader(img.Data))
	require.NoError(t, err)
	assert.Equal(t, img.Width, decoded.Bounds().Dx())
	assert.Equal(t, img.Height, decoded.Bounds().Dy())
	return decoded
}

func TestRasterPageNeverInvokesStages(t *testing.T) {
	primary := &fakeStage{name: "primary", img: solid(1, 1, color.Black)}
	fallback := &fakeStage{name: "fallback", img: solid(1, 1, color.Black)}
	r := New(Chain{primary, fallback}, Options{})

	data := pngBytes(t, 30, 20)
	img, err := r.Rasterize(context.Background(), types.Page{
		Source: types.Entry{Name: "3.png", Kind: types.KindRaster, Data: data},
	})
	require.NoError(t, err)

	assert.Zero(t, primary.calls)
	assert.Zero(t, fallback.calls)
	assert.Equal(t, StageDecode, img.Stage)
	assert.False(t, img.Fallback)
	assert.Equal(t, 30, img.Width)
	assert.Equal(t, 20, img.Height)
	assert.Equal(t, data, img.Data, "png input passes through unchanged")
}

func TestRasterPageReencodesOtherFormats(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, solid(16, 8, color.White), nil))

	r := New(nil, Options{})
	img, err := r.Rasterize(context.Background(), types.Page{
		Source: types.Entry{Name: "photo.jpg", Kind: types.KindRaster, Data: buf.Bytes()},
	})
	require.NoError(t, err)
	assert.Equal(t, 16, img.Width)
	assert.Equal(t, 8, img.Height)
	decodeOutput(t, img)
}

func TestRasterPageDecodeFailure(t *testing.T) {
	r := New(nil, Options{})
	_, err := r.Rasterize(context.Background(), types.Page{
		Position: 4,
		Source:   types.Entry{Name: "broken.png", Kind: types.KindRaster, Data: []byte("\x89PNG\r\n\x1a\ntruncated")},
	})

	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "broken.png", rerr.Entry)
	assert.Equal(t, 4, rerr.Position)
	require.Len(t, rerr.Attempts, 1)
	assert.Equal(t, StageDecode, rerr.Attempts[0].Stage)
}

func TestSVGPageUsesPrimary(t *testing.T) {
	primary := &fakeStage{name: "primary", img: solid(100, 50, color.Black)}
	fallback := &fakeStage{name: "fallback"}
	rec := &event.Recorder{}
	r := New(Chain{primary, fallback}, Options{Sink: rec})

	img, err := r.Rasterize(context.Background(), svgPage(0, "1.svg", `<svg width="200" height="100"/>`))
	require.NoError(t, err)

	assert.Equal(t, 1, primary.calls)
	assert.Zero(t, fallback.calls)
	assert.Equal(t, 200, primary.lastW)
	assert.Equal(t, 100, primary.lastH)
	assert.Equal(t, "primary", img.Stage)
	assert.False(t, img.Fallback)
	assert.False(t, img.DefaultSize)
	assert.Equal(t, 200, img.Width, "stage output is rescaled to the declared size")
	assert.Equal(t, 100, img.Height)
	decodeOutput(t, img)
	assert.Empty(t, rec.Events())
}

func TestUnavailablePrimaryRoutesEverySVGPageToFallback(t *testing.T) {
	fallback := &fakeStage{name: "magick", img: solid(64, 48, color.Black)}
	rec := &event.Recorder{}
	r := New(Chain{Unavailable(StageMuPDF, errors.New("library missing")), fallback}, Options{Sink: rec})

	pages := []types.Page{
		svgPage(0, "1.svg", `<svg width="64" height="48"/>`),
		svgPage(1, "2.svg", `<svg viewBox="0 0 64 48"/>`),
		svgPage(2, "3.svg", `<svg width="32" height="24"/>`),
	}
	for _, p := range pages {
		img, err := r.Rasterize(context.Background(), p)
		require.NoError(t, err, p.Source.Name)
		assert.True(t, img.Fallback)
		assert.Equal(t, "magick", img.Stage)
	}
	assert.Equal(t, 3, fallback.calls)
	assert.Equal(t, 3, rec.Count(event.FallbackUsed))
	assert.Equal(t, 3, rec.Count(event.StageFailed))
	for _, e := range rec.Events() {
		if e.Kind == event.StageFailed {
			assert.Equal(t, StageMuPDF, e.Stage)
			assert.True(t, errors.Is(e.Err, ErrUnavailable))
		}
	}
}

func TestBothStagesFail(t *testing.T) {
	primary := &fakeStage{name: "mupdf", err: errors.New("malformed path data")}
	fallback := &fakeStage{name: "rsvg-convert", err: svgtool.ErrTimeout}
	rec := &event.Recorder{}
	r := New(Chain{primary, fallback}, Options{Sink: rec})

	_, err := r.Rasterize(context.Background(), svgPage(2, "page3.svg", `<svg width="10" height="10"/>`))

	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	require.Len(t, rerr.Attempts, 2)
	assert.Equal(t, "mupdf", rerr.Attempts[0].Stage)
	assert.Equal(t, "rsvg-convert", rerr.Attempts[1].Stage)
	assert.Contains(t, err.Error(), "malformed path data")
	assert.Contains(t, err.Error(), "timed out")
	assert.True(t, errors.Is(err, svgtool.ErrTimeout))
	assert.Empty(t, rec.Events(), "page failure is reported by the caller")
}

func TestSVGWithoutDimensionsUsesDefaultSize(t *testing.T) {
	primary := &fakeStage{name: "primary", img: solid(10, 10, color.Black)}
	rec := &event.Recorder{}
	r := New(Chain{primary}, Options{DefaultWidth: 1280, DefaultHeight: 720, Sink: rec})

	img, err := r.Rasterize(context.Background(), svgPage(0, "blank.svg", `<svg xmlns="http://www.w3.org/2000/svg"/>`))
	require.NoError(t, err)
	assert.True(t, img.DefaultSize)
	assert.Equal(t, 1280, img.Width)
	assert.Equal(t, 720, img.Height)
	assert.Equal(t, 1, rec.Count(event.DefaultSize))
}

func TestMalformedSVGStillReachesStages(t *testing.T) {
	primary := &fakeStage{name: "primary", err: errors.New("parse error")}
	fallback := &fakeStage{name: "fallback", img: solid(10, 10, color.Black)}
	r := New(Chain{primary, fallback}, Options{})

	img, err := r.Rasterize(context.Background(), svgPage(0, "odd.svg", `<svg width="10" height="10"><g></svg>`))
	require.NoError(t, err)
	assert.True(t, img.Fallback)
	assert.Equal(t, 1, primary.calls)
}

func TestSVGFragmentsAreInlined(t *testing.T) {
	primary := &fakeStage{name: "primary", img: solid(10, 10, color.Black)}
	r := New(Chain{primary}, Options{})

	page := svgPage(0, "pages/page1.svg", `<svg xmlns:xlink="http://www.w3.org/1999/xlink" width="10" height="10"><image xlink:href="../images/bg.png"/></svg>`)
	page.Fragments = []types.Entry{{Name: "images/bg.png", Kind: types.KindRaster, Data: pngBytes(t, 2, 2)}}

	_, err := r.Rasterize(context.Background(), page)
	require.NoError(t, err)
	assert.Contains(t, string(primary.lastSVG), `xlink:href="data:image/png;base64,`)
	assert.NotContains(t, string(primary.lastSVG), "../images/bg.png")
}

func TestOversizedSVGIsBounded(t *testing.T) {
	primary := &fakeStage{name: "primary", err: errors.New("stop here")}
	r := New(Chain{primary}, Options{})

	_, err := r.Rasterize(context.Background(), svgPage(0, "huge.svg", `<svg width="100000" height="50000"/>`))
	require.Error(t, err)
	assert.Equal(t, maxDimension, primary.lastW)
	assert.Equal(t, maxDimension/2, primary.lastH)
}

func TestFlattenPaintsWhiteBehindTransparency(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	out := flatten(src, 4, 4)
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, out.RGBAAt(1, 1))

	scaled := flatten(solid(2, 2, color.Black), 8, 8)
	assert.Equal(t, 8, scaled.Bounds().Dx())
	r, g, b, _ := scaled.At(4, 4).RGBA()
	assert.Less(t, r+g+b, uint32(0x3000))
}

func TestNewChainDisabledStages(t *testing.T) {
	chain := NewChain(types.RasterConfig{Primary: types.ModeOff, FallbackTool: svgtool.Off, FallbackTimeout: time.Second})
	assert.Equal(t, []string{StageMuPDF, StageTool}, chain.Names())

	r := New(chain, Options{})
	_, err := r.Rasterize(context.Background(), svgPage(0, "1.svg", `<svg width="4" height="4"/>`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.True(t, errors.Is(err, svgtool.ErrDisabled))
}

func TestBoundSize(t *testing.T) {
	w, h := boundSize(800, 600)
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, h)

	w, h = boundSize(20000, 100)
	assert.Equal(t, maxDimension, w)
	assert.Equal(t, 41, h)
}
