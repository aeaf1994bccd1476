// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package raster normalizes pages to PNG images.
//
// A raster page is decoded directly and never touches a conversion stage.
// An SVG page is sized from its declared dimensions, its referenced bitmaps
// are inlined, and it is run through a Chain: the in-process MuPDF stage
// first, then a command-line tool. Every stage failure is kept so a page
// that cannot be converted reports all of its reasons.
package raster

import (
	"context"
	"errors"
	"fmt"

	"github.com/bernie-nyc/smart-notebook-converter/internal/event"
	"github.com/bernie-nyc/smart-notebook-converter/internal/svg"
	"github.com/bernie-nyc/smart-notebook-converter/internal/svgtool"
	"github.com/bernie-nyc/smart-notebook-converter/pkg/types"
)

// StageDecode names the direct decode of raster pages.
const StageDecode = "decode"

// StageTool names the fallback stage when no tool could be set up.
const StageTool = "svg-tool"

// Options configures a Rasterizer.
type Options struct {
	// DefaultWidth and DefaultHeight size SVG pages that declare no
	// dimensions.
	DefaultWidth  int
	DefaultHeight int

	Sink event.Sink
}

// Rasterizer converts pages to normalized images.
type Rasterizer struct {
	chain Chain
	opts  Options
}

// New returns a Rasterizer that converts SVG pages with chain.
func New(chain Chain, opts Options) *Rasterizer {
	if opts.DefaultWidth <= 0 || opts.DefaultHeight <= 0 {
		opts.DefaultWidth, opts.DefaultHeight = 1280, 720
	}
	if opts.Sink == nil {
		opts.Sink = event.Discard
	}
	return &Rasterizer{chain: chain, opts: opts}
}

// NewChain builds the primary and fallback stages from configuration. A
// stage that is disabled or cannot be set up is kept as an Unavailable
// stage so its reason shows up in conversion errors.
func NewChain(cfg types.RasterConfig) Chain {
	var primary Stage
	if cfg.Primary == types.ModeOff {
		primary = Unavailable(StageMuPDF, errors.New("disabled by configuration"))
	} else {
		primary = NewMuPDF(cfg.PrimaryTimeout)
	}

	var fallback Stage
	tool, err := svgtool.Detect(cfg.FallbackTool, cfg.FallbackTimeout)
	if err != nil {
		name := cfg.FallbackTool
		if name == "" || name == svgtool.Auto || name == svgtool.Off {
			name = StageTool
		}
		fallback = Unavailable(name, err)
	} else {
		fallback = NewExternal(tool)
	}
	return Chain{primary, fallback}
}

// WithSink returns a copy of r that emits events to sink.
func (r *Rasterizer) WithSink(sink event.Sink) *Rasterizer {
	c := *r
	if sink == nil {
		sink = event.Discard
	}
	c.opts.Sink = sink
	return &c
}

// Rasterize converts one page. A failure is always a *Error.
func (r *Rasterizer) Rasterize(ctx context.Context, page types.Page) (types.NormalizedImage, error) {
	switch page.Source.Kind {
	case types.KindRaster:
		return r.decode(page)
	case types.KindSVG:
		return r.convert(ctx, page)
	}
	return types.NormalizedImage{}, &Error{
		Entry:    page.Source.Name,
		Position: page.Position,
		Attempts: []Attempt{{Stage: StageDecode, Err: fmt.Errorf("cannot rasterize %s entry", page.Source.Kind)}},
	}
}

func (r *Rasterizer) decode(page types.Page) (types.NormalizedImage, error) {
	d, err := decodeRaw(page.Source.Data)
	if err != nil {
		return types.NormalizedImage{}, &Error{
			Entry:    page.Source.Name,
			Position: page.Position,
			Attempts: []Attempt{{Stage: StageDecode, Err: err}},
		}
	}
	return types.NormalizedImage{
		Page:   page,
		Width:  d.width,
		Height: d.height,
		Data:   d.png,
		Stage:  StageDecode,
	}, nil
}

func (r *Rasterizer) convert(ctx context.Context, page types.Page) (types.NormalizedImage, error) {
	src := page.Source
	info, err := svg.Inspect(src.Data)
	if err != nil {
		info = svg.Info{}
	}
	width, height, defaulted := info.PixelSize(r.opts.DefaultWidth, r.opts.DefaultHeight)
	width, height = boundSize(width, height)
	if defaulted {
		r.opts.Sink.Emit(event.Event{
			Kind:     event.DefaultSize,
			Entry:    src.Name,
			Position: page.Position,
			Detail:   fmt.Sprintf("no dimensions declared; using %dx%d", width, height),
		})
	}

	data := inlineFragments(page, info)
	out, attempts := r.chain.Run(ctx, data, width, height)
	if out.Image == nil {
		return types.NormalizedImage{}, &Error{Entry: src.Name, Position: page.Position, Attempts: attempts}
	}

	for _, a := range out.Failed {
		r.opts.Sink.Emit(event.Event{
			Kind:     event.StageFailed,
			Entry:    src.Name,
			Position: page.Position,
			Stage:    a.Stage,
			Err:      a.Err,
		})
	}
	if out.Fallback {
		r.opts.Sink.Emit(event.Event{
			Kind:     event.FallbackUsed,
			Entry:    src.Name,
			Position: page.Position,
			Stage:    out.Stage,
		})
	}

	png, err := encodePNG(flatten(out.Image, width, height))
	if err != nil {
		return types.NormalizedImage{}, &Error{
			Entry:    src.Name,
			Position: page.Position,
			Attempts: append(out.Failed, Attempt{Stage: out.Stage, Err: err}),
		}
	}
	return types.NormalizedImage{
		Page:        page,
		Width:       width,
		Height:      height,
		Data:        png,
		Stage:       out.Stage,
		Fallback:    out.Fallback,
		DefaultSize: defaulted,
	}, nil
}

// inlineFragments embeds the page's fragment bitmaps into its SVG source.
func inlineFragments(page types.Page, info svg.Info) []byte {
	if len(page.Fragments) == 0 || len(info.Refs) == 0 {
		return page.Source.Data
	}
	byName := make(map[string][]byte, len(page.Fragments))
	for _, f := range page.Fragments {
		byName[f.Name] = f.Data
	}
	return svg.Inline(page.Source.Data, info.Refs, func(ref string) (string, []byte, bool) {
		for _, name := range svg.Candidates(page.Source.Name, ref) {
			if data, ok := byName[name]; ok {
				return name, data, true
			}
		}
		return "", nil, false
	})
}
