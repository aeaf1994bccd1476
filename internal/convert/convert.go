// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert drives the notebook-to-deck pipeline: it reads an
// archive, resolves its pages, rasterizes them, and assembles the deck. A
// page that cannot be rendered is dropped; an archive that cannot be read
// or written is reported as failed. Neither stops a batch.
package convert

import (
	"context"
	"errors"
	"time"

	"github.com/bernie-nyc/smart-notebook-converter/internal/archive"
	"github.com/bernie-nyc/smart-notebook-converter/internal/deck"
	"github.com/bernie-nyc/smart-notebook-converter/internal/event"
	"github.com/bernie-nyc/smart-notebook-converter/internal/raster"
	"github.com/bernie-nyc/smart-notebook-converter/internal/resolve"
	"github.com/bernie-nyc/smart-notebook-converter/pkg/types"
)

// Converter converts archives one at a time. It holds no per-archive state
// and may be shared by concurrent conversions.
type Converter struct {
	cfg        types.ConversionConfig
	rasterizer *raster.Rasterizer
	sink       event.Sink
}

// New returns a Converter. A nil sink discards events.
func New(cfg types.ConversionConfig, r *raster.Rasterizer, sink event.Sink) *Converter {
	if sink == nil {
		sink = event.Discard
	}
	if cfg.Format == "" {
		cfg.Format = types.FormatPPTX
	}
	return &Converter{cfg: cfg, rasterizer: r, sink: sink}
}

// ConvertArchive converts the archive at archivePath into a deck at
// outputPath and summarizes the outcome.
func (c *Converter) ConvertArchive(ctx context.Context, archivePath, outputPath string) types.ArchiveSummary {
	start := time.Now()
	sink := event.WithArchive(c.sink, archivePath)
	sum := types.ArchiveSummary{Archive: archivePath, Output: outputPath}

	finish := func() types.ArchiveSummary {
		sum.Duration = time.Since(start)
		switch sum.Status {
		case types.ArchiveConverted:
			sink.Emit(event.Event{Kind: event.ArchiveConverted, Position: -1, Detail: outputPath})
		case types.ArchiveSkipped:
			sink.Emit(event.Event{Kind: event.ArchiveSkipped, Position: -1, Detail: sum.Reason})
		case types.ArchiveFailed:
			sink.Emit(event.Event{Kind: event.ArchiveFailed, Position: -1, Detail: sum.ErrorKind, Err: errors.New(sum.Error)})
		}
		return sum
	}
	fail := func(kind string, err error) types.ArchiveSummary {
		sum.Status = types.ArchiveFailed
		sum.ErrorKind = kind
		sum.Error = err.Error()
		return finish()
	}
	skip := func(reason string) types.ArchiveSummary {
		sum.Status = types.ArchiveSkipped
		sum.Reason = reason
		return finish()
	}

	arc, err := archive.Open(archivePath, archive.Options{
		Ignore:       c.cfg.Ignore,
		MaxEntrySize: c.cfg.MaxEntrySize,
	})
	if err != nil {
		return fail(types.ErrorKindArchive, err)
	}
	for _, name := range arc.Ignored {
		sink.Emit(event.Event{Kind: event.Ignored, Entry: name, Position: -1})
	}
	sum.Ignored = len(arc.Ignored)

	res := resolve.Resolve(arc.Entries, sink)
	sum.Pages = len(res.Pages)
	sum.Unsupported = len(res.Unsupported)
	for _, d := range res.Duplicates {
		sum.Duplicates += len(d.Entries) - 1
	}
	if len(res.Pages) == 0 {
		return skip(types.SkipNoPages)
	}

	r := c.rasterizer.WithSink(sink)
	images := make([]types.NormalizedImage, 0, len(res.Pages))
	for _, page := range res.Pages {
		if err := ctx.Err(); err != nil {
			return fail(types.ErrorKindCanceled, err)
		}
		img, err := r.Rasterize(ctx, page)
		if err != nil {
			sum.Failed++
			sink.Emit(event.Event{
				Kind:     event.PageFailed,
				Entry:    page.Source.Name,
				Position: page.Position,
				Err:      err,
			})
			continue
		}
		if img.Fallback {
			sum.Fallback++
		}
		if img.DefaultSize {
			sum.DefaultSized++
		}
		images = append(images, img)
	}
	if err := ctx.Err(); err != nil {
		return fail(types.ErrorKindCanceled, err)
	}
	if len(images) == 0 {
		return skip(types.SkipAllPagesFailed)
	}

	if err := deck.Assemble(images, outputPath, deck.Options{Format: c.cfg.Format}); err != nil {
		return fail(types.ErrorKindAssembly, err)
	}
	sum.Slides = len(images)
	sum.Status = types.ArchiveConverted
	return finish()
}
