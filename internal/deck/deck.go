// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package deck assembles normalized page images into a slide deck: one
// slide per image, each slide sized to its image. Decks are built fully in
// memory and then written atomically, so the destination holds either a
// complete deck or nothing.
package deck

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bernie-nyc/smart-notebook-converter/pkg/types"
)

// ErrEmptyDeck indicates there were no images to assemble.
var ErrEmptyDeck = errors.New("deck has no slides")

// Application is recorded as the producing program in deck metadata.
const Application = "notebook-converter"

// Error reports a deck that could not be built or written. It is fatal for
// the archive being converted.
type Error struct {
	Op   string // "build" or "write"
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("deck %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Options selects the output format and metadata.
type Options struct {
	Format types.DeckFormat

	// Title is stored in document metadata. Empty uses the output base name.
	Title string
}

// Assemble writes images, in order, as a deck at outputPath.
func Assemble(images []types.NormalizedImage, outputPath string, opts Options) error {
	if len(images) == 0 {
		return &Error{Op: "build", Path: outputPath, Err: ErrEmptyDeck}
	}
	if opts.Title == "" {
		opts.Title = strings.TrimSuffix(filepath.Base(outputPath), filepath.Ext(outputPath))
	}

	var (
		data []byte
		err  error
	)
	switch opts.Format {
	case types.FormatPPTX, "":
		data, err = buildPPTX(images, opts.Title)
	case types.FormatPDF:
		data, err = buildPDF(images, opts.Title)
	default:
		err = fmt.Errorf("unsupported deck format %q", opts.Format)
	}
	if err != nil {
		return &Error{Op: "build", Path: outputPath, Err: err}
	}

	if err := writeAtomic(outputPath, data); err != nil {
		return &Error{Op: "write", Path: outputPath, Err: err}
	}
	return nil
}

// writeAtomic writes data to a temporary file beside path, syncs it, and
// renames it into place. The temporary file is removed on failure.
func writeAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}

// fitRange scales w x h uniformly so both sides fall within [lo, hi] where
// possible. Extreme aspect ratios that cannot fit are clamped per side.
func fitRange(w, h, lo, hi float64) (float64, float64) {
	scale := 1.0
	if longest := max(w, h); longest > hi {
		scale = hi / longest
	}
	if shortest := min(w, h); shortest*scale < lo {
		scale = lo / shortest
	}
	clamp := func(v float64) float64 { return min(max(v, lo), hi) }
	return clamp(w * scale), clamp(h * scale)
}
