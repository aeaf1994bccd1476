// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Page is one logical unit of output: a single source entry that becomes one
// slide, plus any bitmap fragments an SVG source references.
type Page struct {
	// Position is the zero-based slide index. Positions are contiguous.
	Position int `json:"position" yaml:"position"`

	// Key is the display form of the ordering key derived from Source.Name.
	Key string `json:"key" yaml:"key"`

	// Source is the entry rendered for this page.
	Source Entry `json:"source" yaml:"source"`

	// Fragments are entries referenced from an SVG source, such as embedded
	// bitmaps. They are inlined before rasterization.
	Fragments []Entry `json:"fragments,omitempty" yaml:"fragments,omitempty"`
}

// NormalizedImage is a page rendered to PNG. It is created by the rasterizer
// and consumed once by the deck assembler.
type NormalizedImage struct {
	Page Page

	// Width and Height are the pixel dimensions of Data.
	Width  int
	Height int

	// Data holds PNG-encoded bytes.
	Data []byte

	// Stage names the conversion that produced the image ("decode" for raster
	// sources that needed no conversion).
	Stage string

	// Fallback is set when a stage after the primary produced the image.
	Fallback bool

	// DefaultSize is set when the source declared no dimensions and the
	// fixed default resolution was used.
	DefaultSize bool
}
