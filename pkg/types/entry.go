// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// EntryKind classifies an archive entry by its content. The zero value is
// KindUnsupported so an unclassified entry is never mistaken for a page.
type EntryKind uint8

const (
	KindUnsupported EntryKind = iota
	KindSVG
	KindRaster
)

// String returns the tag name used in logs and reports.
func (k EntryKind) String() string {
	switch k {
	case KindSVG:
		return "svg"
	case KindRaster:
		return "raster-image"
	default:
		return "unsupported"
	}
}

// Entry is one stored item read from an archive. Entries are never mutated
// after the archive reader returns them.
type Entry struct {
	// Name is the slash-separated path of the entry inside the archive.
	Name string `json:"name" yaml:"name"`

	// Index is the position of the entry in archive enumeration order.
	Index int `json:"index" yaml:"index"`

	// Kind is the classified content kind.
	Kind EntryKind `json:"kind" yaml:"kind"`

	// Data is the raw payload.
	Data []byte `json:"-" yaml:"-"`
}

// MarshalText encodes the kind as its tag name.
func (k EntryKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}
