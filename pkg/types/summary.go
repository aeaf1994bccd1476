// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// ArchiveStatus is the outcome of converting one archive.
type ArchiveStatus string

const (
	ArchiveConverted ArchiveStatus = "converted"
	ArchiveSkipped   ArchiveStatus = "skipped"
	ArchiveFailed    ArchiveStatus = "failed"
)

// Skip reasons recorded in ArchiveSummary.Reason.
const (
	SkipNoPages        = "no resolvable pages"
	SkipAllPagesFailed = "all pages failed rasterization"
	SkipUpToDate       = "already converted"
)

// Error labels recorded in ArchiveSummary.ErrorKind.
const (
	ErrorKindArchive  = "archive"
	ErrorKindAssembly = "assembly"
	ErrorKindOutput   = "output"
	ErrorKindCanceled = "canceled"
)

// ArchiveSummary aggregates page-level outcomes for one archive.
type ArchiveSummary struct {
	Archive string        `json:"archive" yaml:"archive"`
	Output  string        `json:"output,omitempty" yaml:"output,omitempty"`
	Status  ArchiveStatus `json:"status" yaml:"status"`
	Digest  string        `json:"digest,omitempty" yaml:"digest,omitempty"`

	// Pages is the number of resolved pages (unsupported entries excluded).
	Pages int `json:"pages" yaml:"pages"`
	// Slides is the number of slides written.
	Slides int `json:"slides" yaml:"slides"`
	// Unsupported counts entries whose kind could not be classified.
	Unsupported int `json:"unsupported" yaml:"unsupported"`
	// Ignored counts non-asset entries filtered out by name.
	Ignored int `json:"ignored" yaml:"ignored"`
	// Failed counts pages dropped because every conversion stage failed.
	Failed int `json:"failed" yaml:"failed"`
	// Fallback counts pages produced by a fallback stage.
	Fallback int `json:"fallback" yaml:"fallback"`
	// Duplicates counts entries sharing an ordering key with an earlier entry.
	Duplicates int `json:"duplicates" yaml:"duplicates"`
	// DefaultSized counts pages rendered at the default resolution.
	DefaultSized int `json:"default_sized" yaml:"default_sized"`

	Reason    string        `json:"reason,omitempty" yaml:"reason,omitempty"`
	ErrorKind string        `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Error     string        `json:"error,omitempty" yaml:"error,omitempty"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
}
