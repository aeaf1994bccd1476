// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package event defines the structured events the conversion core emits.
// The core never writes log lines itself; callers decide how events are
// rendered by supplying a Sink.
package event

import "sync"

// Kind identifies what happened.
type Kind string

const (
	// Unsupported reports an entry whose kind could not be classified.
	Unsupported Kind = "unsupported"
	// Ignored reports a non-asset entry filtered out by name.
	Ignored Kind = "ignored"
	// DuplicateKey reports an entry whose ordering key collides with an
	// earlier entry.
	DuplicateKey Kind = "duplicate-key"
	// DefaultSize reports a page rendered at the default resolution.
	DefaultSize Kind = "default-size"
	// StageFailed reports a conversion stage that failed before another
	// stage was tried.
	StageFailed Kind = "stage-failed"
	// FallbackUsed reports a page produced by a fallback stage.
	FallbackUsed Kind = "fallback-used"
	// PageFailed reports a page dropped because every stage failed.
	PageFailed Kind = "page-failed"
	// ArchiveSkipped reports an archive that produced no output.
	ArchiveSkipped Kind = "archive-skipped"
	// ArchiveConverted reports a written deck.
	ArchiveConverted Kind = "archive-converted"
	// ArchiveFailed reports an archive-level error.
	ArchiveFailed Kind = "archive-failed"
	// LedgerError reports a conversion history lookup or update that failed.
	// The archive itself is unaffected.
	LedgerError Kind = "ledger-error"
)

// Event is one structured occurrence during a conversion.
type Event struct {
	Kind    Kind
	Archive string
	// Entry is the archive entry involved, if any.
	Entry string
	// Position is the page position, or -1 when not page related.
	Position int
	// Stage names the conversion stage involved, if any.
	Stage  string
	Detail string
	Err    error
}

// Sink receives events. Implementations must be safe for concurrent use when
// shared between archives converted in parallel.
type Sink interface {
	Emit(Event)
}

// Func adapts a function to the Sink interface.
type Func func(Event)

// Emit calls f(e).
func (f Func) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = Func(func(Event) {})

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit appends e.
func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Count returns how many recorded events have kind k.
func (r *Recorder) Count(k Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == k {
			n++
		}
	}
	return n
}

// WithArchive returns a sink that stamps archive onto every event before
// passing it to s.
func WithArchive(s Sink, archive string) Sink {
	if s == nil {
		s = Discard
	}
	return Func(func(e Event) {
		if e.Archive == "" {
			e.Archive = archive
		}
		s.Emit(e)
	})
}
