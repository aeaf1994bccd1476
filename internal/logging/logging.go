// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging builds the zerolog logger used by the command-line driver
// and renders conversion events as log lines.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bernie-nyc/smart-notebook-converter/internal/event"
	"github.com/bernie-nyc/smart-notebook-converter/pkg/types"
)

// Format names.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// New returns a logger writing to out (stderr when nil). Writes are
// serialized so the logger can be shared between goroutines.
func New(cfg types.LogConfig, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}
	out = zerolog.SyncWriter(out)

	var zl zerolog.Logger
	if strings.EqualFold(cfg.Format, FormatJSON) {
		zl = zerolog.New(out)
	} else {
		zl = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen})
	}
	return zl.Level(ParseLevel(cfg.Level)).With().Timestamp().Logger()
}

// ParseLevel converts a level name to a zerolog level. Unknown names map to
// info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ValidLevel reports whether level is a recognized name.
func ValidLevel(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace", "debug", "info", "warn", "warning", "error", "":
		return true
	}
	return false
}

// EventSink renders events through a logger.
type EventSink struct {
	Log zerolog.Logger
}

// NewEventSink returns a sink that logs to zl.
func NewEventSink(zl zerolog.Logger) *EventSink {
	return &EventSink{Log: zl}
}

// Emit writes one log line for e.
func (s *EventSink) Emit(e event.Event) {
	var ev *zerolog.Event
	msg := string(e.Kind)
	switch e.Kind {
	case event.Unsupported:
		ev = s.Log.Info()
		msg = "entry is not a page image"
	case event.Ignored:
		ev = s.Log.Debug()
		msg = "non-asset entry ignored"
	case event.DuplicateKey:
		ev = s.Log.Warn()
		msg = "entries share an ordering key"
	case event.DefaultSize:
		ev = s.Log.Warn()
		msg = "svg declares no size, using default"
	case event.StageFailed:
		ev = s.Log.Debug()
		msg = "conversion stage failed"
	case event.FallbackUsed:
		ev = s.Log.Warn()
		msg = "page rendered by fallback"
	case event.PageFailed:
		ev = s.Log.Warn()
		msg = "page dropped"
	case event.ArchiveSkipped:
		ev = s.Log.Info()
		msg = "archive skipped"
	case event.ArchiveConverted:
		ev = s.Log.Info()
		msg = "deck written"
	case event.ArchiveFailed:
		ev = s.Log.Error()
		msg = "archive failed"
	case event.LedgerError:
		ev = s.Log.Warn()
		msg = "conversion history unavailable"
	default:
		ev = s.Log.Info()
	}

	ev = ev.Str("event", string(e.Kind))
	if e.Archive != "" {
		ev = ev.Str("archive", e.Archive)
	}
	if e.Entry != "" {
		ev = ev.Str("entry", e.Entry)
	}
	if e.Position >= 0 && isPageEvent(e.Kind) {
		ev = ev.Int("page", e.Position+1)
	}
	if e.Stage != "" {
		ev = ev.Str("stage", e.Stage)
	}
	if e.Detail != "" {
		ev = ev.Str("detail", e.Detail)
	}
	if e.Err != nil {
		ev = ev.Err(e.Err)
	}
	ev.Msg(msg)
}

func isPageEvent(k event.Kind) bool {
	switch k {
	case event.DuplicateKey, event.DefaultSize, event.StageFailed, event.FallbackUsed, event.PageFailed:
		return true
	}
	return false
}
