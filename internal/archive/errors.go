// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package archive

import (
	"errors"
	"fmt"

	"github.com/bernie-nyc/smart-notebook-converter/pkg/types"
)

var (
	// ErrNotContainer indicates the file is not a supported archive container.
	ErrNotContainer = errors.New("not a recognized archive container")
	// ErrEntryTooLarge indicates an entry exceeds the configured size limit.
	ErrEntryTooLarge = errors.New("entry exceeds size limit")
	// ErrUnsupportedFormat indicates an entry whose kind could not be determined.
	ErrUnsupportedFormat = errors.New("unsupported entry format")
)

// Error reports an archive that cannot be opened or read. It is fatal for
// that archive only.
type Error struct {
	Op    string // "open", "detect", "read"
	Path  string
	Entry string // entry being read, if any
	Err   error
}

func (e *Error) Error() string {
	if e.Entry != "" {
		return fmt.Sprintf("archive %s: %s %s: %v", e.Path, e.Op, e.Entry, e.Err)
	}
	return fmt.Sprintf("archive %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UnsupportedFormatError describes an entry that was read but could not be
// classified. It is counted and skipped, never surfaced as a failure.
type UnsupportedFormatError struct {
	Name   string
	Reason string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported entry %s: %s", e.Name, e.Reason)
}

func (e *UnsupportedFormatError) Unwrap() error {
	return ErrUnsupportedFormat
}

// NewUnsupportedFormatError explains why entry was classified unsupported.
func NewUnsupportedFormatError(entry types.Entry) *UnsupportedFormatError {
	_, reason := classify(entry.Name, entry.Data)
	if reason == "" {
		reason = "unsupported content"
	}
	return &UnsupportedFormatError{Name: entry.Name, Reason: reason}
}
