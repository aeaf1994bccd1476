// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package raster

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
)

// ErrUnavailable indicates a stage cannot run in this environment.
var ErrUnavailable = errors.New("stage unavailable")

// Stage converts SVG bytes to an image of roughly width x height pixels.
// Stages may return a different size; the rasterizer rescales the result.
type Stage interface {
	Name() string
	Convert(ctx context.Context, svg []byte, width, height int) (image.Image, error)
}

// Attempt records one failed stage.
type Attempt struct {
	Stage string
	Err   error
}

func (a Attempt) String() string {
	return a.Stage + ": " + a.Err.Error()
}

// Error is returned when a page cannot be rasterized. It carries the
// failure reason of every stage that was tried.
type Error struct {
	Entry    string
	Position int
	Attempts []Attempt
}

func (e *Error) Error() string {
	reasons := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		reasons[i] = a.String()
	}
	return fmt.Sprintf("rasterizing page %d (%s): %s", e.Position, e.Entry, strings.Join(reasons, "; "))
}

// Unwrap exposes every stage error to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	errs := make([]error, len(e.Attempts))
	for i, a := range e.Attempts {
		errs[i] = a.Err
	}
	return errs
}

// Outcome is a successful chain run.
type Outcome struct {
	Image image.Image
	Stage string
	// Fallback is set when a stage other than the first produced the image.
	Fallback bool
	// Failed lists the stages that failed before Stage succeeded.
	Failed []Attempt
}

// Chain tries each stage in order until one succeeds. The first stage is
// the primary; the rest are fallbacks.
type Chain []Stage

// Run converts svg with the first stage that succeeds. When every stage
// fails it returns the attempts and a nil image.
func (c Chain) Run(ctx context.Context, svg []byte, width, height int) (Outcome, []Attempt) {
	var attempts []Attempt
	for i, s := range c {
		img, err := convertSafely(ctx, s, svg, width, height)
		if err == nil && img == nil {
			err = errors.New("stage returned no image")
		}
		if err == nil && img.Bounds().Empty() {
			err = errors.New("stage returned an empty image")
		}
		if err != nil {
			attempts = append(attempts, Attempt{Stage: s.Name(), Err: err})
			continue
		}
		return Outcome{Image: img, Stage: s.Name(), Fallback: i > 0, Failed: attempts}, nil
	}
	if len(c) == 0 {
		attempts = append(attempts, Attempt{Stage: "chain", Err: fmt.Errorf("%w: no stages configured", ErrUnavailable)})
	}
	return Outcome{}, attempts
}

// Names lists the stage names in order.
func (c Chain) Names() []string {
	names := make([]string, len(c))
	for i, s := range c {
		names[i] = s.Name()
	}
	return names
}

func convertSafely(ctx context.Context, s Stage, svg []byte, width, height int) (img image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			img, err = nil, fmt.Errorf("stage panicked: %v", r)
		}
	}()
	return s.Convert(ctx, svg, width, height)
}

// unavailable is a stage that always fails with a fixed reason.
type unavailable struct {
	name   string
	reason error
}

// Unavailable returns a stage that always fails with reason. It stands in
// for a stage that is disabled or could not be set up, so the failure is
// still recorded when the chain runs.
func Unavailable(name string, reason error) Stage {
	return &unavailable{name: name, reason: reason}
}

func (u *unavailable) Name() string { return u.name }

func (u *unavailable) Convert(context.Context, []byte, int, int) (image.Image, error) {
	if errors.Is(u.reason, ErrUnavailable) {
		return nil, u.reason
	}
	return nil, fmt.Errorf("%w: %w", ErrUnavailable, u.reason)
}
