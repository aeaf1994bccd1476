// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package raster

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wideSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="300" height="150" viewBox="0 0 300 150"><rect width="300" height="150" fill="#2060c0"/></svg>`

func TestMuPDFCheck(t *testing.T) {
	m := NewMuPDF(30 * time.Second)
	require.NoError(t, m.Check())
	assert.NoError(t, m.Check(), "result is cached")
	assert.Equal(t, StageMuPDF, m.Name())
}

func TestMuPDFConvertRendersRequestedWidth(t *testing.T) {
	m := NewMuPDF(30 * time.Second)
	img, err := m.Convert(context.Background(), []byte(wideSVG), 300, 150)
	require.NoError(t, err)

	b := img.Bounds()
	assert.InDelta(t, 300, b.Dx(), 1)
	assert.InDelta(t, 150, b.Dy(), 1)

	r, g, bl, _ := img.At(b.Min.X+b.Dx()/2, b.Min.Y+b.Dy()/2).RGBA()
	assert.Less(t, r, g)
	assert.Less(t, g, bl)
}

func TestMuPDFConvertScalesToWidth(t *testing.T) {
	m := NewMuPDF(30 * time.Second)
	img, err := m.Convert(context.Background(), []byte(wideSVG), 600, 300)
	require.NoError(t, err)
	assert.InDelta(t, 600, img.Bounds().Dx(), 1)
	assert.InDelta(t, 300, img.Bounds().Dy(), 1)
}

func TestMuPDFConvertMalformedSVG(t *testing.T) {
	m := NewMuPDF(30 * time.Second)
	require.NoError(t, m.Check())

	_, err := m.Convert(context.Background(), nil, 100, 100)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnavailable), "a bad page is not a missing renderer")
}

func TestMuPDFConvertTimesOut(t *testing.T) {
	t.Setenv("TMPDIR", t.TempDir())

	m := NewMuPDF(30 * time.Second)
	require.NoError(t, m.Check())
	m.timeout = time.Nanosecond

	_, err := m.Convert(context.Background(), []byte(wideSVG), 300, 150)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mupdf timed out after 1ns")

	require.True(t, Drain(30*time.Second), "abandoned render finishes")
	left, err := os.ReadDir(os.TempDir())
	require.NoError(t, err)
	assert.Empty(t, left, "abandoned render removes its temp dir")
}

func TestMuPDFConvertCanceled(t *testing.T) {
	m := NewMuPDF(30 * time.Second)
	require.NoError(t, m.Check())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Convert(ctx, []byte(wideSVG), 300, 150)
	assert.ErrorIs(t, err, context.Canceled)
	Drain(30 * time.Second)
}

func TestMuPDFCheckTimeoutIsUnavailable(t *testing.T) {
	m := NewMuPDF(time.Nanosecond)
	err := m.Check()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "timed out")
	Drain(30 * time.Second)
}

func TestDrainWithNothingRunning(t *testing.T) {
	assert.True(t, Drain(time.Second))
}
