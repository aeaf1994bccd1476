// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	// maxPixels bounds decoded and rendered images to keep memory use sane.
	maxPixels = 100 << 20
	// maxDimension bounds either side of a rendered SVG page.
	maxDimension = 8192
)

var errTooLarge = errors.New("image too large")

// decoded is a raster entry decoded to its final PNG form.
type decoded struct {
	width  int
	height int
	png    []byte
}

// decodeRaw decodes a raster payload. PNG input is returned unchanged once
// it decodes cleanly; other formats are re-encoded as PNG.
func decodeRaw(data []byte) (decoded, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return decoded{}, fmt.Errorf("reading image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return decoded{}, fmt.Errorf("image has no pixels (%dx%d)", cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return decoded{}, fmt.Errorf("%w: %dx%d", errTooLarge, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return decoded{}, fmt.Errorf("decoding %s: %w", format, err)
	}
	b := img.Bounds()
	out := decoded{width: b.Dx(), height: b.Dy()}
	if format == "png" {
		out.png = data
		return out, nil
	}
	if out.png, err = encodePNG(img); err != nil {
		return decoded{}, err
	}
	return out, nil
}

// decodeImage decodes stage output produced as encoded bytes.
func decodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding stage output: %w", err)
	}
	return img, nil
}

// flatten draws src onto an opaque white width x height canvas, scaling
// with Catmull-Rom when the sizes differ.
func flatten(src image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	sb := src.Bounds()
	if sb.Dx() == width && sb.Dy() == height {
		draw.Draw(dst, dst.Bounds(), src, sb.Min, draw.Over)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, sb, draw.Over, nil)
	return dst
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

// boundSize scales width x height down uniformly so neither side exceeds
// maxDimension.
func boundSize(width, height int) (int, int) {
	longest := max(width, height)
	if longest <= maxDimension {
		return width, height
	}
	scale := float64(maxDimension) / float64(longest)
	return max(1, int(float64(width)*scale+0.5)), max(1, int(float64(height)*scale+0.5))
}
