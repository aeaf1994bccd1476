// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package raster

import (
	"context"
	"image"

	"github.com/bernie-nyc/smart-notebook-converter/internal/svgtool"
)

// External renders SVG pages with a command-line tool.
type External struct {
	tool svgtool.Tool
}

// NewExternal wraps a detected tool as a stage.
func NewExternal(tool svgtool.Tool) *External {
	return &External{tool: tool}
}

func (e *External) Name() string { return e.tool.Name() }

func (e *External) Convert(ctx context.Context, svg []byte, width, height int) (image.Image, error) {
	data, err := e.tool.Rasterize(ctx, svg, width, height)
	if err != nil {
		return nil, err
	}
	return decodeImage(data)
}
