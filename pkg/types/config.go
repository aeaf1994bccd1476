// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// DeckFormat selects the output document format.
type DeckFormat string

const (
	FormatPPTX DeckFormat = "pptx"
	FormatPDF  DeckFormat = "pdf"
)

// Extension returns the file extension, including the dot, for the format.
func (f DeckFormat) Extension() string {
	return "." + string(f)
}

// Valid reports whether f is a supported format.
func (f DeckFormat) Valid() bool {
	return f == FormatPPTX || f == FormatPDF
}

// Raster stage modes.
const (
	ModeAuto = "auto"
	ModeOff  = "off"
)

// RasterConfig holds settings for SVG rasterization.
type RasterConfig struct {
	// Primary is "auto" to use the in-process renderer when it is
	// functional, or "off" to force every SVG page through the fallback.
	Primary string `json:"primary" yaml:"primary"`

	// FallbackTool selects the command-line rasterizer: "auto" picks the
	// first one found on PATH; "off" disables the fallback stage.
	FallbackTool string `json:"fallback_tool" yaml:"fallback_tool"`

	// PrimaryTimeout bounds one in-process conversion (default 30s).
	PrimaryTimeout time.Duration `json:"primary_timeout" yaml:"primary_timeout"`

	// FallbackTimeout bounds one command-line conversion (default 60s).
	FallbackTimeout time.Duration `json:"fallback_timeout" yaml:"fallback_timeout"`

	// DefaultWidth and DefaultHeight are used when an SVG declares no
	// dimensions at all (default 1280x720).
	DefaultWidth  int `json:"default_width" yaml:"default_width"`
	DefaultHeight int `json:"default_height" yaml:"default_height"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `json:"level" yaml:"level"`

	// Format is "console" or "json".
	Format string `json:"format" yaml:"format"`
}

// ConversionConfig holds settings for a conversion run.
type ConversionConfig struct {
	// OutputDir receives every deck. Empty writes each deck beside its archive.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// Format selects the deck format: pptx or pdf.
	Format DeckFormat `json:"format" yaml:"format"`

	// Jobs is the number of archives converted in parallel (default 1).
	Jobs int `json:"jobs" yaml:"jobs"`

	// Extensions lists the archive file extensions picked up when walking
	// a directory.
	Extensions []string `json:"extensions" yaml:"extensions"`

	// Ignore lists base-name globs for non-asset entries.
	Ignore []string `json:"ignore" yaml:"ignore"`

	// MaxEntrySize is the largest entry payload read into memory.
	MaxEntrySize int64 `json:"max_entry_size" yaml:"max_entry_size"`

	// Ledger is the path of the conversion history database. Empty disables it.
	Ledger string `json:"ledger,omitempty" yaml:"ledger,omitempty"`

	// Force reconverts archives the ledger reports as up to date.
	Force bool `json:"force" yaml:"force"`

	// Report is the path of a YAML batch report. Empty disables it.
	Report string `json:"report,omitempty" yaml:"report,omitempty"`

	Raster RasterConfig `json:"raster" yaml:"raster"`
	Log    LogConfig    `json:"log" yaml:"log"`
}

// DefaultIgnore lists the non-asset entries found in notebook archives.
var DefaultIgnore = []string{
	"imsmanifest.xml",
	"metadata.xml",
	"settings.xml",
	"*.rdf",
	"thumbnail*",
	"preview.*",
}

// DefaultConversionConfig returns the configuration used when no file,
// environment variable, or flag overrides a value.
func DefaultConversionConfig() ConversionConfig {
	return ConversionConfig{
		Format:       FormatPPTX,
		Jobs:         1,
		Extensions:   []string{".notebook"},
		Ignore:       append([]string(nil), DefaultIgnore...),
		MaxEntrySize: 256 << 20,
		Raster: RasterConfig{
			Primary:         ModeAuto,
			FallbackTool:    ModeAuto,
			PrimaryTimeout:  30 * time.Second,
			FallbackTimeout: 60 * time.Second,
			DefaultWidth:    1280,
			DefaultHeight:   720,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
