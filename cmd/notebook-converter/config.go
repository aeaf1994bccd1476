// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"slices"

	"github.com/spf13/viper"

	"github.com/bernie-nyc/smart-notebook-converter/internal/archive"
	"github.com/bernie-nyc/smart-notebook-converter/internal/logging"
	"github.com/bernie-nyc/smart-notebook-converter/internal/svgtool"
	"github.com/bernie-nyc/smart-notebook-converter/pkg/types"
)

// setDefaults registers the built-in value of every configuration key.
func setDefaults() {
	d := types.DefaultConversionConfig()
	viper.SetDefault("output_dir", d.OutputDir)
	viper.SetDefault("format", string(d.Format))
	viper.SetDefault("jobs", d.Jobs)
	viper.SetDefault("extensions", d.Extensions)
	viper.SetDefault("ignore", d.Ignore)
	viper.SetDefault("max_entry_size", d.MaxEntrySize)
	viper.SetDefault("ledger", d.Ledger)
	viper.SetDefault("force", d.Force)
	viper.SetDefault("report", d.Report)
	viper.SetDefault("progress", false)
	viper.SetDefault("raster.primary", d.Raster.Primary)
	viper.SetDefault("raster.fallback_tool", d.Raster.FallbackTool)
	viper.SetDefault("raster.primary_timeout", d.Raster.PrimaryTimeout)
	viper.SetDefault("raster.fallback_timeout", d.Raster.FallbackTimeout)
	viper.SetDefault("raster.default_width", d.Raster.DefaultWidth)
	viper.SetDefault("raster.default_height", d.Raster.DefaultHeight)
	viper.SetDefault("log.level", d.Log.Level)
	viper.SetDefault("log.format", d.Log.Format)
}

func logConfig() (types.LogConfig, error) {
	cfg := types.LogConfig{
		Level:  viper.GetString("log.level"),
		Format: viper.GetString("log.format"),
	}
	if !logging.ValidLevel(cfg.Level) {
		return cfg, fmt.Errorf("invalid log level %q", cfg.Level)
	}
	if cfg.Format != logging.FormatConsole && cfg.Format != logging.FormatJSON {
		return cfg, fmt.Errorf("invalid log format %q: want console or json", cfg.Format)
	}
	return cfg, nil
}

// conversionConfig assembles and validates the run configuration from
// flags, environment, and config file.
func conversionConfig() (types.ConversionConfig, error) {
	cfg := types.ConversionConfig{
		OutputDir:    viper.GetString("output_dir"),
		Format:       types.DeckFormat(viper.GetString("format")),
		Jobs:         viper.GetInt("jobs"),
		Extensions:   viper.GetStringSlice("extensions"),
		Ignore:       viper.GetStringSlice("ignore"),
		MaxEntrySize: viper.GetInt64("max_entry_size"),
		Ledger:       viper.GetString("ledger"),
		Force:        viper.GetBool("force"),
		Report:       viper.GetString("report"),
		Raster: types.RasterConfig{
			Primary:         viper.GetString("raster.primary"),
			FallbackTool:    viper.GetString("raster.fallback_tool"),
			PrimaryTimeout:  viper.GetDuration("raster.primary_timeout"),
			FallbackTimeout: viper.GetDuration("raster.fallback_timeout"),
			DefaultWidth:    viper.GetInt("raster.default_width"),
			DefaultHeight:   viper.GetInt("raster.default_height"),
		},
	}
	var err error
	if cfg.Log, err = logConfig(); err != nil {
		return cfg, err
	}

	if !cfg.Format.Valid() {
		return cfg, fmt.Errorf("invalid format %q: want pptx or pdf", cfg.Format)
	}
	if cfg.Jobs < 1 {
		return cfg, fmt.Errorf("jobs must be at least 1, got %d", cfg.Jobs)
	}
	if cfg.MaxEntrySize < 0 {
		return cfg, fmt.Errorf("max_entry_size must not be negative")
	}
	if err := archive.ValidatePatterns(cfg.Ignore); err != nil {
		return cfg, err
	}
	if cfg.Raster.Primary != types.ModeAuto && cfg.Raster.Primary != types.ModeOff {
		return cfg, fmt.Errorf("invalid raster.primary %q: want auto or off", cfg.Raster.Primary)
	}
	if t := cfg.Raster.FallbackTool; t != svgtool.Auto && t != svgtool.Off && !slices.Contains(svgtool.Tools, t) {
		return cfg, fmt.Errorf("invalid raster.fallback_tool %q: want auto, off, or one of %v", t, svgtool.Tools)
	}
	if cfg.Raster.PrimaryTimeout <= 0 || cfg.Raster.FallbackTimeout <= 0 {
		return cfg, fmt.Errorf("raster timeouts must be positive")
	}
	if cfg.Raster.DefaultWidth <= 0 || cfg.Raster.DefaultHeight <= 0 {
		return cfg, fmt.Errorf("raster default size must be positive")
	}
	return cfg, nil
}
