// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bernie-nyc/smart-notebook-converter/internal/convert"
	"github.com/bernie-nyc/smart-notebook-converter/internal/ledger"
	"github.com/bernie-nyc/smart-notebook-converter/internal/logging"
	"github.com/bernie-nyc/smart-notebook-converter/internal/raster"
	"github.com/bernie-nyc/smart-notebook-converter/pkg/types"
)

// drainTimeout bounds how long convert waits at exit for timed-out MuPDF
// renders to clean up after themselves.
const drainTimeout = 10 * time.Second

var convertCmd = &cobra.Command{
	Use:   "convert <notebook-or-directory>...",
	Short: "Convert notebook files into slide decks",
	Long: `Convert reads each notebook archive, orders its pages, rasterizes them, and
writes one deck per archive. Directories are searched recursively for files with
a configured extension (.notebook by default).

Decks are written beside each archive unless --output-dir is given. A page that
cannot be rendered is dropped with a warning; an archive with no renderable
pages is skipped. The command exits non-zero when any archive fails.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConvert,
}

func init() {
	d := types.DefaultConversionConfig()
	f := convertCmd.Flags()
	f.StringP("output-dir", "o", "", "directory for decks (default: beside each archive)")
	f.String("format", string(d.Format), "deck format: pptx or pdf")
	f.IntP("jobs", "j", d.Jobs, "archives converted in parallel")
	f.StringSlice("ignore", d.Ignore, "base-name globs of entries that are not slides")
	f.String("ledger", "", "conversion history database; archives unchanged since their last conversion are skipped")
	f.Bool("force", false, "convert archives the ledger reports as up to date")
	f.String("report", "", "write a YAML batch report to this path")
	f.String("primary", d.Raster.Primary, "in-process SVG rasterizer: auto or off")
	f.String("fallback-tool", d.Raster.FallbackTool, "fallback SVG rasterizer: auto, off, magick, rsvg-convert, or inkscape")
	f.Bool("progress", false, "show a progress bar")

	for key, flag := range map[string]string{
		"output_dir":           "output-dir",
		"format":               "format",
		"jobs":                 "jobs",
		"ignore":               "ignore",
		"ledger":               "ledger",
		"force":                "force",
		"report":               "report",
		"raster.primary":       "primary",
		"raster.fallback_tool": "fallback-tool",
		"progress":             "progress",
	} {
		_ = viper.BindPFlag(key, f.Lookup(flag))
	}

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, err := conversionConfig()
	if err != nil {
		return err
	}

	archives, err := convert.Discover(args, cfg.Extensions)
	if err != nil {
		return err
	}
	jobs := convert.Plan(archives, cfg.OutputDir, cfg.Format)

	sink := logging.NewEventSink(logger)
	chain := raster.NewChain(cfg.Raster)
	r := raster.New(chain, raster.Options{
		DefaultWidth:  cfg.Raster.DefaultWidth,
		DefaultHeight: cfg.Raster.DefaultHeight,
	})
	conv := convert.New(cfg, r, sink)
	logger.Debug().Strs("stages", chain.Names()).Int("archives", len(jobs)).Msg("starting conversion")

	opts := convert.BatchOptions{Jobs: cfg.Jobs, Force: cfg.Force}
	if cfg.Ledger != "" {
		l, err := ledger.Open(cfg.Ledger)
		if err != nil {
			return err
		}
		defer l.Close()
		opts.Ledger = l
	}
	if viper.GetBool("progress") {
		bar := newProgressBar(len(jobs), "converting")
		opts.OnDone = func(types.ArchiveSummary) { bar.Add() }
		defer bar.Finish()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result := conv.ConvertBatch(ctx, jobs, opts, cmd.OutOrStdout())
	if !raster.Drain(drainTimeout) {
		logger.Warn().Dur("waited", drainTimeout).Msg("mupdf renders still running at exit; temporary files may remain")
	}
	logger.Info().
		Str("run", result.RunID).
		Int("converted", result.Converted).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Dur("elapsed", result.Duration).
		Msg("batch finished")

	if cfg.Report != "" {
		if err := convert.WriteReport(cfg.Report, result); err != nil {
			return err
		}
	}
	if result.HasFailures() {
		return fmt.Errorf("%d archive(s) failed conversion", result.Failed)
	}
	return nil
}
