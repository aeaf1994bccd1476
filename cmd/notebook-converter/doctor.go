// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bernie-nyc/smart-notebook-converter/internal/raster"
	"github.com/bernie-nyc/smart-notebook-converter/internal/svgtool"
	"github.com/bernie-nyc/smart-notebook-converter/pkg/types"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check which SVG rasterizers are usable",
	Long: `Doctor renders a probe image with the in-process MuPDF rasterizer and looks
for each supported command-line rasterizer on PATH. It reports the stage chain
convert would use with the current configuration.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := conversionConfig()
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()

	usable := false
	if err := raster.NewMuPDF(cfg.Raster.PrimaryTimeout).Check(); err != nil {
		fmt.Fprintf(w, "%-14s  unavailable (%v)\n", raster.StageMuPDF, err)
	} else {
		fmt.Fprintf(w, "%-14s  ok\n", raster.StageMuPDF)
		usable = cfg.Raster.Primary != types.ModeOff
	}

	probe := svgtool.Probe()
	for _, bin := range svgtool.Tools {
		status := "not found"
		if probe[bin] {
			status = "ok"
		}
		fmt.Fprintf(w, "%-14s  %s\n", bin, status)
	}

	if tool, err := svgtool.Detect(cfg.Raster.FallbackTool, cfg.Raster.FallbackTimeout); err != nil {
		fmt.Fprintf(w, "\nfallback: none (%v)\n", err)
	} else {
		fmt.Fprintf(w, "\nfallback: %s\n", tool.Name())
		usable = true
	}
	fmt.Fprintf(w, "chain:    %v\n", raster.NewChain(cfg.Raster).Names())

	if !usable {
		return fmt.Errorf("no SVG rasterizer is usable; SVG pages will be dropped")
	}
	return nil
}
