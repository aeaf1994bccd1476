// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the notebook-converter CLI.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bernie-nyc/smart-notebook-converter/internal/logging"
)

// version is set at build time via ldflags.
var version = "dev"

// logger is configured in PersistentPreRunE from the log.* settings.
var logger = zerolog.Nop()

// rootCmd is the base command for the notebook-converter CLI.
var rootCmd = &cobra.Command{
	Use:   "notebook-converter",
	Short: "Convert SMART Notebook files into slide decks",
	Long: `notebook-converter turns .notebook archives into slide decks, one slide per
page. Pages stored as SVG are rasterized in process with MuPDF, falling back to
an installed command-line rasterizer (magick, rsvg-convert, inkscape); pages
stored as bitmaps are used directly.

Settings come from flags, NOTEBOOK_CONVERTER_* environment variables (a .env
file in the working directory is loaded first), and notebook-converter.yaml.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading .env: %w", err)
		}
		cfg, err := logConfig()
		if err != nil {
			return err
		}
		logger = logging.New(cfg, os.Stderr)
		if used := viper.ConfigFileUsed(); used != "" {
			logger.Debug().Str("file", used).Msg("using config file")
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)
	setDefaults()

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./notebook-converter.yaml or ~/.config/notebook-converter/notebook-converter.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "console", "log format: console or json")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("notebook-converter")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "notebook-converter"))
		}
	}

	viper.SetEnvPrefix("NOTEBOOK_CONVERTER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintln(os.Stderr, "warning: reading config:", err)
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
