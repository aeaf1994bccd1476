//go:build mage

// Package main contains Mage build targets for notebook-converter developer tooling.
package main

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// projectDirs lists the working directories used by the Convert target.
var projectDirs = []string{
	"samples",
	"out",
}

// Init creates the sample input and output directories.
func Init() error {
	for _, dir := range projectDirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
		fmt.Println("  ", dir)
	}
	fmt.Println("Project directories initialized.")
	return nil
}

const (
	binDir  = "bin"
	binName = "notebook-converter"
	cmdPkg  = "./cmd/notebook-converter"
)

// Build compiles the CLI binary into bin/, stamping the version from
// VERSION when it is set.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	out := filepath.Join(binDir, binName)
	version := os.Getenv("VERSION")
	if version == "" {
		version = "dev"
	}
	if err := sh.RunV("go", "build", "-ldflags", "-X main.version="+version, "-o", out, cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s\n", out)
	return nil
}

// Test runs the unit tests.
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// Doctor builds the CLI and reports which SVG rasterizers are usable.
func Doctor() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "doctor")
}

// Convert builds the CLI and converts every notebook under samples/ into out/.
func Convert() error {
	mg.Deps(Init, Build)
	return sh.RunV(filepath.Join(binDir, binName), "convert", "samples", "--output-dir", "out")
}

// Stats prints per-package Go line counts, the embedded deck templates and
// the notebooks waiting under samples/.
func Stats() error {
	pkgs, err := goLinesByPackage(".")
	if err != nil {
		return err
	}
	dirs := make([]string, 0, len(pkgs))
	for dir := range pkgs {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PACKAGE\tCODE\tTESTS")
	var code, tests int
	for _, dir := range dirs {
		c := pkgs[dir]
		fmt.Fprintf(tw, "%s\t%d\t%d\n", dir, c.code, c.tests)
		code += c.code
		tests += c.tests
	}
	fmt.Fprintf(tw, "total\t%d\t%d\n", code, tests)
	if err := tw.Flush(); err != nil {
		return err
	}

	templates, err := filepath.Glob(filepath.Join("internal", "deck", "templates", "*.xml"))
	if err != nil {
		return err
	}
	notebooks, err := countNotebooks("samples")
	if err != nil {
		return err
	}
	fmt.Printf("\nDeck templates:     %d\n", len(templates))
	fmt.Printf("Sample notebooks:   %d\n", notebooks)
	return nil
}

type lineCount struct {
	code  int
	tests int
}

// goLinesByPackage counts non-blank Go lines per package directory, leaving
// out hidden trees and reference trees prefixed with "_".
func goLinesByPackage(root string) (map[string]lineCount, error) {
	counts := make(map[string]lineCount)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.ContainsAny(d.Name()[:1], "._") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		n := 0
		for _, line := range bytes.Split(data, []byte("\n")) {
			if len(bytes.TrimSpace(line)) > 0 {
				n++
			}
		}
		dir := filepath.ToSlash(filepath.Dir(path))
		c := counts[dir]
		if strings.HasSuffix(path, "_test.go") {
			c.tests += n
		} else {
			c.code += n
		}
		counts[dir] = c
		return nil
	})
	return counts, err
}

// countNotebooks counts .notebook files under dir. A missing directory
// counts as empty.
func countNotebooks(dir string) (int, error) {
	n := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if errors.Is(err, fs.ErrNotExist) {
			return filepath.SkipAll
		}
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".notebook") {
			n++
		}
		return nil
	})
	return n, err
}
