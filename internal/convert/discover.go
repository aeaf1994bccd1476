// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bernie-nyc/smart-notebook-converter/pkg/types"
)

// ErrNoArchives indicates discovery found nothing to convert.
var ErrNoArchives = errors.New("no archives found")

// Discover expands paths into archive files. Files are taken as given;
// directories are walked recursively for files whose extension matches one
// of extensions (case-insensitive). Hidden directories are not entered.
// Results keep argument order, lexical within a directory, without
// duplicates.
func Discover(paths, extensions []string) ([]string, error) {
	exts := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = true
	}

	seen := make(map[string]bool)
	var found []string
	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			found = append(found, p)
		}
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", root, err)
		}
		if !info.IsDir() {
			add(root)
			continue
		}
		err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if p != root && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if exts[strings.ToLower(filepath.Ext(p))] {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", root, err)
		}
	}

	if len(found) == 0 {
		return nil, ErrNoArchives
	}
	return found, nil
}

// OutputPath returns where the deck for archivePath is written: beside the
// archive, or in outputDir when it is set, named after the archive's base
// name with the format's extension.
func OutputPath(archivePath, outputDir string, format types.DeckFormat) string {
	base := strings.TrimSuffix(filepath.Base(archivePath), filepath.Ext(archivePath))
	dir := filepath.Dir(archivePath)
	if outputDir != "" {
		dir = outputDir
	}
	return filepath.Join(dir, base+format.Extension())
}

// Job pairs an archive with its output path.
type Job struct {
	Archive string
	Output  string
}

// Plan builds one job per archive.
func Plan(archives []string, outputDir string, format types.DeckFormat) []Job {
	jobs := make([]Job, len(archives))
	for i, a := range archives {
		jobs[i] = Job{Archive: a, Output: OutputPath(a, outputDir, format)}
	}
	return jobs
}
