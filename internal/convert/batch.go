// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.yaml.in/yaml/v3"
	"golang.org/x/sync/errgroup"

	"github.com/bernie-nyc/smart-notebook-converter/internal/event"
	"github.com/bernie-nyc/smart-notebook-converter/internal/ledger"
	"github.com/bernie-nyc/smart-notebook-converter/pkg/types"
)

// BatchResult holds the outcome of a batch conversion run.
type BatchResult struct {
	RunID     string                 `yaml:"run_id"`
	Started   time.Time              `yaml:"started"`
	Duration  time.Duration          `yaml:"duration"`
	Converted int                    `yaml:"converted"`
	Skipped   int                    `yaml:"skipped"`
	Failed    int                    `yaml:"failed"`
	Archives  []types.ArchiveSummary `yaml:"archives"`
}

// Total returns the total number of archives processed.
func (r BatchResult) Total() int {
	return r.Converted + r.Skipped + r.Failed
}

// HasFailures reports whether any archive failed conversion.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// BatchOptions controls a batch run.
type BatchOptions struct {
	// Jobs is the number of archives converted in parallel (minimum 1).
	Jobs int

	// Ledger, when set, skips archives already converted to an existing
	// output and records every converted archive.
	Ledger *ledger.Ledger

	// Force converts archives the ledger reports as up to date.
	Force bool

	// OnDone is called after each archive finishes, from the goroutine that
	// converted it.
	OnDone func(types.ArchiveSummary)
}

// ConvertBatch converts every job, printing one status line per archive and
// a summary line to w. Summaries are returned in job order regardless of
// completion order. Cancelling ctx fails the archives not yet finished.
func (c *Converter) ConvertBatch(ctx context.Context, jobs []Job, opts BatchOptions, w io.Writer) BatchResult {
	result := BatchResult{
		RunID:    uuid.NewString(),
		Started:  time.Now(),
		Archives: make([]types.ArchiveSummary, len(jobs)),
	}

	owner := make(map[string]string, len(jobs))
	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(max(opts.Jobs, 1))

	for i, job := range jobs {
		key := outputKey(job.Output)
		if first, taken := owner[key]; taken {
			result.Archives[i] = types.ArchiveSummary{
				Archive:   job.Archive,
				Output:    job.Output,
				Status:    types.ArchiveFailed,
				ErrorKind: types.ErrorKindOutput,
				Error:     fmt.Sprintf("output %s is also produced by %s", job.Output, first),
			}
			c.sink.Emit(event.Event{Kind: event.ArchiveFailed, Archive: job.Archive, Position: -1,
				Detail: types.ErrorKindOutput, Err: errors.New(result.Archives[i].Error)})
			report(w, &mu, result.Archives[i])
			if opts.OnDone != nil {
				opts.OnDone(result.Archives[i])
			}
			continue
		}
		owner[key] = job.Archive

		g.Go(func() error {
			sum := c.convertJob(ctx, job, opts, result.RunID)
			result.Archives[i] = sum
			report(w, &mu, sum)
			if opts.OnDone != nil {
				opts.OnDone(sum)
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, s := range result.Archives {
		switch s.Status {
		case types.ArchiveConverted:
			result.Converted++
		case types.ArchiveSkipped:
			result.Skipped++
		default:
			result.Failed++
		}
	}
	result.Duration = time.Since(result.Started)

	fmt.Fprintf(w, "\nBatch summary: %d converted, %d skipped, %d failed (total: %d)\n",
		result.Converted, result.Skipped, result.Failed, result.Total())
	return result
}

func (c *Converter) convertJob(ctx context.Context, job Job, opts BatchOptions, runID string) types.ArchiveSummary {
	if err := ctx.Err(); err != nil {
		return types.ArchiveSummary{
			Archive: job.Archive, Output: job.Output, Status: types.ArchiveFailed,
			ErrorKind: types.ErrorKindCanceled, Error: err.Error(),
		}
	}

	var digest string
	if opts.Ledger != nil {
		d, err := ledger.Digest(job.Archive)
		if err == nil {
			digest = d
		}
		if digest != "" && !opts.Force {
			ok, err := opts.Ledger.UpToDate(digest, job.Output, c.cfg.Format)
			if err != nil {
				c.sink.Emit(event.Event{Kind: event.LedgerError, Archive: job.Archive, Position: -1, Err: err})
			}
			if ok {
				sum := types.ArchiveSummary{
					Archive: job.Archive, Output: job.Output, Digest: digest,
					Status: types.ArchiveSkipped, Reason: types.SkipUpToDate,
				}
				c.sink.Emit(event.Event{Kind: event.ArchiveSkipped, Archive: job.Archive, Position: -1, Detail: sum.Reason})
				return sum
			}
		}
	}

	sum := c.ConvertArchive(ctx, job.Archive, job.Output)
	sum.Digest = digest

	if opts.Ledger != nil && digest != "" && sum.Status == types.ArchiveConverted {
		err := opts.Ledger.Put(ledger.Record{
			Digest:  digest,
			Archive: job.Archive,
			Output:  job.Output,
			Format:  c.cfg.Format,
			Slides:  sum.Slides,
			RunID:   runID,
		})
		if err != nil {
			c.sink.Emit(event.Event{Kind: event.LedgerError, Archive: job.Archive, Position: -1, Err: err})
		}
	}
	return sum
}

// outputKey normalizes an output path for collision checks.
func outputKey(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

func report(w io.Writer, mu *sync.Mutex, s types.ArchiveSummary) {
	mu.Lock()
	defer mu.Unlock()
	switch s.Status {
	case types.ArchiveConverted:
		fmt.Fprintf(w, "converted: %s -> %s (%d slides", s.Archive, s.Output, s.Slides)
		if s.Failed > 0 {
			fmt.Fprintf(w, ", %d pages dropped", s.Failed)
		}
		if s.Fallback > 0 {
			fmt.Fprintf(w, ", %d via fallback", s.Fallback)
		}
		fmt.Fprintln(w, ")")
	case types.ArchiveSkipped:
		fmt.Fprintf(w, "skipped:   %s (%s)\n", s.Archive, s.Reason)
	default:
		fmt.Fprintf(w, "failed:    %s (%s: %s)\n", s.Archive, s.ErrorKind, s.Error)
	}
}

// WriteReport writes result as YAML to path.
func WriteReport(path string, result BatchResult) error {
	data, err := yaml.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}
