// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bernie-nyc/smart-notebook-converter/internal/archive"
	"github.com/bernie-nyc/smart-notebook-converter/internal/event"
	"github.com/bernie-nyc/smart-notebook-converter/internal/resolve"
	"github.com/bernie-nyc/smart-notebook-converter/pkg/types"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <notebook>",
	Short: "List a notebook's entries and the resolved page order",
	Long: `Inspect reads one archive and prints every entry with its classified kind,
followed by the pages in slide order. Nothing is rasterized or written.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().Bool("json", false, "output as JSON")
	rootCmd.AddCommand(inspectCmd)
}

// inspection is the JSON form of inspect output.
type inspection struct {
	Archive     string              `json:"archive"`
	Container   archive.Container   `json:"container"`
	Entries     []types.Entry       `json:"entries"`
	Ignored     []string            `json:"ignored"`
	Pages       []types.Page        `json:"pages"`
	Fragments   []string            `json:"fragments,omitempty"`
	Unsupported []string            `json:"unsupported,omitempty"`
	Duplicates  []resolve.Duplicate `json:"duplicates,omitempty"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := conversionConfig()
	if err != nil {
		return err
	}
	arc, err := archive.Open(args[0], archive.Options{Ignore: cfg.Ignore, MaxEntrySize: cfg.MaxEntrySize})
	if err != nil {
		return err
	}
	res := resolve.Resolve(arc.Entries, event.Discard)

	out := inspection{
		Archive:    arc.Path,
		Container:  arc.Container,
		Entries:    arc.Entries,
		Ignored:    arc.Ignored,
		Pages:      res.Pages,
		Fragments:  res.Fragments,
		Duplicates: res.Duplicates,
	}
	for _, u := range res.Unsupported {
		out.Unsupported = append(out.Unsupported, u.Name)
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	printInspection(cmd.OutOrStdout(), out, res)
	return nil
}

func printInspection(w io.Writer, in inspection, res resolve.Resolution) {
	fmt.Fprintf(w, "%s (%s): %d entries, %d ignored\n\n", in.Archive, in.Container, len(in.Entries), len(in.Ignored))

	fmt.Fprintf(w, "%-5s  %-13s  %10s  %s\n", "Index", "Kind", "Bytes", "Name")
	fmt.Fprintln(w, strings.Repeat("-", 60))
	for _, e := range in.Entries {
		fmt.Fprintf(w, "%-5d  %-13s  %10d  %s\n", e.Index, e.Kind, len(e.Data), e.Name)
	}
	for _, name := range in.Ignored {
		fmt.Fprintf(w, "%-5s  %-13s  %10s  %s\n", "-", "ignored", "", name)
	}

	fmt.Fprintf(w, "\n%-5s  %-20s  %s\n", "Slide", "Key", "Source")
	fmt.Fprintln(w, strings.Repeat("-", 60))
	if len(in.Pages) == 0 {
		fmt.Fprintln(w, "No pages; this archive would be skipped.")
	}
	for _, p := range in.Pages {
		line := fmt.Sprintf("%-5d  %-20s  %s", p.Position+1, p.Key, p.Source.Name)
		if n := len(p.Fragments); n > 0 {
			line += fmt.Sprintf(" (+%d fragment(s))", n)
		}
		fmt.Fprintln(w, line)
	}

	for _, u := range res.Unsupported {
		fmt.Fprintf(w, "\nunsupported: %s (%s)", u.Name, u.Reason)
	}
	for _, d := range res.Duplicates {
		fmt.Fprintf(w, "\nduplicate key %q: %s", d.Key, strings.Join(d.Entries, ", "))
	}
	if len(res.Unsupported)+len(res.Duplicates) > 0 {
		fmt.Fprintln(w)
	}
}
