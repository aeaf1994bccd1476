// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolve turns the entries of an archive into an ordered sequence
// of pages. Unsupported entries are dropped and counted, bitmaps referenced
// by an SVG page are attached to that page as fragments, and the remaining
// entries are sorted by a numeric-aware key derived from their names.
package resolve

import (
	"fmt"
	"slices"

	"github.com/bernie-nyc/smart-notebook-converter/internal/archive"
	"github.com/bernie-nyc/smart-notebook-converter/internal/event"
	"github.com/bernie-nyc/smart-notebook-converter/internal/svg"
	"github.com/bernie-nyc/smart-notebook-converter/pkg/types"
)

// Duplicate records entries that share one ordering key. Entries are listed
// in the order they were placed, which is archive enumeration order.
type Duplicate struct {
	Key     string
	Entries []string
}

// Resolution is the outcome of resolving one archive's entries.
type Resolution struct {
	// Pages are ordered with contiguous positions starting at zero.
	Pages []types.Page

	// Unsupported holds one error per entry that could not be classified.
	Unsupported []*archive.UnsupportedFormatError

	// Fragments names entries attached to SVG pages instead of becoming pages.
	Fragments []string

	// Duplicates lists ordering keys shared by more than one page.
	Duplicates []Duplicate
}

// Resolve orders entries into pages. Entries are expected in archive
// enumeration order; Index breaks ties between equal keys. Data-quality
// conditions (unsupported entries, duplicate keys) are reported through
// sink and never fail resolution.
func Resolve(entries []types.Entry, sink event.Sink) Resolution {
	if sink == nil {
		sink = event.Discard
	}
	var res Resolution

	var supported []types.Entry
	for _, e := range entries {
		if e.Kind == types.KindUnsupported {
			uerr := archive.NewUnsupportedFormatError(e)
			res.Unsupported = append(res.Unsupported, uerr)
			sink.Emit(event.Event{Kind: event.Unsupported, Entry: e.Name, Position: -1, Detail: uerr.Reason, Err: uerr})
			continue
		}
		supported = append(supported, e)
	}

	fragments, isFragment := groupFragments(supported)

	type candidate struct {
		entry types.Entry
		key   Key
	}
	var pages []candidate
	for _, e := range supported {
		if isFragment[e.Name] {
			res.Fragments = append(res.Fragments, e.Name)
			continue
		}
		pages = append(pages, candidate{entry: e, key: KeyOf(e.Name)})
	}

	slices.SortStableFunc(pages, func(a, b candidate) int {
		if c := Compare(a.key, b.key); c != 0 {
			return c
		}
		return a.entry.Index - b.entry.Index
	})

	res.Pages = make([]types.Page, len(pages))
	for i, c := range pages {
		res.Pages[i] = types.Page{
			Position:  i,
			Key:       c.key.String(),
			Source:    c.entry,
			Fragments: fragments[c.entry.Name],
		}
	}

	for i := 0; i < len(pages); {
		j := i + 1
		for j < len(pages) && Compare(pages[i].key, pages[j].key) == 0 {
			j++
		}
		if j-i > 1 {
			dup := Duplicate{Key: pages[i].key.String()}
			for _, c := range pages[i:j] {
				dup.Entries = append(dup.Entries, c.entry.Name)
			}
			res.Duplicates = append(res.Duplicates, dup)
			for k := i + 1; k < j; k++ {
				sink.Emit(event.Event{
					Kind:     event.DuplicateKey,
					Entry:    pages[k].entry.Name,
					Position: k,
					Detail:   fmt.Sprintf("ordering key %q also used by %s; kept after it", pages[k].key.String(), pages[i].entry.Name),
				})
			}
		}
		i = j
	}
	return res
}

// groupFragments finds raster entries referenced by SVG entries. A bitmap
// referenced by several SVG pages is attached to each of them.
func groupFragments(entries []types.Entry) (map[string][]types.Entry, map[string]bool) {
	rasters := make(map[string]types.Entry)
	for _, e := range entries {
		if e.Kind == types.KindRaster {
			rasters[e.Name] = e
		}
	}

	fragments := make(map[string][]types.Entry)
	isFragment := make(map[string]bool)
	if len(rasters) == 0 {
		return fragments, isFragment
	}
	for _, e := range entries {
		if e.Kind != types.KindSVG {
			continue
		}
		info, err := svg.Inspect(e.Data)
		if err != nil {
			continue
		}
		attached := make(map[string]bool)
		for _, ref := range info.Refs {
			for _, name := range svg.Candidates(e.Name, ref) {
				frag, ok := rasters[name]
				if !ok {
					continue
				}
				if !attached[name] {
					attached[name] = true
					fragments[e.Name] = append(fragments[e.Name], frag)
				}
				isFragment[name] = true
				break
			}
		}
	}
	return fragments, isFragment
}
