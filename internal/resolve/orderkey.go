// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"path"
	"strings"
)

// chunk is a maximal run of digits or of non-digits.
type chunk struct {
	text    string // lowercased text, or digits with leading zeros removed
	numeric bool
}

// Key is a numeric-aware ordering key derived from an entry name.
type Key struct {
	display string
	chunks  []chunk
}

// KeyOf derives the ordering key from the base name of an entry with its
// extension removed, so "pages/Page10.svg" yields "Page10".
func KeyOf(name string) Key {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if ext := path.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	return Key{display: base, chunks: split(base)}
}

// String returns the name the key was derived from.
func (k Key) String() string {
	return k.display
}

func split(s string) []chunk {
	var out []chunk
	for i := 0; i < len(s); {
		j := i
		numeric := isDigit(s[i])
		for j < len(s) && isDigit(s[j]) == numeric {
			j++
		}
		run := s[i:j]
		if numeric {
			run = strings.TrimLeft(run, "0")
		} else {
			run = strings.ToLower(run)
		}
		out = append(out, chunk{text: run, numeric: numeric})
		i = j
	}
	return out
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// Compare orders keys chunk by chunk. Digit runs compare by numeric value
// without conversion, so arbitrarily long runs never overflow. Text runs
// compare case-insensitively. A digit run sorts before a text run, and a key
// that is a prefix of another sorts first. Compare returns 0 for keys that
// differ only in case or leading zeros.
func Compare(a, b Key) int {
	for i := 0; i < len(a.chunks) && i < len(b.chunks); i++ {
		if c := compareChunk(a.chunks[i], b.chunks[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a.chunks) < len(b.chunks):
		return -1
	case len(a.chunks) > len(b.chunks):
		return 1
	}
	return 0
}

func compareChunk(a, b chunk) int {
	switch {
	case a.numeric && !b.numeric:
		return -1
	case !a.numeric && b.numeric:
		return 1
	case a.numeric:
		if len(a.text) != len(b.text) {
			if len(a.text) < len(b.text) {
				return -1
			}
			return 1
		}
	}
	return strings.Compare(a.text, b.text)
}
