// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyOf(t *testing.T) {
	tests := map[string]string{
		"page1.svg":         "page1",
		"pages/Page10.svg":  "Page10",
		`pages\page3.png`:   "page3",
		"page.1.svg":        "page.1",
		"noext":             "noext",
		".hidden":           ".hidden",
		"archive.tar.gz":    "archive.tar",
		"deep/dir/0007.PNG": "0007",
	}
	for in, want := range tests {
		assert.Equal(t, want, KeyOf(in).String(), in)
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"page2.svg", "page10.svg", -1},
		{"page10.svg", "page2.svg", 1},
		{"page2.svg", "page2.png", 0},
		{"Page2.svg", "page2.svg", 0},
		{"page02.svg", "page2.svg", 0},
		{"page007.svg", "page10.svg", -1},
		{"1.svg", "2.svg", -1},
		{"9.svg", "10.svg", -1},
		{"a.svg", "b.svg", -1},
		{"B.svg", "a.svg", 1},
		{"abc.svg", "abd.svg", -1},
		{"page.svg", "page1.svg", -1},
		{"1.svg", "a.svg", -1},
		{"page1_2.svg", "page1_10.svg", -1},
		{"page2_1.svg", "page10_1.svg", -1},
		{"section1page9.svg", "section1page10.svg", -1},
		{"section2page1.svg", "section10page1.svg", -1},
		{"0.svg", "00.svg", 0},
		{"0.svg", "1.svg", -1},
		{"99999999999999999999999998.svg", "99999999999999999999999999.svg", -1},
		{"100000000000000000000000000.svg", "99999999999999999999999999.svg", 1},
		{"000000000000000000000000001.svg", "2.svg", -1},
		{".svg", "1.svg", 1},
		{"", "", 0},
	}
	for _, tt := range tests {
		got := Compare(KeyOf(tt.a), KeyOf(tt.b))
		assert.Equal(t, tt.want, got, "%s vs %s", tt.a, tt.b)
		assert.Equal(t, -tt.want, Compare(KeyOf(tt.b), KeyOf(tt.a)), "%s vs %s reversed", tt.b, tt.a)
	}
}

func TestCompareSortsNaturally(t *testing.T) {
	want := []string{
		"page1.svg", "page2.svg", "page3.png", "page9.svg", "page10.svg",
		"page11.svg", "page20.svg", "page100.svg", "pageA.svg", "pageb.svg",
	}
	names := slices.Clone(want)
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		r.Shuffle(len(names), func(i, j int) { names[i], names[j] = names[j], names[i] })
		slices.SortFunc(names, func(a, b string) int { return Compare(KeyOf(a), KeyOf(b)) })
		assert.Equal(t, want, names)
	}
}
