// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bernie-nyc/smart-notebook-converter/pkg/types"
)

func openTest(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "state", "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLookupMissing(t *testing.T) {
	l := openTest(t)
	_, ok, err := l.Lookup("abc", "a.pptx", types.FormatPPTX)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPutAndLookup(t *testing.T) {
	l := openTest(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, l.Put(Record{
		Digest: "d1", Archive: "a.notebook", Output: "a.pptx",
		Format: types.FormatPPTX, Slides: 3, RunID: "run-1", Converted: at,
	}))

	rec, ok, err := l.Lookup("d1", "a.pptx", types.FormatPPTX)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a.notebook", rec.Archive)
	assert.Equal(t, "a.pptx", rec.Output)
	assert.Equal(t, 3, rec.Slides)
	assert.Equal(t, "run-1", rec.RunID)
	assert.True(t, at.Equal(rec.Converted))

	_, ok, err = l.Lookup("d1", "a.pptx", types.FormatPDF)
	require.NoError(t, err)
	assert.False(t, ok, "records are per format")

	_, ok, err = l.Lookup("d1", "b.pptx", types.FormatPPTX)
	require.NoError(t, err)
	assert.False(t, ok, "records are per output")
}

func TestPutReplaces(t *testing.T) {
	l := openTest(t)
	require.NoError(t, l.Put(Record{Digest: "d", Archive: "a", Output: "a.pptx", Format: types.FormatPPTX, Slides: 1, RunID: "run-1"}))
	require.NoError(t, l.Put(Record{Digest: "d", Archive: "a", Output: "a.pptx", Format: types.FormatPPTX, Slides: 2}))

	rec, ok, err := l.Lookup("d", "a.pptx", types.FormatPPTX)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, rec.Slides)
	assert.Empty(t, rec.RunID)
}

func TestIdenticalArchivesAtDifferentOutputs(t *testing.T) {
	l := openTest(t)
	dir := t.TempDir()
	outA := filepath.Join(dir, "week1", "lesson.pptx")
	outB := filepath.Join(dir, "week2", "lesson.pptx")
	for _, out := range []string{outA, outB} {
		require.NoError(t, os.MkdirAll(filepath.Dir(out), 0o755))
		require.NoError(t, os.WriteFile(out, []byte("deck"), 0o644))
	}

	require.NoError(t, l.Put(Record{Digest: "same", Archive: "week1/lesson.notebook", Output: outA, Format: types.FormatPPTX, Slides: 4}))
	require.NoError(t, l.Put(Record{Digest: "same", Archive: "week2/lesson.notebook", Output: outB, Format: types.FormatPPTX, Slides: 4}))

	for _, out := range []string{outA, outB} {
		ok, err := l.UpToDate("same", out, types.FormatPPTX)
		require.NoError(t, err)
		assert.True(t, ok, out)
	}

	rec, ok, err := l.Lookup("same", outA, types.FormatPPTX)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "week1/lesson.notebook", rec.Archive)
}

func TestUpToDate(t *testing.T) {
	l := openTest(t)
	out := filepath.Join(t.TempDir(), "a.pptx")
	require.NoError(t, l.Put(Record{Digest: "d", Archive: "a", Output: out, Format: types.FormatPPTX, Slides: 1}))

	ok, err := l.UpToDate("d", out, types.FormatPPTX)
	require.NoError(t, err)
	assert.False(t, ok, "output file missing")

	require.NoError(t, os.WriteFile(out, []byte("deck"), 0o644))
	ok, err = l.UpToDate("d", out, types.FormatPPTX)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.UpToDate("d", filepath.Join(t.TempDir(), "elsewhere.pptx"), types.FormatPPTX)
	require.NoError(t, err)
	assert.False(t, ok, "different output path")

	ok, err = l.UpToDate("other", out, types.FormatPPTX)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLedgerPersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.Put(Record{Digest: "d", Archive: "a", Output: "o", Format: types.FormatPDF, Slides: 5}))
	require.NoError(t, l.Close())

	l, err = Open(path)
	require.NoError(t, err)
	defer l.Close()
	rec, ok, err := l.Lookup("d", "o", types.FormatPDF)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 5, rec.Slides)
}

func TestDigest(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	c := filepath.Join(dir, "c")
	require.NoError(t, os.WriteFile(a, []byte("same"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("same"), 0o644))
	require.NoError(t, os.WriteFile(c, []byte("different"), 0o644))

	da, err := Digest(a)
	require.NoError(t, err)
	db, err := Digest(b)
	require.NoError(t, err)
	dc, err := Digest(c)
	require.NoError(t, err)

	assert.Len(t, da, 64)
	assert.Equal(t, da, db)
	assert.NotEqual(t, da, dc)

	_, err = Digest(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
