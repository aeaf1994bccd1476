// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package archive opens notebook archives and enumerates their entries.
// Notebook files are ordinarily zip containers; tar.gz, tar.xz and plain tar
// are accepted as well. The container is detected from its leading bytes,
// not the file name.
package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/bernie-nyc/smart-notebook-converter/pkg/types"
)

// Container identifies the archive container format.
type Container string

const (
	ContainerZip   Container = "zip"
	ContainerTar   Container = "tar"
	ContainerTarGz Container = "tar.gz"
	ContainerTarXz Container = "tar.xz"
)

// headerSize covers the tar "ustar" magic at offset 257.
const headerSize = 512

// Options controls which entries are read.
type Options struct {
	// Ignore lists base-name globs (path.Match syntax, case-insensitive)
	// for entries that are not slide assets.
	Ignore []string

	// MaxEntrySize is the largest payload read into memory. Zero means no limit.
	MaxEntrySize int64
}

// Archive is the enumerated content of one notebook file.
type Archive struct {
	Path      string
	Container Container

	// Entries holds every regular, non-hidden, non-ignored entry in
	// enumeration order. Entry.Index is the position in this slice.
	Entries []types.Entry

	// Ignored names the entries skipped by an ignore glob.
	Ignored []string
}

// visitor receives one regular-file entry from a container walk.
type visitor func(name string, size int64, r io.Reader) error

// Open reads every entry of the archive at filePath. The archive is fully
// read and closed before Open returns; nothing is extracted to disk.
func Open(filePath string, opts Options) (*Archive, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, &Error{Op: "open", Path: filePath, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, &Error{Op: "open", Path: filePath, Err: err}
	}
	if info.IsDir() {
		return nil, &Error{Op: "open", Path: filePath, Err: ErrNotContainer}
	}

	head := make([]byte, headerSize)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, &Error{Op: "detect", Path: filePath, Err: err}
	}
	container, ok := DetectContainer(head[:n])
	if !ok {
		return nil, &Error{Op: "detect", Path: filePath, Err: ErrNotContainer}
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, &Error{Op: "detect", Path: filePath, Err: err}
	}

	a := &Archive{Path: filePath, Container: container}
	collect := func(name string, size int64, r io.Reader) error {
		return a.add(name, size, r, opts)
	}

	switch container {
	case ContainerZip:
		err = walkZip(f, info.Size(), collect)
	case ContainerTarGz:
		var gz *gzip.Reader
		gz, err = gzip.NewReader(f)
		if err == nil {
			err = walkTar(gz, collect)
			gz.Close()
		}
	case ContainerTarXz:
		var xzr *xz.Reader
		xzr, err = xz.NewReader(f)
		if err == nil {
			err = walkTar(xzr, collect)
		}
	case ContainerTar:
		err = walkTar(f, collect)
	}
	if err != nil {
		var ae *Error
		if errors.As(err, &ae) {
			ae.Path = filePath
			return nil, ae
		}
		return nil, &Error{Op: "read", Path: filePath, Err: err}
	}
	return a, nil
}

// DetectContainer identifies the container from the leading bytes of a file.
func DetectContainer(head []byte) (Container, bool) {
	switch {
	case bytes.HasPrefix(head, []byte("PK\x03\x04")), bytes.HasPrefix(head, []byte("PK\x05\x06")):
		return ContainerZip, true
	case bytes.HasPrefix(head, []byte{0x1f, 0x8b}):
		return ContainerTarGz, true
	case bytes.HasPrefix(head, []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}):
		return ContainerTarXz, true
	case len(head) >= 262 && bytes.Equal(head[257:262], []byte("ustar")):
		return ContainerTar, true
	}
	return "", false
}

func (a *Archive) add(name string, size int64, r io.Reader, opts Options) error {
	name = cleanName(name)
	if name == "" || hidden(name) {
		return nil
	}
	if ignored(name, opts.Ignore) {
		a.Ignored = append(a.Ignored, name)
		return nil
	}
	if opts.MaxEntrySize > 0 && size > opts.MaxEntrySize {
		return &Error{Op: "read", Entry: name, Err: fmt.Errorf("%w: %d > %d bytes", ErrEntryTooLarge, size, opts.MaxEntrySize)}
	}

	src := r
	if opts.MaxEntrySize > 0 {
		src = io.LimitReader(r, opts.MaxEntrySize+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return &Error{Op: "read", Entry: name, Err: err}
	}
	if opts.MaxEntrySize > 0 && int64(len(data)) > opts.MaxEntrySize {
		return &Error{Op: "read", Entry: name, Err: fmt.Errorf("%w: more than %d bytes", ErrEntryTooLarge, opts.MaxEntrySize)}
	}

	a.Entries = append(a.Entries, types.Entry{
		Name:  name,
		Index: len(a.Entries),
		Kind:  Classify(name, data),
		Data:  data,
	})
	return nil
}

func walkZip(f *os.File, size int64, visit visitor) error {
	zr, err := zip.NewReader(f, size)
	if err != nil {
		return err
	}
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() || strings.HasSuffix(zf.Name, "/") {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return &Error{Op: "read", Entry: zf.Name, Err: err}
		}
		err = visit(zf.Name, int64(zf.UncompressedSize64), rc)
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func walkTar(r io.Reader, visit visitor) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read header: %w", err)
		}
		if !hdr.FileInfo().Mode().IsRegular() {
			continue
		}
		if err := visit(hdr.Name, hdr.Size, tr); err != nil {
			return err
		}
	}
}

// cleanName normalizes separators and strips leading "./" and "/".
func cleanName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimLeft(name, "/")
	if name == "" {
		return ""
	}
	name = path.Clean(name)
	if name == "." {
		return ""
	}
	return name
}

// hidden reports whether any path segment is a dotfile or a macOS resource fork folder.
func hidden(name string) bool {
	for _, seg := range strings.Split(name, "/") {
		if strings.HasPrefix(seg, ".") || seg == "__MACOSX" {
			return true
		}
	}
	return false
}

func ignored(name string, patterns []string) bool {
	base := strings.ToLower(path.Base(name))
	for _, p := range patterns {
		if ok, err := path.Match(strings.ToLower(p), base); err == nil && ok {
			return true
		}
	}
	return false
}

// ValidatePatterns checks that every ignore glob is well formed.
func ValidatePatterns(patterns []string) error {
	for _, p := range patterns {
		if _, err := path.Match(p, ""); err != nil {
			return fmt.Errorf("ignore pattern %q: %w", p, err)
		}
	}
	return nil
}
