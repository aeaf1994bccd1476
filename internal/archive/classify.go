// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package archive

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"path"
	"strings"

	"github.com/bernie-nyc/smart-notebook-converter/pkg/types"
)

// sniffLimit bounds how much of a payload is scanned for an SVG root element.
const sniffLimit = 64 << 10

var rasterExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// Classify determines the kind of an entry from its name and payload. The
// extension says what the entry claims to be; the payload decides. A known
// image extension lets weak evidence count (a bare "BM" header for .bmp, an
// <svg> element anywhere near the start for .svg); an unknown extension
// requires a strong signature.
func Classify(name string, data []byte) types.EntryKind {
	kind, _ := classify(name, data)
	return kind
}

// classify returns the kind and, for unsupported entries, a reason.
func classify(name string, data []byte) (types.EntryKind, string) {
	ext := strings.ToLower(path.Ext(name))

	if strongRaster(data) {
		return types.KindRaster, ""
	}
	if strictSVG(data) {
		return types.KindSVG, ""
	}

	switch {
	case ext == ".svg":
		if looseSVG(data) {
			return types.KindSVG, ""
		}
		return types.KindUnsupported, "svg extension but payload has no svg root element"
	case ext == ".bmp":
		if bytes.HasPrefix(data, []byte("BM")) {
			return types.KindRaster, ""
		}
		return types.KindUnsupported, "bmp extension but payload is not a bitmap"
	case rasterExtensions[ext]:
		return types.KindUnsupported, fmt.Sprintf("%s extension but payload is not a recognized image", ext)
	}

	if plausibleBMP(data) {
		return types.KindRaster, ""
	}
	if ext == "" {
		return types.KindUnsupported, "no extension and unrecognized payload"
	}
	return types.KindUnsupported, fmt.Sprintf("unrecognized %s payload", ext)
}

// strongRaster reports whether data starts with a raster signature that is
// unambiguous on its own.
func strongRaster(data []byte) bool {
	switch {
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return true
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return true
	case bytes.HasPrefix(data, []byte("GIF87a")), bytes.HasPrefix(data, []byte("GIF89a")):
		return true
	case bytes.HasPrefix(data, []byte("II*\x00")), bytes.HasPrefix(data, []byte("MM\x00*")):
		return true
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return true
	}
	return false
}

// plausibleBMP checks the "BM" signature together with a known DIB header size.
func plausibleBMP(data []byte) bool {
	if len(data) < 26 || !bytes.HasPrefix(data, []byte("BM")) {
		return false
	}
	switch binary.LittleEndian.Uint32(data[14:18]) {
	case 12, 40, 52, 56, 108, 124:
		return true
	}
	return false
}

// strictSVG accepts an XML prolog (BOM, whitespace, declarations, comments,
// doctype) followed directly by an svg root element.
func strictSVG(data []byte) bool {
	b := data
	if len(b) > sniffLimit {
		b = b[:sniffLimit]
	}
	b = bytes.TrimPrefix(b, []byte("\xEF\xBB\xBF"))
	for {
		b = bytes.TrimLeft(b, " \t\r\n")
		switch {
		case bytes.HasPrefix(b, []byte("<?")):
			b = skipPast(b, "?>")
		case bytes.HasPrefix(b, []byte("<!--")):
			b = skipPast(b, "-->")
		case hasPrefixFold(b, "<!DOCTYPE"):
			b = skipDoctype(b)
		default:
			return isSVGStart(b)
		}
		if b == nil {
			return false
		}
	}
}

// looseSVG accepts any svg start tag within the sniff window.
func looseSVG(data []byte) bool {
	b := data
	if len(b) > sniffLimit {
		b = b[:sniffLimit]
	}
	for i := bytes.IndexByte(b, '<'); i >= 0; {
		if isSVGStart(b[i:]) {
			return true
		}
		next := bytes.IndexByte(b[i+1:], '<')
		if next < 0 {
			break
		}
		i += next + 1
	}
	return false
}

// isSVGStart reports whether b begins with "<svg" or "<prefix:svg" followed
// by a tag delimiter.
func isSVGStart(b []byte) bool {
	if len(b) < 5 || b[0] != '<' {
		return false
	}
	name := b[1:]
	end := bytes.IndexAny(name, " \t\r\n/>")
	if end < 0 {
		return false
	}
	name = name[:end]
	if i := bytes.IndexByte(name, ':'); i >= 0 {
		name = name[i+1:]
	}
	return bytes.EqualFold(name, []byte("svg"))
}

func skipPast(b []byte, marker string) []byte {
	i := bytes.Index(b, []byte(marker))
	if i < 0 {
		return nil
	}
	return b[i+len(marker):]
}

func skipDoctype(b []byte) []byte {
	gt := bytes.IndexByte(b, '>')
	if gt < 0 {
		return nil
	}
	if open := bytes.IndexByte(b[:gt], '['); open >= 0 {
		return skipPast(b, "]>")
	}
	return b[gt+1:]
}

func hasPrefixFold(b []byte, prefix string) bool {
	return len(b) >= len(prefix) && bytes.EqualFold(b[:len(prefix)], []byte(prefix))
}
