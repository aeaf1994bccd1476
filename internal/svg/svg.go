// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package svg inspects SVG page documents: their intrinsic pixel size and
// the bitmap files they reference. It also inlines referenced bitmaps as
// data URIs so a page can be rasterized without its archive.
package svg

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"math"
	"mime"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html/charset"
)

var (
	rootExpr  = xpath.MustCompile(`/*[local-name()='svg']`)
	imageExpr = xpath.MustCompile(`//*[local-name()='image' or local-name()='feImage']`)

	// General entities from a DOCTYPE internal subset. Parameter entities
	// (<!ENTITY % ...>) never match.
	entityDecl = regexp.MustCompile(`<!ENTITY\s+([A-Za-z_:][\w.:-]*)\s+(?:"([^"]*)"|'([^']*)')\s*>`)
)

// Info describes an SVG document.
type Info struct {
	// Width and Height are the intrinsic size in pixels, zero when the
	// document declares no usable dimensions.
	Width  float64
	Height float64

	// Refs lists external image references in document order, excluding
	// data URIs, fragment identifiers and absolute URLs.
	Refs []string
}

// HasSize reports whether the document declared a usable size.
func (i Info) HasSize() bool {
	return i.Width > 0 && i.Height > 0
}

// PixelSize returns the size rounded to whole pixels, or the given default
// when the document declares none. defaulted reports the latter.
func (i Info) PixelSize(defWidth, defHeight int) (w, h int, defaulted bool) {
	if !i.HasSize() {
		return defWidth, defHeight, true
	}
	w = int(math.Round(i.Width))
	h = int(math.Round(i.Height))
	return max(w, 1), max(h, 1), false
}

// Inspect parses data and reports its size and image references.
func Inspect(data []byte) (Info, error) {
	doc, err := xmlquery.ParseWithOptions(bytes.NewReader(data), xmlquery.ParserOptions{
		Decoder: &xmlquery.DecoderOptions{
			Strict:        false,
			Entity:        entities(data),
			CharsetReader: charset.NewReaderLabel,
		},
	})
	if err != nil {
		return Info{}, fmt.Errorf("parsing svg: %w", err)
	}
	root := xmlquery.QuerySelector(doc, rootExpr)
	if root == nil {
		return Info{}, fmt.Errorf("parsing svg: no svg root element")
	}

	var info Info
	info.Width, info.Height = intrinsicSize(root)

	seen := make(map[string]bool)
	for _, n := range xmlquery.QuerySelectorAll(doc, imageExpr) {
		ref := strings.TrimSpace(href(n))
		if ref == "" || !isLocalRef(ref) || seen[ref] {
			continue
		}
		seen[ref] = true
		info.Refs = append(info.Refs, ref)
	}
	return info, nil
}

// entities returns the HTML named entities plus any general entities the
// document declares in its DOCTYPE. Exporters such as Illustrator put
// namespace URIs and styles behind declared entities.
func entities(data []byte) map[string]string {
	m := make(map[string]string, len(xml.HTMLEntity))
	for k, v := range xml.HTMLEntity {
		m[k] = v
	}
	start := bytes.Index(data, []byte("<!DOCTYPE"))
	if start < 0 {
		return m
	}
	subset := data[start:]
	if end := bytes.Index(subset, []byte("]>")); end >= 0 {
		subset = subset[:end]
	}
	for _, d := range entityDecl.FindAllSubmatch(subset, -1) {
		m[string(d[1])] = string(d[2]) + string(d[3])
	}
	return m
}

// intrinsicSize derives the pixel size from width/height, falling back to
// the viewBox (scaled by aspect ratio when only one of width/height is set).
func intrinsicSize(root *xmlquery.Node) (float64, float64) {
	w, wok := ParseLength(attr(root, "width"))
	h, hok := ParseLength(attr(root, "height"))
	vw, vh, vbok := parseViewBox(attr(root, "viewBox"))

	switch {
	case wok && hok:
		return w, h
	case vbok && wok:
		return w, w * vh / vw
	case vbok && hok:
		return h * vw / vh, h
	case vbok:
		return vw, vh
	}
	return 0, 0
}

// pixelsPerUnit converts absolute CSS units at 96 px/in. Font-relative
// units assume a 16px font.
var pixelsPerUnit = map[string]float64{
	"":   1,
	"px": 1,
	"in": 96,
	"cm": 96 / 2.54,
	"mm": 96 / 25.4,
	"q":  96 / 101.6,
	"pt": 96.0 / 72,
	"pc": 16,
	"em": 16,
	"ex": 8,
}

// ParseLength converts an SVG length to pixels. Percentages and unknown
// units are rejected.
func ParseLength(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	end := len(s)
	for end > 0 && isUnitByte(s[end-1]) {
		end--
	}
	factor, ok := pixelsPerUnit[strings.ToLower(s[end:])]
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s[:end]), 64)
	if err != nil || v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v * factor, true
}

func isUnitByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '%'
}

func parseViewBox(s string) (float64, float64, bool) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if len(fields) != 4 {
		return 0, 0, false
	}
	var v [4]float64
	for i, f := range fields {
		n, err := strconv.ParseFloat(f, 64)
		if err != nil || math.IsInf(n, 0) || math.IsNaN(n) {
			return 0, 0, false
		}
		v[i] = n
	}
	if v[2] <= 0 || v[3] <= 0 {
		return 0, 0, false
	}
	return v[2], v[3], true
}

// attr returns the value of the named attribute, preferring an unprefixed one.
func attr(n *xmlquery.Node, local string) string {
	var prefixed string
	for _, a := range n.Attr {
		if a.Name.Local != local {
			continue
		}
		if a.Name.Space == "" {
			return a.Value
		}
		prefixed = a.Value
	}
	return prefixed
}

// href returns the element's href or xlink:href.
func href(n *xmlquery.Node) string {
	return attr(n, "href")
}

// isLocalRef reports whether ref names a file rather than a URL, a data URI
// or an in-document fragment.
func isLocalRef(ref string) bool {
	if strings.HasPrefix(ref, "#") {
		return false
	}
	u, err := url.Parse(ref)
	if err != nil {
		return true
	}
	return u.Scheme == "" || u.Scheme == "file"
}

// Candidates lists the archive entry names a reference may point to, in
// lookup order: relative to the SVG's directory, then the archive root.
func Candidates(svgName, ref string) []string {
	if u, err := url.Parse(ref); err == nil && (u.Scheme == "" || u.Scheme == "file") {
		ref = u.Path
	}
	ref = strings.ReplaceAll(ref, "\\", "/")
	if ref == "" {
		return nil
	}

	var out []string
	add := func(name string) {
		name = strings.TrimLeft(path.Clean(name), "/")
		if name == "" || name == "." || strings.HasPrefix(name, "../") {
			return
		}
		for _, c := range out {
			if c == name {
				return
			}
		}
		out = append(out, name)
	}
	if !strings.HasPrefix(ref, "/") {
		add(path.Join(path.Dir(svgName), ref))
	}
	add(ref)
	return out
}

// Inline replaces every href whose reference resolves through lookup with
// a base64 data URI. References lookup cannot resolve are left untouched.
func Inline(data []byte, refs []string, lookup func(ref string) (name string, payload []byte, ok bool)) []byte {
	out := data
	for _, ref := range refs {
		name, payload, ok := lookup(ref)
		if !ok {
			continue
		}
		uri := []byte(DataURI(name, payload))
		for _, form := range attrForms(ref) {
			for _, q := range []string{`"`, `'`} {
				old := []byte("href=" + q + form + q)
				repl := append(append([]byte("href="+q), uri...), q...)
				out = bytes.ReplaceAll(out, old, repl)
			}
		}
	}
	return out
}

// attrForms returns the ways ref may be spelled inside an attribute value.
func attrForms(ref string) []string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(ref))
	escaped := b.String()
	if escaped == ref {
		return []string{ref}
	}
	return []string{ref, escaped}
}

// DataURI encodes payload as a data URI, typed by content sniffing and
// then by the file extension.
func DataURI(name string, payload []byte) string {
	ct := http.DetectContentType(payload)
	if !strings.HasPrefix(ct, "image/") {
		if byExt := mime.TypeByExtension(strings.ToLower(path.Ext(name))); byExt != "" {
			ct = byExt
		} else {
			ct = "application/octet-stream"
		}
	}
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(payload)
}
