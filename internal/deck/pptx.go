// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package deck

import (
	"archive/zip"
	"bytes"
	"embed"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"text/template"
	"time"

	"github.com/bernie-nyc/smart-notebook-converter/pkg/types"
)

const (
	// emuPerPixel converts 96 dpi pixels to English Metric Units.
	emuPerPixel = 9525
	// Slide sizes PowerPoint accepts: 1 inch to 56 inches.
	minSlideEMU = 914400
	maxSlideEMU = 51206400
)

// zipTime is stamped on every part so identical input yields identical bytes.
var zipTime = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

//go:embed templates/*
var templateFS embed.FS

var pptxTemplates = template.Must(
	template.New("pptx").
		Funcs(template.FuncMap{"xml": xmlEscape}).
		ParseFS(templateFS, "templates/*"),
)

func xmlEscape(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

type emuSize struct {
	CX int64
	CY int64
}

type pptxSlide struct {
	Number int
	ID     int
	RelID  string
	Media  string
	Descr  string
	Size   emuSize
	png    []byte
}

type pptxDoc struct {
	Title       string
	Application string
	Size        emuSize
	Slides      []pptxSlide
}

// Rel returns the presentation relationship ID of a fixed part. Slides use
// rId2 through rId(n+1); fixed parts follow them.
func (d pptxDoc) Rel(part string) string {
	offset := map[string]int{"presProps": 0, "viewProps": 1, "theme": 2, "tableStyles": 3}[part]
	return fmt.Sprintf("rId%d", len(d.Slides)+2+offset)
}

// slideSize converts pixels to EMU, scaled uniformly into the legal range.
func slideSize(width, height int) emuSize {
	cx, cy := fitRange(float64(width)*emuPerPixel, float64(height)*emuPerPixel, minSlideEMU, maxSlideEMU)
	return emuSize{CX: int64(math.Round(cx)), CY: int64(math.Round(cy))}
}

// buildPPTX renders an Office Open XML presentation. The format has one
// slide size per presentation, so the first image sets it and every
// picture is stretched to fill that slide exactly.
func buildPPTX(images []types.NormalizedImage, title string) ([]byte, error) {
	doc := pptxDoc{Title: title, Application: Application}
	for i, img := range images {
		n := i + 1
		doc.Slides = append(doc.Slides, pptxSlide{
			Number: n,
			ID:     255 + n,
			RelID:  fmt.Sprintf("rId%d", n+1),
			Media:  fmt.Sprintf("image%d.png", n),
			Descr:  img.Page.Source.Name,
			png:    img.Data,
		})
	}
	doc.Size = slideSize(images[0].Width, images[0].Height)
	for i := range doc.Slides {
		doc.Slides[i].Size = doc.Size
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	parts := []struct {
		name string
		tmpl string
		data any
	}{
		{"[Content_Types].xml", "content_types.xml", doc},
		{"_rels/.rels", "root.rels", doc},
		{"docProps/app.xml", "app.xml", doc},
		{"docProps/core.xml", "core.xml", doc},
		{"ppt/presentation.xml", "presentation.xml", doc},
		{"ppt/_rels/presentation.xml.rels", "presentation.rels", doc},
		{"ppt/presProps.xml", "presProps.xml", nil},
		{"ppt/viewProps.xml", "viewProps.xml", nil},
		{"ppt/tableStyles.xml", "tableStyles.xml", nil},
		{"ppt/theme/theme1.xml", "theme.xml", nil},
		{"ppt/slideMasters/slideMaster1.xml", "slideMaster.xml", nil},
		{"ppt/slideMasters/_rels/slideMaster1.xml.rels", "slideMaster.rels", nil},
		{"ppt/slideLayouts/slideLayout1.xml", "slideLayout.xml", nil},
		{"ppt/slideLayouts/_rels/slideLayout1.xml.rels", "slideLayout.rels", nil},
	}
	for _, p := range parts {
		if err := writeTemplatePart(zw, p.name, p.tmpl, p.data); err != nil {
			return nil, err
		}
	}
	for _, s := range doc.Slides {
		if err := writeTemplatePart(zw, fmt.Sprintf("ppt/slides/slide%d.xml", s.Number), "slide.xml", s); err != nil {
			return nil, err
		}
		if err := writeTemplatePart(zw, fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", s.Number), "slide.rels", s); err != nil {
			return nil, err
		}
	}
	for _, s := range doc.Slides {
		w, err := createPart(zw, "ppt/media/"+s.Media, zip.Store)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(s.png); err != nil {
			return nil, fmt.Errorf("writing %s: %w", s.Media, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finishing pptx: %w", err)
	}
	return buf.Bytes(), nil
}

func writeTemplatePart(zw *zip.Writer, name, tmpl string, data any) error {
	w, err := createPart(zw, name, zip.Deflate)
	if err != nil {
		return err
	}
	if err := pptxTemplates.ExecuteTemplate(w, tmpl, data); err != nil {
		return fmt.Errorf("rendering %s: %w", name, err)
	}
	return nil
}

func createPart(zw *zip.Writer, name string, method uint16) (io.Writer, error) {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: method, Modified: zipTime})
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", name, err)
	}
	return w, nil
}
