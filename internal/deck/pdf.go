// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package deck

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/bernie-nyc/smart-notebook-converter/pkg/types"
)

const (
	// pointsPerPixel converts 96 dpi pixels to PDF points.
	pointsPerPixel = 0.75
	// PDF page sides must lie between 3 and 14400 points.
	minPagePoints = 3
	maxPagePoints = 14400
)

// pdfWriter tracks object offsets while a document is built.
type pdfWriter struct {
	buf     bytes.Buffer
	offsets []int // offsets[i] is the byte offset of object i+1
}

func (w *pdfWriter) printf(format string, args ...any) {
	fmt.Fprintf(&w.buf, format, args...)
}

// begin starts object num; objects must be begun in increasing order.
func (w *pdfWriter) begin(num int) {
	for len(w.offsets) < num {
		w.offsets = append(w.offsets, 0)
	}
	w.offsets[num-1] = w.buf.Len()
	w.printf("%d 0 obj\n", num)
}

func (w *pdfWriter) end() {
	w.printf("endobj\n")
}

func (w *pdfWriter) stream(num int, dict string, data []byte) {
	w.begin(num)
	w.printf("<< %s/Length %d >>\nstream\n", dict, len(data))
	w.buf.Write(data)
	w.printf("\nendstream\n")
	w.end()
}

// pageSize converts pixels to points, scaled uniformly into the legal range.
func pageSize(width, height int) (float64, float64) {
	return fitRange(float64(width)*pointsPerPixel, float64(height)*pointsPerPixel, minPagePoints, maxPagePoints)
}

// buildPDF writes one page per image. Each page has its own MediaBox, so
// mixed page sizes are reproduced exactly.
func buildPDF(images []types.NormalizedImage, title string) ([]byte, error) {
	const (
		catalogObj = 1
		pagesObj   = 2
		infoObj    = 3
		firstPage  = 4 // each page uses three objects: page, content, image
	)

	w := &pdfWriter{}
	w.printf("%%PDF-1.7\n%%\xE2\xE3\xCF\xD3\n")

	kids := make([]string, len(images))
	for i := range images {
		kids[i] = fmt.Sprintf("%d 0 R", firstPage+3*i)
	}

	w.begin(catalogObj)
	w.printf("<< /Type /Catalog /Pages %d 0 R >>\n", pagesObj)
	w.end()

	w.begin(pagesObj)
	w.printf("<< /Type /Pages /Kids [%s] /Count %d >>\n", strings.Join(kids, " "), len(images))
	w.end()

	w.begin(infoObj)
	w.printf("<< /Title %s /Producer %s /Creator %s >>\n", pdfText(title), pdfText(Application), pdfText(Application))
	w.end()

	for i, img := range images {
		pageObj := firstPage + 3*i
		contentObj := pageObj + 1
		imageObj := pageObj + 2

		rgb, pw, ph, err := rgbPixels(img.Data)
		if err != nil {
			return nil, fmt.Errorf("page %d (%s): %w", i+1, img.Page.Source.Name, err)
		}
		pixels, err := deflate(rgb)
		if err != nil {
			return nil, err
		}
		width, height := pageSize(img.Width, img.Height)
		wStr, hStr := pdfNum(width), pdfNum(height)

		w.begin(pageObj)
		w.printf("<< /Type /Page /Parent %d 0 R /MediaBox [0 0 %s %s] /Resources << /XObject << /Im0 %d 0 R >> >> /Contents %d 0 R >>\n",
			pagesObj, wStr, hStr, imageObj, contentObj)
		w.end()

		content := fmt.Sprintf("q\n%s 0 0 %s 0 0 cm\n/Im0 Do\nQ", wStr, hStr)
		w.stream(contentObj, "", []byte(content))

		w.stream(imageObj, fmt.Sprintf("/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /FlateDecode ", pw, ph), pixels)
	}

	xref := w.buf.Len()
	w.printf("xref\n0 %d\n", len(w.offsets)+1)
	w.printf("0000000000 65535 f \n")
	for _, off := range w.offsets {
		w.printf("%010d 00000 n \n", off)
	}
	w.printf("trailer\n<< /Size %d /Root %d 0 R /Info %d 0 R >>\n", len(w.offsets)+1, catalogObj, infoObj)
	w.printf("startxref\n%d\n%%%%EOF\n", xref)
	return w.buf.Bytes(), nil
}

// rgbPixels decodes PNG data and flattens it onto white as packed RGB.
func rgbPixels(data []byte) ([]byte, int, int, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decoding png: %w", err)
	}
	b := img.Bounds()
	out := make([]byte, 0, b.Dx()*b.Dy()*3)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl := onWhite(img, x, y)
			out = append(out, r, g, bl)
		}
	}
	return out, b.Dx(), b.Dy(), nil
}

func onWhite(img image.Image, x, y int) (byte, byte, byte) {
	c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
	blend := func(v uint8) byte {
		return byte((uint32(v)*uint32(c.A) + 255*(255-uint32(c.A)) + 127) / 255)
	}
	return blend(c.R), blend(c.G), blend(c.B)
}

func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("compressing image: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compressing image: %w", err)
	}
	return buf.Bytes(), nil
}

// pdfNum formats a number without exponent and with at most two decimals.
func pdfNum(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// pdfText encodes s as a UTF-16BE hex string.
func pdfText(s string) string {
	var b strings.Builder
	b.WriteString("<FEFF")
	for _, u := range utf16.Encode([]rune(s)) {
		fmt.Fprintf(&b, "%04X", u)
	}
	b.WriteString(">")
	return b.String()
}
