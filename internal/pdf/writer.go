package pdf

import (
	"bytes"
	"compress/zlib"
	"fmt"
)

// Bytes serializes the document: header, body objects, xref table, trailer.
// Object numbering is catalog(1), pages(2), font(3), then per page an image
// XObject, a content stream, and the page dict, with the info dict last.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

	offsets := []int{0} // object 0 is the free-list head
	writeObj := func(body string) int {
		num := len(offsets)
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", num, body)
		return num
	}
	writeStreamObj := func(dict string, data []byte) int {
		num := len(offsets)
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n<< %s /Length %d >>\nstream\n", num, dict, len(data))
		buf.Write(data)
		buf.WriteString("\nendstream\nendobj\n")
		return num
	}

	// Page object numbers are fixed by the layout above, so the catalog and
	// page tree can reference them before they are written.
	const catalogNum, pagesNum, fontNum = 1, 2, 3
	pageNums := make([]int, len(d.pages))
	next := fontNum + 1
	for i, p := range d.pages {
		if p.image != nil {
			next++ // image object
		}
		next++ // content stream
		pageNums[i] = next
		next++
	}

	kids := "["
	for _, n := range pageNums {
		kids += fmt.Sprintf(" %d 0 R", n)
	}
	kids += " ]"

	writeObj(fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", pagesNum))
	writeObj(fmt.Sprintf("<< /Type /Pages /Kids %s /Count %d >>", kids, len(d.pages)))
	writeObj("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	for i, p := range d.pages {
		imgNum := 0
		if p.image != nil {
			imgNum = writeStreamObj(fmt.Sprintf(
				"/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /%s /BitsPerComponent 8 /Filter /%s",
				p.image.Width, p.image.Height, p.image.ColorSpace, p.image.Filter,
			), p.image.Data)
		}

		content, err := compress(p.contentStream())
		if err != nil {
			return nil, fmt.Errorf("compress page %d content: %w", i, err)
		}
		contentNum := writeStreamObj("/Filter /FlateDecode", content)

		resources := fmt.Sprintf("/Font << /F1 %d 0 R >>", fontNum)
		if imgNum > 0 {
			resources += fmt.Sprintf(" /XObject << /Im0 %d 0 R >>", imgNum)
		}
		got := writeObj(fmt.Sprintf(
			"<< /Type /Page /Parent %d 0 R /MediaBox [0 0 %s %s] /Resources << %s >> /Contents %d 0 R >>",
			pagesNum, num(p.width), num(p.height), resources, contentNum,
		))
		if got != pageNums[i] {
			return nil, fmt.Errorf("page %d object numbering drifted: got %d want %d", i, got, pageNums[i])
		}
	}

	infoNum := writeObj(fmt.Sprintf("<< /Title %s /Producer (snapbinder) >>", pdfString(d.title)))

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets))
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets[1:] {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R /Info %d 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(offsets), catalogNum, infoNum, xrefOffset)

	return buf.Bytes(), nil
}

// contentStream renders the page operators: the image placement followed by
// each invisible text run (text rendering mode 3).
func (p *Page) contentStream() []byte {
	var b bytes.Buffer
	if p.image != nil {
		fmt.Fprintf(&b, "q\n%s 0 0 %s %s %s cm\n/Im0 Do\nQ\n",
			num(p.imgW), num(p.imgH), num(p.imgX), num(p.imgY))
	}
	for _, t := range p.texts {
		fmt.Fprintf(&b, "BT\n3 Tr\n/F1 %s Tf\n%s Tz\n1 0 0 1 %s %s Tm\n%s Tj\nET\n",
			num(t.fontSize), num(t.hscale), num(t.x), num(t.y), pdfString(t.text))
	}
	return b.Bytes()
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// pdfString emits a literal string with delimiters and escapes applied.
// Runes outside WinAnsi's byte range degrade to '?' rather than corrupting
// the stream.
func pdfString(s string) string {
	var b bytes.Buffer
	b.WriteByte('(')
	for _, r := range s {
		switch {
		case r == '(' || r == ')' || r == '\\':
			b.WriteByte('\\')
			b.WriteByte(byte(r))
		case r == '\n':
			b.WriteString("\\n")
		case r == '\r':
			b.WriteString("\\r")
		case r < 0x20 || r > 0xFF:
			b.WriteByte('?')
		default:
			b.WriteByte(byte(r))
		}
	}
	b.WriteByte(')')
	return b.String()
}

// num formats a coordinate with enough precision for layout without littering
// streams with float noise.
func num(f float64) string {
	s := fmt.Sprintf("%.2f", f)
	for len(s) > 1 && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if len(s) > 1 && s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	return s
}
