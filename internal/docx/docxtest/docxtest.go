// Package docxtest builds small Word packages for tests.
package docxtest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"image"
	"image/color"
	"image/png"
	"regexp"
	"strings"
	"testing"
)

// LogoPlaceholder is the picture name the sample template carries in its header.
const LogoPlaceholder = "logo_placeholder.png"

// Template describes a sample policy template.
type Template struct {
	// Paragraphs are body paragraphs; each inner slice is one paragraph split into runs.
	Paragraphs [][]string
	// Table rows of single-run cells.
	Table [][]string
	// PictureName is the name of the header picture. Empty means LogoPlaceholder.
	PictureName string
	// NoPicture omits the header picture.
	NoPicture bool
}

// SamplePolicy mirrors the fixture policy used across the test suites: body
// text, a details table, a logo in the header and a PAGE field in the footer.
// The "{{SchoolPhone}}" placeholder is split over three runs the way Word saves it.
func SamplePolicy() Template {
	return Template{
		Paragraphs: [][]string{
			{"{{Title}} Enrolment Policy"},
			{"This policy applies to {{ShortName}}, led by {{PrincipalTitle}} {{PrincipalName}}."},
			{"Phone: ", "{{School", "Phone", "}}", " Email: {{SchoolEmail}}"},
			{"Address: {{SchoolAddress}}, {{Suburb}} {{State}} {{PostCode}}"},
		},
		Table: [][]string{
			{"School code", "{{SchoolCode}}"},
			{"Parish", "{{Parish}}"},
			{"ABN", "{{ABN}}"},
		},
	}
}

// Build returns the .docx bytes for tpl.
func Build(t testing.TB, tpl Template) []byte {
	t.Helper()

	pictureName := tpl.PictureName
	if pictureName == "" {
		pictureName = LogoPlaceholder
	}

	files := []struct {
		name string
		body string
	}{
		{"[Content_Types].xml", contentTypes},
		{"_rels/.rels", rootRels},
		{"word/document.xml", documentXML(tpl)},
		{"word/_rels/document.xml.rels", documentRels},
		{"word/header1.xml", headerXML(pictureName, tpl.NoPicture)},
		{"word/_rels/header1.xml.rels", headerRels},
		{"word/footer1.xml", footerXML},
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.Create(f.name)
		if err != nil {
			t.Fatalf("create %s: %v", f.name, err)
		}
		if _, err := w.Write([]byte(f.body)); err != nil {
			t.Fatalf("write %s: %v", f.name, err)
		}
	}
	w, err := zw.Create("word/media/image1.png")
	if err != nil {
		t.Fatalf("create media: %v", err)
	}
	if _, err := w.Write(PNG(t, color.Gray{Y: 0xCC})); err != nil {
		t.Fatalf("write media: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close docx: %v", err)
	}
	return buf.Bytes()
}

// PNG returns a small solid-colour PNG.
func PNG(t testing.TB, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 20, 8))
	for x := 0; x < 20; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

var textRe = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>`)

// Text returns the unescaped text of a package part with runs joined per paragraph
// and paragraphs separated by newlines.
func Text(t testing.TB, doc []byte, partName string) string {
	t.Helper()
	raw := Part(t, doc, partName)
	var out strings.Builder
	for _, para := range strings.Split(string(raw), "</w:p>") {
		for _, m := range textRe.FindAllStringSubmatch(para, -1) {
			out.WriteString(unescape(t, m[1]))
		}
		out.WriteString("\n")
	}
	return out.String()
}

// Part returns the raw bytes of one part of a package.
func Part(t testing.TB, doc []byte, partName string) []byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(doc), int64(len(doc)))
	if err != nil {
		t.Fatalf("open docx: %v", err)
	}
	for _, f := range zr.File {
		if f.Name != partName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", partName, err)
		}
		defer rc.Close()
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rc); err != nil {
			t.Fatalf("read %s: %v", partName, err)
		}
		return buf.Bytes()
	}
	t.Fatalf("part %s not found", partName)
	return nil
}

func unescape(t testing.TB, s string) string {
	t.Helper()
	var v struct {
		Text string `xml:",chardata"`
	}
	if err := xml.Unmarshal([]byte("<t>"+s+"</t>"), &v); err != nil {
		t.Fatalf("unescape %q: %v", s, err)
	}
	return v.Text
}

func documentXML(tpl Template) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	b.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"><w:body>`)
	for _, runs := range tpl.Paragraphs {
		b.WriteString(paragraph(runs...))
	}
	if len(tpl.Table) > 0 {
		b.WriteString(`<w:tbl><w:tblPr><w:tblW w:w="0" w:type="auto"/></w:tblPr>`)
		for _, row := range tpl.Table {
			b.WriteString(`<w:tr>`)
			for _, cell := range row {
				b.WriteString(`<w:tc><w:tcPr><w:tcW w:w="4000" w:type="dxa"/></w:tcPr>`)
				b.WriteString(paragraph(cell))
				b.WriteString(`</w:tc>`)
			}
			b.WriteString(`</w:tr>`)
		}
		b.WriteString(`</w:tbl>`)
	}
	b.WriteString(`<w:sectPr><w:headerReference w:type="default" r:id="rIdHeader1"/><w:footerReference w:type="default" r:id="rIdFooter1"/></w:sectPr>`)
	b.WriteString(`</w:body></w:document>`)
	return b.String()
}

func paragraph(runs ...string) string {
	var b strings.Builder
	b.WriteString(`<w:p>`)
	for _, r := range runs {
		b.WriteString(`<w:r><w:rPr><w:b/></w:rPr><w:t xml:space="preserve">`)
		_ = xml.EscapeText(&b, []byte(r))
		b.WriteString(`</w:t></w:r>`)
	}
	b.WriteString(`</w:p>`)
	return b.String()
}

func headerXML(pictureName string, noPicture bool) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	b.WriteString(`<w:hdr xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture">`)
	b.WriteString(`<w:p>`)
	if !noPicture {
		b.WriteString(`<w:r><w:drawing><wp:inline><wp:extent cx="1828800" cy="731520"/><wp:docPr id="1" name="Picture 1"/>`)
		b.WriteString(`<a:graphic><a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/picture"><pic:pic>`)
		b.WriteString(`<pic:nvPicPr><pic:cNvPr id="0" name="` + pictureName + `"/><pic:cNvPicPr/></pic:nvPicPr>`)
		b.WriteString(`<pic:blipFill><a:blip r:embed="rIdImage1"/></pic:blipFill>`)
		b.WriteString(`</pic:pic></a:graphicData></a:graphic></wp:inline></w:drawing></w:r>`)
	}
	b.WriteString(`<w:r><w:t xml:space="preserve"> {{ShortName}}</w:t></w:r></w:p></w:hdr>`)
	return b.String()
}

const contentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/><Default Extension="xml" ContentType="application/xml"/><Default Extension="png" ContentType="image/png"/><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/><Override PartName="/word/header1.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.header+xml"/><Override PartName="/word/footer1.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.footer+xml"/></Types>`

const rootRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/></Relationships>`

const documentRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rIdHeader1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/header" Target="header1.xml"/><Relationship Id="rIdFooter1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/footer" Target="footer1.xml"/></Relationships>`

const headerRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rIdImage1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="media/image1.png"/></Relationships>`

const footerXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:ftr xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:p><w:r><w:t xml:space="preserve">Page </w:t></w:r><w:r><w:fldChar w:fldCharType="begin"/></w:r><w:r><w:instrText xml:space="preserve"> PAGE </w:instrText></w:r><w:r><w:fldChar w:fldCharType="end"/></w:r></w:p></w:ftr>`
