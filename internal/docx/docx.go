// Package docx fills placeholders in Word (.docx) templates.
//
// A template carries text placeholders of the form {{ Name }} in its body,
// headers and footers, and may carry named pictures whose image data is swapped
// for new bytes. Everything else in the package is copied through untouched, so
// fields such as PAGE in footers survive rendering.
package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strings"
)

const mainPart = "word/document.xml"

// Document is an in-memory copy of a .docx package.
type Document struct {
	parts []part
	index map[string]int
}

type part struct {
	name   string
	method uint16
	data   []byte
}

// Render opens template, replaces each named picture in images and every text
// placeholder from fields, and returns the new package bytes.
func Render(template []byte, images map[string][]byte, fields map[string]string) ([]byte, error) {
	doc, err := Open(template)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(images))
	for name := range images {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := doc.ReplacePicture(name, images[name]); err != nil {
			return nil, err
		}
	}

	if err := doc.ReplaceText(fields); err != nil {
		return nil, err
	}
	return doc.Bytes()
}

// Open reads a .docx package from memory.
func Open(data []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}

	doc := &Document{index: make(map[string]int, len(zr.File))}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open docx part %s: %w", f.Name, err)
		}
		b, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read docx part %s: %w", f.Name, err)
		}
		doc.index[f.Name] = len(doc.parts)
		doc.parts = append(doc.parts, part{name: f.Name, method: f.Method, data: b})
	}

	if _, ok := doc.index[mainPart]; !ok {
		return nil, fmt.Errorf("open docx: %s is missing, not a Word document", mainPart)
	}
	return doc, nil
}

// Part returns the raw bytes of a package part.
func (d *Document) Part(name string) ([]byte, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return d.parts[i].data, true
}

func (d *Document) setPart(name string, data []byte) {
	d.parts[d.index[name]].data = data
}

// Bytes serialises the package, keeping the original part order.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range d.parts {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: p.name, Method: p.method})
		if err != nil {
			return nil, fmt.Errorf("write docx part %s: %w", p.name, err)
		}
		if _, err := w.Write(p.data); err != nil {
			return nil, fmt.Errorf("write docx part %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize docx: %w", err)
	}
	return buf.Bytes(), nil
}

// storyParts are the parts that hold visible text: the body, headers and footers.
func (d *Document) storyParts() []string {
	var names []string
	for _, p := range d.parts {
		if isStoryPart(p.name) {
			names = append(names, p.name)
		}
	}
	return names
}

func isStoryPart(name string) bool {
	if name == mainPart {
		return true
	}
	dir, file := path.Split(name)
	if dir != "word/" || !strings.HasSuffix(file, ".xml") {
		return false
	}
	return strings.HasPrefix(file, "header") || strings.HasPrefix(file, "footer")
}

var (
	drawingRe = regexp.MustCompile(`(?s)<w:drawing>.*?</w:drawing>`)
	propsRe   = regexp.MustCompile(`<(?:wp:docPr|pic:cNvPr)\b[^>]*>`)
	attrRe    = regexp.MustCompile(`\b(name|descr)="([^"]*)"`)
	embedRe   = regexp.MustCompile(`r:embed="([^"]+)"`)
)

// ReplacePicture swaps the image data of every picture whose name or
// description equals name. It fails if no such picture exists.
func (d *Document) ReplacePicture(name string, image []byte) error {
	if len(image) == 0 {
		return fmt.Errorf("replace picture %q: image is empty", name)
	}

	replaced := 0
	for _, partName := range d.storyParts() {
		data, _ := d.Part(partName)
		for _, drawing := range drawingRe.FindAll(data, -1) {
			if !drawingNamed(drawing, name) {
				continue
			}
			m := embedRe.FindSubmatch(drawing)
			if m == nil {
				return fmt.Errorf("replace picture %q: drawing in %s has no embedded image", name, partName)
			}
			target, err := d.relationshipTarget(partName, string(m[1]))
			if err != nil {
				return fmt.Errorf("replace picture %q: %w", name, err)
			}
			if _, ok := d.index[target]; !ok {
				return fmt.Errorf("replace picture %q: media part %s not found", name, target)
			}
			d.setPart(target, image)
			replaced++
		}
	}

	if replaced == 0 {
		return fmt.Errorf("replace picture %q: picture not found in template", name)
	}
	return nil
}

func drawingNamed(drawing []byte, name string) bool {
	for _, props := range propsRe.FindAll(drawing, -1) {
		for _, attr := range attrRe.FindAllSubmatch(props, -1) {
			if string(attr[2]) == name {
				return true
			}
		}
	}
	return false
}

type relationships struct {
	Items []struct {
		ID         string `xml:"Id,attr"`
		Target     string `xml:"Target,attr"`
		TargetMode string `xml:"TargetMode,attr"`
	} `xml:"Relationship"`
}

// relationshipTarget resolves a relationship id of a part to a package part name.
func (d *Document) relationshipTarget(partName, id string) (string, error) {
	dir, file := path.Split(partName)
	relsName := dir + "_rels/" + file + ".rels"
	data, ok := d.Part(relsName)
	if !ok {
		return "", fmt.Errorf("relationships %s not found", relsName)
	}

	var rels relationships
	if err := xml.Unmarshal(data, &rels); err != nil {
		return "", fmt.Errorf("parse %s: %w", relsName, err)
	}
	for _, r := range rels.Items {
		if r.ID != id {
			continue
		}
		if r.TargetMode == "External" {
			return "", fmt.Errorf("relationship %s in %s is external", id, relsName)
		}
		if strings.HasPrefix(r.Target, "/") {
			return strings.TrimPrefix(r.Target, "/"), nil
		}
		return path.Clean(path.Join(dir, r.Target)), nil
	}
	return "", fmt.Errorf("relationship %s not found in %s", id, relsName)
}
