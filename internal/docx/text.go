package docx

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"
)

var (
	textRe  = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>`)
	identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// PlaceholderError reports a placeholder that could not be filled.
type PlaceholderError struct {
	Part        string
	Placeholder string
	Reason      string
}

func (e *PlaceholderError) Error() string {
	return fmt.Sprintf("%s placeholder %q in %s", e.Reason, e.Placeholder, e.Part)
}

// ReplaceText fills every {{ Name }} placeholder in the body, headers and
// footers. Word often splits a placeholder over several runs; the filled value
// is written into the run where the placeholder starts and the rest of the
// placeholder text is removed from the following runs.
func (d *Document) ReplaceText(fields map[string]string) error {
	for _, name := range d.storyParts() {
		data, _ := d.Part(name)
		if !bytes.Contains(data, []byte("{")) {
			continue
		}
		out, err := replaceText(name, string(data), fields)
		if err != nil {
			return err
		}
		d.setPart(name, []byte(out))
	}
	return nil
}

type textNode struct {
	start, end   int // whole <w:t> element
	tstart, tend int // text content
}

type span struct {
	from, to int // offsets in the concatenated text
	value    string
}

func replaceText(partName, src string, fields map[string]string) (string, error) {
	matches := textRe.FindAllStringSubmatchIndex(src, -1)
	if len(matches) == 0 {
		return src, nil
	}

	nodes := make([]textNode, len(matches))
	offsets := make([]int, len(matches))
	var full strings.Builder
	for i, m := range matches {
		nodes[i] = textNode{start: m[0], end: m[1], tstart: m[2], tend: m[3]}
		offsets[i] = full.Len()
		full.WriteString(src[m[2]:m[3]])
	}
	text := full.String()

	spans, err := findPlaceholders(partName, text, fields)
	if err != nil {
		return "", err
	}
	if len(spans) == 0 {
		return src, nil
	}

	var out strings.Builder
	last, si := 0, 0
	for k, n := range nodes {
		a := offsets[k]
		b := a + (n.tend - n.tstart)

		var sb strings.Builder
		changed := false
		for p := a; p < b; {
			for si < len(spans) && spans[si].to <= p {
				si++
			}
			if si < len(spans) && spans[si].from <= p {
				if spans[si].from == p {
					sb.WriteString(spans[si].value)
				}
				changed = true
				p = min(spans[si].to, b)
				continue
			}
			next := b
			if si < len(spans) && spans[si].from < b {
				next = spans[si].from
			}
			sb.WriteString(text[p:next])
			p = next
		}

		out.WriteString(src[last:n.start])
		tag := src[n.start:n.tstart]
		if changed && !strings.Contains(tag, "xml:space") {
			tag = strings.Replace(tag, "<w:t", `<w:t xml:space="preserve"`, 1)
		}
		out.WriteString(tag)
		out.WriteString(sb.String())
		out.WriteString(src[n.tend:n.end])
		last = n.end
	}
	out.WriteString(src[last:])
	return out.String(), nil
}

func findPlaceholders(partName, text string, fields map[string]string) ([]span, error) {
	var spans []span
	for pos := 0; ; {
		i := strings.Index(text[pos:], "{{")
		if i < 0 {
			return spans, nil
		}
		i += pos
		j := strings.Index(text[i+2:], "}}")
		if j < 0 {
			return nil, &PlaceholderError{Part: partName, Placeholder: snippet(text[i:]), Reason: "unterminated"}
		}
		j += i + 2

		raw := text[i : j+2]
		key := strings.TrimSpace(text[i+2 : j])
		if !identRe.MatchString(key) {
			return nil, &PlaceholderError{Part: partName, Placeholder: snippet(raw), Reason: "malformed"}
		}
		value, ok := fields[key]
		if !ok {
			return nil, &PlaceholderError{Part: partName, Placeholder: key, Reason: "unknown"}
		}
		spans = append(spans, span{from: i, to: j + 2, value: escape(value)})
		pos = j + 2
	}
}

func snippet(s string) string {
	const limit = 40
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
