package richtext

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Li: true, atom.Tr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Pre: true, atom.Blockquote: true, atom.Table: true, atom.Ul: true, atom.Ol: true,
}

// HTMLToText extracts the visible text from an HTML fragment or document.
// Runs of whitespace collapse to one space outside <pre>; block elements and
// <br> produce line breaks.
func HTMLToText(data []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	var walk func(n *html.Node, pre bool)
	walk = func(n *html.Node, pre bool) {
		switch n.Type {
		case html.TextNode:
			if pre {
				b.WriteString(n.Data)
				return
			}
			text := strings.Join(strings.Fields(n.Data), " ")
			if text == "" {
				if strings.TrimSpace(n.Data) == "" && len(n.Data) > 0 && needsSpace(&b) {
					b.WriteByte(' ')
				}
				return
			}
			if startsWithSpace(n.Data) && needsSpace(&b) {
				b.WriteByte(' ')
			}
			b.WriteString(text)
			if endsWithSpace(n.Data) {
				b.WriteByte(' ')
			}
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Head, atom.Title:
				return
			case atom.Br:
				trimTrailingSpace(&b)
				b.WriteByte('\n')
				return
			}
		}

		block := n.Type == html.ElementNode && blockElements[n.DataAtom]
		if block {
			newline(&b)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, pre || n.DataAtom == atom.Pre)
		}
		if block {
			newline(&b)
		}
	}
	walk(doc, false)

	return strings.TrimSpace(b.String()), nil
}

func needsSpace(b *strings.Builder) bool {
	s := b.String()
	return s != "" && !strings.HasSuffix(s, " ") && !strings.HasSuffix(s, "\n")
}

func startsWithSpace(s string) bool {
	return s != "" && strings.TrimLeft(s[:1], " \t\r\n") == ""
}

func endsWithSpace(s string) bool {
	return s != "" && strings.TrimRight(s[len(s)-1:], " \t\r\n") == ""
}

func trimTrailingSpace(b *strings.Builder) {
	s := b.String()
	trimmed := strings.TrimRight(s, " ")
	if len(trimmed) != len(s) {
		b.Reset()
		b.WriteString(trimmed)
	}
}

func newline(b *strings.Builder) {
	trimTrailingSpace(b)
	s := b.String()
	if s != "" && !strings.HasSuffix(s, "\n") {
		b.WriteByte('\n')
	}
}

// TextToHTML wraps text in a minimal HTML fragment, one line per <br>
func TextToHTML(text string) []byte {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = html.EscapeString(l)
	}
	return []byte(`<meta charset="utf-8"><div>` + strings.Join(lines, "<br>") + `</div>`)
}

// HTMLToRTF converts an HTML fragment into an RTF document through its text
func HTMLToRTF(data []byte) ([]byte, string, error) {
	text, err := HTMLToText(data)
	if err != nil {
		return nil, "", err
	}
	return TextToRTF(text), text, nil
}
