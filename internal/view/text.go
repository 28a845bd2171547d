// Package view draws page fragments as terminal text.
package view

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/net/html"
)

var headingStyle = lipgloss.NewStyle().Bold(true)

type block struct {
	text  string
	tight bool // list item or table row, no blank line before a tight sibling
}

type textWriter struct {
	blocks []block
	line   strings.Builder
	prefix string
	tight  bool
}

// Text flattens fragment HTML to plain text: one paragraph per block
// element, bullets for list items and "[alt]" for images. Wrapping is left to
// the caller.
func Text(fragmentHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragmentHTML))
	if err != nil {
		return ""
	}
	w := &textWriter{}
	w.walk(doc.Find("body"))
	w.flush()

	var b strings.Builder
	for i, bl := range w.blocks {
		if i > 0 {
			if bl.tight && w.blocks[i-1].tight {
				b.WriteString("\n")
			} else {
				b.WriteString("\n\n")
			}
		}
		b.WriteString(bl.text)
	}
	return b.String()
}

func (w *textWriter) flush() {
	s := strings.Join(strings.Fields(w.line.String()), " ")
	w.line.Reset()
	if s != "" {
		w.add(w.prefix + s)
	}
}

func (w *textWriter) add(s string) {
	w.blocks = append(w.blocks, block{text: s, tight: w.tight})
}

func (w *textWriter) walk(sel *goquery.Selection) {
	sel.Contents().Each(func(_ int, s *goquery.Selection) {
		n := s.Get(0)
		switch n.Type {
		case html.TextNode:
			w.line.WriteString(n.Data)
			return
		case html.ElementNode:
		default:
			return
		}

		switch name := goquery.NodeName(s); name {
		case "script", "style":
		case "br":
			w.flush()
		case "hr":
			w.flush()
			w.add("* * *")
		case "img":
			w.flush()
			w.add("[" + s.AttrOr("alt", "image") + "]")
		case "pre":
			w.flush()
			w.add(strings.TrimRight(s.Text(), "\n"))
		case "h1", "h2", "h3", "h4", "h5", "h6":
			w.flush()
			start := len(w.blocks)
			w.walk(s)
			w.flush()
			for i := start; i < len(w.blocks); i++ {
				w.blocks[i].text = headingStyle.Render(w.blocks[i].text)
			}
		case "li", "tr":
			w.flush()
			prefix, tight := w.prefix, w.tight
			if name == "li" {
				w.prefix = strings.ReplaceAll(w.prefix, "• ", "  ") + "• "
			}
			w.tight = true
			w.walk(s)
			w.flush()
			w.prefix, w.tight = prefix, tight
		case "blockquote":
			w.flush()
			prefix := w.prefix
			w.prefix += "│ "
			w.walk(s)
			w.flush()
			w.prefix = prefix
		case "td", "th":
			w.walk(s)
			w.line.WriteString("  ")
		case "span":
			if s.HasClass("toc-page-num") {
				w.line.WriteString(" · ")
			}
			w.walk(s)
		case "p", "div", "ul", "ol", "table", "figure", "section":
			w.flush()
			w.walk(s)
			w.flush()
		default:
			w.walk(s)
		}
	})
}
