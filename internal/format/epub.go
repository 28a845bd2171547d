package format

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/metcalfc/commonplace/internal/book"
	"github.com/taylorskalyo/goreader/epub"
	"golang.org/x/net/html"
)

// EPUBFormat implements Format for EPUB files.
type EPUBFormat struct{}

func init() {
	Register(&EPUBFormat{})
}

func (f *EPUBFormat) Name() string         { return "EPUB" }
func (f *EPUBFormat) Extensions() []string { return []string{".epub"} }

// Parse converts every spine document to markdown, in reading order. A spine
// document that does not open with a heading gets its table of contents
// label as one, so the outline can find it.
func (f *EPUBFormat) Parse(name string, data []byte) (book.Document, error) {
	rc, err := epub.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return book.Document{}, fmt.Errorf("failed to open epub: %w", err)
	}
	if len(rc.Rootfiles) == 0 {
		return book.Document{}, fmt.Errorf("no rootfiles found in epub")
	}

	pkg := rc.Rootfiles[0]
	titles := chapterTitles(data, pkg)

	var sections []string
	for _, ref := range pkg.Spine.Itemrefs {
		if ref.Item == nil {
			continue
		}
		r, err := ref.Item.Open()
		if err != nil {
			continue
		}
		raw, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			continue
		}

		md := strings.TrimSpace(spineMarkdown(string(raw)))
		if md == "" {
			continue
		}
		if t := titles.lookup(ref.Item.HREF); t != "" && !strings.HasPrefix(md, "#") {
			md = "# " + t + "\n\n" + md
		}
		sections = append(sections, md)
	}

	doc := book.Document{
		Title:        strings.TrimSpace(pkg.Metadata.Title),
		AuthorName:   strings.TrimSpace(pkg.Metadata.Creator),
		BodyMarkdown: strings.Join(sections, "\n\n"),
	}
	if doc.Title == "" {
		doc.Title = baseName(name)
	}
	return doc, nil
}

// spineMarkdown converts one XHTML document, falling back to its bare text
// when the converter rejects it.
func spineMarkdown(s string) string {
	md, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		return extractTextFromHTML(s)
	}
	return md
}

func extractTextFromHTML(s string) string {
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return ""
	}

	var out strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "head") {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				out.WriteString(t)
				out.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.TrimSpace(out.String())
}
