package book

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// DefaultMaxCharsPerPage is the page capacity used when none is configured.
const DefaultMaxCharsPerPage = 1000

// Renderer converts page markdown to HTML. Raw HTML in the source is
// omitted, so the output is safe to embed.
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer returns a Renderer with GitHub-flavoured tables and strikethrough.
func NewRenderer() *Renderer {
	return &Renderer{
		md: goldmark.New(goldmark.WithExtensions(extension.Table, extension.Strikethrough)),
	}
}

var defaultRenderer = NewRenderer()

// Render converts one page of markdown. Each call is independent, so a list
// broken across two pages renders as two lists.
func (r *Renderer) Render(markdown string) string {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return "<p>" + html.EscapeString(markdown) + "</p>"
	}
	return buf.String()
}

// SplitChunks splits markdown into chunks: maximal runs of non-blank lines.
// Any number of blank lines separates two chunks.
func SplitChunks(markdown string) []string {
	markdown = strings.ReplaceAll(markdown, "\r\n", "\n")

	var chunks []string
	var lines []string
	flush := func() {
		if len(lines) > 0 {
			chunks = append(chunks, strings.Join(lines, "\n"))
			lines = nil
		}
	}
	for _, line := range strings.Split(markdown, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		lines = append(lines, line)
	}
	flush()
	return chunks
}

// PackChunks groups chunks greedily into pages of at most maxChars
// characters, counting the blank lines that join them. A chunk is never
// split; one longer than maxChars gets a page of its own.
func PackChunks(chunks []string, maxChars int) [][]string {
	var pages [][]string
	var page []string
	size := 0
	for _, c := range chunks {
		n := utf8.RuneCountInString(c)
		if len(page) > 0 {
			// The page is rendered with a blank line between chunks.
			n += len(chunkSeparator)
			if size+n > maxChars {
				pages = append(pages, page)
				page, size = nil, 0
				n = utf8.RuneCountInString(c)
			}
		}
		page = append(page, c)
		size += n
	}
	if len(page) > 0 {
		pages = append(pages, page)
	}
	return pages
}

// PaginateWork converts one document into pages. An image manifest wins over
// the markdown body. A document with neither yields no pages.
func PaginateWork(doc Document, maxCharsPerPage int) []PageFragment {
	return defaultRenderer.PaginateWork(doc, maxCharsPerPage)
}

// PaginateWork is PaginateWork using r to render markdown.
func (r *Renderer) PaginateWork(doc Document, maxCharsPerPage int) []PageFragment {
	if doc.HasImages() {
		return imagePages(doc)
	}
	if doc.BodyMarkdown == "" {
		return nil
	}

	var frags []PageFragment
	for i, chunks := range PackChunks(SplitChunks(doc.BodyMarkdown), maxCharsPerPage) {
		frags = append(frags, PageFragment{
			Ordinal:         i,
			Kind:            KindContent,
			HTML:            r.Render(joinChunks(chunks)),
			SourceWorkTitle: doc.Title,
			Chunks:          chunks,
		})
	}
	return frags
}

func imagePages(doc Document) []PageFragment {
	m := doc.ImageManifest
	frags := make([]PageFragment, 0, len(m.Pages))
	for i, p := range m.Pages {
		frags = append(frags, PageFragment{
			Ordinal: i,
			Kind:    KindImage,
			HTML:    imageHTML(p, m.PageWidth, m.PageHeight),
			Image: &ImageRef{
				PageNumber: p.Number,
				Source:     p.Source,
				Width:      m.PageWidth,
				Height:     m.PageHeight,
			},
			SourceWorkTitle: doc.Title,
		})
	}
	return frags
}

func imageHTML(p ImagePage, width, height int) string {
	size := ""
	if width > 0 && height > 0 {
		size = fmt.Sprintf(` width="%d" height="%d"`, width, height)
	}
	return fmt.Sprintf(`<figure class="page-image"><img src="%s" alt="Page %d"%s></figure>`,
		html.EscapeString(p.Source), p.Number, size)
}

const chunkSeparator = "\n\n"

func joinChunks(chunks []string) string {
	return strings.Join(chunks, chunkSeparator)
}
