package book

import (
	"html/template"
	"strings"
	"time"
)

// Author is the person a commonplace book belongs to.
type Author struct {
	Name string
	Bio  string
}

// DisplayName is the name printed large on the cover: the surname, or the
// whole name when it is a single word.
func (a Author) DisplayName() string {
	parts := strings.Fields(a.Name)
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

// Entry is one author together with the works to bind into their book.
type Entry struct {
	Author    Author
	Documents []Document
}

// Options controls book assembly.
type Options struct {
	MaxCharsPerPage int
	// PagesPerView is 2 for a two-page spread, which pads the book to an
	// even number of pages.
	PagesPerView int
}

func (o Options) maxChars() int {
	if o.MaxCharsPerPage > 0 {
		return o.MaxCharsPerPage
	}
	return DefaultMaxCharsPerPage
}

// ContentsLine is one line of a table of contents.
type ContentsLine struct {
	Title   string `json:"title"`
	Ordinal int    `json:"ordinal"`
}

// Page is the 1-based page number printed in the contents.
func (l ContentsLine) Page() int { return l.Ordinal + 1 }

// JournalDate formats a publication date the way it is printed above each
// entry. A nil date prints nothing.
func JournalDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format("Monday, January 2, 2006")
}

var (
	coverTmpl = template.Must(template.New("cover").Parse(
		`<div class="cover-page"><h1>{{.DisplayName}}</h1><p class="subtitle">Commonplace Book</p><div class="author-full">{{.Name}}</div></div>`))
	tocTmpl = template.Must(template.New("toc").Parse(
		`<div class="toc-page"><h2>Contents</h2><ul class="toc-list">{{range .}}<li><span class="toc-title">{{.Title}}</span><span class="toc-page-num">{{.Page}}</span></li>{{end}}</ul></div>`))
	bioTmpl = template.Must(template.New("bio").Parse(
		`<div class="bio-page"><h2>About the Author</h2><p>{{.Bio}}</p></div>`))
	workTmpl = template.Must(template.New("work").Parse(
		`<div class="work-title-page">{{with .Date}}<div class="work-date">{{.}}</div>{{end}}<h2>{{.Title}}</h2>{{with .Kind}}<p class="work-type">{{.}}</p>{{end}}{{with .Abstract}}<p class="work-abstract">{{.}}</p>{{end}}</div>`))
	contentTmpl = template.Must(template.New("content").Parse(
		`<div class="content-page">{{with .Date}}<div class="page-date-header">{{.}}</div>{{end}}{{.Body}}</div>`))
)

const (
	backCoverHTML = `<div class="back-cover"><p class="finis">Finis</p></div>`
	blankHTML     = `<div class="blank-page"></div>`
)

// AssembleBook binds entries into one sequence: for each entry a cover, a
// table of contents and an optional biography, then every document as a
// title page followed by its own pages; a single back cover closes the
// book. With two pages per view an odd-length book gets one blank page.
func AssembleBook(entries []Entry, opts Options) []PageFragment {
	return defaultRenderer.AssembleBook(entries, opts)
}

// AssembleBook is AssembleBook using r to render markdown.
func (r *Renderer) AssembleBook(entries []Entry, opts Options) []PageFragment {
	var frags []PageFragment
	for _, e := range entries {
		frags = append(frags, PageFragment{Kind: KindCover, HTML: execute(coverTmpl, e.Author)})

		// The contents can only be written once the works are laid out.
		tocAt := len(frags)
		frags = append(frags, PageFragment{Kind: KindTOC})

		if strings.TrimSpace(e.Author.Bio) != "" {
			frags = append(frags, PageFragment{Kind: KindBio, HTML: execute(bioTmpl, e.Author)})
		}

		var lines []ContentsLine
		for _, doc := range e.Documents {
			lines = append(lines, ContentsLine{Title: doc.Title, Ordinal: len(frags)})
			frags = append(frags, workTitlePage(doc))

			date := JournalDate(doc.PublicationDate)
			for _, p := range r.PaginateWork(doc, opts.maxChars()) {
				if p.Kind == KindContent {
					p.HTML = execute(contentTmpl, struct {
						Date string
						Body template.HTML
					}{date, template.HTML(p.HTML)})
				}
				frags = append(frags, p)
			}
		}
		frags[tocAt] = PageFragment{Kind: KindTOC, HTML: execute(tocTmpl, lines), Contents: lines}
	}

	frags = append(frags, PageFragment{Kind: KindBack, HTML: backCoverHTML})
	if opts.PagesPerView == 2 && len(frags)%2 == 1 {
		frags = append(frags, PageFragment{Kind: KindBlank, HTML: blankHTML})
	}
	renumber(frags)
	return frags
}

func workTitlePage(doc Document) PageFragment {
	return PageFragment{
		Kind: KindWorkHead,
		HTML: execute(workTmpl, struct {
			Date, Title, Kind, Abstract string
		}{JournalDate(doc.PublicationDate), doc.Title, doc.Kind.Label(), doc.Abstract}),
		SourceWorkTitle: doc.Title,
	}
}

func execute(t *template.Template, data any) string {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return ""
	}
	return b.String()
}
