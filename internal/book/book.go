// Package book turns published works into bounded, renderable pages.
//
// Pagination is deliberately measured in characters, not rendered height, so
// the same document always produces the same pages regardless of fonts.
package book

import (
	"strings"
	"time"
)

// WorkKind tags what sort of work a document is.
type WorkKind string

const (
	WorkEssay              WorkKind = "essay"
	WorkNote               WorkKind = "note"
	WorkLecture            WorkKind = "lecture"
	WorkFragmentCollection WorkKind = "fragment_collection"
	WorkReviewArticle      WorkKind = "review_article"
)

// Label returns the kind as display text ("fragment collection").
func (k WorkKind) Label() string {
	return strings.ReplaceAll(string(k), "_", " ")
}

// ImagePage is one scanned page in an image manifest.
type ImagePage struct {
	Number int    `json:"n" yaml:"n"`
	Source string `json:"src" yaml:"src"`
}

// ImageManifest describes a work delivered as page images.
type ImageManifest struct {
	PageWidth  int         `json:"pageWidth" yaml:"pageWidth"`
	PageHeight int         `json:"pageHeight" yaml:"pageHeight"`
	Pages      []ImagePage `json:"pages" yaml:"pages"`
}

// Document is one published work as handed over by the document store.
// It is treated as immutable input.
type Document struct {
	Title           string
	AuthorName      string
	AuthorBio       string
	BodyMarkdown    string
	ImageManifest   *ImageManifest
	Abstract        string
	Kind            WorkKind
	PublicationDate *time.Time
}

// HasImages reports whether the document is driven by its image manifest.
func (d Document) HasImages() bool {
	return d.ImageManifest != nil && len(d.ImageManifest.Pages) > 0
}

// Kind identifies the role of a page fragment.
type Kind string

const (
	KindCover    Kind = "cover"
	KindTOC      Kind = "table-of-contents"
	KindBio      Kind = "bio"
	KindWorkHead Kind = "work-title"
	KindContent  Kind = "content"
	KindBack     Kind = "back-cover"
	KindImage    Kind = "image"
	KindBlank    Kind = "blank-filler"
)

// ImageRef is the payload of an image fragment.
type ImageRef struct {
	PageNumber int    `json:"pageNumber"`
	Source     string `json:"src"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
}

// PageFragment is one page of a paginated sequence.
type PageFragment struct {
	Ordinal         int       `json:"ordinal"`
	Kind            Kind      `json:"kind"`
	HTML            string    `json:"html"`
	Image           *ImageRef `json:"image,omitempty"`
	SourceWorkTitle string    `json:"sourceWorkTitle,omitempty"`

	// Contents is set on table-of-contents pages.
	Contents []ContentsLine `json:"contents,omitempty"`

	// Chunks holds the markdown chunks a content page was built from.
	Chunks []string `json:"-"`
}

// Markdown returns the markdown a content fragment was rendered from.
func (f PageFragment) Markdown() string {
	return joinChunks(f.Chunks)
}

// SpreadCount is the number of views needed to show n fragments, perView at a time.
func SpreadCount(n, perView int) int {
	if n <= 0 || perView <= 0 {
		return 0
	}
	return (n + perView - 1) / perView
}

func renumber(frags []PageFragment) {
	for i := range frags {
		frags[i].Ordinal = i
	}
}
