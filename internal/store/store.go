// Package store reads authors and published works from the document store:
// Supabase's REST API, with a Directus instance as the fallback backend.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/metcalfc/commonplace/internal/book"
)

var ErrNotFound = errors.New("not found")

// Store is the read side of the document store.
type Store interface {
	// Authors lists public-domain authors.
	Authors(ctx context.Context) ([]Person, error)
	AuthorBySlug(ctx context.Context, slug string) (Person, error)
	// WorksByAuthor lists an author's published, public works.
	WorksByAuthor(ctx context.Context, authorID string) ([]Work, error)
	WorkBySlug(ctx context.Context, slug string) (Work, error)
}

type Person struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	Kind         string `json:"kind,omitempty"`
	Bio          string `json:"bio,omitempty"`
	PublicDomain bool   `json:"public_domain"`
}

type Work struct {
	ID               string              `json:"id"`
	Type             string              `json:"type,omitempty"`
	Title            string              `json:"title"`
	Slug             string              `json:"slug"`
	Abstract         string              `json:"abstract,omitempty"`
	ContentMD        string              `json:"content_md,omitempty"`
	Status           string              `json:"status,omitempty"`
	Visibility       string              `json:"visibility,omitempty"`
	PrimaryAuthorID  string              `json:"primary_author_id,omitempty"`
	CoverImage       string              `json:"cover_image,omitempty"`
	FlipbookMode     string              `json:"flipbook_mode,omitempty"`
	FlipbookManifest *book.ImageManifest `json:"flipbook_manifest,omitempty"`
	PublishedAt      string              `json:"published_at,omitempty"`
	PublicationDate  string              `json:"publication_date,omitempty"`
}

// Date is the work's publication date, falling back to when it was
// published online. Nil when neither parses.
func (w Work) Date() *time.Time {
	for _, s := range []string{w.PublicationDate, w.PublishedAt} {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		for _, layout := range []string{time.DateOnly, time.RFC3339, "2006-01-02T15:04:05"} {
			if t, err := time.Parse(layout, s); err == nil {
				return &t
			}
		}
	}
	return nil
}

// Document converts the record into the paginator's input.
func (w Work) Document(author Person) book.Document {
	doc := book.Document{
		Title:           w.Title,
		AuthorName:      author.Name,
		AuthorBio:       author.Bio,
		BodyMarkdown:    w.ContentMD,
		Abstract:        w.Abstract,
		Kind:            book.WorkKind(w.Type),
		PublicationDate: w.Date(),
	}
	if w.FlipbookManifest != nil && len(w.FlipbookManifest.Pages) > 0 {
		m := *w.FlipbookManifest
		doc.ImageManifest = &m
	}
	return doc
}

// Library loads an author and their works as one entry of a commonplace
// book. The works are returned too, for callers that need their slugs.
func Library(ctx context.Context, s Store, authorSlug string) (book.Entry, []Work, error) {
	author, err := s.AuthorBySlug(ctx, authorSlug)
	if err != nil {
		return book.Entry{}, nil, err
	}
	works, err := s.WorksByAuthor(ctx, author.ID)
	if err != nil {
		return book.Entry{}, nil, err
	}

	entry := book.Entry{Author: book.Author{Name: author.Name, Bio: author.Bio}}
	for _, w := range works {
		entry.Documents = append(entry.Documents, w.Document(author))
	}
	return entry, works, nil
}
