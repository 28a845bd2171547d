package format

import (
	"strings"
	"testing"
	"time"

	"github.com/metcalfc/commonplace/internal/book"
)

func TestMarkdownFrontMatter(t *testing.T) {
	content := `---
title: On Habit
author: William James
bio: Philosopher.
abstract: Plasticity of the nervous system.
kind: essay
date: 1890-03-04
---
# Habit

When we look at living creatures from an outward point of view...
`
	doc, err := (&MarkdownFormat{}).Parse("habit.md", []byte(content))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if doc.Title != "On Habit" {
		t.Errorf("title = %q", doc.Title)
	}
	if doc.AuthorName != "William James" || doc.AuthorBio != "Philosopher." {
		t.Errorf("author = %q / %q", doc.AuthorName, doc.AuthorBio)
	}
	if doc.Kind != book.WorkEssay {
		t.Errorf("kind = %q", doc.Kind)
	}
	if doc.Abstract != "Plasticity of the nervous system." {
		t.Errorf("abstract = %q", doc.Abstract)
	}
	want := time.Date(1890, time.March, 4, 0, 0, 0, 0, time.UTC)
	if doc.PublicationDate == nil || !doc.PublicationDate.Equal(want) {
		t.Errorf("date = %v", doc.PublicationDate)
	}
	if !strings.HasPrefix(doc.BodyMarkdown, "# Habit\n") {
		t.Errorf("front matter left in body: %q", doc.BodyMarkdown)
	}
}

func TestMarkdownTitleFallback(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		content  string
		expected string
	}{
		{"first heading", "notes.md", "intro\n\n# Letters to a Friend\n\n## Part", "Letters to a Friend"},
		{"file name", "field-notes.md", "no heading here\n\n## only h2", "field-notes"},
		{"empty front matter", "x.md", "---\n---\n# Heading", "Heading"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := (&MarkdownFormat{}).Parse(tt.file, []byte(tt.content))
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if doc.Title != tt.expected {
				t.Errorf("title = %q, want %q", doc.Title, tt.expected)
			}
		})
	}
}

func TestMarkdownWithoutFrontMatter(t *testing.T) {
	content := "Just text.\n\n---\n\nAfter a rule."
	doc, err := (&MarkdownFormat{}).Parse("plain.md", []byte(content))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if doc.BodyMarkdown != content {
		t.Errorf("body changed: %q", doc.BodyMarkdown)
	}
}

func TestMarkdownBadFrontMatter(t *testing.T) {
	tests := map[string]string{
		"bad yaml": "---\ntitle: [unclosed\n---\nbody",
		"bad date": "---\ndate: March 4th\n---\nbody",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := (&MarkdownFormat{}).Parse("x.md", []byte(content)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestMarkdownPaginates(t *testing.T) {
	content := "---\ntitle: T\n---\n" + strings.Repeat("A paragraph of text.\n\n", 100)
	doc, err := (&MarkdownFormat{}).Parse("t.md", []byte(content))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	pages := book.PaginateWork(doc, 200)
	if len(pages) < 10 {
		t.Errorf("expected at least 10 pages, got %d", len(pages))
	}
}
