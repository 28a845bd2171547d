package book

import (
	"regexp"
	"strings"
)

// Heading is a markdown heading of level 1 to 3.
type Heading struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Level int    `json:"level"`
	Index int    `json:"index"`
}

// OutlineEntry points a heading at the page it appears on.
type OutlineEntry struct {
	Heading
	Ordinal int `json:"ordinal"`
}

var (
	headingRegex = regexp.MustCompile(`(?m)^(#{1,3})\s+(.+)$`)
	slugRegex    = regexp.MustCompile(`[^a-z0-9]+`)
)

// Headings lists the level 1-3 headings of markdown in document order.
func Headings(markdown string) []Heading {
	var out []Heading
	for i, m := range headingRegex.FindAllStringSubmatch(markdown, -1) {
		text := strings.TrimSpace(m[2])
		out = append(out, Heading{
			ID:    Slug(text),
			Text:  text,
			Level: len(m[1]),
			Index: i,
		})
	}
	return out
}

// Slug lower-cases text and replaces runs of anything but [a-z0-9] with "-".
func Slug(text string) string {
	return slugRegex.ReplaceAllString(strings.ToLower(text), "-")
}

// Outline finds the headings of every content page and records which page
// each one is on. Index counts headings across the whole sequence.
func Outline(frags []PageFragment) []OutlineEntry {
	var out []OutlineEntry
	for _, f := range frags {
		if f.Kind != KindContent {
			continue
		}
		for _, h := range Headings(f.Markdown()) {
			h.Index = len(out)
			out = append(out, OutlineEntry{Heading: h, Ordinal: f.Ordinal})
		}
	}
	return out
}
