package format

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/metcalfc/commonplace/internal/book"
	"gopkg.in/yaml.v3"
)

// MarkdownFormat implements Format for Markdown files with optional YAML
// front matter.
type MarkdownFormat struct{}

func init() {
	Register(&MarkdownFormat{})
}

func (f *MarkdownFormat) Name() string         { return "Markdown" }
func (f *MarkdownFormat) Extensions() []string { return []string{".md", ".markdown"} }

type frontMatter struct {
	Title    string `yaml:"title"`
	Author   string `yaml:"author"`
	Bio      string `yaml:"bio"`
	Abstract string `yaml:"abstract"`
	Kind     string `yaml:"kind"`
	Date     string `yaml:"date"`
}

// titleRegex matches a level one heading.
var titleRegex = regexp.MustCompile(`(?m)^#\s+(.+)$`)

func (f *MarkdownFormat) Parse(name string, data []byte) (book.Document, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	header, body, ok := splitFrontMatter(text)

	var fm frontMatter
	if ok {
		if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
			return book.Document{}, fmt.Errorf("front matter in %s: %w", name, err)
		}
	}

	doc := book.Document{
		Title:        strings.TrimSpace(fm.Title),
		AuthorName:   strings.TrimSpace(fm.Author),
		AuthorBio:    strings.TrimSpace(fm.Bio),
		Abstract:     strings.TrimSpace(fm.Abstract),
		Kind:         book.WorkKind(strings.TrimSpace(fm.Kind)),
		BodyMarkdown: body,
	}
	if fm.Date != "" {
		date, err := time.Parse(time.DateOnly, strings.TrimSpace(fm.Date))
		if err != nil {
			return book.Document{}, fmt.Errorf("front matter date in %s: %w", name, err)
		}
		doc.PublicationDate = &date
	}
	if doc.Title == "" {
		if m := titleRegex.FindStringSubmatch(body); m != nil {
			doc.Title = strings.TrimSpace(m[1])
		} else {
			doc.Title = baseName(name)
		}
	}
	return doc, nil
}

// splitFrontMatter separates a leading block fenced by "---" lines.
func splitFrontMatter(text string) (header, body string, ok bool) {
	if !strings.HasPrefix(text, "---\n") {
		return "", text, false
	}
	rest := text[len("---\n"):]
	if strings.HasPrefix(rest, "---\n") {
		return "", rest[len("---\n"):], true
	}
	for _, fence := range []string{"\n---\n", "\n...\n"} {
		if i := strings.Index(rest, fence); i >= 0 {
			return rest[:i], rest[i+len(fence):], true
		}
	}
	for _, fence := range []string{"\n---", "\n..."} {
		if strings.HasSuffix(rest, fence) {
			return strings.TrimSuffix(rest, fence), "", true
		}
	}
	return "", text, false
}
