package format

import (
	"encoding/json"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/metcalfc/commonplace/internal/book"
	"gopkg.in/yaml.v3"
)

// ManifestFormat implements Format for image manifests: a work delivered as
// scanned page images.
type ManifestFormat struct{}

func init() {
	Register(&ManifestFormat{})
}

func (f *ManifestFormat) Name() string         { return "Image manifest" }
func (f *ManifestFormat) Extensions() []string { return []string{".json", ".yaml", ".yml"} }

type manifestFile struct {
	Title              string `json:"title" yaml:"title"`
	Author             string `json:"author" yaml:"author"`
	book.ImageManifest `yaml:",inline"`
}

// Parse reads a manifest. Relative image paths are resolved against the
// manifest's directory.
func (f *ManifestFormat) Parse(name string, data []byte) (book.Document, error) {
	var m manifestFile
	var err error
	if strings.EqualFold(filepath.Ext(name), ".json") {
		err = json.Unmarshal(data, &m)
	} else {
		err = yaml.Unmarshal(data, &m)
	}
	if err != nil {
		return book.Document{}, fmt.Errorf("image manifest %s: %w", name, err)
	}

	manifest := m.ImageManifest
	dir := filepath.Dir(name)
	for i, p := range manifest.Pages {
		manifest.Pages[i].Source = resolveSource(dir, p.Source)
	}

	doc := book.Document{
		Title:         strings.TrimSpace(m.Title),
		AuthorName:    strings.TrimSpace(m.Author),
		ImageManifest: &manifest,
	}
	if doc.Title == "" {
		doc.Title = baseName(name)
	}
	return doc, nil
}

func resolveSource(dir, src string) string {
	if src == "" || filepath.IsAbs(src) {
		return src
	}
	if u, err := url.Parse(src); err == nil && u.Scheme != "" {
		return src
	}
	return filepath.Join(dir, src)
}
