// Package format loads local files as documents for the reader.
package format

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/metcalfc/commonplace/internal/book"
)

// Format turns the bytes of one file type into a document.
type Format interface {
	Name() string
	Extensions() []string
	Parse(name string, data []byte) (book.Document, error)
}

var registry []Format

// Register adds a format to the registry.
func Register(f Format) {
	registry = append(registry, f)
}

// Lookup returns the registered format for filename's extension.
func Lookup(filename string) (Format, bool) {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, f := range registry {
		for _, e := range f.Extensions() {
			if ext == e {
				return f, true
			}
		}
	}
	return nil, false
}

// Load reads a file with its registered format, or as plain markdown text
// when no format claims the extension.
func Load(filename string) (book.Document, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return book.Document{}, err
	}
	return Parse(filename, data)
}

// Parse is Load for data already in memory; name selects the format.
func Parse(name string, data []byte) (book.Document, error) {
	if f, ok := Lookup(name); ok {
		return f.Parse(name, data)
	}
	return book.Document{Title: baseName(name), BodyMarkdown: string(data)}, nil
}

// SupportedFormats returns registered format names with their extensions.
func SupportedFormats() []string {
	var out []string
	for _, f := range registry {
		out = append(out, f.Name()+" ("+strings.Join(f.Extensions(), ", ")+")")
	}
	return out
}

func baseName(name string) string {
	if name == "" || name == "-" {
		return "Untitled"
	}
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
