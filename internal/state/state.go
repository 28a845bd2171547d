// Package state remembers where each book was left open.
package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	appName   = "commonplace"
	fileName  = "bookmarks.json"
	version   = 1
	sniffSize = 8192
)

// Bookmark is the page a book was left open at.
type Bookmark struct {
	Ordinal   int       `json:"ordinal"`
	Title     string    `json:"title,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type document struct {
	Version int                 `json:"version"`
	Books   map[string]Bookmark `json:"books"`
}

// Bookmarks is a JSON file of bookmarks keyed by book identity.
type Bookmarks struct {
	mu    sync.RWMutex
	path  string
	books map[string]Bookmark
	now   func() time.Time
}

// OpenDefault opens the bookmarks under $XDG_STATE_HOME/commonplace, or
// ~/.local/state/commonplace when that is unset.
func OpenDefault() (*Bookmarks, error) {
	dir, err := defaultDir()
	if err != nil {
		return nil, err
	}
	return Open(dir)
}

// Open loads the bookmarks kept in dir, creating the directory if needed.
// An unreadable or corrupt file starts an empty set that overwrites it on
// the next write.
func Open(dir string) (*Bookmarks, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	b := &Bookmarks{
		path:  filepath.Join(dir, fileName),
		books: map[string]Bookmark{},
		now:   time.Now,
	}
	if err := b.load(); err != nil {
		b.books = map[string]Bookmark{}
	}
	return b, nil
}

func defaultDir() (string, error) {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate state dir: %w", err)
	}
	return filepath.Join(home, ".local", "state", appName), nil
}

// FileKey identifies a local file by the hash of its first 8KB, so a moved
// or renamed copy keeps its bookmark.
func FileKey(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, sniffSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}
	return digest(buf[:n]), nil
}

// LibraryKey identifies a book assembled from the document store by the
// slugs it was built from. Adding or removing a work changes the key.
func LibraryKey(slugs ...string) string {
	return digest([]byte(strings.Join(slugs, "\x00")))
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:16])
}

// Get returns the bookmark saved under key.
func (b *Bookmarks) Get(key string) (Bookmark, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	bm, ok := b.books[key]
	return bm, ok
}

// Put saves the page a book is open at.
func (b *Bookmarks) Put(key string, ordinal int, title string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.books[key] = Bookmark{Ordinal: ordinal, Title: title, UpdatedAt: b.now().UTC()}
	return b.save()
}

// Forget drops the bookmark saved under key.
func (b *Bookmarks) Forget(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.books[key]; !ok {
		return nil
	}
	delete(b.books, key)
	return b.save()
}

func (b *Bookmarks) load() error {
	data, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc.Version != version {
		return fmt.Errorf("bookmarks version %d", doc.Version)
	}
	if doc.Books != nil {
		b.books = doc.Books
	}
	return nil
}

// save writes through a temporary file so a crash never leaves a torn file.
func (b *Bookmarks) save() error {
	data, err := json.MarshalIndent(document{Version: version, Books: b.books}, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(b.path), fileName+".*")
	if err != nil {
		return fmt.Errorf("write bookmarks: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write bookmarks: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write bookmarks: %w", err)
	}
	return os.Rename(tmp.Name(), b.path)
}
