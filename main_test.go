//go:build !gui

package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/metcalfc/commonplace/internal/book"
	"github.com/metcalfc/commonplace/internal/logger"
	"github.com/metcalfc/commonplace/internal/reader"
	"github.com/metcalfc/commonplace/internal/state"
	"github.com/metcalfc/commonplace/internal/store"
)

type immediateTimer struct{}

func (immediateTimer) Stop() bool { return false }

// immediateClock completes every page turn as soon as it starts.
type immediateClock struct{}

func (immediateClock) AfterFunc(d time.Duration, f func()) reader.Timer {
	f()
	return immediateTimer{}
}

func testPages(n int) []book.PageFragment {
	pages := make([]book.PageFragment, n)
	for i := range pages {
		pages[i] = book.PageFragment{Ordinal: i, Kind: book.KindContent, HTML: "<p>page " + string(rune('A'+i)) + "</p>"}
	}
	return pages
}

func testModel(n int, pos positions) model {
	sess := &session{title: "Test", pages: testPages(n)}
	r := reader.New(sess.pages, reader.Options{PagesPerView: 2, Clock: immediateClock{}})
	return newModel(sess, r, pos, logger.Nop())
}

func press(m model, msg tea.KeyMsg) model {
	next, _ := m.Update(msg)
	return next.(model)
}

var (
	keyRight = tea.KeyMsg{Type: tea.KeyRight}
	keyLeft  = tea.KeyMsg{Type: tea.KeyLeft}
	keySpace = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	keyHome  = tea.KeyMsg{Type: tea.KeyHome}
	keyQuit  = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}}
)

func TestModelNavigation(t *testing.T) {
	m := testModel(6, positions{})

	m = press(m, keyRight)
	if got := m.State().CurrentIndex; got != 2 {
		t.Fatalf("after right: index %d, want 2", got)
	}
	m = press(m, keySpace)
	if got := m.State().CurrentIndex; got != 4 {
		t.Fatalf("after space: index %d, want 4", got)
	}
	m = press(m, keyRight)
	if got := m.State().CurrentIndex; got != 4 {
		t.Errorf("past the end: index %d, want 4", got)
	}
	m = press(m, keyLeft)
	if got := m.State().CurrentIndex; got != 2 {
		t.Errorf("after left: index %d, want 2", got)
	}
	m = press(m, keyHome)
	if got := m.State().CurrentIndex; got != 0 {
		t.Errorf("after home: index %d, want 0", got)
	}
}

func TestModelView(t *testing.T) {
	m := testModel(3, positions{})
	m = press(m, keyRight)
	out := m.View()
	if !strings.Contains(out, "page C") {
		t.Errorf("view missing current page:\n%s", out)
	}
	if !strings.Contains(out, "Spread 2/2") {
		t.Errorf("view missing status:\n%s", out)
	}
	if !strings.Contains(out, "quit") {
		t.Errorf("view missing help:\n%s", out)
	}

	empty := testModel(0, positions{})
	if got := empty.View(); !strings.Contains(got, "Nothing to read.") {
		t.Errorf("empty view = %q", got)
	}
}

func TestModelQuitSavesPosition(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	sess := &session{title: "William James", key: state.LibraryKey("william-james", "habit")}
	pos := openPositions(sess, logger.Nop())

	m := testModel(6, pos)
	m = press(m, keyRight)
	next, cmd := m.Update(keyQuit)
	m = next.(model)
	if !m.quitting || cmd == nil {
		t.Fatal("q should quit")
	}
	if m.View() != "" {
		t.Error("view should be empty after quitting")
	}
	if m.Advance() {
		t.Error("reader should be closed after quitting")
	}

	b, err := state.OpenDefault()
	if err != nil {
		t.Fatalf("OpenDefault: %v", err)
	}
	if got, _ := b.Get(sess.key); got.Ordinal != 2 || got.Title != "William James" {
		t.Errorf("saved bookmark = %+v, want page 2 of William James", got)
	}

	if err := pos.clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got := openPositions(sess, logger.Nop()).get(); got != 0 {
		t.Errorf("position after clear = %d, want 0", got)
	}
}

func TestPositionsWithoutKey(t *testing.T) {
	p := openPositions(&session{title: "stdin"}, logger.Nop())
	if p.get() != 0 || p.set(4) != nil || p.clear() != nil {
		t.Error("positions without a key should do nothing")
	}
}

func TestReadReaderOptions(t *testing.T) {
	cmd, _, err := newRootCmd().Find([]string{"read"})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if err := cmd.ParseFlags([]string{"--max-chars", "600", "--single", "--fresh", "--config", "c.yaml"}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	opts, err := readReaderOptions(cmd)
	if err != nil {
		t.Fatalf("readReaderOptions: %v", err)
	}
	want := readerOptions{configPath: "c.yaml", maxChars: 600, single: true, fresh: true}
	if opts != want {
		t.Errorf("opts = %+v, want %+v", opts, want)
	}

	cmd, _, _ = newRootCmd().Find([]string{"book"})
	cmd.ParseFlags([]string{"--max-chars", "-1"})
	if _, err := readReaderOptions(cmd); err == nil {
		t.Error("negative --max-chars should be rejected")
	}
}

func TestLoadConfigAppliesFlags(t *testing.T) {
	for _, name := range []string{"MAX_CHARS_PER_PAGE", "PAGES_PER_VIEW"} {
		t.Setenv(name, "")
	}
	cfg, err := readerOptions{maxChars: 300, single: true}.loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Book.MaxCharsPerPage != 300 || cfg.Book.PagesPerView != 1 {
		t.Errorf("book config = %+v", cfg.Book)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	opts := book.Options{MaxCharsPerPage: 1000, PagesPerView: 2}

	plain := filepath.Join(dir, "notes.txt")
	os.WriteFile(plain, []byte("One.\n\nTwo."), 0644)
	sess, err := loadFile(plain, opts)
	if err != nil {
		t.Fatalf("loadFile: %v", err)
	}
	if len(sess.pages) != 1 || sess.pages[0].Kind != book.KindContent {
		t.Errorf("plain text should be bare pages, got %d", len(sess.pages))
	}
	if sess.key == "" || sess.title != "notes" {
		t.Errorf("session = %+v", sess)
	}

	essay := filepath.Join(dir, "habit.md")
	os.WriteFile(essay, []byte("---\ntitle: Habit\nauthor: William James\n---\nHabit is second nature."), 0644)
	sess, err = loadFile(essay, opts)
	if err != nil {
		t.Fatalf("loadFile: %v", err)
	}
	if sess.pages[0].Kind != book.KindCover || len(sess.pages)%2 != 0 {
		t.Errorf("authored document should be bound as a book, got %d pages starting %s", len(sess.pages), sess.pages[0].Kind)
	}

	if _, err := loadFile(filepath.Join(dir, "missing.md"), opts); err == nil {
		t.Error("expected error for missing file")
	}
}

type libraryStore struct{}

func (libraryStore) Authors(ctx context.Context) ([]store.Person, error) { return nil, nil }

func (libraryStore) AuthorBySlug(ctx context.Context, slug string) (store.Person, error) {
	if slug != "william-james" {
		return store.Person{}, store.ErrNotFound
	}
	return store.Person{ID: "p1", Name: "William James", Slug: slug}, nil
}

func (libraryStore) WorksByAuthor(ctx context.Context, authorID string) ([]store.Work, error) {
	return []store.Work{{Title: "Habit", Slug: "habit", ContentMD: "Text."}}, nil
}

func (libraryStore) WorkBySlug(ctx context.Context, slug string) (store.Work, error) {
	return store.Work{}, store.ErrNotFound
}

func TestLoadLibrary(t *testing.T) {
	sess, err := loadLibrary(context.Background(), libraryStore{}, "william-james", book.Options{PagesPerView: 2})
	if err != nil {
		t.Fatalf("loadLibrary: %v", err)
	}
	if sess.title != "William James" {
		t.Errorf("title = %q", sess.title)
	}
	if sess.key != state.LibraryKey("william-james", "habit") {
		t.Errorf("key = %q", sess.key)
	}
	if sess.pages[0].Kind != book.KindCover {
		t.Errorf("first page = %s", sess.pages[0].Kind)
	}

	if _, err := loadLibrary(context.Background(), libraryStore{}, "nobody", book.Options{}); err == nil {
		t.Error("expected error for unknown author")
	}
}
