package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/metcalfc/commonplace/internal/book"
	"github.com/metcalfc/commonplace/internal/config"
	"github.com/metcalfc/commonplace/internal/format"
	"github.com/metcalfc/commonplace/internal/logger"
	"github.com/metcalfc/commonplace/internal/state"
	"github.com/metcalfc/commonplace/internal/store"
)

// Version info (injected via ldflags)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// session is a book ready to open: its pages and the key its reading
// position is saved under. Books read from stdin have no key.
type session struct {
	title string
	pages []book.PageFragment
	key   string
}

// bookOptions turns the configured page capacity and layout into assembly
// options.
func bookOptions(cfg *config.Config) book.Options {
	return book.Options{
		MaxCharsPerPage: cfg.Book.MaxCharsPerPage,
		PagesPerView:    cfg.Book.PagesPerView,
	}
}

// loadFile opens a local document, or stdin for "-". A document with an
// author is bound as that author's commonplace book; anything else is read
// as bare pages.
func loadFile(path string, opts book.Options) (*session, error) {
	var (
		doc book.Document
		err error
		key string
	)
	if path == "-" {
		data, rerr := io.ReadAll(os.Stdin)
		if rerr != nil {
			return nil, fmt.Errorf("read stdin: %w", rerr)
		}
		doc, err = format.Parse(path, data)
	} else {
		doc, err = format.Load(path)
		if err == nil {
			// Unreadable hashes only cost the saved position.
			key, _ = state.FileKey(path)
		}
	}
	if err != nil {
		return nil, err
	}
	return &session{title: doc.Title, pages: documentPages(doc, opts), key: key}, nil
}

func documentPages(doc book.Document, opts book.Options) []book.PageFragment {
	if strings.TrimSpace(doc.AuthorName) == "" {
		return book.PaginateWork(doc, opts.MaxCharsPerPage)
	}
	return book.AssembleBook([]book.Entry{{
		Author:    book.Author{Name: doc.AuthorName, Bio: doc.AuthorBio},
		Documents: []book.Document{doc},
	}}, opts)
}

// openStore builds the document store client, behind the Redis cache when
// one is configured. The returned func releases the cache connection.
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (store.Store, func(), error) {
	if err := cfg.RequireStore(); err != nil {
		return nil, nil, err
	}
	var s store.Store = store.New(store.Config{
		SupabaseURL:   cfg.Store.SupabaseURL,
		SupabaseKey:   cfg.Store.SupabaseKey,
		DirectusURL:   cfg.Store.DirectusURL,
		DirectusToken: cfg.Store.DirectusToken,
		Timeout:       cfg.Store.Timeout,
		Retries:       cfg.Store.Retries,
	}, log)

	if cfg.Cache.RedisAddr == "" {
		return s, func() {}, nil
	}
	cache, err := store.NewRedisCache(ctx, cfg.Cache.RedisAddr)
	if err != nil {
		log.Warn("cache disabled", "redis_addr", cfg.Cache.RedisAddr, "error", err)
		return s, func() {}, nil
	}
	return store.NewCachedStore(s, cache, cfg.Cache.TTL, log), func() { _ = cache.Close() }, nil
}

// loadLibrary assembles an author's commonplace book from the store.
func loadLibrary(ctx context.Context, s store.Store, authorSlug string, opts book.Options) (*session, error) {
	entry, works, err := store.Library(ctx, s, authorSlug)
	if err != nil {
		return nil, err
	}
	parts := []string{authorSlug}
	for _, w := range works {
		parts = append(parts, w.Slug)
	}
	return &session{
		title: entry.Author.Name,
		pages: book.AssembleBook([]book.Entry{entry}, opts),
		key:   state.LibraryKey(parts...),
	}, nil
}

// positions wraps the bookmark file so a missing one is harmless.
type positions struct {
	marks *state.Bookmarks
	key   string
	title string
}

func openPositions(sess *session, log *logger.Logger) positions {
	if sess.key == "" {
		return positions{}
	}
	b, err := state.OpenDefault()
	if err != nil {
		log.Warn("reading positions unavailable", "error", err)
		return positions{}
	}
	return positions{marks: b, key: sess.key, title: sess.title}
}

func (p positions) get() int {
	if p.marks == nil {
		return 0
	}
	bm, _ := p.marks.Get(p.key)
	return bm.Ordinal
}

func (p positions) set(ordinal int) error {
	if p.marks == nil {
		return nil
	}
	return p.marks.Put(p.key, ordinal, p.title)
}

func (p positions) clear() error {
	if p.marks == nil {
		return nil
	}
	return p.marks.Forget(p.key)
}
