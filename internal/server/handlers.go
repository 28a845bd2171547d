package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/metcalfc/commonplace/internal/book"
	"github.com/metcalfc/commonplace/internal/relay"
	"github.com/metcalfc/commonplace/internal/store"
)

func HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

type BookHandler struct {
	Store    store.Store
	Renderer *book.Renderer
	Defaults book.Options
}

type flipbookWork struct {
	store.Work
	TOC []book.Heading `json:"toc"`
}

// Flipbook serves one work by slug, the author list (author=all), or one
// author's works.
func (h *BookHandler) Flipbook(c *gin.Context) {
	ctx := c.Request.Context()
	slug := strings.TrimSpace(c.Query("slug"))
	author := strings.TrimSpace(c.Query("author"))

	switch {
	case author == "all":
		authors, err := h.Store.Authors(ctx)
		if err != nil {
			respondStoreError(c, err)
			return
		}
		RespondOK(c, gin.H{"authors": nonNil(authors)})

	case author != "":
		p, err := h.Store.AuthorBySlug(ctx, author)
		if err != nil {
			respondStoreError(c, err)
			return
		}
		works, err := h.Store.WorksByAuthor(ctx, p.ID)
		if err != nil {
			respondStoreError(c, err)
			return
		}
		RespondOK(c, gin.H{"works": nonNil(works)})

	case slug != "":
		w, err := h.Store.WorkBySlug(ctx, slug)
		if err != nil {
			respondStoreError(c, err)
			return
		}
		toc := book.Headings(w.ContentMD)
		if toc == nil {
			toc = []book.Heading{}
		}
		RespondOK(c, gin.H{"work": flipbookWork{Work: w, TOC: toc}})

	default:
		RespondError(c, http.StatusBadRequest, "bad_request", errors.New("Missing slug or author parameter"))
	}
}

type bookResponse struct {
	Author       string              `json:"author"`
	PagesPerView int                 `json:"pagesPerView"`
	TotalSpreads int                 `json:"totalSpreads"`
	Fragments    []book.PageFragment `json:"fragments"`
	Outline      []book.OutlineEntry `json:"outline"`
}

// Book assembles an author's commonplace book.
func (h *BookHandler) Book(c *gin.Context) {
	opts := h.Defaults
	if v := c.Query("pages_per_view"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || (n != 1 && n != 2) {
			RespondError(c, http.StatusBadRequest, "bad_request", errors.New("pages_per_view must be 1 or 2"))
			return
		}
		opts.PagesPerView = n
	}
	if v := c.Query("max_chars"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			RespondError(c, http.StatusBadRequest, "bad_request", errors.New("max_chars must be a positive integer"))
			return
		}
		opts.MaxCharsPerPage = n
	}

	entry, _, err := store.Library(c.Request.Context(), h.Store, c.Param("author"))
	if err != nil {
		respondStoreError(c, err)
		return
	}

	frags := h.Renderer.AssembleBook([]book.Entry{entry}, opts)
	outline := book.Outline(frags)
	if outline == nil {
		outline = []book.OutlineEntry{}
	}
	RespondOK(c, bookResponse{
		Author:       entry.Author.Name,
		PagesPerView: opts.PagesPerView,
		TotalSpreads: book.SpreadCount(len(frags), opts.PagesPerView),
		Fragments:    frags,
		Outline:      outline,
	})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// RelayHandler is the application service endpoint the homeserver pushes
// room events to.
type RelayHandler struct {
	Bot     *relay.Bot
	HSToken string
}

type transaction struct {
	Events []relay.Event `json:"events"`
}

func (h *RelayHandler) Transaction(c *gin.Context) {
	if !h.authorized(c) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"errcode": "M_FORBIDDEN", "error": "bad token"})
		return
	}
	var txn transaction
	if err := c.ShouldBindJSON(&txn); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"errcode": "M_NOT_JSON", "error": err.Error()})
		return
	}
	h.Bot.HandleTransaction(context.WithoutCancel(c.Request.Context()), c.Param("txnId"), txn.Events)
	c.JSON(http.StatusOK, gin.H{})
}

func (h *RelayHandler) authorized(c *gin.Context) bool {
	if h.HSToken == "" {
		return true
	}
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if token == "" || token == c.GetHeader("Authorization") {
		token = c.Query("access_token")
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.HSToken)) == 1
}
