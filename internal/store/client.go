package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/metcalfc/commonplace/internal/logger"
)

type Config struct {
	SupabaseURL   string
	SupabaseKey   string
	DirectusURL   string
	DirectusToken string
	Timeout       time.Duration
	// Retries is the number of extra attempts after a transient failure.
	Retries    int
	RetryDelay time.Duration
	HTTPClient *http.Client
}

// Client implements Store over HTTP.
type Client struct {
	cfg  Config
	http *http.Client
	log  *logger.Logger
}

func New(cfg Config, log *logger.Logger) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 200 * time.Millisecond
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Client{cfg: cfg, http: hc, log: log.With("service", "store")}
}

// statusError is a non-2xx response.
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Body)
}

func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.Status == http.StatusTooManyRequests || se.Status >= 500
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func (c *Client) getJSON(ctx context.Context, u string, header http.Header, out any) error {
	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header = header.Clone()
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return &statusError{Status: resp.StatusCode, Body: string(body)}
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}

	return retry.Do(attempt,
		retry.Context(ctx),
		retry.Attempts(uint(c.cfg.Retries+1)),
		retry.Delay(c.cfg.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(retryable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.log.Debug("retrying document store request", "attempt", n+1, "error", err)
		}),
	)
}

func (c *Client) supabase(ctx context.Context, table string, q url.Values, out any) error {
	u := c.cfg.SupabaseURL + "/rest/v1/" + table + "?" + q.Encode()
	h := http.Header{}
	h.Set("apikey", c.cfg.SupabaseKey)
	h.Set("Authorization", "Bearer "+c.cfg.SupabaseKey)
	return c.getJSON(ctx, u, h, out)
}

func (c *Client) directus(ctx context.Context, collection string, q url.Values, out any) error {
	u := c.cfg.DirectusURL + "/items/" + collection + "?" + q.Encode()
	h := http.Header{}
	if c.cfg.DirectusToken != "" {
		h.Set("Authorization", "Bearer "+c.cfg.DirectusToken)
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := c.getJSON(ctx, u, h, &envelope); err != nil {
		return err
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return nil
	}
	return json.Unmarshal(envelope.Data, out)
}

type backend struct {
	name string
	ok   bool
	run  func() error
}

// first runs the configured backends in order and stops at the first that
// succeeds.
func (c *Client) first(op string, backends ...backend) error {
	var last error
	for _, b := range backends {
		if !b.ok {
			continue
		}
		err := b.run()
		if err == nil {
			return nil
		}
		c.log.Warn("document store backend failed", "op", op, "backend", b.name, "error", err)
		last = fmt.Errorf("%s %s: %w", b.name, op, err)
	}
	if last == nil {
		return fmt.Errorf("%s: no document store configured", op)
	}
	return last
}

func (c *Client) hasSupabase() bool { return c.cfg.SupabaseURL != "" }
func (c *Client) hasDirectus() bool { return c.cfg.DirectusURL != "" }

func (c *Client) Authors(ctx context.Context) ([]Person, error) {
	var people []Person
	err := c.first("authors",
		backend{"supabase", c.hasSupabase(), func() error {
			people = nil
			return c.supabase(ctx, "persons", url.Values{
				"select":        {"id,name,slug,kind,bio,public_domain"},
				"public_domain": {"eq.true"},
				"kind":          {"in.(faculty,external_author)"},
			}, &people)
		}},
		backend{"directus", c.hasDirectus(), func() error {
			people = nil
			return c.directus(ctx, "persons", url.Values{
				"filter[kind][_eq]":          {"faculty"},
				"filter[public_domain][_eq]": {"true"},
			}, &people)
		}},
	)
	return people, err
}

func (c *Client) AuthorBySlug(ctx context.Context, slug string) (Person, error) {
	var people []Person
	err := c.first("author",
		backend{"supabase", c.hasSupabase(), func() error {
			people = nil
			return c.supabase(ctx, "persons", url.Values{
				"slug":   {"eq." + slug},
				"select": {"*"},
				"limit":  {"1"},
			}, &people)
		}},
		backend{"directus", c.hasDirectus(), func() error {
			people = nil
			return c.directus(ctx, "persons", url.Values{
				"filter[slug][_eq]": {slug},
				"limit":             {"1"},
			}, &people)
		}},
	)
	if err != nil {
		return Person{}, err
	}
	if len(people) == 0 {
		return Person{}, fmt.Errorf("author %q: %w", slug, ErrNotFound)
	}
	return people[0], nil
}

func (c *Client) WorksByAuthor(ctx context.Context, authorID string) ([]Work, error) {
	var works []Work
	err := c.first("works",
		backend{"supabase", c.hasSupabase(), func() error {
			works = nil
			return c.supabase(ctx, "works", url.Values{
				"primary_author_id": {"eq." + authorID},
				"status":            {"eq.published"},
				"visibility":        {"eq.public"},
				"select":            {"*"},
			}, &works)
		}},
		backend{"directus", c.hasDirectus(), func() error {
			works = nil
			return c.directus(ctx, "works", url.Values{
				"filter[primary_author_id][_eq]": {authorID},
				"filter[status][_eq]":            {"published"},
				"filter[visibility][_eq]":        {"public"},
			}, &works)
		}},
	)
	return works, err
}

// WorkBySlug asks Directus first, where the full work records live.
func (c *Client) WorkBySlug(ctx context.Context, slug string) (Work, error) {
	var works []Work
	err := c.first("work",
		backend{"directus", c.hasDirectus(), func() error {
			works = nil
			return c.directus(ctx, "works", url.Values{
				"filter[slug][_eq]": {slug},
				"limit":             {"1"},
			}, &works)
		}},
		backend{"supabase", c.hasSupabase(), func() error {
			works = nil
			return c.supabase(ctx, "works", url.Values{
				"slug":   {"eq." + slug},
				"select": {"*"},
				"limit":  {"1"},
			}, &works)
		}},
	)
	if err != nil {
		return Work{}, err
	}
	if len(works) == 0 {
		return Work{}, fmt.Errorf("work %q: %w", slug, ErrNotFound)
	}
	return works[0], nil
}
