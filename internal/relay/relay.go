// Package relay forwards chat room messages to the commonplace ingestion
// endpoint, which files each one into an author's book.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrRejected is returned when the ingestion endpoint refuses a message.
var ErrRejected = errors.New("relay: message rejected")

const DefaultRecipient = "Custodian"

var mentionRegex = regexp.MustCompile(`@([A-Z][a-zA-Z]+)`)

// HasMention reports whether body addresses an author as @Surname.
func HasMention(body string) bool {
	return mentionRegex.MatchString(body)
}

// Recipient is the author whose book a message goes to: the first
// @Surname mentioned, or fallback.
func Recipient(body, fallback string) string {
	if m := mentionRegex.FindStringSubmatch(body); m != nil {
		return m[1]
	}
	if fallback == "" {
		return DefaultRecipient
	}
	return fallback
}

// Message is the body posted to the ingestion endpoint.
type Message struct {
	Message string `json:"message"`
	Sender  string `json:"sender"`
	Room    string `json:"room"`
}

type Result struct {
	Success bool   `json:"success"`
	Author  string `json:"author,omitempty"`
	Work    *struct {
		Title string `json:"title"`
	} `json:"work,omitempty"`
	Error json.RawMessage `json:"error,omitempty"`
}

// WorkTitle is the title of the work the message was filed under, if any.
func (r Result) WorkTitle() string {
	if r.Work == nil {
		return ""
	}
	return r.Work.Title
}

type Client struct {
	url    string
	apiKey string
	http   *http.Client
}

func NewClient(ingestURL, apiKey string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{url: ingestURL, apiKey: apiKey, http: hc}
}

// Post sends one message. A non-2xx status or an unsuccessful result is an
// error wrapping ErrRejected.
func (c *Client) Post(ctx context.Context, msg Message) (Result, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return Result{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(raw))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-Request-ID", uuid.New().String())

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("post to ingest: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return Result{}, fmt.Errorf("read ingest response: %w", err)
	}

	var res Result
	decodeErr := json.Unmarshal(body, &res)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return res, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if decodeErr != nil {
		return res, fmt.Errorf("decode ingest response: %w", decodeErr)
	}
	if !res.Success {
		return res, fmt.Errorf("%w: %s", ErrRejected, strings.TrimSpace(string(body)))
	}
	return res, nil
}
