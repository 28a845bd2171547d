package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrMissing reports a setting a command needs but that nothing provided.
var ErrMissing = errors.New("missing configuration")

// ingestPath is appended to the Supabase URL when no relay ingest URL is set.
const ingestPath = "/functions/v1/matrix-commonplace"

type Config struct {
	LogMode    string      `yaml:"log_mode"`
	ListenAddr string      `yaml:"listen_addr"`
	Store      StoreConfig `yaml:"store"`
	Cache      CacheConfig `yaml:"cache"`
	Book       BookConfig  `yaml:"book"`
	Relay      RelayConfig `yaml:"relay"`
}

type StoreConfig struct {
	SupabaseURL   string        `yaml:"supabase_url"`
	SupabaseKey   string        `yaml:"supabase_key"`
	DirectusURL   string        `yaml:"directus_url"`
	DirectusToken string        `yaml:"directus_token"`
	Timeout       time.Duration `yaml:"timeout"`
	Retries       int           `yaml:"retries"`
}

type CacheConfig struct {
	RedisAddr string        `yaml:"redis_addr"`
	TTL       time.Duration `yaml:"ttl"`
}

type BookConfig struct {
	MaxCharsPerPage int           `yaml:"max_chars_per_page"`
	PagesPerView    int           `yaml:"pages_per_view"`
	FlipDuration    time.Duration `yaml:"flip_duration"`
}

type RelayConfig struct {
	IngestURL        string `yaml:"ingest_url"`
	APIKey           string `yaml:"api_key"`
	RoomID           string `yaml:"room_id"`
	BotUserID        string `yaml:"bot_user_id"`
	HSToken          string `yaml:"hs_token"`
	DefaultRecipient string `yaml:"default_recipient"`
}

func Default() *Config {
	return &Config{
		LogMode:    "dev",
		ListenAddr: ":8080",
		Store: StoreConfig{
			Timeout: 10 * time.Second,
			Retries: 3,
		},
		Cache: CacheConfig{TTL: 5 * time.Minute},
		Book: BookConfig{
			MaxCharsPerPage: 1000,
			PagesPerView:    2,
			FlipDuration:    500 * time.Millisecond,
		},
		Relay: RelayConfig{DefaultRecipient: "Custodian"},
	}
}

// Load reads the YAML file at path over the defaults, when path is not
// empty, then applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.derive()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"LOG_MODE":                &c.LogMode,
		"LISTEN_ADDR":             &c.ListenAddr,
		"SUPABASE_URL":            &c.Store.SupabaseURL,
		"SUPABASE_ANON_KEY":       &c.Store.SupabaseKey,
		"DIRECTUS_URL":            &c.Store.DirectusURL,
		"DIRECTUS_TOKEN":          &c.Store.DirectusToken,
		"REDIS_ADDR":              &c.Cache.RedisAddr,
		"RELAY_INGEST_URL":        &c.Relay.IngestURL,
		"RELAY_API_KEY":           &c.Relay.APIKey,
		"MATRIX_ROOM_ID":          &c.Relay.RoomID,
		"MATRIX_USER_ID":          &c.Relay.BotUserID,
		"MATRIX_HS_TOKEN":         &c.Relay.HSToken,
		"RELAY_DEFAULT_RECIPIENT": &c.Relay.DefaultRecipient,
	}
	for name, dst := range str {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"STORE_RETRIES":      &c.Store.Retries,
		"MAX_CHARS_PER_PAGE": &c.Book.MaxCharsPerPage,
		"PAGES_PER_VIEW":     &c.Book.PagesPerView,
	}
	for name, dst := range ints {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = n
		}
	}

	durations := map[string]*time.Duration{
		"STORE_TIMEOUT": &c.Store.Timeout,
		"CACHE_TTL":     &c.Cache.TTL,
		"FLIP_DURATION": &c.Book.FlipDuration,
	}
	for name, dst := range durations {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = d
		}
	}
	return nil
}

func (c *Config) derive() {
	c.Store.SupabaseURL = strings.TrimRight(c.Store.SupabaseURL, "/")
	c.Store.DirectusURL = strings.TrimRight(c.Store.DirectusURL, "/")
	if c.Relay.IngestURL == "" && c.Store.SupabaseURL != "" {
		c.Relay.IngestURL = c.Store.SupabaseURL + ingestPath
	}
	if c.Relay.APIKey == "" {
		c.Relay.APIKey = c.Store.SupabaseKey
	}
	if c.Relay.DefaultRecipient == "" {
		c.Relay.DefaultRecipient = "Custodian"
	}
}

func (c *Config) Validate() error {
	if c.Book.MaxCharsPerPage <= 0 {
		return fmt.Errorf("book.max_chars_per_page must be positive, got %d", c.Book.MaxCharsPerPage)
	}
	if c.Book.PagesPerView != 1 && c.Book.PagesPerView != 2 {
		return fmt.Errorf("book.pages_per_view must be 1 or 2, got %d", c.Book.PagesPerView)
	}
	if c.Book.FlipDuration < 0 || c.Store.Timeout < 0 || c.Cache.TTL < 0 {
		return errors.New("durations must not be negative")
	}
	if c.Store.Retries < 0 {
		return fmt.Errorf("store.retries must not be negative, got %d", c.Store.Retries)
	}
	return nil
}

// RequireStore reports whether at least one document store backend is
// configured.
func (c *Config) RequireStore() error {
	if c.Store.SupabaseURL == "" && c.Store.DirectusURL == "" {
		return fmt.Errorf("%w: SUPABASE_URL or DIRECTUS_URL", ErrMissing)
	}
	return nil
}

// RequireRelay lists the relay settings that are still empty.
func (c *Config) RequireRelay() error {
	var missing []string
	if c.Relay.IngestURL == "" {
		missing = append(missing, "RELAY_INGEST_URL")
	}
	if c.Relay.APIKey == "" {
		missing = append(missing, "RELAY_API_KEY")
	}
	if c.Relay.RoomID == "" {
		missing = append(missing, "MATRIX_ROOM_ID")
	}
	if c.Relay.BotUserID == "" {
		missing = append(missing, "MATRIX_USER_ID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissing, strings.Join(missing, ", "))
	}
	return nil
}
