package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var envNames = []string{
	"LOG_MODE", "LISTEN_ADDR", "SUPABASE_URL", "SUPABASE_ANON_KEY", "DIRECTUS_URL",
	"DIRECTUS_TOKEN", "STORE_TIMEOUT", "STORE_RETRIES", "REDIS_ADDR", "CACHE_TTL",
	"MAX_CHARS_PER_PAGE", "PAGES_PER_VIEW", "FLIP_DURATION", "RELAY_INGEST_URL",
	"RELAY_API_KEY", "MATRIX_ROOM_ID", "MATRIX_USER_ID", "MATRIX_HS_TOKEN",
	"RELAY_DEFAULT_RECIPIENT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range envNames {
		t.Setenv(name, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8080" || cfg.LogMode != "dev" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.Book.MaxCharsPerPage != 1000 || cfg.Book.PagesPerView != 2 || cfg.Book.FlipDuration != 500*time.Millisecond {
		t.Errorf("unexpected book defaults %+v", cfg.Book)
	}
	if cfg.Relay.DefaultRecipient != "Custodian" {
		t.Errorf("default recipient = %q", cfg.Relay.DefaultRecipient)
	}
	if cfg.Relay.IngestURL != "" {
		t.Errorf("ingest url should stay empty without a store, got %q", cfg.Relay.IngestURL)
	}
	if err := cfg.RequireStore(); !errors.Is(err, ErrMissing) {
		t.Errorf("RequireStore = %v, want ErrMissing", err)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "commonplace.yaml")
	os.WriteFile(path, []byte(`
listen_addr: ":9000"
store:
  supabase_url: https://db.example.org/
  supabase_key: anon
  timeout: 3s
book:
  pages_per_view: 1
  flip_duration: 250ms
`), 0644)

	t.Setenv("MAX_CHARS_PER_PAGE", "1200")
	t.Setenv("LISTEN_ADDR", ":7000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":7000" {
		t.Errorf("env should override file, got %q", cfg.ListenAddr)
	}
	if cfg.Store.SupabaseURL != "https://db.example.org" {
		t.Errorf("supabase url = %q", cfg.Store.SupabaseURL)
	}
	if cfg.Store.Timeout != 3*time.Second || cfg.Store.Retries != 3 {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Book.PagesPerView != 1 || cfg.Book.MaxCharsPerPage != 1200 || cfg.Book.FlipDuration != 250*time.Millisecond {
		t.Errorf("book = %+v", cfg.Book)
	}
	if cfg.Relay.IngestURL != "https://db.example.org/functions/v1/matrix-commonplace" {
		t.Errorf("derived ingest url = %q", cfg.Relay.IngestURL)
	}
	if cfg.Relay.APIKey != "anon" {
		t.Errorf("relay api key should fall back to the anon key, got %q", cfg.Relay.APIKey)
	}
	if err := cfg.RequireStore(); err != nil {
		t.Errorf("RequireStore: %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad int", map[string]string{"STORE_RETRIES": "many"}},
		{"bad duration", map[string]string{"FLIP_DURATION": "soon"}},
		{"three pages per view", map[string]string{"PAGES_PER_VIEW": "3"}},
		{"zero chars", map[string]string{"MAX_CHARS_PER_PAGE": "0"}},
		{"negative duration", map[string]string{"CACHE_TTL": "-1s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(""); err == nil {
				t.Error("expected error")
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		clearEnv(t)
		if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("expected error")
		}
	})
}

func TestRequireRelay(t *testing.T) {
	cfg := Default()
	err := cfg.RequireRelay()
	if !errors.Is(err, ErrMissing) {
		t.Fatalf("RequireRelay = %v, want ErrMissing", err)
	}
	for _, name := range []string{"RELAY_INGEST_URL", "RELAY_API_KEY", "MATRIX_ROOM_ID", "MATRIX_USER_ID"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q does not name %s", err, name)
		}
	}

	cfg.Relay = RelayConfig{
		IngestURL: "https://x/ingest",
		APIKey:    "k",
		RoomID:    "!room:example.org",
		BotUserID: "@bot:example.org",
	}
	if err := cfg.RequireRelay(); err != nil {
		t.Errorf("RequireRelay: %v", err)
	}
}
