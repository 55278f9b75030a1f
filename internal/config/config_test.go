package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"leafcart/internal/transport"
)

// clearEnv blanks every variable Load reads so tests don't inherit the
// developer's shell.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CONFIG_FILE", "PORT", "ENVIRONMENT", "LOG_LEVEL", "GCP_PROJECT",
		"SHOP_API_SECRET", "SHOP_API_URL", "SHOP_API_KEY", "LEAFCART_STORE_PATH",
		"TRANSPORT", "REQUEST_TIMEOUT", "MEDIA_URL_EXPIRATION_MINUTES",
		"ENRICH_CONCURRENCY", "SERIALIZE_MUTATIONS", "PLACEHOLDER_IMAGE",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("SHOP_API_URL", "https://api.leafshop.example")
	t.Setenv("SHOP_API_KEY", "key-123")
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LEAFCART_STORE_PATH", "/tmp/cart.json")
	t.Setenv("TRANSPORT", "chrome")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("MEDIA_URL_EXPIRATION_MINUTES", "30")
	t.Setenv("ENRICH_CONCURRENCY", "8")
	t.Setenv("SERIALIZE_MUTATIONS", "true")
	t.Setenv("PLACEHOLDER_IMAGE", "/img/none.png")

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("Port = %s, want 9090", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %s, want debug", cfg.LogLevel)
	}
	if cfg.Shop.BaseURL != "https://api.leafshop.example" {
		t.Errorf("BaseURL = %s", cfg.Shop.BaseURL)
	}
	if cfg.Shop.APIKey != "key-123" {
		t.Errorf("APIKey = %s, want key-123", cfg.Shop.APIKey)
	}
	if cfg.StorePath != "/tmp/cart.json" {
		t.Errorf("StorePath = %s", cfg.StorePath)
	}
	if cfg.Transport != transport.KindChrome {
		t.Errorf("Transport = %s, want chrome", cfg.Transport)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Errorf("RequestTimeout = %v, want 5s", cfg.RequestTimeout)
	}
	if cfg.MediaURLExpirationMinutes != 30 {
		t.Errorf("MediaURLExpirationMinutes = %d, want 30", cfg.MediaURLExpirationMinutes)
	}
	if cfg.EnrichConcurrency != 8 {
		t.Errorf("EnrichConcurrency = %d, want 8", cfg.EnrichConcurrency)
	}
	if !cfg.SerializeMutations {
		t.Error("SerializeMutations = false, want true")
	}
	if cfg.PlaceholderImage != "/img/none.png" {
		t.Errorf("PlaceholderImage = %s", cfg.PlaceholderImage)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("SHOP_API_URL", "http://localhost:8081")

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != DefaultPort {
		t.Errorf("Port = %s, want %s", cfg.Port, DefaultPort)
	}
	if cfg.Environment != "development" {
		t.Errorf("Environment = %s, want development", cfg.Environment)
	}
	if cfg.StorePath != DefaultStorePath {
		t.Errorf("StorePath = %s, want %s", cfg.StorePath, DefaultStorePath)
	}
	if cfg.Transport != transport.KindStandard {
		t.Errorf("Transport = %s, want standard", cfg.Transport)
	}
	if cfg.RequestTimeout != DefaultRequestTimeout {
		t.Errorf("RequestTimeout = %v", cfg.RequestTimeout)
	}
	if cfg.MediaURLExpirationMinutes != DefaultExpirationMinutes {
		t.Errorf("MediaURLExpirationMinutes = %d", cfg.MediaURLExpirationMinutes)
	}
	if cfg.SerializeMutations {
		t.Error("SerializeMutations should default to false")
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing base url",
			env:     map[string]string{},
			wantErr: "base_url is required",
		},
		{
			name:    "relative base url",
			env:     map[string]string{"SHOP_API_URL": "/api"},
			wantErr: "invalid shop base_url",
		},
		{
			name:    "unknown transport",
			env:     map[string]string{"SHOP_API_URL": "https://x.example", "TRANSPORT": "firefox"},
			wantErr: "TRANSPORT",
		},
		{
			name:    "bad timeout",
			env:     map[string]string{"SHOP_API_URL": "https://x.example", "REQUEST_TIMEOUT": "soon"},
			wantErr: "REQUEST_TIMEOUT",
		},
		{
			name:    "non-positive timeout",
			env:     map[string]string{"SHOP_API_URL": "https://x.example", "REQUEST_TIMEOUT": "0s"},
			wantErr: "request_timeout",
		},
		{
			name:    "expiration too long",
			env:     map[string]string{"SHOP_API_URL": "https://x.example", "MEDIA_URL_EXPIRATION_MINUTES": "20000"},
			wantErr: "media_url_expiration_minutes",
		},
		{
			name:    "expiration not a number",
			env:     map[string]string{"SHOP_API_URL": "https://x.example", "MEDIA_URL_EXPIRATION_MINUTES": "an hour"},
			wantErr: "MEDIA_URL_EXPIRATION_MINUTES",
		},
		{
			name:    "zero concurrency",
			env:     map[string]string{"SHOP_API_URL": "https://x.example", "ENRICH_CONCURRENCY": "0"},
			wantErr: "enrich_concurrency",
		},
		{
			name:    "bad bool",
			env:     map[string]string{"SHOP_API_URL": "https://x.example", "SERIALIZE_MUTATIONS": "sometimes"},
			wantErr: "SERIALIZE_MUTATIONS",
		},
		{
			name:    "bad log level",
			env:     map[string]string{"SHOP_API_URL": "https://x.example", "LOG_LEVEL": "verbose"},
			wantErr: "log_level",
		},
		{
			name:    "production without project",
			env:     map[string]string{"SHOP_API_URL": "https://x.example", "ENVIRONMENT": "production"},
			wantErr: "GCP_PROJECT required",
		},
		{
			name: "production without secret",
			env: map[string]string{
				"SHOP_API_URL": "https://x.example", "ENVIRONMENT": "production", "GCP_PROJECT": "leafshop",
			},
			wantErr: "SHOP_API_SECRET required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "leafcart.json")
	content := `{
		"port": "7070",
		"log_level": "warn",
		"store_path": "` + filepath.ToSlash(filepath.Join(dir, "store.json")) + `",
		"transport": "chrome",
		"request_timeout": "3s",
		"serialize_mutations": true,
		"shop": {"base_url": "https://api.leafshop.example", "api_key": "file-key"}
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "7070" || cfg.LogLevel != "warn" {
		t.Errorf("Port/LogLevel = %s/%s", cfg.Port, cfg.LogLevel)
	}
	if cfg.Shop.APIKey != "file-key" {
		t.Errorf("APIKey = %s, want file-key", cfg.Shop.APIKey)
	}
	if cfg.Transport != transport.KindChrome || cfg.RequestTimeout != 3*time.Second {
		t.Errorf("Transport/RequestTimeout = %s/%v", cfg.Transport, cfg.RequestTimeout)
	}
	if !cfg.SerializeMutations {
		t.Error("SerializeMutations = false, want true")
	}
	if cfg.EnrichConcurrency != DefaultEnrichConcurrency {
		t.Errorf("EnrichConcurrency = %d, want default", cfg.EnrichConcurrency)
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		t.Setenv("CONFIG_FILE", filepath.Join(dir, "nope.json"))
		if _, err := Load(context.Background()); err == nil || !strings.Contains(err.Error(), "reading config file") {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("bad json", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		os.WriteFile(path, []byte(`{"port":`), 0o600)
		t.Setenv("CONFIG_FILE", path)
		if _, err := Load(context.Background()); err == nil || !strings.Contains(err.Error(), "parsing config file") {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("missing shop", func(t *testing.T) {
		path := filepath.Join(dir, "noshop.json")
		os.WriteFile(path, []byte(`{"port":"1"}`), 0o600)
		t.Setenv("CONFIG_FILE", path)
		if _, err := Load(context.Background()); err == nil || !strings.Contains(err.Error(), "base_url is required") {
			t.Errorf("error = %v", err)
		}
	})
}

func TestApplySecret(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    ShopConfig
		wantErr bool
	}{
		{
			name:    "bare key",
			payload: "  sk_live_abc\n",
			want:    ShopConfig{BaseURL: "https://env.example", APIKey: "sk_live_abc"},
		},
		{
			name:    "json with both fields",
			payload: `{"base_url":"https://secret.example","api_key":"k"}`,
			want:    ShopConfig{BaseURL: "https://secret.example", APIKey: "k"},
		},
		{
			name:    "json key only keeps env url",
			payload: `{"api_key":"k2"}`,
			want:    ShopConfig{BaseURL: "https://env.example", APIKey: "k2"},
		},
		{name: "empty", payload: "   ", wantErr: true},
		{name: "broken json", payload: `{"api_key":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shop := ShopConfig{BaseURL: "https://env.example", APIKey: "env-key"}
			err := applySecret([]byte(tt.payload), &shop)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && shop != tt.want {
				t.Errorf("shop = %+v, want %+v", shop, tt.want)
			}
		})
	}
}
