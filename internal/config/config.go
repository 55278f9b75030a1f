// Package config handles loading and validation of leafcart configuration.
// Supports both development (env vars or CONFIG_FILE) and production (Secret
// Manager) modes.
package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"

	"leafcart/internal/transport"
)

// Defaults.
const (
	DefaultPort              = "8080"
	DefaultStorePath         = "leafcart-store.json"
	DefaultRequestTimeout    = 15 * time.Second
	DefaultExpirationMinutes = 60
	DefaultEnrichConcurrency = 4

	// maxExpirationMinutes is the longest presigned URL S3 accepts (7 days).
	maxExpirationMinutes = 7 * 24 * 60
)

// Config holds all service configuration.
// Environment determines whether the shop API key loads from env vars
// (development) or Secret Manager (production).
type Config struct {
	// Server settings
	Port        string
	Environment string // "development" or "production"
	LogLevel    string // "debug", "info", "warn", "error"

	// GCP settings (required in production)
	GCPProject string
	SecretName string

	// Shop API settings
	Shop ShopConfig

	// StorePath is the file the cart and session id persist to.
	StorePath string

	// Transport selects the outbound HTTP stack: "standard" or "chrome".
	Transport      transport.Kind
	RequestTimeout time.Duration

	// Cart behaviour
	MediaURLExpirationMinutes int
	EnrichConcurrency         int
	SerializeMutations        bool
	PlaceholderImage          string
}

// ShopConfig contains Leaf Shop API settings.
// In production the API key (or the whole object as JSON) is loaded from
// Secret Manager.
type ShopConfig struct {
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key"`
}

// Load reads configuration from file, environment, or Secret Manager.
// Priority: CONFIG_FILE (if set) → ENV vars / Secret Manager.
// Validates all fields and returns an error naming the first bad one.
func Load(ctx context.Context) (*Config, error) {
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromFile(configPath)
	}

	cfg := &Config{
		Port:             envOrDefault("PORT", DefaultPort),
		Environment:      envOrDefault("ENVIRONMENT", "development"),
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
		GCPProject:       os.Getenv("GCP_PROJECT"),
		SecretName:       os.Getenv("SHOP_API_SECRET"),
		StorePath:        envOrDefault("LEAFCART_STORE_PATH", DefaultStorePath),
		PlaceholderImage: os.Getenv("PLACEHOLDER_IMAGE"),
		Shop: ShopConfig{
			BaseURL: os.Getenv("SHOP_API_URL"),
			APIKey:  os.Getenv("SHOP_API_KEY"),
		},
	}

	if err := cfg.loadTuningFromEnv(); err != nil {
		return nil, err
	}

	if cfg.Environment == "production" {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required in production environment")
		}
		if cfg.SecretName == "" {
			return nil, fmt.Errorf("SHOP_API_SECRET required in production environment")
		}
		if err := cfg.loadFromSecretManager(ctx); err != nil {
			return nil, fmt.Errorf("loading shop config: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadTuningFromEnv parses the typed environment variables.
func (c *Config) loadTuningFromEnv() error {
	kind, err := transport.ParseKind(os.Getenv("TRANSPORT"))
	if err != nil {
		return fmt.Errorf("TRANSPORT: %w", err)
	}
	c.Transport = kind

	c.RequestTimeout = DefaultRequestTimeout
	if v := os.Getenv("REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("REQUEST_TIMEOUT: %w", err)
		}
		c.RequestTimeout = d
	}

	if c.MediaURLExpirationMinutes, err = envInt("MEDIA_URL_EXPIRATION_MINUTES", DefaultExpirationMinutes); err != nil {
		return err
	}
	if c.EnrichConcurrency, err = envInt("ENRICH_CONCURRENCY", DefaultEnrichConcurrency); err != nil {
		return err
	}

	if v := os.Getenv("SERIALIZE_MUTATIONS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SERIALIZE_MUTATIONS: %w", err)
		}
		c.SerializeMutations = b
	}
	return nil
}

// loadFromFile reads all configuration from a JSON file.
// Used for local development to avoid multiple ENV vars.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var fileConfig struct {
		Port                      string     `json:"port"`
		Environment               string     `json:"environment"`
		LogLevel                  string     `json:"log_level"`
		StorePath                 string     `json:"store_path"`
		Transport                 string     `json:"transport"`
		RequestTimeout            string     `json:"request_timeout"`
		MediaURLExpirationMinutes int        `json:"media_url_expiration_minutes"`
		EnrichConcurrency         int        `json:"enrich_concurrency"`
		SerializeMutations        bool       `json:"serialize_mutations"`
		PlaceholderImage          string     `json:"placeholder_image"`
		Shop                      ShopConfig `json:"shop"`
	}

	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	kind, err := transport.ParseKind(fileConfig.Transport)
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}

	timeout := DefaultRequestTimeout
	if fileConfig.RequestTimeout != "" {
		if timeout, err = time.ParseDuration(fileConfig.RequestTimeout); err != nil {
			return nil, fmt.Errorf("request_timeout: %w", err)
		}
	}

	cfg := &Config{
		Port:                      withDefault(fileConfig.Port, DefaultPort),
		Environment:               withDefault(fileConfig.Environment, "development"),
		LogLevel:                  withDefault(fileConfig.LogLevel, "info"),
		StorePath:                 withDefault(fileConfig.StorePath, DefaultStorePath),
		Transport:                 kind,
		RequestTimeout:            timeout,
		MediaURLExpirationMinutes: intWithDefault(fileConfig.MediaURLExpirationMinutes, DefaultExpirationMinutes),
		EnrichConcurrency:         intWithDefault(fileConfig.EnrichConcurrency, DefaultEnrichConcurrency),
		SerializeMutations:        fileConfig.SerializeMutations,
		PlaceholderImage:          fileConfig.PlaceholderImage,
		Shop:                      fileConfig.Shop,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withDefault returns val if non-empty, otherwise defaultVal.
func withDefault(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

func intWithDefault(val, defaultVal int) int {
	if val != 0 {
		return val
	}
	return defaultVal
}

// loadFromSecretManager fetches the shop API credentials from GCP Secret Manager.
// Secret name format: projects/{project}/secrets/{secret}/versions/latest
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest",
		c.GCPProject, c.SecretName)

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	return applySecret(result.Payload.Data, &c.Shop)
}

// applySecret merges a secret payload into shop. The payload is either a
// JSON ShopConfig object or the bare API key.
func applySecret(data []byte, shop *ShopConfig) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("secret payload is empty")
	}

	if data[0] != '{' {
		shop.APIKey = string(data)
		return nil
	}

	var fromSecret ShopConfig
	if err := json.Unmarshal(data, &fromSecret); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}
	if fromSecret.APIKey != "" {
		shop.APIKey = fromSecret.APIKey
	}
	if fromSecret.BaseURL != "" {
		shop.BaseURL = fromSecret.BaseURL
	}
	return nil
}

// validate checks that all required configuration fields are present and sane.
func (c *Config) validate() error {
	if c.Shop.BaseURL == "" {
		return fmt.Errorf("shop base_url is required (SHOP_API_URL)")
	}
	u, err := url.Parse(c.Shop.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid shop base_url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid shop base_url %q: must be an absolute http(s) URL", c.Shop.BaseURL)
	}

	if c.Environment == "production" && c.Shop.APIKey == "" {
		return fmt.Errorf("shop api_key is required in production")
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}

	if c.StorePath == "" {
		return fmt.Errorf("store_path is required")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	if c.MediaURLExpirationMinutes < 1 || c.MediaURLExpirationMinutes > maxExpirationMinutes {
		return fmt.Errorf("media_url_expiration_minutes must be between 1 and %d", maxExpirationMinutes)
	}
	if c.EnrichConcurrency < 1 {
		return fmt.Errorf("enrich_concurrency must be at least 1")
	}
	return nil
}

// envOrDefault returns the environment variable value or the default if not set.
func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// envInt parses an integer environment variable.
func envInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
