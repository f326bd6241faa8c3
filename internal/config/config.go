package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"contact-intake/internal/cors"
)

const (
	BackendDynamoDB = "dynamodb"
	BackendPostgres = "postgres"
)

// Config holds everything read from the environment at cold start.
type Config struct {
	SiteverifyURL string
	// Exactly one of SecretKey and SecretParam is used; SecretKey wins.
	SecretKey   string
	SecretParam string
	// Empty means every origin is allowed.
	AllowedOrigins []string
	// Set only when Cloudflare fronts the gateway and overwrites the header.
	TrustCFConnectingIP bool

	StoreBackend string
	ContactTable string
	DatabaseURL  string

	LogLevel string
	HTTPAddr string
}

// Load reads configuration through lookup, normally os.LookupEnv.
func Load(lookup func(string) (string, bool)) (*Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	cfg := &Config{
		SiteverifyURL:  get("TURNSTILE_SITEVERIFY_URL"),
		SecretKey:      get("TURNSTILE_SECRET_KEY"),
		SecretParam:    get("TURNSTILE_SECRET_PARAM"),
		AllowedOrigins: cors.ParseOrigins(get("ALLOWED_ORIGINS")),
		StoreBackend:   strings.ToLower(getOr(get, "STORE_BACKEND", BackendDynamoDB)),
		ContactTable:   get("CONTACT_TABLE"),
		DatabaseURL:    get("DATABASE_URL"),
		LogLevel:       getOr(get, "LOG_LEVEL", "INFO"),
		HTTPAddr:       getOr(get, "HTTP_ADDR", ":8080"),
	}

	var errs []error
	if raw := get("TRUST_CF_CONNECTING_IP"); raw != "" {
		trust, err := strconv.ParseBool(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("TRUST_CF_CONNECTING_IP: invalid boolean %q", raw))
		}
		cfg.TrustCFConnectingIP = trust
	}
	if cfg.SiteverifyURL == "" {
		errs = append(errs, errors.New("TURNSTILE_SITEVERIFY_URL is required"))
	}
	if cfg.SecretKey == "" && cfg.SecretParam == "" {
		errs = append(errs, errors.New("one of TURNSTILE_SECRET_KEY or TURNSTILE_SECRET_PARAM is required"))
	}
	switch cfg.StoreBackend {
	case BackendDynamoDB:
		if cfg.ContactTable == "" {
			errs = append(errs, errors.New("CONTACT_TABLE is required for the dynamodb backend"))
		}
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported STORE_BACKEND %q", cfg.StoreBackend))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// UsesSecretParameter reports whether the verification secret comes from SSM.
func (c *Config) UsesSecretParameter() bool {
	return c.SecretKey == "" && c.SecretParam != ""
}

func getOr(get func(string) string, key, fallback string) string {
	if v := get(key); v != "" {
		return v
	}
	return fallback
}
