// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config holds every setting the API process reads at startup.
type Config struct {
	Port            int           `env:"PORT,default=8000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=15s"`

	SupabaseURL            string `env:"SUPABASE_URL"`
	SupabaseServiceRoleKey string `env:"SUPABASE_SERVICE_ROLE_KEY"`
	SupabaseLegacyKey      string `env:"SUPABASE_KEY"`
	SupabaseDashboardURL   string `env:"SUPABASE_DASHBOARD_URL"`

	// DatabaseURL switches the datastore to a direct Postgres connection.
	DatabaseURL string `env:"DATABASE_URL"`

	StripeSecretKey      string `env:"STRIPE_SECRET_KEY"`
	StripePublishableKey string `env:"STRIPE_PUBLISHABLE_KEY"`

	RedisURL string `env:"REDIS_URL"`

	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS,default=*"`
	RateLimitRPS       int    `env:"RATE_LIMIT_RPS,default=20"`
	RateLimitBurst     int    `env:"RATE_LIMIT_BURST,default=40"`
	// TrustedProxyList holds IPs/CIDRs whose X-Forwarded-For is believed.
	TrustedProxyList string `env:"TRUSTED_PROXIES"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=json"`
}

// Load reads optional dotenv files and decodes the environment into a Config.
// With no files given it tries ./.env.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	return &cfg, nil
}

// Validate checks that a datastore is reachable by some configured route.
func (c *Config) Validate() error {
	if c.DatabaseURL != "" {
		return nil
	}
	if c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL or DATABASE_URL is required")
	}
	if c.SupabaseKey() == "" {
		return fmt.Errorf("SUPABASE_SERVICE_ROLE_KEY (or SUPABASE_KEY) is required")
	}
	return nil
}

// SupabaseKey returns the service-role key, falling back to the legacy key.
func (c *Config) SupabaseKey() string {
	if c.SupabaseServiceRoleKey != "" {
		return c.SupabaseServiceRoleKey
	}
	return c.SupabaseLegacyKey
}

// StripeEnabled reports whether a processor secret key is configured.
func (c *Config) StripeEnabled() bool {
	return c.StripeSecretKey != ""
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// TrustedProxies splits TRUSTED_PROXIES on commas.
func (c *Config) TrustedProxies() []string {
	var out []string
	for _, p := range strings.Split(c.TrustedProxyList, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Warnings lists non-fatal configuration problems worth logging at startup.
func (c *Config) Warnings() []string {
	if c.DatabaseURL != "" {
		return nil
	}
	var warnings []string
	if c.SupabaseServiceRoleKey == "" {
		warnings = append(warnings, "SUPABASE_SERVICE_ROLE_KEY is not set. Falling back to SUPABASE_KEY.")
	}
	if key := c.SupabaseKey(); key != "" && KeyRole(key) == "anon" {
		warnings = append(warnings,
			"Backend Supabase key role is 'anon'. RLS-protected writes (e.g., wallets inserts/updates) may fail.")
	}
	if !c.StripeEnabled() {
		warnings = append(warnings, "STRIPE_SECRET_KEY is not set. Payment endpoints will return 503.")
	}
	return warnings
}

// KeyRole reads the role claim of a Supabase API key without verifying its signature.
// It returns "" when the key is not a JWT.
func KeyRole(token string) string {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return ""
	}
	role, _ := claims["role"].(string)
	return role
}
