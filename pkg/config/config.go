package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// Config holds everything the server reads from the environment.
type Config struct {
	Environment string
	Port        string

	// Database. SQLite is the zero-config default; set POSTGRES_DSN to
	// use Postgres instead.
	PostgresDSN string
	SQLitePath  string

	// JWT
	JWTSecret string

	// OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GitHubClientID     string
	GitHubClientSecret string
	OAuthRedirectURI   string
	BaseURL            string
	FrontendCallback   string

	// SMTP. Leave SMTPHost empty to disable outbound mail.
	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	// Shared secret for the inbound lead webhook.
	LeadWebhookSecret string

	// CORS
	AllowedOrigins []string

	Debug bool
}

// LoadConfig reads the environment, layering in a .env file when present.
func LoadConfig() *Config {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	// Missing files are fine; real env vars always win.
	switch env {
	case "production":
		godotenv.Load(".env.production")
	default:
		godotenv.Load(".env.local")
	}
	godotenv.Load(".env")

	config := &Config{
		Environment: getEnvWithDefault("ENVIRONMENT", "development"),
		Port:        getEnvWithDefault("PORT", "3000"),
		SQLitePath:  getEnvWithDefault("SQLITE_PATH", "data/teamhub.db"),
		JWTSecret:   getEnvWithDefault("JWT_SECRET", "your-secret-key-change-in-production"),
		Debug:       getEnvBool("DEBUG", false),
	}

	// Trim whitespace to avoid trailing spaces/newlines from env sources
	config.PostgresDSN = strings.TrimSpace(os.Getenv("POSTGRES_DSN"))

	config.GoogleClientID = strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_ID"))
	config.GoogleClientSecret = strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_SECRET"))
	config.GitHubClientID = strings.TrimSpace(os.Getenv("GITHUB_CLIENT_ID"))
	config.GitHubClientSecret = strings.TrimSpace(os.Getenv("GITHUB_CLIENT_SECRET"))
	config.OAuthRedirectURI = strings.TrimSpace(os.Getenv("OAUTH_REDIRECT_URI"))
	config.BaseURL = strings.TrimSpace(os.Getenv("BASE_URL"))
	config.FrontendCallback = strings.TrimSpace(os.Getenv("FRONTEND_CALLBACK_URL"))

	config.SMTPHost = strings.TrimSpace(os.Getenv("SMTP_HOST"))
	config.SMTPPort = getEnvWithDefault("SMTP_PORT", "587")
	config.SMTPUser = os.Getenv("SMTP_USER")
	config.SMTPPass = os.Getenv("SMTP_PASS")
	config.SMTPFrom = getEnvWithDefault("SMTP_FROM", "no-reply@localhost")

	config.LeadWebhookSecret = strings.TrimSpace(os.Getenv("LEAD_WEBHOOK_SECRET"))

	allowedOrigins := getEnvWithDefault("ALLOWED_ORIGINS", "*")
	if allowedOrigins == "*" {
		config.AllowedOrigins = []string{"*"}
	} else {
		config.AllowedOrigins = strings.Split(allowedOrigins, ",")
	}

	if config.Environment == "production" {
		config.Debug = false
	}

	return config
}

// Cached config (initialized once per cold start)
var (
	cachedConfig *Config
	configOnce   sync.Once
)

// GetCached returns the process-wide cached Config. It initializes once
// and is reused across requests, avoiding per-request parsing.
func GetCached() *Config {
	configOnce.Do(func() {
		cachedConfig = LoadConfig()
	})
	return cachedConfig
}

// Validate checks that the configuration is usable for the current
// environment.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("PORT must be numeric, got %q", c.Port)
	}

	if c.JWTSecret == "" || c.JWTSecret == "your-secret-key-change-in-production" {
		if c.IsProduction() {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
	}

	if c.IsProduction() && c.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN must be set in production")
	}

	if c.PostgresDSN == "" && c.SQLitePath == "" {
		return fmt.Errorf("either POSTGRES_DSN or SQLITE_PATH must be set")
	}

	return nil
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
