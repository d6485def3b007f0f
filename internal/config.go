package internal

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	Port        int
	LogLevel    string
	DatabaseUrl string

	// Application base URL (for billing redirects)
	BaseURL string

	// JWT secret for verifying API bearer tokens
	JWTSecret string

	// Storage Configuration
	StorageProvider string // "local" or "r2"

	// Local Storage (development)
	LocalStoragePath string // Base directory for local file storage
	LocalStorageURL  string // Base URL for accessing local files

	// R2 Storage (production)
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string // Optional custom domain URL

	// Legacy Firestore store (read during the lazy migration window)
	FirestoreProjectID       string
	FirestoreCredentialsFile string

	// Render queue poller configuration
	PollerEnabled      bool
	PollerInterval     time.Duration
	PollerTimeout      time.Duration
	PollerShutdownWait time.Duration

	// Video rendering service configuration
	VideoProvider       string // "http" or "mock"
	VideoServiceURL     string
	VideoTokenURL       string
	VideoServiceAPIKey  string
	VideoMaxRetries     int
	VideoRetryDelay     time.Duration
	VideoRequestTimeout time.Duration

	// AI Provider Configuration
	AIProvider       string // "anthropic" or "mock"
	AnthropicAPIKey  string
	AnthropicModel   string
	AIMaxRetries     int
	AIRetryBaseDelay time.Duration
	AIRequestTimeout time.Duration

	// API rate limiting
	RateLimitMax    int
	RateLimitWindow time.Duration

	// Stripe Billing Configuration
	// In development, billing handlers reply with an error if these are
	// empty.
	StripeSecretKey     string // Stripe API secret key (sk_test_... or sk_live_...)
	StripeWebhookSecret string // Stripe webhook signing secret (whsec_...)

	// Stripe price IDs for subscription plans
	StripeProMonthlyPriceID     string
	StripeProYearlyPriceID      string
	StripePremiumMonthlyPriceID string
	StripePremiumYearlyPriceID  string
	StripeVIPMonthlyPriceID     string
	StripeVIPYearlyPriceID      string

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not
	// recommended)
	MetricsUsername string
	MetricsPassword string
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		BaseURL: getEnv("BASE_URL", "http://localhost:8080"),

		// Storage defaults to local filesystem for development
		StorageProvider:  getEnv("STORAGE_PROVIDER", "local"),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./storage"),
		LocalStorageURL:  getEnv("LOCAL_STORAGE_URL", "http://localhost:8080/files"),

		// R2 configuration (production only)
		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),
		R2PublicURL:       getEnv("R2_PUBLIC_URL", ""),

		// Legacy store (optional — lazy migration is skipped without it)
		FirestoreProjectID:       getEnv("FIRESTORE_PROJECT_ID", ""),
		FirestoreCredentialsFile: getEnv("FIRESTORE_CREDENTIALS_FILE", ""),

		// Poller defaults
		PollerEnabled:      getEnvBool("POLLER_ENABLED", true),
		PollerInterval:     getEnvDuration("POLLER_INTERVAL", 15*time.Second),
		PollerTimeout:      getEnvDuration("POLLER_TIMEOUT", time.Minute),
		PollerShutdownWait: getEnvDuration("POLLER_SHUTDOWN_WAIT", 30*time.Second),

		// Video rendering defaults
		VideoProvider:       getEnv("VIDEO_PROVIDER", "mock"),
		VideoServiceURL:     getEnv("VIDEO_SERVICE_URL", ""),
		VideoTokenURL:       getEnv("VIDEO_TOKEN_URL", ""),
		VideoServiceAPIKey:  getEnv("VIDEO_SERVICE_API_KEY", ""),
		VideoMaxRetries:     getEnvInt("VIDEO_MAX_RETRIES", 2),
		VideoRetryDelay:     getEnvDuration("VIDEO_RETRY_DELAY", 5*time.Second),
		VideoRequestTimeout: getEnvDuration("VIDEO_REQUEST_TIMEOUT", 60*time.Second),

		// AI provider defaults
		AIProvider:       getEnv("AI_PROVIDER", "mock"),
		AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:   getEnv("ANTHROPIC_MODEL", ""),
		AIMaxRetries:     getEnvInt("AI_MAX_RETRIES", 2),
		AIRetryBaseDelay: getEnvDuration("AI_RETRY_BASE_DELAY", 2*time.Second),
		AIRequestTimeout: getEnvDuration("AI_REQUEST_TIMEOUT", 60*time.Second),

		// Rate limiting defaults
		RateLimitMax:    getEnvInt("RATE_LIMIT_MAX", 120),
		RateLimitWindow: getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),

		// Stripe billing (optional)
		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),

		StripeProMonthlyPriceID:     getEnv("STRIPE_PRO_MONTHLY_PRICE_ID", ""),
		StripeProYearlyPriceID:      getEnv("STRIPE_PRO_YEARLY_PRICE_ID", ""),
		StripePremiumMonthlyPriceID: getEnv("STRIPE_PREMIUM_MONTHLY_PRICE_ID", ""),
		StripePremiumYearlyPriceID:  getEnv("STRIPE_PREMIUM_YEARLY_PRICE_ID", ""),
		StripeVIPMonthlyPriceID:     getEnv("STRIPE_VIP_MONTHLY_PRICE_ID", ""),
		StripeVIPYearlyPriceID:      getEnv("STRIPE_VIP_YEARLY_PRICE_ID", ""),

		// Metrics authentication
		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	// Required
	cfg.DatabaseUrl = os.Getenv("DATABASE_URL")
	if cfg.DatabaseUrl == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	// Validate storage configuration
	if cfg.StorageProvider == "r2" {
		if cfg.R2AccountID == "" {
			return nil, fmt.Errorf("R2_ACCOUNT_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2AccessKeyID == "" {
			return nil, fmt.Errorf("R2_ACCESS_KEY_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2SecretAccessKey == "" {
			return nil, fmt.Errorf("R2_SECRET_ACCESS_KEY is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2BucketName == "" {
			return nil, fmt.Errorf("R2_BUCKET_NAME is required when STORAGE_PROVIDER is 'r2'")
		}
	} else if cfg.StorageProvider != "local" {
		return nil, fmt.Errorf("STORAGE_PROVIDER must be either 'local' or 'r2', got: %s", cfg.StorageProvider)
	}

	// Validate AI provider configuration
	if cfg.AIProvider == "anthropic" {
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required when AI_PROVIDER is 'anthropic'")
		}
	} else if cfg.AIProvider != "mock" {
		return nil, fmt.Errorf("AI_PROVIDER must be either 'anthropic' or 'mock', got: %s", cfg.AIProvider)
	}

	// Validate video provider configuration
	if cfg.VideoProvider == "http" {
		if cfg.VideoServiceURL == "" {
			return nil, fmt.Errorf("VIDEO_SERVICE_URL is required when VIDEO_PROVIDER is 'http'")
		}
		if cfg.VideoTokenURL == "" {
			return nil, fmt.Errorf("VIDEO_TOKEN_URL is required when VIDEO_PROVIDER is 'http'")
		}
		if cfg.VideoServiceAPIKey == "" {
			return nil, fmt.Errorf("VIDEO_SERVICE_API_KEY is required when VIDEO_PROVIDER is 'http'")
		}
	} else if cfg.VideoProvider != "mock" {
		return nil, fmt.Errorf("VIDEO_PROVIDER must be either 'http' or 'mock', got: %s", cfg.VideoProvider)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
