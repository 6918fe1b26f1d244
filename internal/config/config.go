package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	BackendFirestore = "firestore"
	BackendPostgres  = "postgres"
	BackendMemory    = "memory"

	AuthFirebase = "firebase"
	AuthClerk    = "clerk"
)

// Config holds all configuration for the API.
// Values come from the environment (optionally seeded from .env).
type Config struct {
	Port         string `mapstructure:"PORT"`
	StoreBackend string `mapstructure:"STORE_BACKEND"`
	DatabaseURL  string `mapstructure:"DATABASE_URL"`

	GCPProjectID            string `mapstructure:"GCP_PROJECT_ID"`
	FirebaseCredentials     string `mapstructure:"FIREBASE_CREDENTIALS"`
	FirebaseCredentialsJSON string `mapstructure:"FIREBASE_CREDENTIALS_JSON"` // base64

	AuthProvider   string `mapstructure:"AUTH_PROVIDER"`
	ClerkSecretKey string `mapstructure:"CLERK_SECRET_KEY"`

	PubSubTopic        string `mapstructure:"PUBSUB_TOPIC"`
	PubSubSubscription string `mapstructure:"PUBSUB_SUBSCRIPTION"`

	MetricsUser string `mapstructure:"METRICS_USER"`
	MetricsPass string `mapstructure:"METRICS_PASS"`
	PprofSecret string `mapstructure:"PPROF_SECRET"`

	RateLimit float64 `mapstructure:"RATE_LIMIT"`
	RateBurst int     `mapstructure:"RATE_BURST"`

	Timezone      string `mapstructure:"TIMEZONE"`
	LogFile       string `mapstructure:"LOG_FILE"`
	CloudLogging  bool   `mapstructure:"CLOUD_LOGGING"`
	WeekWindow    int    `mapstructure:"WEEK_WINDOW"`
	Workers       int    `mapstructure:"WORKERS"`
	AllowedOrigin string `mapstructure:"ALLOWED_ORIGIN"`

	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
	SessionIdleTTL  time.Duration `mapstructure:"SESSION_IDLE_TTL"`
}

// Load reads .env (if present) and the environment.
func Load(envFiles ...string) (Config, error) {
	// Missing .env is normal in production.
	_ = godotenv.Load(envFiles...)

	v := viper.New()
	v.SetDefault("PORT", "8080")
	v.SetDefault("STORE_BACKEND", BackendFirestore)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("GCP_PROJECT_ID", "")
	v.SetDefault("FIREBASE_CREDENTIALS", "")
	v.SetDefault("FIREBASE_CREDENTIALS_JSON", "")
	v.SetDefault("AUTH_PROVIDER", AuthFirebase)
	v.SetDefault("CLERK_SECRET_KEY", "")
	v.SetDefault("PUBSUB_TOPIC", "")
	v.SetDefault("PUBSUB_SUBSCRIPTION", "")
	v.SetDefault("METRICS_USER", "")
	v.SetDefault("METRICS_PASS", "")
	v.SetDefault("PPROF_SECRET", "")
	v.SetDefault("RATE_LIMIT", 20.0)
	v.SetDefault("RATE_BURST", 40)
	v.SetDefault("TIMEZONE", "UTC")
	v.SetDefault("LOG_FILE", "")
	v.SetDefault("CLOUD_LOGGING", false)
	v.SetDefault("WEEK_WINDOW", 12)
	v.SetDefault("WORKERS", 4)
	v.SetDefault("ALLOWED_ORIGIN", "*")
	v.SetDefault("SHUTDOWN_TIMEOUT", 15*time.Second)
	v.SetDefault("SESSION_IDLE_TTL", 30*time.Minute)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendFirestore:
		if c.GCPProjectID == "" {
			return fmt.Errorf("GCP_PROJECT_ID is required for the firestore backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.AuthProvider {
	case AuthFirebase:
	case AuthClerk:
		if c.ClerkSecretKey == "" {
			return fmt.Errorf("CLERK_SECRET_KEY is required for clerk auth")
		}
	default:
		return fmt.Errorf("unknown AUTH_PROVIDER %q", c.AuthProvider)
	}

	if c.WeekWindow < 1 {
		return fmt.Errorf("WEEK_WINDOW must be positive")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	return nil
}

func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
