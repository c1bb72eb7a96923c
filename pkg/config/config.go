package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Port        string `validate:"required,numeric"`
	Env         string `validate:"oneof=development staging production test"`
	MetricsPort string `validate:"omitempty,numeric"`
	LogLevel    string `validate:"oneof=debug info warn error"`
	LogFormat   string `validate:"oneof=text json"`
	// AllowedOrigins lists the browser origins accepted by CORS and the
	// stream upgrade. Empty keeps the stream same-origin.
	AllowedOrigins []string `validate:"dive,required"`

	// AuthMode selects the identity provider: jwt, firebase or both.
	AuthMode                string `validate:"oneof=jwt firebase both"`
	JWTSecret               string `validate:"required_unless=AuthMode firebase"`
	JWTTTL                  time.Duration
	FirebaseCredentialsPath string `validate:"required_unless=AuthMode jwt"`

	PostgresConnStr string `validate:"required"`
	MongoURI        string `validate:"required"`
	MongoDatabase   string `validate:"required"`
	// RedisURL is optional; without it notifications are announced through
	// the Postgres trigger only.
	RedisURL string

	// ChangeChannel is the Postgres NOTIFY channel the change trigger writes to.
	ChangeChannel string `validate:"required"`

	ToastTTL         time.Duration `validate:"gt=0"`
	SearchDebounce   time.Duration `validate:"gt=0"`
	RefreshSchedule  string
	SubscribeTimeout time.Duration `validate:"gt=0"`
	BackoffBase      time.Duration `validate:"gt=0"`
	BackoffMax       time.Duration `validate:"gtfield=BackoffBase"`
	PageSize         int           `validate:"min=1,max=100"`
}

// Load reads .env (when present) and the environment, applying defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, assuming environment variables are set.")
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		MetricsPort: getEnv("METRICS_PORT", "9090"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),

		AllowedOrigins: getList("ALLOWED_ORIGINS"),

		AuthMode:                getEnv("AUTH_MODE", "jwt"),
		JWTSecret:               getEnv("JWT_SECRET", ""),
		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),

		PostgresConnStr: getEnv("POSTGRES_CONN_STR", ""),
		MongoURI:        getEnv("MONGO_URI", ""),
		MongoDatabase:   getEnv("MONGO_DATABASE", "alumni_connect"),
		RedisURL:        getEnv("REDIS_URL", ""),
		ChangeChannel:   getEnv("CHANGE_CHANNEL", "alumni_changes"),

		RefreshSchedule: getEnv("REFRESH_SCHEDULE", "@every 5m"),
	}

	var err error
	durations := []struct {
		key  string
		def  time.Duration
		dest *time.Duration
	}{
		{"JWT_TTL", 72 * time.Hour, &cfg.JWTTTL},
		{"TOAST_TTL", 3 * time.Second, &cfg.ToastTTL},
		{"SEARCH_DEBOUNCE", 300 * time.Millisecond, &cfg.SearchDebounce},
		{"REALTIME_SUBSCRIBE_TIMEOUT", 10 * time.Second, &cfg.SubscribeTimeout},
		{"REALTIME_BACKOFF_BASE", 500 * time.Millisecond, &cfg.BackoffBase},
		{"REALTIME_BACKOFF_MAX", 30 * time.Second, &cfg.BackoffMax},
	}
	for _, d := range durations {
		if *d.dest, err = getDuration(d.key, d.def); err != nil {
			return nil, err
		}
	}
	if cfg.PageSize, err = getInt("PAGE_SIZE", 20); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getList splits a comma separated variable, dropping blank entries
func getList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
