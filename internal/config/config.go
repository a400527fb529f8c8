package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env        string
	ListenAddr string

	StoreDriver  string // postgres|sqlite|mongo|memory
	DatabaseURL  string
	SQLitePath   string
	MongoURI     string
	MongoDB      string
	StoreTimeout time.Duration

	MergeMode string // fold|link

	NotifyWorkers int
	NotifyQueue   int
	NotifyTimeout time.Duration

	SMS  SMSConfig
	AMQP AMQPConfig

	CORSOrigins []string
	LogLevel    string
	LogFormat   string
}

type SMSConfig struct {
	Username   string
	APIKey     string
	SenderID   string
	BaseURL    string
	RatePerSec float64
}

type AMQPConfig struct {
	URL      string
	Exchange string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Load reads the environment, after applying a .env file when one exists.
// The returned error describes a configuration the process cannot start
// with; cfg is still populated so callers can log what was read.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		Env:        getenv("APP_ENV", "development"),
		ListenAddr: getenv("LISTEN_ADDR", ":8080"),

		DatabaseURL:  os.Getenv("DATABASE_URL"),
		SQLitePath:   getenv("SQLITE_PATH", "uzima.db"),
		MongoURI:     getenv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:      getenv("MONGO_DB", "uzima"),
		StoreTimeout: getenvDuration("STORE_TIMEOUT", 5*time.Second),

		MergeMode: strings.ToLower(getenv("MERGE_MODE", "fold")),

		NotifyWorkers: getenvInt("NOTIFY_WORKERS", 2),
		NotifyQueue:   getenvInt("NOTIFY_QUEUE", 256),
		NotifyTimeout: getenvDuration("NOTIFY_TIMEOUT", 10*time.Second),

		SMS: SMSConfig{
			Username:   getenv("AFRICASTALKING_USERNAME", "sandbox"),
			APIKey:     os.Getenv("AFRICASTALKING_API_KEY"),
			SenderID:   os.Getenv("AFRICASTALKING_SENDER_ID"),
			BaseURL:    getenv("AFRICASTALKING_BASE_URL", "https://api.africastalking.com/version1"),
			RatePerSec: getenvFloat("SMS_RATE_PER_SEC", 1),
		},
		AMQP: AMQPConfig{
			URL:      os.Getenv("AMQP_URL"),
			Exchange: getenv("AMQP_EXCHANGE", "climate.alerts"),
		},

		CORSOrigins: getenvList("CORS_ORIGINS", []string{"http://localhost:3000"}),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		LogFormat:   getenv("LOG_FORMAT", "text"),
	}

	def := "memory"
	if cfg.DatabaseURL != "" {
		def = "postgres"
	}
	cfg.StoreDriver = strings.ToLower(getenv("STORE_DRIVER", def))

	switch cfg.StoreDriver {
	case "postgres":
		if cfg.DatabaseURL == "" {
			return cfg, fmt.Errorf("STORE_DRIVER=postgres requires DATABASE_URL")
		}
	case "sqlite", "mongo", "memory":
	default:
		return cfg, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	if cfg.MergeMode != "fold" && cfg.MergeMode != "link" {
		return cfg, fmt.Errorf("unknown MERGE_MODE %q", cfg.MergeMode)
	}
	return cfg, nil
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getenvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
