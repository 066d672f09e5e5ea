package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode     Mode
	HTTPAddr string
	LogMode  string // dev|prod

	DBDriver string // sqlite|postgres
	DBDSN    string

	AuthHMACSecret string

	CORSOrigins []string

	BlobBasePath  string
	BlobPublicURL string // optional: serve storage keys from a CDN/base URL instead of file://

	CacheDriver string // memory|redis|none
	RedisAddr   string
	CacheTTL    time.Duration

	RetakePolicy      string // best|latest
	RequireAllAnswers bool
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load(files ...string) Config {
	_ = godotenv.Load(files...)
	return FromEnv()
}

func FromEnv() Config {
	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeOffline
	}
	defLog := "dev"
	if mode == ModeOnline {
		defLog = "prod"
	}
	// the dev key only exists offline; online mode must be given a secret
	defSecret := devHMACSecret
	if mode == ModeOnline {
		defSecret = ""
	}
	defOrigins := "http://localhost:3000"
	if mode == ModeOnline {
		defOrigins = ""
	}
	return Config{
		Mode:              mode,
		HTTPAddr:          envOr("HTTP_ADDR", ":8080"),
		LogMode:           envOr("LOG_MODE", defLog),
		DBDriver:          envOr("DB_DRIVER", "sqlite"),
		DBDSN:             envOr("DB_DSN", ""),
		AuthHMACSecret:    envOr("AUTH_HMAC_SECRET", defSecret),
		CORSOrigins:       csvOr("CORS_ORIGINS", defOrigins),
		BlobBasePath:      envOr("BLOB_BASE_PATH", "./data"),
		BlobPublicURL:     os.Getenv("BLOB_PUBLIC_URL"),
		CacheDriver:       envOr("CACHE_DRIVER", "memory"),
		RedisAddr:         envOr("REDIS_ADDR", "localhost:6379"),
		CacheTTL:          time.Duration(envInt("CACHE_TTL_SECONDS", 300)) * time.Second,
		RetakePolicy:      strings.ToLower(envOr("QUIZ_RETAKE_POLICY", "best")),
		RequireAllAnswers: envBool("QUIZ_REQUIRE_ALL_ANSWERS", false),
	}
}

const devHMACSecret = "supersecret-dev-key"

var ErrMissingSecret = errors.New("config: AUTH_HMAC_SECRET is required in online mode")

// Validate rejects settings the service must not start with.
func (c Config) Validate() error {
	if c.Mode == ModeOnline && (c.AuthHMACSecret == "" || c.AuthHMACSecret == devHMACSecret) {
		return ErrMissingSecret
	}
	return nil
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}

func envInt(k string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(k)))
	if err != nil || v < 0 {
		return def
	}
	return v
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
