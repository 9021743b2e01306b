package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Env  string
	Port int

	DBURL string

	// Token signing. An empty secret is a fatal startup condition,
	// enforced by MustLoad.
	JWTSecret    string
	TokenTTLDays int

	// Transactional email provider.
	MailAPIKey string
	MailAPIURL string
	MailFrom   string

	// Optional worker nudge channel. Empty disables redis.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	OTLPEndpoint string
}

func Load() Config {
	return Config{
		Env:           getEnv("APP_ENV", "dev"),
		Port:          getEnvInt("PORT", 8080),
		DBURL:         buildDBURL(),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		TokenTTLDays:  getEnvInt("TOKEN_TTL_DAYS", 30),
		MailAPIKey:    getEnv("MAIL_API_KEY", ""),
		MailAPIURL:    getEnv("MAIL_API_URL", "https://api.sendgrid.com/v3/mail/send"),
		MailFrom:      getEnv("MAIL_FROM", "taskhub@noreply.com"),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		OTLPEndpoint:  getEnv("OTLP_ENDPOINT", ""),
	}
}

// MustLoad is what the binaries call: it refuses to start without a
// signing secret since every issued token would be unverifiable.
func MustLoad() Config {
	cfg := Load()

	if cfg.JWTSecret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET must be set")
		os.Exit(1)
	}

	return cfg
}

func buildDBURL() string {
	if url := getEnv("DATABASE_URL", ""); url != "" {
		return url
	}

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "taskhub")
	pass := getEnv("DB_PASSWORD", "taskhub")
	name := getEnv("DB_NAME", "taskhub")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			return fallback
		}

		return num
	}

	return fallback
}
