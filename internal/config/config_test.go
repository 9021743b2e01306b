package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 30, cfg.TokenTTLDays)
	assert.Equal(t, "taskhub@noreply.com", cfg.MailFrom)
	assert.Empty(t, cfg.JWTSecret)
	assert.Empty(t, cfg.RedisAddr)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("PORT", "9000")
	t.Setenv("JWT_SECRET", "s3cr3t")
	t.Setenv("TOKEN_TTL_DAYS", "7")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/taskhub?sslmode=disable")

	cfg := Load()

	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "s3cr3t", cfg.JWTSecret)
	assert.Equal(t, 7, cfg.TokenTTLDays)
	assert.Equal(t, "postgres://u:p@db:5432/taskhub?sslmode=disable", cfg.DBURL)
}

func TestDBURLFromParts(t *testing.T) {
	t.Setenv("DB_HOST", "10.0.0.5")
	t.Setenv("DB_PORT", "5433")
	t.Setenv("DB_USER", "app")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_NAME", "tasks")

	cfg := Load()

	assert.Equal(t, "postgres://app:pw@10.0.0.5:5433/tasks?sslmode=disable", cfg.DBURL)
}

func TestGetEnvIntBadValue(t *testing.T) {
	t.Setenv("PORT", "not-a-number")

	cfg := Load()

	assert.Equal(t, 8080, cfg.Port)
}
