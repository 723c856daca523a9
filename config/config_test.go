package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "FFMPEG_PATH", "FFPROBE_PATH", "FRAGMENT_SECONDS", "TRANSCODE_TIMEOUT",
		"MAX_UPLOAD_MB", "DB_CONNECT_ATTEMPTS", "DB_CONNECT_BACKOFF", "FRAGMENT_URL_TTL",
		"ASSET_URL_TTL", "JWT_SECRET", "STAGED_MAX_AGE", "MINIO_USE_SSL", "REDIS_DB",
		"COOKIE_SECURE", "REGISTRATION_ENABLED", "BCRYPT_COST",
	} {
		if v, ok := os.LookupEnv(k); ok {
			os.Unsetenv(k)
			t.Cleanup(func() { os.Setenv(k, v) })
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	assert.Equal(t, "3001", cfg.Port)
	assert.Equal(t, "ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, "ffprobe", cfg.FFprobePath)
	assert.Equal(t, 10, cfg.FragmentSeconds)
	assert.Equal(t, int64(200<<20), cfg.MaxUploadBytes)
	assert.Equal(t, 10*time.Minute, cfg.TranscodeTimeout)
	assert.Equal(t, 5, cfg.DBConnectAttempts)
	assert.Equal(t, 5*time.Second, cfg.DBConnectBackoff)
	assert.Equal(t, time.Hour, cfg.AssetURLTTL)
	assert.Less(t, cfg.FragmentURLTTL, cfg.AssetURLTTL)
	assert.False(t, cfg.MinioUseSSL)
	assert.Equal(t, 6*time.Hour, cfg.StagedMaxAge)
	assert.False(t, cfg.CookieSecure)
	assert.True(t, cfg.RegistrationEnabled)
	assert.Equal(t, 10, cfg.BcryptCost)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("FFMPEG_PATH", "/opt/bin/ffmpeg")
	t.Setenv("FRAGMENT_SECONDS", "6")
	t.Setenv("TRANSCODE_TIMEOUT", "90s")
	t.Setenv("MAX_UPLOAD_MB", "50")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := Load()

	assert.Equal(t, "/opt/bin/ffprobe", cfg.FFprobePath)
	assert.Equal(t, 6, cfg.FragmentSeconds)
	assert.Equal(t, 90*time.Second, cfg.TranscodeTimeout)
	assert.Equal(t, int64(50<<20), cfg.MaxUploadBytes)
	assert.True(t, cfg.MinioUseSSL)
	assert.Equal(t, 0, cfg.RedisDB, "invalid int falls back to default")
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	cfg := Load()

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET is required")

	cfg.JWTSecret = "short"
	require.Error(t, cfg.Validate())

	cfg.JWTSecret = strings.Repeat("s", minJWTSecretBytes)
	require.NoError(t, cfg.Validate())

	cfg.BcryptCost = 3
	require.Error(t, cfg.Validate())
	cfg.BcryptCost = 12
	require.NoError(t, cfg.Validate())

	cfg.FragmentSeconds = 0
	require.Error(t, cfg.Validate())
}

func TestMySQLDSN(t *testing.T) {
	cfg := &Config{DBUser: "u", DBPassword: "p", DBHost: "db", DBPort: "3306", DBName: "fm"}
	assert.Equal(t, "u:p@tcp(db:3306)/fm?charset=utf8mb4&parseTime=true&loc=UTC", cfg.MySQLDSN())
}
