package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	Port       string
	CORSOrigin string

	FFmpegPath       string
	FFprobePath      string
	FragmentSeconds  int    // fixed fragment length produced by the segmenter
	FragmentBitrate  string // e.g., "96k"
	TranscodeTimeout time.Duration
	ProbeTimeout     time.Duration

	TempDir        string // staging area for raw uploads and segmentation output
	StagedMaxAge   time.Duration
	MaxUploadBytes int64
	MaxCoverBytes  int64

	DBHost            string
	DBPort            string
	DBUser            string
	DBPassword        string
	DBName            string
	DBConnectAttempts int
	DBConnectBackoff  time.Duration

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool

	AssetURLTTL    time.Duration // cover and lyrics
	FragmentURLTTL time.Duration // fragments are fetched just-in-time, keep it short

	// Redis配置（签名URL缓存）
	RedisHost       string
	RedisPort       string
	RedisPassword   string
	RedisDB         int
	URLCacheEnabled bool

	JWTSecret           string
	JWTTTL              time.Duration
	BcryptCost          int
	CookieSecure        bool
	RegistrationEnabled bool
	ProcessTimeout      time.Duration // upper bound for one process-save request

	LogLevel string
	LogFile  string
}

const minJWTSecretBytes = 32

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return intVal
		}
		log.Printf("Invalid %s=%q, using default %d", key, value, fallback)
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intVal
		}
		log.Printf("Invalid %s=%q, using default %d", key, value, fallback)
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("90s", "10m").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
		log.Printf("Invalid %s=%q, using default %s", key, value, fallback)
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	ffmpegPath := getEnv("FFMPEG_PATH", "ffmpeg")

	return &Config{
		Port:       getEnv("PORT", "3001"),
		CORSOrigin: getEnv("CORS_ORIGIN", "http://localhost:5173"),

		FFmpegPath:       ffmpegPath,
		FFprobePath:      getEnv("FFPROBE_PATH", strings.Replace(ffmpegPath, "ffmpeg", "ffprobe", 1)),
		FragmentSeconds:  getEnvInt("FRAGMENT_SECONDS", 10),
		FragmentBitrate:  getEnv("FRAGMENT_BITRATE", "96k"),
		TranscodeTimeout: getEnvDuration("TRANSCODE_TIMEOUT", 10*time.Minute),
		ProbeTimeout:     getEnvDuration("PROBE_TIMEOUT", time.Minute),

		TempDir:        getEnv("TEMP_DIR", filepath.Join(os.TempDir(), "fragfm")),
		StagedMaxAge:   getEnvDuration("STAGED_MAX_AGE", 6*time.Hour),
		MaxUploadBytes: getEnvInt64("MAX_UPLOAD_MB", 200) << 20,
		MaxCoverBytes:  getEnvInt64("MAX_COVER_MB", 15) << 20,

		DBHost:            getEnv("DB_HOST", "127.0.0.1"),
		DBPort:            getEnv("DB_PORT", "3306"),
		DBUser:            getEnv("DB_USER", "root"),
		DBPassword:        os.Getenv("DB_PASSWORD"), // no hardcoded default for the password
		DBName:            getEnv("DB_NAME", "fragfm"),
		DBConnectAttempts: getEnvInt("DB_CONNECT_ATTEMPTS", 5),
		DBConnectBackoff:  getEnvDuration("DB_CONNECT_BACKOFF", 5*time.Second),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "fragfm"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		AssetURLTTL:    getEnvDuration("ASSET_URL_TTL", time.Hour),
		FragmentURLTTL: getEnvDuration("FRAGMENT_URL_TTL", 10*time.Minute),

		RedisHost:       getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:       getEnv("REDIS_PORT", "6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""), // 默认无密码
		RedisDB:         getEnvInt("REDIS_DB", 0),
		URLCacheEnabled: getEnvBool("URL_CACHE_ENABLED", false),

		JWTSecret:           strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTTTL:              getEnvDuration("JWT_TTL", 7*24*time.Hour),
		BcryptCost:          getEnvInt("BCRYPT_COST", 10),
		CookieSecure:        getEnvBool("COOKIE_SECURE", false),
		RegistrationEnabled: getEnvBool("REGISTRATION_ENABLED", true),
		ProcessTimeout:      getEnvDuration("PROCESS_TIMEOUT", 20*time.Minute),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),
	}
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < minJWTSecretBytes {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretBytes)
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost)
	}
	if c.FragmentSeconds <= 0 {
		return fmt.Errorf("FRAGMENT_SECONDS must be positive, got %d", c.FragmentSeconds)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}
	if c.DBConnectAttempts <= 0 {
		return fmt.Errorf("DB_CONNECT_ATTEMPTS must be positive, got %d", c.DBConnectAttempts)
	}
	return nil
}

// MySQLDSN builds the go-sql-driver DSN.
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// RedisAddr returns host:port for the URL cache.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}
