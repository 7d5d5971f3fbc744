package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	RateLimit  RateLimitConfig
	Uploads    UploadsConfig
	Mailer     MailerConfig
	Newsletter NewsletterConfig
	SiteCache  SiteCacheConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// RateLimitConfig tunes the per-client token buckets. Auth and upload routes
// get the stricter bucket.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	StrictPerMinute   float64
	StrictBurst       int
}

// UploadsConfig controls storage location and validation for uploaded assets.
type UploadsConfig struct {
	StorageDir       string
	SignedURLSecret  string
	SignedURLTTL     time.Duration
	MaxDocumentBytes int64
	MaxImageBytes    int64
	DocumentMIMEs    []string
	ImageMIMEs       []string
}

// MailerConfig selects and configures the outbound email transport.
type MailerConfig struct {
	Provider    string // "sendgrid" or "console"
	SendgridKey string
	FromName    string
	FromAddress string
}

// NewsletterConfig tunes the recipient fan-out worker pool.
type NewsletterConfig struct {
	Workers    int
	BufferSize int
}

// SiteCacheConfig governs caching of public content responses.
type SiteCacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 7*24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.RateLimit = RateLimitConfig{
		RequestsPerSecond: v.GetFloat64("RATE_LIMIT_RPS"),
		Burst:             v.GetInt("RATE_LIMIT_BURST"),
		StrictPerMinute:   v.GetFloat64("RATE_LIMIT_STRICT_PER_MINUTE"),
		StrictBurst:       v.GetInt("RATE_LIMIT_STRICT_BURST"),
	}

	maxDocBytes := v.GetInt64("UPLOADS_MAX_DOCUMENT_BYTES")
	if maxDocBytes <= 0 {
		maxDocBytes = 10 * 1024 * 1024
	}
	maxImageBytes := v.GetInt64("UPLOADS_MAX_IMAGE_BYTES")
	if maxImageBytes <= 0 {
		maxImageBytes = 5 * 1024 * 1024
	}
	cfg.Uploads = UploadsConfig{
		StorageDir:       v.GetString("UPLOADS_STORAGE_DIR"),
		SignedURLSecret:  v.GetString("UPLOADS_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("UPLOADS_SIGNED_URL_TTL"), 30*time.Minute),
		MaxDocumentBytes: maxDocBytes,
		MaxImageBytes:    maxImageBytes,
		DocumentMIMEs:    splitAndTrim(v.GetString("UPLOADS_DOCUMENT_MIME_TYPES")),
		ImageMIMEs:       splitAndTrim(v.GetString("UPLOADS_IMAGE_MIME_TYPES")),
	}

	cfg.Mailer = MailerConfig{
		Provider:    v.GetString("MAILER_PROVIDER"),
		SendgridKey: v.GetString("SENDGRID_API_KEY"),
		FromName:    v.GetString("MAILER_FROM_NAME"),
		FromAddress: v.GetString("MAILER_FROM_ADDRESS"),
	}

	cfg.Newsletter = NewsletterConfig{
		Workers:    v.GetInt("NEWSLETTER_WORKERS"),
		BufferSize: v.GetInt("NEWSLETTER_BUFFER_SIZE"),
	}

	cfg.SiteCache = SiteCacheConfig{
		Enabled: v.GetBool("ENABLE_SITE_CACHE"),
		TTL:     parseDuration(v.GetString("SITE_CACHE_TTL"), 5*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "school_site")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "168h")
	v.SetDefault("JWT_ISSUER", "school-site-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("RATE_LIMIT_RPS", 20.0)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("RATE_LIMIT_STRICT_PER_MINUTE", 10.0)
	v.SetDefault("RATE_LIMIT_STRICT_BURST", 5)

	v.SetDefault("UPLOADS_STORAGE_DIR", "./uploads")
	v.SetDefault("UPLOADS_SIGNED_URL_SECRET", "dev_uploads_secret")
	v.SetDefault("UPLOADS_SIGNED_URL_TTL", "30m")
	v.SetDefault("UPLOADS_MAX_DOCUMENT_BYTES", 10*1024*1024)
	v.SetDefault("UPLOADS_MAX_IMAGE_BYTES", 5*1024*1024)
	v.SetDefault("UPLOADS_DOCUMENT_MIME_TYPES", "application/pdf,image/jpeg,image/png,image/webp")
	v.SetDefault("UPLOADS_IMAGE_MIME_TYPES", "image/jpeg,image/png,image/webp")

	v.SetDefault("MAILER_PROVIDER", "console")
	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("MAILER_FROM_NAME", "School Office")
	v.SetDefault("MAILER_FROM_ADDRESS", "office@school.local")

	v.SetDefault("NEWSLETTER_WORKERS", 4)
	v.SetDefault("NEWSLETTER_BUFFER_SIZE", 64)

	v.SetDefault("ENABLE_SITE_CACHE", false)
	v.SetDefault("SITE_CACHE_TTL", "5m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
