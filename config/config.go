// Package config loads runtime settings from the environment. A .env file in
// the working directory is honoured when present; real environment variables
// win over it.
package config

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port    string
	Env     string
	Debug   bool
	AppName string

	Database DatabaseConfig
	KDF      KDFConfig
	Session  SessionConfig
	Token    TokenConfig
	SMTP     SMTPConfig
	S3       S3Config

	DocumentPrefix     string
	TempPasswordLength int
	MaxUploadBytes     int64
	// ActivityLog is a file receiving JSON audit records. Empty logs them.
	ActivityLog string
}

type DatabaseConfig struct {
	// Driver is either "sqlite" or "postgres".
	Driver string
	DSN    string
}

type KDFConfig struct {
	Iterations    int
	KeyLength     int
	Digest        string
	SaltBytes     int
	MaxConcurrent int
}

type SessionConfig struct {
	CookieName     string
	CookieSecure   bool
	CookieHTTPOnly bool
	CookieSameSite string
	Expiration     time.Duration
	// Secret signs session cookies. Defaults to the token secret.
	Secret string
}

type TokenConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
	// LinkBase is the public URL of the email verification route.
	LinkBase string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Enabled reports whether mail should go through SMTP.
func (s SMTPConfig) Enabled() bool {
	return s.Host != ""
}

type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string
	Key      string
	Secret   string
	// PublicBase overrides the URL prefix of stored objects.
	PublicBase string
}

// Enabled reports whether uploads should go to S3.
func (s S3Config) Enabled() bool {
	return s.Bucket != ""
}

// Load reads .env (if any) and the environment.
func Load() Config {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() Config {
	cfg := Config{
		Port:    getEnv("PORT", "8080"),
		Env:     getEnv("APP_ENV", "development"),
		Debug:   parseBool("APP_DEBUG", false),
		AppName: getEnv("APP_NAME", "Members"),

		Database: DatabaseConfig{
			Driver: strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
			DSN:    getEnv("DB_DSN", "file:members.db?cache=shared"),
		},
		KDF: KDFConfig{
			Iterations:    parseInt("KDF_ITERATIONS", 1250),
			KeyLength:     parseInt("KDF_KEY_LENGTH", 64),
			Digest:        getEnv("KDF_DIGEST", "sha512"),
			SaltBytes:     parseInt("KDF_SALT_BYTES", 2048),
			MaxConcurrent: parseInt("KDF_MAX_CONCURRENT", runtime.NumCPU()),
		},
		Session: SessionConfig{
			CookieName:     getEnv("SESSION_COOKIE", "member_session"),
			CookieSecure:   parseBool("SESSION_COOKIE_SECURE", false),
			CookieHTTPOnly: parseBool("SESSION_COOKIE_HTTP_ONLY", true),
			CookieSameSite: getEnv("SESSION_COOKIE_SAME_SITE", "Lax"),
			Expiration:     parseDuration("SESSION_TTL", 24*time.Hour),
			Secret:         getEnv("SESSION_SECRET", os.Getenv("TOKEN_SECRET")),
		},
		Token: TokenConfig{
			Secret:   os.Getenv("TOKEN_SECRET"),
			Issuer:   getEnv("TOKEN_ISSUER", "go-member-auth"),
			TTL:      parseDuration("TOKEN_TTL", 72*time.Hour),
			LinkBase: getEnv("EMAIL_LINK_BASE", "http://localhost:8080/auth/emailVerify"),
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     parseInt("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     getEnv("SMTP_FROM", "no-reply@localhost"),
		},
		S3: S3Config{
			Bucket:     os.Getenv("S3_BUCKET"),
			Region:     getEnv("S3_REGION", "us-east-1"),
			Endpoint:   os.Getenv("S3_ENDPOINT"),
			Key:        os.Getenv("S3_ACCESS_KEY"),
			Secret:     os.Getenv("S3_SECRET_KEY"),
			PublicBase: os.Getenv("S3_PUBLIC_BASE"),
		},

		DocumentPrefix:     getEnv("DOCUMENT_PREFIX", "verifications/"),
		TempPasswordLength: parseInt("TEMP_PASSWORD_LENGTH", 16),
		MaxUploadBytes:     int64(parseInt("MAX_UPLOAD_BYTES", 10<<20)),
		ActivityLog:        os.Getenv("ACTIVITY_LOG"),
	}
	return cfg
}

// IsProduction reports whether APP_ENV is production.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return def
		}
		return b
	}
	return def
}

func parseInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return def
		}
		return n
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return def
		}
		return d
	}
	return def
}
