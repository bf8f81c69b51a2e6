package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// AWSConfig holds settings shared by the S3 and DynamoDB adapters.
// Endpoint is only set for local emulators (LocalStack, dynamodb-local).
type AWSConfig struct {
	Region      string
	Endpoint    string
	AccessKey   string
	SecretKey   string
	AccessTable string
}

// StorageConfig selects the blob backend and names one bucket per logical area.
type StorageConfig struct {
	Backend         string // "minio" or "s3"
	OriginalsBucket string
	SecuredBucket   string
	MetadataBucket  string
	Timeout         time.Duration
	MaxUploadBytes  int64
}

// VaultConfig carries the secure document engine secrets and access policy.
// MasterSecret, TokenSecret and the signing key must never be logged.
type VaultConfig struct {
	MasterSecret      string
	KDFIterations     int
	KeyCacheSize      int
	KeyCacheTTL       time.Duration
	SigningKeyPath    string
	SigningKeyPEM     string
	TokenSecret       string
	TokenTTL          time.Duration
	MaxDownloads      int
	AccessWindow      time.Duration
	AccessLimitStore  string // "postgres" or "dynamodb"
	AllowedMediaTypes []string
}

// AuthConfig configures session JWT validation.
type AuthConfig struct {
	SessionSecret string
	Issuer        string
}

// AnchorConfig configures the external hash-anchor collaborator.
// An empty URL disables anchoring.
type AnchorConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level    string
	Format   string
	Timezone string
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost  string
	Port     string
	Database DatabaseConfig
	MinIO    MinIOConfig
	AWS      AWSConfig
	Storage  StorageConfig
	Vault    VaultConfig
	Auth     AuthConfig
	Anchor   AnchorConfig
	Log      LogConfig
}

// MinKDFIterations is the lowest PBKDF2 iteration count accepted at startup.
const MinKDFIterations = 100000

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost: getEnv("APP_HOST", "localhost:8080"),
		Port:    getEnv("PORT", "8080"),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		AWS: AWSConfig{
			Region:      getEnv("AWS_REGION", "us-east-1"),
			Endpoint:    getEnv("AWS_ENDPOINT_URL", ""),
			AccessKey:   getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
			AccessTable: getEnv("DYNAMODB_ACCESS_LIMITS_TABLE", "document_access_limits"),
		},
		Storage: StorageConfig{
			Backend:         getEnv("STORAGE_BACKEND", "minio"),
			OriginalsBucket: getEnv("STORAGE_BUCKET_ORIGINALS", "property-documents"),
			SecuredBucket:   getEnv("STORAGE_BUCKET_SECURED", "secure-documents"),
			MetadataBucket:  getEnv("STORAGE_BUCKET_METADATA", "document-metadata"),
			Timeout:         getEnvDuration("STORAGE_TIMEOUT", 15*time.Second),
			MaxUploadBytes:  int64(getEnvInt("STORAGE_MAX_UPLOAD_BYTES", 10<<20)),
		},
		Vault: VaultConfig{
			MasterSecret:     getEnv("VAULT_MASTER_SECRET", ""),
			KDFIterations:    getEnvInt("VAULT_KDF_ITERATIONS", MinKDFIterations),
			KeyCacheSize:     getEnvInt("VAULT_KEY_CACHE_SIZE", 256),
			KeyCacheTTL:      getEnvDuration("VAULT_KEY_CACHE_TTL", 10*time.Minute),
			SigningKeyPath:   getEnv("VAULT_SIGNING_KEY_PATH", ""),
			SigningKeyPEM:    getEnv("VAULT_SIGNING_KEY_PEM", ""),
			TokenSecret:      getEnv("VAULT_TOKEN_SECRET", ""),
			TokenTTL:         getEnvDuration("VAULT_TOKEN_TTL", 24*time.Hour),
			MaxDownloads:     getEnvInt("VAULT_MAX_DOWNLOADS", 3),
			AccessWindow:     getEnvDuration("VAULT_ACCESS_WINDOW", 7*24*time.Hour),
			AccessLimitStore: getEnv("VAULT_ACCESS_LIMIT_STORE", "postgres"),
			AllowedMediaTypes: getEnvList("VAULT_ALLOWED_MEDIA_TYPES", []string{
				"application/pdf", "image/jpeg", "image/png",
				"application/msword",
				"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			}),
		},
		Auth: AuthConfig{
			SessionSecret: getEnv("AUTH_SESSION_SECRET", ""),
			Issuer:        getEnv("AUTH_ISSUER", "docvault"),
		},
		Anchor: AnchorConfig{
			URL:     getEnv("ANCHOR_URL", ""),
			APIKey:  getEnv("ANCHOR_API_KEY", ""),
			Timeout: getEnvDuration("ANCHOR_TIMEOUT", 30*time.Second),
		},
		Log: LogConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Format:   getEnv("LOG_FORMAT", "json"),
			Timezone: getEnv("APP_TIMEZONE", "UTC"),
		},
	}
}

// ConfigurationError reports startup settings that make the process unable to run.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Validate checks the settings that are fatal at startup.
// It never echoes secret values into the returned error.
func (c *AppConfig) Validate() error {
	var problems []string

	if c.Vault.MasterSecret == "" {
		problems = append(problems, "VAULT_MASTER_SECRET is required")
	} else if _, err := DecodeSecret(c.Vault.MasterSecret); err != nil {
		problems = append(problems, "VAULT_MASTER_SECRET: "+err.Error())
	}
	if c.Vault.KDFIterations < MinKDFIterations {
		problems = append(problems, fmt.Sprintf("VAULT_KDF_ITERATIONS must be at least %d", MinKDFIterations))
	}
	if len(c.Vault.TokenSecret) < 32 {
		problems = append(problems, "VAULT_TOKEN_SECRET must be at least 32 bytes")
	}
	if c.Vault.SigningKeyPath == "" && c.Vault.SigningKeyPEM == "" {
		problems = append(problems, "VAULT_SIGNING_KEY_PATH or VAULT_SIGNING_KEY_PEM is required")
	}
	if c.Vault.MaxDownloads <= 0 {
		problems = append(problems, "VAULT_MAX_DOWNLOADS must be positive")
	}
	if c.Vault.AccessWindow <= 0 {
		problems = append(problems, "VAULT_ACCESS_WINDOW must be positive")
	}
	switch c.Vault.AccessLimitStore {
	case "postgres", "dynamodb":
	default:
		problems = append(problems, "VAULT_ACCESS_LIMIT_STORE must be postgres or dynamodb")
	}
	switch c.Storage.Backend {
	case "minio", "s3":
	default:
		problems = append(problems, "STORAGE_BACKEND must be minio or s3")
	}
	if c.Storage.Timeout <= 0 {
		problems = append(problems, "STORAGE_TIMEOUT must be positive")
	}
	if c.Auth.SessionSecret == "" {
		problems = append(problems, "AUTH_SESSION_SECRET is required")
	}

	if len(problems) > 0 {
		return &ConfigurationError{Problems: problems}
	}
	return nil
}

// DecodeSecret decodes a base64 (standard or URL alphabet, padded or not) master secret
// and requires at least 32 bytes of key material.
func DecodeSecret(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	encodings := []*base64.Encoding{
		base64.URLEncoding, base64.RawURLEncoding, base64.StdEncoding, base64.RawStdEncoding,
	}
	for _, enc := range encodings {
		b, err := enc.DecodeString(s)
		if err != nil {
			continue
		}
		if len(b) < 32 {
			return nil, fmt.Errorf("decoded secret is %d bytes, need at least 32", len(b))
		}
		return b, nil
	}
	return nil, fmt.Errorf("secret is not valid base64")
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
