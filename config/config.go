package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env        string
	ServerPort int
	// StoreBackend is "postgres" (default) or "memory".
	StoreBackend string
	Database     DatabaseConfig
	Auth         AuthConfig
	HTTP         HTTPConfig
	Log          LogConfig
	Storage      StorageConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

type AuthConfig struct {
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	TokenTTL    time.Duration
	// AllowLegacyPasswords accepts plain-text stored passwords and
	// re-hashes them on login.
	AllowLegacyPasswords bool
	// RequireOwnerRoleForPets restricts pet create/update/delete to Owners.
	RequireOwnerRoleForPets bool
}

type HTTPConfig struct {
	CORSOrigins []string
	// LoginRateLimit is the number of login/register calls allowed per
	// client IP per minute. Zero disables limiting.
	LoginRateLimit int
}

type LogConfig struct {
	Level  string
	Format string
}

type StorageConfig struct {
	// Backend is "minio", "gcs" or empty for no image storage.
	Backend string
	Minio   MinioConfig
	GCS     GCSConfig
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GCSConfig struct {
	Bucket          string
	ProjectID       string
	CredentialsFile string
}

var defaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
	"http://127.0.0.1:3000",
	"http://127.0.0.1:5173",
}

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		_ = godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "petcare"),
		Password: getEnv("DB_PASSWORD", "password"),
		DBName:   getEnv("DB_NAME", "petcare_db"),
		UseSSL:   getEnvBool("DB_SSL", false),
	}

	authConfig := AuthConfig{
		JWTSecret:               strings.TrimSpace(getEnv("JWT_SECRET", "")),
		JWTIssuer:               getEnv("JWT_ISSUER", "petcare-api"),
		JWTAudience:             getEnv("JWT_AUDIENCE", "petcare-clients"),
		TokenTTL:                getEnvDuration("JWT_TTL", 7*24*time.Hour),
		AllowLegacyPasswords:    getEnvBool("ALLOW_LEGACY_PASSWORDS", true),
		RequireOwnerRoleForPets: getEnvBool("REQUIRE_OWNER_ROLE_FOR_PETS", true),
	}

	storageConfig := StorageConfig{
		Backend: strings.ToLower(getEnv("STORAGE_BACKEND", "")),
		Minio: MinioConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "petcare-images"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		GCS: GCSConfig{
			Bucket:          getEnv("GCS_BUCKET", ""),
			ProjectID:       getEnv("GCS_PROJECT_ID", ""),
			CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
		},
	}

	return Config{
		Env:          getEnv("ENV", "production"),
		ServerPort:   getEnvInt("SERVER_PORT", 8080),
		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", "postgres")),
		Database:     dbConfig,
		Auth:         authConfig,
		HTTP: HTTPConfig{
			CORSOrigins:    getEnvList("CORS_ORIGINS", defaultCORSOrigins),
			LoginRateLimit: getEnvInt("LOGIN_RATE_LIMIT", 20),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Storage: storageConfig,
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := strconv.Atoi(strings.TrimSpace(valueStr))
		if err != nil {
			warnInvalid(key, valueStr, err)
			return defaultValue
		}
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := strconv.ParseBool(strings.TrimSpace(valueStr))
		if err != nil {
			warnInvalid(key, valueStr, err)
			return defaultValue
		}
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := time.ParseDuration(strings.TrimSpace(valueStr))
		if err != nil || value <= 0 {
			warnInvalid(key, valueStr, err)
			return defaultValue
		}
		return value
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	var values []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}

func warnInvalid(key, value string, err error) {
	slog.Warn("invalid config value, using default",
		"key", key,
		"value", value,
		"error", fmt.Sprint(err),
	)
}
