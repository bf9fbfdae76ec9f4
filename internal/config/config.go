package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage backend selectors.
const (
	StorageFile   = "file"
	StorageRedis  = "redis"
	StorageMemory = "memory"
)

// Config holds application configuration
type Config struct {
	API     APIConfig
	Storage StorageConfig
	Pass    PassConfig
	OIDC    OIDCConfig
}

// APIConfig configures the resilient HTTP client
type APIConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// StorageConfig selects and configures the durable session medium
type StorageConfig struct {
	Backend       string // file, redis or memory
	FilePath      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string
}

// PassConfig configures the national-pass OAuth flow
type PassConfig struct {
	ClientID    string
	RedirectURL string
	AuthURL     string
	TokenURL    string
	Scopes      []string
}

// OIDCConfig configures optional ID-token verification
type OIDCConfig struct {
	Issuer   string
	ClientID string
}

// LoadConfig loads configuration from environment variables and a .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")

	viper.AutomaticEnv()

	viper.SetDefault("API_BASE_URL", "http://localhost:3000/api")
	viper.SetDefault("API_TIMEOUT", "30s")
	viper.SetDefault("API_MAX_RETRIES", 3)
	viper.SetDefault("API_RETRY_DELAY", "1s")

	viper.SetDefault("SESSION_STORAGE", StorageFile)
	viper.SetDefault("SESSION_FILE_PATH", "./data/session.json")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("SESSION_KEY_PREFIX", "authkit:")

	viper.SetDefault("PASS_SCOPES", "urn:pass:profile")

	cfg := &Config{
		API: APIConfig{
			BaseURL:    viper.GetString("API_BASE_URL"),
			Timeout:    viper.GetDuration("API_TIMEOUT"),
			MaxRetries: viper.GetInt("API_MAX_RETRIES"),
			RetryDelay: viper.GetDuration("API_RETRY_DELAY"),
		},
		Storage: StorageConfig{
			Backend:       strings.ToLower(viper.GetString("SESSION_STORAGE")),
			FilePath:      viper.GetString("SESSION_FILE_PATH"),
			RedisAddr:     viper.GetString("REDIS_ADDR"),
			RedisPassword: viper.GetString("REDIS_PASSWORD"),
			RedisDB:       viper.GetInt("REDIS_DB"),
			KeyPrefix:     viper.GetString("SESSION_KEY_PREFIX"),
		},
		Pass: PassConfig{
			ClientID:    viper.GetString("PASS_CLIENT_ID"),
			RedirectURL: viper.GetString("PASS_REDIRECT_URL"),
			AuthURL:     viper.GetString("PASS_AUTH_URL"),
			TokenURL:    viper.GetString("PASS_TOKEN_URL"),
			Scopes:      strings.Fields(viper.GetString("PASS_SCOPES")),
		},
		OIDC: OIDCConfig{
			Issuer:   viper.GetString("OIDC_ISSUER"),
			ClientID: viper.GetString("OIDC_CLIENT_ID"),
		},
	}

	return cfg, nil
}
