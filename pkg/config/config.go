// Package config loads and validates the agent core's process
// configuration (spec §6): LLM, Storage (Postgres + Redis), Sandbox,
// Search, Auth, JWT, Email, and MCP option groups, plus the MCP server
// registry (pkg/mcp's dependency) loaded from a separate YAML file.
//
// Values come from the environment (optionally seeded from a .env file
// via github.com/joho/godotenv, matching the teacher's bootstrap), with
// ${VAR}/$VAR expansion available to any YAML blob through ExpandEnv.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the umbrella object returned by Load and used throughout
// the process: one struct per spec §6 option group.
type Config struct {
	LLM     LLMConfig
	Storage StorageConfig
	Redis   RedisConfig
	Sandbox SandboxConfig
	Search  SearchConfig
	Auth    AuthConfig
	JWT     JWTConfig
	Email   EmailConfig
	MCP     MCPConfig
}

// LLMConfig is the spec §6 LLM group.
type LLMConfig struct {
	APIKey      string  `validate:"required"`
	APIBase     string
	ModelName   string  `validate:"required"`
	Temperature float32 `validate:"min=0,max=2"`
	MaxTokens   int     `validate:"required,min=1"`
}

// StorageConfig is the spec §6 Storage group, adapted to the Postgres
// backing this repository's pkg/store uses in place of the distilled
// spec's sqlite_path (SPEC_FULL.md §B).
type StorageConfig struct {
	PostgresDSN     string `validate:"required"`
	FileStoragePath string `validate:"required"`
}

// RedisConfig backs the durable event stream (pkg/stream, C1).
type RedisConfig struct {
	Host     string `validate:"required"`
	Port     int    `validate:"required,min=1"`
	DB       int
	Password string
}

// SandboxConfig is the spec §6 Sandbox group.
type SandboxConfig struct {
	Address    string
	Image      string
	NamePrefix string
	TTLMinutes int `validate:"min=1"`
	Network    string
	ChromeArgs []string
	Proxy      string
}

// SearchConfig is the spec §6 Search group.
type SearchConfig struct {
	Provider           SearchProvider `validate:"required"`
	GoogleSearchAPIKey string
	GoogleSearchEngine string
}

// AuthConfig is the spec §6 Auth group.
type AuthConfig struct {
	Provider         AuthProvider `validate:"required"`
	PasswordSalt     string
	PasswordHashRounds int `validate:"min=1"`
	LocalAuthUsername  string
	LocalAuthPassword  string
}

// JWTConfig is the spec §6 JWT group.
type JWTConfig struct {
	SecretKey                string `validate:"required"`
	Algorithm                string `validate:"required"`
	AccessTokenExpireMinutes int    `validate:"min=1"`
	RefreshTokenExpireDays   int    `validate:"min=1"`
}

// EmailConfig is the spec §6 Email group. Parsed for config
// completeness; has no consumer in this repository (SPEC_FULL.md §D.5 —
// the verification-code flow is out of scope per spec §1).
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// MCPConfig is the spec §6 MCP group: the path to the MCP server
// definitions file consumed by NewMCPServerRegistryFromFile.
type MCPConfig struct {
	ConfigPath string `validate:"required"`
}

// Load reads process configuration from the environment, optionally
// seeded by a .env file at envFile (a missing envFile is not an error:
// godotenv.Load's not-exist error is ignored, matching the teacher's
// bootstrap tolerance for missing .env in production).
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, NewLoadError(envFile, err)
		}
	}

	cfg := defaultConfig()

	cfg.LLM.APIKey = envOr("LLM_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.APIBase = envOr("LLM_API_BASE", cfg.LLM.APIBase)
	cfg.LLM.ModelName = envOr("LLM_MODEL_NAME", cfg.LLM.ModelName)
	cfg.LLM.Temperature = envFloat32("LLM_TEMPERATURE", cfg.LLM.Temperature)
	cfg.LLM.MaxTokens = envInt("LLM_MAX_TOKENS", cfg.LLM.MaxTokens)

	cfg.Storage.PostgresDSN = envOr("STORAGE_POSTGRES_DSN", cfg.Storage.PostgresDSN)
	cfg.Storage.FileStoragePath = envOr("STORAGE_FILE_PATH", cfg.Storage.FileStoragePath)

	cfg.Redis.Host = envOr("REDIS_HOST", cfg.Redis.Host)
	cfg.Redis.Port = envInt("REDIS_PORT", cfg.Redis.Port)
	cfg.Redis.DB = envInt("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.Password = envOr("REDIS_PASSWORD", cfg.Redis.Password)

	cfg.Sandbox.Address = envOr("SANDBOX_ADDRESS", cfg.Sandbox.Address)
	cfg.Sandbox.Image = envOr("SANDBOX_IMAGE", cfg.Sandbox.Image)
	cfg.Sandbox.NamePrefix = envOr("SANDBOX_NAME_PREFIX", cfg.Sandbox.NamePrefix)
	cfg.Sandbox.TTLMinutes = envInt("SANDBOX_TTL_MINUTES", cfg.Sandbox.TTLMinutes)
	cfg.Sandbox.Network = envOr("SANDBOX_NETWORK", cfg.Sandbox.Network)
	cfg.Sandbox.Proxy = envOr("SANDBOX_PROXY", cfg.Sandbox.Proxy)

	cfg.Search.Provider = SearchProvider(envOr("SEARCH_PROVIDER", string(cfg.Search.Provider)))
	cfg.Search.GoogleSearchAPIKey = envOr("SEARCH_GOOGLE_API_KEY", cfg.Search.GoogleSearchAPIKey)
	cfg.Search.GoogleSearchEngine = envOr("SEARCH_GOOGLE_ENGINE_ID", cfg.Search.GoogleSearchEngine)

	cfg.Auth.Provider = AuthProvider(envOr("AUTH_PROVIDER", string(cfg.Auth.Provider)))
	cfg.Auth.PasswordSalt = envOr("AUTH_PASSWORD_SALT", cfg.Auth.PasswordSalt)
	cfg.Auth.PasswordHashRounds = envInt("AUTH_PASSWORD_HASH_ROUNDS", cfg.Auth.PasswordHashRounds)
	cfg.Auth.LocalAuthUsername = envOr("AUTH_LOCAL_USERNAME", cfg.Auth.LocalAuthUsername)
	cfg.Auth.LocalAuthPassword = envOr("AUTH_LOCAL_PASSWORD", cfg.Auth.LocalAuthPassword)

	cfg.JWT.SecretKey = envOr("JWT_SECRET_KEY", cfg.JWT.SecretKey)
	cfg.JWT.Algorithm = envOr("JWT_ALGORITHM", cfg.JWT.Algorithm)
	cfg.JWT.AccessTokenExpireMinutes = envInt("JWT_ACCESS_TOKEN_EXPIRE_MINUTES", cfg.JWT.AccessTokenExpireMinutes)
	cfg.JWT.RefreshTokenExpireDays = envInt("JWT_REFRESH_TOKEN_EXPIRE_DAYS", cfg.JWT.RefreshTokenExpireDays)

	cfg.Email.Host = envOr("EMAIL_HOST", cfg.Email.Host)
	cfg.Email.Port = envInt("EMAIL_PORT", cfg.Email.Port)
	cfg.Email.Username = envOr("EMAIL_USERNAME", cfg.Email.Username)
	cfg.Email.Password = envOr("EMAIL_PASSWORD", cfg.Email.Password)
	cfg.Email.From = envOr("EMAIL_FROM", cfg.Email.From)

	cfg.MCP.ConfigPath = envOr("MCP_CONFIG_PATH", cfg.MCP.ConfigPath)

	if err := NewValidator(cfg).ValidateAll(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RedisAddr returns "host:port" for use with a redis.Options.Addr field.
func (c RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// TTL returns the sandbox time-to-live as a time.Duration.
func (c SandboxConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat32(key string, fallback float32) float32 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return fallback
}
