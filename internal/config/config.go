// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.nexusai/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: default model, temperature, embedder, tool-loop bound
//   - Memory: PostgreSQL connection for the vector retrieval backend
//   - Search: Tavily web search settings
//   - Server: listen address, CORS origins
//   - Tracing: optional OTLP trace export
//
// Security: secrets are never logged; sensitive fields are masked in
// MarshalJSON.
//
// Error Handling: sentinel errors for errors.Is() checks, wrapped with
// fmt.Errorf("%w: details", ErrXxx).
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingOpenAIKey indicates OPENAI_API_KEY is not set.
	ErrMissingOpenAIKey = errors.New("missing OPENAI_API_KEY")

	// ErrMissingTavilyKey indicates TAVILY_API_KEY is not set.
	ErrMissingTavilyKey = errors.New("missing TAVILY_API_KEY")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidRetrievalK indicates the retrieval result count is out of range.
	ErrInvalidRetrievalK = errors.New("invalid retrieval k")

	// ErrInvalidMaxToolRounds indicates the tool-loop bound is out of range.
	ErrInvalidMaxToolRounds = errors.New("invalid max tool rounds")

	// ErrInvalidSearchMaxResults indicates the search result count is out of range.
	ErrInvalidSearchMaxResults = errors.New("invalid search max results")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidListenAddr indicates the server listen address is empty.
	ErrInvalidListenAddr = errors.New("invalid listen address")
)

const (
	// DefaultEmbedderModel is the OpenAI embedding model used by the
	// vector retrieval backend. Outputs 1536 dimensions, matching the
	// memories table schema (see memory.VectorDimension).
	DefaultEmbedderModel = "text-embedding-3-small"

	// DefaultRetrievalK is the number of memory entries fetched per turn.
	DefaultRetrievalK = 5

	// DefaultMaxToolRounds bounds the tool-call loop per turn. The model
	// is expected to need at most one search round; the bound exists so a
	// pathological chain of tool calls cannot loop forever.
	DefaultMaxToolRounds = 5
)

// SearchConfig holds Tavily web search settings.
type SearchConfig struct {
	APIKey     string `mapstructure:"api_key" json:"api_key"` // SENSITIVE: masked in MarshalJSON
	MaxResults int    `mapstructure:"max_results" json:"max_results"`
	Topic      string `mapstructure:"topic" json:"topic"`
}

// TracingConfig holds optional OTLP trace export settings.
// Traces are exported to a local collector agent via OTLP HTTP.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled" json:"enabled"`
	AgentHost   string `mapstructure:"agent_host" json:"agent_host"`
	ServiceName string `mapstructure:"service_name" json:"service_name"`
	Environment string `mapstructure:"environment" json:"environment"`
}

// CreatorConfig holds the portfolio metadata surfaced by GET /api/config.
type CreatorConfig struct {
	Name     string `mapstructure:"name" json:"name"`
	GitHub   string `mapstructure:"github" json:"github"`
	LinkedIn string `mapstructure:"linkedin" json:"linkedin"`
}

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
type Config struct {
	// AI configuration
	DefaultModel  string  `mapstructure:"default_model" json:"default_model"` // Display name (e.g., "GPT-4o-mini")
	Temperature   float32 `mapstructure:"temperature" json:"temperature"`
	EmbedderModel string  `mapstructure:"embedder_model" json:"embedder_model"`
	MaxToolRounds int     `mapstructure:"max_tool_rounds" json:"max_tool_rounds"`

	// Memory retrieval configuration
	RetrievalK       int    `mapstructure:"retrieval_k" json:"retrieval_k"`
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Web search configuration
	Search SearchConfig `mapstructure:"search" json:"search"`

	// Server configuration
	ListenAddr  string   `mapstructure:"listen_addr" json:"listen_addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"`

	// Tracing configuration
	Tracing TracingConfig `mapstructure:"tracing" json:"tracing"`

	// Portfolio metadata (GET /api/config)
	Creator CreatorConfig `mapstructure:"creator" json:"creator"`
}

// configDirName is the per-user configuration directory under $HOME.
const configDirName = ".nexusai"

// Load reads configuration from defaults, config file, and environment.
// Validation is NOT performed here: the /api/config endpoint reports
// missing credentials as a payload field instead of failing, so callers
// decide when Validate() is fatal.
func Load() (*Config, error) {
	setDefaults()
	bindEnvVariables()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, configDirName))
	}
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults
	viper.SetDefault("default_model", "GPT-4o-mini")
	viper.SetDefault("temperature", 0.7)
	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("max_tool_rounds", DefaultMaxToolRounds)

	// Memory retrieval defaults
	viper.SetDefault("retrieval_k", DefaultRetrievalK)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "nexusai")
	viper.SetDefault("postgres_password", "nexusai_dev_password")
	viper.SetDefault("postgres_db_name", "nexusai")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Web search defaults
	viper.SetDefault("search.max_results", 5)
	viper.SetDefault("search.topic", "general")

	// Server defaults (Next.js dev frontend)
	viper.SetDefault("listen_addr", ":8000")
	viper.SetDefault("cors_origins", []string{"http://localhost:3000", "http://127.0.0.1:3000"})
	viper.SetDefault("trust_proxy", false)

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.agent_host", "localhost:4318")
	viper.SetDefault("tracing.service_name", "nexusai")
	viper.SetDefault("tracing.environment", "dev")

	// Portfolio metadata defaults
	viper.SetDefault("creator.name", "Hemant Pandey")
	viper.SetDefault("creator.github", "https://github.com/Hemant277123")
	viper.SetDefault("creator.linkedin", "https://www.linkedin.com/in/hemantpandey-f4/")
}

// bindEnvVariables binds sensitive environment variables explicitly.
// OPENAI_API_KEY is read directly by the Genkit OpenAI plugin (not via
// Viper) and only validated here.
func bindEnvVariables() {
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("search.api_key", "TAVILY_API_KEY")
	mustBind("postgres_host", "NEXUSAI_POSTGRES_HOST")
	mustBind("postgres_password", "NEXUSAI_POSTGRES_PASSWORD")
	mustBind("listen_addr", "NEXUSAI_LISTEN_ADDR")
	mustBind("cors_origins", "NEXUSAI_CORS_ORIGINS")
}

// PostgresURL returns the postgres:// connection URL for migrations
// and pool creation.
func (c *Config) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPassword,
		c.PostgresHost, c.PostgresPort,
		c.PostgresDBName, c.PostgresSSLMode,
	)
}

// MarshalJSON masks sensitive fields when the config is serialized.
// When adding new secrets (passwords, API keys, tokens), update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config // prevent recursion
	masked := alias(c)
	if masked.PostgresPassword != "" {
		masked.PostgresPassword = "***"
	}
	if masked.Search.APIKey != "" {
		masked.Search.APIKey = "***"
	}
	data, err := json.Marshal(masked)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return data, nil
}
