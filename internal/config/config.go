package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for AskDesk
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Vector    VectorConfig    `mapstructure:"vector"`
	RAG       RAGConfig       `mapstructure:"rag"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Calendar  CalendarConfig  `mapstructure:"calendar"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host         string   `mapstructure:"host"`
	Port         int      `mapstructure:"port"`
	BaseURL      string   `mapstructure:"base_url"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// AdminConfig holds admin authentication configuration
type AdminConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// DatabaseConfig holds the metadata database configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// StorageConfig holds uploaded file storage configuration
type StorageConfig struct {
	Documents string `mapstructure:"documents"`
}

// VectorConfig holds the pgvector store configuration
type VectorConfig struct {
	DSN       string `mapstructure:"dsn"`
	Dimension int    `mapstructure:"dimension"`
	MaxConns  int32  `mapstructure:"max_conns"`
}

// RAGConfig holds chunking and retrieval configuration
type RAGConfig struct {
	ChunkSize           int     `mapstructure:"chunk_size"`
	ChunkOverlap        int     `mapstructure:"chunk_overlap"`
	MinChunkLength      int     `mapstructure:"min_chunk_length"`
	TopK                int     `mapstructure:"top_k"`
	ToolTopK            int     `mapstructure:"tool_top_k"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	HistoryTurns        int     `mapstructure:"history_turns"`
}

// LLMConfig holds chat model configuration
type LLMConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// EmbeddingConfig holds embedding client configuration
type EmbeddingConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	Model             string        `mapstructure:"model"`
	BatchSize         int           `mapstructure:"batch_size"`
	BatchPause        time.Duration `mapstructure:"batch_pause"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	RetryDelay        time.Duration `mapstructure:"retry_delay"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

// ToolsConfig holds tool execution limits
type ToolsConfig struct {
	MaxRounds   int           `mapstructure:"max_rounds"`
	Timeout     time.Duration `mapstructure:"timeout"`
	ReadRetries int           `mapstructure:"read_retries"`
}

// CalendarConfig holds calendar tool defaults
type CalendarConfig struct {
	DefaultID        string `mapstructure:"default_id"`
	Timezone         string `mapstructure:"timezone"`
	BusinessDayStart string `mapstructure:"business_day_start"`
	BusinessDayEnd   string `mapstructure:"business_day_end"`
	SlotMinutes      int    `mapstructure:"slot_minutes"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// TelemetryConfig holds tracing configuration
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
}

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("ASKDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Embedding endpoint falls back to the chat endpoint
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = cfg.LLM.BaseURL
	}
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = cfg.LLM.APIKey
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the configuration produced by defaults alone.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	cfg.Embedding.BaseURL = cfg.LLM.BaseURL
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.allow_origins", []string{"*"})

	v.SetDefault("admin.api_key", "")

	v.SetDefault("database.path", "./data/askdesk.db")
	v.SetDefault("storage.documents", "./data/documents")

	v.SetDefault("vector.dsn", "postgres://localhost:5432/askdesk?sslmode=disable")
	v.SetDefault("vector.dimension", 384)
	v.SetDefault("vector.max_conns", 10)

	v.SetDefault("rag.chunk_size", 1000)
	v.SetDefault("rag.chunk_overlap", 200)
	v.SetDefault("rag.min_chunk_length", 50)
	v.SetDefault("rag.top_k", 3)
	v.SetDefault("rag.tool_top_k", 5)
	v.SetDefault("rag.similarity_threshold", 0.7)
	v.SetDefault("rag.history_turns", 5)

	v.SetDefault("llm.base_url", "http://localhost:11434/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "qwen2.5:7b")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.timeout", 60*time.Second)

	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.model", "nomic-embed-text")
	v.SetDefault("embedding.batch_size", 5)
	v.SetDefault("embedding.batch_pause", 100*time.Millisecond)
	v.SetDefault("embedding.max_attempts", 3)
	v.SetDefault("embedding.retry_delay", time.Second)
	v.SetDefault("embedding.timeout", 30*time.Second)
	v.SetDefault("embedding.requests_per_second", 5.0)
	v.SetDefault("embedding.burst", 5)

	v.SetDefault("tools.max_rounds", 5)
	v.SetDefault("tools.timeout", 20*time.Second)
	v.SetDefault("tools.read_retries", 1)

	v.SetDefault("calendar.default_id", "primary")
	v.SetDefault("calendar.timezone", "UTC")
	v.SetDefault("calendar.business_day_start", "09:00")
	v.SetDefault("calendar.business_day_end", "17:00")
	v.SetDefault("calendar.slot_minutes", 30)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4318")
	v.SetDefault("telemetry.service_name", "askdesk")
}

// Validate rejects settings the pipeline cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.RAG.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("rag.chunk_size must be positive, got %d", c.RAG.ChunkSize))
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		errs = append(errs, fmt.Errorf("rag.chunk_overlap must be in [0, chunk_size), got %d", c.RAG.ChunkOverlap))
	}
	if c.RAG.SimilarityThreshold < 0 || c.RAG.SimilarityThreshold > 1 {
		errs = append(errs, fmt.Errorf("rag.similarity_threshold must be in [0, 1], got %v", c.RAG.SimilarityThreshold))
	}
	if c.Vector.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("vector.dimension must be positive, got %d", c.Vector.Dimension))
	}
	if c.Tools.MaxRounds < 1 {
		errs = append(errs, fmt.Errorf("tools.max_rounds must be at least 1, got %d", c.Tools.MaxRounds))
	}
	if c.Embedding.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("embedding.batch_size must be at least 1, got %d", c.Embedding.BatchSize))
	}
	if _, err := time.LoadLocation(c.Calendar.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("calendar.timezone: %w", err))
	}
	return errors.Join(errs...)
}

// Address returns the server address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
