package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// Config holds the ragdex service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Rerank    RerankConfig    `yaml:"rerank"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Search    SearchConfig    `yaml:"search"`
	Retry     RetryConfig     `yaml:"retry"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	History   HistoryConfig   `yaml:"history"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds Redis connection settings. Optional: without addrs the
// service runs with the embedding cache and history sink disabled and
// snapshots on local disk only.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds embedding gateway settings.
type EmbeddingConfig struct {
	Provider     string  `yaml:"provider"`
	APIKey       string  `yaml:"api_key"`
	BaseURL      string  `yaml:"base_url"`
	Model        string  `yaml:"model"`
	Dimensions   int     `yaml:"dimensions"`
	BatchSize    int     `yaml:"batch_size"`     // texts per BatchEmbed call (default 10)
	RateLimitRPS float64 `yaml:"rate_limit_rps"` // outbound request rate (default 10)
}

// RerankConfig holds rerank gateway settings.
type RerankConfig struct {
	Enabled   bool   `yaml:"enabled"`
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	BatchSize int    `yaml:"batch_size"` // candidates per gateway call (default 16)
}

// ChunkingConfig holds document chunking settings. Size and overlap are rune
// budgets; the token estimate reported per chunk is runes/4.
type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// SearchConfig holds query-time defaults.
type SearchConfig struct {
	TopK                int     `yaml:"top_k"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	CandidateMultiplier int     `yaml:"candidate_multiplier"` // candidateN = topK * multiplier
}

// RetryConfig holds the retry policy for remote gateway calls.
type RetryConfig struct {
	MaxAttempts       int `yaml:"max_attempts"`
	BackoffBaseMs     int `yaml:"backoff_base_ms"`
	RequestTimeoutSec int `yaml:"request_timeout_sec"`
}

// SnapshotConfig holds index snapshot persistence settings.
type SnapshotConfig struct {
	Path        string `yaml:"path"`
	IntervalSec int    `yaml:"interval_sec"` // 0 disables periodic snapshots
}

// HistoryConfig holds search-history emission settings.
type HistoryConfig struct {
	QueueSize  int `yaml:"queue_size"`
	MaxRecords int `yaml:"max_records"` // cap on the persisted history list
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	// Unset env expansion leaves empty address entries; dropping them all
	// means "run without a database", which is a supported mode.
	addrs := c.Database.Addrs[:0]
	for _, a := range c.Database.Addrs {
		if a != "" {
			addrs = append(addrs, a)
		}
	}
	c.Database.Addrs = addrs

	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "dashscope"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-v3"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 10
	}
	if c.Embedding.RateLimitRPS <= 0 {
		c.Embedding.RateLimitRPS = 10
	}
	if c.Rerank.Model == "" {
		c.Rerank.Model = "gte-rerank"
	}
	if c.Rerank.BatchSize <= 0 {
		c.Rerank.BatchSize = 16
	}
	if c.Chunking.ChunkSize <= 0 {
		c.Chunking.ChunkSize = 1000
	}
	if c.Chunking.ChunkOverlap <= 0 && c.Chunking.ChunkSize > 200 {
		c.Chunking.ChunkOverlap = 200
	}
	if c.Chunking.ChunkOverlap < 0 {
		c.Chunking.ChunkOverlap = 0
	}
	if c.Search.TopK <= 0 {
		c.Search.TopK = 5
	}
	if c.Search.CandidateMultiplier <= 0 {
		c.Search.CandidateMultiplier = 2
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.BackoffBaseMs <= 0 {
		c.Retry.BackoffBaseMs = 200
	}
	if c.Retry.RequestTimeoutSec <= 0 {
		c.Retry.RequestTimeoutSec = 30
	}
	if c.Snapshot.Path == "" {
		c.Snapshot.Path = "data/index.snapshot"
	}
	if c.History.QueueSize <= 0 {
		c.History.QueueSize = 256
	}
	if c.History.MaxRecords <= 0 {
		c.History.MaxRecords = 1000
	}
}

// Validate checks the configuration for correctness. Chunking and search
// bounds are rejected here, at configuration time, never per request.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunking.chunk_overlap %d must be smaller than chunk_size %d: %w",
			c.Chunking.ChunkOverlap, c.Chunking.ChunkSize, domain.ErrConfig)
	}
	if c.Search.SimilarityThreshold < 0 || c.Search.SimilarityThreshold > 1 {
		return fmt.Errorf("search.similarity_threshold must be in [0,1], got %f: %w",
			c.Search.SimilarityThreshold, domain.ErrConfig)
	}
	if c.Embedding.APIKey == "" {
		return fmt.Errorf("embedding.api_key is required")
	}
	if c.Rerank.Enabled && c.Rerank.BaseURL == "" {
		return fmt.Errorf("rerank.base_url is required when rerank is enabled")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
