package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port          int              `json:"port"`
	JWTSecret     string           `json:"jwt_secret"`
	JWTTTLHours   int              `json:"jwt_ttl_hours"`
	CORSAllowlist []string         `json:"cors_allowlist"`
	LogConfig     logger.LogConfig `json:"log_config"`
	Database      DatabaseConfig   `json:"database"`
	FileStore     FileStoreConfig  `json:"file_store"`
	Index         IndexConfig      `json:"index"`
	Embedding     EmbeddingConfig  `json:"embedding"`
	Generation    GenerationConfig `json:"generation"`
	Jobs          JobsConfig       `json:"jobs"`
	Audit         AuditConfig      `json:"audit"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type IndexConfig struct {
	Dir            string `json:"dir"`
	CheckpointSpec string `json:"checkpoint_spec"`
}

// EmbeddingConfig names the provider backing the active embedding model and
// the defaults used to bootstrap a model config on first run.
type EmbeddingConfig struct {
	Provider         string      `json:"provider"`
	Data             interface{} `json:"data"`
	DefaultModelID   string      `json:"default_model_id"`
	DefaultDimension int         `json:"default_dimension"`
	TimeoutSeconds   int         `json:"timeout_seconds"`
}

// GenerationConfig carries per-provider credentials keyed by provider name.
// Which provider is used for a given request is decided by the active
// generation model config in the database.
type GenerationConfig struct {
	Providers      map[string]interface{} `json:"providers"`
	TimeoutSeconds int                    `json:"timeout_seconds"`
}

type JobsConfig struct {
	Workers        int `json:"workers"`
	PollIntervalMS int `json:"poll_interval_ms"`
}

type AuditConfig struct {
	RetentionDays int `json:"retention_days"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.Index.Dir == "" {
		return nil, fmt.Errorf("index.dir is required")
	}
	if cfg.Embedding.Provider == "" {
		return nil, fmt.Errorf("embedding.provider is required")
	}
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 72
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	if cfg.Index.CheckpointSpec == "" {
		cfg.Index.CheckpointSpec = "*/5 * * * *"
	}
	if cfg.Embedding.DefaultDimension == 0 {
		cfg.Embedding.DefaultDimension = 384
	}
	if cfg.Embedding.TimeoutSeconds == 0 {
		cfg.Embedding.TimeoutSeconds = 30
	}
	if cfg.Generation.TimeoutSeconds == 0 {
		cfg.Generation.TimeoutSeconds = 120
	}
	if cfg.Jobs.Workers == 0 {
		cfg.Jobs.Workers = 2
	}
	if cfg.Jobs.PollIntervalMS == 0 {
		cfg.Jobs.PollIntervalMS = 500
	}
	if cfg.Audit.RetentionDays == 0 {
		cfg.Audit.RetentionDays = 90
	}
	return &cfg, nil
}
