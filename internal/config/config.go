package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/xxxsen/common/logger"

	"github.com/xxxsen/dreamlog/internal/resonance"
)

type Config struct {
	Port             int              `json:"port"`
	Database         DatabaseConfig   `json:"database"`
	LogConfig        logger.LogConfig `json:"log_config"`
	CORSOrigins      []string         `json:"cors_origins"`
	RateLimitSeconds int              `json:"rate_limit_seconds"`
	AI               AIConfig         `json:"ai"`
	EmbedCache       EmbedCacheConfig `json:"embed_cache"`
	Resonance        resonance.Config `json:"resonance"`
	FileStore        FileStoreConfig  `json:"file_store"`
	Schedule         ScheduleConfig   `json:"schedule"`
	Limits           LimitsConfig     `json:"limits"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

// AIProviderConfig selects one registered provider. Data is handed to the
// provider factory as is.
type AIProviderConfig struct {
	Name  string                 `json:"name"`
	Model string                 `json:"model"`
	Data  map[string]interface{} `json:"data"`
}

type AIRoleConfig struct {
	Providers []AIProviderConfig `json:"providers"`
	Timeout   int                `json:"timeout"`
}

type AIConfig struct {
	Interpreter AIRoleConfig `json:"interpreter"`
	Embedder    AIRoleConfig `json:"embedder"`
}

type EmbedCacheConfig struct {
	LRUSize    int  `json:"lru_size"`
	LRUTTL     int  `json:"lru_ttl"`
	DBEnabled  bool `json:"db_enabled"`
	MaxAgeDays int  `json:"max_age_days"`
}

type FileStoreConfig struct {
	Type string   `json:"type"`
	Dir  string   `json:"dir"`
	S3   S3Config `json:"s3"`
}

type S3Config struct {
	Endpoint  string `json:"endpoint"`
	SecretID  string `json:"secret_id"`
	SecretKey string `json:"secret_key"`
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	Prefix    string `json:"prefix"`
	UseSSL    bool   `json:"use_ssl"`
}

// ScheduleConfig holds cron specs; an empty spec disables the job.
type ScheduleConfig struct {
	EmbeddingBackfill     string `json:"embedding_backfill"`
	EmbeddingCacheCleanup string `json:"embedding_cache_cleanup"`
	DatasetSnapshot       string `json:"dataset_snapshot"`
	BackfillBatch         int    `json:"backfill_batch"`
}

type LimitsConfig struct {
	MinChars int `json:"min_chars"`
	MaxChars int `json:"max_chars"`
}

var defaultCORSOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}

// Load reads the json config at path. A .env file next to it is loaded
// first and ${VAR} references in the file are expanded from the environment.
func Load(path string) (*Config, error) {
	envFile := filepath.Join(filepath.Dir(path), ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Config, error) {
	expanded := os.Expand(string(raw), os.Getenv)
	var cfg Config
	if err := json.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() error {
	if cfg.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = append([]string(nil), defaultCORSOrigins...)
	}
	if cfg.RateLimitSeconds < 0 {
		return fmt.Errorf("rate_limit_seconds must not be negative")
	}
	if cfg.AI.Interpreter.Timeout <= 0 {
		cfg.AI.Interpreter.Timeout = 20
	}
	if cfg.AI.Embedder.Timeout <= 0 {
		cfg.AI.Embedder.Timeout = 15
	}
	for _, role := range []AIRoleConfig{cfg.AI.Interpreter, cfg.AI.Embedder} {
		for i, p := range role.Providers {
			if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.Model) == "" {
				return fmt.Errorf("ai provider %d requires name and model", i)
			}
		}
	}
	if cfg.EmbedCache.LRUSize > 0 && cfg.EmbedCache.LRUTTL <= 0 {
		cfg.EmbedCache.LRUTTL = 3600
	}
	if cfg.EmbedCache.MaxAgeDays <= 0 {
		cfg.EmbedCache.MaxAgeDays = 30
	}
	cfg.Resonance = cfg.Resonance.WithDefaults()
	if err := cfg.Resonance.Validate(); err != nil {
		return err
	}
	if cfg.Limits.MinChars <= 0 {
		cfg.Limits.MinChars = 10
	}
	if cfg.Limits.MaxChars <= 0 {
		cfg.Limits.MaxChars = 1500
	}
	if cfg.Limits.MinChars > cfg.Limits.MaxChars {
		return fmt.Errorf("limits.min_chars exceeds limits.max_chars")
	}
	if cfg.Schedule.BackfillBatch <= 0 {
		cfg.Schedule.BackfillBatch = 32
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	switch cfg.FileStore.Type {
	case "local":
		if cfg.FileStore.Dir == "" {
			cfg.FileStore.Dir = "data"
		}
	case "s3":
		if cfg.FileStore.S3.Endpoint == "" || cfg.FileStore.S3.Bucket == "" || cfg.FileStore.S3.SecretID == "" || cfg.FileStore.S3.SecretKey == "" {
			return fmt.Errorf("file_store.s3 endpoint/bucket/secret_id/secret_key are required for s3 store")
		}
		if cfg.FileStore.S3.Region == "" {
			cfg.FileStore.S3.Region = "us-east-1"
		}
	default:
		return fmt.Errorf("file_store.type must be local or s3")
	}
	return nil
}
