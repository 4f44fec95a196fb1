package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ikaraev-code/Intelligent-archive-02-22/pkg/backoff"

	"gopkg.in/yaml.v3"
)

// MongoConfig holds the MongoDB connection settings.
type MongoConfig struct {
	Address  string `yaml:"address"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// RedisConfig holds the Redis connection settings. Redis keeps the
// conversational session history for the general assistant.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MinIOConfig holds the object storage settings. Uploaded artifacts and
// exported audio files live in MinIO; Mongo only ever stores object names.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Secure    bool   `yaml:"secure"`
}

// KafkaConfig holds the settings for the index-job queue.
type KafkaConfig struct {
	Brokers    []string `yaml:"brokers"`
	IndexTopic string   `yaml:"indexTopic"`
	GroupID    string   `yaml:"groupID"`
}

// OpenAIConfig configures the embedding/completion/speech provider. An empty
// APIKey is a supported state: indexing degrades to the "disabled" status and
// search falls back to lexical-only results.
type OpenAIConfig struct {
	APIKey          string `yaml:"apiKey"`
	EmbeddingModel  string `yaml:"embeddingModel"`  // e.g. "text-embedding-3-small"
	CompletionModel string `yaml:"completionModel"` // e.g. "gpt-4o-mini"
	SpeechModel     string `yaml:"speechModel"`     // e.g. "tts-1"
	SpeechVoice     string `yaml:"speechVoice"`     // e.g. "alloy"
}

// ChunkingConfig controls how extracted text is windowed before embedding.
type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunkSize"`    // characters per window
	ChunkOverlap int `yaml:"chunkOverlap"` // characters shared by consecutive windows
	BatchSize    int `yaml:"batchSize"`    // chunks per provider call
}

// SearchConfig holds the tunables of the hybrid retrieval engine.
type SearchConfig struct {
	SimilarityFloor   float64 `yaml:"similarityFloor"`   // chunk similarity cutoff
	SemanticThreshold float64 `yaml:"semanticThreshold"` // semantic-only inclusion cutoff
	KeywordBoost      float64 `yaml:"keywordBoost"`      // multiplier for lexical matches
	DualMatchBoost    float64 `yaml:"dualMatchBoost"`    // multiplier when both passes hit
	PriorityBoost     float64 `yaml:"priorityBoost"`     // additive boost for priority ids
}

// RetryConfig bounds the backoff loop around provider calls.
type RetryConfig struct {
	MaxAttempts  int     `yaml:"maxAttempts"`
	InitialDelay string  `yaml:"initialDelay"` // e.g. "500ms"
	BackoffCoeff float64 `yaml:"backoffCoeff"`
}

// Policy converts the yaml tunables into a backoff policy, falling back to
// the default policy when the delay does not parse.
func (c RetryConfig) Policy() backoff.Policy {
	delay, err := time.ParseDuration(c.InitialDelay)
	if err != nil {
		return backoff.DefaultPolicy()
	}
	return backoff.Policy{MaxAttempts: c.MaxAttempts, InitialDelay: delay, Coeff: c.BackoffCoeff}
}

// TasksConfig controls the async task orchestrator.
type TasksConfig struct {
	Retention string `yaml:"retention"` // how long finished task records stay queryable
}

// RetentionDuration parses the retention window, falling back to a day.
func (c TasksConfig) RetentionDuration() time.Duration {
	d, err := time.ParseDuration(c.Retention)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// LoggerConfig holds the logging settings.
type LoggerConfig struct {
	Level string `yaml:"level"`
}

// DatabasesConfig groups all storage backends.
type DatabasesConfig struct {
	Mongo MongoConfig `yaml:"mongo"`
	Redis RedisConfig `yaml:"redis"`
	MinIO MinIOConfig `yaml:"minio"`
	Kafka KafkaConfig `yaml:"kafka"`
}

// AppConfig is the root configuration for the archive service.
type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Logger    LoggerConfig    `yaml:"logger"`
	Databases DatabasesConfig `yaml:"databases"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Search    SearchConfig    `yaml:"search"`
	Retry     RetryConfig     `yaml:"retry"`
	Tasks     TasksConfig     `yaml:"tasks"`
}

// LoadConfig reads and parses the yaml configuration file at path, then fills
// in defaults for any tunable left unset.
func LoadConfig(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// applyDefaults fills zero values with the tunables the product shipped with.
func (c *AppConfig) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Chunking.ChunkSize == 0 {
		c.Chunking.ChunkSize = 1000
	}
	if c.Chunking.ChunkOverlap == 0 {
		c.Chunking.ChunkOverlap = 200
	}
	if c.Chunking.BatchSize == 0 {
		c.Chunking.BatchSize = 100
	}
	if c.Search.SimilarityFloor == 0 {
		c.Search.SimilarityFloor = 0.3
	}
	if c.Search.SemanticThreshold == 0 {
		c.Search.SemanticThreshold = 0.5
	}
	if c.Search.KeywordBoost == 0 {
		c.Search.KeywordBoost = 1.2
	}
	if c.Search.DualMatchBoost == 0 {
		c.Search.DualMatchBoost = 1.3
	}
	if c.Search.PriorityBoost == 0 {
		c.Search.PriorityBoost = 0.15
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.InitialDelay == "" {
		c.Retry.InitialDelay = "500ms"
	}
	if c.Retry.BackoffCoeff == 0 {
		c.Retry.BackoffCoeff = 2.0
	}
	if c.Tasks.Retention == "" {
		c.Tasks.Retention = "24h"
	}
	if c.OpenAI.EmbeddingModel == "" {
		c.OpenAI.EmbeddingModel = "text-embedding-3-small"
	}
	if c.OpenAI.CompletionModel == "" {
		c.OpenAI.CompletionModel = "gpt-4o-mini"
	}
	if c.OpenAI.SpeechModel == "" {
		c.OpenAI.SpeechModel = "tts-1"
	}
	if c.OpenAI.SpeechVoice == "" {
		c.OpenAI.SpeechVoice = "alloy"
	}
}
