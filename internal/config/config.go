package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	// DataRoot is the directory that holds per-project uploads and indexes.
	DataRoot string `envconfig:"DATA_ROOT" default:"./data"`

	// VectorBackend selects the index implementation: sqlite or pgvector.
	VectorBackend string `envconfig:"VECTOR_BACKEND" default:"sqlite"`
	DatabaseURL   string `envconfig:"DATABASE_URL"`

	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL"`
	GenerationModel     string `envconfig:"GENERATION_MODEL"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`

	ChunkSize    int `envconfig:"CHUNK_SIZE" default:"800"`
	ChunkOverlap int `envconfig:"CHUNK_OVERLAP" default:"200"`
	RetrieveTopK int `envconfig:"RETRIEVE_TOP_K" default:"5"`

	EmbedTimeout    time.Duration `envconfig:"EMBED_TIMEOUT" default:"3m"`
	GenerateTimeout time.Duration `envconfig:"GENERATE_TIMEOUT" default:"5m"`

	MaxBodyBytes int64 `envconfig:"MAX_BODY_BYTES" default:"52428800"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"caseforge-uploads"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	SentryDSN         string  `envconfig:"SENTRY_DSN"`
	SentryEnvironment string  `envconfig:"SENTRY_ENVIRONMENT"`
	SentrySampleRate  float64 `envconfig:"SENTRY_SAMPLE_RATE" default:"1.0"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("CASEFORGE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if cfg.VectorBackend != "sqlite" && cfg.VectorBackend != "pgvector" {
		return nil, fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
	}
	if cfg.VectorBackend == "pgvector" && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for the pgvector backend")
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}
