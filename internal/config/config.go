package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	VectorStoreMemory   = "memory"
	VectorStorePostgres = "postgres"

	LLMProviderDashScope = "dashscope"
	LLMProviderOpenAI    = "openai"

	EmbeddingProviderHash   = "hash"
	EmbeddingProviderOpenAI = "openai"

	ClassifierEmbedding   = "embedding"
	ClassifierHuggingFace = "huggingface"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	LLMProvider     string        `envconfig:"LLM_PROVIDER" default:"dashscope"`
	DashScopeAPIKey string        `envconfig:"DASHSCOPE_API_KEY"`
	LLMModel        string        `envconfig:"LLM_MODEL" default:"qwen-turbo"`
	LLMBaseURL      string        `envconfig:"LLM_BASE_URL"`
	LLMTimeout      time.Duration `envconfig:"LLM_TIMEOUT" default:"60s"`
	LLMRateLimit    float64       `envconfig:"LLM_RATE_LIMIT" default:"2"`
	LLMBurst        int           `envconfig:"LLM_BURST" default:"4"`

	// Empty selects openai when OPENAI_API_KEY is set, hash otherwise.
	EmbeddingProvider   string        `envconfig:"EMBEDDING_PROVIDER"`
	OpenAIAPIKey        string        `envconfig:"OPENAI_API_KEY"`
	EmbeddingModel      string        `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingBaseURL    string        `envconfig:"EMBEDDING_BASE_URL"`
	EmbeddingDimensions int           `envconfig:"EMBEDDING_DIMENSIONS" default:"384"`
	EmbeddingTimeout    time.Duration `envconfig:"EMBEDDING_TIMEOUT" default:"30s"`

	Classifier        string        `envconfig:"CLASSIFIER" default:"embedding"`
	HFAPIToken        string        `envconfig:"HF_API_TOKEN"`
	HFZeroShotURL     string        `envconfig:"HF_ZERO_SHOT_URL" default:"https://api-inference.huggingface.co/models/facebook/bart-large-mnli"`
	ClassifierTimeout time.Duration `envconfig:"CLASSIFIER_TIMEOUT" default:"20s"`
	RouteThreshold    float64       `envconfig:"ROUTE_THRESHOLD" default:"0.5"`
	TopK              int           `envconfig:"TOP_K" default:"3"`

	ChunkSize      int   `envconfig:"CHUNK_SIZE" default:"1000"`
	ChunkOverlap   int   `envconfig:"CHUNK_OVERLAP" default:"200"`
	MaxUploadBytes int64 `envconfig:"MAX_UPLOAD_BYTES" default:"52428800"`

	VectorStore      string        `envconfig:"VECTOR_STORE" default:"memory"`
	DatabaseURL      string        `envconfig:"DATABASE_URL"`
	SnapshotPath     string        `envconfig:"SNAPSHOT_PATH"`
	SnapshotInterval time.Duration `envconfig:"SNAPSHOT_INTERVAL" default:"5m"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"interviewqa-pdfs"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	SerpAPIKey       string `envconfig:"SERPAPI_KEY"`
	WebSearchResults int    `envconfig:"WEB_SEARCH_RESULTS" default:"3"`

	// Bearer token required on mutating routes when set
	APIToken    string   `envconfig:"API_TOKEN"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`
	WatchDir    string   `envconfig:"WATCH_DIR"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("IQA", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
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

func (c *Config) normalize() {
	c.LLMProvider = strings.ToLower(strings.TrimSpace(c.LLMProvider))
	c.EmbeddingProvider = strings.ToLower(strings.TrimSpace(c.EmbeddingProvider))
	c.Classifier = strings.ToLower(strings.TrimSpace(c.Classifier))
	c.VectorStore = strings.ToLower(strings.TrimSpace(c.VectorStore))
	if c.EmbeddingProvider == "" {
		if c.HasOpenAI() {
			c.EmbeddingProvider = EmbeddingProviderOpenAI
		} else {
			c.EmbeddingProvider = EmbeddingProviderHash
		}
	}
}

// Validate rejects settings that cannot work together.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", c.ChunkOverlap)
	}
	if c.RouteThreshold < 0 || c.RouteThreshold > 1 {
		return fmt.Errorf("ROUTE_THRESHOLD must be in [0, 1], got %v", c.RouteThreshold)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("TOP_K must be positive, got %d", c.TopK)
	}
	switch c.VectorStore {
	case VectorStoreMemory:
	case VectorStorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when VECTOR_STORE=postgres")
		}
	default:
		return fmt.Errorf("unknown VECTOR_STORE %q", c.VectorStore)
	}
	switch c.LLMProvider {
	case LLMProviderDashScope, LLMProviderOpenAI:
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	switch c.EmbeddingProvider {
	case EmbeddingProviderHash:
	case EmbeddingProviderOpenAI:
		if !c.HasOpenAI() {
			return fmt.Errorf("OPENAI_API_KEY is required when EMBEDDING_PROVIDER=openai")
		}
	default:
		return fmt.Errorf("unknown EMBEDDING_PROVIDER %q", c.EmbeddingProvider)
	}
	switch c.Classifier {
	case ClassifierEmbedding, ClassifierHuggingFace:
	default:
		return fmt.Errorf("unknown CLASSIFIER %q", c.Classifier)
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

// HasLLMCredential reports whether the selected LLM provider has an API key.
// Its absence is not fatal: answers degrade to an error message.
func (c *Config) HasLLMCredential() bool {
	if c.LLMProvider == LLMProviderOpenAI {
		return c.OpenAIAPIKey != ""
	}
	return c.DashScopeAPIKey != ""
}

func (c *Config) HasWebSearch() bool {
	return c.SerpAPIKey != ""
}

func (c *Config) HasSnapshots() bool {
	return c.VectorStore == VectorStoreMemory && c.SnapshotPath != ""
}
