package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting of the gateway and the leaf services. It is
// read once at startup and not modified afterwards.
type Config struct {
	ServePort string
	// GRPCPort is the port of a leaf service; empty keeps the service default
	GRPCPort string

	Cache      CacheConfig
	Embedding  EmbeddingConfig
	Completion CompletionConfig
	Store      StoreConfig
	Log        LogConfig

	OpenAIAPIKey  string
	OpenAIBaseURL string
	GeminiAPIKey  string

	// values that were set but could not be parsed
	parseErrs []error
}

// CacheConfig drives the decision engine
type CacheConfig struct {
	SimilarityThreshold float64
	Dimensions          int
	TopK                int
	EmbedTimeout        time.Duration
	QueryTimeout        time.Duration
	InsertTimeout       time.Duration
	CompletionTimeout   time.Duration
	FallbackAnswer      string
}

type EmbeddingConfig struct {
	Provider   string // hashing, openai, gemini or grpc
	Model      string
	Addr       string
	CacheSize  int
	CacheTTL   time.Duration
	MaxRetries int
}

type CompletionConfig struct {
	Provider   string // gemini, openai, mock or grpc
	Model      string
	Addr       string
	RateLimit  float64
	Burst      int
	MaxRetries int
}

type StoreConfig struct {
	Backend string // memory, qdrant, pgvector, redis or grpc

	QdrantHost       string
	QdrantPort       int
	QdrantAPIKey     string
	QdrantCollection string

	PostgresDSN   string
	PostgresTable string

	RedisAddr     string
	RedisPassword string
	RedisIndex    string

	Addr string
}

type LogConfig struct {
	Level  string
	Format string
}

var (
	EmbeddingProviders  = []string{"hashing", "openai", "gemini", "grpc"}
	CompletionProviders = []string{"gemini", "openai", "mock", "grpc"}
	StoreBackends       = []string{"memory", "qdrant", "pgvector", "redis", "grpc"}
)

// Load reads an optional .env file and then the environment
func Load(envFilePath string) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// running from the environment alone is fine
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	p := &envParser{}
	maxRetries := p.getInt("PROVIDER_MAX_RETRIES", 0)
	cfg := &Config{
		ServePort: getEnv("SERVE_PORT", "8080"),
		GRPCPort:  getEnv("GRPC_PORT", ""),
		Cache: CacheConfig{
			SimilarityThreshold: p.getFloat("SIMILARITY_THRESHOLD", 0.90),
			Dimensions:          p.getInt("EMBEDDING_DIMENSIONS", 384),
			TopK:                p.getInt("CACHE_TOP_K", 1),
			EmbedTimeout:        p.getDuration("EMBED_TIMEOUT", 5*time.Second),
			QueryTimeout:        p.getDuration("QUERY_TIMEOUT", 3*time.Second),
			InsertTimeout:       p.getDuration("INSERT_TIMEOUT", 3*time.Second),
			CompletionTimeout:   p.getDuration("COMPL_TIMEOUT", 30*time.Second),
			FallbackAnswer:      getEnv("FALLBACK_ANSWER", "The service is temporarily unavailable. Please try again later."),
		},
		Embedding: EmbeddingConfig{
			Provider:   strings.ToLower(getEnv("EMBEDDING_PROVIDER", "hashing")),
			Model:      getEnv("EMBEDDING_MODEL", ""),
			Addr:       getEnv("EMBEDDING_ADDR", "localhost:50051"),
			CacheSize:  p.getInt("EMBEDDING_CACHE_SIZE", 1024),
			CacheTTL:   p.getDuration("EMBEDDING_CACHE_TTL", 10*time.Minute),
			MaxRetries: maxRetries,
		},
		Completion: CompletionConfig{
			Provider:   strings.ToLower(getEnv("COMPL_PROVIDER", "gemini")),
			Model:      getEnv("COMPL_MODEL", ""),
			Addr:       getEnv("COMPL_ADDR", "localhost:50053"),
			RateLimit:  p.getFloat("COMPL_RATE_LIMIT", 0),
			Burst:      p.getInt("COMPL_BURST", 1),
			MaxRetries: maxRetries,
		},
		Store: StoreConfig{
			Backend:          strings.ToLower(getEnv("CACHE_STORE", "memory")),
			QdrantHost:       getEnv("QDRANT_HOST", "localhost"),
			QdrantPort:       p.getInt("QDRANT_PORT", 6334),
			QdrantAPIKey:     getEnv("QDRANT_API_KEY", ""),
			QdrantCollection: getEnv("QDRANT_COLLECTION", "llm_semantic_cache"),
			PostgresDSN:      getEnv("PG_DSN", ""),
			PostgresTable:    getEnv("PG_TABLE", "semantic_cache"),
			RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword:    getEnv("REDIS_PASSWORD", ""),
			RedisIndex:       getEnv("REDIS_INDEX", "idx:semcache"),
			Addr:             getEnv("CACHE_ADDR", "localhost:50052"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		parseErrs:     p.errs,
	}

	return cfg, nil
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	errs := append([]error(nil), c.parseErrs...)
	if t := c.Cache.SimilarityThreshold; t <= -1 || t > 1 {
		errs = append(errs, fmt.Errorf("SIMILARITY_THRESHOLD must be in (-1, 1], got %v", t))
	}
	if c.Cache.Dimensions <= 0 {
		errs = append(errs, fmt.Errorf("EMBEDDING_DIMENSIONS must be positive, got %d", c.Cache.Dimensions))
	}
	if c.Cache.TopK <= 0 {
		errs = append(errs, fmt.Errorf("CACHE_TOP_K must be positive, got %d", c.Cache.TopK))
	}
	for name, d := range map[string]time.Duration{
		"EMBED_TIMEOUT":  c.Cache.EmbedTimeout,
		"QUERY_TIMEOUT":  c.Cache.QueryTimeout,
		"INSERT_TIMEOUT": c.Cache.InsertTimeout,
		"COMPL_TIMEOUT":  c.Cache.CompletionTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if !oneOf(c.Embedding.Provider, EmbeddingProviders) {
		errs = append(errs, fmt.Errorf("unknown EMBEDDING_PROVIDER %q", c.Embedding.Provider))
	}
	if !oneOf(c.Completion.Provider, CompletionProviders) {
		errs = append(errs, fmt.Errorf("unknown COMPL_PROVIDER %q", c.Completion.Provider))
	}
	if !oneOf(c.Store.Backend, StoreBackends) {
		errs = append(errs, fmt.Errorf("unknown CACHE_STORE %q", c.Store.Backend))
	}
	if c.Store.Backend == "pgvector" && c.Store.PostgresDSN == "" {
		errs = append(errs, errors.New("PG_DSN is required for CACHE_STORE=pgvector"))
	}
	if c.Completion.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("COMPL_RATE_LIMIT must not be negative, got %v", c.Completion.RateLimit))
	}
	return errors.Join(errs...)
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envParser reads typed variables and remembers every value it could not
// parse, so a typo is reported by Validate instead of falling back to the
// default.
type envParser struct {
	errs []error
}

func (p *envParser) fail(key, value, want string) {
	p.errs = append(p.errs, fmt.Errorf("%s must be %s, got %q", key, want, value))
}

func (p *envParser) getInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		p.fail(key, valueStr, "an integer")
		return defaultValue
	}
	return value
}

func (p *envParser) getFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		p.fail(key, valueStr, "a number")
		return defaultValue
	}
	return value
}

// getDuration accepts Go durations ("750ms") and bare seconds ("5")
func (p *envParser) getDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	p.fail(key, valueStr, "a duration")
	return defaultValue
}
