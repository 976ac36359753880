// Package config loads pipeline settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Feed settings
	FeedsConfigPath string
	FeedTimeout     time.Duration
	MaxItemAge      time.Duration

	// Scraper settings
	ScrapeTimeout     time.Duration
	ScrapeConcurrency int // parallel fetches for full article extraction
	ScrapeMaxArticles int // cap of articles to extract per run
	MinContentLength  int // description shorter than this triggers a scrape

	// Embedding settings
	EmbeddingEndpoint   string
	EmbeddingToken      string
	EmbeddingDimension  int
	EmbeddingMaxChars   int
	SimilarityThreshold float64
	EmbedBatchSize      int
	EmbedBatchDelay     time.Duration
	MaxEmbedRequests    int // daily budget, 0 = unlimited

	// Research settings
	ResearchBaseURL     string
	ResearchToken       string
	ResearchTimeout     time.Duration
	MaxResearchRequests int // daily budget, 0 = unlimited

	// Vector cache settings
	CacheFilePath   string
	CacheTTLHours   int
	DuplicateWindow int // hours of recent vectors kept for dedup

	// App settings
	Debug          bool
	RequestTimeout time.Duration
	RetryAttempts  int
	RetryDelay     time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		// Default values
		FeedsConfigPath:     "configs/feeds.yaml",
		FeedTimeout:         20 * time.Second,
		MaxItemAge:          24 * time.Hour,
		ScrapeTimeout:       15 * time.Second,
		ScrapeConcurrency:   5,
		ScrapeMaxArticles:   10,
		MinContentLength:    200,
		EmbeddingDimension:  384,
		EmbeddingMaxChars:   2000,
		SimilarityThreshold: 0.85,
		EmbedBatchSize:      8,
		EmbedBatchDelay:     500 * time.Millisecond,
		ResearchTimeout:     5 * time.Minute,
		RequestTimeout:      30 * time.Second,
		RetryAttempts:       3,
		RetryDelay:          5 * time.Second,
	}

	// Load from environment
	cfg.EmbeddingEndpoint = os.Getenv("EMBEDDING_ENDPOINT")
	cfg.EmbeddingToken = os.Getenv("EMBEDDING_TOKEN")
	cfg.ResearchBaseURL = os.Getenv("RESEARCH_BASE_URL")
	cfg.ResearchToken = os.Getenv("RESEARCH_TOKEN")

	cfg.FeedsConfigPath = getEnvOrDefault("FEEDS_CONFIG_PATH", cfg.FeedsConfigPath)
	cfg.CacheFilePath = getEnvOrDefault("CACHE_FILE_PATH", "seen_articles.json")
	cfg.CacheTTLHours = getEnvIntOrDefault("CACHE_TTL_HOURS", 48)
	cfg.DuplicateWindow = getEnvIntOrDefault("DUPLICATE_WINDOW_HOURS", 24)
	cfg.MaxEmbedRequests = getEnvIntOrDefault("MAX_EMBED_REQUESTS", 0)
	cfg.MaxResearchRequests = getEnvIntOrDefault("MAX_RESEARCH_REQUESTS", 0)

	if v := os.Getenv("EMBEDDING_DIMENSION"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 {
			cfg.EmbeddingDimension = val
		}
	}
	if v := os.Getenv("SIMILARITY_THRESHOLD"); v != "" {
		if val, err := strconv.ParseFloat(v, 64); err == nil && val > 0 && val <= 1 {
			cfg.SimilarityThreshold = val
		}
	}
	if v := os.Getenv("EMBED_BATCH_SIZE"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 {
			cfg.EmbedBatchSize = val
		}
	}
	if v := os.Getenv("EMBED_BATCH_DELAY_MS"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val >= 0 {
			cfg.EmbedBatchDelay = time.Duration(val) * time.Millisecond
		}
	}
	if v := os.Getenv("SCRAPE_CONCURRENCY"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 {
			cfg.ScrapeConcurrency = val
		}
	}
	if v := os.Getenv("SCRAPE_MAX_ARTICLES"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 {
			cfg.ScrapeMaxArticles = val
		}
	}
	if v := os.Getenv("RESEARCH_TIMEOUT_SEC"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 {
			cfg.ResearchTimeout = time.Duration(val) * time.Second
		}
	}
	if v := os.Getenv("FEED_TIMEOUT_SEC"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 {
			cfg.FeedTimeout = time.Duration(val) * time.Second
		}
	}
	if v := os.Getenv("MAX_ITEM_AGE_HOURS"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 {
			cfg.MaxItemAge = time.Duration(val) * time.Hour
		}
	}

	if debug := os.Getenv("DEBUG"); debug == "true" {
		cfg.Debug = true
	}

	return cfg, cfg.Validate()
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func (c *Config) Validate() error {
	if c.EmbeddingEndpoint == "" {
		return fmt.Errorf("EMBEDDING_ENDPOINT is required")
	}
	if c.EmbeddingDimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive")
	}
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity threshold must be in (0, 1]")
	}
	return nil
}
