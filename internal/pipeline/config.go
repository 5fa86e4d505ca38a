package pipeline

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Config holds all pipeline configuration, injected from main.
type Config struct {
	ChannelID string // YouTube channel whose videos are indexed
	APIKey    string // YouTube Data API v3 key

	DataDir string // directory holding the stage output files
	Format  string // "csv" or "parquet"

	EmbedAPIBase   string // OpenAI-compatible embeddings endpoint base URL
	EmbedAPIKey    string
	EmbedModel     string
	EmbedBatchSize int // texts per embeddings request

	TranscriptLangs []string // caption language preference order

	FetchTimeout time.Duration
	HTTPClient   *http.Client
	APILimiter   *rate.Limiter // Data API quota guard; nil = unlimited
}

var cfg Config

// Cfg exposes the pipeline configuration for stage packages.
// Always points to the current cfg value.
var Cfg = &cfg

// Init initializes the pipeline with the given configuration.
func Init(c Config) {
	cfg = c
	Cfg = &cfg
}

// WaitAPI blocks until the Data API rate limiter permits another request.
func WaitAPI(ctx context.Context) error {
	if cfg.APILimiter == nil {
		return nil
	}
	return cfg.APILimiter.Wait(ctx)
}
