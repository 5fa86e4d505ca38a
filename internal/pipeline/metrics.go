package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters across a pipeline run.
var metrics struct {
	SearchPages        atomic.Int64
	MalformedPages     atomic.Int64
	TranscriptFetches  atomic.Int64
	TranscriptFailures atomic.Int64
	EmbeddingRequests  atomic.Int64
	RowsExported       atomic.Int64
}

// GetMetrics returns a snapshot of all counters.
func GetMetrics() map[string]int64 {
	return map[string]int64{
		"search_pages":        metrics.SearchPages.Load(),
		"malformed_pages":     metrics.MalformedPages.Load(),
		"transcript_fetches":  metrics.TranscriptFetches.Load(),
		"transcript_failures": metrics.TranscriptFailures.Load(),
		"embedding_requests":  metrics.EmbeddingRequests.Load(),
		"rows_exported":       metrics.RowsExported.Load(),
	}
}

// FormatMetrics returns counters as a simple text block for end-of-run logging.
func FormatMetrics() string {
	m := GetMetrics()
	keys := []string{
		"search_pages", "malformed_pages",
		"transcript_fetches", "transcript_failures",
		"embedding_requests", "rows_exported",
	}
	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// Incrementors for stage packages.
func IncrSearchPage()         { metrics.SearchPages.Add(1) }
func IncrMalformedPage()      { metrics.MalformedPages.Add(1) }
func IncrTranscriptFetch()    { metrics.TranscriptFetches.Add(1) }
func IncrTranscriptFailure()  { metrics.TranscriptFailures.Add(1) }
func IncrEmbeddingRequest()   { metrics.EmbeddingRequests.Add(1) }
func AddRowsExported(n int64) { metrics.RowsExported.Add(n) }

// TrackOperation logs a warning if an operation takes longer than threshold.
func TrackOperation(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if elapsed > 5*time.Second {
		slog.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}
