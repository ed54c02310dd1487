package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters across the engine.
var metrics struct {
	PageRequests        atomic.Int64
	CaptionRequests     atomic.Int64
	CaptionHits         atomic.Int64
	CaptionErrors       atomic.Int64
	Fallbacks           atomic.Int64
	TranscriptionRuns   atomic.Int64
	TranscriptionErrors atomic.Int64
}

// GetMetrics returns a snapshot of all metrics including cache stats.
func GetMetrics() map[string]int64 {
	hits, misses := CacheStats()
	return map[string]int64{
		"page_requests":        metrics.PageRequests.Load(),
		"caption_requests":     metrics.CaptionRequests.Load(),
		"caption_hits":         metrics.CaptionHits.Load(),
		"caption_errors":       metrics.CaptionErrors.Load(),
		"fallbacks":            metrics.Fallbacks.Load(),
		"transcription_runs":   metrics.TranscriptionRuns.Load(),
		"transcription_errors": metrics.TranscriptionErrors.Load(),
		"cache_hits":           hits,
		"cache_misses":         misses,
		"cache_writes":         cacheWrites.Load(),
	}
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	keys := []string{
		"page_requests",
		"caption_requests", "caption_hits", "caption_errors",
		"fallbacks", "transcription_runs", "transcription_errors",
		"cache_hits", "cache_misses", "cache_writes",
	}
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// Incrementors for sources/ and transcribe/ sub-packages.
func IncrCaptionRequests()   { metrics.CaptionRequests.Add(1) }
func IncrTranscriptionRuns() { metrics.TranscriptionRuns.Add(1) }

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
