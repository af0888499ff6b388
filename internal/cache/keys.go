// Package cache centralizes persistence key construction and TTL policy so
// every component names stored documents the same way.
package cache

import (
	"fmt"
	"strings"
	"time"

	"pfolio-api/internal/config"
)

// Namespace is the key prefix for all persisted documents.
const Namespace = "pfa"

// TTLClass represents a config-driven TTL bucket.
type TTLClass string

const (
	TTLShort  TTLClass = "short"
	TTLMedium TTLClass = "medium"
	TTLLong   TTLClass = "long"
)

// TTLSet normalises cache TTLs from config into time.Duration values.
type TTLSet struct {
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}

// NewTTLSet converts config TTLs (in seconds) into durations.
func NewTTLSet(cfg config.CacheTTL) TTLSet {
	return TTLSet{
		Short:  durationOrDefault(cfg.Short, 10*time.Second),
		Medium: durationOrDefault(cfg.Medium, time.Minute),
		Long:   durationOrDefault(cfg.Long, 5*time.Minute),
	}
}

func durationOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds < 0 {
		return 0
	}
	if seconds == 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// Duration returns the configured duration for the given TTL class.
func (t TTLSet) Duration(class TTLClass) time.Duration {
	switch class {
	case TTLShort:
		return t.Short
	case TTLMedium:
		return t.Medium
	case TTLLong:
		return t.Long
	default:
		return 0
	}
}

// Scaled applies a multiplier to a TTL class.
func (t TTLSet) Scaled(class TTLClass, factor float64) time.Duration {
	base := t.Duration(class)
	if base <= 0 || factor <= 0 {
		return base
	}
	return time.Duration(float64(base) * factor)
}

func formatKey(parts ...string) string {
	values := make([]string, 0, len(parts)+1)
	values = append(values, Namespace)
	for _, part := range parts {
		clean := strings.TrimSpace(part)
		if clean == "" {
			continue
		}
		values = append(values, clean)
	}
	return strings.Join(values, ":")
}

// SnapshotKey names a persisted snapshot document.
func SnapshotKey(id string) string {
	return formatKey("snapshot", id)
}

// SentimentKey names a persisted sentiment reading, bucketed by UTC day.
func SentimentKey(ticker string, windowDays int, day time.Time) string {
	return formatKey("sentiment", ticker, fmt.Sprintf("%d", windowDays), day.UTC().Format("2006-01-02"))
}

// SentimentTTL is the sentiment cache lifetime: three long periods, 15
// minutes with the default config.
func SentimentTTL(ttl TTLSet) time.Duration {
	return ttl.Scaled(TTLLong, 3)
}

// SnapshotTTL returns the snapshot document lifetime. Snapshots are
// immutable, so they get the longest class unscaled.
func SnapshotTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLLong)
}

// FormatCacheKey is exported for dynamic key construction when patterns are
// not covered by helpers.
func FormatCacheKey(parts ...string) string {
	return formatKey(parts...)
}
