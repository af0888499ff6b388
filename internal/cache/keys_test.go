package cache

import (
	"testing"
	"time"

	"pfolio-api/internal/config"
)

func TestSnapshotKey(t *testing.T) {
	if got, want := SnapshotKey("20240102T000000Z-abc"), "pfa:snapshot:20240102T000000Z-abc"; got != want {
		t.Fatalf("SnapshotKey = %q, want %q", got, want)
	}
}

func TestSentimentKeyBucketsByUTCDay(t *testing.T) {
	loc := time.FixedZone("east", 10*3600)
	late := time.Date(2024, 3, 1, 23, 30, 0, 0, loc) // 2024-03-01 13:30 UTC
	if got, want := SentimentKey("AAPL", 7, late), "pfa:sentiment:AAPL:7:2024-03-01"; got != want {
		t.Fatalf("SentimentKey = %q, want %q", got, want)
	}
}

func TestTTLSetDefaults(t *testing.T) {
	ttl := NewTTLSet(config.CacheTTL{})
	if ttl.Short != 10*time.Second || ttl.Medium != time.Minute || ttl.Long != 5*time.Minute {
		t.Fatalf("unexpected defaults: %+v", ttl)
	}
	if got, want := SentimentTTL(ttl), 15*time.Minute; got != want {
		t.Fatalf("SentimentTTL = %v, want %v", got, want)
	}
	if got, want := SnapshotTTL(ttl), 5*time.Minute; got != want {
		t.Fatalf("SnapshotTTL = %v, want %v", got, want)
	}
}

func TestTTLSetFromConfig(t *testing.T) {
	ttl := NewTTLSet(config.CacheTTL{Short: 5, Medium: 30, Long: 120})
	if ttl.Duration(TTLShort) != 5*time.Second {
		t.Fatalf("short = %v", ttl.Duration(TTLShort))
	}
	if ttl.Scaled(TTLLong, 3) != 6*time.Minute {
		t.Fatalf("scaled long = %v", ttl.Scaled(TTLLong, 3))
	}
}
