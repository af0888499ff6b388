package model

import (
	"context"
	"errors"
	"time"

	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ SentimentCacheModel = (*defaultSentimentCacheModel)(nil)

type (
	// SentimentCacheModel persists scored sentiment readings keyed by
	// ticker, window and UTC day.
	SentimentCacheModel interface {
		Upsert(ctx context.Context, data *SentimentCache) error
		FindOne(ctx context.Context, key string) (*SentimentCache, error)
		Purge(ctx context.Context, before time.Time) (int64, error)
	}

	defaultSentimentCacheModel struct {
		conn sqlx.SqlConn
	}

	// SentimentCache mirrors the sentiment_cache table.
	SentimentCache struct {
		Key        string    `db:"key"`
		Ticker     string    `db:"ticker"`
		WindowDays int64     `db:"window_days"`
		Score      float64   `db:"score"`
		Confidence float64   `db:"confidence"`
		Articles   int64     `db:"articles"`
		AsOf       time.Time `db:"as_of"`
		ExpiresAt  time.Time `db:"expires_at"`
	}
)

// NewSentimentCacheModel returns a model for the sentiment_cache table.
func NewSentimentCacheModel(conn sqlx.SqlConn) SentimentCacheModel {
	return &defaultSentimentCacheModel{conn: conn}
}

func (m *defaultSentimentCacheModel) Upsert(ctx context.Context, data *SentimentCache) error {
	query := `INSERT INTO public.sentiment_cache (key, ticker, window_days, score, confidence, articles, as_of, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (key) DO UPDATE SET
    score = EXCLUDED.score,
    confidence = EXCLUDED.confidence,
    articles = EXCLUDED.articles,
    as_of = EXCLUDED.as_of,
    expires_at = EXCLUDED.expires_at`
	_, err := m.conn.ExecCtx(ctx, query,
		data.Key, data.Ticker, data.WindowDays, data.Score,
		data.Confidence, data.Articles, data.AsOf, data.ExpiresAt)
	return err
}

// FindOne returns the reading for key if it has not expired.
func (m *defaultSentimentCacheModel) FindOne(ctx context.Context, key string) (*SentimentCache, error) {
	query := `SELECT key, ticker, window_days, score, confidence, articles, as_of, expires_at
FROM public.sentiment_cache WHERE key = $1 AND expires_at > NOW() LIMIT 1`
	var resp SentimentCache
	err := m.conn.QueryRowCtx(ctx, &resp, query, key)
	switch {
	case err == nil:
		return &resp, nil
	case errors.Is(err, sqlx.ErrNotFound):
		return nil, ErrNotFound
	default:
		return nil, err
	}
}

func (m *defaultSentimentCacheModel) Purge(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM public.sentiment_cache WHERE expires_at <= $1`
	result, err := m.conn.ExecCtx(ctx, query, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
