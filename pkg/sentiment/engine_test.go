package sentiment

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pfolio-api/pkg/fault"
	"pfolio-api/pkg/universe"
)

type countingNews struct {
	inner NewsProvider
	calls atomic.Int64
}

func (p *countingNews) Articles(ctx context.Context, ticker string, windowDays int) ([]Article, error) {
	p.calls.Add(1)
	return p.inner.Articles(ctx, ticker, windowDays)
}

func newsFor(tickers ...string) *StaticNewsProvider {
	p := &StaticNewsProvider{ByTicker: make(map[string][]Article)}
	for _, t := range tickers {
		p.ByTicker[t] = []Article{
			{Title: t + " beats earnings, shares surge", PublishedAt: time.Now().UTC()},
			{Title: t + " faces lawsuit over recall", PublishedAt: time.Now().UTC()},
			{Title: t + " announces quarterly report", PublishedAt: time.Now().UTC()},
		}
	}
	return p
}

func gateFor(tickers ...string) *universe.Gate {
	return universe.NewGate(&universe.StaticModelStore{Tickers: tickers})
}

func TestScoreLexicon(t *testing.T) {
	engine := NewEngine(Config{}, gateFor("AAPL"), newsFor("AAPL"), nil)

	res, err := engine.Score(context.Background(), "AAPL", 7)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", res.Ticker)
	assert.Equal(t, 3, res.Articles)
	assert.GreaterOrEqual(t, res.Score, -1.0)
	assert.LessOrEqual(t, res.Score, 1.0)
	assert.InDelta(t, 2.0/3.0, res.Confidence, 1e-9, "two of three headlines carry signal")
}

func TestScoreNeutralOnZeroArticles(t *testing.T) {
	engine := NewEngine(Config{}, gateFor("AAPL"), &StaticNewsProvider{}, nil)

	res, err := engine.Score(context.Background(), "AAPL", 7)
	require.NoError(t, err)
	assert.Zero(t, res.Score)
	assert.Zero(t, res.Confidence)
	assert.Zero(t, res.Articles)
}

func TestScoreGateRejection(t *testing.T) {
	engine := NewEngine(Config{}, gateFor("AAPL"), newsFor("AAPL"), nil)

	_, err := engine.Score(context.Background(), "TSLA", 7)
	var unsupported *fault.UnsupportedTickerError
	require.ErrorAs(t, err, &unsupported)
}

func TestScoreRejectsBadWindow(t *testing.T) {
	engine := NewEngine(Config{}, gateFor("AAPL"), newsFor("AAPL"), nil)

	_, err := engine.Score(context.Background(), "AAPL", 0)
	var invalid *fault.InvalidParameterError
	require.ErrorAs(t, err, &invalid)
}

func TestScoreCacheHitMatchesMiss(t *testing.T) {
	news := &countingNews{inner: newsFor("AAPL")}
	engine := NewEngine(Config{}, gateFor("AAPL"), news, nil)
	ctx := context.Background()

	miss, err := engine.Score(ctx, "AAPL", 7)
	require.NoError(t, err)
	assert.False(t, miss.Cached)

	hit, err := engine.Score(ctx, "AAPL", 7)
	require.NoError(t, err)
	assert.True(t, hit.Cached)
	assert.Equal(t, miss.Score, hit.Score)
	assert.Equal(t, miss.Confidence, hit.Confidence)
	assert.Equal(t, int64(1), news.calls.Load(), "second call served from cache")

	_, err = engine.Score(ctx, "AAPL", 30)
	require.NoError(t, err)
	assert.Equal(t, int64(2), news.calls.Load(), "different window is a different key")
}

func TestCacheEvictsWhenFull(t *testing.T) {
	c := newCache(time.Minute, 2, nil)
	day := time.Now().UTC()

	c.put(cacheKey("AAA", 7, day), Result{Ticker: "AAA"})
	c.put(cacheKey("BBB", 7, day), Result{Ticker: "BBB"})
	c.put(cacheKey("CCC", 7, day), Result{Ticker: "CCC"})
	assert.Equal(t, 2, c.len(), "cache stays bounded")

	_, ok := c.get(cacheKey("CCC", 7, day))
	assert.True(t, ok, "newest entry survives eviction")
}

func TestCacheExpiry(t *testing.T) {
	current := time.Now().UTC()
	clock := func() time.Time { return current }
	c := newCache(time.Minute, 10, clock)

	key := cacheKey("AAA", 7, current)
	c.put(key, Result{Ticker: "AAA", Score: 0.5})
	_, ok := c.get(key)
	require.True(t, ok)

	current = current.Add(2 * time.Minute)
	_, ok = c.get(key)
	assert.False(t, ok, "entry expires after TTL")
}

type failingNews struct{ err error }

func (p *failingNews) Articles(ctx context.Context, ticker string, windowDays int) ([]Article, error) {
	return nil, p.err
}

func TestResilientNewsProviderTimeout(t *testing.T) {
	inner := &failingNews{err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}}
	p := NewResilientNewsProvider("wire", inner, WithNewsMaxRetries(1), WithNewsTimeout(time.Second))

	_, err := p.Articles(context.Background(), "AAPL", 7)
	var timeout *fault.ProviderTimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, "wire", timeout.Provider)
	assert.Equal(t, 2, timeout.Attempts)
}

func TestResilientNewsProviderPermanentError(t *testing.T) {
	permanent := errors.New("unauthorized")
	p := NewResilientNewsProvider("wire", &failingNews{err: permanent}, WithNewsMaxRetries(3))

	_, err := p.Articles(context.Background(), "AAPL", 7)
	assert.ErrorIs(t, err, permanent)
}

func TestLexiconScorerPolarity(t *testing.T) {
	scorer := LexiconScorer{}
	ctx := context.Background()

	pos, conf, err := scorer.ScoreArticles(ctx, "AAPL", []Article{{Title: "shares surge on strong growth"}})
	require.NoError(t, err)
	assert.Equal(t, 1.0, pos)
	assert.Equal(t, 1.0, conf)

	neg, _, err := scorer.ScoreArticles(ctx, "AAPL", []Article{{Title: "stock plunges after downgrade"}})
	require.NoError(t, err)
	assert.Equal(t, -1.0, neg)

	zero, conf, err := scorer.ScoreArticles(ctx, "AAPL", nil)
	require.NoError(t, err)
	assert.Zero(t, zero)
	assert.Zero(t, conf)
}
