package sentiment

import (
	"context"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"golang.org/x/sync/singleflight"

	"pfolio-api/pkg/fault"
	"pfolio-api/pkg/universe"
)

// Config tunes the sentiment engine.
type Config struct {
	CacheTTLSeconds int `json:",default=900"`
	CacheMaxSize    int `json:",default=1024"`
}

// Result is a sentiment reading for one ticker and window.
type Result struct {
	Ticker     string    `json:"ticker"`
	WindowDays int       `json:"window_days"`
	Score      float64   `json:"score"`
	Confidence float64   `json:"confidence"`
	Articles   int       `json:"articles"`
	AsOf       time.Time `json:"as_of"`
	Cached     bool      `json:"cached"`
}

// Engine scores news sentiment behind the availability gate, caching results
// per (ticker, window, day) and collapsing concurrent misses for the same
// key into one provider call.
type Engine struct {
	gate   *universe.Gate
	news   NewsProvider
	scorer Scorer
	cache  *cache
	group  singleflight.Group
	now    func() time.Time
}

// NewEngine wires the sentiment engine. A nil scorer falls back to the
// lexicon scorer.
func NewEngine(cfg Config, gate *universe.Gate, news NewsProvider, scorer Scorer) *Engine {
	if scorer == nil {
		scorer = LexiconScorer{}
	}
	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	now := time.Now
	return &Engine{
		gate:   gate,
		news:   news,
		scorer: scorer,
		cache:  newCache(ttl, cfg.CacheMaxSize, now),
		now:    now,
	}
}

// Score rates the ticker's news over the trailing window. Zero articles is a
// neutral reading, not an error.
func (e *Engine) Score(ctx context.Context, ticker string, windowDays int) (*Result, error) {
	if windowDays <= 0 {
		return nil, &fault.InvalidParameterError{Param: "windowDays", Reason: "must be positive"}
	}
	if err := e.gate.Require([]string{ticker}); err != nil {
		return nil, err
	}

	key := cacheKey(ticker, windowDays, e.now())
	if cached, ok := e.cache.get(key); ok {
		cached.Cached = true
		return &cached, nil
	}

	v, err, _ := e.group.Do(key, func() (any, error) {
		if cached, ok := e.cache.get(key); ok {
			return cached, nil
		}
		result, err := e.compute(ctx, ticker, windowDays)
		if err != nil {
			return nil, err
		}
		e.cache.put(key, *result)
		return *result, nil
	})
	if err != nil {
		return nil, err
	}
	result := v.(Result)
	return &result, nil
}

func (e *Engine) compute(ctx context.Context, ticker string, windowDays int) (*Result, error) {
	articles, err := e.news.Articles(ctx, ticker, windowDays)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Ticker:     ticker,
		WindowDays: windowDays,
		Articles:   len(articles),
		AsOf:       e.now().UTC(),
	}
	if len(articles) == 0 {
		logx.Infof("sentiment: no articles for %s in %dd window, neutral reading", ticker, windowDays)
		return result, nil
	}

	score, confidence, err := e.scorer.ScoreArticles(ctx, ticker, articles)
	if err != nil {
		return nil, err
	}
	result.Score = Clamp(score)
	result.Confidence = confidence
	return result, nil
}
