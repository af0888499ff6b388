package sentiment

import (
	"context"
	"math"
	"strings"
)

// Scorer turns an article set into a sentiment score in [-1, 1] and a
// confidence in [0, 1].
type Scorer interface {
	ScoreArticles(ctx context.Context, ticker string, articles []Article) (score, confidence float64, err error)
}

// LexiconScorer scores headlines by counting polarity words. Deterministic
// and dependency-free; the default when no LLM scorer is configured.
type LexiconScorer struct{}

var positiveWords = map[string]struct{}{
	"beat": {}, "beats": {}, "bullish": {}, "buy": {}, "gain": {}, "gains": {},
	"growth": {}, "jump": {}, "jumps": {}, "outperform": {}, "profit": {},
	"rally": {}, "record": {}, "rise": {}, "rises": {}, "soar": {}, "soars": {},
	"strong": {}, "surge": {}, "surges": {}, "upgrade": {}, "upgraded": {}, "win": {},
}

var negativeWords = map[string]struct{}{
	"bearish": {}, "crash": {}, "cut": {}, "cuts": {}, "decline": {}, "declines": {},
	"downgrade": {}, "downgraded": {}, "drop": {}, "drops": {}, "fall": {}, "falls": {},
	"fraud": {}, "lawsuit": {}, "loss": {}, "losses": {}, "miss": {}, "misses": {},
	"plunge": {}, "plunges": {}, "recall": {}, "sell": {}, "slump": {}, "weak": {},
}

// ScoreArticles averages per-article polarity. Confidence grows with the
// number of articles that carried any signal at all.
func (LexiconScorer) ScoreArticles(_ context.Context, _ string, articles []Article) (float64, float64, error) {
	if len(articles) == 0 {
		return 0, 0, nil
	}

	var total float64
	scored := 0
	for _, a := range articles {
		s, hit := scoreText(a.Title + " " + a.Summary)
		if hit {
			total += s
			scored++
		}
	}
	if scored == 0 {
		return 0, 0, nil
	}

	score := Clamp(total / float64(scored))
	confidence := float64(scored) / float64(len(articles))
	return score, confidence, nil
}

func scoreText(text string) (float64, bool) {
	var pos, neg int
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:!?'\"()")
		if _, ok := positiveWords[word]; ok {
			pos++
		} else if _, ok := negativeWords[word]; ok {
			neg++
		}
	}
	if pos+neg == 0 {
		return 0, false
	}
	return float64(pos-neg) / float64(pos+neg), true
}

// Clamp bounds a score into [-1, 1].
func Clamp(score float64) float64 {
	return math.Max(-1, math.Min(1, score))
}
