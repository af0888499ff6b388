package sentiment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// LLMConfig configures the chat-completion scorer. The scorer is enabled
// only when an API key is present.
type LLMConfig struct {
	APIKey         string `json:",optional"`
	BaseURL        string `json:",optional"`
	Model          string `json:",default=gpt-4o-mini"`
	TimeoutSeconds int    `json:",default=20"`
}

// LLMScorer asks a chat model to rate the article set. It replaces the
// lexicon scorer when configured; scores are clamped to [-1, 1] regardless of
// what the model returns.
type LLMScorer struct {
	client *openai.Client
	model  string
}

// LLMOption configures an LLMScorer.
type LLMOption func(*LLMScorer)

// WithOpenAIClient injects a pre-built client, mainly for tests.
func WithOpenAIClient(client *openai.Client) LLMOption {
	return func(s *LLMScorer) { s.client = client }
}

// NewLLMScorer builds the scorer from config.
func NewLLMScorer(cfg LLMConfig, opts ...LLMOption) (*LLMScorer, error) {
	s := &LLMScorer{model: cfg.Model}
	for _, opt := range opts {
		opt(s)
	}
	if s.model == "" {
		s.model = "gpt-4o-mini"
	}
	if s.client == nil {
		if cfg.APIKey == "" {
			return nil, errors.New("sentiment: llm scorer requires an api key")
		}
		oaOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			oaOpts = append(oaOpts, option.WithBaseURL(cfg.BaseURL))
		}
		if cfg.TimeoutSeconds > 0 {
			oaOpts = append(oaOpts, option.WithRequestTimeout(time.Duration(cfg.TimeoutSeconds)*time.Second))
		}
		client := openai.NewClient(oaOpts...)
		s.client = &client
	}
	return s, nil
}

const scorerSystemPrompt = "You rate news sentiment for a stock. " +
	"Reply with exactly two numbers separated by a space: " +
	"a sentiment score in [-1,1] and a confidence in [0,1]."

// ScoreArticles sends the headlines to the model and parses its two-number
// reply.
func (s *LLMScorer) ScoreArticles(ctx context.Context, ticker string, articles []Article) (float64, float64, error) {
	if len(articles) == 0 {
		return 0, 0, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Ticker: %s\nHeadlines:\n", ticker)
	for _, a := range articles {
		fmt.Fprintf(&sb, "- %s", a.Title)
		if a.Summary != "" {
			fmt.Fprintf(&sb, ": %s", a.Summary)
		}
		sb.WriteString("\n")
	}

	completion, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(scorerSystemPrompt),
			openai.UserMessage(sb.String()),
		},
	})
	if err != nil {
		return 0, 0, fmt.Errorf("sentiment: llm scorer: %w", err)
	}
	if len(completion.Choices) == 0 {
		return 0, 0, errors.New("sentiment: llm scorer returned no choices")
	}

	var score, confidence float64
	reply := strings.TrimSpace(completion.Choices[0].Message.Content)
	if _, err := fmt.Sscanf(reply, "%f %f", &score, &confidence); err != nil {
		return 0, 0, fmt.Errorf("sentiment: unparseable scorer reply %q: %w", reply, err)
	}
	return Clamp(score), math.Max(0, math.Min(1, confidence)), nil
}
