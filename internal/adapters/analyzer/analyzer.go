// Package analyzer scores sampled diffs and reviews through an LLM and
// falls back to a neutral result when the model is unreachable.
package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/teamlens/teamlens/internal/domain/analysis"
	"github.com/teamlens/teamlens/pkg/logger"
	"github.com/teamlens/teamlens/pkg/metrics"
)

const (
	defaultModel = openai.GPT4oMini
	// Prompt payloads are truncated to keep requests inside context limits.
	maxPromptChars = 24_000
)

// ErrEmptyResponse indicates the model returned no usable choice.
var ErrEmptyResponse = errors.New("empty model response")

// Analyzer talks to the chat completion API in JSON mode.
type Analyzer struct {
	client *openai.Client
	model  string
}

// Option applies a configuration option to the Analyzer.
type Option func(*Analyzer)

// WithModel overrides the chat model.
func WithModel(model string) Option {
	return func(a *Analyzer) {
		if model != "" {
			a.model = model
		}
	}
}

// WithBaseURL points the client at a different API endpoint. Used by tests.
func WithBaseURL(apiKey, raw string) Option {
	return func(a *Analyzer) {
		cfg := openai.DefaultConfig(apiKey)
		cfg.BaseURL = raw
		a.client = openai.NewClientWithConfig(cfg)
	}
}

// New constructs an Analyzer.
func New(apiKey string, opts ...Option) *Analyzer {
	a := &Analyzer{
		client: openai.NewClient(apiKey),
		model:  defaultModel,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze runs the three-call sequence for one identity: code quality over
// diff samples, review quality over review samples, then a narrative built
// from both plus the quantitative summary. Any call failing yields the
// neutral fallback result.
func (a *Analyzer) Analyze(ctx context.Context, login string, diffs, reviews []string, quantSummary string) analysis.Result {
	log := logger.Named("analyzer")

	code, err := a.codeQuality(ctx, login, diffs)
	if err != nil {
		log.Warn(ctx, "code quality analysis failed",
			logger.String("login", login), logger.Error(err))
		metrics.RecordAnalyzerFallback()
		return analysis.Fallback()
	}

	review, err := a.reviewQuality(ctx, login, reviews)
	if err != nil {
		log.Warn(ctx, "review quality analysis failed",
			logger.String("login", login), logger.Error(err))
		metrics.RecordAnalyzerFallback()
		return analysis.Fallback()
	}

	insights, err := a.insights(ctx, login, code, review, quantSummary)
	if err != nil {
		log.Warn(ctx, "insight generation failed",
			logger.String("login", login), logger.Error(err))
		metrics.RecordAnalyzerFallback()
		return analysis.Fallback()
	}

	return analysis.Result{Code: code, Review: review, Insights: insights, Available: true}
}

func (a *Analyzer) codeQuality(ctx context.Context, login string, diffs []string) (analysis.CodeQuality, error) {
	prompt := fmt.Sprintf(`Assess the code quality of these commit diffs by %s.

Commits:
%s

Respond with JSON only:
{
    "quality_score": <float 0-10>,
    "maintainability_score": <float 0-10>,
    "patterns_observed": ["<pattern>"],
    "best_practices_followed": ["<practice>"],
    "areas_for_improvement": ["<area>"],
    "summary": "<2-3 sentence summary>"
}`, login, truncate(strings.Join(diffs, "\n\n"), maxPromptChars))

	var out analysis.CodeQuality
	if err := a.complete(ctx, "code_quality", prompt, &out); err != nil {
		return analysis.CodeQuality{}, err
	}
	return out, nil
}

func (a *Analyzer) reviewQuality(ctx context.Context, login string, reviews []string) (analysis.ReviewQuality, error) {
	prompt := fmt.Sprintf(`Assess the code review quality of these reviews written by %s.

Reviews:
%s

Respond with JSON only:
{
    "thoroughness_score": <float 0-10>,
    "helpfulness_score": <float 0-10>,
    "review_patterns": ["<pattern>"],
    "strengths": ["<strength>"],
    "areas_for_improvement": ["<area>"],
    "summary": "<2-3 sentence summary>"
}`, login, truncate(strings.Join(reviews, "\n\n"), maxPromptChars))

	var out analysis.ReviewQuality
	if err := a.complete(ctx, "review_quality", prompt, &out); err != nil {
		return analysis.ReviewQuality{}, err
	}
	return out, nil
}

func (a *Analyzer) insights(ctx context.Context, login string, code analysis.CodeQuality, review analysis.ReviewQuality, quantSummary string) (analysis.Insights, error) {
	prompt := fmt.Sprintf(`Summarize the performance of engineer %s.

Code quality assessment: %s
Review quality assessment: %s
Quantitative metrics: %s

Respond with JSON only:
{
    "strengths": ["<3-5 items>"],
    "improvements": ["<3-5 items>"],
    "overall_summary": "<2-3 paragraphs>"
}`, login, code.Summary, review.Summary, quantSummary)

	var out analysis.Insights
	if err := a.complete(ctx, "insights", prompt, &out); err != nil {
		return analysis.Insights{}, err
	}
	return out, nil
}

func (a *Analyzer) complete(ctx context.Context, op, prompt string, out any) error {
	start := time.Now()
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You are an experienced engineering manager reviewing contribution quality. Respond with strict JSON."},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	metrics.ObserveAnalyzerLatency(time.Since(start).Seconds())
	if err != nil {
		metrics.RecordAnalyzerCall("error")
		return fmt.Errorf("%s: %w", op, err)
	}
	if len(resp.Choices) == 0 {
		metrics.RecordAnalyzerCall("error")
		return fmt.Errorf("%s: %w", op, ErrEmptyResponse)
	}

	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), out); err != nil {
		metrics.RecordAnalyzerCall("error")
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	metrics.RecordAnalyzerCall("ok")
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "\n... (truncated)"
}
