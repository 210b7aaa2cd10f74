package personalize

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"
	"github.com/myrjola/fitcoach/internal/errors"
	"github.com/myrjola/fitcoach/internal/metrics"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

// Config configures the chat completion endpoint.
type Config struct {
	// APIKey disables the AI call and always uses the fallback when empty.
	APIKey string
	// BaseURL points the client at an OpenAI compatible provider. Empty uses the OpenAI API.
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxTokens   int64
	Temperature float64
}

const (
	defaultModel       = "gpt-4o-mini"
	defaultTimeout     = 10 * time.Second
	defaultMaxTokens   = 500
	defaultTemperature = 0.3
)

// Personalizer adjusts exercise prescriptions to the day's readiness.
type Personalizer struct {
	client      *openai.Client
	model       string
	timeout     time.Duration
	maxTokens   int64
	temperature float64
	logger      *slog.Logger
	metrics     *metrics.Manager
}

// New creates a Personalizer. Zero valued config fields get defaults.
func New(cfg Config, logger *slog.Logger, m *metrics.Manager) *Personalizer {
	p := &Personalizer{
		client:      nil,
		model:       cfg.Model,
		timeout:     cfg.Timeout,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      logger,
		metrics:     m,
	}
	if p.model == "" {
		p.model = defaultModel
	}
	if p.timeout <= 0 {
		p.timeout = defaultTimeout
	}
	if p.maxTokens <= 0 {
		p.maxTokens = defaultMaxTokens
	}
	if p.temperature <= 0 {
		p.temperature = defaultTemperature
	}
	if cfg.APIKey != "" {
		opts := []option.RequestOption{
			option.WithAPIKey(cfg.APIKey),
			// The fallback is the retry.
			option.WithMaxRetries(0),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
		client := openai.NewClient(opts...)
		p.client = &client
	}
	return p
}

// GenerateAdjustment returns the AI recommendation for c, or the readiness based [Fallback] when the AI
// is not configured, unreachable, slow, or answers with anything but a valid recommendation.
//
// The only error is ErrInvalidContext.
func (p *Personalizer) GenerateAdjustment(ctx context.Context, c Context) (Recommendation, error) {
	if err := c.Validate(); err != nil {
		return Recommendation{}, errors.Wrap(err, "validate personalization context")
	}

	if p.client == nil {
		return p.fallback(ctx, c, metrics.OutcomeFallbackNoKey, nil), nil
	}

	content, err := p.complete(ctx, c)
	if err != nil {
		return p.fallback(ctx, c, metrics.OutcomeFallbackTransport, err), nil
	}
	rec, err := parseRecommendation(content)
	if err != nil {
		return p.fallback(ctx, c, metrics.OutcomeFallbackInvalid, err), nil
	}

	p.observe(metrics.OutcomeAI)
	p.logger.LogAttrs(ctx, slog.LevelInfo, "personalized exercise",
		slog.String("exercise", c.Exercise.Name),
		slog.String("source", string(rec.Source)),
		slog.Int("sets", rec.AdjustedSets),
		slog.Int("reps", rec.AdjustedReps),
		slog.Float64("intensity", rec.IntensityModifier))
	return rec, nil
}

func (p *Personalizer) complete(ctx context.Context, c Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	completion, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{ //nolint:exhaustruct // only need to set a few fields.
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt(c)),
		},
		MaxTokens:   openai.Int(p.maxTokens),
		Temperature: openai.Float(p.temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{ //nolint:exhaustruct // union.
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{}, //nolint:exhaustruct // type has a default.
		},
	})
	if p.metrics != nil {
		p.metrics.HistAIDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("chat completion without choices")
	}
	if p.metrics != nil {
		p.metrics.CounterAITokens.WithLabelValues("prompt").Add(float64(completion.Usage.PromptTokens))
		p.metrics.CounterAITokens.WithLabelValues("completion").Add(float64(completion.Usage.CompletionTokens))
	}
	p.logger.LogAttrs(ctx, slog.LevelDebug, "received chat completion",
		slog.Int64("prompt_tokens", completion.Usage.PromptTokens),
		slog.Int64("completion_tokens", completion.Usage.CompletionTokens),
		slog.Duration("duration", time.Since(start)))
	return completion.Choices[0].Message.Content, nil
}

// aiRecommendation accepts numbers in any JSON form so that "3.0" sets is not a decode error.
type aiRecommendation struct {
	AdjustedSets      *float64 `json:"adjustedSets"`
	AdjustedReps      *float64 `json:"adjustedReps"`
	IntensityModifier *float64 `json:"intensityModifier"`
	SafetyCues        []string `json:"safetyCues"`
	Expectations      string   `json:"expectations"`
	Reasoning         string   `json:"reasoning"`
}

// parseRecommendation decodes the model output after repairing common defects such as code fences,
// trailing commas, and single quotes, and validates every field.
func parseRecommendation(content string) (Recommendation, error) {
	repaired, err := jsonrepair.JSONRepair(stripCodeFence(content))
	if err != nil {
		return Recommendation{}, fmt.Errorf("%w: repair json: %w", ErrInvalidRecommendation, err)
	}
	var raw aiRecommendation
	if err = json.Unmarshal([]byte(repaired), &raw); err != nil {
		return Recommendation{}, fmt.Errorf("%w: decode json: %w", ErrInvalidRecommendation, err)
	}
	if raw.AdjustedSets == nil || raw.AdjustedReps == nil || raw.IntensityModifier == nil {
		return Recommendation{}, fmt.Errorf("%w: missing required field", ErrInvalidRecommendation)
	}
	sets, err := wholeNumber("adjustedSets", *raw.AdjustedSets)
	if err != nil {
		return Recommendation{}, err
	}
	reps, err := wholeNumber("adjustedReps", *raw.AdjustedReps)
	if err != nil {
		return Recommendation{}, err
	}
	rec := Recommendation{
		AdjustedSets:      sets,
		AdjustedReps:      reps,
		IntensityModifier: *raw.IntensityModifier,
		SafetyCues:        raw.SafetyCues,
		Expectations:      raw.Expectations,
		Reasoning:         raw.Reasoning,
		Source:            SourceAI,
	}
	if err = ValidateRecommendation(rec); err != nil {
		return Recommendation{}, err
	}
	return rec, nil
}

// stripCodeFence removes a surrounding markdown code block that some models add despite the JSON
// response format.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	return strings.TrimSuffix(strings.TrimSpace(s), "```")
}

func wholeNumber(field string, f float64) (int, error) {
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s %v is not a whole number", ErrInvalidRecommendation, field, f)
	}
	return int(f), nil
}

func (p *Personalizer) fallback(ctx context.Context, c Context, outcome string, cause error) Recommendation {
	p.observe(outcome)
	attrs := []slog.Attr{
		slog.String("exercise", c.Exercise.Name),
		slog.String("outcome", outcome),
		slog.Int("readiness_score", c.Readiness.Score),
	}
	level := slog.LevelInfo
	if cause != nil {
		level = slog.LevelWarn
		attrs = append(attrs, errors.SlogError(cause))
	}
	p.logger.LogAttrs(ctx, level, "using fallback recommendation", attrs...)
	return Fallback(c.Readiness)
}

func (p *Personalizer) observe(outcome string) {
	if p.metrics == nil {
		return
	}
	p.metrics.CounterPersonalizations.WithLabelValues(outcome).Inc()
}
