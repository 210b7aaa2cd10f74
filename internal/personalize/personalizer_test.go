package personalize_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/myrjola/fitcoach/internal/metrics"
	"github.com/myrjola/fitcoach/internal/personalize"
	"github.com/myrjola/fitcoach/internal/readiness"
	"github.com/myrjola/fitcoach/internal/testhelpers"
)

const validContent = `{"adjustedSets": 4, "adjustedReps": 6, "intensityModifier": 0.95,
	"safetyCues": ["Keep a neutral spine.", "Control the descent."],
	"expectations": "Heavy but crisp.", "reasoning": "Well recovered."}`

func completionBody(content string) string {
	body, _ := json.Marshal(map[string]any{ //nolint:errchkjson // static shape.
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
		"usage": map[string]any{"prompt_tokens": 100, "completion_tokens": 50, "total_tokens": 150},
	})
	return string(body)
}

// fakeOpenAI serves chat completions with handler and returns its base URL.
func fakeOpenAI(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv.URL
}

func respond(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody(content)))
	}
}

func testContext(score int, fatigue readiness.FatigueState) personalize.Context {
	return personalize.Context{
		FitnessLevel: personalize.FitnessIntermediate,
		Injuries: []personalize.Injury{
			{BodyPart: "left knee", Severity: "mild", RecoveryStatus: "recovering"},
		},
		Readiness: readiness.DailyReadiness{
			UserID:         "alice",
			Date:           time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			SleepQuality:   readiness.SleepGreat,
			SorenessLevel:  2,
			Score:          score,
			FatigueState:   fatigue,
			Recommendation: "",
			CreatedAt:      time.Time{},
			UpdatedAt:      time.Time{},
		},
		Exercise: personalize.Exercise{Name: "Back squat", Category: "lower", DifficultyLevel: "intermediate"},
		History:  personalize.History{WeeklyVolumeLoad: 120, LastWorkoutDate: nil, CurrentFatigueIndex: 0.2},
	}
}

func TestPersonalizer_GenerateAdjustment(t *testing.T) {
	tests := []struct {
		name        string
		apiKey      string
		handler     http.HandlerFunc
		timeout     time.Duration
		wantSource  personalize.Source
		wantOutcome string
	}{
		{
			name:        "valid ai response",
			apiKey:      "test-key",
			handler:     respond(validContent),
			wantSource:  personalize.SourceAI,
			wantOutcome: metrics.OutcomeAI,
		},
		{
			name:        "repairable ai response",
			apiKey:      "test-key",
			handler:     respond("```json\n" + strings.Replace(validContent, `"Well recovered."}`, `"Well recovered.",}`, 1) + "\n```"),
			wantSource:  personalize.SourceAI,
			wantOutcome: metrics.OutcomeAI,
		},
		{
			name:   "no api key",
			apiKey: "",
			handler: func(http.ResponseWriter, *http.Request) {
				panic("no request expected without an api key")
			},
			wantSource:  personalize.SourceFallback,
			wantOutcome: metrics.OutcomeFallbackNoKey,
		},
		{
			name:   "server error",
			apiKey: "test-key",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, `{"error": {"message": "overloaded"}}`, http.StatusInternalServerError)
			},
			wantSource:  personalize.SourceFallback,
			wantOutcome: metrics.OutcomeFallbackTransport,
		},
		{
			name:   "timeout",
			apiKey: "test-key",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(5 * time.Second):
					respond(validContent)(w, r)
				}
			},
			timeout:     50 * time.Millisecond,
			wantSource:  personalize.SourceFallback,
			wantOutcome: metrics.OutcomeFallbackTransport,
		},
		{
			name:        "malformed json",
			apiKey:      "test-key",
			handler:     respond("Sure! Do three sets of ten."),
			wantSource:  personalize.SourceFallback,
			wantOutcome: metrics.OutcomeFallbackInvalid,
		},
		{
			name:        "out of range field",
			apiKey:      "test-key",
			handler:     respond(strings.Replace(validContent, `"adjustedSets": 4`, `"adjustedSets": 12`, 1)),
			wantSource:  personalize.SourceFallback,
			wantOutcome: metrics.OutcomeFallbackInvalid,
		},
		{
			name:        "empty safety cues",
			apiKey:      "test-key",
			handler:     respond(`{"adjustedSets": 3, "adjustedReps": 10, "intensityModifier": 0.8, "safetyCues": []}`),
			wantSource:  personalize.SourceFallback,
			wantOutcome: metrics.OutcomeFallbackInvalid,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.NewTestManager()
			p := personalize.New(personalize.Config{
				APIKey:      tt.apiKey,
				BaseURL:     fakeOpenAI(t, tt.handler),
				Model:       "test-model",
				Timeout:     tt.timeout,
				MaxTokens:   0,
				Temperature: 0,
			}, testhelpers.NewLogger(testhelpers.NewWriter(t)), m)

			c := testContext(85, readiness.FatigueNormal)
			got, err := p.GenerateAdjustment(t.Context(), c)
			if err != nil {
				t.Fatalf("GenerateAdjustment() error = %v", err)
			}
			if got.Source != tt.wantSource {
				t.Errorf("GenerateAdjustment() source = %q, want %q", got.Source, tt.wantSource)
			}
			if err = personalize.ValidateRecommendation(got); err != nil {
				t.Errorf("GenerateAdjustment() returned invalid recommendation: %v", err)
			}
			if tt.wantSource == personalize.SourceFallback {
				if diff := cmp.Diff(personalize.Fallback(c.Readiness), got); diff != "" {
					t.Errorf("GenerateAdjustment() fallback mismatch (-want +got):\n%s", diff)
				}
			}
			outcome := m.CounterPersonalizations.WithLabelValues(tt.wantOutcome)
			if value := metrics.CounterValue(outcome); value != 1 {
				t.Errorf("outcome %s counter = %v, want 1", tt.wantOutcome, value)
			}
			if tt.name == "valid ai response" {
				if v := metrics.CounterValue(m.CounterAITokens.WithLabelValues("prompt")); v != 100 {
					t.Errorf("prompt tokens = %v, want 100", v)
				}
				if v := metrics.CounterValue(m.CounterAITokens.WithLabelValues("completion")); v != 50 {
					t.Errorf("completion tokens = %v, want 50", v)
				}
			}
		})
	}
}

func TestPersonalizer_GenerateAdjustment_Request(t *testing.T) {
	var request struct {
		Model          string `json:"model"`
		MaxTokens      int    `json:"max_tokens"`
		ResponseFormat struct {
			Type string `json:"type"`
		} `json:"response_format"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	var authorization string
	url := fakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		authorization = r.Header.Get("Authorization")
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		respond(validContent)(w, r)
	})
	p := personalize.New(personalize.Config{
		APIKey:      "secret",
		BaseURL:     url,
		Model:       "test-model",
		Timeout:     time.Second,
		MaxTokens:   256,
		Temperature: 0.2,
	}, testhelpers.NewLogger(testhelpers.NewWriter(t)), nil)

	got, err := p.GenerateAdjustment(t.Context(), testContext(85, readiness.FatigueNormal))
	if err != nil {
		t.Fatalf("GenerateAdjustment() error = %v", err)
	}
	if got.Source != personalize.SourceAI {
		t.Fatalf("GenerateAdjustment() source = %q, want ai", got.Source)
	}
	if authorization != "Bearer secret" {
		t.Errorf("Authorization = %q", authorization)
	}
	if request.Model != "test-model" || request.MaxTokens != 256 || request.ResponseFormat.Type != "json_object" {
		t.Errorf("request model %q max_tokens %d response_format %q",
			request.Model, request.MaxTokens, request.ResponseFormat.Type)
	}
	if len(request.Messages) != 2 || request.Messages[0].Role != "system" || request.Messages[1].Role != "user" {
		t.Fatalf("request messages = %+v", request.Messages)
	}
	for _, want := range []string{"Back squat", "Readiness score: 85/100", "left knee"} {
		if !strings.Contains(request.Messages[1].Content, want) {
			t.Errorf("user prompt does not mention %q:\n%s", want, request.Messages[1].Content)
		}
	}
}

func TestPersonalizer_GenerateAdjustment_InvalidContext(t *testing.T) {
	p := personalize.New(personalize.Config{}, testhelpers.NewLogger(testhelpers.NewWriter(t)), nil) //nolint:exhaustruct // defaults.
	tests := []struct {
		name   string
		mutate func(c *personalize.Context)
	}{
		{name: "empty exercise", mutate: func(c *personalize.Context) { c.Exercise.Name = " " }},
		{name: "score above range", mutate: func(c *personalize.Context) { c.Readiness.Score = 101 }},
		{name: "negative score", mutate: func(c *personalize.Context) { c.Readiness.Score = -1 }},
		{name: "unknown fatigue", mutate: func(c *personalize.Context) { c.Readiness.FatigueState = "LOW" }},
		{name: "unknown fitness level", mutate: func(c *personalize.Context) { c.FitnessLevel = "elite" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testContext(50, readiness.FatigueNormal)
			tt.mutate(&c)
			if _, err := p.GenerateAdjustment(t.Context(), c); !errors.Is(err, personalize.ErrInvalidContext) {
				t.Errorf("GenerateAdjustment() error = %v, want ErrInvalidContext", err)
			}
		})
	}
}

func TestFallback(t *testing.T) {
	tests := []struct {
		name      string
		score     int
		fatigue   readiness.FatigueState
		sets      int
		reps      int
		intensity float64
		cues      int
	}{
		{name: "low readiness", score: 35, fatigue: readiness.FatigueNormal, sets: 2, reps: 8, intensity: 0.7, cues: 3},
		{name: "moderate readiness", score: 55, fatigue: readiness.FatigueNormal, sets: 3, reps: 10, intensity: 0.85, cues: 2},
		{name: "high readiness", score: 85, fatigue: readiness.FatigueNormal, sets: 3, reps: 12, intensity: 1.0, cues: 1},
		{name: "high fatigue overrides score", score: 85, fatigue: readiness.FatigueHigh, sets: 2, reps: 8, intensity: 0.7, cues: 3},
		{name: "threshold 40 is moderate", score: 40, fatigue: readiness.FatigueNormal, sets: 3, reps: 10, intensity: 0.85, cues: 2},
		{name: "threshold 70 is high", score: 70, fatigue: readiness.FatigueNormal, sets: 3, reps: 12, intensity: 1.0, cues: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := personalize.Fallback(testContext(tt.score, tt.fatigue).Readiness)
			if got.AdjustedSets != tt.sets || got.AdjustedReps != tt.reps || got.IntensityModifier != tt.intensity {
				t.Errorf("Fallback() = %d sets %d reps %v intensity, want %d/%d/%v",
					got.AdjustedSets, got.AdjustedReps, got.IntensityModifier, tt.sets, tt.reps, tt.intensity)
			}
			if len(got.SafetyCues) != tt.cues {
				t.Errorf("Fallback() cues = %d, want %d", len(got.SafetyCues), tt.cues)
			}
			if got.Source != personalize.SourceFallback {
				t.Errorf("Fallback() source = %q", got.Source)
			}
			if err := personalize.ValidateRecommendation(got); err != nil {
				t.Errorf("Fallback() invalid: %v", err)
			}
		})
	}
}
