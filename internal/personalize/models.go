package personalize

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/myrjola/fitcoach/internal/errors"
	"github.com/myrjola/fitcoach/internal/readiness"
)

var (
	// ErrInvalidContext is returned when a personalization is requested with malformed input.
	ErrInvalidContext = errors.NewSentinel("invalid personalization context")
	// ErrInvalidRecommendation marks a recommendation with a field outside its range.
	ErrInvalidRecommendation = errors.NewSentinel("invalid recommendation")
)

// Source tells where a recommendation came from.
type Source string

const (
	SourceAI       Source = "ai"
	SourceFallback Source = "fallback"
)

type FitnessLevel string

const (
	FitnessBeginner     FitnessLevel = "beginner"
	FitnessIntermediate FitnessLevel = "intermediate"
	FitnessAdvanced     FitnessLevel = "advanced"
)

// Injury is an entry of the user's injury history.
type Injury struct {
	BodyPart       string `json:"body_part"`
	Severity       string `json:"severity"`
	RecoveryStatus string `json:"recovery_status"`
}

// Exercise describes the exercise to adjust.
type Exercise struct {
	Name            string `json:"name"`
	Category        string `json:"category"`
	DifficultyLevel string `json:"difficulty_level"`
}

// History aggregates the user's recent training.
type History struct {
	WeeklyVolumeLoad    float64    `json:"weekly_volume_load"`
	LastWorkoutDate     *time.Time `json:"last_workout_date"`
	CurrentFatigueIndex float64    `json:"current_fatigue_index"`
}

// Context is everything a workout adjustment is based on.
type Context struct {
	FitnessLevel FitnessLevel             `json:"fitness_level"`
	Injuries     []Injury                 `json:"injuries"`
	Readiness    readiness.DailyReadiness `json:"readiness"`
	Exercise     Exercise                 `json:"exercise"`
	History      History                  `json:"history"`
}

// Validate reports ErrInvalidContext for input no caller should produce.
func (c Context) Validate() error {
	if strings.TrimSpace(c.Exercise.Name) == "" {
		return fmt.Errorf("%w: empty exercise name", ErrInvalidContext)
	}
	if c.Readiness.Score < 0 || c.Readiness.Score > 100 {
		return fmt.Errorf("%w: readiness score %d outside [0, 100]", ErrInvalidContext, c.Readiness.Score)
	}
	switch c.Readiness.FatigueState {
	case readiness.FatigueHigh, readiness.FatigueNormal:
	default:
		return fmt.Errorf("%w: unknown fatigue state %q", ErrInvalidContext, c.Readiness.FatigueState)
	}
	switch c.FitnessLevel {
	case FitnessBeginner, FitnessIntermediate, FitnessAdvanced, "":
	default:
		return fmt.Errorf("%w: unknown fitness level %q", ErrInvalidContext, c.FitnessLevel)
	}
	return nil
}

// Recommendation is an adjusted prescription for a single exercise.
type Recommendation struct {
	AdjustedSets      int      `json:"adjustedSets"`
	AdjustedReps      int      `json:"adjustedReps"`
	IntensityModifier float64  `json:"intensityModifier"`
	SafetyCues        []string `json:"safetyCues"`
	Expectations      string   `json:"expectations"`
	Reasoning         string   `json:"reasoning"`
	Source            Source   `json:"source"`
}

const (
	minSets      = 1
	maxSets      = 10
	minReps      = 1
	maxReps      = 50
	minIntensity = 0.5
	maxIntensity = 1.0
)

// ValidateRecommendation checks every field of r against its allowed range.
func ValidateRecommendation(r Recommendation) error {
	var errs []error
	if r.AdjustedSets < minSets || r.AdjustedSets > maxSets {
		errs = append(errs, fmt.Errorf("adjusted sets %d outside [%d, %d]", r.AdjustedSets, minSets, maxSets))
	}
	if r.AdjustedReps < minReps || r.AdjustedReps > maxReps {
		errs = append(errs, fmt.Errorf("adjusted reps %d outside [%d, %d]", r.AdjustedReps, minReps, maxReps))
	}
	if math.IsNaN(r.IntensityModifier) || r.IntensityModifier < minIntensity || r.IntensityModifier > maxIntensity {
		errs = append(errs, fmt.Errorf("intensity modifier %v outside [%v, %v]",
			r.IntensityModifier, minIntensity, maxIntensity))
	}
	cues := 0
	for _, cue := range r.SafetyCues {
		if strings.TrimSpace(cue) != "" {
			cues++
		}
	}
	if cues == 0 || cues != len(r.SafetyCues) {
		errs = append(errs, errors.New("safety cues must be non-empty strings"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidRecommendation, errors.Join(errs...))
	}
	return nil
}
