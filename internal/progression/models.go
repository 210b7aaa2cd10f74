package progression

import (
	"fmt"
	"math"
	"time"

	"github.com/myrjola/fitcoach/internal/errors"
	"github.com/myrjola/fitcoach/internal/readiness"
)

// ErrInvalidSession is returned for session results that cannot have happened.
var ErrInvalidSession = errors.NewSentinel("invalid session result")

const (
	maxSessionMinutes = 24 * 60
	maxAdherenceScore = 100
)

// State is the progression of a single user. CurrentLevel is always derived from TotalPoints.
type State struct {
	TotalPoints         int        `json:"total_points"`
	CurrentLevel        int        `json:"current_level"`
	CurrentStreak       int        `json:"current_streak"`
	LastWorkoutDate     *time.Time `json:"last_workout_date"`
	WeeklyVolumeMinutes float64    `json:"weekly_volume_minutes"`
	// WeekStart is the Monday of the ISO week WeeklyVolumeMinutes accumulates over.
	WeekStart *time.Time `json:"week_start"`
}

// ZeroState is the progression of a user without any completed sessions.
func ZeroState() State {
	return State{
		TotalPoints:         0,
		CurrentLevel:        1,
		CurrentStreak:       0,
		LastWorkoutDate:     nil,
		WeeklyVolumeMinutes: 0,
		WeekStart:           nil,
	}
}

// SessionResult describes a completed workout session.
type SessionResult struct {
	Date            time.Time `json:"date"`
	DurationMinutes float64   `json:"duration_minutes"`
	AdherenceScore  float64   `json:"adherence_score"`
}

// Validate reports ErrInvalidSession for negative or non-finite values, sessions longer than a day,
// and adherence scores above maxAdherenceScore.
func (r SessionResult) Validate() error {
	if r.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidSession)
	}
	if math.IsNaN(r.DurationMinutes) || r.DurationMinutes < 0 || r.DurationMinutes > maxSessionMinutes {
		return fmt.Errorf("%w: duration %v minutes", ErrInvalidSession, r.DurationMinutes)
	}
	if math.IsNaN(r.AdherenceScore) || r.AdherenceScore < 0 || r.AdherenceScore > maxAdherenceScore {
		return fmt.Errorf("%w: adherence score %v", ErrInvalidSession, r.AdherenceScore)
	}
	return nil
}

// ValidateAgainst reports ErrInvalidSession when r cannot follow state: it is dated before the last
// workout day or its points do not fit the total.
func (r SessionResult) ValidateAgainst(state State) error {
	if state.LastWorkoutDate != nil && readiness.Day(r.Date).Before(*state.LastWorkoutDate) {
		return fmt.Errorf("%w: session on %s is before the last workout on %s", ErrInvalidSession,
			readiness.FormatDate(readiness.Day(r.Date)), readiness.FormatDate(*state.LastWorkoutDate))
	}
	points := PointsForSession(r.DurationMinutes, r.AdherenceScore)
	if points < 0 || points > math.MaxInt-state.TotalPoints {
		return fmt.Errorf("%w: %d points overflow the total of %d", ErrInvalidSession, points, state.TotalPoints)
	}
	return nil
}

// Outcome is what applying a session result did to a user's progression.
type Outcome struct {
	State        State            `json:"state"`
	PointsEarned int              `json:"points_earned"`
	Streak       StreakTransition `json:"-"`
	StreakStatus string           `json:"streak_status"`
	LeveledUp    bool             `json:"leveled_up"`
	// PointsToNextLevel is how many more points reach the next level.
	PointsToNextLevel int `json:"points_to_next_level"`
}
