package progression

import (
	"math"
	"time"

	"github.com/myrjola/fitcoach/internal/readiness"
)

// StreakKind tells how a completed session changes the streak of consecutive workout days.
type StreakKind int

const (
	// StreakStarted is the first ever session.
	StreakStarted StreakKind = iota + 1
	// StreakUnchanged is another session on a day that already counted.
	StreakUnchanged
	// StreakIncremented is a session on the day after the previous one.
	StreakIncremented
	// StreakReset is a session after a gap of two or more days, or before the last workout date.
	// [Service.ApplySessionResult] rejects the latter.
	StreakReset
)

// StreakTransition is the outcome of [ComputeStreak].
type StreakTransition struct {
	Kind StreakKind
}

// Next returns the streak after the transition given the current streak.
func (t StreakTransition) Next(current int) int {
	switch t.Kind {
	case StreakUnchanged:
		return current
	case StreakIncremented:
		return current + 1
	case StreakStarted, StreakReset:
		return 1
	}
	return current
}

// Status is the label stored with each session result.
func (t StreakTransition) Status() string {
	switch t.Kind {
	case StreakUnchanged:
		return "maintained"
	case StreakIncremented:
		return "incremented"
	case StreakStarted, StreakReset:
		return "reset"
	}
	return "unknown"
}

func (t StreakTransition) String() string {
	return t.Status()
}

// ComputeStreak classifies a session on today against the previous workout day by calendar date.
func ComputeStreak(lastWorkout *time.Time, today time.Time) StreakTransition {
	if lastWorkout == nil {
		return StreakTransition{Kind: StreakStarted}
	}
	last := readiness.Day(*lastWorkout)
	current := readiness.Day(today)
	switch {
	case last.Equal(current):
		return StreakTransition{Kind: StreakUnchanged}
	case last.AddDate(0, 0, 1).Equal(current):
		return StreakTransition{Kind: StreakIncremented}
	default:
		return StreakTransition{Kind: StreakReset}
	}
}

// PointsForSession awards ten points per minute and five per adherence point, rounded down.
func PointsForSession(durationMinutes, adherenceScore float64) int {
	return int(math.Floor(durationMinutes*10 + adherenceScore*5))
}

const pointsPerLevelUnit = 100

// LevelFromPoints inverts [ThresholdForLevel], rounding down.
func LevelFromPoints(totalPoints int) int {
	if totalPoints < pointsPerLevelUnit {
		return 1
	}
	return int(math.Floor(math.Sqrt(float64(totalPoints) / pointsPerLevelUnit)))
}

// ThresholdForLevel is the total points at which level is reached.
func ThresholdForLevel(level int) int {
	return pointsPerLevelUnit * level * level
}

// PointsForNextLevel is the total points at which the level after level is reached.
func PointsForNextLevel(level int) int {
	return ThresholdForLevel(level + 1)
}

// Apply folds a completed session into state.
//
// A second session on the same day adds points and volume but leaves the streak and last workout day
// alone. Weekly volume starts over when the session falls into a different ISO week than the one being
// accumulated.
func Apply(state State, result SessionResult) (State, StreakTransition, int) {
	sessionDay := readiness.Day(result.Date)
	transition := ComputeStreak(state.LastWorkoutDate, sessionDay)
	points := PointsForSession(result.DurationMinutes, result.AdherenceScore)

	next := state
	next.TotalPoints += points
	next.CurrentLevel = LevelFromPoints(next.TotalPoints)
	next.CurrentStreak = transition.Next(state.CurrentStreak)
	if transition.Kind != StreakUnchanged {
		next.LastWorkoutDate = &sessionDay
	}

	week := weekStart(sessionDay)
	if state.WeekStart == nil || !state.WeekStart.Equal(week) {
		next.WeeklyVolumeMinutes = 0
		next.WeekStart = &week
	}
	next.WeeklyVolumeMinutes += result.DurationMinutes

	return next, transition, points
}

// weekStart returns the Monday of the ISO week containing t.
func weekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7 //nolint:mnd // days since Monday.
	return readiness.Day(t).AddDate(0, 0, -offset)
}
