package readiness

import (
	"time"

	"github.com/myrjola/fitcoach/internal/errors"
)

var (
	// ErrNotFound is returned when the user has no readiness record for the requested day.
	ErrNotFound = errors.NewSentinel("readiness record not found")
	// ErrAlreadyRecorded is returned when the user already checked in for the day.
	ErrAlreadyRecorded = errors.NewSentinel("readiness already recorded for the day")
	// ErrInvalidCheck is returned for check-ins outside the accepted value ranges.
	ErrInvalidCheck = errors.NewSentinel("invalid readiness check")
)

// SleepQuality is the self-reported quality of last night's sleep.
type SleepQuality string

const (
	SleepPoor    SleepQuality = "poor"
	SleepAverage SleepQuality = "average"
	SleepGreat   SleepQuality = "great"
)

// FatigueState gates how conservative the day's training should be.
type FatigueState string

const (
	FatigueHigh   FatigueState = "HIGH"
	FatigueNormal FatigueState = "NORMAL"
)

const (
	MinSoreness = 1
	MaxSoreness = 10
)

// Check is the daily self-reported input.
type Check struct {
	SleepQuality  SleepQuality `json:"sleep_quality"`
	SorenessLevel int          `json:"soreness_level"`
}

// Score is the outcome of scoring a Check.
type Score struct {
	Value          int          `json:"readiness_score"`
	FatigueState   FatigueState `json:"fatigue_state"`
	Recommendation string       `json:"recommendation"`
}

// DailyReadiness is the stored result of a user's check-in. There is at most one per user and date and
// it is never modified after creation.
type DailyReadiness struct {
	UserID         string       `json:"user_id"`
	Date           time.Time    `json:"-"`
	SleepQuality   SleepQuality `json:"sleep_quality"`
	SorenessLevel  int          `json:"soreness_level"`
	Score          int          `json:"readiness_score"`
	FatigueState   FatigueState `json:"fatigue_state"`
	Recommendation string       `json:"recommendation"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Trend summarises the most recent records of a user.
type Trend struct {
	Days             int     `json:"days"`
	Count            int     `json:"count"`
	Average          float64 `json:"average"`
	Min              int     `json:"min"`
	Max              int     `json:"max"`
	HighFatigueCount int     `json:"high_fatigue_count"`
}

// FormatDate formats the calendar day of t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(time.DateOnly)
}

// Day truncates t to midnight UTC of its calendar day in t's location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
