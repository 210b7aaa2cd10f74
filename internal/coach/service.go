// Package coach ties readiness, personalization, and progression together for a single user.
package coach

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/myrjola/fitcoach/internal/errors"
	"github.com/myrjola/fitcoach/internal/metrics"
	"github.com/myrjola/fitcoach/internal/personalize"
	"github.com/myrjola/fitcoach/internal/progression"
	"github.com/myrjola/fitcoach/internal/readiness"
	"github.com/myrjola/fitcoach/internal/sqlite"
	"golang.org/x/sync/errgroup"
)

// fatigueWindowDays is how many recent check-ins the fatigue index is computed over.
const fatigueWindowDays = 7

// Service is the application layer the HTTP handlers talk to.
type Service struct {
	readiness    *readiness.Service
	progression  *progression.Service
	personalizer *personalize.Personalizer
	metrics      *metrics.Manager
	logger       *slog.Logger
	now          func() time.Time
}

// NewService creates a new coach service.
func NewService(
	db *sqlite.Database,
	personalizer *personalize.Personalizer,
	m *metrics.Manager,
	logger *slog.Logger,
) *Service {
	return &Service{
		readiness:    readiness.NewService(db, logger),
		progression:  progression.NewService(db, logger),
		personalizer: personalizer,
		metrics:      m,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *Service) today() time.Time {
	return readiness.Day(s.now().UTC())
}

// dayOrToday returns the calendar day of d or today when d is nil. A day after today is reported as
// invalid.
func (s *Service) dayOrToday(d *time.Time, invalid error) (time.Time, error) {
	today := s.today()
	if d == nil {
		return today, nil
	}
	day := readiness.Day(*d)
	if day.After(today) {
		return time.Time{}, fmt.Errorf("%w: %s is in the future", invalid, readiness.FormatDate(day))
	}
	return day, nil
}

// RecordReadiness stores the check-in of userID for date, today when nil. Future dates are rejected
// with readiness.ErrInvalidCheck.
func (s *Service) RecordReadiness(
	ctx context.Context, userID string, date *time.Time, check readiness.Check) (readiness.DailyReadiness, error) {
	day, err := s.dayOrToday(date, readiness.ErrInvalidCheck)
	if err != nil {
		return readiness.DailyReadiness{}, errors.Wrap(err, "record readiness")
	}
	rec, err := s.readiness.CreateRecord(ctx, userID, day, check)
	if err != nil {
		return readiness.DailyReadiness{}, errors.Wrap(err, "record readiness")
	}
	s.metrics.CounterReadinessChecks.WithLabelValues(string(rec.FatigueState)).Inc()
	return rec, nil
}

// TodayReadiness returns today's check-in of userID or readiness.ErrNotFound.
func (s *Service) TodayReadiness(ctx context.Context, userID string) (readiness.DailyReadiness, error) {
	rec, err := s.readiness.CheckExistingForToday(ctx, userID, s.today())
	if err != nil {
		return readiness.DailyReadiness{}, errors.Wrap(err, "today's readiness")
	}
	return rec, nil
}

// AverageReadiness returns the mean score of the latest days check-ins of userID.
func (s *Service) AverageReadiness(ctx context.Context, userID string, days int) (float64, error) {
	average, err := s.readiness.AverageReadiness(ctx, userID, days)
	if err != nil {
		return 0, errors.Wrap(err, "average readiness", slog.Int("days", days))
	}
	return average, nil
}

// ReadinessHistory returns the latest check-ins of userID, newest first.
func (s *Service) ReadinessHistory(ctx context.Context, userID string, limit int) ([]readiness.DailyReadiness, error) {
	records, err := s.readiness.History(ctx, userID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "readiness history", slog.Int("limit", limit))
	}
	return records, nil
}

// PersonalizeRequest is what the client knows about the user and the exercise to adjust.
type PersonalizeRequest struct {
	FitnessLevel personalize.FitnessLevel `json:"fitness_level"`
	Injuries     []personalize.Injury     `json:"injuries"`
	Exercise     personalize.Exercise     `json:"exercise"`
}

// Personalize adjusts the requested exercise to today's readiness and recent training of userID.
//
// Without a check-in for today it returns readiness.ErrNotFound.
func (s *Service) Personalize(
	ctx context.Context, userID string, req PersonalizeRequest) (personalize.Recommendation, error) {
	today := s.today()

	var (
		todayReadiness readiness.DailyReadiness
		state          progression.State
		trend          readiness.Trend
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		todayReadiness, err = s.readiness.CheckExistingForToday(gctx, userID, today)
		return err
	})
	g.Go(func() error {
		var err error
		state, err = s.progression.State(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		trend, err = s.readiness.Trend(gctx, userID, fatigueWindowDays)
		return err
	})
	if err := g.Wait(); err != nil {
		return personalize.Recommendation{}, errors.Wrap(err, "load personalization context")
	}

	rec, err := s.personalizer.GenerateAdjustment(ctx, personalize.Context{
		FitnessLevel: req.FitnessLevel,
		Injuries:     req.Injuries,
		Readiness:    todayReadiness,
		Exercise:     req.Exercise,
		History:      historyFrom(state, trend, today),
	})
	if err != nil {
		return personalize.Recommendation{}, errors.Wrap(err, "generate adjustment")
	}
	return rec, nil
}

// historyFrom summarises recent training. Weekly volume only counts when it belongs to the current
// week and the fatigue index is the share of HIGH fatigue check-ins in the window.
func historyFrom(state progression.State, trend readiness.Trend, today time.Time) personalize.History {
	history := personalize.History{
		WeeklyVolumeLoad:    0,
		LastWorkoutDate:     state.LastWorkoutDate,
		CurrentFatigueIndex: 0,
	}
	if state.WeekStart != nil && !today.Before(*state.WeekStart) && today.Before(state.WeekStart.AddDate(0, 0, 7)) {
		history.WeeklyVolumeLoad = state.WeeklyVolumeMinutes
	}
	if trend.Count > 0 {
		history.CurrentFatigueIndex = float64(trend.HighFatigueCount) / float64(trend.Count)
	}
	return history
}

// SessionRequest reports a completed workout session.
type SessionRequest struct {
	// Date defaults to today.
	Date            *time.Time `json:"date"`
	DurationMinutes float64    `json:"duration_minutes"`
	AdherenceScore  float64    `json:"adherence_score"`
}

// CompleteSession applies a finished session to the progression of userID. Future dates are rejected
// with progression.ErrInvalidSession.
func (s *Service) CompleteSession(ctx context.Context, userID string, req SessionRequest) (progression.Outcome, error) {
	day, err := s.dayOrToday(req.Date, progression.ErrInvalidSession)
	if err != nil {
		return progression.Outcome{}, errors.Wrap(err, "complete session")
	}
	outcome, err := s.progression.ApplySessionResult(ctx, userID, progression.SessionResult{
		Date:            day,
		DurationMinutes: req.DurationMinutes,
		AdherenceScore:  req.AdherenceScore,
	})
	if err != nil {
		return progression.Outcome{}, errors.Wrap(err, "complete session")
	}
	s.metrics.CounterSessions.WithLabelValues(outcome.StreakStatus).Inc()
	return outcome, nil
}

// ProgressionView is the progression of a user with the points needed for the next level.
type ProgressionView struct {
	progression.State

	NextLevelAt       int `json:"next_level_at"`
	PointsToNextLevel int `json:"points_to_next_level"`
}

// Progression returns the progression of userID.
func (s *Service) Progression(ctx context.Context, userID string) (ProgressionView, error) {
	state, err := s.progression.State(ctx, userID)
	if err != nil {
		return ProgressionView{}, errors.Wrap(err, "progression")
	}
	next := progression.PointsForNextLevel(state.CurrentLevel)
	return ProgressionView{
		State:             state,
		NextLevelAt:       next,
		PointsToNextLevel: next - state.TotalPoints,
	}, nil
}
