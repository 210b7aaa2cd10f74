package readiness

import (
	"context"
	"log/slog"
	"time"

	"github.com/myrjola/fitcoach/internal/errors"
	"github.com/myrjola/fitcoach/internal/sqlite"
)

// MaxHistory caps how many records a single history, average, or trend query reads.
const MaxHistory = 365

// Service records daily check-ins and answers questions about a user's readiness history.
type Service struct {
	repo   *sqliteRepository
	logger *slog.Logger
}

// NewService creates a new readiness service.
func NewService(db *sqlite.Database, logger *slog.Logger) *Service {
	return &Service{
		repo:   newSQLiteRepository(db, logger),
		logger: logger,
	}
}

// CheckExistingForToday returns the record of userID for date, or ErrNotFound when the user has not
// checked in on that day.
func (s *Service) CheckExistingForToday(ctx context.Context, userID string, date time.Time) (DailyReadiness, error) {
	rec, err := s.repo.get(ctx, userID, Day(date))
	if err != nil {
		return DailyReadiness{}, errors.Wrap(err, "get daily readiness", slog.String("date", FormatDate(date)))
	}
	return rec, nil
}

// CreateRecord validates and scores check and stores the result as the record of userID for date.
//
// A check outside the accepted ranges returns ErrInvalidCheck and a second check-in on the same day
// returns ErrAlreadyRecorded.
func (s *Service) CreateRecord(
	ctx context.Context, userID string, date time.Time, check Check) (DailyReadiness, error) {
	if err := Validate(check); err != nil {
		return DailyReadiness{}, errors.Wrap(err, "validate check")
	}
	score := Compute(check)
	rec, err := s.repo.insert(ctx, DailyReadiness{
		UserID:         userID,
		Date:           Day(date),
		SleepQuality:   check.SleepQuality,
		SorenessLevel:  check.SorenessLevel,
		Score:          score.Value,
		FatigueState:   score.FatigueState,
		Recommendation: score.Recommendation,
		CreatedAt:      time.Time{},
		UpdatedAt:      time.Time{},
	})
	if err != nil {
		return DailyReadiness{}, errors.Wrap(err, "insert daily readiness", slog.String("date", FormatDate(date)))
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "recorded readiness",
		slog.String("date", FormatDate(rec.Date)),
		slog.Int("score", rec.Score),
		slog.String("fatigue_state", string(rec.FatigueState)))
	return rec, nil
}

// History returns at most limit of the latest records of userID, newest first.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]DailyReadiness, error) {
	records, err := s.repo.listLatest(ctx, userID, clampLimit(limit))
	if err != nil {
		return nil, errors.Wrap(err, "list daily readiness", slog.Int("limit", limit))
	}
	return records, nil
}

// AverageReadiness returns the mean score of the latest days records of userID. A user without records
// averages 0.
func (s *Service) AverageReadiness(ctx context.Context, userID string, days int) (float64, error) {
	trend, err := s.Trend(ctx, userID, days)
	if err != nil {
		return 0, err
	}
	return trend.Average, nil
}

// Trend summarises the latest days records of userID.
func (s *Service) Trend(ctx context.Context, userID string, days int) (Trend, error) {
	records, err := s.History(ctx, userID, days)
	if err != nil {
		return Trend{}, err
	}
	return summarize(clampLimit(days), records), nil
}

func summarize(days int, records []DailyReadiness) Trend {
	trend := Trend{
		Days:             days,
		Count:            len(records),
		Average:          0,
		Min:              0,
		Max:              0,
		HighFatigueCount: 0,
	}
	if len(records) == 0 {
		return trend
	}
	total := 0
	trend.Min = records[0].Score
	for _, rec := range records {
		total += rec.Score
		trend.Min = min(trend.Min, rec.Score)
		trend.Max = max(trend.Max, rec.Score)
		if rec.FatigueState == FatigueHigh {
			trend.HighFatigueCount++
		}
	}
	trend.Average = float64(total) / float64(len(records))
	return trend
}

func clampLimit(limit int) int {
	return min(max(limit, 0), MaxHistory)
}
