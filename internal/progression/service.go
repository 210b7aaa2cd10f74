package progression

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/myrjola/fitcoach/internal/errors"
	"github.com/myrjola/fitcoach/internal/readiness"
	"github.com/myrjola/fitcoach/internal/sqlite"
)

// Service keeps the points, level, and streak of users.
type Service struct {
	db     *sqlite.Database
	logger *slog.Logger
}

// NewService creates a new progression service.
func NewService(db *sqlite.Database, logger *slog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger,
	}
}

// State returns the progression of userID.
func (s *Service) State(ctx context.Context, userID string) (State, error) {
	state, err := getState(ctx, s.db.ReadOnly, userID)
	if err != nil {
		return State{}, errors.Wrap(err, "get progression state")
	}
	return state, nil
}

// ApplySessionResult folds a completed session into the progression of userID.
//
// The read, the update, and the session log entry happen in one immediate transaction so concurrent
// sessions of the same user cannot lose points. Sessions dated before the last workout day are
// rejected with ErrInvalidSession.
func (s *Service) ApplySessionResult(ctx context.Context, userID string, result SessionResult) (Outcome, error) {
	if err := result.Validate(); err != nil {
		return Outcome{}, errors.Wrap(err, "validate session result")
	}

	var outcome Outcome
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		current, err := getState(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err = result.ValidateAgainst(current); err != nil {
			return err
		}
		next, transition, points := Apply(current, result)
		if err = saveState(ctx, tx, userID, next); err != nil {
			return err
		}
		if err = insertSessionResult(ctx, tx, userID, result, points, transition.Status()); err != nil {
			return err
		}
		outcome = Outcome{
			State:             next,
			PointsEarned:      points,
			Streak:            transition,
			StreakStatus:      transition.Status(),
			LeveledUp:         next.CurrentLevel > current.CurrentLevel,
			PointsToNextLevel: PointsForNextLevel(next.CurrentLevel) - next.TotalPoints,
		}
		return nil
	})
	if err != nil {
		return Outcome{}, errors.Wrap(err, "apply session result",
			slog.String("date", readiness.FormatDate(readiness.Day(result.Date))))
	}

	s.logger.LogAttrs(ctx, slog.LevelInfo, "applied session result",
		slog.Int("points_earned", outcome.PointsEarned),
		slog.Int("total_points", outcome.State.TotalPoints),
		slog.Int("level", outcome.State.CurrentLevel),
		slog.Int("streak", outcome.State.CurrentStreak),
		slog.String("streak_status", outcome.StreakStatus))
	return outcome, nil
}
