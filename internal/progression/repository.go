package progression

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/myrjola/fitcoach/internal/ptr"
	"github.com/myrjola/fitcoach/internal/readiness"
)

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// getState reads the progression of userID. Users without a row get [ZeroState].
func getState(ctx context.Context, q queryRower, userID string) (State, error) {
	var (
		state                State
		lastWorkout, weekDay sql.NullString
	)
	err := q.QueryRowContext(ctx, `
		SELECT total_points, current_level, current_streak, last_workout_date, weekly_volume_minutes, week_start
		FROM progression_states
		WHERE user_id = ?`, userID).Scan(
		&state.TotalPoints,
		&state.CurrentLevel,
		&state.CurrentStreak,
		&lastWorkout,
		&state.WeeklyVolumeMinutes,
		&weekDay,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return ZeroState(), nil
	}
	if err != nil {
		return State{}, fmt.Errorf("query progression state: %w", err)
	}
	if state.LastWorkoutDate, err = parseNullDate(lastWorkout); err != nil {
		return State{}, fmt.Errorf("parse last_workout_date: %w", err)
	}
	if state.WeekStart, err = parseNullDate(weekDay); err != nil {
		return State{}, fmt.Errorf("parse week_start: %w", err)
	}
	return state, nil
}

func saveState(ctx context.Context, tx *sql.Tx, userID string, state State) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO progression_states (
			user_id, total_points, current_level, current_streak, last_workout_date, weekly_volume_minutes, week_start
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			total_points = excluded.total_points,
			current_level = excluded.current_level,
			current_streak = excluded.current_streak,
			last_workout_date = excluded.last_workout_date,
			weekly_volume_minutes = excluded.weekly_volume_minutes,
			week_start = excluded.week_start,
			updated_at = STRFTIME('%Y-%m-%dT%H:%M:%fZ')`,
		userID,
		state.TotalPoints,
		state.CurrentLevel,
		state.CurrentStreak,
		formatNullDate(state.LastWorkoutDate),
		state.WeeklyVolumeMinutes,
		formatNullDate(state.WeekStart),
	)
	if err != nil {
		return fmt.Errorf("upsert progression state: %w", err)
	}
	return nil
}

func insertSessionResult(
	ctx context.Context, tx *sql.Tx, userID string, result SessionResult, points int, status string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO session_results (user_id, date, duration_minutes, adherence_score, points_earned, streak_status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		userID,
		readiness.FormatDate(readiness.Day(result.Date)),
		result.DurationMinutes,
		result.AdherenceScore,
		points,
		status,
	)
	if err != nil {
		return fmt.Errorf("insert session result: %w", err)
	}
	return nil
}

func parseNullDate(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil //nolint:nilnil // absent date.
	}
	t, err := time.Parse(time.DateOnly, s.String)
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", s.String, err)
	}
	return ptr.Ref(t), nil
}

func formatNullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{String: "", Valid: false}
	}
	return sql.NullString{String: t.Format(time.DateOnly), Valid: true}
}
