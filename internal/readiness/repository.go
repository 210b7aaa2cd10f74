package readiness

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/myrjola/fitcoach/internal/sqlite"
)

const timestampFormat = "2006-01-02T15:04:05.000Z"

type sqliteRepository struct {
	db     *sqlite.Database
	logger *slog.Logger
}

func newSQLiteRepository(db *sqlite.Database, logger *slog.Logger) *sqliteRepository {
	return &sqliteRepository{
		db:     db,
		logger: logger,
	}
}

const selectColumns = `user_id, date, sleep_quality, soreness_level, readiness_score, fatigue_state,
       recommendation, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (DailyReadiness, error) {
	var (
		rec                         DailyReadiness
		date, createdAt, updatedAt string
		err                         error
	)
	if err = row.Scan(
		&rec.UserID,
		&date,
		&rec.SleepQuality,
		&rec.SorenessLevel,
		&rec.Score,
		&rec.FatigueState,
		&rec.Recommendation,
		&createdAt,
		&updatedAt,
	); err != nil {
		return DailyReadiness{}, err //nolint:wrapcheck // callers wrap with context.
	}
	if rec.Date, err = time.Parse(time.DateOnly, date); err != nil {
		return DailyReadiness{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	if rec.CreatedAt, err = time.Parse(timestampFormat, createdAt); err != nil {
		return DailyReadiness{}, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	if rec.UpdatedAt, err = time.Parse(timestampFormat, updatedAt); err != nil {
		return DailyReadiness{}, fmt.Errorf("parse updated_at %q: %w", updatedAt, err)
	}
	return rec, nil
}

// get returns the record of userID for date or ErrNotFound.
func (r *sqliteRepository) get(ctx context.Context, userID string, date time.Time) (DailyReadiness, error) {
	row := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT `+selectColumns+`
		FROM daily_readiness
		WHERE user_id = ? AND date = ?`, userID, FormatDate(date))
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return DailyReadiness{}, ErrNotFound
	}
	if err != nil {
		return DailyReadiness{}, fmt.Errorf("query daily readiness: %w", err)
	}
	return rec, nil
}

// insert stores rec and returns it with the timestamps assigned by the database. The primary key
// rejects a second record for the same user and day with ErrAlreadyRecorded.
func (r *sqliteRepository) insert(ctx context.Context, rec DailyReadiness) (DailyReadiness, error) {
	row := r.db.ReadWrite.QueryRowContext(ctx, `
		INSERT INTO daily_readiness (
			user_id, date, sleep_quality, soreness_level, readiness_score, fatigue_state, recommendation
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING `+selectColumns,
		rec.UserID,
		FormatDate(rec.Date),
		rec.SleepQuality,
		rec.SorenessLevel,
		rec.Score,
		rec.FatigueState,
		rec.Recommendation,
	)
	stored, err := scanRecord(row)
	if sqlite.IsUniqueConstraintErr(err) {
		return DailyReadiness{}, ErrAlreadyRecorded
	}
	if err != nil {
		return DailyReadiness{}, fmt.Errorf("insert daily readiness: %w", err)
	}
	return stored, nil
}

// listLatest returns at most limit records of userID, newest first.
func (r *sqliteRepository) listLatest(ctx context.Context, userID string, limit int) (_ []DailyReadiness, err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT `+selectColumns+`
		FROM daily_readiness
		WHERE user_id = ?
		ORDER BY date DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query daily readiness history: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	records := make([]DailyReadiness, 0, limit)
	for rows.Next() {
		var rec DailyReadiness
		if rec, err = scanRecord(rows); err != nil {
			return nil, fmt.Errorf("scan daily readiness: %w", err)
		}
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily readiness: %w", err)
	}
	return records, nil
}
