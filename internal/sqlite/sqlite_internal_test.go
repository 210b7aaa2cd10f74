package sqlite

import (
	"testing"

	"github.com/myrjola/fitcoach/internal/testhelpers"
)

func TestNewDatabase_schema(t *testing.T) {
	ctx := t.Context()
	logger := testhelpers.NewLogger(testhelpers.NewWriter(t))
	db, err := NewDatabase(ctx, ":memory:", logger)
	if err != nil {
		t.Fatalf("NewDatabase: %v", err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	}()

	// Migrating to the same schema again is a no-op.
	if err = db.migrateTo(ctx, schemaDefinition); err != nil {
		t.Fatalf("migrate again: %v", err)
	}

	insert := `INSERT INTO daily_readiness
		(user_id, date, sleep_quality, soreness_level, readiness_score, fatigue_state, recommendation)
		VALUES ('u1', '2024-05-01', 'great', 1, 100, 'NORMAL', 'go')`
	if _, err = db.ReadWrite.ExecContext(ctx, insert); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	_, err = db.ReadWrite.ExecContext(ctx, insert)
	if err == nil {
		t.Fatal("expected duplicate (user_id, date) to fail")
	}
	if !IsUniqueConstraintErr(err) {
		t.Errorf("IsUniqueConstraintErr(%v) = false, want true", err)
	}

	if _, err = db.ReadWrite.ExecContext(ctx,
		"UPDATE daily_readiness SET readiness_score = 10 WHERE user_id = 'u1'"); err == nil {
		t.Error("expected readiness records to be immutable")
	}

	for _, bad := range []string{
		`INSERT INTO daily_readiness (user_id, date, sleep_quality, soreness_level, readiness_score, fatigue_state,
			recommendation) VALUES ('u1', '2024-05-02', 'great', 11, 100, 'NORMAL', 'go')`,
		`INSERT INTO daily_readiness (user_id, date, sleep_quality, soreness_level, readiness_score, fatigue_state,
			recommendation) VALUES ('u1', '05/02/2024', 'great', 1, 100, 'NORMAL', 'go')`,
		`INSERT INTO progression_states (user_id, total_points) VALUES ('u1', -1)`,
	} {
		if _, err = db.ReadWrite.ExecContext(ctx, bad); err == nil {
			t.Errorf("expected check constraint failure for %s", bad)
		}
	}
}
