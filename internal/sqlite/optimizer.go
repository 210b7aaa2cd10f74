package sqlite

import (
	"context"
	"log/slog"
	"time"
)

const optimizeInterval = time.Hour

// startDatabaseOptimizer runs PRAGMA optimize on start and then every optimizeInterval until ctx is done.
// See https://www.sqlite.org/pragma.html#pragma_optimize.
func (db *Database) startDatabaseOptimizer(ctx context.Context) {
	pragma := "PRAGMA optimize = 0x10002;"
	ticker := time.NewTicker(optimizeInterval)
	defer ticker.Stop()
	for {
		if _, err := db.ReadWrite.ExecContext(ctx, pragma); err != nil {
			if ctx.Err() != nil {
				return
			}
			db.logger.LogAttrs(ctx, slog.LevelError, "failed to optimize database", slog.Any("error", err))
		}
		pragma = "PRAGMA optimize;"

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
