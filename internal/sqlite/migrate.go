package sqlite

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// migrateTo brings the live schema in line with schemaDefinition declaratively.
//
// The target schema is created in an attached in-memory database and diffed against sqlite_schema:
// removed tables are dropped, new tables created, and changed tables rebuilt with the generalized
// ALTER TABLE procedure from https://www.sqlite.org/lang_altertable.html#otheralter keeping the columns
// both versions share. Indexes and triggers are then dropped and recreated where they differ.
func (db *Database) migrateTo(ctx context.Context, schemaDefinition string) (err error) {
	start := time.Now()

	detach, err := db.attachTargetSchema(ctx, schemaDefinition)
	if err != nil {
		return fmt.Errorf("attach target schema: %w", err)
	}
	defer detach()

	// Foreign keys cannot be toggled inside a transaction.
	if _, err = db.ReadWrite.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return fmt.Errorf("disable foreign keys: %w", err)
	}
	defer func() {
		if _, fkErr := db.ReadWrite.ExecContext(ctx, "PRAGMA foreign_keys = ON"); fkErr != nil {
			err = errors.Join(err, fmt.Errorf("enable foreign keys: %w", fkErr))
		}
	}()

	tx, err := db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer db.rollback(ctx, tx)()

	if err = db.migrateTables(ctx, tx); err != nil {
		return fmt.Errorf("migrate tables: %w", err)
	}
	for _, typ := range []schemaType{schemaTypeIndex, schemaTypeTrigger} {
		if err = db.migrateSchemaObjects(ctx, tx, typ); err != nil {
			return fmt.Errorf("migrate %ss: %w", typ, err)
		}
	}

	var violations []string
	if violations, err = queryStrings(ctx, tx, `SELECT "table" FROM pragma_foreign_key_check`); err != nil {
		return fmt.Errorf("foreign key check: %w", err)
	}
	if len(violations) > 0 {
		return fmt.Errorf("foreign key violations in tables %v", violations)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	db.logger.LogAttrs(ctx, slog.LevelInfo, "migrated database", slog.Duration("duration", time.Since(start)))
	return nil
}

func (db *Database) attachTargetSchema(ctx context.Context, schemaDefinition string) (func(), error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", rand.Text())
	target, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open target database: %w", err)
	}
	// The shared cache database lives while at least one connection is open, keep ours until attached.
	defer func() {
		if closeErr := target.Close(); closeErr != nil {
			db.logger.LogAttrs(ctx, slog.LevelError, "close target database", slog.Any("error", closeErr))
		}
	}()
	if _, err = target.ExecContext(ctx, schemaDefinition); err != nil {
		return nil, fmt.Errorf("create target schema: %w", err)
	}
	if _, err = db.ReadWrite.ExecContext(ctx, "ATTACH DATABASE ? AS target", dsn); err != nil {
		return nil, fmt.Errorf("attach: %w", err)
	}
	return func() {
		if _, detachErr := db.ReadWrite.ExecContext(ctx, "DETACH DATABASE target"); detachErr != nil {
			db.logger.LogAttrs(ctx, slog.LevelError, "detach target database", slog.Any("error", detachErr))
		}
	}, nil
}

func (db *Database) rollback(ctx context.Context, tx *sql.Tx) func() {
	return func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			db.logger.LogAttrs(ctx, slog.LevelError, "rollback transaction", slog.Any("error", err))
		}
	}
}

type schemaType string

const (
	schemaTypeTable   schemaType = "table"
	schemaTypeIndex   schemaType = "index"
	schemaTypeTrigger schemaType = "trigger"
)

// Internal SQLite objects and automatic indexes have no SQL of their own.
const userObjects = `live.name NOT LIKE 'sqlite_%'`

type schemaDiff struct {
	removed []string
	added   []string
	changed []changedObject
}

type changedObject struct {
	name    string
	liveSQL string
	newSQL  string
}

func diffSchema(ctx context.Context, tx *sql.Tx, typ schemaType) (schemaDiff, error) {
	var (
		diff schemaDiff
		err  error
	)
	if diff.removed, err = queryStrings(ctx, tx, `SELECT live.name
FROM main.sqlite_schema AS live
LEFT JOIN target.sqlite_schema AS t ON t.name = live.name AND t.type = live.type
WHERE live.type = ? AND t.name IS NULL AND `+userObjects, typ); err != nil {
		return schemaDiff{}, fmt.Errorf("query removed: %w", err)
	}
	if diff.added, err = queryStrings(ctx, tx, `SELECT t.sql
FROM target.sqlite_schema AS t
LEFT JOIN main.sqlite_schema AS live ON live.name = t.name AND live.type = t.type
WHERE t.type = ? AND live.name IS NULL AND t.sql IS NOT NULL AND t.name NOT LIKE 'sqlite_%'`, typ); err != nil {
		return schemaDiff{}, fmt.Errorf("query added: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `SELECT live.name, live.sql, t.sql
FROM main.sqlite_schema AS live
JOIN target.sqlite_schema AS t ON t.name = live.name AND t.type = live.type
WHERE live.type = ? AND live.sql IS NOT NULL AND `+userObjects+`
  AND REPLACE(live.sql, '"', '') <> REPLACE(t.sql, '"', '')`, typ)
	if err != nil {
		return schemaDiff{}, fmt.Errorf("query changed: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c changedObject
		if err = rows.Scan(&c.name, &c.liveSQL, &c.newSQL); err != nil {
			return schemaDiff{}, fmt.Errorf("scan changed: %w", err)
		}
		diff.changed = append(diff.changed, c)
	}
	if err = rows.Err(); err != nil {
		return schemaDiff{}, fmt.Errorf("iterate changed: %w", err)
	}
	return diff, nil
}

func (db *Database) migrateTables(ctx context.Context, tx *sql.Tx) error {
	diff, err := diffSchema(ctx, tx, schemaTypeTable)
	if err != nil {
		return err
	}

	for _, name := range diff.removed {
		if err = db.exec(ctx, tx, fmt.Sprintf("DROP TABLE %q", name)); err != nil {
			return err
		}
	}
	for _, createSQL := range diff.added {
		if err = db.exec(ctx, tx, createSQL); err != nil {
			return err
		}
	}
	for _, table := range diff.changed {
		if err = db.rebuildTable(ctx, tx, table); err != nil {
			return fmt.Errorf("rebuild %s: %w", table.name, err)
		}
	}
	return nil
}

// rebuildTable creates the new definition under a temporary name, copies the shared columns, and swaps
// the tables.
func (db *Database) rebuildTable(ctx context.Context, tx *sql.Tx, table changedObject) error {
	db.logger.LogAttrs(ctx, slog.LevelInfo, "rebuilding table",
		slog.String("table", table.name),
		slog.String("live_sql", table.liveSQL),
		slog.String("new_sql", table.newSQL))

	tempName := table.name + "_migration_temp"
	if err := db.exec(ctx, tx, strings.Replace(table.newSQL, table.name, tempName, 1)); err != nil {
		return err
	}

	columns, err := queryStrings(ctx, tx, `SELECT '"' || t.name || '"'
FROM pragma_table_info(:table, 'main') AS live
JOIN pragma_table_info(:table, 'target') AS t ON t.name = live.name`, sql.Named("table", table.name))
	if err != nil {
		return fmt.Errorf("query shared columns: %w", err)
	}
	if len(columns) > 0 {
		shared := strings.Join(columns, ", ")
		if err = db.exec(ctx, tx, fmt.Sprintf("INSERT INTO %q (%s) SELECT %s FROM %q",
			tempName, shared, shared, table.name)); err != nil {
			return err
		}
	}

	if err = db.exec(ctx, tx, fmt.Sprintf("DROP TABLE %q", table.name)); err != nil {
		return err
	}
	return db.exec(ctx, tx, fmt.Sprintf("ALTER TABLE %q RENAME TO %q", tempName, table.name))
}

func (db *Database) migrateSchemaObjects(ctx context.Context, tx *sql.Tx, typ schemaType) error {
	diff, err := diffSchema(ctx, tx, typ)
	if err != nil {
		return err
	}

	drop := func(name string) error {
		return db.exec(ctx, tx, fmt.Sprintf("DROP %s IF EXISTS %q", strings.ToUpper(string(typ)), name))
	}
	for _, name := range diff.removed {
		if err = drop(name); err != nil {
			return err
		}
	}
	for _, c := range diff.changed {
		if err = drop(c.name); err != nil {
			return err
		}
		diff.added = append(diff.added, c.newSQL)
	}
	for _, createSQL := range diff.added {
		if err = db.exec(ctx, tx, createSQL); err != nil {
			return err
		}
	}
	return nil
}

func (db *Database) exec(ctx context.Context, tx *sql.Tx, query string) error {
	db.logger.LogAttrs(ctx, slog.LevelInfo, "migration step", slog.String("query", query))
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("exec %q: %w", query, err)
	}
	return nil
}

// queryStrings returns the single column result of query.
func queryStrings(ctx context.Context, tx *sql.Tx, query string, args ...any) (_ []string, err error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var results []string
	for rows.Next() {
		var s string
		if err = rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		results = append(results, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return results, nil
}
