package repository

import (
	"context"

	"go.uber.org/zap"

	"todo-api/pkg/apperr"
	"todo-api/pkg/db"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS tasks (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	title       TEXT NOT NULL CHECK (length(trim(title)) > 0),
	description TEXT,
	due_date    TEXT,
	completed   INTEGER NOT NULL DEFAULT 0 CHECK (completed IN (0, 1)),
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_due_date ON tasks(due_date)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_completed ON tasks(completed)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS tasks (
	id          BIGSERIAL PRIMARY KEY,
	title       TEXT NOT NULL CHECK (length(trim(title)) > 0),
	description TEXT,
	due_date    TEXT,
	completed   INTEGER NOT NULL DEFAULT 0 CHECK (completed IN (0, 1)),
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_due_date ON tasks(due_date)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_completed ON tasks(completed)`,
}

// EnsureSchema creates the tasks table and its indexes when missing. It is
// safe to run on every start and must finish before requests are served.
func EnsureSchema(ctx context.Context, conn *db.DB, logger *zap.Logger) error {
	stmts := sqliteSchema
	if conn.Dialect() == db.DialectPostgres {
		stmts = postgresSchema
	}

	for _, stmt := range stmts {
		if _, err := conn.Execute(ctx, stmt); err != nil {
			logger.Error("Failed to initialize schema", zap.Error(err))
			return apperr.Schema(err)
		}
	}

	logger.Info("Tasks table initialized", zap.String("dialect", string(conn.Dialect())))
	return nil
}
