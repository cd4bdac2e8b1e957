package testutil

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"todo-api/internal/repository"
	"todo-api/pkg/db"
)

// NewTestDB opens an in-memory sqlite database with the schema applied.
// It is closed automatically when the test completes.
func NewTestDB(t *testing.T) *db.DB {
	t.Helper()

	conn, err := db.Open(db.DialectSQLite, ":memory:", 0, zap.NewNop())
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}

	t.Cleanup(func() {
		if err := conn.Close(); err != nil {
			t.Errorf("closing test db: %v", err)
		}
	})

	if err := repository.EnsureSchema(context.Background(), conn, zap.NewNop()); err != nil {
		t.Fatalf("creating schema: %v", err)
	}
	return conn
}
