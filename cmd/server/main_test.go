package main

import (
	"context"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"todo-api/config"
	"todo-api/pkg/apperr"
	"todo-api/pkg/db"
)

func freePort(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return strconv.Itoa(port)
}

func testConfig(t *testing.T, dbPath string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Port = freePort(t)
	cfg.Server.Mode = "test"
	cfg.DB.Name = dbPath
	return cfg
}

func TestRun_SchemaFailureStopsBeforeListening(t *testing.T) {
	path := filepath.Join(t.TempDir(), "todo.db")

	// a view named tasks cannot be indexed, so schema creation fails
	conn, err := db.Open(db.DialectSQLite, path, 0, zap.NewNop())
	require.NoError(t, err)
	_, err = conn.Execute(context.Background(), "CREATE VIEW tasks AS SELECT 1 AS id, NULL AS due_date, 0 AS completed")
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	cfg := testConfig(t, path)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = run(ctx, cfg, zap.NewNop())
	require.Error(t, err)
	assert.Equal(t, apperr.KindSchema, apperr.KindOf(err))
	assert.NoError(t, ctx.Err(), "run must fail fast instead of serving")

	l, err := net.Listen("tcp", "127.0.0.1:"+cfg.Server.Port)
	require.NoError(t, err, "port must never have been bound")
	_ = l.Close()
}

func TestRun_ServesUntilCanceled(t *testing.T) {
	cfg := testConfig(t, filepath.Join(t.TempDir(), "todo.db"))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, zap.NewNop()) }()

	url := "http://127.0.0.1:" + cfg.Server.Port + "/healthz"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}
