package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"todo-api/config"
)

// Dialect identifies the SQL flavour behind a DB.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// NewConnection opens the database described by cfg and verifies it answers.
func NewConnection(cfg config.DBConfig, logger *zap.Logger) (*DB, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		logger.Info("Initializing PostgreSQL connection pool")
		return Open(DialectPostgres, cfg.DSN, cfg.SlowQueryThreshold(), logger)
	case config.DriverSQLite, "":
		logger.Info("Opening SQLite database", zap.String("path", cfg.Name))
		return Open(DialectSQLite, cfg.Name, cfg.SlowQueryThreshold(), logger)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.Driver)
	}
}

// Open opens a database of the given dialect. For sqlite, dataSource is a
// file path or ":memory:"; for postgres it is a DSN.
func Open(dialect Dialect, dataSource string, slowThreshold time.Duration, logger *zap.Logger) (*DB, error) {
	var (
		x   *sqlx.DB
		err error
	)

	switch dialect {
	case DialectSQLite:
		x, err = openSQLite(dataSource)
	case DialectPostgres:
		x, err = openPostgres(dataSource)
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
	if err != nil {
		return nil, err
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer pingCancel()

	if err := x.PingContext(pingCtx); err != nil {
		x.Close()
		return nil, fmt.Errorf("pinging %s database: %w", dialect, err)
	}

	logger.Info("Database connection established", zap.String("dialect", string(dialect)))
	return &DB{
		x:       x,
		dialect: dialect,
		tracer:  NewSlowQueryTracer(logger, slowThreshold),
	}, nil
}

func openSQLite(path string) (*sqlx.DB, error) {
	x, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// One connection: the driver serializes all statements, and an in-memory
	// database is private to the connection that created it.
	x.SetMaxOpenConns(1)

	pragmas := []string{"PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"}
	if !isMemory(path) {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, p := range pragmas {
		if _, err := x.Exec(p); err != nil {
			x.Close()
			return nil, fmt.Errorf("applying %q: %w", p, err)
		}
	}
	return x, nil
}

func openPostgres(dsn string) (*sqlx.DB, error) {
	x, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres db: %w", err)
	}

	x.SetMaxOpenConns(10)
	x.SetMaxIdleConns(2)
	x.SetConnMaxIdleTime(time.Minute)
	return x, nil
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}
