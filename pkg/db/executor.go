package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"todo-api/pkg/apperr"
)

// DB is the storage handle shared by every repository. Queries use '?'
// placeholders and are rebound for the active dialect.
type DB struct {
	x       *sqlx.DB
	dialect Dialect
	tracer  *SlowQueryTracer
}

// Result is the outcome of a mutating statement.
type Result struct {
	// InsertedID is the id assigned by an INSERT; 0 for other statements.
	InsertedID   int64
	RowsAffected int64
}

func (d *DB) Dialect() Dialect { return d.dialect }

// Execute runs an INSERT, UPDATE, DELETE or DDL statement.
//
// On postgres an INSERT is run with "RETURNING id" appended, since the pgx
// driver does not implement LastInsertId; such statements must target a
// table with an id column and must not carry their own RETURNING clause.
func (d *DB) Execute(ctx context.Context, query string, args ...any) (res Result, err error) {
	start := time.Now()
	defer func() { d.tracer.TraceQueryEnd(ctx, "execute", query, start, err) }()

	query = d.x.Rebind(query)
	insert := isInsert(query)

	if insert && d.dialect == DialectPostgres {
		q := strings.TrimRight(strings.TrimSpace(query), ";") + " RETURNING id"
		if err := d.x.QueryRowxContext(ctx, q, args...).Scan(&res.InsertedID); err != nil {
			return Result{}, apperr.Storage("executing statement", err)
		}
		res.RowsAffected = 1
		return res, nil
	}

	sqlRes, err := d.x.ExecContext(ctx, query, args...)
	if err != nil {
		return Result{}, apperr.Storage("executing statement", err)
	}

	res.RowsAffected, err = sqlRes.RowsAffected()
	if err != nil {
		return Result{}, apperr.Storage("reading rows affected", err)
	}
	if insert {
		res.InsertedID, err = sqlRes.LastInsertId()
		if err != nil {
			return Result{}, apperr.Storage("reading inserted id", err)
		}
	}
	return res, nil
}

// FetchOne scans the first row of query into dest. found is false, with a
// nil error, when the query returned no row.
func (d *DB) FetchOne(ctx context.Context, dest any, query string, args ...any) (found bool, err error) {
	start := time.Now()
	defer func() { d.tracer.TraceQueryEnd(ctx, "fetch_one", query, start, err) }()

	err = d.x.GetContext(ctx, dest, d.x.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Storage("fetching row", err)
	}
	return true, nil
}

// FetchMany scans every row of query into dest, which must be a pointer to
// a slice. Rows keep the order the database returned them in.
func (d *DB) FetchMany(ctx context.Context, dest any, query string, args ...any) (err error) {
	start := time.Now()
	defer func() { d.tracer.TraceQueryEnd(ctx, "fetch_many", query, start, err) }()

	if err = d.x.SelectContext(ctx, dest, d.x.Rebind(query), args...); err != nil {
		return apperr.Storage("fetching rows", err)
	}
	return nil
}

func (d *DB) Ping(ctx context.Context) error {
	return d.x.PingContext(ctx)
}

func (d *DB) Close() error {
	return d.x.Close()
}

func isInsert(query string) bool {
	q := strings.TrimSpace(query)
	return len(q) >= 6 && strings.EqualFold(q[:6], "insert")
}
