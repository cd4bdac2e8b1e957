package apperr

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Reasons reported by ClassifyDriverError.
const (
	ReasonConstraint = "constraint"
	ReasonSyntax     = "syntax"
	ReasonConnection = "connection"
	ReasonTimeout    = "timeout"
	ReasonCanceled   = "canceled"
	ReasonUnknown    = "unknown"
)

// ClassifyDriverError tags a database driver error with a coarse reason. The
// reason labels db_errors_total and the request failure log.
func ClassifyDriverError(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	if errors.Is(err, context.Canceled) {
		return ReasonCanceled
	}

	// postgres: SQLSTATE class 23 is integrity violations, 42 syntax/access rules
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "23"):
			return ReasonConstraint
		case strings.HasPrefix(pgErr.Code, "42"):
			return ReasonSyntax
		case strings.HasPrefix(pgErr.Code, "08"):
			return ReasonConnection
		}
		return ReasonUnknown
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ReasonTimeout
		}
		return ReasonConnection
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "constraint"):
		return ReasonConstraint
	case strings.Contains(errStr, "syntax error"), strings.Contains(errStr, "no such table"),
		strings.Contains(errStr, "no such column"):
		return ReasonSyntax
	case strings.Contains(errStr, "database is locked"), strings.Contains(errStr, "connection"),
		strings.Contains(errStr, "database is closed"), strings.Contains(errStr, "unable to open"):
		return ReasonConnection
	case strings.Contains(errStr, "timeout"):
		return ReasonTimeout
	}
	return ReasonUnknown
}
