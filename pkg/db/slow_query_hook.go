package db

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"todo-api/pkg/apperr"
	"todo-api/pkg/logger"
	"todo-api/pkg/metrics"
)

// SlowQueryTracer records the latency of every storage call and warns about
// the ones slower than its threshold.
type SlowQueryTracer struct {
	logger        *zap.Logger
	slowThreshold time.Duration // 100ms when zero
}

func NewSlowQueryTracer(logger *zap.Logger, slowThreshold time.Duration) *SlowQueryTracer {
	if slowThreshold == 0 {
		slowThreshold = 100 * time.Millisecond
	}
	return &SlowQueryTracer{
		logger:        logger,
		slowThreshold: slowThreshold,
	}
}

// TraceQueryEnd is called once a storage call returns.
func (t *SlowQueryTracer) TraceQueryEnd(ctx context.Context, operation, sql string, start time.Time, err error) {
	duration := time.Since(start)
	metrics.RecordDBQueryDuration(operation, duration)

	log := logger.WithTrace(ctx, t.logger)
	if err != nil {
		metrics.IncrementDBError(operation, apperr.ReasonOf(err))
		log.Debug("query failed",
			zap.String("operation", operation),
			zap.String("sql", truncateSQL(sql)),
			zap.Duration("took", duration),
			zap.String("reason", apperr.ReasonOf(err)),
			zap.Error(err),
		)
	}

	if duration > t.slowThreshold {
		log.Warn("slow-query",
			zap.String("operation", operation),
			zap.String("sql", truncateSQL(sql)),
			zap.Duration("took", duration),
		)
		metrics.IncrementSlowQuery(operation)
	}
}

func truncateSQL(sql string) string {
	sql = strings.Join(strings.Fields(sql), " ")
	if len(sql) > 200 {
		return sql[:200] + "..."
	}
	return sql
}
