package db

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"ideaflow/pkg/metrics"
	"ideaflow/pkg/otel"
)

type queryStartKey struct{}

type queryStart struct {
	at   time.Time
	sql  string
	span trace.Span
}

// QueryTracer spans every query and records slow ones.
type QueryTracer struct {
	logger        *zap.Logger
	slowThreshold time.Duration
}

// NewQueryTracer returns a tracer; threshold defaults to 100ms.
func NewQueryTracer(logger *zap.Logger, slowThreshold time.Duration) *QueryTracer {
	if slowThreshold == 0 {
		slowThreshold = 100 * time.Millisecond
	}
	return &QueryTracer{
		logger:        logger,
		slowThreshold: slowThreshold,
	}
}

// TraceQueryStart implements pgx.QueryTracer.
func (t *QueryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	ctx, span := otel.DBSpan(ctx, Operation(data.SQL), data.SQL)
	return context.WithValue(ctx, queryStartKey{}, queryStart{
		at:   time.Now(),
		sql:  data.SQL,
		span: span,
	})
}

// TraceQueryEnd implements pgx.QueryTracer.
// TraceQueryEndData carries no SQL, so it is read back from ctx.
func (t *QueryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	start, ok := ctx.Value(queryStartKey{}).(queryStart)
	if !ok {
		return
	}
	otel.EndDBSpan(start.span, data.Err)

	duration := time.Since(start.at)
	if duration <= t.slowThreshold {
		return
	}

	sql := start.sql
	if len(sql) > 200 {
		sql = sql[:200] + "..."
	}

	t.logger.Warn("slow-query",
		zap.String("sql", sql),
		zap.Duration("took", duration),
		zap.String("command_tag", data.CommandTag.String()),
	)
	metrics.IncrementSlowQuery(Operation(start.sql), duration)
}

// Operation returns the first SQL keyword (select, insert, ...) as a low-cardinality label.
func Operation(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "unknown"
	}
	op := strings.ToLower(fields[0])
	if op == "with" {
		return "cte"
	}
	return op
}
