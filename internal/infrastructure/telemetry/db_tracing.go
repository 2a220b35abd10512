package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type queryStartKey struct{}

// DBTracingConfig controls the GORM span plugin
type DBTracingConfig struct {
	Enabled         bool
	DBSystem        string        // "postgresql" or "sqlite"
	SlowQueryThresh time.Duration // spans over this are flagged db.slow_query
	WithVariables   bool          // include bound values in db.statement
}

// RegisterDBTracing adds otelgorm spans to db plus a callback that tags
// row counts and slow statements on the active span
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SlowQueryThresh <= 0 {
		cfg.SlowQueryThresh = 200 * time.Millisecond
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBSystem)}
	if !cfg.WithVariables {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	before := func(tx *gorm.DB) {
		if tx.Statement.Context != nil {
			tx.Statement.Context = context.WithValue(tx.Statement.Context, queryStartKey{}, time.Now())
		}
	}
	after := func(tx *gorm.DB) { annotateSpan(tx, cfg.SlowQueryThresh) }

	// annotate runs before otelgorm ends the span
	cb := db.Callback()
	registrations := []error{
		cb.Create().Before("gorm:create").Register("pharmacy:start_create", before),
		cb.Create().After("gorm:create").Before("otel:after:create").Register("pharmacy:annotate_create", after),
		cb.Query().Before("gorm:query").Register("pharmacy:start_query", before),
		cb.Query().After("gorm:query").Before("otel:after:query").Register("pharmacy:annotate_query", after),
		cb.Update().Before("gorm:update").Register("pharmacy:start_update", before),
		cb.Update().After("gorm:update").Before("otel:after:update").Register("pharmacy:annotate_update", after),
		cb.Delete().Before("gorm:delete").Register("pharmacy:start_delete", before),
		cb.Delete().After("gorm:delete").Before("otel:after:delete").Register("pharmacy:annotate_delete", after),
		cb.Row().Before("gorm:row").Register("pharmacy:start_row", before),
		cb.Row().After("gorm:row").Before("otel:after:row").Register("pharmacy:annotate_row", after),
		cb.Raw().Before("gorm:raw").Register("pharmacy:start_raw", before),
		cb.Raw().After("gorm:raw").Before("otel:after:raw").Register("pharmacy:annotate_raw", after),
	}
	if err := errors.Join(registrations...); err != nil {
		return err
	}

	logger.Info("Database tracing enabled",
		zap.String("db_system", cfg.DBSystem),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThresh))
	return nil
}

func annotateSpan(tx *gorm.DB, slow time.Duration) {
	ctx := tx.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	if tx.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", tx.Statement.Table))
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", tx.Statement.RowsAffected))
	if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		span.RecordError(tx.Error)
	}
	if start, ok := ctx.Value(queryStartKey{}).(time.Time); ok {
		if elapsed := time.Since(start); elapsed > slow {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
			)
		}
	}
}
