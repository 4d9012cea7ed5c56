package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig controls the otelgorm plugin.
type DBTracingConfig struct {
	Enabled            bool
	DBSystem           string
	SlowQueryThreshold time.Duration
	// WithQueryVariables keeps bound values in db.statement. Review text is
	// user content, so leave it off outside development.
	WithQueryVariables bool
}

type contextKey string

const queryStartTimeKey contextKey = "otel_query_start_time"

// DBTracer adds otelgorm spans plus slow query and row count annotations.
type DBTracer struct {
	config DBTracingConfig
	logger *zap.Logger
}

// NewDBTracer creates a DBTracer. A zero SlowQueryThreshold means 200ms.
func NewDBTracer(cfg DBTracingConfig, logger *zap.Logger) *DBTracer {
	if cfg.SlowQueryThreshold <= 0 {
		cfg.SlowQueryThreshold = 200 * time.Millisecond
	}
	if cfg.DBSystem == "" {
		cfg.DBSystem = "postgresql"
	}
	return &DBTracer{config: cfg, logger: logger}
}

// Register installs the plugin and callbacks on db.
func (p *DBTracer) Register(db *gorm.DB) error {
	if !p.config.Enabled {
		p.logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(p.config.DBSystem)}
	if !p.config.WithQueryVariables {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	cb := db.Callback()
	err := errors.Join(
		cb.Create().Before("gorm:create").Register("review_trace:before_create", markQueryStart),
		cb.Query().Before("gorm:query").Register("review_trace:before_query", markQueryStart),
		cb.Update().Before("gorm:update").Register("review_trace:before_update", markQueryStart),
		cb.Delete().Before("gorm:delete").Register("review_trace:before_delete", markQueryStart),
		cb.Row().Before("gorm:row").Register("review_trace:before_row", markQueryStart),
		cb.Raw().Before("gorm:raw").Register("review_trace:before_raw", markQueryStart),

		cb.Create().After("gorm:create").Register("review_trace:after_create", p.afterQuery),
		cb.Query().After("gorm:query").Register("review_trace:after_query", p.afterQuery),
		cb.Update().After("gorm:update").Register("review_trace:after_update", p.afterQuery),
		cb.Delete().After("gorm:delete").Register("review_trace:after_delete", p.afterQuery),
		cb.Row().After("gorm:row").Register("review_trace:after_row", p.afterQuery),
		cb.Raw().After("gorm:raw").Register("review_trace:after_raw", p.afterQuery),
	)
	if err != nil {
		return err
	}

	p.logger.Info("Database tracing enabled",
		zap.String("db_system", p.config.DBSystem),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThreshold),
	)
	return nil
}

func markQueryStart(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartTimeKey, time.Now())
	}
}

func (p *DBTracer) afterQuery(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	if db.Statement.RowsAffected >= 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	}
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	// A missing lookup row is the normal dedup miss, not a failure.
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}

	start, ok := ctx.Value(queryStartTimeKey).(time.Time)
	if !ok {
		return
	}
	if elapsed := time.Since(start); elapsed > p.config.SlowQueryThreshold {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
		span.AddEvent("slow_query_warning", trace.WithAttributes(
			attribute.Int64("duration_ms", elapsed.Milliseconds()),
			attribute.Int64("threshold_ms", p.config.SlowQueryThreshold.Milliseconds()),
		))
	}
}
