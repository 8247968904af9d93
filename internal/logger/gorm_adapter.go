package logger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLoggerAdapter implements gorm's logger.Interface on top of a module
// logger. Statements are traced, so they only show up when the module level
// is "trace". Failed and slow statements are warnings.
type GormLoggerAdapter struct {
	log  Logger
	slow time.Duration // 0 disables slow statement warnings
}

// NewGormLoggerAdapter returns an adapter writing to log, or to the
// datastore module logger when log is nil.
func NewGormLoggerAdapter(log Logger, slow time.Duration) *GormLoggerAdapter {
	if log == nil {
		log = Global().Module("datastore")
	}
	return &GormLoggerAdapter{log: log, slow: slow}
}

// LogMode is a no-op, levels come from the logging configuration.
func (a *GormLoggerAdapter) LogMode(gormlogger.LogLevel) gormlogger.Interface { return a }

// Info logs gorm notices at debug level.
func (a *GormLoggerAdapter) Info(ctx context.Context, format string, args ...any) {
	a.log.WithContext(ctx).Debug(fmt.Sprintf(format, args...))
}

func (a *GormLoggerAdapter) Warn(ctx context.Context, format string, args ...any) {
	a.log.WithContext(ctx).Warn(fmt.Sprintf(format, args...))
}

func (a *GormLoggerAdapter) Error(ctx context.Context, format string, args ...any) {
	a.log.WithContext(ctx).Error(fmt.Sprintf(format, args...))
}

// Trace logs one executed statement.
func (a *GormLoggerAdapter) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()

	fields := []Field{
		String("statement", statementKind(sql)),
		String("sql", sql),
		Int64("rows", rows),
		Duration("elapsed", elapsed),
	}
	log := a.log.WithContext(ctx)

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		log.Warn("sql statement failed", append(fields, Error(err))...)
	case a.slow > 0 && elapsed > a.slow:
		log.Warn("slow sql statement", append(fields, Duration("threshold", a.slow))...)
	default:
		log.Trace("sql statement", fields...)
	}
}

// statementKind returns the leading keyword of a statement, e.g. SELECT.
func statementKind(sql string) string {
	kind, _, _ := strings.Cut(strings.TrimSpace(sql), " ")
	return strings.ToUpper(kind)
}
