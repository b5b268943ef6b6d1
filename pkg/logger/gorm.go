package logger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger routes GORM query logs through slog. Record-not-found is not an error here.
type GormLogger struct {
	Log           *slog.Logger
	SlowThreshold time.Duration
	Level         gormlogger.LogLevel
}

func NewGormLogger(l *slog.Logger, slow time.Duration) *GormLogger {
	return &GormLogger{Log: l, SlowThreshold: slow, Level: gormlogger.Warn}
}

func (g *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *g
	cp.Level = level
	return &cp
}

func (g *GormLogger) Info(ctx context.Context, msg string, args ...any) {
	if g.Level >= gormlogger.Info {
		g.from(ctx).Info(msg, "args", args)
	}
}

func (g *GormLogger) Warn(ctx context.Context, msg string, args ...any) {
	if g.Level >= gormlogger.Warn {
		g.from(ctx).Warn(msg, "args", args)
	}
}

func (g *GormLogger) Error(ctx context.Context, msg string, args ...any) {
	if g.Level >= gormlogger.Error {
		g.from(ctx).Error(msg, "args", args)
	}
}

func (g *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.Level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && g.Level >= gormlogger.Error:
		sql, rows := fc()
		g.from(ctx).Error("db query failed", "err", err, "sql", sql, "rows", rows, "elapsed_ms", elapsed.Milliseconds())
	case g.SlowThreshold > 0 && elapsed > g.SlowThreshold && g.Level >= gormlogger.Warn:
		sql, rows := fc()
		g.from(ctx).Warn("slow query", "sql", sql, "rows", rows, "elapsed_ms", elapsed.Milliseconds())
	case g.Level >= gormlogger.Info:
		sql, rows := fc()
		g.from(ctx).Debug("db query", "sql", sql, "rows", rows, "elapsed_ms", elapsed.Milliseconds())
	}
}

func (g *GormLogger) from(ctx context.Context) *slog.Logger {
	if l := From(ctx); l != slog.Default() {
		return l
	}
	if g.Log != nil {
		return g.Log
	}
	return slog.Default()
}
