package database

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

// Logger routes gorm output through the standard logger and flags slow statements.
type Logger struct {
	SlowThreshold time.Duration
	LogLevel      gormLogger.LogLevel
}

func NewLogger(level string) gormLogger.Interface {
	return &Logger{
		SlowThreshold: 200 * time.Millisecond,
		LogLevel:      parseLevel(level),
	}
}

func parseLevel(level string) gormLogger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "silent":
		return gormLogger.Silent
	case "error":
		return gormLogger.Error
	case "info":
		return gormLogger.Info
	default:
		return gormLogger.Warn
	}
}

func (l *Logger) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	cp := *l
	cp.LogLevel = level
	return &cp
}

func (l *Logger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Info {
		log.Printf("[gorm] info %s: "+msg, append([]interface{}{utils.FileWithLineNum()}, data...)...)
	}
}

func (l *Logger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Warn {
		log.Printf("[gorm] warn %s: "+msg, append([]interface{}{utils.FileWithLineNum()}, data...)...)
	}
}

func (l *Logger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Error {
		log.Printf("[gorm] error %s: "+msg, append([]interface{}{utils.FileWithLineNum()}, data...)...)
	}
}

func (l *Logger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= gormLogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && l.LogLevel >= gormLogger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		log.Printf("[gorm] %s [%.3fms] [rows:%d] %s: %v", utils.FileWithLineNum(), float64(elapsed.Microseconds())/1000, rows, sql, err)
	case l.SlowThreshold != 0 && elapsed > l.SlowThreshold && l.LogLevel >= gormLogger.Warn:
		sql, rows := fc()
		log.Printf("[gorm] SLOW >= %v %s [%.3fms] [rows:%d] %s", l.SlowThreshold, utils.FileWithLineNum(), float64(elapsed.Microseconds())/1000, rows, sql)
	case l.LogLevel >= gormLogger.Info:
		sql, rows := fc()
		log.Printf("[gorm] %s [%.3fms] [rows:%d] %s", utils.FileWithLineNum(), float64(elapsed.Microseconds())/1000, rows, sql)
	}
}
