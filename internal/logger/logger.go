package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

var log *slog.Logger

// Init инициализирует глобальный логгер.
// env: "development" или "production"; level: debug|info|warn|error (пусто - по env).
func Init(env, level string) {
	InitWithWriter(os.Stdout, env, level)
}

// InitWithWriter - как Init, но пишет в w (используется в тестах).
func InitWithWriter(w io.Writer, env, level string) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level:     slog.LevelInfo,
		AddSource: env != "test",
	}

	if env == "development" {
		opts.Level = slog.LevelDebug
	}
	if level != "" {
		opts.Level = parseLevel(level)
	}

	if env == "development" {
		// Development: читаемый текстовый формат
		handler = slog.NewTextHandler(w, opts)
	} else {
		// Production: JSON для парсинга
		handler = slog.NewJSONHandler(w, opts)
	}

	log = slog.New(handler)
	slog.SetDefault(log)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetLogger возвращает глобальный логгер
func GetLogger() *slog.Logger {
	if log == nil {
		// Fallback если Init не вызван
		Init("development", "")
	}
	return log
}

// ============================================
// Convenience функции
// ============================================

func Debug(msg string, args ...any) {
	GetLogger().Debug(msg, args...)
}

func Info(msg string, args ...any) {
	GetLogger().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	GetLogger().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	GetLogger().Error(msg, args...)
}

// Fatal логирует fatal ошибку и завершает программу
func Fatal(msg string, args ...any) {
	GetLogger().Error(msg, args...)
	os.Exit(1)
}

// ============================================
// Специализированные логгеры
// ============================================

// DBLog логирует database операцию
func DBLog(operation, query string, duration time.Duration, err error) {
	fields := []any{
		"operation", operation,
		"query", query,
		"duration_ms", duration.Milliseconds(),
	}

	if err != nil {
		fields = append(fields, "error", err.Error())
		GetLogger().Error("database operation failed", fields...)
	} else {
		GetLogger().Debug("database operation", fields...)
	}
}

// WorkerLog логирует операцию фонового воркера
func WorkerLog(worker, operation string, err error) {
	fields := []any{
		"worker", worker,
		"operation", operation,
	}

	if err != nil {
		fields = append(fields, "error", err.Error())
		GetLogger().Error("worker operation failed", fields...)
	} else {
		GetLogger().Info("worker operation completed", fields...)
	}
}

// JobLog логирует переход состояния задачи очереди
func JobLog(queue, jobID, state string, attempt int, err error) {
	fields := []any{
		"queue", queue,
		"job_id", jobID,
		"state", state,
		"attempt", attempt,
	}

	if err != nil {
		fields = append(fields, "error", err.Error())
		GetLogger().Warn("job attempt failed", fields...)
	} else {
		GetLogger().Debug("job state changed", fields...)
	}
}

// WSLog логирует событие websocket-шлюза
func WSLog(event, userID, roomID string, err error) {
	fields := []any{
		"event", event,
		"user_id", userID,
	}
	if roomID != "" {
		fields = append(fields, "room_id", roomID)
	}

	if err != nil {
		fields = append(fields, "error", err.Error())
		GetLogger().Warn("ws event failed", fields...)
	} else {
		GetLogger().Debug("ws event", fields...)
	}
}
