package batch

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"suchat_backend/internal/logger"

	"gopkg.in/yaml.v2"
)

// JobReminders - единственная задача, которую умеет планировщик
const JobReminders = "schedule-notification"

// ScheduleConfig - одна запись планировщика
type ScheduleConfig struct {
	Name        string `json:"name" yaml:"name"`
	Cron        string `json:"cron" yaml:"cron"`
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Job - имя задачи; пусто означает напоминания
	Job string `json:"job,omitempty" yaml:"job,omitempty"`
	// TimeoutSec ограничивает один прогон; 0 - без ограничения
	TimeoutSec int `json:"timeoutSec,omitempty" yaml:"timeout_sec,omitempty"`
	// Concurrency переопределяет общий лимит для этой записи
	Concurrency int `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
}

type fileConfig struct {
	Schedules []ScheduleConfig `json:"schedules" yaml:"schedules"`
}

// DefaultSchedules используются, когда ни окружение, ни файл ничего не задали
func DefaultSchedules() []ScheduleConfig {
	return []ScheduleConfig{
		{Name: "default-morning", Cron: "0 9 * * *", Enabled: true, Description: "Every day at 09:00"},
		{Name: "default-evening", Cron: "0 18 * * *", Enabled: true, Description: "Every day at 18:00"},
	}
}

// LoadSchedules: сначала JSON-массив из envSchedules, затем файл
// (JSON или YAML по расширению), иначе расписания по умолчанию.
// Нечитаемое значение окружения не фатально, битый файл - фатален.
func LoadSchedules(envSchedules, path string) ([]ScheduleConfig, error) {
	if strings.TrimSpace(envSchedules) != "" {
		var schedules []ScheduleConfig
		err := json.Unmarshal([]byte(envSchedules), &schedules)
		if err == nil {
			logger.Info("batch schedules loaded from environment", "count", len(schedules))
			return schedules, nil
		}
		logger.Warn("BATCH_SCHEDULES is not a valid JSON array, trying config file", "error", err)
	}

	if path == "" {
		path = "batch/batch.config.json"
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn("batch config file not found, using default schedules", "path", path)
		return DefaultSchedules(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read batch config %s: %w", path, err)
	}

	var cfg fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse batch config %s: %w", path, err)
	}
	logger.Info("batch schedules loaded from file", "path", path, "count", len(cfg.Schedules))
	return cfg.Schedules, nil
}
