package database

import (
	"fmt"

	"suchat_backend/internal/logger"
	"suchat_backend/internal/models"
	chatmodels "suchat_backend/internal/models/chat"
	"suchat_backend/internal/queue"

	"gorm.io/gorm"
)

// AutoMigrate выполняет миграцию всех моделей
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&chatmodels.Room{},
		&chatmodels.Participant{},
		&chatmodels.Message{},
		&chatmodels.Schedule{},
		&chatmodels.ScheduleParticipant{},
		&chatmodels.AlbumItem{},
		&chatmodels.AlbumFolder{},
		&models.PushSubscription{},
		&models.UserDevice{},
		&queue.Job{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	logger.Info("database migrated")
	return nil
}
