package helpers

import (
	"testing"

	"suchat_backend/database"
	"suchat_backend/internal/config"

	"gorm.io/gorm"
)

// TestConfig - sql-хранилище на sqlite в памяти, JWT с тестовым секретом
func TestConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.Env = "test"
	cfg.Store.Backend = "sql"
	cfg.Database.Driver = "sqlite"
	cfg.Database.DSN = ":memory:"
	cfg.JWT.Secret = "test-secret-for-integration"
	cfg.Queue.BackoffMs = 10
	return cfg
}

// NewTestDB открывает отдельную базу в памяти со схемой приложения.
// Соединение одно, поэтому база живёт до закрытия.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Open(TestConfig())
	if err != nil {
		t.Fatalf("Не удалось открыть тестовую БД: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("Не удалось выполнить AutoMigrate: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}
