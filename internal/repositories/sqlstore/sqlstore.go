// Package sqlstore - реализация репозиториев поверх gorm (postgres, mysql, sqlite).
package sqlstore

import (
	"errors"
	"strings"
	"time"

	"suchat_backend/internal/repositories"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// New собирает Store на одном подключении gorm.
func New(db *gorm.DB) *repositories.Store {
	return &repositories.Store{
		Chat:          NewChatRepository(db),
		Schedules:     NewScheduleRepository(db),
		Albums:        NewAlbumRepository(db),
		Subscriptions: NewPushSubscriptionRepository(db),
		Devices:       NewDeviceRepository(db),
	}
}

// isUniqueViolation распознаёт нарушение уникального индекса во всех поддерживаемых драйверах.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	// sqlite (modernc) не экспортирует типизированный код через gorm
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
