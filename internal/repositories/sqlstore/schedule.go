package sqlstore

import (
	"context"
	"errors"

	"suchat_backend/internal/models/chat"
	"suchat_backend/internal/repositories"

	"gorm.io/gorm"
)

type scheduleRepository struct {
	db *gorm.DB
}

func NewScheduleRepository(db *gorm.DB) repositories.ScheduleRepository {
	return &scheduleRepository{db: db}
}

func (r *scheduleRepository) Create(ctx context.Context, s *chat.Schedule) error {
	// участники создаются gorm как ассоциация
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *scheduleRepository) FindByID(ctx context.Context, id string) (*chat.Schedule, error) {
	var s chat.Schedule
	err := r.db.WithContext(ctx).Preload("Participants").First(&s, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrScheduleNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *scheduleRepository) FindByRoom(ctx context.Context, roomID string, filter repositories.ScheduleFilter) ([]chat.Schedule, error) {
	q := r.db.WithContext(ctx).Preload("Participants").Where("room_id = ?", roomID)
	if filter.From != "" {
		q = q.Where("start_date >= ?", filter.From)
	}
	if filter.To != "" {
		q = q.Where("start_date <= ?", filter.To)
	}

	var schedules []chat.Schedule
	err := q.Order("start_date ASC").Order("id ASC").Find(&schedules).Error
	return schedules, err
}

func (r *scheduleRepository) FindByParticipant(ctx context.Context, userID string) ([]chat.Schedule, error) {
	var schedules []chat.Schedule
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("id IN (?)", r.db.Model(&chat.ScheduleParticipant{}).Select("schedule_id").Where("user_id = ?", userID)).
		Order("start_date ASC").Order("id ASC").
		Find(&schedules).Error
	return schedules, err
}

func (r *scheduleRepository) Update(ctx context.Context, s *chat.Schedule, participantIDs []string) error {
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer tx.Rollback()

	res := tx.Model(&chat.Schedule{}).Where("id = ?", s.ID).Updates(map[string]any{
		"title":                     s.Title,
		"memo":                      s.Memo,
		"start_date":                s.StartDate,
		"end_date":                  s.EndDate,
		"notification_date_time":    s.NotificationDateTime,
		"notification_interval":     s.NotificationInterval,
		"notification_repeat_count": s.NotificationRepeatCount,
		"notification_sent":         s.NotificationSent,
	})
	if res.Error != nil {
		return res.Error
	}

	if participantIDs != nil {
		if err := tx.Where("schedule_id = ?", s.ID).Delete(&chat.ScheduleParticipant{}).Error; err != nil {
			return err
		}
		participants := make([]chat.ScheduleParticipant, 0, len(participantIDs))
		for _, userID := range participantIDs {
			participants = append(participants, chat.ScheduleParticipant{ScheduleID: s.ID, UserID: userID})
		}
		if len(participants) > 0 {
			if err := tx.Create(&participants).Error; err != nil {
				return err
			}
		}
		s.Participants = participants
	}

	return tx.Commit().Error
}

func (r *scheduleRepository) Delete(ctx context.Context, id string) error {
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer tx.Rollback()

	if err := tx.Where("schedule_id = ?", id).Delete(&chat.ScheduleParticipant{}).Error; err != nil {
		return err
	}
	res := tx.Where("id = ?", id).Delete(&chat.Schedule{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repositories.ErrScheduleNotFound
	}
	return tx.Commit().Error
}

func (r *scheduleRepository) FindDueReminders(ctx context.Context, now string) ([]repositories.ReminderTarget, error) {
	var schedules []chat.Schedule
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("notification_date_time = ? AND start_date >= ?", now, now).
		Where("notification_sent = 0 OR notification_sent IS NULL").
		Order("id ASC").
		Find(&schedules).Error
	if err != nil {
		return nil, err
	}

	var targets []repositories.ReminderTarget
	for _, s := range schedules {
		participants := s.Participants
		s.Participants = nil
		for _, p := range participants {
			targets = append(targets, repositories.ReminderTarget{Schedule: s, UserID: p.UserID})
		}
	}
	return targets, nil
}

func (r *scheduleRepository) IncrementNotificationSent(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&chat.Schedule{}).
		Where("id IN ?", ids).
		UpdateColumn("notification_sent", gorm.Expr("COALESCE(notification_sent, 0) + 1")).Error
}
