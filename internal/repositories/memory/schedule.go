package memory

import (
	"context"
	"sort"
	"sync"

	"suchat_backend/internal/models/chat"
	"suchat_backend/internal/repositories"
)

type scheduleRepository struct {
	mu        sync.RWMutex
	schedules map[string]*chat.Schedule
}

func NewScheduleRepository() repositories.ScheduleRepository {
	return &scheduleRepository{schedules: make(map[string]*chat.Schedule)}
}

func copySchedule(s *chat.Schedule) chat.Schedule {
	cp := *s
	cp.Memo = cloneString(s.Memo)
	cp.EndDate = cloneString(s.EndDate)
	cp.NotificationDateTime = cloneString(s.NotificationDateTime)
	cp.NotificationInterval = cloneString(s.NotificationInterval)
	cp.NotificationRepeatCount = cloneString(s.NotificationRepeatCount)
	cp.Participants = append([]chat.ScheduleParticipant(nil), s.Participants...)
	return cp
}

func sortSchedules(schedules []chat.Schedule) {
	sort.Slice(schedules, func(i, j int) bool {
		if schedules[i].StartDate == schedules[j].StartDate {
			return schedules[i].ID < schedules[j].ID
		}
		return schedules[i].StartDate < schedules[j].StartDate
	})
}

func buildParticipants(scheduleID string, userIDs []string) []chat.ScheduleParticipant {
	ts := now()
	seen := make(map[string]struct{}, len(userIDs))
	participants := make([]chat.ScheduleParticipant, 0, len(userIDs))
	for _, userID := range userIDs {
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}
		participants = append(participants, chat.ScheduleParticipant{
			ID:         newID(),
			ScheduleID: scheduleID,
			UserID:     userID,
			CreatedAt:  ts,
		})
	}
	return participants
}

func (r *scheduleRepository) Create(_ context.Context, s *chat.Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.ID == "" {
		s.ID = newID()
	}
	ts := now()
	s.CreatedAt = ts
	s.UpdatedAt = ts
	userIDs := s.ParticipantIDs()
	s.Participants = buildParticipants(s.ID, userIDs)

	stored := copySchedule(s)
	r.schedules[s.ID] = &stored
	return nil
}

func (r *scheduleRepository) FindByID(_ context.Context, id string) (*chat.Schedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.schedules[id]
	if !ok {
		return nil, repositories.ErrScheduleNotFound
	}
	cp := copySchedule(s)
	return &cp, nil
}

func (r *scheduleRepository) FindByRoom(_ context.Context, roomID string, filter repositories.ScheduleFilter) ([]chat.Schedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schedules := make([]chat.Schedule, 0)
	for _, s := range r.schedules {
		if s.RoomID != roomID {
			continue
		}
		if filter.From != "" && s.StartDate < filter.From {
			continue
		}
		if filter.To != "" && s.StartDate > filter.To {
			continue
		}
		schedules = append(schedules, copySchedule(s))
	}
	sortSchedules(schedules)
	return schedules, nil
}

func (r *scheduleRepository) FindByParticipant(_ context.Context, userID string) ([]chat.Schedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schedules := make([]chat.Schedule, 0)
	for _, s := range r.schedules {
		for _, p := range s.Participants {
			if p.UserID == userID {
				schedules = append(schedules, copySchedule(s))
				break
			}
		}
	}
	sortSchedules(schedules)
	return schedules, nil
}

func (r *scheduleRepository) Update(_ context.Context, s *chat.Schedule, participantIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.schedules[s.ID]
	if !ok {
		return repositories.ErrScheduleNotFound
	}

	existing.Title = s.Title
	existing.Memo = cloneString(s.Memo)
	existing.StartDate = s.StartDate
	existing.EndDate = cloneString(s.EndDate)
	existing.NotificationDateTime = cloneString(s.NotificationDateTime)
	existing.NotificationInterval = cloneString(s.NotificationInterval)
	existing.NotificationRepeatCount = cloneString(s.NotificationRepeatCount)
	existing.NotificationSent = s.NotificationSent
	existing.UpdatedAt = now()
	if participantIDs != nil {
		existing.Participants = buildParticipants(s.ID, participantIDs)
		s.Participants = append([]chat.ScheduleParticipant(nil), existing.Participants...)
	}
	return nil
}

func (r *scheduleRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.schedules[id]; !ok {
		return repositories.ErrScheduleNotFound
	}
	delete(r.schedules, id)
	return nil
}

func (r *scheduleRepository) FindDueReminders(_ context.Context, nowKey string) ([]repositories.ReminderTarget, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	due := make([]chat.Schedule, 0)
	for _, s := range r.schedules {
		if s.NotificationDateTime == nil || *s.NotificationDateTime != nowKey {
			continue
		}
		if s.StartDate < nowKey || s.NotificationSent != 0 {
			continue
		}
		due = append(due, copySchedule(s))
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })

	var targets []repositories.ReminderTarget
	for _, s := range due {
		participants := s.Participants
		s.Participants = nil
		for _, p := range participants {
			targets = append(targets, repositories.ReminderTarget{Schedule: s, UserID: p.UserID})
		}
	}
	return targets, nil
}

func (r *scheduleRepository) IncrementNotificationSent(_ context.Context, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range ids {
		if s, ok := r.schedules[id]; ok {
			s.NotificationSent++
		}
	}
	return nil
}
