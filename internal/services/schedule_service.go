package services

import (
	"context"
	"errors"

	"suchat_backend/internal/logger"
	"suchat_backend/internal/models/chat"
	"suchat_backend/internal/repositories"
	"suchat_backend/internal/services/dto"
	"suchat_backend/pkg/apperrors"
)

type ScheduleService interface {
	CreateSchedule(ctx context.Context, roomID, userID string, req *dto.CreateScheduleRequest) (*chat.Schedule, error)
	GetSchedules(ctx context.Context, roomID, userID string, query *dto.ScheduleQuery) ([]chat.Schedule, error)
	GetScheduleParticipants(ctx context.Context, roomID, userID string) ([]dto.ParticipantResponse, error)
	UpdateSchedule(ctx context.Context, scheduleID, userID string, req *dto.UpdateScheduleRequest) (*chat.Schedule, error)
	DeleteSchedule(ctx context.Context, scheduleID, userID string) error
}

type scheduleService struct {
	scheduleRepo repositories.ScheduleRepository
	chatService  ChatService
}

func NewScheduleService(scheduleRepo repositories.ScheduleRepository, chatService ChatService) ScheduleService {
	return &scheduleService{
		scheduleRepo: scheduleRepo,
		chatService:  chatService,
	}
}

// CreateSchedule - комната должна существовать, автор - её участник.
// Автор всегда входит в список участников расписания.
func (s *scheduleService) CreateSchedule(ctx context.Context, roomID, userID string, req *dto.CreateScheduleRequest) (*chat.Schedule, error) {
	if _, err := s.chatService.RequireMember(ctx, roomID, userID); err != nil {
		return nil, err
	}
	if err := checkDateRange(req.StartDate, req.EndDate); err != nil {
		return nil, err
	}

	schedule := &chat.Schedule{
		RoomID:                  roomID,
		CreatedBy:               userID,
		Title:                   req.Title,
		Memo:                    req.Memo,
		StartDate:               req.StartDate,
		EndDate:                 req.EndDate,
		NotificationDateTime:    req.NotificationDateTime,
		NotificationInterval:    req.NotificationInterval,
		NotificationRepeatCount: req.NotificationRepeatCount,
	}
	for _, id := range withCreator(userID, req.ParticipantIDs) {
		schedule.Participants = append(schedule.Participants, chat.ScheduleParticipant{UserID: id})
	}

	if err := s.scheduleRepo.Create(ctx, schedule); err != nil {
		return nil, handleScheduleError(err)
	}

	logger.CtxInfo(ctx, "schedule created",
		"schedule_id", schedule.ID,
		"room_id", roomID,
		"participants", len(schedule.Participants),
	)
	return s.reload(ctx, schedule.ID)
}

// GetSchedules - только расписания, где пользователь автор или участник
func (s *scheduleService) GetSchedules(ctx context.Context, roomID, userID string, query *dto.ScheduleQuery) ([]chat.Schedule, error) {
	if _, err := s.chatService.RequireMember(ctx, roomID, userID); err != nil {
		return nil, err
	}

	filter := repositories.ScheduleFilter{}
	if query != nil {
		filter.From, filter.To = query.From, query.To
	}
	schedules, err := s.scheduleRepo.FindByRoom(ctx, roomID, filter)
	if err != nil {
		return nil, handleScheduleError(err)
	}

	visible := make([]chat.Schedule, 0, len(schedules))
	for _, sc := range schedules {
		if sc.CreatedBy == userID || containsID(sc.ParticipantIDs(), userID) {
			visible = append(visible, sc)
		}
	}
	return visible, nil
}

// GetScheduleParticipants - участники комнаты для выбора в форме расписания
func (s *scheduleService) GetScheduleParticipants(ctx context.Context, roomID, userID string) ([]dto.ParticipantResponse, error) {
	if _, err := s.chatService.RequireMember(ctx, roomID, userID); err != nil {
		return nil, err
	}
	participants, err := s.chatService.GetRoomParticipants(ctx, roomID)
	if err != nil {
		return nil, err
	}

	result := make([]dto.ParticipantResponse, 0, len(participants))
	for _, p := range participants {
		result = append(result, dto.ParticipantResponse{
			UserID:   p.UserID,
			Role:     p.Role,
			JoinedAt: p.JoinedAt,
		})
	}
	return result, nil
}

func (s *scheduleService) UpdateSchedule(ctx context.Context, scheduleID, userID string, req *dto.UpdateScheduleRequest) (*chat.Schedule, error) {
	schedule, err := s.scheduleRepo.FindByID(ctx, scheduleID)
	if err != nil {
		return nil, handleScheduleError(err)
	}
	if schedule.CreatedBy != userID {
		return nil, apperrors.ErrNotScheduleCreator
	}

	if req.Title != nil {
		schedule.Title = *req.Title
	}
	if req.Memo != nil {
		schedule.Memo = req.Memo
	}
	if req.StartDate != nil {
		schedule.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		schedule.EndDate = req.EndDate
	}
	if req.NotificationDateTime != nil {
		if schedule.NotificationDateTime == nil || *schedule.NotificationDateTime != *req.NotificationDateTime {
			// новое время напоминания - напоминание снова ожидает отправки
			schedule.NotificationSent = 0
		}
		schedule.NotificationDateTime = req.NotificationDateTime
	}
	if req.NotificationInterval != nil {
		schedule.NotificationInterval = req.NotificationInterval
	}
	if req.NotificationRepeatCount != nil {
		schedule.NotificationRepeatCount = req.NotificationRepeatCount
	}
	if err := checkDateRange(schedule.StartDate, schedule.EndDate); err != nil {
		return nil, err
	}

	var participantIDs []string
	if req.ParticipantIDs != nil {
		participantIDs = withCreator(schedule.CreatedBy, req.ParticipantIDs)
	}

	if err := s.scheduleRepo.Update(ctx, schedule, participantIDs); err != nil {
		return nil, handleScheduleError(err)
	}

	logger.CtxInfo(ctx, "schedule updated", "schedule_id", scheduleID)
	return s.reload(ctx, scheduleID)
}

func (s *scheduleService) DeleteSchedule(ctx context.Context, scheduleID, userID string) error {
	schedule, err := s.scheduleRepo.FindByID(ctx, scheduleID)
	if err != nil {
		return handleScheduleError(err)
	}
	if schedule.CreatedBy != userID {
		return apperrors.ErrNotScheduleCreator
	}

	if err := s.scheduleRepo.Delete(ctx, scheduleID); err != nil {
		return handleScheduleError(err)
	}
	logger.CtxInfo(ctx, "schedule deleted", "schedule_id", scheduleID)
	return nil
}

func (s *scheduleService) reload(ctx context.Context, id string) (*chat.Schedule, error) {
	schedule, err := s.scheduleRepo.FindByID(ctx, id)
	if err != nil {
		return nil, handleScheduleError(err)
	}
	return schedule, nil
}

// checkDateRange - даты одного формата сравниваются как строки
func checkDateRange(start string, end *string) error {
	if end != nil && *end != "" && *end < start {
		return apperrors.NewBadRequestError("endDate must not be before startDate")
	}
	return nil
}

func withCreator(creatorID string, ids []string) []string {
	return append([]string{creatorID}, uniqueIDs(ids, creatorID)...)
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func handleScheduleError(err error) error {
	if _, ok := apperrors.AsAppError(err); ok {
		return err
	}
	if errors.Is(err, repositories.ErrScheduleNotFound) {
		return apperrors.ErrScheduleNotFound.WithError(err)
	}
	return apperrors.DatabaseError(err)
}
