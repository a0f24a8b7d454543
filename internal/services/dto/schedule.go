package dto

type CreateScheduleRequest struct {
	Title                   string   `json:"title" validate:"required,max=255"`
	Memo                    *string  `json:"memo,omitempty" validate:"omitempty,max=5000"`
	StartDate               string   `json:"startDate" validate:"required,sortable-dt"`
	EndDate                 *string  `json:"endDate,omitempty" validate:"omitempty,sortable-dt"`
	NotificationDateTime    *string  `json:"notificationDateTime,omitempty" validate:"omitempty,sortable-dt"`
	NotificationInterval    *string  `json:"notificationInterval,omitempty" validate:"omitempty,numeric,max=32"`
	NotificationRepeatCount *string  `json:"notificationRepeatCount,omitempty" validate:"omitempty,numeric,max=32"`
	ParticipantIDs          []string `json:"participantIds,omitempty" validate:"omitempty,dive,required,max=64"`
}

// UpdateScheduleRequest - nil означает "не менять"; ParticipantIDs: [] очищает
// список (создатель остаётся всегда)
type UpdateScheduleRequest struct {
	Title                   *string  `json:"title,omitempty" validate:"omitempty,min=1,max=255"`
	Memo                    *string  `json:"memo,omitempty" validate:"omitempty,max=5000"`
	StartDate               *string  `json:"startDate,omitempty" validate:"omitempty,sortable-dt"`
	EndDate                 *string  `json:"endDate,omitempty" validate:"omitempty,sortable-dt"`
	NotificationDateTime    *string  `json:"notificationDateTime,omitempty" validate:"omitempty,sortable-dt"`
	NotificationInterval    *string  `json:"notificationInterval,omitempty" validate:"omitempty,numeric,max=32"`
	NotificationRepeatCount *string  `json:"notificationRepeatCount,omitempty" validate:"omitempty,numeric,max=32"`
	ParticipantIDs          []string `json:"participantIds,omitempty" validate:"omitempty,dive,required,max=64"`
}

type ScheduleQuery struct {
	From string `form:"from" validate:"omitempty,sortable-dt"`
	To   string `form:"to" validate:"omitempty,sortable-dt"`
}
