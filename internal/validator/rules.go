package validator

import (
	"log"
	"time"

	"suchat_backend/internal/models/chat"

	"github.com/go-playground/validator/v10"
)

// registerCustomRules регистрирует кастомные правила валидации
func registerCustomRules(v *validator.Validate) {
	mustRegister := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			// без правила приложение запускать нельзя
			log.Fatalf("failed to register custom validation tag '%s': %v", tag, err)
		}
	}

	mustRegister("sortable-dt", validateSortableDateTime)
	mustRegister("is-message-type", validateMessageType)
	mustRegister("is-room-role", validateRoomRole)
	mustRegister("is-device-type", validateDeviceType)
	mustRegister("is-album-type", validateAlbumType)
}

// validateSortableDateTime - ровно 14 цифр, которые разбираются как дата yyyymmddHHMMSS
func validateSortableDateTime(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if len(value) != len(chat.DateLayout) {
		return false
	}
	_, err := time.Parse(chat.DateLayout, value)
	return err == nil
}

func validateMessageType(fl validator.FieldLevel) bool {
	return chat.MessageType(fl.Field().String()).Valid()
}

func validateRoomRole(fl validator.FieldLevel) bool {
	return chat.ParticipantRole(fl.Field().String()).Valid()
}

func validateDeviceType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "web", "android", "ios":
		return true
	}
	return false
}

func validateAlbumType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "image", "video":
		return true
	}
	return false
}
