package apperrors

import (
	"net/http"
)

// =========================================================================
// Фабрики
// =========================================================================

// ErrNotFound - ошибка "не найдено" (404) поверх ошибки репозитория
func ErrNotFound(err error) *AppError {
	return Wrap(err, CodeNotFound, "resource", "Resource not found", http.StatusNotFound)
}

// ErrAlreadyExists - ошибка "уже существует" (409)
func ErrAlreadyExists(err error) *AppError {
	return Wrap(err, CodeAlreadyExists, "resource", "Resource already exists", http.StatusConflict)
}

// ErrConflict - общая фабрика для конфликтов (409)
func ErrConflict(err error, domain, message string) *AppError {
	return Wrap(err, CodeConflict, domain, message, http.StatusConflict)
}

// ErrInvalidOperation - фабрика для невалидных операций (400)
func ErrInvalidOperation(domain, message string) *AppError {
	return New(CodeInvalidOperation, domain, message, http.StatusBadRequest)
}

// --- Auth ---

var ErrInvalidToken = New(
	CodeInvalidToken,
	"auth",
	"Invalid or expired token",
	http.StatusUnauthorized,
)

// --- Chat ---

var ErrRoomNotFound = New(
	CodeNotFound,
	"chat",
	"Room not found",
	http.StatusNotFound,
)

var ErrMessageNotFound = New(
	CodeNotFound,
	"chat",
	"Message not found",
	http.StatusNotFound,
)

// ErrNotRoomMember - пользователь не является участником комнаты.
var ErrNotRoomMember = New(
	CodeForbidden,
	"chat",
	"User is not a participant of this room",
	http.StatusForbidden,
)

// ErrMessageNotInRoom - lastRead указывает на сообщение из другой комнаты.
var ErrMessageNotInRoom = New(
	CodeValidationFailed,
	"chat",
	"Message does not belong to this room",
	http.StatusBadRequest,
)

var ErrInvalidMessageType = New(
	CodeValidationFailed,
	"validation",
	"Invalid message type",
	http.StatusBadRequest,
)

var ErrSelfDirectMessage = New(
	CodeInvalidOperation,
	"chat",
	"Cannot open a direct conversation with yourself",
	http.StatusBadRequest,
)

// --- Schedule ---

var ErrScheduleNotFound = New(
	CodeNotFound,
	"schedule",
	"Schedule not found",
	http.StatusNotFound,
)

var ErrNotScheduleCreator = New(
	CodeForbidden,
	"schedule",
	"Only the schedule creator can modify it",
	http.StatusForbidden,
)

// --- Album ---

var ErrAlbumItemNotFound = New(
	CodeNotFound,
	"album",
	"Album item not found",
	http.StatusNotFound,
)

var ErrAlbumFolderNotFound = New(
	CodeNotFound,
	"album",
	"Album folder not found",
	http.StatusNotFound,
)

var ErrNotAlbumOwner = New(
	CodeForbidden,
	"album",
	"Only the uploader can delete this item",
	http.StatusForbidden,
)

var ErrNotFolderOwner = New(
	CodeForbidden,
	"album",
	"Only the folder creator can delete it",
	http.StatusForbidden,
)

// --- Push ---

var ErrSubscriptionNotFound = New(
	CodeNotFound,
	"push",
	"Push subscription not found",
	http.StatusNotFound,
)

var ErrNoActiveSubscriptions = New(
	CodeNotFound,
	"push",
	"No active push subscriptions",
	http.StatusNotFound,
)

var ErrDeviceNotFound = New(
	CodeNotFound,
	"device",
	"Device not found",
	http.StatusNotFound,
)

var ErrPushUnavailable = New(
	CodeExternalServiceError,
	"push",
	"Push delivery is not configured",
	http.StatusServiceUnavailable,
)
