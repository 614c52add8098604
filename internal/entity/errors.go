package entity

import "errors"

var (
	// Queue errors
	ErrQueueNotFound      = errors.New("queue not found")
	ErrInvalidJoinMode    = errors.New("invalid join mode")
	ErrBookingForbidden   = errors.New("user cannot book this queue")
	ErrScheduleIncomplete = errors.New("schedule incomplete")
	ErrInvalidTimeRange   = errors.New("invalid time range")

	// Ticket errors
	ErrTicketNotFound     = errors.New("ticket not found")
	ErrTicketNotAligned   = errors.New("ticket time is not aligned to queue's fixed slots")
	ErrSlotTaken          = errors.New("ticket time slot already booked")
	ErrTimeNotBookable    = errors.New("time is not inside open hours")
	ErrInvalidTicketState = errors.New("invalid ticket state")

	// Member errors
	ErrNotManager = errors.New("user cannot manage queue tickets")

	// User errors
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrAlreadyMember     = errors.New("user is already a queue member")
)

// IsValidationError отличает ошибки валидации брони (откат без записи,
// ответ 400) от программных ошибок вроде неверного состояния талона.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrTicketNotAligned) ||
		errors.Is(err, ErrSlotTaken) ||
		errors.Is(err, ErrTimeNotBookable) ||
		errors.Is(err, ErrScheduleIncomplete) ||
		errors.Is(err, ErrInvalidTimeRange) ||
		errors.Is(err, ErrBookingForbidden)
}
