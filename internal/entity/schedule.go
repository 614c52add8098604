package entity

import (
	"time"

	"github.com/google/uuid"
)

// Дни недели нумеруются с понедельника (0) по воскресенье (6).
var WeekdayNames = [7]string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
}

// WeekdayIndex переводит time.Weekday (воскресенье = 0) в нашу нумерацию.
func WeekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// WeeklyOpenRange хранит часы работы очереди в один день недели.
// На день недели полагается не больше одной записи.
type WeeklyOpenRange struct {
	ID       int64     `json:"id" db:"id"`
	QueueID  uuid.UUID `json:"queue_id" db:"queue_id"`
	Day      int       `json:"day" db:"day"`
	FromTime TimeOfDay `json:"from_time" db:"from_time"`
	ToTime   TimeOfDay `json:"to_time" db:"to_time"`
}

// OpenException переопределяет недельное расписание на конкретную дату.
// FromTime == nil означает "в этот день закрыто", даже если недельное
// расписание говорит обратное. На дату полагается не больше одной записи
// (upsert).
type OpenException struct {
	ID       int64      `json:"id" db:"id"`
	QueueID  uuid.UUID  `json:"queue_id" db:"queue_id"`
	Day      time.Time  `json:"day" db:"day"`
	FromTime *TimeOfDay `json:"from_time" db:"from_time"`
	ToTime   *TimeOfDay `json:"to_time" db:"to_time"`
}
