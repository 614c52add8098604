package entity

import (
	"time"

	"github.com/google/uuid"
)

type TicketState string

const (
	TicketStateOpen TicketState = "open"
	// Отменен самим пользователем
	TicketStateUserCancelled TicketState = "user_cancelled"
	// Отменен оператором очереди
	TicketStateQueueCancelled TicketState = "queue_cancelled"
	// Обслужен
	TicketStateServed TicketState = "served"
)

// Terminal сообщает, что талон уже закрыт и переходов из этого
// состояния больше нет.
func (s TicketState) Terminal() bool {
	return s != TicketStateOpen
}

type Ticket struct {
	ID      int64     `json:"id" db:"id"`
	QueueID uuid.UUID `json:"queue_id" db:"queue_id"`
	UserID  int64     `json:"user_id" db:"user_id"`

	CreationTime time.Time `json:"creation_time" db:"creation_time"`
	// Запрошенный слот; если клиент не указал время, берется начало
	// рабочего дня очереди.
	RequestedTime time.Time `json:"requested_time" db:"requested_time"`

	State TicketState `json:"state" db:"state"`

	ClosureTime   *time.Time `json:"closure_time" db:"closure_time"`
	WaitTimeSecs  *int64     `json:"wait_time_secs" db:"wait_time_secs"`
	CancelMessage *string    `json:"cancel_message" db:"cancel_message"`
}

// CancelActor определяет, кто закрывает талон при отмене.
type CancelActor string

const (
	CancelByUser  CancelActor = "user"
	CancelByQueue CancelActor = "queue"
)

func (a CancelActor) TerminalState() TicketState {
	if a == CancelByUser {
		return TicketStateUserCancelled
	}
	return TicketStateQueueCancelled
}
