package entity

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID         int64     `json:"id" db:"id"`
	Email      string    `json:"email" db:"email"`
	Name       string    `json:"name" db:"name"`
	Timezone   string    `json:"timezone" db:"timezone"`
	TelegramID string    `json:"telegram_id" db:"telegram_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// QueueRole задает закрытый набор ролей участника очереди.
type QueueRole string

const (
	// Владелец, может все
	RoleOwner QueueRole = "owner"
	// Управляет только талонами
	RoleEmployee QueueRole = "employee"
	// Может только записываться
	RoleInvited QueueRole = "invited"
	// Не состоит в очереди
	RoleNone QueueRole = "none"
)

func (r QueueRole) CanManageTickets() bool {
	return r == RoleOwner || r == RoleEmployee
}

type QueueMember struct {
	QueueID uuid.UUID `json:"queue_id" db:"queue_id"`
	UserID  int64     `json:"user_id" db:"user_id"`
	Role    QueueRole `json:"role" db:"role"`
}
