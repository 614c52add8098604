package service

import (
	"context"
	"time"

	"github.com/SnowyCoder/queuify/internal/entity"
	"github.com/SnowyCoder/queuify/internal/pkg/schedule"

	"github.com/google/uuid"
)

type QueueService interface {
	// Основные операции
	CreateQueue(ctx context.Context, req *CreateQueueRequest) (*entity.Queue, error)
	GetQueue(ctx context.Context, id uuid.UUID) (*entity.Queue, error)
	GetAllQueues(ctx context.Context) ([]*entity.Queue, error)
	SearchQueues(ctx context.Context, name string) ([]*entity.Queue, error)
	UpdateQueue(ctx context.Context, id uuid.UUID, req *UpdateQueueRequest) (*entity.Queue, error)
	DeleteQueue(ctx context.Context, id uuid.UUID) error

	// Расписание
	GetSchedule(ctx context.Context, queueID uuid.UUID) ([]entity.WeeklyOpenRange, error)
	SetSchedule(ctx context.Context, queueID uuid.UUID, req *SetScheduleRequest) error
	SetException(ctx context.Context, queueID uuid.UUID, req *SetExceptionRequest) error

	// Доступность
	BookableTimes(ctx context.Context, queueID uuid.UUID, day time.Time, displayTZ string, now time.Time) (*schedule.Availability, error)
	GetDayOverview(ctx context.Context, queueID uuid.UUID, now time.Time) (*DayOverview, error)

	// Участники
	JoinQueue(ctx context.Context, queueID uuid.UUID, userID int64) error
	GetMemberRole(ctx context.Context, queueID uuid.UUID, userID int64) (entity.QueueRole, error)
	SetMemberRole(ctx context.Context, queueID uuid.UUID, userID int64, role entity.QueueRole) error
	RemoveMember(ctx context.Context, queueID uuid.UUID, userID int64) error
	GetMembers(ctx context.Context, queueID uuid.UUID) ([]*entity.QueueMember, error)
}

// TicketService определяет интерфейс жизненного цикла талонов
type TicketService interface {
	// Основные операции
	BookTicket(ctx context.Context, req *BookTicketRequest) (*entity.Ticket, error)
	GetTicket(ctx context.Context, id int64) (*entity.Ticket, error)
	GetUserTickets(ctx context.Context, userID int64) ([]*entity.Ticket, error)
	GetQueueTickets(ctx context.Context, queueID uuid.UUID, day time.Time) ([]*entity.Ticket, error)

	// Закрытие талона
	ServeTicket(ctx context.Context, ticketID int64, actorID int64, now time.Time) (*entity.Ticket, error)
	CancelTicket(ctx context.Context, ticketID int64, actor entity.CancelActor, actorID int64, message *string, now time.Time) error

	// Для фонового воркера
	CancelStaleTickets(ctx context.Context, now time.Time) error
}

// UserService defines the interface for user operations
type UserService interface {
	RegisterUser(ctx context.Context, req *RegisterUserRequest) (*entity.User, error)
	GetUserByID(ctx context.Context, id int64) (*entity.User, error)
	GetUserByEmail(ctx context.Context, email string) (*entity.User, error)
	LinkTelegram(ctx context.Context, userID int64, telegramID string) error
	GetAllUsers(ctx context.Context) ([]*entity.User, error)
}

// DayOverview показывает состояние очереди на сегодня для панели оператора
type DayOverview struct {
	State        schedule.DayState   `json:"state"`
	OpenRange    *schedule.OpenRange `json:"open_range,omitempty"`
	ExpectedTime string              `json:"expected_time"`
	OpenTickets  int                 `json:"open_tickets"`
}

// TaskPublisher интерфейс для публикации задач в очередь
type TaskPublisher interface {
	Publish(ctx context.Context, task *Task) error
}

// Task представляет задачу для очереди
type Task struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	ExecuteAt  time.Time              `json:"execute_at"`
	MaxRetries int                    `json:"max_retries"`
	Attempts   int                    `json:"attempts"`
}

// Константы типов задач
const (
	TaskTypeSendNotification = "send_notification"
	TaskTypeNotifyNextTicket = "notify_next_ticket"
	TaskTypeCancelStale      = "cancel_stale_tickets"
)
