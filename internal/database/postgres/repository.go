package repository

import (
	"context"
	"time"

	"github.com/SnowyCoder/queuify/internal/entity"
	"github.com/google/uuid"
)

type QueueRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, queue *entity.Queue) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Queue, error)
	GetAll(ctx context.Context) ([]*entity.Queue, error)
	SearchByName(ctx context.Context, name string) ([]*entity.Queue, error)
	Update(ctx context.Context, queue *entity.Queue) error
	Delete(ctx context.Context, id uuid.UUID) error

	// Schedule operations
	GetWeeklyRanges(ctx context.Context, queueID uuid.UUID) ([]entity.WeeklyOpenRange, error)
	SetWeeklyRange(ctx context.Context, queueID uuid.UUID, day int, from, to entity.TimeOfDay) error
	ClearWeeklyDay(ctx context.Context, queueID uuid.UUID, day int) error
	GetException(ctx context.Context, queueID uuid.UUID, day time.Time) (*entity.OpenException, error)
	UpsertException(ctx context.Context, exc *entity.OpenException) error

	// Membership operations
	GetMemberRole(ctx context.Context, queueID uuid.UUID, userID int64) (entity.QueueRole, error)
	SetMemberRole(ctx context.Context, member *entity.QueueMember) error
	RemoveMember(ctx context.Context, queueID uuid.UUID, userID int64) error
	GetMembers(ctx context.Context, queueID uuid.UUID) ([]*entity.QueueMember, error)
}

// QueueStatsUpdate несет новую статистику очереди, записываемую в одной
// транзакции с закрытием талона.
type QueueStatsUpdate struct {
	QueueID               uuid.UUID
	ExpectedTimePerTicket float64
	TicketStatsCount      int
}

type TicketRepository interface {
	// Create вставляет талон. Конкурентные запросы на один слот
	// разрешает уникальный индекс по открытым талонам: проигравший
	// получает ErrSlotTaken.
	Create(ctx context.Context, ticket *entity.Ticket, slotMinutes *int) error
	GetByID(ctx context.Context, id int64) (*entity.Ticket, error)

	// Query operations
	ListOpenBetween(ctx context.Context, queueID uuid.UUID, from, to time.Time) ([]*entity.Ticket, error)
	ListByUser(ctx context.Context, userID int64) ([]*entity.Ticket, error)
	ListOpenBefore(ctx context.Context, before time.Time) ([]*entity.Ticket, error)

	// Close записывает терминальное состояние талона и, если stats != nil,
	// обновленную оценку очереди в одной транзакции.
	Close(ctx context.Context, ticket *entity.Ticket, stats *QueueStatsUpdate) error
}

type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	UpdateTelegramID(ctx context.Context, userID int64, telegramID string) error
	GetAll(ctx context.Context) ([]*entity.User, error)
}
