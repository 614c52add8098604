package queue

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/SnowyCoder/queuify/internal/entity"

	"github.com/google/uuid"
)

// Узкие интерфейсы сервисов, чтобы пакет очереди не зависел от слоя сервисов.
// Им удовлетворяют сервисы талонов, очередей и пользователей.

type TicketService interface {
	GetTicket(ctx context.Context, id int64) (*entity.Ticket, error)
	CancelStaleTickets(ctx context.Context, now time.Time) error
}

type QueueService interface {
	GetQueue(ctx context.Context, id uuid.UUID) (*entity.Queue, error)
}

type UserService interface {
	GetUserByID(ctx context.Context, id int64) (*entity.User, error)
}

// TaskHandler обрабатывает задачи из очереди
type TaskHandler struct {
	ticketService TicketService
	queueService  QueueService
	userService   UserService
	telegramBot   TelegramBot
}

// TelegramBot интерфейс для Telegram бота
type TelegramBot interface {
	SendMessage(chatID, text string) error
}

// NewTaskHandler создает новый обработчик задач
func NewTaskHandler(
	ticketService TicketService,
	queueService QueueService,
	userService UserService,
	telegramBot TelegramBot,
) *TaskHandler {
	return &TaskHandler{
		ticketService: ticketService,
		queueService:  queueService,
		userService:   userService,
		telegramBot:   telegramBot,
	}
}

// HandleTask обрабатывает задачу
func (h *TaskHandler) HandleTask(task *Task) error {
	log.Printf("Обработка задачи %s типа %s (попытка %d/%d)",
		task.ID, task.Type, task.Attempts, task.MaxRetries)

	switch task.Type {
	case TaskTypeSendNotification:
		return h.handleSendNotification(task)
	case TaskTypeNotifyNextTicket:
		return h.handleNotifyNextTicket(task)
	case TaskTypeCancelStale:
		return h.handleCancelStale(task)
	default:
		return fmt.Errorf("неизвестный тип задачи: %s", task.Type)
	}
}

// handleSendNotification обрабатывает отправку уведомлений
func (h *TaskHandler) handleSendNotification(task *Task) error {
	notificationType := task.GetString("notification_type")
	if notificationType == "" {
		return fmt.Errorf("неверный notification_type в данных задачи")
	}

	switch notificationType {
	case "ticket_created":
		return h.handleTicketCreatedNotification(task)
	default:
		return fmt.Errorf("неизвестный тип уведомления: %s", notificationType)
	}
}

// handleTicketCreatedNotification отправляет уведомление о созданном талоне
func (h *TaskHandler) handleTicketCreatedNotification(task *Task) error {
	ctx := context.Background()

	ticketID := task.GetInt64("ticket_id")
	if ticketID == 0 {
		return fmt.Errorf("неверный ticket_id в данных задачи")
	}

	ticket, err := h.ticketService.GetTicket(ctx, ticketID)
	if err != nil {
		return fmt.Errorf("не удалось получить талон %d: %v", ticketID, err)
	}

	queue, err := h.queueService.GetQueue(ctx, ticket.QueueID)
	if err != nil {
		return fmt.Errorf("не удалось получить очередь %s: %v", ticket.QueueID, err)
	}

	user, err := h.userService.GetUserByID(ctx, ticket.UserID)
	if err != nil {
		return fmt.Errorf("не удалось получить пользователя %d: %v", ticket.UserID, err)
	}

	if user.TelegramID != "" && h.telegramBot != nil {
		userLoc, locErr := time.LoadLocation(user.Timezone)
		if locErr != nil {
			userLoc = time.UTC
		}

		message := fmt.Sprintf(
			"🎫 Вы записаны!\n\n"+
				"Очередь: %s\n"+
				"Время: %s\n"+
				"Номер талона: #%d\n\n"+
				"Мы напомним, когда подойдет ваша очередь.",
			queue.Name,
			ticket.RequestedTime.In(userLoc).Format("02.01.2006 в 15:04"),
			ticket.ID,
		)

		if err := h.telegramBot.SendMessage(user.TelegramID, message); err != nil {
			return fmt.Errorf("не удалось отправить Telegram сообщение: %v", err)
		}
	}

	log.Printf("Отправлено уведомление о создании талона %d пользователю %d", ticket.ID, user.ID)
	return nil
}

// handleNotifyNextTicket зовет следующего в очереди после освобождения слота
func (h *TaskHandler) handleNotifyNextTicket(task *Task) error {
	ctx := context.Background()

	ticketID := task.GetInt64("ticket_id")
	if ticketID == 0 {
		return fmt.Errorf("неверный ticket_id в данных задачи")
	}

	ticket, err := h.ticketService.GetTicket(ctx, ticketID)
	if err != nil {
		return fmt.Errorf("не удалось получить талон %d: %v", ticketID, err)
	}

	// Пока задача ждала своей очереди, талон могли закрыть
	if ticket.State != entity.TicketStateOpen {
		log.Printf("Талон %d уже закрыт (%s), уведомление не требуется", ticket.ID, ticket.State)
		return nil
	}

	user, err := h.userService.GetUserByID(ctx, ticket.UserID)
	if err != nil {
		return fmt.Errorf("не удалось получить пользователя %d: %v", ticket.UserID, err)
	}

	queueName := task.GetString("queue_name")
	if queueName == "" {
		if queueID, parseErr := uuid.Parse(task.GetString("queue_id")); parseErr == nil {
			if queue, qErr := h.queueService.GetQueue(ctx, queueID); qErr == nil {
				queueName = queue.Name
			}
		}
	}

	if user.TelegramID != "" && h.telegramBot != nil {
		message := fmt.Sprintf(
			"📣 Очередь «%s» освободилась!\n\n"+
				"Ваш талон: #%d\n"+
				"Подходите, вас готовы принять.",
			queueName,
			ticket.ID,
		)

		if err := h.telegramBot.SendMessage(user.TelegramID, message); err != nil {
			return fmt.Errorf("не удалось отправить Telegram сообщение: %v", err)
		}
	}

	log.Printf("Отправлено уведомление о свободной очереди пользователю %d", user.ID)
	return nil
}

// handleCancelStale выполняет отмену просроченных талонов по задаче
func (h *TaskHandler) handleCancelStale(task *Task) error {
	ctx := context.Background()

	if err := h.ticketService.CancelStaleTickets(ctx, time.Now()); err != nil {
		return fmt.Errorf("не удалось отменить просроченные талоны: %v", err)
	}

	return nil
}
