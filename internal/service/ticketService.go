package service

import (
	"context"
	"fmt"
	"log"
	"time"

	repository "github.com/SnowyCoder/queuify/internal/database/postgres"
	redisCache "github.com/SnowyCoder/queuify/internal/database/redis"
	"github.com/SnowyCoder/queuify/internal/entity"
	"github.com/SnowyCoder/queuify/internal/pkg/schedule"
	"github.com/SnowyCoder/queuify/pkg/telegram"

	"github.com/google/uuid"
)

// BookTicketRequest представляет данные для записи в очередь.
// Без Time берется начало рабочего дня.
type BookTicketRequest struct {
	QueueID uuid.UUID         `json:"queue_id" binding:"required"`
	UserID  int64             `json:"user_id" binding:"required"`
	Day     time.Time         `json:"day" binding:"required" time_format:"2006-01-02"`
	Time    *entity.TimeOfDay `json:"time"`
}

type ticketService struct {
	ticketRepo  repository.TicketRepository
	queueRepo   repository.QueueRepository
	userRepo    repository.UserRepository
	cache       *redisCache.CacheRepository
	queue       TaskPublisher
	telegramBot *telegram.Bot
}

// NewTicketService создает новый экземпляр TicketService
func NewTicketService(
	ticketRepo repository.TicketRepository,
	queueRepo repository.QueueRepository,
	userRepo repository.UserRepository,
	cache *redisCache.CacheRepository,
	queue TaskPublisher,
	telegramBot *telegram.Bot,
) TicketService {
	return &ticketService{
		ticketRepo:  ticketRepo,
		queueRepo:   queueRepo,
		userRepo:    userRepo,
		cache:       cache,
		queue:       queue,
		telegramBot: telegramBot,
	}
}

// canUserBook проверяет режим вступления очереди. Очередь по приглашению
// требует членства; friends_only без графа друзей сводится к членству,
// владелец и сотрудники проходят всегда.
func canUserBook(joinMode entity.JoinMode, role entity.QueueRole) bool {
	switch joinMode {
	case entity.JoinModeInvite:
		return role != entity.RoleNone
	case entity.JoinModeFriendsOnly:
		if role.CanManageTickets() {
			return true
		}
		return role != entity.RoleNone
	default:
		return true
	}
}

// BookTicket создает новый талон. Запрошенное время валидируется явно до
// записи, повторная проверка занятости слота делается внутри транзакции
// вставки.
func (s *ticketService) BookTicket(ctx context.Context, req *BookTicketRequest) (*entity.Ticket, error) {
	queue, err := s.queueRepo.GetByID(ctx, req.QueueID)
	if err != nil {
		return nil, fmt.Errorf("очередь не найдена: %w", err)
	}

	queueLoc, err := queue.Location()
	if err != nil {
		return nil, err
	}

	if _, err := s.userRepo.GetByID(ctx, req.UserID); err != nil {
		return nil, fmt.Errorf("пользователь не найден: %w", err)
	}

	role, err := s.queueRepo.GetMemberRole(ctx, req.QueueID, req.UserID)
	if err != nil {
		return nil, err
	}
	if !canUserBook(queue.JoinMode, role) {
		return nil, entity.ErrBookingForbidden
	}

	exc, err := s.queueRepo.GetException(ctx, req.QueueID, req.Day)
	if err != nil {
		return nil, err
	}
	ranges, err := s.queueRepo.GetWeeklyRanges(ctx, req.QueueID)
	if err != nil {
		return nil, err
	}
	open := schedule.ResolveOpenRange(ranges, exc, req.Day)

	// Время по умолчанию: начало рабочего дня
	requestedClock := req.Time
	if requestedClock == nil {
		if open == nil {
			return nil, entity.ErrTimeNotBookable
		}
		requestedClock = &open.From
	}
	requested := requestedClock.At(req.Day, queueLoc)

	dayStart := time.Date(req.Day.Year(), req.Day.Month(), req.Day.Day(), 0, 0, 0, 0, queueLoc)
	openTickets, err := s.ticketRepo.ListOpenBetween(ctx, req.QueueID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	if err := schedule.ValidateTicketSlot(queue, open, openTickets, requested, queueLoc); err != nil {
		return nil, err
	}

	ticket := &entity.Ticket{
		QueueID:       req.QueueID,
		UserID:        req.UserID,
		CreationTime:  time.Now(),
		RequestedTime: requested,
		State:         entity.TicketStateOpen,
	}

	if err := s.ticketRepo.Create(ctx, ticket, queue.FixedTicketTimeMinutes); err != nil {
		if entity.IsValidationError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("ошибка при создании талона: %w", err)
	}

	log.Printf("Талон создан: ID=%d, Queue=%s, User=%d, Time=%s",
		ticket.ID, ticket.QueueID, ticket.UserID, ticket.RequestedTime.Format(time.RFC3339))

	s.invalidateDay(ctx, queue.ID, req.Day)

	if s.queue != nil {
		task := &Task{
			ID:   fmt.Sprintf("notification_ticket_created_%d_%d", ticket.ID, time.Now().Unix()),
			Type: TaskTypeSendNotification,
			Data: map[string]interface{}{
				"notification_type": "ticket_created",
				"ticket_id":         ticket.ID,
				"queue_id":          ticket.QueueID.String(),
				"user_id":           ticket.UserID,
			},
			ExecuteAt:  time.Now().Add(5 * time.Second),
			MaxRetries: 3,
		}
		if err := s.queue.Publish(ctx, task); err != nil {
			log.Printf("Ошибка при планировании уведомления о талоне: %v", err)
		}
	}

	return ticket, nil
}

// GetTicket возвращает талон по ID
func (s *ticketService) GetTicket(ctx context.Context, id int64) (*entity.Ticket, error) {
	return s.ticketRepo.GetByID(ctx, id)
}

// GetUserTickets возвращает все талоны пользователя
func (s *ticketService) GetUserTickets(ctx context.Context, userID int64) ([]*entity.Ticket, error) {
	return s.ticketRepo.ListByUser(ctx, userID)
}

// GetQueueTickets возвращает открытые талоны очереди на дату
func (s *ticketService) GetQueueTickets(ctx context.Context, queueID uuid.UUID, day time.Time) ([]*entity.Ticket, error) {
	queue, err := s.queueRepo.GetByID(ctx, queueID)
	if err != nil {
		return nil, err
	}
	queueLoc, err := queue.Location()
	if err != nil {
		return nil, err
	}

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, queueLoc)
	return s.ticketRepo.ListOpenBetween(ctx, queueID, dayStart, dayStart.AddDate(0, 0, 1))
}

// ServeTicket закрывает талон как обслуженный, считает время ожидания и
// одной транзакцией с талоном обновляет оценку очереди. После закрытия
// уведомляет следующего в очереди.
func (s *ticketService) ServeTicket(ctx context.Context, ticketID int64, actorID int64, now time.Time) (*entity.Ticket, error) {
	ticket, err := s.ticketRepo.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	queue, err := s.queueRepo.GetByID(ctx, ticket.QueueID)
	if err != nil {
		return nil, err
	}

	role, err := s.queueRepo.GetMemberRole(ctx, ticket.QueueID, actorID)
	if err != nil {
		return nil, err
	}
	if !role.CanManageTickets() {
		return nil, entity.ErrNotManager
	}

	if ticket.State != entity.TicketStateOpen {
		return nil, entity.ErrInvalidTicketState
	}

	queueLoc, err := queue.Location()
	if err != nil {
		return nil, err
	}

	waitSecs := s.computeWaitTime(ctx, ticket, queue, now, queueLoc)

	ticket.State = entity.TicketStateServed
	ticket.ClosureTime = &now
	ticket.WaitTimeSecs = waitSecs

	// Замер без опорного времени в статистику не попадает
	var stats *repository.QueueStatsUpdate
	if waitSecs != nil {
		queue.ApplyWaitTimeSample(float64(*waitSecs))
		stats = &repository.QueueStatsUpdate{
			QueueID:               queue.ID,
			ExpectedTimePerTicket: queue.ExpectedTimePerTicket,
			TicketStatsCount:      queue.TicketStatsCount,
		}
	}

	if err := s.ticketRepo.Close(ctx, ticket, stats); err != nil {
		return nil, fmt.Errorf("ошибка при закрытии талона: %w", err)
	}

	log.Printf("Талон обслужен: ID=%d, Queue=%s", ticket.ID, ticket.QueueID)

	s.invalidateDay(ctx, queue.ID, ticket.RequestedTime.In(queueLoc))

	// Неудача уведомления не откатывает обслуживание
	go s.notifyNextTicket(queue, now)

	return ticket, nil
}

// computeWaitTime вычисляет время ожидания от опорного времени: это
// запрошенный слот, иначе момент открытия очереди в день закрытия, но не
// раньше создания талона. Без опоры время ожидания неизвестно.
func (s *ticketService) computeWaitTime(ctx context.Context, ticket *entity.Ticket, queue *entity.Queue, now time.Time, queueLoc *time.Location) *int64 {
	reference := ticket.RequestedTime
	if reference.IsZero() {
		localNow := now.In(queueLoc)
		exc, err := s.queueRepo.GetException(ctx, queue.ID, localNow)
		if err != nil {
			log.Printf("Ошибка при чтении исключения для расчета ожидания: %v", err)
			return nil
		}
		ranges, err := s.queueRepo.GetWeeklyRanges(ctx, queue.ID)
		if err != nil {
			log.Printf("Ошибка при чтении расписания для расчета ожидания: %v", err)
			return nil
		}
		open := schedule.ResolveOpenRange(ranges, exc, localNow)
		if open == nil {
			return nil
		}
		reference = open.From.At(localNow, queueLoc)
		if ticket.CreationTime.After(reference) {
			reference = ticket.CreationTime
		}
	}

	wait := int64(0)
	if reference.Before(now) {
		wait = int64(now.Sub(reference) / time.Second)
	}
	return &wait
}

// CancelTicket отменяет талон. Пользователь отменяет только свой талон,
// оператор очереди любой.
func (s *ticketService) CancelTicket(ctx context.Context, ticketID int64, actor entity.CancelActor, actorID int64, message *string, now time.Time) error {
	ticket, err := s.ticketRepo.GetByID(ctx, ticketID)
	if err != nil {
		return err
	}

	switch actor {
	case entity.CancelByUser:
		if ticket.UserID != actorID {
			return entity.ErrTicketNotFound
		}
	case entity.CancelByQueue:
		role, err := s.queueRepo.GetMemberRole(ctx, ticket.QueueID, actorID)
		if err != nil {
			return err
		}
		if !role.CanManageTickets() {
			return entity.ErrNotManager
		}
	default:
		return fmt.Errorf("недопустимый инициатор отмены %q", actor)
	}

	if ticket.State != entity.TicketStateOpen {
		return entity.ErrInvalidTicketState
	}

	ticket.State = actor.TerminalState()
	ticket.ClosureTime = &now
	ticket.CancelMessage = message

	if err := s.ticketRepo.Close(ctx, ticket, nil); err != nil {
		return fmt.Errorf("ошибка при отмене талона: %w", err)
	}

	log.Printf("Талон отменен: ID=%d, Инициатор: %s", ticket.ID, actor)

	queue, err := s.queueRepo.GetByID(ctx, ticket.QueueID)
	if err == nil {
		if queueLoc, err := queue.Location(); err == nil {
			s.invalidateDay(ctx, queue.ID, ticket.RequestedTime.In(queueLoc))
		}
		// Отмена тоже освобождает место
		go s.notifyNextTicket(queue, now)
	}

	return nil
}

// CancelStaleTickets отменяет от имени очереди открытые талоны прошедших
// дней. Порог в сутки назад гарантирует, что дата талона прошла в любой
// временной зоне.
func (s *ticketService) CancelStaleTickets(ctx context.Context, now time.Time) error {
	stale, err := s.ticketRepo.ListOpenBefore(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return fmt.Errorf("ошибка при поиске просроченных талонов: %w", err)
	}

	cancelledCount := 0
	for _, ticket := range stale {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg := "Запись просрочена"
		ticket.State = entity.TicketStateQueueCancelled
		ticket.ClosureTime = &now
		ticket.CancelMessage = &msg

		if err := s.ticketRepo.Close(ctx, ticket, nil); err != nil {
			log.Printf("Ошибка при отмене просроченного талона %d: %v", ticket.ID, err)
			continue
		}
		cancelledCount++
	}

	if cancelledCount > 0 {
		log.Printf("Отменено %d просроченных талонов", cancelledCount)
	}
	return nil
}

// notifyNextTicket уведомляет владельца ближайшего открытого талона на
// сегодня, что очередь освободилась. Все ошибки только логируются.
func (s *ticketService) notifyNextTicket(queue *entity.Queue, now time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	queueLoc, err := queue.Location()
	if err != nil {
		log.Printf("Ошибка при уведомлении следующего в очереди: %v", err)
		return
	}

	localNow := now.In(queueLoc)
	dayStart := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), 0, 0, 0, 0, queueLoc)
	tickets, err := s.ticketRepo.ListOpenBetween(ctx, queue.ID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		log.Printf("Ошибка при поиске следующего талона: %v", err)
		return
	}
	if len(tickets) == 0 {
		return
	}
	next := tickets[0]

	// Доставку берет на себя очередь задач; прямая отправка остается
	// запасным путем, чтобы уведомление не ушло дважды.
	if s.queue != nil {
		task := &Task{
			ID:   fmt.Sprintf("notify_next_%d_%d", next.ID, time.Now().Unix()),
			Type: TaskTypeNotifyNextTicket,
			Data: map[string]interface{}{
				"ticket_id":  next.ID,
				"queue_id":   next.QueueID.String(),
				"user_id":    next.UserID,
				"queue_name": queue.Name,
			},
			MaxRetries: 3,
		}
		if err = s.queue.Publish(ctx, task); err == nil {
			return
		}
		log.Printf("Ошибка при планировании уведомления следующего: %v", err)
	}

	if s.telegramBot != nil {
		user, err := s.userRepo.GetByID(ctx, next.UserID)
		if err != nil || user.TelegramID == "" {
			return
		}

		message := fmt.Sprintf(
			"📣 Очередь «%s» освободилась!\n\n"+
				"Ваш талон: #%d\n"+
				"Подходите, вас готовы принять.",
			queue.Name,
			next.ID,
		)
		if err := s.telegramBot.SendMessage(user.TelegramID, message); err != nil {
			log.Printf("Ошибка при отправке Telegram уведомления пользователю %d: %v", next.UserID, err)
		}
	}
}

func (s *ticketService) invalidateDay(ctx context.Context, queueID uuid.UUID, day time.Time) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateDay(ctx, queueID, day); err != nil {
		log.Printf("Ошибка при инвалидации кэша дня %s: %v", day.Format("2006-01-02"), err)
	}
}
