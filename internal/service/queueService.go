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

	"github.com/google/uuid"
)

// CreateQueueRequest представляет данные для создания очереди
type CreateQueueRequest struct {
	Name                   string          `json:"name" binding:"required,min=1,max=100"`
	Description            string          `json:"description" binding:"max=1000"`
	Timezone               string          `json:"timezone" binding:"required"`
	IsPrivacyHidden        bool            `json:"is_privacy_hidden"`
	JoinMode               entity.JoinMode `json:"join_mode"`
	FixedTicketTimeMinutes *int            `json:"fixed_ticket_time_minutes" binding:"omitempty,min=1,max=1440"`
	OwnerID                int64           `json:"owner_id" binding:"required"`
}

// UpdateQueueRequest представляет данные для обновления очереди
type UpdateQueueRequest struct {
	Name                   *string          `json:"name" binding:"omitempty,min=1,max=100"`
	Description            *string          `json:"description" binding:"omitempty,max=1000"`
	Timezone               *string          `json:"timezone"`
	IsPrivacyHidden        *bool            `json:"is_privacy_hidden"`
	JoinMode               *entity.JoinMode `json:"join_mode"`
	FixedTicketTimeMinutes *int             `json:"fixed_ticket_time_minutes" binding:"omitempty,min=1,max=1440"`
}

// DayScheduleInput задает часы работы одного дня недели, оба поля пустые
// означают выходной
type DayScheduleInput struct {
	From *entity.TimeOfDay `json:"from"`
	To   *entity.TimeOfDay `json:"to"`
}

// SetScheduleRequest заменяет недельное расписание целиком, все 7 дней
// начиная с понедельника
type SetScheduleRequest struct {
	Days []DayScheduleInput `json:"days" binding:"required,len=7"`
}

// SetExceptionRequest описывает исключение из расписания на дату.
// KeepClosed означает "в этот день закрыто", времена тогда игнорируются.
type SetExceptionRequest struct {
	Day        time.Time         `json:"day" binding:"required" time_format:"2006-01-02"`
	From       *entity.TimeOfDay `json:"from"`
	To         *entity.TimeOfDay `json:"to"`
	KeepClosed bool              `json:"keep_closed"`
}

type queueService struct {
	queueRepo  repository.QueueRepository
	ticketRepo repository.TicketRepository
	cache      *redisCache.CacheRepository
}

// NewQueueService создает новый экземпляр QueueService
func NewQueueService(
	queueRepo repository.QueueRepository,
	ticketRepo repository.TicketRepository,
	cache *redisCache.CacheRepository,
) QueueService {
	return &queueService{
		queueRepo:  queueRepo,
		ticketRepo: ticketRepo,
		cache:      cache,
	}
}

func validJoinMode(m entity.JoinMode) bool {
	switch m {
	case entity.JoinModePublic, entity.JoinModeURLOnly, entity.JoinModeFriendsOnly, entity.JoinModeInvite:
		return true
	}
	return false
}

// CreateQueue создает новую очередь, владельцем становится автор запроса
func (s *queueService) CreateQueue(ctx context.Context, req *CreateQueueRequest) (*entity.Queue, error) {
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		return nil, fmt.Errorf("неизвестная временная зона %q: %w", req.Timezone, err)
	}

	joinMode := req.JoinMode
	if joinMode == "" {
		joinMode = entity.JoinModeInvite
	}
	if !validJoinMode(joinMode) {
		return nil, entity.ErrInvalidJoinMode
	}

	queue := &entity.Queue{
		Name:                   req.Name,
		Description:            req.Description,
		Timezone:               req.Timezone,
		IsPrivacyHidden:        req.IsPrivacyHidden,
		JoinMode:               joinMode,
		FixedTicketTimeMinutes: req.FixedTicketTimeMinutes,
	}

	if err := s.queueRepo.Create(ctx, queue); err != nil {
		return nil, fmt.Errorf("ошибка при создании очереди: %w", err)
	}

	member := &entity.QueueMember{
		QueueID: queue.ID,
		UserID:  req.OwnerID,
		Role:    entity.RoleOwner,
	}
	if err := s.queueRepo.SetMemberRole(ctx, member); err != nil {
		return nil, fmt.Errorf("ошибка при назначении владельца очереди: %w", err)
	}

	log.Printf("Очередь создана: ID=%s, Name=%s, Owner=%d", queue.ID, queue.Name, req.OwnerID)
	return queue, nil
}

// GetQueue возвращает очередь по ID
func (s *queueService) GetQueue(ctx context.Context, id uuid.UUID) (*entity.Queue, error) {
	return s.queueRepo.GetByID(ctx, id)
}

// GetAllQueues возвращает все очереди
func (s *queueService) GetAllQueues(ctx context.Context) ([]*entity.Queue, error) {
	return s.queueRepo.GetAll(ctx)
}

// SearchQueues ищет очереди по имени, url-only очереди не находятся
func (s *queueService) SearchQueues(ctx context.Context, name string) ([]*entity.Queue, error) {
	return s.queueRepo.SearchByName(ctx, name)
}

// UpdateQueue обновляет параметры очереди
func (s *queueService) UpdateQueue(ctx context.Context, id uuid.UUID, req *UpdateQueueRequest) (*entity.Queue, error) {
	queue, err := s.queueRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		queue.Name = *req.Name
	}
	if req.Description != nil {
		queue.Description = *req.Description
	}
	if req.Timezone != nil {
		if _, err := time.LoadLocation(*req.Timezone); err != nil {
			return nil, fmt.Errorf("неизвестная временная зона %q: %w", *req.Timezone, err)
		}
		queue.Timezone = *req.Timezone
	}
	if req.IsPrivacyHidden != nil {
		queue.IsPrivacyHidden = *req.IsPrivacyHidden
	}
	if req.JoinMode != nil {
		if !validJoinMode(*req.JoinMode) {
			return nil, entity.ErrInvalidJoinMode
		}
		queue.JoinMode = *req.JoinMode
	}
	if req.FixedTicketTimeMinutes != nil {
		queue.FixedTicketTimeMinutes = req.FixedTicketTimeMinutes
	}

	if err := s.queueRepo.Update(ctx, queue); err != nil {
		return nil, fmt.Errorf("ошибка при обновлении очереди: %w", err)
	}

	// Смена зоны или длины слота меняет все окна записи
	s.invalidateQueueCache(ctx, queue.ID)

	return queue, nil
}

// DeleteQueue удаляет очередь вместе с расписанием и талонами
func (s *queueService) DeleteQueue(ctx context.Context, id uuid.UUID) error {
	if err := s.queueRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidateQueueCache(ctx, id)
	return nil
}

// GetSchedule возвращает недельное расписание очереди
func (s *queueService) GetSchedule(ctx context.Context, queueID uuid.UUID) ([]entity.WeeklyOpenRange, error) {
	if _, err := s.queueRepo.GetByID(ctx, queueID); err != nil {
		return nil, err
	}
	return s.queueRepo.GetWeeklyRanges(ctx, queueID)
}

// SetSchedule заменяет недельное расписание целиком. День с одним
// заполненным временем отвергается, день без времен становится выходным.
func (s *queueService) SetSchedule(ctx context.Context, queueID uuid.UUID, req *SetScheduleRequest) error {
	if _, err := s.queueRepo.GetByID(ctx, queueID); err != nil {
		return err
	}
	if len(req.Days) != len(entity.WeekdayNames) {
		return entity.ErrScheduleIncomplete
	}

	// Сначала валидация всех дней, потом запись: частично примененное
	// расписание хуже, чем старое
	for _, d := range req.Days {
		if (d.From == nil) != (d.To == nil) {
			return entity.ErrScheduleIncomplete
		}
		if d.From != nil && !d.From.Before(*d.To) {
			return entity.ErrInvalidTimeRange
		}
	}

	for day, d := range req.Days {
		var err error
		if d.From == nil {
			err = s.queueRepo.ClearWeeklyDay(ctx, queueID, day)
		} else {
			err = s.queueRepo.SetWeeklyRange(ctx, queueID, day, *d.From, *d.To)
		}
		if err != nil {
			return fmt.Errorf("ошибка при записи расписания на день %s: %w", entity.WeekdayNames[day], err)
		}
	}

	s.invalidateQueueCache(ctx, queueID)
	return nil
}

// SetException записывает исключение из расписания на дату. Исключение
// полностью перекрывает недельное расписание в этот день.
func (s *queueService) SetException(ctx context.Context, queueID uuid.UUID, req *SetExceptionRequest) error {
	if _, err := s.queueRepo.GetByID(ctx, queueID); err != nil {
		return err
	}

	exc := &entity.OpenException{
		QueueID: queueID,
		Day:     req.Day,
	}

	if !req.KeepClosed {
		if req.From == nil || req.To == nil {
			return entity.ErrScheduleIncomplete
		}
		if !req.From.Before(*req.To) {
			return entity.ErrInvalidTimeRange
		}
		exc.FromTime = req.From
		exc.ToTime = req.To
	}

	if err := s.queueRepo.UpsertException(ctx, exc); err != nil {
		return fmt.Errorf("ошибка при записи исключения: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.InvalidateDay(ctx, queueID, req.Day); err != nil {
			log.Printf("Ошибка при инвалидации кэша дня %s: %v", req.Day.Format("2006-01-02"), err)
		}
	}
	return nil
}

// BookableTimes возвращает доступные окна записи очереди на дату,
// переведенные в зону отображения displayTZ (пустая = зона очереди).
// Результат кэшируется до первого изменения талонов дня.
func (s *queueService) BookableTimes(ctx context.Context, queueID uuid.UUID, day time.Time, displayTZ string, now time.Time) (*schedule.Availability, error) {
	queue, err := s.queueRepo.GetByID(ctx, queueID)
	if err != nil {
		return nil, err
	}

	queueLoc, err := queue.Location()
	if err != nil {
		return nil, err
	}

	if displayTZ == "" {
		displayTZ = queue.Timezone
	}
	displayLoc, err := time.LoadLocation(displayTZ)
	if err != nil {
		return nil, fmt.Errorf("неизвестная временная зона %q: %w", displayTZ, err)
	}

	// Ключ кэша не содержит now, поэтому для сегодняшнего дня отсечка
	// прошедших окон может отставать на срок жизни записи. TTL короткий,
	// изменения талонов инвалидируют день сразу.
	if s.cache != nil {
		if cached, err := s.cache.GetAvailability(ctx, queueID, day, displayTZ); err == nil {
			return cached, nil
		}
	}

	open, err := s.resolveOpenRange(ctx, queueID, day)
	if err != nil {
		return nil, err
	}

	tickets, err := s.openTicketsOfDay(ctx, queueID, day, queueLoc)
	if err != nil {
		return nil, err
	}

	av := schedule.BookableTimes(queue, open, tickets, day, now, queueLoc, displayLoc)

	if s.cache != nil {
		if err := s.cache.SetAvailability(ctx, queueID, day, displayTZ, &av); err != nil {
			log.Printf("Ошибка при записи кэша доступности: %v", err)
		}
	}
	return &av, nil
}

// GetDayOverview возвращает сводку на сегодня для панели оператора
func (s *queueService) GetDayOverview(ctx context.Context, queueID uuid.UUID, now time.Time) (*DayOverview, error) {
	queue, err := s.queueRepo.GetByID(ctx, queueID)
	if err != nil {
		return nil, err
	}

	queueLoc, err := queue.Location()
	if err != nil {
		return nil, err
	}

	today := now.In(queueLoc)
	open, err := s.resolveOpenRange(ctx, queueID, today)
	if err != nil {
		return nil, err
	}

	tickets, err := s.openTicketsOfDay(ctx, queueID, today, queueLoc)
	if err != nil {
		return nil, err
	}

	return &DayOverview{
		State:        schedule.ResolveDayState(open, now, queueLoc),
		OpenRange:    open,
		ExpectedTime: queue.FormatExpectedTime(),
		OpenTickets:  len(tickets),
	}, nil
}

// JoinQueue записывает пользователя в участники очереди
func (s *queueService) JoinQueue(ctx context.Context, queueID uuid.UUID, userID int64) error {
	queue, err := s.queueRepo.GetByID(ctx, queueID)
	if err != nil {
		return err
	}

	role, err := s.queueRepo.GetMemberRole(ctx, queueID, userID)
	if err != nil {
		return err
	}
	if role != entity.RoleNone {
		return entity.ErrAlreadyMember
	}

	// В очереди по приглашению участников добавляет только владелец
	switch queue.JoinMode {
	case entity.JoinModeInvite, entity.JoinModeFriendsOnly:
		return entity.ErrBookingForbidden
	}

	return s.queueRepo.SetMemberRole(ctx, &entity.QueueMember{
		QueueID: queueID,
		UserID:  userID,
		Role:    entity.RoleInvited,
	})
}

// GetMemberRole возвращает роль пользователя в очереди, RoleNone для
// посторонних
func (s *queueService) GetMemberRole(ctx context.Context, queueID uuid.UUID, userID int64) (entity.QueueRole, error) {
	return s.queueRepo.GetMemberRole(ctx, queueID, userID)
}

// SetMemberRole назначает роль участнику
func (s *queueService) SetMemberRole(ctx context.Context, queueID uuid.UUID, userID int64, role entity.QueueRole) error {
	switch role {
	case entity.RoleOwner, entity.RoleEmployee, entity.RoleInvited:
	default:
		return fmt.Errorf("недопустимая роль %q", role)
	}

	if _, err := s.queueRepo.GetByID(ctx, queueID); err != nil {
		return err
	}

	return s.queueRepo.SetMemberRole(ctx, &entity.QueueMember{
		QueueID: queueID,
		UserID:  userID,
		Role:    role,
	})
}

// RemoveMember исключает участника из очереди
func (s *queueService) RemoveMember(ctx context.Context, queueID uuid.UUID, userID int64) error {
	return s.queueRepo.RemoveMember(ctx, queueID, userID)
}

// GetMembers возвращает всех участников очереди
func (s *queueService) GetMembers(ctx context.Context, queueID uuid.UUID) ([]*entity.QueueMember, error) {
	return s.queueRepo.GetMembers(ctx, queueID)
}

// resolveOpenRange вычисляет действующие часы работы на дату
func (s *queueService) resolveOpenRange(ctx context.Context, queueID uuid.UUID, day time.Time) (*schedule.OpenRange, error) {
	exc, err := s.queueRepo.GetException(ctx, queueID, day)
	if err != nil {
		return nil, err
	}

	ranges, err := s.queueRepo.GetWeeklyRanges(ctx, queueID)
	if err != nil {
		return nil, err
	}

	return schedule.ResolveOpenRange(ranges, exc, day), nil
}

// openTicketsOfDay возвращает открытые талоны на дату, отсортированные по
// requested_time. day несет календарную дату, границы дня берутся в зоне
// очереди.
func (s *queueService) openTicketsOfDay(ctx context.Context, queueID uuid.UUID, day time.Time, queueLoc *time.Location) ([]*entity.Ticket, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, queueLoc)
	return s.ticketRepo.ListOpenBetween(ctx, queueID, dayStart, dayStart.AddDate(0, 0, 1))
}

func (s *queueService) invalidateQueueCache(ctx context.Context, queueID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateQueue(ctx, queueID); err != nil {
		log.Printf("Ошибка при инвалидации кэша очереди %s: %v", queueID, err)
	}
}
