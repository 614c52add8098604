package service

import (
	"context"
	"sort"
	"sync"
	"time"

	repository "github.com/SnowyCoder/queuify/internal/database/postgres"
	"github.com/SnowyCoder/queuify/internal/entity"

	"github.com/google/uuid"
)

// Фейковые репозитории в памяти, достаточно честные для сервисных тестов:
// создание талона перепроверяет занятость слота, закрытие требует
// открытого состояния.

type fakeQueueRepo struct {
	mu         sync.Mutex
	queues     map[uuid.UUID]*entity.Queue
	roles      map[int64]entity.QueueRole
	ranges     []entity.WeeklyOpenRange
	exceptions map[string]*entity.OpenException

	setRoles    []entity.QueueMember
	clearedDays []int
	setDays     map[int][2]entity.TimeOfDay
	upserted    []*entity.OpenException
}

func newFakeQueueRepo() *fakeQueueRepo {
	return &fakeQueueRepo{
		queues:     make(map[uuid.UUID]*entity.Queue),
		roles:      make(map[int64]entity.QueueRole),
		exceptions: make(map[string]*entity.OpenException),
		setDays:    make(map[int][2]entity.TimeOfDay),
	}
}

func (r *fakeQueueRepo) add(q *entity.Queue) *entity.Queue {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	r.queues[q.ID] = q
	return q
}

func (r *fakeQueueRepo) Create(ctx context.Context, queue *entity.Queue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.add(queue)
	return nil
}

func (r *fakeQueueRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Queue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queues[id]
	if !ok {
		return nil, entity.ErrQueueNotFound
	}
	copied := *q
	return &copied, nil
}

func (r *fakeQueueRepo) GetAll(ctx context.Context) ([]*entity.Queue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.Queue, 0, len(r.queues))
	for _, q := range r.queues {
		out = append(out, q)
	}
	return out, nil
}

func (r *fakeQueueRepo) SearchByName(ctx context.Context, name string) ([]*entity.Queue, error) {
	return nil, nil
}

func (r *fakeQueueRepo) Update(ctx context.Context, queue *entity.Queue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.queues[queue.ID]; !ok {
		return entity.ErrQueueNotFound
	}
	r.queues[queue.ID] = queue
	return nil
}

func (r *fakeQueueRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.queues[id]; !ok {
		return entity.ErrQueueNotFound
	}
	delete(r.queues, id)
	return nil
}

func (r *fakeQueueRepo) GetWeeklyRanges(ctx context.Context, queueID uuid.UUID) ([]entity.WeeklyOpenRange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ranges, nil
}

func (r *fakeQueueRepo) SetWeeklyRange(ctx context.Context, queueID uuid.UUID, day int, from, to entity.TimeOfDay) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setDays[day] = [2]entity.TimeOfDay{from, to}
	return nil
}

func (r *fakeQueueRepo) ClearWeeklyDay(ctx context.Context, queueID uuid.UUID, day int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearedDays = append(r.clearedDays, day)
	return nil
}

func (r *fakeQueueRepo) GetException(ctx context.Context, queueID uuid.UUID, day time.Time) (*entity.OpenException, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exceptions[day.Format("2006-01-02")], nil
}

func (r *fakeQueueRepo) UpsertException(ctx context.Context, exc *entity.OpenException) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exceptions[exc.Day.Format("2006-01-02")] = exc
	r.upserted = append(r.upserted, exc)
	return nil
}

func (r *fakeQueueRepo) GetMemberRole(ctx context.Context, queueID uuid.UUID, userID int64) (entity.QueueRole, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	role, ok := r.roles[userID]
	if !ok {
		return entity.RoleNone, nil
	}
	return role, nil
}

func (r *fakeQueueRepo) SetMemberRole(ctx context.Context, member *entity.QueueMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles[member.UserID] = member.Role
	r.setRoles = append(r.setRoles, *member)
	return nil
}

func (r *fakeQueueRepo) RemoveMember(ctx context.Context, queueID uuid.UUID, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.roles, userID)
	return nil
}

func (r *fakeQueueRepo) GetMembers(ctx context.Context, queueID uuid.UUID) ([]*entity.QueueMember, error) {
	return nil, nil
}

type fakeTicketRepo struct {
	mu      sync.Mutex
	tickets map[int64]*entity.Ticket
	nextID  int64

	statsUpdates []repository.QueueStatsUpdate
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: make(map[int64]*entity.Ticket)}
}

func (r *fakeTicketRepo) add(t *entity.Ticket) *entity.Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	t.ID = r.nextID
	copied := *t
	r.tickets[t.ID] = &copied
	return t
}

func (r *fakeTicketRepo) Create(ctx context.Context, ticket *entity.Ticket, slotMinutes *int) error {
	if slotMinutes != nil {
		r.mu.Lock()
		slotEnd := ticket.RequestedTime.Add(time.Duration(*slotMinutes) * time.Minute)
		for _, t := range r.tickets {
			if t.QueueID == ticket.QueueID && t.State == entity.TicketStateOpen &&
				!t.RequestedTime.Before(ticket.RequestedTime) && t.RequestedTime.Before(slotEnd) {
				r.mu.Unlock()
				return entity.ErrSlotTaken
			}
		}
		r.mu.Unlock()
	}
	r.add(ticket)
	return nil
}

func (r *fakeTicketRepo) GetByID(ctx context.Context, id int64) (*entity.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return nil, entity.ErrTicketNotFound
	}
	copied := *t
	return &copied, nil
}

func (r *fakeTicketRepo) ListOpenBetween(ctx context.Context, queueID uuid.UUID, from, to time.Time) ([]*entity.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Ticket
	for _, t := range r.tickets {
		if t.QueueID == queueID && t.State == entity.TicketStateOpen &&
			!t.RequestedTime.Before(from) && t.RequestedTime.Before(to) {
			copied := *t
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedTime.Before(out[j].RequestedTime) })
	return out, nil
}

func (r *fakeTicketRepo) ListByUser(ctx context.Context, userID int64) ([]*entity.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Ticket
	for _, t := range r.tickets {
		if t.UserID == userID {
			copied := *t
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeTicketRepo) ListOpenBefore(ctx context.Context, before time.Time) ([]*entity.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Ticket
	for _, t := range r.tickets {
		if t.State == entity.TicketStateOpen && t.RequestedTime.Before(before) {
			copied := *t
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeTicketRepo) Close(ctx context.Context, ticket *entity.Ticket, stats *repository.QueueStatsUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[ticket.ID]
	if !ok || stored.State != entity.TicketStateOpen {
		return entity.ErrInvalidTicketState
	}
	copied := *ticket
	r.tickets[ticket.ID] = &copied
	if stats != nil {
		r.statsUpdates = append(r.statsUpdates, *stats)
	}
	return nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[int64]*entity.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int64]*entity.User)}
}

func (r *fakeUserRepo) add(u *entity.User) *entity.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = u
	return u
}

func (r *fakeUserRepo) Create(ctx context.Context, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return entity.ErrUserAlreadyExists
		}
	}
	user.ID = int64(len(r.users) + 1)
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, entity.ErrUserNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, entity.ErrUserNotFound
}

func (r *fakeUserRepo) UpdateTelegramID(ctx context.Context, userID int64, telegramID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return entity.ErrUserNotFound
	}
	u.TelegramID = telegramID
	return nil
}

func (r *fakeUserRepo) GetAll(ctx context.Context) ([]*entity.User, error) {
	return nil, nil
}

type fakePublisher struct {
	mu    sync.Mutex
	tasks []*Task
}

func (p *fakePublisher) Publish(ctx context.Context, task *Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks = append(p.tasks, task)
	return nil
}
