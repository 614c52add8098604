package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SnowyCoder/queuify/internal/entity"
	"github.com/SnowyCoder/queuify/pkg/telegram"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	managerID  = int64(1)
	customerID = int64(2)
	strangerID = int64(3)
)

func newTicketFixture(t *testing.T, fixedSlot *int) (*ticketService, *fakeQueueRepo, *fakeTicketRepo, *entity.Queue, *time.Location) {
	t.Helper()

	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)

	qr := newFakeQueueRepo()
	tr := newFakeTicketRepo()
	ur := newFakeUserRepo()

	queue := qr.add(&entity.Queue{
		Name:                   "Паспортный стол",
		Timezone:               "Europe/Moscow",
		JoinMode:               entity.JoinModePublic,
		FixedTicketTimeMinutes: fixedSlot,
	})
	qr.roles[managerID] = entity.RoleOwner
	qr.roles[customerID] = entity.RoleInvited
	// Понедельник открыт
	qr.ranges = []entity.WeeklyOpenRange{
		{QueueID: queue.ID, Day: 0, FromTime: entity.TimeOfDay{Hour: 9}, ToTime: entity.TimeOfDay{Hour: 18}},
	}

	ur.add(&entity.User{ID: managerID, Email: "manager@example.com"})
	ur.add(&entity.User{ID: customerID, Email: "customer@example.com"})

	svc := &ticketService{ticketRepo: tr, queueRepo: qr, userRepo: ur}
	return svc, qr, tr, queue, loc
}

// TestBookTicket тестирует создание талона
func TestBookTicket(t *testing.T) {
	ctx := context.Background()
	slot := 15
	monday := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)

	t.Run("aligned slot is booked", func(t *testing.T) {
		svc, _, _, queue, loc := newTicketFixture(t, &slot)

		reqTime := entity.TimeOfDay{Hour: 9, Minute: 30}
		ticket, err := svc.BookTicket(ctx, &BookTicketRequest{
			QueueID: queue.ID,
			UserID:  customerID,
			Day:     monday,
			Time:    &reqTime,
		})

		require.NoError(t, err)
		assert.Equal(t, entity.TicketStateOpen, ticket.State)
		assert.True(t, ticket.RequestedTime.Equal(time.Date(2026, 6, 15, 9, 30, 0, 0, loc)))
	})

	t.Run("empty time defaults to opening hour", func(t *testing.T) {
		svc, _, _, queue, loc := newTicketFixture(t, nil)

		ticket, err := svc.BookTicket(ctx, &BookTicketRequest{
			QueueID: queue.ID,
			UserID:  customerID,
			Day:     monday,
		})

		require.NoError(t, err)
		assert.True(t, ticket.RequestedTime.Equal(time.Date(2026, 6, 15, 9, 0, 0, 0, loc)))
	})

	t.Run("misaligned time is rejected", func(t *testing.T) {
		svc, _, _, queue, _ := newTicketFixture(t, &slot)

		reqTime := entity.TimeOfDay{Hour: 9, Minute: 10}
		_, err := svc.BookTicket(ctx, &BookTicketRequest{
			QueueID: queue.ID,
			UserID:  customerID,
			Day:     monday,
			Time:    &reqTime,
		})

		assert.ErrorIs(t, err, entity.ErrTicketNotAligned)
	})

	t.Run("occupied slot is rejected", func(t *testing.T) {
		svc, _, tr, queue, loc := newTicketFixture(t, &slot)
		tr.add(&entity.Ticket{
			QueueID:       queue.ID,
			UserID:        managerID,
			State:         entity.TicketStateOpen,
			RequestedTime: time.Date(2026, 6, 15, 9, 30, 0, 0, loc),
		})

		reqTime := entity.TimeOfDay{Hour: 9, Minute: 30}
		_, err := svc.BookTicket(ctx, &BookTicketRequest{
			QueueID: queue.ID,
			UserID:  customerID,
			Day:     monday,
			Time:    &reqTime,
		})

		assert.ErrorIs(t, err, entity.ErrSlotTaken)
	})

	t.Run("closed day without requested time is rejected", func(t *testing.T) {
		svc, _, _, queue, _ := newTicketFixture(t, nil)
		tuesday := monday.AddDate(0, 0, 1)

		_, err := svc.BookTicket(ctx, &BookTicketRequest{
			QueueID: queue.ID,
			UserID:  customerID,
			Day:     tuesday,
		})

		assert.ErrorIs(t, err, entity.ErrTimeNotBookable)
	})

	t.Run("invite queue rejects non-members", func(t *testing.T) {
		svc, qr, _, queue, _ := newTicketFixture(t, nil)
		queue.JoinMode = entity.JoinModeInvite
		qr.queues[queue.ID] = queue

		svc.userRepo.(*fakeUserRepo).add(&entity.User{ID: strangerID, Email: "stranger@example.com"})

		_, err := svc.BookTicket(ctx, &BookTicketRequest{
			QueueID: queue.ID,
			UserID:  strangerID,
			Day:     monday,
		})

		assert.ErrorIs(t, err, entity.ErrBookingForbidden)
	})

	t.Run("booking schedules a notification task", func(t *testing.T) {
		svc, _, _, queue, _ := newTicketFixture(t, nil)
		pub := &fakePublisher{}
		svc.queue = pub

		_, err := svc.BookTicket(ctx, &BookTicketRequest{
			QueueID: queue.ID,
			UserID:  customerID,
			Day:     monday,
		})

		require.NoError(t, err)
		require.Len(t, pub.tasks, 1)
		assert.Equal(t, TaskTypeSendNotification, pub.tasks[0].Type)
		assert.Equal(t, "ticket_created", pub.tasks[0].Data["notification_type"])
	})
}

// TestCanUserBook тестирует режимы вступления очереди
func TestCanUserBook(t *testing.T) {
	tests := []struct {
		name string
		mode entity.JoinMode
		role entity.QueueRole
		want bool
	}{
		{name: "public lets anyone in", mode: entity.JoinModePublic, role: entity.RoleNone, want: true},
		{name: "url only lets anyone in", mode: entity.JoinModeURLOnly, role: entity.RoleNone, want: true},
		{name: "invite rejects strangers", mode: entity.JoinModeInvite, role: entity.RoleNone, want: false},
		{name: "invite accepts members", mode: entity.JoinModeInvite, role: entity.RoleInvited, want: true},
		{name: "friends only rejects strangers", mode: entity.JoinModeFriendsOnly, role: entity.RoleNone, want: false},
		{name: "friends only accepts members", mode: entity.JoinModeFriendsOnly, role: entity.RoleInvited, want: true},
		{name: "friends only accepts managers", mode: entity.JoinModeFriendsOnly, role: entity.RoleOwner, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, canUserBook(tt.mode, tt.role))
		})
	}
}

// TestServeTicket тестирует обслуживание талона
func TestServeTicket(t *testing.T) {
	ctx := context.Background()

	t.Run("serve records wait time and updates stats", func(t *testing.T) {
		svc, _, tr, queue, loc := newTicketFixture(t, nil)
		now := time.Date(2026, 6, 15, 10, 0, 0, 0, loc)
		ticket := tr.add(&entity.Ticket{
			QueueID:       queue.ID,
			UserID:        customerID,
			State:         entity.TicketStateOpen,
			RequestedTime: now.Add(-time.Hour),
		})

		served, err := svc.ServeTicket(ctx, ticket.ID, managerID, now)

		require.NoError(t, err)
		assert.Equal(t, entity.TicketStateServed, served.State)
		require.NotNil(t, served.WaitTimeSecs)
		assert.Equal(t, int64(3600), *served.WaitTimeSecs)

		require.Len(t, tr.statsUpdates, 1)
		assert.Equal(t, queue.ID, tr.statsUpdates[0].QueueID)
		assert.Equal(t, 1, tr.statsUpdates[0].TicketStatsCount)
		assert.InDelta(t, 3600, tr.statsUpdates[0].ExpectedTimePerTicket, 1e-9)
	})

	t.Run("early serve yields zero wait, still counted", func(t *testing.T) {
		svc, _, tr, queue, loc := newTicketFixture(t, nil)
		now := time.Date(2026, 6, 15, 10, 0, 0, 0, loc)
		ticket := tr.add(&entity.Ticket{
			QueueID:       queue.ID,
			UserID:        customerID,
			State:         entity.TicketStateOpen,
			RequestedTime: now.Add(time.Hour),
		})

		served, err := svc.ServeTicket(ctx, ticket.ID, managerID, now)

		require.NoError(t, err)
		require.NotNil(t, served.WaitTimeSecs)
		assert.Equal(t, int64(0), *served.WaitTimeSecs)
		assert.Len(t, tr.statsUpdates, 1)
	})

	t.Run("only managers can serve", func(t *testing.T) {
		svc, _, tr, queue, loc := newTicketFixture(t, nil)
		now := time.Date(2026, 6, 15, 10, 0, 0, 0, loc)
		ticket := tr.add(&entity.Ticket{
			QueueID:       queue.ID,
			UserID:        customerID,
			State:         entity.TicketStateOpen,
			RequestedTime: now.Add(-time.Hour),
		})

		_, err := svc.ServeTicket(ctx, ticket.ID, customerID, now)

		assert.ErrorIs(t, err, entity.ErrNotManager)

		stored, err := tr.GetByID(ctx, ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.TicketStateOpen, stored.State)
	})

	t.Run("closed ticket cannot be served again", func(t *testing.T) {
		svc, _, tr, queue, loc := newTicketFixture(t, nil)
		now := time.Date(2026, 6, 15, 10, 0, 0, 0, loc)
		ticket := tr.add(&entity.Ticket{
			QueueID:       queue.ID,
			UserID:        customerID,
			State:         entity.TicketStateServed,
			RequestedTime: now.Add(-time.Hour),
		})

		_, err := svc.ServeTicket(ctx, ticket.ID, managerID, now)

		assert.ErrorIs(t, err, entity.ErrInvalidTicketState)
		assert.Empty(t, tr.statsUpdates)
	})
}

// TestCancelTicket тестирует отмену талона пользователем и оператором
func TestCancelTicket(t *testing.T) {
	ctx := context.Background()

	t.Run("user cancels own ticket", func(t *testing.T) {
		svc, _, tr, queue, loc := newTicketFixture(t, nil)
		now := time.Date(2026, 6, 15, 10, 0, 0, 0, loc)
		ticket := tr.add(&entity.Ticket{
			QueueID:       queue.ID,
			UserID:        customerID,
			State:         entity.TicketStateOpen,
			RequestedTime: now.Add(time.Hour),
		})

		require.NoError(t, svc.CancelTicket(ctx, ticket.ID, entity.CancelByUser, customerID, nil, now))

		stored, err := tr.GetByID(ctx, ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.TicketStateUserCancelled, stored.State)
		assert.Empty(t, tr.statsUpdates)
	})

	t.Run("user cannot cancel someone else's ticket", func(t *testing.T) {
		svc, _, tr, queue, loc := newTicketFixture(t, nil)
		now := time.Date(2026, 6, 15, 10, 0, 0, 0, loc)
		ticket := tr.add(&entity.Ticket{
			QueueID:       queue.ID,
			UserID:        customerID,
			State:         entity.TicketStateOpen,
			RequestedTime: now.Add(time.Hour),
		})

		// Чужой талон неотличим от несуществующего
		err := svc.CancelTicket(ctx, ticket.ID, entity.CancelByUser, strangerID, nil, now)
		assert.ErrorIs(t, err, entity.ErrTicketNotFound)
	})

	t.Run("operator cancel stores the message", func(t *testing.T) {
		svc, _, tr, queue, loc := newTicketFixture(t, nil)
		now := time.Date(2026, 6, 15, 10, 0, 0, 0, loc)
		ticket := tr.add(&entity.Ticket{
			QueueID:       queue.ID,
			UserID:        customerID,
			State:         entity.TicketStateOpen,
			RequestedTime: now.Add(time.Hour),
		})

		msg := "Врач заболел"
		require.NoError(t, svc.CancelTicket(ctx, ticket.ID, entity.CancelByQueue, managerID, &msg, now))

		stored, err := tr.GetByID(ctx, ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.TicketStateQueueCancelled, stored.State)
		require.NotNil(t, stored.CancelMessage)
		assert.Equal(t, msg, *stored.CancelMessage)
	})

	t.Run("operator cancel requires manager role", func(t *testing.T) {
		svc, _, tr, queue, loc := newTicketFixture(t, nil)
		now := time.Date(2026, 6, 15, 10, 0, 0, 0, loc)
		ticket := tr.add(&entity.Ticket{
			QueueID:       queue.ID,
			UserID:        customerID,
			State:         entity.TicketStateOpen,
			RequestedTime: now.Add(time.Hour),
		})

		err := svc.CancelTicket(ctx, ticket.ID, entity.CancelByQueue, customerID, nil, now)
		assert.ErrorIs(t, err, entity.ErrNotManager)
	})

	t.Run("cancelled ticket cannot be cancelled twice", func(t *testing.T) {
		svc, _, tr, queue, loc := newTicketFixture(t, nil)
		now := time.Date(2026, 6, 15, 10, 0, 0, 0, loc)
		ticket := tr.add(&entity.Ticket{
			QueueID:       queue.ID,
			UserID:        customerID,
			State:         entity.TicketStateUserCancelled,
			RequestedTime: now.Add(time.Hour),
		})

		err := svc.CancelTicket(ctx, ticket.ID, entity.CancelByUser, customerID, nil, now)
		assert.ErrorIs(t, err, entity.ErrInvalidTicketState)
	})
}

// TestNotifyNextTicket тестирует уведомление следующего в очереди:
// при наличии очереди задач уведомление уходит только через нее
func TestNotifyNextTicket(t *testing.T) {
	newBotCounter := func(t *testing.T) (*telegram.Bot, *int32) {
		t.Helper()
		var sent int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&sent, 1)
		}))
		t.Cleanup(srv.Close)
		return telegram.NewBotWithEndpoint(srv.URL), &sent
	}

	t.Run("publisher wins, no direct message", func(t *testing.T) {
		svc, _, tr, queue, loc := newTicketFixture(t, nil)
		now := time.Date(2026, 6, 15, 10, 0, 0, 0, loc)
		tr.add(&entity.Ticket{
			QueueID:       queue.ID,
			UserID:        customerID,
			State:         entity.TicketStateOpen,
			RequestedTime: now.Add(time.Hour),
		})
		svc.userRepo.(*fakeUserRepo).users[customerID].TelegramID = "42"

		pub := &fakePublisher{}
		svc.queue = pub
		bot, sent := newBotCounter(t)
		svc.telegramBot = bot

		svc.notifyNextTicket(queue, now)

		require.Len(t, pub.tasks, 1)
		assert.Equal(t, TaskTypeNotifyNextTicket, pub.tasks[0].Type)
		assert.EqualValues(t, 0, atomic.LoadInt32(sent))
	})

	t.Run("without publisher telegram is used directly", func(t *testing.T) {
		svc, _, tr, queue, loc := newTicketFixture(t, nil)
		now := time.Date(2026, 6, 15, 10, 0, 0, 0, loc)
		tr.add(&entity.Ticket{
			QueueID:       queue.ID,
			UserID:        customerID,
			State:         entity.TicketStateOpen,
			RequestedTime: now.Add(time.Hour),
		})
		svc.userRepo.(*fakeUserRepo).users[customerID].TelegramID = "42"

		bot, sent := newBotCounter(t)
		svc.telegramBot = bot

		svc.notifyNextTicket(queue, now)

		assert.EqualValues(t, 1, atomic.LoadInt32(sent))
	})

	t.Run("no open tickets today does nothing", func(t *testing.T) {
		svc, _, _, queue, loc := newTicketFixture(t, nil)
		now := time.Date(2026, 6, 15, 10, 0, 0, 0, loc)

		pub := &fakePublisher{}
		svc.queue = pub

		svc.notifyNextTicket(queue, now)

		assert.Empty(t, pub.tasks)
	})
}

// TestCancelStaleTickets тестирует отмену открытых талонов прошедших дней
func TestCancelStaleTickets(t *testing.T) {
	ctx := context.Background()
	svc, _, tr, queue, loc := newTicketFixture(t, nil)
	now := time.Date(2026, 6, 15, 10, 0, 0, 0, loc)

	stale := tr.add(&entity.Ticket{
		QueueID:       queue.ID,
		UserID:        customerID,
		State:         entity.TicketStateOpen,
		RequestedTime: now.AddDate(0, 0, -3),
	})
	fresh := tr.add(&entity.Ticket{
		QueueID:       queue.ID,
		UserID:        customerID,
		State:         entity.TicketStateOpen,
		RequestedTime: now.Add(time.Hour),
	})

	require.NoError(t, svc.CancelStaleTickets(ctx, now))

	cancelled, err := tr.GetByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.TicketStateQueueCancelled, cancelled.State)
	require.NotNil(t, cancelled.CancelMessage)
	assert.Equal(t, "Запись просрочена", *cancelled.CancelMessage)

	untouched, err := tr.GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.TicketStateOpen, untouched.State)
}
