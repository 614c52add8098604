package service

import (
	"context"
	"testing"
	"time"

	"github.com/SnowyCoder/queuify/internal/entity"
	"github.com/SnowyCoder/queuify/internal/pkg/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQueueFixture() (*queueService, *fakeQueueRepo, *fakeTicketRepo) {
	qr := newFakeQueueRepo()
	tr := newFakeTicketRepo()
	return &queueService{queueRepo: qr, ticketRepo: tr}, qr, tr
}

// TestCreateQueue тестирует создание очереди
func TestCreateQueue(t *testing.T) {
	ctx := context.Background()

	t.Run("owner gets the owner role", func(t *testing.T) {
		svc, qr, _ := newQueueFixture()

		queue, err := svc.CreateQueue(ctx, &CreateQueueRequest{
			Name:     "МФЦ на Ленина",
			Timezone: "Europe/Moscow",
			OwnerID:  managerID,
		})

		require.NoError(t, err)
		assert.NotEqual(t, queue.ID.String(), "00000000-0000-0000-0000-000000000000")

		require.Len(t, qr.setRoles, 1)
		assert.Equal(t, queue.ID, qr.setRoles[0].QueueID)
		assert.Equal(t, managerID, qr.setRoles[0].UserID)
		assert.Equal(t, entity.RoleOwner, qr.setRoles[0].Role)
	})

	t.Run("join mode defaults to invite", func(t *testing.T) {
		svc, _, _ := newQueueFixture()

		queue, err := svc.CreateQueue(ctx, &CreateQueueRequest{
			Name:     "Закрытая очередь",
			Timezone: "UTC",
			OwnerID:  managerID,
		})

		require.NoError(t, err)
		assert.Equal(t, entity.JoinModeInvite, queue.JoinMode)
	})

	t.Run("unknown timezone is rejected", func(t *testing.T) {
		svc, _, _ := newQueueFixture()

		_, err := svc.CreateQueue(ctx, &CreateQueueRequest{
			Name:     "Очередь",
			Timezone: "Mars/Olympus",
			OwnerID:  managerID,
		})

		assert.Error(t, err)
	})

	t.Run("unknown join mode is rejected", func(t *testing.T) {
		svc, _, _ := newQueueFixture()

		_, err := svc.CreateQueue(ctx, &CreateQueueRequest{
			Name:     "Очередь",
			Timezone: "UTC",
			JoinMode: entity.JoinMode("secret"),
			OwnerID:  managerID,
		})

		assert.ErrorIs(t, err, entity.ErrInvalidJoinMode)
	})
}

// TestSetSchedule тестирует замену недельного расписания
func TestSetSchedule(t *testing.T) {
	ctx := context.Background()

	open := func(fromH, toH int) DayScheduleInput {
		from := entity.TimeOfDay{Hour: fromH}
		to := entity.TimeOfDay{Hour: toH}
		return DayScheduleInput{From: &from, To: &to}
	}
	week := func(days ...DayScheduleInput) []DayScheduleInput {
		out := make([]DayScheduleInput, 7)
		copy(out, days)
		return out
	}

	t.Run("working days written, days off cleared", func(t *testing.T) {
		svc, qr, _ := newQueueFixture()
		queue := qr.add(&entity.Queue{Name: "q", Timezone: "UTC"})

		err := svc.SetSchedule(ctx, queue.ID, &SetScheduleRequest{
			Days: week(open(9, 18), open(9, 18), open(9, 18), open(9, 18), open(9, 16)),
		})

		require.NoError(t, err)
		assert.Len(t, qr.setDays, 5)
		assert.ElementsMatch(t, []int{5, 6}, qr.clearedDays)
		assert.Equal(t, [2]entity.TimeOfDay{{Hour: 9}, {Hour: 16}}, qr.setDays[4])
	})

	t.Run("one-sided day is rejected before any write", func(t *testing.T) {
		svc, qr, _ := newQueueFixture()
		queue := qr.add(&entity.Queue{Name: "q", Timezone: "UTC"})

		from := entity.TimeOfDay{Hour: 9}
		days := week(open(9, 18))
		days[3] = DayScheduleInput{From: &from}

		err := svc.SetSchedule(ctx, queue.ID, &SetScheduleRequest{Days: days})

		assert.ErrorIs(t, err, entity.ErrScheduleIncomplete)
		assert.Empty(t, qr.setDays)
		assert.Empty(t, qr.clearedDays)
	})

	t.Run("inverted range is rejected", func(t *testing.T) {
		svc, qr, _ := newQueueFixture()
		queue := qr.add(&entity.Queue{Name: "q", Timezone: "UTC"})

		err := svc.SetSchedule(ctx, queue.ID, &SetScheduleRequest{Days: week(open(18, 9))})

		assert.ErrorIs(t, err, entity.ErrInvalidTimeRange)
		assert.Empty(t, qr.setDays)
	})

	t.Run("wrong number of days is rejected", func(t *testing.T) {
		svc, qr, _ := newQueueFixture()
		queue := qr.add(&entity.Queue{Name: "q", Timezone: "UTC"})

		err := svc.SetSchedule(ctx, queue.ID, &SetScheduleRequest{
			Days: []DayScheduleInput{open(9, 18)},
		})

		assert.ErrorIs(t, err, entity.ErrScheduleIncomplete)
	})
}

// TestSetException тестирует исключения из расписания на дату
func TestSetException(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)

	t.Run("keep closed stores empty times", func(t *testing.T) {
		svc, qr, _ := newQueueFixture()
		queue := qr.add(&entity.Queue{Name: "q", Timezone: "UTC"})

		err := svc.SetException(ctx, queue.ID, &SetExceptionRequest{Day: day, KeepClosed: true})

		require.NoError(t, err)
		require.Len(t, qr.upserted, 1)
		assert.Nil(t, qr.upserted[0].FromTime)
		assert.Nil(t, qr.upserted[0].ToTime)
	})

	t.Run("open exception requires both times", func(t *testing.T) {
		svc, qr, _ := newQueueFixture()
		queue := qr.add(&entity.Queue{Name: "q", Timezone: "UTC"})

		from := entity.TimeOfDay{Hour: 11}
		err := svc.SetException(ctx, queue.ID, &SetExceptionRequest{Day: day, From: &from})

		assert.ErrorIs(t, err, entity.ErrScheduleIncomplete)
		assert.Empty(t, qr.upserted)
	})

	t.Run("exception changes the day's availability", func(t *testing.T) {
		svc, qr, _ := newQueueFixture()
		slot := 30
		queue := qr.add(&entity.Queue{Name: "q", Timezone: "UTC", FixedTicketTimeMinutes: &slot})
		qr.ranges = []entity.WeeklyOpenRange{
			{QueueID: queue.ID, Day: 0, FromTime: entity.TimeOfDay{Hour: 9}, ToTime: entity.TimeOfDay{Hour: 18}},
		}

		from := entity.TimeOfDay{Hour: 10}
		to := entity.TimeOfDay{Hour: 11}
		require.NoError(t, svc.SetException(ctx, queue.ID, &SetExceptionRequest{Day: day, From: &from, To: &to}))

		now := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)
		av, err := svc.BookableTimes(ctx, queue.ID, day, "", now)

		require.NoError(t, err)
		assert.Equal(t, schedule.StateChoose, av.State)
		assert.Equal(t, []schedule.Window{
			{From: entity.TimeOfDay{Hour: 10}, To: entity.TimeOfDay{Hour: 10, Minute: 30}},
			{From: entity.TimeOfDay{Hour: 10, Minute: 30}, To: entity.TimeOfDay{Hour: 11}},
		}, av.Choices)
	})
}

// TestJoinQueue тестирует самостоятельное вступление в очередь
func TestJoinQueue(t *testing.T) {
	ctx := context.Background()

	t.Run("public queue accepts anyone", func(t *testing.T) {
		svc, qr, _ := newQueueFixture()
		queue := qr.add(&entity.Queue{Name: "q", Timezone: "UTC", JoinMode: entity.JoinModePublic})

		require.NoError(t, svc.JoinQueue(ctx, queue.ID, customerID))

		role, err := qr.GetMemberRole(ctx, queue.ID, customerID)
		require.NoError(t, err)
		assert.Equal(t, entity.RoleInvited, role)
	})

	t.Run("invite queue rejects self-join", func(t *testing.T) {
		svc, qr, _ := newQueueFixture()
		queue := qr.add(&entity.Queue{Name: "q", Timezone: "UTC", JoinMode: entity.JoinModeInvite})

		err := svc.JoinQueue(ctx, queue.ID, customerID)
		assert.ErrorIs(t, err, entity.ErrBookingForbidden)
	})

	t.Run("joining twice fails", func(t *testing.T) {
		svc, qr, _ := newQueueFixture()
		queue := qr.add(&entity.Queue{Name: "q", Timezone: "UTC", JoinMode: entity.JoinModePublic})
		qr.roles[customerID] = entity.RoleInvited

		err := svc.JoinQueue(ctx, queue.ID, customerID)
		assert.ErrorIs(t, err, entity.ErrAlreadyMember)
	})
}

// TestSetMemberRole тестирует назначение ролей
func TestSetMemberRole(t *testing.T) {
	ctx := context.Background()
	svc, qr, _ := newQueueFixture()
	queue := qr.add(&entity.Queue{Name: "q", Timezone: "UTC"})

	require.NoError(t, svc.SetMemberRole(ctx, queue.ID, customerID, entity.RoleEmployee))

	role, err := qr.GetMemberRole(ctx, queue.ID, customerID)
	require.NoError(t, err)
	assert.Equal(t, entity.RoleEmployee, role)

	// Роль none назначать нельзя, для этого есть удаление участника
	assert.Error(t, svc.SetMemberRole(ctx, queue.ID, customerID, entity.RoleNone))
}

// TestGetDayOverview тестирует сводку дня для панели оператора
func TestGetDayOverview(t *testing.T) {
	ctx := context.Background()
	svc, qr, tr := newQueueFixture()

	queue := qr.add(&entity.Queue{
		Name:                  "q",
		Timezone:              "UTC",
		ExpectedTimePerTicket: 90,
		TicketStatsCount:      20,
	})
	// Понедельник 09-18
	qr.ranges = []entity.WeeklyOpenRange{
		{QueueID: queue.ID, Day: 0, FromTime: entity.TimeOfDay{Hour: 9}, ToTime: entity.TimeOfDay{Hour: 18}},
	}

	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	tr.add(&entity.Ticket{QueueID: queue.ID, UserID: customerID, State: entity.TicketStateOpen, RequestedTime: now.Add(time.Hour)})
	tr.add(&entity.Ticket{QueueID: queue.ID, UserID: customerID, State: entity.TicketStateServed, RequestedTime: now.Add(2 * time.Hour)})

	overview, err := svc.GetDayOverview(ctx, queue.ID, now)

	require.NoError(t, err)
	assert.Equal(t, schedule.DayStateOpen, overview.State)
	assert.Equal(t, 1, overview.OpenTickets)
	assert.Equal(t, "1m30s", overview.ExpectedTime)
	require.NotNil(t, overview.OpenRange)
	assert.Equal(t, entity.TimeOfDay{Hour: 9}, overview.OpenRange.From)
}
