package schedule

import (
	"time"

	"github.com/SnowyCoder/queuify/internal/entity"
)

type State string

const (
	// В этот день записаться нельзя вовсе
	StateClosed State = "closed"
	// День рабочий, но все слоты заняты
	StateFull State = "full"
	// Фиксированные слоты, клиент выбирает из списка
	StateChoose State = "choose"
	// Непрерывная запись, подходит любой момент диапазона
	StateRange State = "range"
)

// Window описывает один предлагаемый интервал записи.
type Window struct {
	From entity.TimeOfDay `json:"from"`
	To   entity.TimeOfDay `json:"to"`
}

// Availability содержит результат вычисления окон записи на день.
type Availability struct {
	State   State    `json:"state"`
	Range   *Window  `json:"range,omitempty"`
	Choices []Window `json:"choices,omitempty"`
}

// BookableTimes вычисляет доступные окна записи очереди на дату.
// openTickets должны быть открытыми талонами этой даты, отсортированными
// по requested_time. Сравнения идут в зоне очереди, готовые окна
// переводятся в зону отображения.
func BookableTimes(
	q *entity.Queue,
	open *OpenRange,
	openTickets []*entity.Ticket,
	day time.Time,
	now time.Time,
	queueLoc *time.Location,
	display *time.Location,
) Availability {
	// Сравниваем с КОНЦОМ дня: записаться на сегодня можно до полуночи.
	endOfDay := time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, int(time.Second-1), queueLoc)
	if endOfDay.Before(now) {
		return Availability{State: StateClosed}
	}

	if open == nil {
		return Availability{State: StateClosed}
	}

	localNow := now.In(queueLoc)
	sameDay := day.Year() == localNow.Year() && day.Month() == localNow.Month() && day.Day() == localNow.Day()

	if q.FixedTicketTimeMinutes == nil {
		// Нет фиксированного слота: любой момент между from и to.
		// Сегодня начало поджимается текущим временем, будущие дни
		// предлагаются целиком.
		fromSecs := open.From.Secs()
		if nowSecs := entity.ClockOf(localNow).Secs(); sameDay && nowSecs > fromSecs {
			fromSecs = nowSecs
		}
		return Availability{
			State: StateRange,
			Range: &Window{From: entity.SecsToTime(fromSecs), To: open.To},
		}
	}

	slotSecs := *q.FixedTicketTimeMinutes * 60
	if slotSecs <= 0 {
		return Availability{State: StateClosed}
	}

	startSecs := open.From.Secs()
	endSecs := open.To.Secs()

	ticketSecs := func(t *entity.Ticket) int {
		return entity.ClockOf(t.RequestedTime.In(queueLoc)).Secs()
	}
	toDisplay := func(t entity.TimeOfDay) entity.TimeOfDay {
		return entity.ClockOf(t.At(day, queueLoc).In(display))
	}

	choices := make([]Window, 0)
	iticket := 0
	for itime := startSecs; itime < endSecs; itime += slotSecs {
		current := entity.SecsToTime(itime)

		// Частично прошедшие окна сегодняшнего дня не предлагаются и не
		// укорачиваются, они пропадают целиком.
		if sameDay && current.At(day, queueLoc).Before(now) {
			continue
		}

		for iticket < len(openTickets) && ticketSecs(openTickets[iticket]) <= itime-slotSecs {
			iticket++
		}

		used := iticket < len(openTickets) &&
			itime <= ticketSecs(openTickets[iticket]) &&
			ticketSecs(openTickets[iticket]) < itime+slotSecs
		if used {
			iticket++
			continue
		}

		to := itime + slotSecs
		if to > endSecs {
			// Последнее окно обрезается границей рабочего дня
			to = endSecs
		}
		choices = append(choices, Window{
			From: toDisplay(current),
			To:   toDisplay(entity.SecsToTime(to)),
		})
	}

	if len(choices) == 0 {
		// Рабочий день, но мест нет: это "full", не "closed"
		return Availability{State: StateFull, Choices: choices}
	}
	return Availability{State: StateChoose, Choices: choices}
}
