package schedule

import (
	"time"

	"github.com/SnowyCoder/queuify/internal/entity"
)

// ValidateTicketSlot проверяет инварианты нового талона в режиме
// фиксированных слотов: запрошенное время выровнено по сетке слотов от
// начала рабочего дня, и окно [requested, requested+slot) не занято другим
// открытым талоном. Вызывается явно перед транзакционной записью; в
// непрерывном режиме проверять нечего.
func ValidateTicketSlot(
	q *entity.Queue,
	open *OpenRange,
	openTickets []*entity.Ticket,
	requested time.Time,
	queueLoc *time.Location,
) error {
	if q.FixedTicketTimeMinutes == nil {
		return nil
	}
	if open == nil {
		return entity.ErrTimeNotBookable
	}

	slotSecs := *q.FixedTicketTimeMinutes * 60
	if slotSecs <= 0 {
		return entity.ErrTimeNotBookable
	}

	reqSecs := entity.ClockOf(requested.In(queueLoc)).Secs()
	if (reqSecs-open.From.Secs())%slotSecs != 0 {
		return entity.ErrTicketNotAligned
	}

	endSecs := reqSecs + slotSecs
	for _, t := range openTickets {
		if t.State != entity.TicketStateOpen {
			continue
		}
		s := entity.ClockOf(t.RequestedTime.In(queueLoc)).Secs()
		if s >= reqSecs && s < endSecs {
			return entity.ErrSlotTaken
		}
	}
	return nil
}
