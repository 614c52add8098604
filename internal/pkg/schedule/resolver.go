package schedule

import (
	"time"

	"github.com/SnowyCoder/queuify/internal/entity"
)

// OpenRange хранит действующие часы работы очереди на конкретную дату.
type OpenRange struct {
	From entity.TimeOfDay `json:"from"`
	To   entity.TimeOfDay `json:"to"`
}

// ResolveOpenRange вычисляет часы работы на дату. Исключение на дату
// полностью перекрывает недельное расписание (без слияния): пустое
// from_time означает "закрыто". Без исключения берется первая запись
// недельного расписания на этот день недели, без нее день закрыт.
//
// Корректность from < to здесь не проверяется, сломанный диапазон просто
// не даст ни одного окна записи дальше по конвейеру.
func ResolveOpenRange(ranges []entity.WeeklyOpenRange, exc *entity.OpenException, day time.Time) *OpenRange {
	if exc != nil {
		if exc.FromTime == nil || exc.ToTime == nil {
			return nil
		}
		return &OpenRange{From: *exc.FromTime, To: *exc.ToTime}
	}

	weekday := entity.WeekdayIndex(day)
	for _, r := range ranges {
		if r.Day == weekday {
			return &OpenRange{From: r.FromTime, To: r.ToTime}
		}
	}
	return nil
}

// DayState описывает положение дел очереди в текущий момент.
type DayState string

const (
	DayStateNeverOpen  DayState = "never_open"
	DayStateNotOpenYet DayState = "not_open_yet"
	DayStateClosed     DayState = "closed"
	DayStateOpen       DayState = "open"
)

func ResolveDayState(open *OpenRange, now time.Time, queueLoc *time.Location) DayState {
	if open == nil {
		return DayStateNeverOpen
	}
	local := now.In(queueLoc)
	switch {
	case open.From.At(local, queueLoc).After(now):
		return DayStateNotOpenYet
	case open.To.At(local, queueLoc).Before(now):
		return DayStateClosed
	default:
		return DayStateOpen
	}
}
