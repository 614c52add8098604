package entity

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// TimeOfDay хранит время суток без даты и без зоны (часы/минуты/секунды).
// Расписания очередей оперируют именно временем суток, дата и зона
// добавляются в момент вычислений.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

const secondsPerDay = 24 * 60 * 60

func TimeToSecs(t TimeOfDay) int {
	return (t.Hour*60+t.Minute)*60 + t.Second
}

// SecsToTime делает обратное преобразование. Значение должно лежать в
// [0, 86400), переполнение это ошибка вызывающего кода, не wrap-around.
func SecsToTime(s int) TimeOfDay {
	if s < 0 || s >= secondsPerDay {
		panic(fmt.Sprintf("seconds out of day range: %d", s))
	}
	return TimeOfDay{Hour: s / 3600, Minute: (s / 60) % 60, Second: s % 60}
}

// ClockOf извлекает время суток из instant в его зоне.
func ClockOf(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return TimeOfDay{Hour: h, Minute: m, Second: s}
}

// ParseTimeOfDay принимает "HH:MM" и "HH:MM:SS" (формат TIME в базе).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var t TimeOfDay
	if _, err := fmt.Sscanf(s, "%d:%d:%d", &t.Hour, &t.Minute, &t.Second); err == nil {
		return t, t.validate()
	}
	t.Second = 0
	if _, err := fmt.Sscanf(s, "%d:%d", &t.Hour, &t.Minute); err != nil {
		return TimeOfDay{}, fmt.Errorf("cannot parse time of day %q", s)
	}
	return t, t.validate()
}

func (t TimeOfDay) validate() error {
	if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 || t.Second < 0 || t.Second > 59 {
		return fmt.Errorf("time of day out of range: %s", t)
	}
	return nil
}

func (t TimeOfDay) Secs() int {
	return TimeToSecs(t)
}

func (t TimeOfDay) Before(o TimeOfDay) bool {
	return t.Secs() < o.Secs()
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// At совмещает время суток с датой в заданной зоне.
func (t TimeOfDay) At(day time.Time, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour, t.Minute, t.Second, 0, loc)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	if len(b) < 2 {
		return fmt.Errorf("invalid time of day: %s", b)
	}
	parsed, err := ParseTimeOfDay(string(b[1 : len(b)-1]))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t TimeOfDay) Value() (driver.Value, error) {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second), nil
}

func (t *TimeOfDay) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	switch v := value.(type) {
	case time.Time:
		*t = ClockOf(v)
	case []byte:
		parsed, err := ParseTimeOfDay(string(v))
		if err != nil {
			return err
		}
		*t = parsed
	case string:
		parsed, err := ParseTimeOfDay(v)
		if err != nil {
			return err
		}
		*t = parsed
	default:
		return fmt.Errorf("cannot scan type %T into TimeOfDay", value)
	}
	return nil
}
