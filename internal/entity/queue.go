package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type JoinMode string

const (
	JoinModePublic      JoinMode = "public"
	JoinModeURLOnly     JoinMode = "url_only"
	JoinModeFriendsOnly JoinMode = "friends_only"
	JoinModeInvite      JoinMode = "invite"
)

const (
	// Сколько первых замеров фильтр усредняет напрямую
	FilterBootstrapIterations = 10
	// Насколько фильтр доверяет памяти вместо нового замера
	// (0 = только новый замер, 1 = только память)
	FilterMemory = 0.8
)

type Queue struct {
	ID              uuid.UUID `json:"id" db:"id"`
	Name            string    `json:"name" db:"name"`
	Description     string    `json:"description" db:"description"`
	Timezone        string    `json:"timezone" db:"timezone"`
	IsPrivacyHidden bool      `json:"is_privacy_hidden" db:"is_privacy_hidden"`
	JoinMode        JoinMode  `json:"join_mode" db:"join_mode"`

	ExpectedTimePerTicket float64 `json:"expected_time_per_ticket" db:"expected_time_per_ticket"`
	TicketStatsCount      int     `json:"ticket_stats_count" db:"ticket_stats_count"`
	// nil = непрерывная запись, иначе запись нарезается на слоты этой длины
	FixedTicketTimeMinutes *int `json:"fixed_ticket_time_minutes" db:"fixed_ticket_time_minutes"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

func (q *Queue) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(q.Timezone)
	if err != nil {
		return nil, fmt.Errorf("queue %s has invalid timezone %q: %w", q.ID, q.Timezone, err)
	}
	return loc, nil
}

// ApplyWaitTimeSample обновляет оценку времени обслуживания одного талона.
// Первые FilterBootstrapIterations замеров усредняются, дальше работает
// линейная интерполяция между памятью и новым замером.
func (q *Queue) ApplyWaitTimeSample(sampleSecs float64) {
	ett := q.ExpectedTimePerTicket
	count := q.TicketStatsCount

	if count < FilterBootstrapIterations {
		ett = (ett*float64(count) + sampleSecs) / float64(count+1)
	} else {
		ett = ett*FilterMemory + (1-FilterMemory)*sampleSecs
	}

	q.ExpectedTimePerTicket = ett
	q.TicketStatsCount = count + 1
}

// FormatExpectedTime возвращает оценку в человекочитаемом виде для деталей
// очереди ("1h5m", "5m30s", "45s", "none").
func (q *Queue) FormatExpectedTime() string {
	ett := int(q.ExpectedTimePerTicket + 0.5)
	switch {
	case ett > 60*60:
		return fmt.Sprintf("%dh%dm", ett/(60*60), (ett/60)%60)
	case ett > 60:
		return fmt.Sprintf("%dm%ds", ett/60, ett%60)
	case ett > 0:
		return fmt.Sprintf("%ds", ett)
	default:
		return "none"
	}
}
