package queue

import (
	"fmt"
	"strings"
	"time"
)

type TaskType string

const (
	TaskTypeSendNotification TaskType = "send_notification"
	TaskTypeNotifyNextTicket TaskType = "notify_next_ticket"
	TaskTypeCancelStale      TaskType = "cancel_stale_tickets"
)

// Task представляет единицу работы в очереди. Data сериализуется в JSON,
// поэтому числа после доставки приходят как float64 и читаются через
// типизированные аксессоры ниже.
type Task struct {
	ID         string                 `json:"id"`
	Type       TaskType               `json:"type"`
	Data       map[string]interface{} `json:"data"`
	ExecuteAt  time.Time              `json:"execute_at"`
	CreatedAt  time.Time              `json:"created_at"`
	Attempts   int                    `json:"attempts"`
	MaxRetries int                    `json:"max_retries"`
}

// Validate проверяет обязательные поля задачи
func (t *Task) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("task ID is required")
	}
	if strings.TrimSpace(string(t.Type)) == "" {
		return fmt.Errorf("task type is required")
	}
	if t.Data == nil {
		t.Data = make(map[string]interface{})
	}
	return nil
}

// GetString читает строковое поле из данных задачи
func (t *Task) GetString(key string) string {
	str, _ := t.Data[key].(string)
	return str
}

// GetInt64 читает числовое поле из данных задачи
func (t *Task) GetInt64(key string) int64 {
	switch v := t.Data[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// GetTime читает момент времени в формате RFC3339 из данных задачи
func (t *Task) GetTime(key string) time.Time {
	if str, ok := t.Data[key].(string); ok {
		if parsed, err := time.Parse(time.RFC3339, str); err == nil {
			return parsed
		}
	}
	return time.Time{}
}
