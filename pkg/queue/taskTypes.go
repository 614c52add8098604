package queue

import (
	"context"
)

// Queue доставляет задачи уведомлений от сервисов к обработчику
type Queue interface {
	Publish(ctx context.Context, task *Task) error
	Subscribe(ctx context.Context, handler func(*Task) error) error
	Close() error
}
