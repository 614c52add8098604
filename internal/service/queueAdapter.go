package service

import (
	"context"

	"github.com/SnowyCoder/queuify/pkg/queue"
)

// QueueAdapter выставляет queue.Queue сервисам как TaskPublisher, чтобы
// слой сервисов не зависел от пакета очереди.
type QueueAdapter struct {
	queue queue.Queue
}

func NewQueueAdapter(q queue.Queue) *QueueAdapter {
	return &QueueAdapter{queue: q}
}

// Publish переводит service.Task в queue.Task и публикует ее.
// Без очереди задача молча пропадает, уведомления не критичны.
func (a *QueueAdapter) Publish(ctx context.Context, task *Task) error {
	if a.queue == nil {
		return nil
	}

	queueTask := &queue.Task{
		ID:         task.ID,
		Type:       queue.TaskType(task.Type),
		Data:       task.Data,
		ExecuteAt:  task.ExecuteAt,
		MaxRetries: task.MaxRetries,
		Attempts:   task.Attempts,
	}

	return a.queue.Publish(ctx, queueTask)
}
