package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/SnowyCoder/queuify/internal/service"
)

// Scheduler периодически публикует задачу отмены просроченных талонов в
// очередь задач, чтобы ее выполнил любой из инстансов.
type Scheduler struct {
	publisher service.TaskPublisher
	interval  time.Duration
}

func NewScheduler(publisher service.TaskPublisher, interval time.Duration) *Scheduler {
	return &Scheduler{
		publisher: publisher,
		interval:  interval,
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			task := &service.Task{
				ID:         fmt.Sprintf("cancel_stale_%d", time.Now().Unix()),
				Type:       service.TaskTypeCancelStale,
				Data:       map[string]interface{}{},
				MaxRetries: 3,
			}
			if err := s.publisher.Publish(ctx, task); err != nil {
				fmt.Printf("Error publishing stale cancel task: %v\n", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
