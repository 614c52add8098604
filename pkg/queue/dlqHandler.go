package queue

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

// DLQHandler принимает задачи уведомлений, исчерпавшие попытки.
type DLQHandler interface {
	HandleFailedTask(task *Task, err error)
}

// FailedTask хранит задачу вместе с контекстом ее провала.
type FailedTask struct {
	Task     *Task     `json:"task"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
	Attempts int       `json:"attempts"`
}

// DefaultDLQHandler складывает провалившиеся задачи в sorted set со
// временем провала как score, чтобы их можно было разбирать по порядку.
type DefaultDLQHandler struct {
	client *redis.Client
	dlq    string
}

func NewDefaultDLQHandler(client *redis.Client, dlq string) *DefaultDLQHandler {
	return &DefaultDLQHandler{
		client: client,
		dlq:    dlq,
	}
}

func (d *DefaultDLQHandler) HandleFailedTask(task *Task, err error) {
	failed := &FailedTask{
		Task:     task,
		Error:    err.Error(),
		FailedAt: time.Now(),
		Attempts: task.Attempts,
	}

	payload, marshalErr := json.Marshal(failed)
	if marshalErr != nil {
		log.Printf("Не удалось сериализовать провалившуюся задачу: %v", marshalErr)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	score := float64(failed.FailedAt.UnixNano()) / 1e9
	if redisErr := d.client.ZAdd(ctx, d.dlq, &redis.Z{Score: score, Member: payload}).Err(); redisErr != nil {
		log.Printf("Не удалось отправить задачу в DLQ: %v", redisErr)
		return
	}

	log.Printf("Задача %s перенесена в DLQ: %v", task.ID, err)
}
