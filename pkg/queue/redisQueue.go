package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	defaultMaxRetries   = 3
	defaultBaseDelay    = 5 * time.Second
	defaultPopTimeout   = 5 * time.Second
	defaultDLQThreshold = 1000
)

// RedisQueue доставляет задачи уведомлений через Redis. Готовые задачи
// лежат в списке, задачи с будущим ExecuteAt ждут в sorted set и
// перекладываются в список, когда их время пришло.
type RedisQueue struct {
	client       *redis.Client
	readyList    string
	delayedSet   string
	takenList    string
	dlq          string
	retryManager *RetryManager
	dlqHandler   DLQHandler
	config       *RedisQueueConfig
	mu           sync.Mutex
	stopChan     chan struct{}
	wg           sync.WaitGroup
}

type RedisQueueConfig struct {
	Addr     string
	Password string
	DB       int

	MainQueue       string
	DelayedQueue    string
	ProcessingQueue string
	DLQ             string

	MaxRetries    int
	BaseDelay     time.Duration
	QueueTimeout  time.Duration
	DLQThreshold  int
	EnableDLQ     bool
	EnableMetrics bool
}

func DefaultRedisQueueConfig() *RedisQueueConfig {
	return &RedisQueueConfig{
		Addr:            "localhost:6379",
		MainQueue:       "queuify:tasks",
		DelayedQueue:    "queuify:tasks:delayed",
		ProcessingQueue: "queuify:tasks:processing",
		DLQ:             "queuify:dlq",
		MaxRetries:      defaultMaxRetries,
		BaseDelay:       defaultBaseDelay,
		QueueTimeout:    defaultPopTimeout,
		DLQThreshold:    defaultDLQThreshold,
		EnableDLQ:       true,
		EnableMetrics:   true,
	}
}

func NewRedisQueue(cfg *RedisQueueConfig, retryManager *RetryManager, dlqHandler DLQHandler) (*RedisQueue, error) {
	if cfg == nil {
		cfg = DefaultRedisQueueConfig()
	}
	if retryManager == nil {
		retryManager = NewRetryManager(cfg.MaxRetries, cfg.BaseDelay)
	}
	if dlqHandler == nil && cfg.EnableDLQ {
		dlqHandler = NewDefaultDLQHandler(redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}), cfg.DLQ)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("не удалось подключиться к Redis: %w", err)
	}

	q := &RedisQueue{
		client:       client,
		readyList:    cfg.MainQueue,
		delayedSet:   cfg.DelayedQueue,
		takenList:    cfg.ProcessingQueue,
		dlq:          cfg.DLQ,
		retryManager: retryManager,
		dlqHandler:   dlqHandler,
		config:       cfg,
		stopChan:     make(chan struct{}),
	}

	log.Printf("Очередь задач готова: ready=%s, delayed=%s, dlq=%s",
		cfg.MainQueue, cfg.DelayedQueue, cfg.DLQ)

	return q, nil
}

// Publish ставит задачу в очередь. Будущее ExecuteAt откладывает доставку.
func (r *RedisQueue) Publish(ctx context.Context, task *Task) error {
	if task == nil {
		return fmt.Errorf("задача не может быть nil")
	}

	r.prepare(task)
	if err := task.Validate(); err != nil {
		return fmt.Errorf("некорректная задача: %w", err)
	}

	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("не удалось сериализовать задачу: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if task.ExecuteAt.After(time.Now()) {
		score := float64(task.ExecuteAt.UnixNano()) / 1e9
		if err := r.client.ZAdd(ctx, r.delayedSet, &redis.Z{Score: score, Member: payload}).Err(); err != nil {
			return fmt.Errorf("не удалось отложить задачу: %w", err)
		}
		r.countEvent(ctx, "tasks_delayed")
		log.Printf("Задача %s отложена до %s", task.ID, task.ExecuteAt.Format(time.RFC3339))
		return nil
	}

	if err := r.client.LPush(ctx, r.readyList, payload).Err(); err != nil {
		return fmt.Errorf("не удалось поставить задачу в очередь: %w", err)
	}
	r.countEvent(ctx, "tasks_queued")
	log.Printf("Задача %s поставлена в очередь", task.ID)
	return nil
}

// Subscribe запускает фоновые циклы потребителя и сразу возвращается.
func (r *RedisQueue) Subscribe(ctx context.Context, handler func(*Task) error) error {
	if handler == nil {
		return fmt.Errorf("обработчик не может быть nil")
	}

	r.wg.Add(3)
	go r.consumeReady(ctx, handler)
	go r.promoteDelayed(ctx)
	go r.watchBacklog(ctx)

	log.Println("Потребитель очереди задач запущен")
	return nil
}

// prepare заполняет значения по умолчанию перед валидацией.
func (r *RedisQueue) prepare(task *Task) {
	if task.ID == "" {
		task.ID = newTaskID()
	}
	if task.MaxRetries == 0 {
		task.MaxRetries = r.config.MaxRetries
	}
	now := time.Now()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	if task.ExecuteAt.IsZero() {
		task.ExecuteAt = now
	}
}

func (r *RedisQueue) consumeReady(ctx context.Context, handler func(*Task) error) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			log.Println("Потребитель остановлен контекстом")
			return
		case <-r.stopChan:
			log.Println("Потребитель остановлен")
			return
		default:
			if err := r.takeNext(ctx, handler); err != nil {
				log.Printf("Ошибка при обработке задачи: %v", err)
				time.Sleep(time.Second)
			}
		}
	}
}

// takeNext перекладывает одну задачу в рабочий список, выполняет ее с
// повторами и отдает окончательные неудачи в DLQ. Рабочий список
// чистится в любом исходе.
func (r *RedisQueue) takeNext(ctx context.Context, handler func(*Task) error) error {
	payload, err := r.client.BRPopLPush(ctx, r.readyList, r.takenList, r.config.QueueTimeout).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("не удалось взять задачу из очереди: %w", err)
	}

	var task Task
	if err := json.Unmarshal([]byte(payload), &task); err != nil {
		log.Printf("Нечитаемая задача: %v", err)
		r.quarantine(ctx, payload, err)
	} else if err := r.runWithRetry(ctx, &task, handler); err != nil {
		log.Printf("Задача %s не выполнена за %d попыток: %v", task.ID, task.Attempts, err)
		if r.dlqHandler != nil {
			r.dlqHandler.HandleFailedTask(&task, err)
		}
	} else {
		log.Printf("Задача %s выполнена", task.ID)
	}

	if err := r.client.LRem(ctx, r.takenList, 1, payload).Err(); err != nil {
		log.Printf("Не удалось убрать задачу из рабочего списка: %v", err)
	}
	return nil
}

func (r *RedisQueue) promoteDelayed(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		case <-ticker.C:
			if err := r.promoteDue(ctx); err != nil {
				log.Printf("Ошибка при переносе отложенных задач: %v", err)
			}
		}
	}
}

// promoteDue переносит созревшие отложенные задачи в основной список.
func (r *RedisQueue) promoteDue(ctx context.Context) error {
	cutoff := fmt.Sprintf("%f", float64(time.Now().UnixNano())/1e9)

	due, err := r.client.ZRangeByScore(ctx, r.delayedSet, &redis.ZRangeBy{
		Min: "0",
		Max: cutoff,
	}).Result()
	if err != nil {
		return fmt.Errorf("не удалось прочитать отложенные задачи: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	for _, payload := range due {
		pipe.LPush(ctx, r.readyList, payload)
	}
	pipe.ZRemRangeByScore(ctx, r.delayedSet, "0", cutoff)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("не удалось перенести отложенные задачи: %w", err)
	}

	log.Printf("Перенесено %d отложенных задач", len(due))
	return nil
}

func (r *RedisQueue) runWithRetry(ctx context.Context, task *Task, handler func(*Task) error) error {
	for {
		task.Attempts++

		err := handler(task)
		if err == nil {
			r.countEvent(ctx, "tasks_success")
			return nil
		}
		r.countEvent(ctx, "tasks_failure")

		retry, delay := r.retryManager.ShouldRetry(task, err)
		if !retry {
			return err
		}

		log.Printf("Задача %s не прошла (попытка %d/%d), повтор через %v: %v",
			task.ID, task.Attempts, task.MaxRetries, delay, err)

		// Джиттер разводит повторы одновременных неудач
		delay += time.Duration(rand.Int63n(int64(delay/time.Millisecond))) * time.Millisecond
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// quarantine отправляет нечитаемую задачу в DLQ, сохраняя сырой payload.
func (r *RedisQueue) quarantine(ctx context.Context, payload string, cause error) {
	if !r.config.EnableDLQ || r.dlqHandler == nil {
		return
	}

	broken := &Task{
		ID:        fmt.Sprintf("corrupted_%d", time.Now().UnixNano()),
		Type:      "corrupted",
		Data:      map[string]interface{}{"raw_data": payload},
		CreatedAt: time.Now(),
	}
	r.dlqHandler.HandleFailedTask(broken, fmt.Errorf("нечитаемая задача: %w", cause))
	r.countEvent(ctx, "tasks_dlq")
}

// watchBacklog периодически пишет глубину очередей в Redis и
// предупреждает, когда накопилось больше порога.
func (r *RedisQueue) watchBacklog(ctx context.Context) {
	defer r.wg.Done()

	if !r.config.EnableMetrics {
		return
	}

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		case <-ticker.C:
			r.logBacklog(ctx)
		}
	}
}

func (r *RedisQueue) logBacklog(ctx context.Context) {
	pipe := r.client.Pipeline()
	readyLen := pipe.LLen(ctx, r.readyList)
	delayedLen := pipe.ZCard(ctx, r.delayedSet)
	takenLen := pipe.LLen(ctx, r.takenList)
	dlqLen := pipe.LLen(ctx, r.dlq)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("Не удалось прочитать глубину очередей: %v", err)
		return
	}

	snapshot, err := json.Marshal(map[string]interface{}{
		"queue_ready_len":   readyLen.Val(),
		"queue_delayed_len": delayedLen.Val(),
		"queue_taken_len":   takenLen.Val(),
		"queue_dlq_len":     dlqLen.Val(),
		"timestamp":         time.Now().Unix(),
	})
	if err == nil {
		r.client.Set(ctx, "queuify:queue:metrics", snapshot, 2*time.Minute)
	}

	if readyLen.Val() > int64(r.config.DLQThreshold) {
		log.Printf("ВНИМАНИЕ: очередь задач (%d) превысила порог (%d)",
			readyLen.Val(), r.config.DLQThreshold)
	}
}

func (r *RedisQueue) countEvent(ctx context.Context, event string) {
	if !r.config.EnableMetrics {
		return
	}
	key := "queuify:metrics:" + event
	r.client.Incr(ctx, key)
	r.client.Expire(ctx, key, 24*time.Hour)
}

// Close останавливает фоновые циклы и закрывает клиент.
func (r *RedisQueue) Close() error {
	close(r.stopChan)
	r.wg.Wait()

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("не удалось закрыть клиент Redis: %w", err)
	}

	log.Println("Очередь задач остановлена")
	return nil
}

func newTaskID() string {
	return fmt.Sprintf("task_%d_%d", time.Now().UnixNano(), rand.Int63())
}
