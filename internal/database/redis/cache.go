package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/SnowyCoder/queuify/internal/pkg/schedule"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// CacheRepository кэширует вычисленные окна записи на день. Ключ включает
// зону отображения, потому что окна переводятся в неё при вычислении.
// Любая запись или закрытие талона инвалидирует день целиком.
type CacheRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCacheRepository(client *redis.Client, ttl time.Duration) *CacheRepository {
	return &CacheRepository{
		client: client,
		ttl:    ttl,
	}
}

func availabilityKey(queueID uuid.UUID, day time.Time, display string) string {
	return "availability:" + queueID.String() + ":" + day.Format("2006-01-02") + ":" + display
}

func (r *CacheRepository) SetAvailability(ctx context.Context, queueID uuid.UUID, day time.Time, display string, av *schedule.Availability) error {
	data, err := json.Marshal(av)
	if err != nil {
		return err
	}

	return r.client.Set(ctx, availabilityKey(queueID, day, display), data, r.ttl).Err()
}

func (r *CacheRepository) GetAvailability(ctx context.Context, queueID uuid.UUID, day time.Time, display string) (*schedule.Availability, error) {
	data, err := r.client.Get(ctx, availabilityKey(queueID, day, display)).Result()
	if err != nil {
		return nil, err
	}

	var av schedule.Availability
	err = json.Unmarshal([]byte(data), &av)
	if err != nil {
		return nil, err
	}

	return &av, nil
}

// InvalidateDay удаляет кэш дня для всех зон отображения
func (r *CacheRepository) InvalidateDay(ctx context.Context, queueID uuid.UUID, day time.Time) error {
	pattern := "availability:" + queueID.String() + ":" + day.Format("2006-01-02") + ":*"

	keys, err := r.client.Keys(ctx, pattern).Result()
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	return r.client.Del(ctx, keys...).Err()
}

// InvalidateQueue удаляет кэш всех дней очереди, например после смены
// расписания или длительности слота
func (r *CacheRepository) InvalidateQueue(ctx context.Context, queueID uuid.UUID) error {
	pattern := "availability:" + queueID.String() + ":*"

	keys, err := r.client.Keys(ctx, pattern).Result()
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	return r.client.Del(ctx, keys...).Err()
}
