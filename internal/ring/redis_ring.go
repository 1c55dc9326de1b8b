package ring

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const keyPrefix = "nxlock:ring:"

// RedisRing keeps the latest capacity samples in a redis list, newest first.
// Implementation of https://en.wikipedia.org/wiki/Circular_buffer
type RedisRing struct {
	client   redis.Cmdable
	capacity int
	key      string
}

func NewRedisRing(redisClient redis.Cmdable, capacity int, key string) *RedisRing {
	if capacity < 1 {
		capacity = 1
	}
	return &RedisRing{
		client:   redisClient,
		capacity: capacity,
		key:      keyPrefix + key,
	}
}

func (r *RedisRing) Key() string {
	return r.key
}

func (r *RedisRing) Size(ctx context.Context) (int, error) {
	length, err := r.client.LLen(ctx, r.key).Result()
	if err != nil {
		return 0, err
	}
	return int(length), nil
}

// Add pushes items and drops whatever falls beyond the capacity.
func (r *RedisRing) Add(ctx context.Context, items ...float64) error {
	if len(items) == 0 {
		return nil
	}

	values := make([]interface{}, len(items))
	for i, item := range items {
		values[i] = item
	}

	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LPush(ctx, r.key, values...)
		p.LTrim(ctx, r.key, 0, int64(r.capacity-1))
		return nil
	})
	return err
}

func (r *RedisRing) GetAll(ctx context.Context) ([]float64, error) {
	res, err := r.client.LRange(ctx, r.key, 0, int64(r.capacity-1)).Result()
	if err != nil {
		return []float64{}, err
	}

	result := make([]float64, 0, len(res))
	for _, raw := range res {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			log.WithError(err).WithField("ring", r.key).Error("invalid ring sample")
			continue
		}
		result = append(result, v)
	}

	return result, nil
}

func (r *RedisRing) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}
