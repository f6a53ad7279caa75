package sink

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var exportedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "skyscan_sink_redis_added_total",
	Help: "Total values newly added to Redis sets by stream",
}, []string{"stream"})

// DefaultRedisKey is the key prefix of exported sets.
const DefaultRedisKey = "skyscan"

// RedisSet adds the values of each stream to the set "<key>:<stream>".
// The sets are export targets only and are never read back.
type RedisSet struct {
	redis *redis.Client
	key   string
}

var _ Writer = (*RedisSet)(nil)

// NewRedisSet creates a writer exporting to redisClient under key. The
// client stays owned by the caller.
func NewRedisSet(redisClient *redis.Client, key string) *RedisSet {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisSet{redis: redisClient, key: key}
}

// SetKey returns the Redis key of the set holding stream.
func (r *RedisSet) SetKey(stream string) string {
	return r.key + ":" + stream
}

// Write implements Writer.
func (r *RedisSet) Write(ctx context.Context, stream string, values []string) error {
	if len(values) == 0 {
		return nil
	}

	members := make([]interface{}, len(values))
	for i, v := range values {
		members[i] = v
	}

	added, err := r.redis.SAdd(ctx, r.SetKey(stream), members...).Result()
	if err != nil {
		return fmt.Errorf("redis sadd %s: %w", r.SetKey(stream), err)
	}
	exportedTotal.WithLabelValues(stream).Add(float64(added))
	return nil
}

// Close implements Writer. The Redis client is left open.
func (r *RedisSet) Close() error {
	return nil
}
