package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/spf13/viper"
)

const attemptKeyPrefix = "vote:attempts:"

// Sliding window over a per-user ZSET; the script keeps the trim, count and
// insert atomic so concurrent attempts cannot both squeeze under the limit.
const slidingWindowScript = `
	local window_start = tonumber(ARGV[1]) - tonumber(ARGV[2])
	redis.call('ZREMRANGEBYSCORE', KEYS[1], 0, window_start)
	local count = redis.call('ZCARD', KEYS[1])
	if count >= tonumber(ARGV[3]) then
		return 0
	end
	redis.call('ZADD', KEYS[1], tonumber(ARGV[1]), ARGV[4])
	redis.call('PEXPIRE', KEYS[1], tonumber(ARGV[2]))
	return 1
`

type RedisLimiter struct {
	client     *redis.Client
	scriptHash string
}

func NewRedisLimiter(ctx context.Context) (*RedisLimiter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     viper.GetString("redis.address"),
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.db"),
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	hash, err := client.ScriptLoad(ctx, slidingWindowScript).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to preload sliding window script: %w", err)
	}

	return &RedisLimiter{client: client, scriptHash: hash}, nil
}

func (l *RedisLimiter) Allow(ctx context.Context, userID string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}

	result, err := l.client.EvalSha(ctx, l.scriptHash,
		[]string{attemptKeyPrefix + userID},
		time.Now().UnixMilli(),
		window.Milliseconds(),
		limit,
		uuid.NewString(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to run sliding window script: %w", err)
	}

	return result == 1, nil
}

func (l *RedisLimiter) Close() error {
	return l.client.Close()
}
