package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"screenking-server/modules/common/config"
)

const (
	// QueueKey - list the worker BRPOPs request IDs from
	QueueKey = "visualize:queue"

	cancelKeyPrefix      = "visualize:cancel:"
	progressChannelPfx   = "visualize:progress:"
	cancelFlagExpiration = time.Hour
)

// Connect - create a Redis client
func Connect(cfg *config.Config) *redis.Client {
	log.Printf("🔌 Connecting to Redis: %s", cfg.GetRedisAddr())

	var tlsConfig *tls.Config
	if cfg.RedisUseTLS {
		tlsConfig = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: true, // managed Redis with self-signed certs
		}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Username:     cfg.RedisUsername,
		Password:     cfg.RedisPassword,
		TLSConfig:    tlsConfig,
		DB:           0,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Printf("🔍 Testing Redis connection...")
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("❌ Redis ping failed: %v", err)
		return nil
	}

	return rdb
}

// SetJobCancelled - raise the cancel flag for a request
func SetJobCancelled(rdb *redis.Client, requestID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return rdb.Set(ctx, cancelKeyPrefix+requestID, "1", cancelFlagExpiration).Err()
}

// IsJobCancelled - check the cancel flag for a request
func IsJobCancelled(rdb *redis.Client, requestID string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	val, err := rdb.Get(ctx, cancelKeyPrefix+requestID).Result()
	if err != nil {
		return false
	}
	return val == "1"
}

// ProgressChannel - pub/sub channel carrying progress events for a request
func ProgressChannel(requestID string) string {
	return fmt.Sprintf("%s%s", progressChannelPfx, requestID)
}

// PublishProgress - push a progress event for WebSocket subscribers.
// Best effort: a publish failure is logged and swallowed.
func PublishProgress(ctx context.Context, rdb *redis.Client, requestID string, payload []byte) {
	if rdb == nil {
		return
	}
	if err := rdb.Publish(ctx, ProgressChannel(requestID), payload).Err(); err != nil {
		log.Printf("⚠️  Failed to publish progress for %s: %v", requestID, err)
	}
}
