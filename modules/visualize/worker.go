package visualize

import (
	"context"
	"log"
	"time"

	"screenking-server/modules/common/config"
	redisutil "screenking-server/modules/common/redis"
)

// StartWorker - watch the visualization queue and process jobs as they
// arrive. Blocks forever; run it in its own goroutine.
func StartWorker(cfg *config.Config) {
	log.Println("🔄 Visualization queue worker starting...")

	rdb := redisutil.Connect(cfg)
	if rdb == nil {
		log.Fatal("❌ Failed to connect to Redis")
		return
	}
	log.Println("✅ Redis connected successfully")

	ctx := context.Background()

	service, err := NewService(ctx, cfg, rdb)
	if err != nil {
		log.Fatalf("❌ Failed to initialize visualization service: %v", err)
		return
	}

	log.Printf("👀 Watching queue: %s", redisutil.QueueKey)

	for {
		result, err := rdb.BRPop(ctx, 0, redisutil.QueueKey).Result()
		if err != nil {
			log.Printf("❌ Redis BRPOP error: %v", err)
			time.Sleep(5 * time.Second)
			continue
		}

		// result[0] is the queue key, result[1] the request ID
		requestID := result[1]
		log.Printf("🎯 Received visualization request: %s", requestID)

		go service.ProcessVisualizeJob(ctx, requestID)
	}
}
