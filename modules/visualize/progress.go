package visualize

import (
	"context"
	"encoding/json"
	"log"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"screenking-server/modules/common/database"
	redisutil "screenking-server/modules/common/redis"
)

// Reporter - receives orchestrator status updates. Fire-and-forget:
// implementations must never block or fail the pipeline.
type Reporter interface {
	Report(stage, message string, percent int)
}

// NopReporter - used when nobody is listening
type NopReporter struct{}

func (NopReporter) Report(string, string, int) {}

// JobReporter - pushes progress onto the request row (for polling) and
// the Redis progress channel (for the WebSocket stream)
type JobReporter struct {
	db        *database.Client
	rdb       *goredis.Client
	requestID string
}

func NewJobReporter(db *database.Client, rdb *goredis.Client, requestID string) *JobReporter {
	return &JobReporter{db: db, rdb: rdb, requestID: requestID}
}

// progressEvent - payload published to WebSocket subscribers
type progressEvent struct {
	RequestID string `json:"request_id"`
	Stage     string `json:"stage"`
	Message   string `json:"message"`
	Progress  int    `json:"progress"`
}

func (r *JobReporter) Report(stage, message string, percent int) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("⚠️  Progress reporting panicked for %s: %v", r.requestID, rec)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if r.db != nil {
		if err := r.db.UpdateRequestProgress(ctx, r.requestID, percent, message); err != nil {
			log.Printf("⚠️  Failed to update progress for %s: %v", r.requestID, err)
		}
	}

	payload, err := json.Marshal(progressEvent{
		RequestID: r.requestID,
		Stage:     stage,
		Message:   message,
		Progress:  percent,
	})
	if err != nil {
		return
	}
	redisutil.PublishProgress(ctx, r.rdb, r.requestID, payload)
}

// progressTracker - clamps reported percentages so they never decrease
// within one run
type progressTracker struct {
	reporter Reporter
	last     int
}

func (p *progressTracker) report(stage, message string, percent int) {
	if percent < p.last {
		percent = p.last
	}
	p.last = percent
	p.reporter.Report(stage, message, percent)
}
