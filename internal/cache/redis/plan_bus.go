package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/TemamAb/ainex-sub004/internal/domain"
)

const (
	// planStream is the Redis stream carrying execution plans from the
	// strategy layer to the pipeline.
	planStream = "ainex:plans"

	// planStreamMaxLen bounds the stream via XADD MAXLEN ~.
	planStreamMaxLen int64 = 10000

	// planReadBlock is how long one XREAD blocks before re-checking ctx.
	planReadBlock = 5 * time.Second

	planReadBatch int64 = 64
)

// PlanBus implements domain.PlanBus on a Redis stream: durable, ordered
// delivery with automatic trimming.
type PlanBus struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewPlanBus creates a PlanBus backed by the given Client.
func NewPlanBus(c *Client, logger *slog.Logger) *PlanBus {
	return &PlanBus{
		rdb:    c.Underlying(),
		logger: logger.With(slog.String("component", "plan_bus")),
	}
}

// PublishPlan appends a plan to the stream.
func (pb *PlanBus) PublishPlan(ctx context.Context, plan domain.ExecutionPlan) error {
	payload, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("redis: encode plan %s: %w", plan.ID, err)
	}
	args := &redis.XAddArgs{
		Stream: planStream,
		MaxLen: planStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"payload": payload},
	}
	if err := pb.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis: publish plan %s: %w", plan.ID, err)
	}
	return nil
}

// Plans returns a channel of plans appended after the call. The reader
// goroutine exits and closes the channel when ctx is cancelled. Entries that
// fail to decode are logged and skipped; a malformed plan must not stall the
// stream.
func (pb *PlanBus) Plans(ctx context.Context) (<-chan domain.ExecutionPlan, error) {
	// Resolve the current tail so "new plans only" survives reconnect loops
	// inside XREAD.
	lastID := "$"
	if info, err := pb.rdb.XInfoStream(ctx, planStream).Result(); err == nil {
		lastID = info.LastGeneratedID
	} else if !isNilOrMissingStream(err) {
		return nil, fmt.Errorf("redis: inspect plan stream: %w", err)
	}

	out := make(chan domain.ExecutionPlan, 32)
	go func() {
		defer close(out)
		for {
			if ctx.Err() != nil {
				return
			}
			results, err := pb.rdb.XRead(ctx, &redis.XReadArgs{
				Streams: []string{planStream, lastID},
				Count:   planReadBatch,
				Block:   planReadBlock,
			}).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				pb.logger.WarnContext(ctx, "plan stream read failed",
					slog.String("error", err.Error()))
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}

			for _, s := range results {
				for _, msg := range s.Messages {
					lastID = msg.ID
					plan, ok := decodePlan(msg)
					if !ok {
						pb.logger.WarnContext(ctx, "skipping malformed plan entry",
							slog.String("stream_id", msg.ID))
						continue
					}
					select {
					case out <- plan:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return out, nil
}

func decodePlan(msg redis.XMessage) (domain.ExecutionPlan, bool) {
	raw, ok := msg.Values["payload"]
	if !ok {
		return domain.ExecutionPlan{}, false
	}
	var data []byte
	switch v := raw.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return domain.ExecutionPlan{}, false
	}
	var plan domain.ExecutionPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return domain.ExecutionPlan{}, false
	}
	return plan, plan.ID != ""
}

// isNilOrMissingStream reports whether the XINFO error just means the stream
// has not been created yet.
func isNilOrMissingStream(err error) bool {
	return errors.Is(err, redis.Nil) || (err != nil && err.Error() == "ERR no such key")
}

// Compile-time interface check.
var _ domain.PlanBus = (*PlanBus)(nil)
