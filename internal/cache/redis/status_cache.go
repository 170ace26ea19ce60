package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/TemamAb/ainex-sub004/internal/domain"
)

// statusKey holds the latest breaker snapshot as a JSON blob.
const statusKey = "ainex:breaker:status"

// StatusCache implements domain.StatusCache. Dashboards and the monitor mode
// read the snapshot from Redis without touching the trading process.
type StatusCache struct {
	rdb *redis.Client
}

// NewStatusCache creates a StatusCache backed by the given Client.
func NewStatusCache(c *Client) *StatusCache {
	return &StatusCache{rdb: c.Underlying()}
}

// SetStatus overwrites the cached snapshot.
func (sc *StatusCache) SetStatus(ctx context.Context, status domain.BreakerStatus) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("redis: encode breaker status: %w", err)
	}
	if err := sc.rdb.Set(ctx, statusKey, payload, 0).Err(); err != nil {
		return fmt.Errorf("redis: set breaker status: %w", err)
	}
	return nil
}

// GetStatus returns the cached snapshot, or domain.ErrNotFound when no
// snapshot has been written yet.
func (sc *StatusCache) GetStatus(ctx context.Context) (domain.BreakerStatus, error) {
	payload, err := sc.rdb.Get(ctx, statusKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.BreakerStatus{}, domain.ErrNotFound
		}
		return domain.BreakerStatus{}, fmt.Errorf("redis: get breaker status: %w", err)
	}
	var status domain.BreakerStatus
	if err := json.Unmarshal(payload, &status); err != nil {
		return domain.BreakerStatus{}, fmt.Errorf("redis: decode breaker status: %w", err)
	}
	return status, nil
}

// Compile-time interface check.
var _ domain.StatusCache = (*StatusCache)(nil)
