package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSink stores the snapshot JSON under <prefix><run_id> with a TTL.
type RedisSink struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisSink wraps an existing client.
func NewRedisSink(client redis.Cmdable, prefix string, ttl time.Duration) *RedisSink {
	return &RedisSink{client: client, prefix: prefix, ttl: ttl}
}

// Key returns the key a run's snapshot is stored under.
func (s *RedisSink) Key(runID string) string {
	return s.prefix + runID
}

// Write implements Sink.
func (s *RedisSink) Write(ctx context.Context, snap Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	if err = s.client.Set(ctx, s.Key(snap.RunID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.Key(snap.RunID), err)
	}
	return nil
}

// Load reads a snapshot previously written for runID.
func (s *RedisSink) Load(ctx context.Context, runID string) (Snapshot, error) {
	raw, err := s.client.Get(ctx, s.Key(runID)).Bytes()
	if err != nil {
		return Snapshot{}, fmt.Errorf("redis get %s: %w", s.Key(runID), err)
	}
	var snap Snapshot
	if err = json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode stats snapshot: %w", err)
	}
	return snap, nil
}
