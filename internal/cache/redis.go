// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list session actions are pushed to.
const DefaultQueueName = "partyrounds_actions"

// Action types the historian treats specially.
const (
	ActionGameFinished  = "game_finished"
	ActionSessionClosed = "session_closed"
)

// ActionRecord is one state change of a lobby or game, as consumed by the historian.
type ActionRecord struct {
	LobbyID       uuid.UUID              `json:"lobby_id"`
	ActionIndex   int                    `json:"action_index"`
	ActorID       uuid.UUID              `json:"actor_id"`
	ActionType    string                 `json:"action_type"`
	ActionPayload map[string]interface{} `json:"action_payload"`
	Timestamp     int64                  `json:"timestamp"`
}

// Feed is a Redis list used as a FIFO of ActionRecords.
type Feed struct {
	rdb   *redis.Client
	queue string
}

// NewFeed wraps an existing client.
func NewFeed(rdb *redis.Client, queue string) *Feed {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &Feed{rdb: rdb, queue: queue}
}

// Connect dials Redis at addr and verifies the connection with a PING.
func Connect(ctx context.Context, addr string, db int, queue string) (*Feed, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return NewFeed(rdb, queue), nil
}

// Publish appends rec to the queue.
func (f *Feed) Publish(ctx context.Context, rec ActionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal ActionRecord: %w", err)
	}
	if err := f.rdb.RPush(ctx, f.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", f.queue, err)
	}
	return nil
}

// Pop blocks up to wait for the next record. ok is false when the wait expired with an
// empty queue.
func (f *Feed) Pop(ctx context.Context, wait time.Duration) (rec ActionRecord, ok bool, err error) {
	res, err := f.rdb.BLPop(ctx, wait, f.queue).Result()
	if errors.Is(err, redis.Nil) {
		return ActionRecord{}, false, nil
	}
	if err != nil {
		return ActionRecord{}, false, fmt.Errorf("BLPOP %s: %w", f.queue, err)
	}
	// BLPOP replies [key, value].
	if len(res) != 2 {
		return ActionRecord{}, false, fmt.Errorf("unexpected BLPOP reply of length %d", len(res))
	}
	if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
		return ActionRecord{}, false, fmt.Errorf("decode ActionRecord: %w", err)
	}
	return rec, true, nil
}

// Close releases the underlying client.
func (f *Feed) Close() error {
	return f.rdb.Close()
}
