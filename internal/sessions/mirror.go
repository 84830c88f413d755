// Package sessions mirrors live session state into Redis with a TTL,
// giving external consumers a bounded view of the in-process session
// map.
package sessions

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/uxpulse/uxpulse/internal/config"
	"github.com/uxpulse/uxpulse/internal/telemetry"
)

const sessionTTL = time.Hour

// Mirror writes session updates to Redis. Implements
// telemetry.SessionSink.
type Mirror struct {
	redis *redis.Client
}

// NewMirror connects a mirror to Redis.
func NewMirror(cfg config.RedisConfig) *Mirror {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Mirror{redis: rdb}
}

// NewMirrorWithClient wraps an existing client, for tests.
func NewMirrorWithClient(rdb *redis.Client) *Mirror {
	return &Mirror{redis: rdb}
}

// SessionUpdated upserts the session hash and refreshes its TTL.
func (m *Mirror) SessionUpdated(update telemetry.SessionUpdate) {
	if m.redis == nil {
		return
	}
	ctx := context.Background()
	key := "session:" + update.UserID + ":" + update.SessionID

	pipe := m.redis.Pipeline()
	pipe.HSetNX(ctx, key, "user_id", update.UserID)
	pipe.HSetNX(ctx, key, "session_id", update.SessionID)
	pipe.HSetNX(ctx, key, "started_at", update.StartTime.UnixMilli())
	pipe.HSet(ctx, key, "last_activity", update.LastActivity.UnixMilli())
	pipe.HSet(ctx, key, "interaction_count", update.InteractionCount)
	pipe.HSet(ctx, key, "pages_visited", update.PagesVisited)
	if update.Page != "" {
		pipe.HSetNX(ctx, key, "entry_page", update.Page)
		pipe.HSet(ctx, key, "exit_page", update.Page)
	}
	if update.Device != "" {
		pipe.HSetNX(ctx, key, "device", update.Device)
	}
	pipe.Expire(ctx, key, sessionTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Error().Err(err).
			Str("user_id", update.UserID).
			Str("session_id", update.SessionID).
			Msg("Failed to mirror session to Redis")
	}
}

// Close releases the Redis connection.
func (m *Mirror) Close() error {
	if m.redis != nil {
		return m.redis.Close()
	}
	return nil
}
