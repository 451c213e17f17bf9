package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/spec-kit/ticket-bot/pkg/util"
)

const cooldownKeyPrefix = "ticket:cooldown:"

// redisCooldown implements CooldownGuard on Redis. SET NX EX is the
// compare-and-set: the key exists only while the window is open, and a
// rejected attempt never refreshes it. Useful when several gateway processes
// share one guild.
type redisCooldown struct {
	client *redis.Client
	window time.Duration
}

// NewRedisCooldown creates a Redis-backed cooldown guard.
func NewRedisCooldown(client *redis.Client, window time.Duration) CooldownGuard {
	return &redisCooldown{client: client, window: window}
}

func (g *redisCooldown) TryAccept(ctx context.Context, submitterID string) (bool, time.Duration, error) {
	if g.window <= 0 {
		return true, 0, nil
	}
	key := cooldownKeyPrefix + submitterID

	set, err := g.client.SetNX(ctx, key, time.Now().Unix(), g.window).Result()
	if err != nil {
		return false, 0, apperrors.NewTransportFailure("redis setnx", err)
	}
	if set {
		return true, 0, nil
	}

	ttl, err := g.client.PTTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		ttl = g.window
	}
	return false, ttl, nil
}
