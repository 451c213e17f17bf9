package store

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/ticket-bot/internal/clock"
)

// CooldownGuard rate limits ticket creation per submitter. TryAccept reports
// whether the submission is accepted; when rejected it also reports how long
// the submitter must wait. The last-submission record is written only on
// acceptance, so a rejected attempt never resets the window.
type CooldownGuard interface {
	TryAccept(ctx context.Context, submitterID string) (accepted bool, retryAfter time.Duration, err error)
}

// memoryCooldown implements CooldownGuard with an in-process table. The check
// and the write happen under one mutex, so two near-simultaneous submissions
// from the same identity cannot both be accepted.
type memoryCooldown struct {
	mu     sync.Mutex
	window time.Duration
	clk    clock.Clock
	last   map[string]time.Time
}

// NewMemoryCooldown creates an in-process cooldown guard.
func NewMemoryCooldown(clk clock.Clock, window time.Duration) CooldownGuard {
	return &memoryCooldown{
		window: window,
		clk:    clk,
		last:   make(map[string]time.Time),
	}
}

func (g *memoryCooldown) TryAccept(ctx context.Context, submitterID string) (bool, time.Duration, error) {
	if g.window <= 0 {
		return true, 0, nil
	}
	now := g.clk.Now()

	g.mu.Lock()
	defer g.mu.Unlock()
	if last, exists := g.last[submitterID]; exists {
		elapsed := now.Sub(last)
		if elapsed < g.window {
			return false, g.window - elapsed, nil
		}
	}
	g.last[submitterID] = now
	return true, 0, nil
}
