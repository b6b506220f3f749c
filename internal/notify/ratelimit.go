package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"alcyxob/coach-scheduling/internal/repository"

	"github.com/rs/zerolog"
)

// RateLimitConfig bounds sends per recipient per fixed window.
type RateLimitConfig struct {
	Limit  int64
	Window time.Duration
}

// RateLimited enforces a per-recipient budget with a counter held outside the
// process, so the budget survives restarts and is shared by every replica.
type RateLimited struct {
	next    Notifier
	counter repository.SendCounter
	cfg     RateLimitConfig
	logger  zerolog.Logger
	now     func() time.Time
}

// NewRateLimited wraps next. A non-positive limit disables limiting.
func NewRateLimited(next Notifier, counter repository.SendCounter, cfg RateLimitConfig, logger zerolog.Logger) *RateLimited {
	return &RateLimited{
		next:    next,
		counter: counter,
		cfg:     cfg,
		logger:  logger.With().Str("component", "rate_limiter").Logger(),
		now:     time.Now,
	}
}

func (r *RateLimited) Send(ctx context.Context, recipient string, kind Kind, data Data) (string, error) {
	if r.cfg.Limit <= 0 || r.cfg.Window <= 0 {
		return r.next.Send(ctx, recipient, kind, data)
	}

	key := "recipient:" + strings.ToLower(strings.TrimSpace(recipient))
	count, err := r.counter.Increment(ctx, key, r.cfg.Window, r.now())
	if err != nil {
		// Without a counter we cannot tell whether the budget is spent.
		return "", fmt.Errorf("rate limit counter: %w", err)
	}
	if count > r.cfg.Limit {
		r.logger.Warn().
			Str("recipient", recipient).
			Str("kind", string(kind)).
			Int64("count", count).
			Int64("limit", r.cfg.Limit).
			Msg("notification dropped by rate limit")
		return "", fmt.Errorf("%w: %d sends in %s", ErrRateLimited, count-1, r.cfg.Window)
	}
	return r.next.Send(ctx, recipient, kind, data)
}
