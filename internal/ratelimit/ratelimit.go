package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrBudgetExceeded is returned by Budget.Use once the daily cap is reached.
var ErrBudgetExceeded = errors.New("daily call budget exceeded")

// Hosts keeps one token bucket per upstream host so that concurrent keyword
// workers never exceed the configured request rate to any single source.
type Hosts struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewHosts creates a registry allowing perSecond requests per host. A value
// of zero or less disables throttling.
func NewHosts(perSecond float64, burst int) *Hosts {
	l := rate.Limit(perSecond)
	if perSecond <= 0 {
		l = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Hosts{limiters: make(map[string]*rate.Limiter), limit: l, burst: burst}
}

// Wait blocks until a request to host is allowed or ctx is done.
func (h *Hosts) Wait(ctx context.Context, host string) error {
	return h.limiter(host).Wait(ctx)
}

func (h *Hosts) limiter(host string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.limiters[host]
	if !ok {
		l = rate.NewLimiter(h.limit, h.burst)
		h.limiters[host] = l
	}
	return l
}

// Budget caps the number of calls to a paid upstream per day.
type Budget struct {
	mu        sync.Mutex
	name      string
	max       int
	used      int
	resetTime time.Time
	now       func() time.Time
}

// NewBudget allows max calls per 24h window. Zero means unlimited.
func NewBudget(name string, max int) *Budget {
	b := &Budget{name: name, max: max, now: time.Now}
	b.resetTime = b.now().Add(24 * time.Hour)
	return b
}

// Use charges one call against the budget.
func (b *Budget) Use() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.checkReset()
	if b.max > 0 && b.used >= b.max {
		slog.Warn("call budget reached", "upstream", b.name, "used", b.used, "limit", b.max)
		return fmt.Errorf("%s: %w", b.name, ErrBudgetExceeded)
	}
	b.used++
	slog.Debug("call budget", "upstream", b.name, "used", b.used, "limit", b.max)
	return nil
}

// GetStats returns current usage.
func (b *Budget) GetStats() map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	return map[string]interface{}{
		"upstream":   b.name,
		"used":       b.used,
		"limit":      b.max,
		"reset_time": b.resetTime.Format(time.RFC3339),
	}
}

func (b *Budget) checkReset() {
	if b.now().After(b.resetTime) {
		slog.Info("resetting call budget", "upstream", b.name, "used", b.used)
		b.used = 0
		b.resetTime = b.now().Add(24 * time.Hour)
	}
}
