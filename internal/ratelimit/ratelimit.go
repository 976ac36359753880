// Package ratelimit enforces daily request budgets for the paid upstream
// services (embedding inference and the research agent).
package ratelimit

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Service names used as budget keys.
const (
	ServiceEmbedding = "embedding"
	ServiceResearch  = "research"
)

// Budget tracks per-service and total daily request counts. Counters reset
// 24 hours after the previous reset. A limit of 0 means unlimited.
type Budget struct {
	mu        sync.Mutex
	counts    map[string]int
	limits    map[string]int
	total     int
	maxTotal  int
	resetTime time.Time
}

func NewBudget(maxTotal int) *Budget {
	return &Budget{
		counts:    make(map[string]int),
		limits:    make(map[string]int),
		maxTotal:  maxTotal,
		resetTime: time.Now().Add(24 * time.Hour),
	}
}

// SetLimit configures the daily cap for one service.
func (b *Budget) SetLimit(service string, max int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.limits[service] = max
}

// Allow reports whether one more request to service fits the budget without
// consuming it.
func (b *Budget) Allow(service string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.checkReset()
	return b.allowLocked(service)
}

// Use consumes one request from the budget, failing when exhausted.
func (b *Budget) Use(service string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.checkReset()
	if !b.allowLocked(service) {
		return fmt.Errorf("%s daily budget exhausted (%d/%d, total %d/%d)",
			service, b.counts[service], b.limits[service], b.total, b.maxTotal)
	}

	b.counts[service]++
	b.total++
	return nil
}

func (b *Budget) allowLocked(service string) bool {
	if limit := b.limits[service]; limit > 0 && b.counts[service] >= limit {
		slog.Warn("service budget reached", "service", service, "used", b.counts[service], "limit", limit)
		return false
	}
	if b.maxTotal > 0 && b.total >= b.maxTotal {
		slog.Warn("total request budget reached", "used", b.total, "limit", b.maxTotal)
		return false
	}
	return true
}

// Stats returns a snapshot for the monitoring endpoint.
func (b *Budget) Stats() map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()

	stats := map[string]any{
		"total_used":  b.total,
		"total_limit": b.maxTotal,
		"reset_time":  b.resetTime.Format(time.RFC3339),
	}
	for service, count := range b.counts {
		stats[service+"_used"] = count
		stats[service+"_limit"] = b.limits[service]
	}
	return stats
}

func (b *Budget) checkReset() {
	if time.Now().Before(b.resetTime) {
		return
	}
	slog.Info("resetting daily request budgets", "total_used", b.total)
	b.counts = make(map[string]int)
	b.total = 0
	b.resetTime = time.Now().Add(24 * time.Hour)
}
