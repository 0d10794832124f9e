// Package resilience tracks provider failures so chains can skip a provider
// that keeps failing.
package resilience

import (
	"sync"
	"time"
)

// Breaker opens after Threshold failures inside Window and stays open for Cooldown.
type Breaker struct {
	Threshold int
	Window    time.Duration
	Cooldown  time.Duration

	mu        sync.Mutex
	fails     []time.Time
	openUntil time.Time
	now       func() time.Time
}

// NewBreaker returns a breaker with 3 failures / 60s / 30s.
func NewBreaker() *Breaker {
	return &Breaker{Threshold: 3, Window: 60 * time.Second, Cooldown: 30 * time.Second, now: time.Now}
}

func (b *Breaker) clock() time.Time {
	if b.now == nil {
		return time.Now()
	}
	return b.now()
}

// Allow reports whether a call may go through.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.clock().Before(b.openUntil)
}

// Failure records a failed call and reports whether the circuit just opened.
func (b *Breaker) Failure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.clock()
	b.fails = append(b.fails, now)
	// prune older than window
	cutoff := now.Add(-b.Window)
	j := 0
	for _, t := range b.fails {
		if t.After(cutoff) {
			b.fails[j] = t
			j++
		}
	}
	b.fails = b.fails[:j]
	if len(b.fails) >= b.Threshold {
		b.openUntil = now.Add(b.Cooldown)
		b.fails = nil
		return true
	}
	return false
}

func (b *Breaker) Success() {
	b.mu.Lock()
	b.fails = nil
	b.mu.Unlock()
}
