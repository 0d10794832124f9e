package resilience

import (
	"testing"
	"time"
)

func TestBreakerOpensAndRecovers(t *testing.T) {
	now := time.Unix(1000, 0)
	b := NewBreaker()
	b.now = func() time.Time { return now }

	if b.Failure() || b.Failure() {
		t.Fatalf("circuit opened too early")
	}
	if !b.Failure() {
		t.Fatalf("expected circuit to open on third failure")
	}
	if b.Allow() {
		t.Fatalf("open circuit must reject calls")
	}
	now = now.Add(31 * time.Second)
	if !b.Allow() {
		t.Fatalf("circuit should close after cooldown")
	}
}

func TestBreakerForgetsOldFailures(t *testing.T) {
	now := time.Unix(1000, 0)
	b := NewBreaker()
	b.now = func() time.Time { return now }

	b.Failure()
	b.Failure()
	now = now.Add(61 * time.Second)
	if b.Failure() {
		t.Fatalf("failures outside the window must not count")
	}
	if !b.Allow() {
		t.Fatalf("expected closed circuit")
	}
}
