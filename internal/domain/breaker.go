package domain

import (
	"sync"
	"time"
)

// BreakerState is the circuit breaker state.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerOpen:
		return "OPEN"
	case BreakerHalfOpen:
		return "HALF_OPEN"
	default:
		return "CLOSED"
	}
}

// Breaker tracks consecutive order failures and enforces a cooldown.
//
// CLOSED: normal operation. After threshold consecutive failures → OPEN.
// OPEN:   commands rejected locally until cooldown elapses → HALF_OPEN.
// HALF_OPEN: one probe allowed; success → CLOSED, failure → OPEN with the
// cooldown doubled (capped).
type Breaker struct {
	mu          sync.Mutex
	state       BreakerState
	failures    int
	threshold   int
	cooldown    time.Duration
	baseCool    time.Duration
	maxCool     time.Duration
	openedAt    time.Time
	lastFailure string
	now         func() time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker(threshold int, cooldown, maxCooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 3
	}
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		baseCool:  cooldown,
		maxCool:   maxCooldown,
		now:       time.Now,
	}
}

// SetClock overrides the time source. Tests only.
func (b *Breaker) SetClock(now func() time.Time) {
	b.mu.Lock()
	b.now = now
	b.mu.Unlock()
}

// Allow reports whether a command may proceed. In OPEN, the call transitions
// to HALF_OPEN once the cooldown elapsed and then allows exactly one probe.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case BreakerClosed, BreakerHalfOpen:
		return true
	case BreakerOpen:
		if b.now().Sub(b.openedAt) >= b.cooldown {
			b.state = BreakerHalfOpen
			return true
		}
		return false
	}
	return true
}

// RecordSuccess resets the failure counter; a HALF_OPEN probe closes the
// breaker and restores the base cooldown.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.state = BreakerClosed
	b.cooldown = b.baseCool
	b.lastFailure = ""
}

// RecordFailure counts a non-success outcome. In HALF_OPEN the probe failure
// reopens immediately with the cooldown doubled.
func (b *Breaker) RecordFailure(reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastFailure = reason
	switch b.state {
	case BreakerHalfOpen:
		b.cooldown = min(b.cooldown*2, b.maxCool)
		b.open()
	case BreakerClosed:
		b.failures++
		if b.failures >= b.threshold {
			b.open()
		}
	}
}

func (b *Breaker) open() {
	b.state = BreakerOpen
	b.failures = 0
	b.openedAt = b.now()
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// LastFailure returns the reason recorded on the most recent failure.
func (b *Breaker) LastFailure() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastFailure
}
