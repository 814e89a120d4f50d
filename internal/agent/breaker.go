package agent

import (
	"sync"
	"time"
)

// Breaker counts consecutive failed sends to one agent. At the threshold it
// refuses calls until the cool-down ends, then admits a single probe whose
// outcome closes or re-opens it.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	failures  int
	openUntil time.Time // zero while closed
	probing   bool
	now       func() time.Time
}

func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Allow reports whether a call may go out now.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.openUntil.IsZero() {
		return true
	}
	if b.now().Before(b.openUntil) || b.probing {
		return false
	}

	b.probing = true
	return true
}

// Record feeds back the result of a call admitted by Allow.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.failures = 0
		b.openUntil = time.Time{}
		b.probing = false
		return
	}

	b.failures++
	if b.probing || b.failures >= b.threshold {
		b.openUntil = b.now().Add(b.cooldown)
		b.probing = false
	}
}

// Open reports whether calls are refused right now.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.openUntil.IsZero() && (b.now().Before(b.openUntil) || b.probing)
}

// breakerSet holds one Breaker per agent id so a failing agent does not
// block the others.
type breakerSet struct {
	mu        sync.Mutex
	byAgent   map[string]*Breaker
	threshold int
	cooldown  time.Duration
}

func newBreakerSet(threshold int, cooldown time.Duration) *breakerSet {
	return &breakerSet{
		byAgent:   make(map[string]*Breaker),
		threshold: threshold,
		cooldown:  cooldown,
	}
}

func (s *breakerSet) get(agentID string) *Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.byAgent[agentID]
	if !ok {
		b = NewBreaker(s.threshold, s.cooldown)
		s.byAgent[agentID] = b
	}
	return b
}
