package http

import (
	"sync"
	"time"

	"github.com/dkeye/VideoChat/internal/domain"
)

type matchWindow struct {
	attempts []time.Time
	room     domain.RoomID
}

// MatchRateLimiter is a sliding window limiter keyed by client address.
// It also remembers the last room handed to each key so a throttled client
// can be given that room again instead of a new one.
type MatchRateLimiter struct {
	mu       sync.Mutex
	history  map[string]*matchWindow
	limit    int
	interval time.Duration
	now      func() time.Time
	calls    int
}

func NewMatchRateLimiter(limit int, interval time.Duration) *MatchRateLimiter {
	return &MatchRateLimiter{
		history:  make(map[string]*matchWindow),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

// Allow records an attempt for key and reports whether it fits the window.
// A non-positive limit disables the check.
func (rl *MatchRateLimiter) Allow(key string) bool {
	if rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.interval)

	rl.calls++
	if rl.calls%1024 == 0 {
		rl.sweepLocked(windowStart)
	}

	w, ok := rl.history[key]
	if !ok {
		w = &matchWindow{}
		rl.history[key] = w
	}
	fresh := w.attempts[:0]
	for _, t := range w.attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	w.attempts = fresh

	if len(fresh) >= rl.limit {
		return false
	}
	w.attempts = append(fresh, now)
	return true
}

// Remember stores the room last handed out to key.
func (rl *MatchRateLimiter) Remember(key string, room domain.RoomID) {
	if rl.limit <= 0 {
		return
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if w, ok := rl.history[key]; ok {
		w.room = room
	}
}

func (rl *MatchRateLimiter) Last(key string) (domain.RoomID, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	w, ok := rl.history[key]
	if !ok || w.room == "" {
		return "", false
	}
	return w.room, true
}

// sweepLocked forgets keys with no attempt inside the window.
func (rl *MatchRateLimiter) sweepLocked(windowStart time.Time) {
	for key, w := range rl.history {
		if len(w.attempts) == 0 || !w.attempts[len(w.attempts)-1].After(windowStart) {
			delete(rl.history, key)
		}
	}
}

func (rl *MatchRateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.history)
}
