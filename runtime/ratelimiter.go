package runtime

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultLimiterIdleTTL = 10 * time.Minute

// EventLimiter applies one token bucket per user to inbound events and
// periodically evicts buckets of users that went quiet.
type EventLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	mu     sync.Mutex
	byUser map[string]*limiterEntry
	hits   uint64
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewEventLimiter returns nil when rps or burst is not positive,
// a nil limiter allows everything.
func NewEventLimiter(rps float64, burst int, idleTTL time.Duration) *EventLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	if idleTTL <= 0 {
		idleTTL = defaultLimiterIdleTTL
	}
	return &EventLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: idleTTL,
		byUser:  make(map[string]*limiterEntry),
	}
}

func (l *EventLimiter) Allow(userID string, now time.Time) bool {
	if l == nil || userID == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byUser[userID]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byUser[userID] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%512 == 0 {
		l.evictIdle(now)
	}
	return allowed
}

func (l *EventLimiter) evictIdle(now time.Time) {
	cutoff := now.Add(-l.idleTTL)
	for k, v := range l.byUser {
		if v.lastSeen.Before(cutoff) {
			delete(l.byUser, k)
		}
	}
}

func (l *EventLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byUser)
}
