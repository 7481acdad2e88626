package ratelimit

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// SourceLimiter manages one rate.Limiter per outbound source name (the
// catalog client keys it by catalog source), so a slow or strict upstream
// never starves the others. Lazily creates a limiter per source on first use
// and discards every tracked limiter once an hour.
type SourceLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	r        rate.Limit
	b        int
}

// New creates a limiter that allows r events per second per source, with
// burst b.
func New(r rate.Limit, b int) *SourceLimiter {
	l := &SourceLimiter{
		limiters: make(map[string]*rate.Limiter),
		r:        r,
		b:        b,
	}
	go l.cleanupLoop()
	return l
}

// Get returns the limiter for a given source, creating it if absent.
func (l *SourceLimiter) Get(source string) *rate.Limiter {
	l.mu.RLock()
	limiter, ok := l.limiters[source]
	l.mu.RUnlock()
	if ok {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok = l.limiters[source]
	if !ok {
		limiter = rate.NewLimiter(l.r, l.b)
		l.limiters[source] = limiter
	}
	return limiter
}

func (l *SourceLimiter) cleanupLoop() {
	for {
		time.Sleep(1 * time.Hour)
		l.mu.Lock()
		slog.Debug("resetting rate limiter map", "tracked_sources", len(l.limiters))
		l.limiters = make(map[string]*rate.Limiter)
		l.mu.Unlock()
	}
}
