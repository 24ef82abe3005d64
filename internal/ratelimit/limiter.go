// Package ratelimit spaces outbound requests per host and throttles manual
// trigger endpoints.
package ratelimit

import (
	"sync"
	"time"
)

// RateLimiter gates an action per key.
type RateLimiter interface {
	Allow(key string) bool
}

// Limiter enforces a minimum interval between requests to the same host.
type Limiter struct {
	mu          sync.Mutex
	hosts       map[string]time.Time
	minInterval time.Duration
}

// New creates a limiter with the given minimum interval between requests to
// one host.
func New(minInterval time.Duration) *Limiter {
	return &Limiter{
		hosts:       make(map[string]time.Time),
		minInterval: minInterval,
	}
}

// Allow reports whether a request to the host may proceed now, and records
// it if so.
func (l *Limiter) Allow(host string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	last, ok := l.hosts[host]
	if ok && time.Since(last) < l.minInterval {
		return false
	}

	l.hosts[host] = time.Now()
	return true
}

// Wait blocks until the host's minimum interval has elapsed, then records
// the request.
func (l *Limiter) Wait(host string) {
	for {
		l.mu.Lock()
		last, ok := l.hosts[host]
		if !ok || time.Since(last) >= l.minInterval {
			l.hosts[host] = time.Now()
			l.mu.Unlock()
			return
		}
		sleep := l.minInterval - time.Since(last)
		l.mu.Unlock()
		time.Sleep(sleep)
	}
}

// Reset forgets a host's last request time.
func (l *Limiter) Reset(host string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.hosts, host)
}

// ResetAll forgets every host.
func (l *Limiter) ResetAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hosts = make(map[string]time.Time)
}

var _ RateLimiter = (*Limiter)(nil)
