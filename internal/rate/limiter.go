package rate

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type entry struct {
	limiter *rate.Limiter
	last    time.Time
}

// LimiterMap hands out one token bucket per key (client IP for inbound
// requests, upstream host for outbound API calls). Idle buckets are evicted
// after ttl.
type LimiterMap struct {
	mu       sync.Mutex
	limiters map[string]*entry
	rpm      int
	burst    int
	ttl      time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewLimiterMap creates a LimiterMap and starts its reaper goroutine. Call Stop when done.
func NewLimiterMap(rpm, burst int, ttl time.Duration) *LimiterMap {
	if rpm < 1 {
		rpm = 1
	}
	if burst < 1 {
		burst = 1
	}
	lm := &LimiterMap{
		limiters: make(map[string]*entry),
		rpm:      rpm,
		burst:    burst,
		ttl:      ttl,
		stopCh:   make(chan struct{}),
	}
	go lm.reaper()
	return lm
}

func (l *LimiterMap) reaper() {
	t := time.NewTicker(l.ttl)
	defer t.Stop()
	for {
		select {
		case <-l.stopCh:
			return
		case now := <-t.C:
			l.mu.Lock()
			for k, e := range l.limiters {
				if now.Sub(e.last) > l.ttl {
					delete(l.limiters, k)
				}
			}
			l.mu.Unlock()
		}
	}
}

// Stop stops the reaper. Safe to call more than once.
func (l *LimiterMap) Stop() { l.stopOnce.Do(func() { close(l.stopCh) }) }

func (l *LimiterMap) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.limiters[key]; ok {
		e.last = time.Now()
		return e.limiter
	}
	lim := rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.rpm)), l.burst)
	l.limiters[key] = &entry{limiter: lim, last: time.Now()}
	return lim
}

// Allow reports whether a request for key may proceed right now.
func (l *LimiterMap) Allow(key string) bool {
	return l.get(key).Allow()
}

// Wait blocks until key has a token or ctx is done.
func (l *LimiterMap) Wait(ctx context.Context, key string) error {
	return l.get(key).Wait(ctx)
}

// Len returns the number of live buckets.
func (l *LimiterMap) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// IPFromRequest extracts the client IP, preferring the first X-Forwarded-For hop.
func IPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// HostKey returns the host[:port] a request targets, used to key outbound limiters.
func HostKey(req *http.Request) string {
	if req.URL == nil {
		return ""
	}
	return req.URL.Host
}
