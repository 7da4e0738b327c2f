package crawler

import (
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// hostTokens is a per-host token bucket. Unlike the teacher's
// RateLimiter, Allow never blocks: a worker unable to acquire a token
// yields its claimed URL back to PENDING instead of stalling the pool
// behind one slow host.
type hostTokens struct {
	mu           sync.Mutex
	limiters     map[string]*rate.Limiter
	defaultDelay time.Duration
	robots       robotsDelayLookup
}

// robotsDelayLookup is the subset of robotscache.Cache hostTokens needs.
type robotsDelayLookup interface {
	CrawlDelay(host string) time.Duration
}

func newHostTokens(perHostRPS float64, robots robotsDelayLookup) *hostTokens {
	delay := time.Duration(0)
	if perHostRPS > 0 {
		delay = time.Duration(float64(time.Second) / perHostRPS)
	}
	return &hostTokens{
		limiters:     make(map[string]*rate.Limiter),
		defaultDelay: delay,
		robots:       robots,
	}
}

// Allow reports whether rawURL's host currently has an available token,
// without blocking.
func (h *hostTokens) Allow(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	return h.limiterFor(u.Host).Allow()
}

func (h *hostTokens) limiterFor(host string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()

	if l, ok := h.limiters[host]; ok {
		return l
	}

	delay := h.defaultDelay
	if h.robots != nil {
		if rd := h.robots.CrawlDelay(host); rd > delay {
			delay = rd
		}
	}
	if delay <= 0 {
		delay = time.Millisecond
	}

	l := rate.NewLimiter(rate.Every(delay), 1)
	h.limiters[host] = l
	return l
}
