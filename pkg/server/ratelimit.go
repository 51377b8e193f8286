package server

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limitSweepInterval = 5 * time.Minute
	limitIdleTTL       = 10 * time.Minute
)

// clientLimits keeps one token bucket per client address. Buckets refill
// at perMinute/60 tokens per second and hold up to perMinute tokens.
type clientLimits struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	refill  time.Duration
	clients map[string]*clientBucket
	now     func() time.Time
}

type clientBucket struct {
	limiter *rate.Limiter
	seen    time.Time
}

func newClientLimits(perMinute int) *clientLimits {
	return &clientLimits{
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   perMinute,
		refill:  time.Minute / time.Duration(perMinute),
		clients: make(map[string]*clientBucket),
		now:     time.Now,
	}
}

// allow takes a token for addr. When none is left it returns the refill
// interval of one token.
func (c *clientLimits) allow(addr string) (bool, time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	b, ok := c.clients[addr]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(c.limit, c.burst)}
		c.clients[addr] = b
	}

	b.seen = now

	if b.limiter.AllowN(now, 1) {
		return true, 0
	}

	return false, c.refill
}

// sweep drops buckets idle for longer than ttl and returns how many were
// dropped.
func (c *clientLimits) sweep(ttl time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-ttl)
	dropped := 0

	for addr, b := range c.clients {
		if b.seen.Before(cutoff) {
			delete(c.clients, addr)
			dropped++
		}
	}

	return dropped
}

// limitRequests rejects clients exceeding perMinute requests with 429.
// Idle buckets are swept until the server stops.
func (s *server) limitRequests(perMinute int) func(http.Handler) http.Handler {
	limits := newClientLimits(perMinute)

	s.every(limitSweepInterval, func() {
		if n := limits.sweep(limitIdleTTL); n > 0 {
			s.log.WithField("dropped", n).Debug("Swept idle rate limit buckets")
		}
	})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait := limits.allow(clientAddr(r))
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// every runs fn at each interval until the server stops.
func (s *server) every(interval time.Duration, fn func()) {
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				fn()
			case <-s.done:
				return
			}
		}
	}()
}

// clientAddr is the first X-Forwarded-For entry, or the host part of the
// remote address.
func clientAddr(r *http.Request) string {
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
