package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	svcerrors "github.com/beanhop/backend/internal/errors"
	"github.com/beanhop/backend/internal/httputil"
	"github.com/beanhop/backend/pkg/logger"
	"golang.org/x/time/rate"
)

const (
	// maxTrackedClients caps the limiter table. New clients beyond it share
	// one overflow bucket until idle entries are swept.
	maxTrackedClients = 10000
	defaultIdleTTL    = 10 * time.Minute
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles requests per client address.
type RateLimiter struct {
	mu       sync.Mutex
	clients  map[string]*clientLimiter
	overflow *rate.Limiter
	rate     rate.Limit
	burst    int
	idleTTL  time.Duration
	trusted  []*net.IPNet
	logger   *logger.Logger
	now      func() time.Time
}

// RateLimiterOption customizes a RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithTrustedProxies makes the limiter key on X-Forwarded-For when the
// direct peer is one of these networks.
func WithTrustedProxies(nets []*net.IPNet) RateLimiterOption {
	return func(rl *RateLimiter) { rl.trusted = nets }
}

// WithIdleTTL sets how long an unused client bucket survives a sweep.
func WithIdleTTL(d time.Duration) RateLimiterOption {
	return func(rl *RateLimiter) {
		if d > 0 {
			rl.idleTTL = d
		}
	}
}

// NewRateLimiter creates a per-client rate limiter.
func NewRateLimiter(requestsPerSecond int, burst int, log *logger.Logger, opts ...RateLimiterOption) *RateLimiter {
	rl := &RateLimiter{
		clients:  make(map[string]*clientLimiter),
		overflow: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
		idleTTL:  defaultIdleTTL,
		logger:   log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(rl)
	}
	return rl
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if c, ok := rl.clients[key]; ok {
		c.lastSeen = now
		return c.limiter
	}
	if len(rl.clients) >= maxTrackedClients {
		rl.sweepLocked(now)
		if len(rl.clients) >= maxTrackedClients {
			return rl.overflow
		}
	}
	c := &clientLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst), lastSeen: now}
	rl.clients[key] = c
	return c.limiter
}

// Handler returns the rate limiting middleware handler.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.clientKey(r)

		if !rl.getLimiter(key).Allow() {
			if rl.logger != nil {
				rl.logger.LogSecurityEvent(r.Context(), "rate_limit_exceeded", map[string]interface{}{
					"key":    key,
					"path":   r.URL.Path,
					"method": r.Method,
				})
			}

			serviceErr := svcerrors.RateLimitExceeded(int(rl.rate), "1s")
			w.Header().Set("Retry-After", "1")
			httputil.WriteError(w, serviceErr.HTTPStatus, serviceErr.Message)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Cleanup drops buckets idle for longer than the idle TTL and returns how
// many were removed.
func (rl *RateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.sweepLocked(rl.now())
}

func (rl *RateLimiter) sweepLocked(now time.Time) int {
	removed := 0
	for key, c := range rl.clients {
		if now.Sub(c.lastSeen) > rl.idleTTL {
			delete(rl.clients, key)
			removed++
		}
	}
	return removed
}

// Run sweeps idle buckets every interval until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := rl.Cleanup(); n > 0 && rl.logger != nil {
				rl.logger.WithContext(ctx).WithField("removed", n).Debug("rate limiter swept idle clients")
			}
		}
	}
}

// Tracked returns the number of clients currently tracked.
func (rl *RateLimiter) Tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// clientKey is the peer address, or the nearest untrusted X-Forwarded-For
// hop when the peer is a trusted proxy.
func (rl *RateLimiter) clientKey(r *http.Request) string {
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		peer = r.RemoteAddr
	}
	if !rl.isTrusted(peer) {
		return peer
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !rl.isTrusted(hop) {
			return hop
		}
	}
	return peer
}

func (rl *RateLimiter) isTrusted(addr string) bool {
	if len(rl.trusted) == 0 {
		return false
	}
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, n := range rl.trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// ParseTrustedProxies turns IPs and CIDRs into networks. A bare IP becomes a
// single-host network.
func ParseTrustedProxies(entries []string) ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !strings.Contains(e, "/") {
			ip := net.ParseIP(e)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy %q", e)
			}
			bits := 128
			if ip.To4() != nil {
				ip = ip.To4()
				bits = 32
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(e)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", e, err)
		}
		nets = append(nets, n)
	}
	return nets, nil
}
