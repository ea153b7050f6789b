package shield

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Rule is a fixed-window rate limit for one path prefix.
type Rule struct {
	MaxRequests int
	Window      time.Duration
}

type bucket struct {
	mu      sync.Mutex
	count   int
	resetAt time.Time
}

// RateLimiter applies per-IP fixed-window limits keyed by path prefix.
// Requests matching no rule pass through unlimited. The longest matching
// prefix wins, so a tight rule on /v1/documents can coexist with a looser
// one on /v1.
type RateLimiter struct {
	rules   map[string]Rule
	buckets sync.Map
}

// NewRateLimiter creates a limiter from prefix → rule mappings. Rules with
// MaxRequests <= 0 are ignored.
func NewRateLimiter(rules map[string]Rule) *RateLimiter {
	rl := &RateLimiter{rules: make(map[string]Rule, len(rules))}
	for prefix, rule := range rules {
		if rule.MaxRequests > 0 {
			if rule.Window <= 0 {
				rule.Window = time.Minute
			}
			rl.rules[prefix] = rule
		}
	}
	return rl
}

// Middleware rejects over-limit requests with 429 and a Retry-After header.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefix, rule, ok := rl.match(r.URL.Path)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		retryAfter, allowed := rl.allow(ClientIP(r)+":"+prefix, rule)
		if !allowed {
			w.Header().Set("Retry-After", retryAfter)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) match(path string) (string, Rule, bool) {
	var bestPrefix string
	var bestRule Rule
	found := false
	for prefix, rule := range rl.rules {
		if strings.HasPrefix(path, prefix) && len(prefix) > len(bestPrefix) {
			bestPrefix, bestRule, found = prefix, rule, true
		}
	}
	return bestPrefix, bestRule, found
}

func (rl *RateLimiter) allow(key string, rule Rule) (string, bool) {
	now := time.Now()
	val, _ := rl.buckets.LoadOrStore(key, &bucket{resetAt: now.Add(rule.Window)})
	b := val.(*bucket)

	b.mu.Lock()
	defer b.mu.Unlock()
	if now.After(b.resetAt) {
		b.count = 0
		b.resetAt = now.Add(rule.Window)
	}
	b.count++
	if b.count > rule.MaxRequests {
		secs := int(time.Until(b.resetAt).Seconds()) + 1
		return strconv.Itoa(secs), false
	}
	return "", true
}

// StartGC evicts expired buckets periodically until ctx is cancelled.
func (rl *RateLimiter) StartGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				now := time.Now()
				rl.buckets.Range(func(key, value any) bool {
					b := value.(*bucket)
					b.mu.Lock()
					expired := now.After(b.resetAt)
					b.mu.Unlock()
					if expired {
						rl.buckets.Delete(key)
					}
					return true
				})
			}
		}
	}()
}
