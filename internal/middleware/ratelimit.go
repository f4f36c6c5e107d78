package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/guildhall/guildhall-backend/pkg/clientip"
)

// Per-IP API rate limit. Authenticated traffic gets more headroom than
// anonymous traffic: signed-in users switching groups fire bursts of
// legitimate requests, while unauthenticated scans should hit the wall fast.

const (
	rateLimitAuthRPS   = 5.0 // 300/min
	rateLimitAuthBurst = 40
	rateLimitAnonRPS   = 0.5 // 30/min
	rateLimitAnonBurst = 10
	rateLimitCleanup   = 5 * time.Minute
	rateLimitEntryTTL  = 30 * time.Minute
)

type limiterEntry struct {
	limiter *rate.Limiter
	lastUse time.Time
}

var (
	limiterEntries   = make(map[string]*limiterEntry)
	limiterEntriesMu sync.Mutex
	limiterCleanup   bool
)

func getLimiter(ip string, authenticated bool) *rate.Limiter {
	key := "anon:" + ip
	if authenticated {
		key = "auth:" + ip
	}

	limiterEntriesMu.Lock()
	defer limiterEntriesMu.Unlock()
	startLimiterCleanupOnce()

	e, ok := limiterEntries[key]
	if !ok {
		if authenticated {
			e = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(rateLimitAuthRPS), rateLimitAuthBurst)}
		} else {
			e = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(rateLimitAnonRPS), rateLimitAnonBurst)}
		}
		limiterEntries[key] = e
	}
	e.lastUse = time.Now()
	return e.limiter
}

func startLimiterCleanupOnce() {
	if limiterCleanup {
		return
	}
	limiterCleanup = true
	go func() {
		ticker := time.NewTicker(rateLimitCleanup)
		defer ticker.Stop()
		for range ticker.C {
			limiterEntriesMu.Lock()
			now := time.Now()
			for k, e := range limiterEntries {
				if now.Sub(e.lastUse) > rateLimitEntryTTL {
					delete(limiterEntries, k)
				}
			}
			limiterEntriesMu.Unlock()
		}
	}()
}

func hasBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") && len(strings.TrimPrefix(auth, "Bearer ")) > 0 {
		return true
	}
	return r.URL.Query().Get("token") != ""
}

// RateLimit applies the per-IP limiter to every request except the
// WebSocket gateway, which holds one long-lived connection.
func RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/ws/") {
			next.ServeHTTP(w, r)
			return
		}

		ip := clientip.RealClientIP(r)
		auth := hasBearerToken(r)
		limiter := getLimiter(ip, auth)

		limit := rateLimitAnonBurst
		if auth {
			limit = rateLimitAuthBurst
		}
		if !limiter.Allow() {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"success":false,"message":"Too many requests. Please slow down."}`))
			return
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
		next.ServeHTTP(w, r)
	})
}
