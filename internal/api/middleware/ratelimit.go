package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	appErr "github.com/comfydeploy/engine/pkg/errors"
)

type limiterEntry struct {
	limiter *rate.Limiter
	last    time.Time
}

type visitors struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	rps     rate.Limit
	burst   int
	swept   time.Time
}

const (
	visitorIdle   = 10 * time.Minute
	sweepInterval = 5 * time.Minute
)

func getIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (v *visitors) allow(ip string, now time.Time) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if now.Sub(v.swept) > sweepInterval {
		for k, e := range v.entries {
			if now.Sub(e.last) > visitorIdle {
				delete(v.entries, k)
			}
		}
		v.swept = now
	}

	e, ok := v.entries[ip]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(v.rps, v.burst)}
		v.entries[ip] = e
	}
	e.last = now
	return e.limiter.AllowN(now, 1)
}

// RateLimit applies an IP-based token bucket limiter. Idle visitors are
// swept on the request path.
func RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	v := &visitors{entries: map[string]*limiterEntry{}, rps: rate.Limit(rps), burst: burst, swept: time.Now()}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !v.allow(getIP(r), time.Now()) {
				w.Header().Set("Retry-After", "1")
				writeError(w, r, appErr.New(appErr.CodeRateLimited, "rate limit exceeded"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
