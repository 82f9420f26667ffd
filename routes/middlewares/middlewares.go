package middlewares

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/oauth"
	"github.com/mbolis/cerimonial/log"
	"golang.org/x/time/rate"
)

// Admin checks for the 'admin' role in an OAuth token signed with secret.
func Admin(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return chi.Chain(oauth.Authorize(secret, nil), admin).Handler(next)
	}
}

func admin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := r.Context().Value(oauth.ClaimsContext).(map[string]string)

		isAdmin := false
		if rolesClaim, ok := claims["roles"]; ok {
			for _, role := range strings.Split(rolesClaim, ",") {
				if strings.TrimSpace(role) == "admin" {
					isAdmin = true
					break
				}
			}
		}

		if !isAdmin {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// idle limiters are dropped after this long
const limiterIdle = 10 * time.Minute

type limiter struct {
	*rate.Limiter
	seen time.Time
}

type limiters struct {
	mu    sync.Mutex
	every rate.Limit
	burst int
	byKey map[string]*limiter
	swept time.Time
}

func (l *limiters) get(key string, now time.Time) *limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.swept) > limiterIdle {
		for k, lim := range l.byKey {
			if now.Sub(lim.seen) > limiterIdle {
				delete(l.byKey, k)
			}
		}
		l.swept = now
	}

	lim, ok := l.byKey[key]
	if !ok {
		lim = &limiter{Limiter: rate.NewLimiter(l.every, l.burst)}
		l.byKey[key] = lim
	}
	lim.seen = now
	return lim
}

// Throttle limits requests sharing the same key to perSecond, allowing
// bursts of burst. Requests with an empty key pass through.
func Throttle(perSecond float64, burst int, key func(*http.Request) string) func(http.Handler) http.Handler {
	l := &limiters{
		every: rate.Limit(perSecond),
		burst: burst,
		byKey: map[string]*limiter{},
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}

			now := time.Now()
			res := l.get(k, now).ReserveN(now, 1)
			if delay := res.DelayFrom(now); delay > 0 {
				res.CancelAt(now)
				log.Debugf("throttle: %s retry in %s", k, delay)
				w.Header().Set("retry-after", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// URLParam keys throttling on a route parameter.
func URLParam(name string) func(*http.Request) string {
	return func(r *http.Request) string {
		return chi.URLParam(r, name)
	}
}
