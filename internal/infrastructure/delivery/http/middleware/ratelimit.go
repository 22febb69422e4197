package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"tubefetch/internal/infrastructure/delivery/http/response"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const (
	maxTrackedClients = 4096
	clientIdleTTL     = 10 * time.Minute
)

// RateLimit allows each client address rps requests per second with the given burst.
// A non-positive rps disables limiting.
func RateLimit(rps float64, burst int, message string) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	var (
		mu       sync.Mutex
		limiters = expirable.NewLRU[string, *rate.Limiter](maxTrackedClients, nil, clientIdleTTL)
	)

	// limiterFor returns the client's limiter, creating it on first use.
	// Re-adding refreshes the idle TTL of active clients.
	limiterFor := func(client string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()

		limiter, ok := limiters.Get(client)
		if !ok {
			limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}

		limiters.Add(client, limiter)

		return limiter
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiterFor(clientAddr(r)).Allow() {
				w.Header().Set("Retry-After", "1")
				response.TooManyRequests(w, message)

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
