package middleware

import (
	"net/http"
	"time"

	"tubefetch/internal/observability"
)

// statusRecorder captures the status code and body size of a response.
// Unwrap keeps http.ResponseController able to flush event streams.
type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.status == 0 {
		sr.status = code
	}

	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}

	n, err := sr.ResponseWriter.Write(b)
	sr.size += n

	return n, err
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

// Metrics records request count, duration and response size per route.
// Paths outside routes are folded into one label to bound cardinality.
func Metrics(m *observability.Metrics, routes ...string) func(http.Handler) http.Handler {
	known := make(map[string]struct{}, len(routes))
	for _, route := range routes {
		known[route] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}

			next.ServeHTTP(rec, r)

			path := r.URL.Path
			if _, ok := known[path]; !ok {
				path = "unmatched"
			}

			if rec.status == 0 {
				rec.status = http.StatusOK
			}

			m.RecordHTTPRequest(r.Method, path, rec.status, time.Since(start), rec.size)
		})
	}
}
