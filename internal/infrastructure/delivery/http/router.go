// Package httprouter wires the HTTP API onto the video service.
package httprouter

import (
	"log/slog"
	"net/http"
	"slices"

	"tubefetch/internal/config"
	"tubefetch/internal/consts"
	"tubefetch/internal/infrastructure/delivery/http/middleware"
	"tubefetch/internal/observability"
	"tubefetch/internal/service"
)

// API routes, also used as metric labels.
const (
	RouteVideoInfo = "/api/video-info"
	RouteProgress  = "/api/progress"
	RouteDownload  = "/api/download"
	RouteReadyz    = "/v1/readyz"
	RouteMetrics   = "/metrics"
)

// Router is a ServeMux with global and per-group middleware chains.
type Router struct {
	*http.ServeMux
	log         *slog.Logger
	cfg         *config.Config
	svc         service.Video
	metrics     *observability.Metrics
	globalChain []func(http.Handler) http.Handler
	routeChain  []func(http.Handler) http.Handler
	isSubRouter bool
}

// New creates the router with all routes registered.
func New(log *slog.Logger, cfg *config.Config, svc service.Video, metrics *observability.Metrics) *Router {
	r := &Router{
		ServeMux: http.NewServeMux(),
		log:      log.With(slog.String("package", "httprouter")),
		cfg:      cfg,
		svc:      svc,
		metrics:  metrics,
	}

	r.SetGlobalMiddlewares()
	r.SetRoutes()

	return r
}

// Use appends middleware to the global chain, or to the group chain inside Group.
func (r *Router) Use(middleware ...func(http.Handler) http.Handler) {
	if r.isSubRouter {
		r.routeChain = append(r.routeChain, middleware...)
	} else {
		r.globalChain = append(r.globalChain, middleware...)
	}
}

// Group registers routes sharing the middleware added inside fn.
func (r *Router) Group(fn func(r *Router)) {
	subRouter := &Router{
		ServeMux:    r.ServeMux,
		log:         r.log,
		cfg:         r.cfg,
		svc:         r.svc,
		metrics:     r.metrics,
		routeChain:  slices.Clone(r.routeChain),
		isSubRouter: true,
	}

	fn(subRouter)
}

func (r *Router) HandleFunc(pattern string, h http.HandlerFunc) {
	r.Handle(pattern, h)
}

func (r *Router) Handle(pattern string, h http.Handler) {
	for _, middleware := range slices.Backward(r.routeChain) {
		h = middleware(h)
	}

	r.ServeMux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	var h http.Handler = r.ServeMux

	for _, middleware := range slices.Backward(r.globalChain) {
		h = middleware(h)
	}

	h.ServeHTTP(w, req)
}

// SetGlobalMiddlewares installs middleware applied before routing.
// CORS runs here so preflight requests never reach the method-bound routes.
func (r *Router) SetGlobalMiddlewares() {
	r.Use(
		middleware.Recoverer,
		middleware.RequestID,
		middleware.Logger,
		middleware.Metrics(r.metrics, RouteVideoInfo, RouteProgress, RouteDownload, RouteReadyz, RouteMetrics),
		middleware.CORS(r.cfg.HTTP.AllowedOrigins),
	)
}

func (r *Router) SetRoutes() {
	r.SetRoutesHealthcheck()
	r.SetRoutesAPI()
	r.Handle("GET "+RouteMetrics, observability.Handler())
}

func (r *Router) SetRoutesHealthcheck() {
	healthcheckRouter := &Router{
		ServeMux: http.NewServeMux(),
	}
	healthcheckRouter.HandleFunc("GET /readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Handle("/v1/", http.StripPrefix("/v1", healthcheckRouter))
}

func (r *Router) SetRoutesAPI() {
	r.Group(func(api *Router) {
		api.Use(middleware.RateLimit(r.cfg.HTTP.RateLimit, r.cfg.HTTP.RateBurst, consts.RespTooManyRequests))

		api.HandleFunc("POST "+RouteVideoInfo, api.VideoInfo)
		api.HandleFunc("GET "+RouteProgress, api.Progress)
		api.HandleFunc("POST "+RouteDownload, api.Download)
	})
}
