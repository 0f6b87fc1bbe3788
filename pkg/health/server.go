// Package health serves liveness, readiness and Prometheus metrics.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tinyland-inc/xnostr/pkg/metrics"
)

// ReadyFunc reports whether the process can do useful work, and a short
// state description for the response body.
type ReadyFunc func() (bool, string)

type Server struct {
	server  *http.Server
	started time.Time

	mu    sync.RWMutex
	ready ReadyFunc
}

type statusResponse struct {
	Status string `json:"status"`
	State  string `json:"state,omitempty"`
	Uptime string `json:"uptime"`
}

func NewServer(host string, port int) *Server {
	s := &Server{started: time.Now()}
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// SetReadyCheck installs the readiness probe. Without one /ready is always 200.
func (s *Server) SetReadyCheck(fn ReadyFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = fn
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(recordMetrics)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok", Uptime: s.uptime()})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	fn := s.ready
	s.mu.RUnlock()

	ok, state := true, ""
	if fn != nil {
		ok, state = fn()
	}
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, statusResponse{Status: "not ready", State: state, Uptime: s.uptime()})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ready", State: state, Uptime: s.uptime()})
}

func (s *Server) uptime() string {
	return time.Since(s.started).Truncate(time.Second).String()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func recordMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, routePattern(r), strconv.Itoa(status)).Inc()
	})
}

// routePattern keeps the path label bounded to registered routes.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
