package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/RuizOsvaldo/economic-dashboard/internal/api/handlers"
	"github.com/RuizOsvaldo/economic-dashboard/internal/monitoring"
	"github.com/RuizOsvaldo/economic-dashboard/pkg/logger"
)

// Handlers groups the endpoint handlers the router mounts
type Handlers struct {
	Health   *handlers.HealthHandler
	Views    *handlers.ViewsHandler
	Pipeline *handlers.PipelineHandler
}

// NewRouter creates and configures the HTTP router. metrics may be nil.
// ⭐ SSOT: routes are declared in this function only
func NewRouter(h Handlers, metrics *monitoring.Metrics, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.Health.Check).Methods("GET")
	if metrics != nil {
		r.Handle("/metrics", metrics.Handler()).Methods("GET")
	}

	// Read models. API routes stay on the root router so a wrong method gets 405.
	r.HandleFunc("/api/registry", h.Views.GetRegistry).Methods("GET")
	r.HandleFunc("/api/snapshot", h.Views.GetSnapshot).Methods("GET")
	r.HandleFunc("/api/dashboard", h.Views.GetDashboard).Methods("GET")
	r.HandleFunc("/api/series/wide", h.Views.GetWide).Methods("GET")
	r.HandleFunc("/api/series/{id}/metrics", h.Views.GetSeriesMetrics).Methods("GET")
	r.HandleFunc("/api/correlation", h.Views.GetCorrelation).Methods("GET")
	r.HandleFunc("/api/cycle-phase", h.Views.GetCyclePhase).Methods("GET")
	r.HandleFunc("/api/yield-curve", h.Views.GetYieldCurve).Methods("GET")

	// Pipeline
	r.HandleFunc("/api/pipeline/run", h.Pipeline.Run).Methods("POST")
	r.HandleFunc("/api/runs", h.Pipeline.ListRuns).Methods("GET")

	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))
	if metrics != nil {
		r.Use(metricsMiddleware(metrics))
	}

	return r
}

// statusRecorder captures the response code for logs and metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// metricsMiddleware counts requests per route template
func metricsMiddleware(m *monitoring.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			route := "unmatched"
			if cur := mux.CurrentRoute(r); cur != nil {
				if tpl, err := cur.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			m.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
			m.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
