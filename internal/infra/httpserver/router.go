package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	log "github.com/sirupsen/logrus"

	"github.com/bryanwahyu/texture-automaton/internal/application/textures"
	"github.com/bryanwahyu/texture-automaton/internal/domain/history"
	"github.com/bryanwahyu/texture-automaton/internal/middleware"
)

// StatusSource is satisfied by *textures.Session.
type StatusSource interface {
	Snapshot() textures.Status
}

// Options configure the cross-cutting middleware of the status server.
type Options struct {
	Token       string
	RateLimit   int
	CORSOrigins []string
	// Checkers are run by /healthz.
	Checkers map[string]middleware.HealthChecker
}

var errNoHistory = errors.New("pass history is not configured")

type Router struct {
	status  StatusSource
	history history.Repository
}

// NewRouter serves read-only status of a running manager. repo may be nil.
func NewRouter(status StatusSource, repo history.Repository, opts Options) http.Handler {
	r := &Router{status: status, history: repo}
	mux := chi.NewRouter()

	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)
	if len(opts.CORSOrigins) > 0 {
		mux.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}
	mux.Use(middleware.RateLimitMiddleware(opts.RateLimit*2, opts.RateLimit))
	mux.Use(middleware.TokenAuth(opts.Token))

	mux.Get("/health", middleware.LivenessHandler)
	mux.Get("/healthz", middleware.HealthHandler(opts.Checkers))
	mux.Get("/metrics", middleware.MetricsHandler)
	mux.Get("/status", r.wrap(r.handleStatus))
	mux.Get("/passes", r.wrap(r.handleLatest))
	mux.Get("/passes/{id}", r.wrap(r.handleGet))

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			if errors.Is(err, history.ErrNotFound) {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			if errors.Is(err, errNoHistory) {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
			if errors.Is(err, context.Canceled) {
				return
			}
			log.WithError(err).WithField("path", req.URL.Path).Error("http: handler failed")
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}

// GET /status
func (r *Router) handleStatus(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, http.StatusOK, r.status.Snapshot())
}

// GET /passes?limit=20
func (r *Router) handleLatest(w http.ResponseWriter, req *http.Request) error {
	if r.history == nil {
		return errNoHistory
	}
	limit := middleware.ValidateLimit(req.URL.Query().Get("limit"))
	passes, err := r.history.Latest(req.Context(), limit)
	if err != nil {
		return err
	}
	if passes == nil {
		passes = []*history.Pass{}
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"limit":  limit,
		"passes": passes,
	})
}

// GET /passes/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	if r.history == nil {
		return errNoHistory
	}
	id := chi.URLParam(req, "id")
	if err := middleware.ValidatePassID(id); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil
	}
	pass, err := r.history.Get(req.Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, pass)
}

func writeJSON(w http.ResponseWriter, code int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}
