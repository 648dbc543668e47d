// ABOUTME: HTTP API server for relationships, activities and reminders
// ABOUTME: chi router with optional bearer auth, Prometheus metrics and a WebSocket feed
package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/harperreed/kith/crm"
	"github.com/harperreed/kith/identity"
	"github.com/harperreed/kith/validation"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options configures a Server.
type Options struct {
	Version string
	// Auth enables bearer-token auth on /api when its Secret is set.
	Auth identity.Config
}

// Server is the kith HTTP API.
type Server struct {
	svc     *crm.Service
	ids     identity.Provider
	hub     *Hub
	router  chi.Router
	opts    Options
	started time.Time
}

// New creates a Server. ids must resolve the same user the service does.
func New(svc *crm.Service, ids identity.Provider, hub *Hub, opts Options) *Server {
	if hub == nil {
		hub = NewHub()
	}
	s := &Server{
		svc:     svc,
		ids:     ids,
		hub:     hub,
		opts:    opts,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Hub returns the notification hub the server streams from.
func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(instrument)

	r.Handle("/metrics", promhttp.Handler())
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Group(s.protectedRoutes)
	})

	s.router = r
}

func (s *Server) protectedRoutes(r chi.Router) {
	if s.opts.Auth.Secret != "" {
		r.Use(identity.Middleware(s.opts.Auth))
	}

	r.Get("/relationships", s.handleListRelationships)
	r.Post("/relationships", s.handleCreateRelationship)
	r.Get("/relationships/{id}", s.handleGetRelationship)
	r.Patch("/relationships/{id}", s.handleUpdateRelationship)
	r.Delete("/relationships/{id}", s.handleDeleteRelationship)
	r.Get("/relationships/{id}/activities", s.handleRelationshipActivities)

	r.Get("/activities", s.handleListActivities)
	r.Post("/activities", s.handleCreateActivity)
	r.Get("/activities/{id}", s.handleGetActivity)
	r.Patch("/activities/{id}", s.handleUpdateActivity)
	r.Delete("/activities/{id}", s.handleDeleteActivity)
	r.Post("/activities/{id}/archive", s.handleArchiveActivity(true))
	r.Post("/activities/{id}/unarchive", s.handleArchiveActivity(false))
	r.Post("/activities/{id}/complete", s.handleCompleteReminder)

	r.Get("/reminders", s.handleListReminders)
	r.Post("/reminders/resync", s.handleResyncReminders)

	r.Get("/ws", s.handleWebSocket)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.opts.Version,
		"uptime":  time.Since(s.started).Seconds(),
		"clients": s.hub.ClientCount(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("encode response", "err", err)
	}
}

type errorBody struct {
	Error    string            `json:"error"`
	Fields   map[string]string `json:"fields,omitempty"`
	ForkName string            `json:"forkName,omitempty"`
	Existing string            `json:"existingId,omitempty"`
	Retry    bool              `json:"retryable,omitempty"`
}

// writeError maps the service error taxonomy onto status codes.
func writeError(w http.ResponseWriter, err error) {
	body := errorBody{Error: err.Error()}
	status := http.StatusInternalServerError

	var collision *crm.CollisionError
	switch {
	case validation.IsValidationError(err):
		status = http.StatusBadRequest
		body.Fields = fieldErrors(err)
	case errors.As(err, &collision):
		status = http.StatusConflict
		body.ForkName = collision.ForkName
		body.Existing = collision.Existing.ID
	case errors.Is(err, crm.ErrNotFoundOrAccessDenied):
		status = http.StatusNotFound
	case errors.Is(err, identity.ErrNoIdentity):
		status = http.StatusUnauthorized
	case crm.IsRetryable(err):
		status = http.StatusServiceUnavailable
		body.Retry = true
	}
	if status == http.StatusInternalServerError {
		log.Error("request failed", "err", err)
	}
	writeJSON(w, status, body)
}

func fieldErrors(err error) map[string]string {
	out := map[string]string{}
	var errs validation.Errors
	var fe *validation.FieldError
	switch {
	case errors.As(err, &errs):
		for _, e := range errs {
			out[e.Field] = e.Message
		}
	case errors.As(err, &fe):
		out[fe.Field] = fe.Message
	}
	return out
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &validation.FieldError{Field: "body", Message: "invalid json: " + err.Error()}
	}
	return nil
}

// withWarnings wraps a result with its best-effort warnings.
type withWarnings struct {
	Data     any      `json:"data"`
	Warnings []string `json:"warnings,omitempty"`
}

func warned(v any, warns crm.Warnings) withWarnings {
	out := withWarnings{Data: v}
	for _, w := range warns {
		out.Warnings = append(out.Warnings, w.Error())
	}
	return out
}
