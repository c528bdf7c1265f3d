package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/walkbot/internal/models"
	"github.com/Kerhoff/walkbot/internal/service"
)

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Server exposes a small read-mostly operations API over the walk service.
type Server struct {
	svc    *service.Service
	logger *logrus.Logger
	checks map[string]HealthCheck
	router chi.Router
}

// NewServer creates a Server and registers all routes.
func NewServer(svc *service.Service, logger *logrus.Logger) *Server {
	s := &Server{svc: svc, logger: logger, checks: make(map[string]HealthCheck)}
	s.router = s.routes()
	return s
}

// AddHealthCheck registers a named dependency probe for /healthz.
func (s *Server) AddHealthCheck(name string, check HealthCheck) {
	s.checks[name] = check
}

// Handler returns the http.Handler that can be passed to http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/proposals", s.handleOpenProposals)
		r.Get("/proposals/{id}", s.handleGetProposal)
		r.Post("/proposals/{id}/broadcast", s.handleBroadcast)
		r.Get("/users/{id}/proposals", s.handleUserProposals)
		r.Put("/users/{id}/reminder-lead", s.handleReminderLead)
	})
	return r
}

// JSON helpers

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.WithError(err).Error("failed to encode JSON response")
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps service errors onto HTTP statuses.
func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	case service.IsValidation(err):
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.logger.WithError(err).WithField("path", r.URL.Path).Error("API request failed")
		s.respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON reads the request body into dst and returns an error message on
// failure.
func (s *Server) decodeJSON(r *http.Request, dst any) (ok bool, errMsg string) {
	if r.Body == nil {
		return false, "request body is empty"
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return false, fmt.Sprintf("invalid JSON: %v", err)
	}
	return true, ""
}

// pathID extracts the {id} URL parameter as int64.
func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	if raw == "" {
		return 0, fmt.Errorf("missing id in path")
	}
	return strconv.ParseInt(raw, 10, 64)
}

func (s *Server) requireID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := pathID(r)
	if err != nil || id <= 0 {
		s.respondError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

// Health

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	result := map[string]string{}
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			result[name] = err.Error()
			continue
		}
		result[name] = "ok"
	}
	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	s.respondJSON(w, status, map[string]any{"status": overall, "checks": result})
}

// Proposals

type proposalView struct {
	*models.Proposal
	Tally    *service.Tally    `json:"tally"`
	Comments []*models.Comment `json:"comments"`
}

func (s *Server) handleOpenProposals(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.OpenProposals(r.Context())
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []*models.ProposalSummary{}
	}
	s.respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetProposal(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireID(w, r)
	if !ok {
		return
	}
	p, err := s.svc.Proposal(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	tally, err := s.svc.Tally(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	comments, err := s.svc.Comments.ListByProposal(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	if comments == nil {
		comments = []*models.Comment{}
	}
	s.respondJSON(w, http.StatusOK, proposalView{Proposal: p, Tally: tally, Comments: comments})
}

type broadcastResult struct {
	ProposalID int64  `json:"proposal_id"`
	Sent       int    `json:"sent"`
	Edited     int    `json:"edited"`
	Unchanged  int    `json:"unchanged"`
	Failed     int    `json:"failed"`
	Error      string `json:"error,omitempty"`
}

// handleBroadcast re-renders a proposal and pushes it to every user.
func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireID(w, r)
	if !ok {
		return
	}
	report, err := s.svc.RenderAndBroadcast(r.Context(), id)
	if err != nil && report == nil {
		s.respondServiceError(w, r, err)
		return
	}
	res := broadcastResult{
		ProposalID: report.ProposalID,
		Sent:       report.Sent,
		Edited:     report.Edited,
		Unchanged:  report.Unchanged,
		Failed:     report.Failed,
	}
	if ferr := report.Err(); ferr != nil {
		res.Error = ferr.Error()
	}
	s.respondJSON(w, http.StatusOK, res)
}

// Users

func (s *Server) handleUserProposals(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireID(w, r)
	if !ok {
		return
	}
	list, err := s.svc.MyProposals(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []*models.ProposalSummary{}
	}
	s.respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleReminderLead(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireID(w, r)
	if !ok {
		return
	}
	var body struct {
		Minutes int `json:"minutes"`
	}
	if ok, msg := s.decodeJSON(r, &body); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}
	if err := s.svc.SetReminderLead(r.Context(), id, body.Minutes); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]int{"reminder_lead_minutes": body.Minutes})
}
