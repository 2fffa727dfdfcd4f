package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/kotae/internal/analytics"
	"github.com/hyperjump/kotae/internal/feedback"
	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/search"
	"go.uber.org/zap"
)

const (
	maxBodyBytes        = 1 << 20
	defaultSimilarLimit = 5
	maxSimilarLimit     = 20
)

type chatRequest struct {
	Query string `json:"query"`
}

type maintenanceRequest struct {
	Enabled bool `json:"enabled"`
}

type statsResponse struct {
	*analytics.Report
	Index *search.IndexStats `json:"index,omitempty"`
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// handleChat always answers 200: every failure inside the pipeline becomes a
// fallback answer carrying its reason.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decode(w, r, &req) {
		return
	}
	user := userFrom(r.Context())
	res := s.deps.Orchestrator.Handle(r.Context(), req.Query, user)
	s.logger.Debug("chat answered",
		zap.String("tenant", user.Tenant()),
		zap.String("source", string(res.Source)),
		zap.Float64("confidence", res.Confidence))
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleSubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var sub feedback.Submission
	if !decode(w, r, &sub) {
		return
	}
	fb, err := s.deps.Feedback.Submit(r.Context(), userFrom(r.Context()), sub)
	if err != nil {
		s.respondErr(w, "submit feedback", err)
		return
	}
	respondJSON(w, http.StatusCreated, fb)
}

func (s *Server) handleListFeedback(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Feedback.List(r.Context(), userFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, "list feedback", err)
		return
	}
	if list == nil {
		list = []*models.Feedback{}
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := search.Request{
		Query:    q.Get("q"),
		Category: q.Get("category"),
	}
	var ok bool
	if req.Limit, ok = intParam(w, q.Get("limit"), "limit"); !ok {
		return
	}
	if req.Offset, ok = intParam(w, q.Get("offset"), "offset"); !ok {
		return
	}
	if v := q.Get("fuzzy"); v != "" {
		fuzzy, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "fuzzy must be a boolean")
			return
		}
		req.Fuzzy = fuzzy
	}
	if v := q.Get("min_score"); v != "" {
		score, err := strconv.ParseFloat(v, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "min_score must be a number")
			return
		}
		req.MinScore = score
	}
	resp, err := s.deps.Search.Search(r.Context(), userFrom(r.Context()), req)
	if err != nil {
		s.respondErr(w, "search", err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.deps.Store.GetDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, "get document", err)
		return
	}
	user := userFrom(r.Context())
	if !user.CanAccess(doc.TenantID, doc.AllowedRoles) {
		respondError(w, http.StatusNotFound, "document not found")
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(w, r.URL.Query().Get("limit"), "limit")
	if !ok {
		return
	}
	if limit == 0 {
		limit = defaultSimilarLimit
	}
	limit = min(limit, maxSimilarLimit)
	similar, err := s.deps.Retriever.SimilarDocuments(r.Context(), chi.URLParam(r, "id"), userFrom(r.Context()), limit)
	if err != nil {
		s.respondErr(w, "similar documents", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"documents": similar, "count": len(similar)})
}

// handleIndexDocument creates or replaces a document in the caller's tenant.
func (s *Server) handleIndexDocument(w http.ResponseWriter, r *http.Request) {
	var in indexer.Input
	if !decode(w, r, &in) {
		return
	}
	user := userFrom(r.Context())
	in.TenantID = user.Tenant()
	if in.ID != "" {
		existing, err := s.deps.Store.GetDocument(r.Context(), in.ID)
		if err == nil && existing.TenantID != user.Tenant() {
			respondError(w, http.StatusConflict, "document id belongs to another tenant")
			return
		}
	}
	doc, err := s.deps.Indexer.IndexDocument(r.Context(), in)
	if err != nil {
		s.respondErr(w, "index document", err)
		return
	}
	if err := s.deps.Search.RefreshSuggestions(); err != nil {
		s.logger.Warn("refresh suggestions failed", zap.Error(err))
	}
	respondJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.deps.Store.GetDocument(r.Context(), id)
	if err != nil {
		s.respondErr(w, "delete document", err)
		return
	}
	if doc.TenantID != userFrom(r.Context()).Tenant() {
		respondError(w, http.StatusNotFound, "document not found")
		return
	}
	if err := s.deps.Indexer.DeleteDocument(r.Context(), id); err != nil {
		s.respondErr(w, "delete document", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	report, err := analytics.Summarize(r.Context(), s.deps.Store, userFrom(r.Context()).Tenant(), s.deps.Consumer, s.deps.Cache)
	if err != nil {
		s.respondErr(w, "stats", err)
		return
	}
	resp := statsResponse{Report: report}
	if s.deps.Search != nil {
		idx, err := s.deps.Search.Stats()
		if err != nil {
			s.logger.Warn("index stats failed", zap.Error(err))
		} else {
			resp.Index = &idx
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMaintenance(w http.ResponseWriter, r *http.Request) {
	var req maintenanceRequest
	if !decode(w, r, &req) {
		return
	}
	s.deps.Orchestrator.SetMaintenance(req.Enabled)
	s.logger.Info("maintenance mode changed",
		zap.Bool("enabled", req.Enabled),
		zap.String("by", userFrom(r.Context()).ID))
	respondJSON(w, http.StatusOK, map[string]bool{"maintenance": req.Enabled})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	maintenance := s.deps.Orchestrator != nil && s.deps.Orchestrator.Maintenance()
	if maintenance {
		status = "maintenance"
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": status, "maintenance": maintenance})
}

func intParam(w http.ResponseWriter, v, name string) (int, bool) {
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		respondError(w, http.StatusBadRequest, name+" must be an integer")
		return 0, false
	}
	return n, true
}

// respondErr maps pipeline errors to status codes. Server-side failures are
// logged and hidden from the caller.
func (s *Server) respondErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	default:
		s.logger.Error(op+" failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
