package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	httpmiddleware "github.com/leadgate-ai/leadgate/internal/http/middleware"
	"github.com/leadgate-ai/leadgate/internal/leads"
	"github.com/leadgate-ai/leadgate/internal/triage"
	"github.com/leadgate-ai/leadgate/pkg/logging"
)

// ReviewHandler exposes the human lanes: the review queue for borderline
// leads, the classify queue for leads the pipeline could not place, and the
// verdict endpoints that resolve them.
type ReviewHandler struct {
	service *triage.Service
	logger  *logging.Logger
}

// NewReviewHandler creates a review handler.
func NewReviewHandler(service *triage.Service, logger *logging.Logger) *ReviewHandler {
	if service == nil {
		panic("handlers: review requires a triage service")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ReviewHandler{service: service, logger: logger}
}

// QueueResponse is a list of leads awaiting a human verdict.
type QueueResponse struct {
	Leads []*leads.Lead `json:"leads"`
	Count int           `json:"count"`
}

type verdictRequest struct {
	Reviewer       string `json:"reviewer,omitempty"`
	Classification string `json:"classification,omitempty"`
}

type rerouteRequest struct {
	Source string `json:"source"`
	Reason string `json:"reason,omitempty"`
}

// ReviewQueue handles GET /admin/review.
func (h *ReviewHandler) ReviewQueue(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ReviewQueue(r.Context(), queueLimit(r))
	if err != nil {
		h.logger.Error("list review queue failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, QueueResponse{Leads: list, Count: len(list)})
}

// ClassifyQueue handles GET /admin/classify.
func (h *ReviewHandler) ClassifyQueue(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ClassifyQueue(r.Context(), queueLimit(r))
	if err != nil {
		h.logger.Error("list classify queue failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, QueueResponse{Leads: list, Count: len(list)})
}

// Approve handles POST /admin/leads/{leadID}/approve.
func (h *ReviewHandler) Approve(w http.ResponseWriter, r *http.Request) {
	leadID, reviewer, _, ok := h.verdict(w, r, false)
	if !ok {
		return
	}
	lead, err := h.service.Approve(r.Context(), leadID, reviewer)
	if err != nil {
		writeLeadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

// Override handles POST /admin/leads/{leadID}/override.
func (h *ReviewHandler) Override(w http.ResponseWriter, r *http.Request) {
	leadID, reviewer, class, ok := h.verdict(w, r, true)
	if !ok {
		return
	}
	lead, err := h.service.Override(r.Context(), leadID, reviewer, class)
	if err != nil {
		writeLeadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

// Classify handles POST /admin/leads/{leadID}/classify.
func (h *ReviewHandler) Classify(w http.ResponseWriter, r *http.Request) {
	leadID, reviewer, class, ok := h.verdict(w, r, true)
	if !ok {
		return
	}
	lead, err := h.service.Classify(r.Context(), leadID, reviewer, class)
	if err != nil {
		writeLeadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

// Reroute handles POST /admin/leads/{leadID}/reroute. A lead carries at
// most one reroute; a second attempt returns 409 with the original record
// untouched.
func (h *ReviewHandler) Reroute(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "leadID")
	if leadID == "" {
		http.Error(w, "missing leadID", http.StatusBadRequest)
		return
	}
	var req rerouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	source, err := leads.ParseRerouteSource(req.Source)
	if err != nil {
		writeLeadError(w, err)
		return
	}
	lead, err := h.service.Reroute(r.Context(), leadID, source, req.Reason)
	if err != nil {
		writeLeadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

// verdict extracts the common pieces of an approve/override/classify call.
// The reviewer comes from the JWT subject when present, falling back to the
// request body for deployments without per-reviewer tokens.
func (h *ReviewHandler) verdict(w http.ResponseWriter, r *http.Request, needClass bool) (leadID, reviewer string, class leads.Classification, ok bool) {
	leadID = chi.URLParam(r, "leadID")
	if leadID == "" {
		http.Error(w, "missing leadID", http.StatusBadRequest)
		return "", "", "", false
	}
	var req verdictRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return "", "", "", false
		}
	}
	reviewer = httpmiddleware.ReviewerFromContext(r.Context())
	if reviewer == "" {
		reviewer = strings.TrimSpace(req.Reviewer)
	}
	if reviewer == "" {
		http.Error(w, "missing reviewer", http.StatusBadRequest)
		return "", "", "", false
	}
	if needClass {
		var err error
		class, err = leads.ParseClassification(req.Classification)
		if err != nil {
			writeLeadError(w, err)
			return "", "", "", false
		}
	}
	return leadID, reviewer, class, true
}

func queueLimit(r *http.Request) int {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 200 {
		limit = 50
	}
	return limit
}
