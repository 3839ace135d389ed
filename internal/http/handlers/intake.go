package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/leadgate-ai/leadgate/internal/leads"
	"github.com/leadgate-ai/leadgate/internal/triage"
	"github.com/leadgate-ai/leadgate/pkg/logging"
)

// IntakeHandler accepts inbound lead submissions and serves lead lookups.
// When a publisher is configured, submissions are enqueued for the worker
// fleet; otherwise they are classified inline, which is what the demo and
// test environments use.
type IntakeHandler struct {
	service   *triage.Service
	publisher *triage.Publisher
	logger    *logging.Logger
}

// NewIntakeHandler creates an intake handler. publisher may be nil.
func NewIntakeHandler(service *triage.Service, publisher *triage.Publisher, logger *logging.Logger) *IntakeHandler {
	if service == nil {
		panic("handlers: intake requires a triage service")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &IntakeHandler{
		service:   service,
		publisher: publisher,
		logger:    logger,
	}
}

// IntakeAcceptedResponse is returned for queued submissions.
type IntakeAcceptedResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// SubmitLead handles POST /leads.
func (h *IntakeHandler) SubmitLead(w http.ResponseWriter, r *http.Request) {
	var sub leads.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := sub.Validate(); err != nil {
		writeLeadError(w, err)
		return
	}

	if h.publisher != nil {
		jobID, err := h.publisher.Enqueue(r.Context(), sub)
		if err != nil {
			h.logger.Error("enqueue lead failed", "error", err)
			http.Error(w, "failed to accept submission", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusAccepted, IntakeAcceptedResponse{JobID: jobID, Status: "queued"})
		return
	}

	lead, err := h.service.Intake(r.Context(), sub)
	if err != nil {
		h.logger.Error("inline intake failed", "error", err)
		writeLeadError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, lead)
}

// GetLead handles GET /leads/{leadID}.
func (h *IntakeHandler) GetLead(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "leadID")
	if leadID == "" {
		http.Error(w, "missing leadID", http.StatusBadRequest)
		return
	}
	lead, err := h.service.Get(r.Context(), leadID)
	if err != nil {
		writeLeadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}
