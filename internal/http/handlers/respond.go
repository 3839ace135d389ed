package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/leadgate-ai/leadgate/internal/leads"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeLeadError maps domain errors onto HTTP status codes. Conflicts are
// surfaced to the caller rather than retried; the caller re-reads and
// decides.
func writeLeadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, leads.ErrLeadNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, leads.ErrVersionConflict),
		errors.Is(err, leads.ErrAlreadyRerouted),
		leads.IsTransitionError(err):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, leads.ErrInvalidName),
		errors.Is(err, leads.ErrMissingContact),
		errors.Is(err, leads.ErrClassificationUnknown),
		errors.Is(err, leads.ErrRerouteSourceUnknown):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
