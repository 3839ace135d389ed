package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/leadgate-ai/leadgate/internal/routing"
	"github.com/leadgate-ai/leadgate/pkg/logging"
)

// PolicyHandler serves the routing policy admin surface. Updates go through
// the durable store and then drop the in-process cache, so every instance
// converges within one cache TTL and the updating instance immediately.
type PolicyHandler struct {
	store    *routing.Store
	provider *routing.Provider
	logger   *logging.Logger
}

// NewPolicyHandler creates a policy handler. provider may be nil when the
// process does not run a triage pipeline of its own.
func NewPolicyHandler(store *routing.Store, provider *routing.Provider, logger *logging.Logger) *PolicyHandler {
	if store == nil {
		panic("handlers: policy requires a store")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &PolicyHandler{store: store, provider: provider, logger: logger}
}

// GetPolicy handles GET /admin/policy. It reads the stored policy, not the
// cached one, so admins always see what the next cache refresh will pick up.
func (h *PolicyHandler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.store.Get(r.Context())
	if err != nil {
		h.logger.Error("read policy failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// UpdatePolicy handles PUT /admin/policy.
func (h *PolicyHandler) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	var cfg routing.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.store.Set(r.Context(), cfg); err != nil {
		if errors.Is(err, routing.ErrInvalidPolicy) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("store policy failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if h.provider != nil {
		h.provider.Invalidate()
	}
	h.logger.Info("routing policy updated",
		"rollout_percent", cfg.RolloutPercent,
		"allow_high_quality_auto_send", cfg.AllowHighQualityAutoSend,
		"validation_sample_percent", cfg.ValidationSamplePercent,
	)

	stored, err := h.store.Get(r.Context())
	if err != nil {
		// The write succeeded; fall back to echoing the request.
		stored = cfg
	}
	writeJSON(w, http.StatusOK, stored)
}
