package handlers

import (
	"net/http"
	"time"

	"github.com/leadgate-ai/leadgate/internal/analytics"
	"github.com/leadgate-ai/leadgate/pkg/logging"
)

// AgreementHandler serves bot/human agreement analytics for the admin
// dashboard.
type AgreementHandler struct {
	service *analytics.Service
	logger  *logging.Logger
}

// NewAgreementHandler creates an agreement analytics handler.
func NewAgreementHandler(service *analytics.Service, logger *logging.Logger) *AgreementHandler {
	if service == nil {
		panic("handlers: agreement requires an analytics service")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AgreementHandler{service: service, logger: logger}
}

const (
	agreementStatusOK           = "ok"
	agreementStatusInsufficient = "insufficient_data"
)

// AgreementResponse is the wire shape of an agreement report. Status is
// "insufficient_data" when the window holds no comparisons; the rates are
// zero in that case, not meaningful.
type AgreementResponse struct {
	From             string                    `json:"from"`
	To               string                    `json:"to"`
	Status           string                    `json:"status"`
	Total            int                       `json:"total_comparisons"`
	AgreementRate    float64                   `json:"agreement_rate"`
	AgreementPercent int                       `json:"agreement_percent"`
	Disagreements    int                       `json:"disagreements"`
	ByKind           map[string]laneStats      `json:"by_kind"`
	ByBucket         map[string]laneStats      `json:"by_confidence_bucket"`
	ByClassification map[string]laneStats      `json:"by_classification"`
	Confusion        []analytics.ConfusionCell `json:"confusion_matrix"`
}

type laneStats struct {
	Total         int     `json:"total"`
	Agreements    int     `json:"agreements"`
	AgreementRate float64 `json:"agreement_rate"`
}

// GetAgreement handles GET /admin/analytics/agreement.
// from/to are RFC 3339 timestamps or YYYY-MM-DD dates; the window defaults
// to the trailing 30 days.
func (h *AgreementHandler) GetAgreement(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -30)
	to := now

	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := parseTimeParam(raw)
		if err != nil {
			http.Error(w, "invalid from parameter", http.StatusBadRequest)
			return
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := parseTimeParam(raw)
		if err != nil {
			http.Error(w, "invalid to parameter", http.StatusBadRequest)
			return
		}
		to = parsed
	}
	if !from.Before(to) {
		http.Error(w, "from must precede to", http.StatusBadRequest)
		return
	}

	stats, err := h.service.AgreementBetween(r.Context(), from, to)
	if err != nil {
		h.logger.Error("agreement report failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	status := agreementStatusOK
	if stats.Overall.Total == 0 {
		status = agreementStatusInsufficient
	}

	resp := AgreementResponse{
		From:             from.Format(time.RFC3339),
		To:               to.Format(time.RFC3339),
		Status:           status,
		Total:            stats.Overall.Total,
		AgreementRate:    stats.AgreementRate(),
		AgreementPercent: stats.AgreementPercent(),
		Disagreements:    stats.Disagreements(),
		ByKind:           map[string]laneStats{},
		ByBucket:         map[string]laneStats{},
		ByClassification: map[string]laneStats{},
		Confusion:        stats.ConfusionMatrix(),
	}
	for kind, tally := range stats.ByKind {
		resp.ByKind[string(kind)] = toLaneStats(tally)
	}
	for bucket, tally := range stats.ByBucket {
		resp.ByBucket[string(bucket)] = toLaneStats(tally)
	}
	for class, tally := range stats.ByClassification {
		resp.ByClassification[string(class)] = toLaneStats(tally)
	}

	writeJSON(w, http.StatusOK, resp)
}

func toLaneStats(t analytics.Tally) laneStats {
	return laneStats{Total: t.Total, Agreements: t.Agreements, AgreementRate: t.Rate()}
}

func parseTimeParam(raw string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts, nil
	}
	return time.Parse("2006-01-02", raw)
}
