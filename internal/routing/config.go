// Package routing holds the lead-routing policy: confidence thresholds,
// rollout knobs, and the safety overrides that gate automation.
package routing

import (
	"errors"
	"time"

	"github.com/leadgate-ai/leadgate/internal/leads"
)

// Thresholds is the minimum confidence required, per classification, for a
// lead to be eligible for automatic handling. The existing-customer path is
// deterministic and has no threshold.
type Thresholds struct {
	HighQuality float64 `json:"high_quality"`
	LowQuality  float64 `json:"low_quality"`
	Support     float64 `json:"support"`
}

// Config is the active routing policy. The engine only reads it; mutation
// happens through the administrative update path.
type Config struct {
	Thresholds Thresholds `json:"thresholds"`
	// RolloutPercent is the fraction of threshold-eligible leads actually
	// allowed to proceed automatically.
	RolloutPercent float64 `json:"rollout_percent"`
	// AllowHighQualityAutoSend gates the meeting-offer path. High-quality
	// leads commit to a human-facing meeting offer, treated as higher-risk
	// than a generic reply, so automation stays off until explicitly enabled.
	AllowHighQualityAutoSend bool `json:"allow_high_quality_auto_send"`
	// ValidationSamplePercent diverts a fraction of leads into blind human
	// classification regardless of confidence, feeding agreement analytics.
	ValidationSamplePercent float64 `json:"validation_sample_percent"`
	UpdatedAt               time.Time `json:"updated_at,omitempty"`
}

// ErrInvalidPolicy is returned when a policy update carries values outside
// their documented ranges.
var ErrInvalidPolicy = errors.New("routing: policy values out of range")

// DefaultConfig returns the built-in policy used before any administrative
// update and as the last-resort fallback when the store is unreachable with
// no cached copy. Conservative: nothing auto-sends until rollout is raised.
func DefaultConfig() Config {
	return Config{
		Thresholds: Thresholds{
			HighQuality: 0.90,
			LowQuality:  0.85,
			Support:     0.80,
		},
		RolloutPercent:           0,
		AllowHighQualityAutoSend: false,
		ValidationSamplePercent:  0,
	}
}

// ThresholdFor returns the confidence bar for a classification. The second
// return is false for classifications with no automation threshold.
func (c Config) ThresholdFor(class leads.Classification) (float64, bool) {
	switch class {
	case leads.ClassificationHighQuality:
		return c.Thresholds.HighQuality, true
	case leads.ClassificationLowQuality:
		return c.Thresholds.LowQuality, true
	case leads.ClassificationSupport:
		return c.Thresholds.Support, true
	default:
		return 0, false
	}
}

// Validate checks every knob is within range before a policy update is
// accepted.
func (c Config) Validate() error {
	for _, v := range []float64{
		c.Thresholds.HighQuality,
		c.Thresholds.LowQuality,
		c.Thresholds.Support,
		c.RolloutPercent,
		c.ValidationSamplePercent,
	} {
		if v < 0 || v > 1 {
			return ErrInvalidPolicy
		}
	}
	return nil
}
