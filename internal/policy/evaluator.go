// Package policy turns a classification result into a routing decision:
// act automatically, or hold the lead for human review.
package policy

import (
	"math/rand/v2"

	"github.com/leadgate-ai/leadgate/internal/leads"
	"github.com/leadgate-ai/leadgate/internal/routing"
)

// Outcome is the kind of action a decision commits the system to.
type Outcome string

const (
	// OutcomeAutoSend replies to the lead automatically (meeting offer or
	// generic response).
	OutcomeAutoSend Outcome = "auto_send"
	// OutcomeAutoForward hands the lead to an internal team automatically.
	OutcomeAutoForward Outcome = "auto_forward"
	// OutcomeRequireReview parks the lead for a human decision.
	OutcomeRequireReview Outcome = "require_review"
)

// Decision is the evaluator's verdict plus everything needed to audit it
// later: the threshold that was checked and the rollout draw, if one
// happened. The draw is recorded here so it can be persisted with the lead
// and never recomputed on replay.
type Decision struct {
	Outcome  Outcome
	Terminal leads.TerminalState
	// Threshold is the confidence bar that was checked, nil when no bar
	// applied (the existing-customer bypass and the contradictory bare
	// "existing" classification).
	Threshold *float64
	// RolloutDraw is the uniform [0,1) value drawn for the rollout gate,
	// nil when evaluation never reached the draw.
	RolloutDraw *float64
	// SentBy identifies the acting party for automatic outcomes.
	SentBy string
}

// Auto reports whether the decision proceeds without a human.
func (d Decision) Auto() bool {
	return d.Outcome == OutcomeAutoSend || d.Outcome == OutcomeAutoForward
}

// Evaluate decides what to do with a classified lead under the given
// policy. draw supplies the rollout coin-flip; it is invoked at most once.
// Passing nil uses the package default random source.
//
// The check order is fixed: existing-customer bypass, then threshold, then
// rollout, then the high-quality safety override.
func Evaluate(res leads.ClassificationResult, cfg routing.Config, draw func() float64) (Decision, error) {
	if draw == nil {
		draw = rand.Float64
	}

	// Existing-customer detection is ground truth, never probabilistic:
	// no threshold, no rollout.
	if res.IsExistingCustomer {
		return Decision{
			Outcome:  OutcomeAutoForward,
			Terminal: leads.TerminalForwardedAccountTeam,
			SentBy:   leads.SentBySystem,
		}, nil
	}

	if err := res.Validate(); err != nil {
		return Decision{}, err
	}

	threshold, ok := cfg.ThresholdFor(res.Classification)
	if !ok {
		// A bare "existing" classification without the customer flag has no
		// automation threshold; a human resolves the contradiction.
		return Decision{Outcome: OutcomeRequireReview}, nil
	}

	if res.Confidence < threshold {
		return Decision{Outcome: OutcomeRequireReview, Threshold: &threshold}, nil
	}

	r := draw()
	decision := Decision{Threshold: &threshold, RolloutDraw: &r}
	if r >= cfg.RolloutPercent {
		decision.Outcome = OutcomeRequireReview
		return decision, nil
	}

	if res.Classification == leads.ClassificationHighQuality && !cfg.AllowHighQualityAutoSend {
		decision.Outcome = OutcomeRequireReview
		return decision, nil
	}

	terminal, ok := res.Classification.Terminal()
	if !ok {
		return Decision{}, leads.ErrClassificationUnknown
	}
	decision.Terminal = terminal
	decision.SentBy = leads.SentByBot
	switch terminal {
	case leads.TerminalSentMeetingOffer, leads.TerminalSentGeneric:
		decision.Outcome = OutcomeAutoSend
	default:
		decision.Outcome = OutcomeAutoForward
	}
	return decision, nil
}

// Replay re-evaluates a past decision with its already-drawn rollout value,
// for audit. The draw is fixed, never redrawn.
func Replay(res leads.ClassificationResult, cfg routing.Config, drawn float64) (Decision, error) {
	return Evaluate(res, cfg, func() float64 { return drawn })
}
