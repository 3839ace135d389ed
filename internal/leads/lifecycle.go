package leads

import "time"

// SentByBot marks sends performed from an automatic policy decision.
const SentByBot = "bot"

// SentBySystem marks the deterministic existing-customer forward, which
// bypasses AI classification entirely.
const SentBySystem = "system"

// MarkReview records a bot classification that did not clear the bar for
// automation and parks the lead for human approval.
//
// The applied threshold is kept on the entry so later analytics can tell
// what bar this lead needed to clear; nil means no bar was checked.
func (l *Lead) MarkReview(res ClassificationResult, threshold *float64, draw *float64, now time.Time) error {
	if l.Status.Status != StatusProcessing {
		return &TransitionError{From: l.Status.Status, To: StatusReview}
	}
	if err := res.Validate(); err != nil {
		return err
	}

	l.ClassificationResult = &res
	l.Classifications = l.Classifications.Prepend(ClassificationEntry{
		Author:           AuthorBot,
		Classification:   res.Classification,
		Confidence:       res.Confidence,
		Timestamp:        now,
		NeedsReview:      true,
		AppliedThreshold: copyThreshold(threshold),
		RolloutDraw:      draw,
	})
	l.Status.Status = StatusReview
	return nil
}

// MarkAutoDone records a bot classification that was allowed to proceed
// automatically and closes the lead. sentBy is SentByBot for policy-driven
// decisions and SentBySystem for the existing-customer bypass, which
// checks no bar and passes a nil threshold.
func (l *Lead) MarkAutoDone(res ClassificationResult, threshold *float64, draw *float64, sentBy string, now time.Time) error {
	if l.Status.Status != StatusProcessing {
		return &TransitionError{From: l.Status.Status, To: StatusDone}
	}
	if err := res.Validate(); err != nil {
		return err
	}

	l.ClassificationResult = &res
	l.Classifications = l.Classifications.Prepend(ClassificationEntry{
		Author:           AuthorBot,
		Classification:   res.Classification,
		Confidence:       res.Confidence,
		Timestamp:        now,
		NeedsReview:      false,
		AppliedThreshold: copyThreshold(threshold),
		RolloutDraw:      draw,
	})
	sent := now
	l.Status.Status = StatusDone
	l.Status.SentAt = &sent
	l.Status.SentBy = sentBy
	return nil
}

// EnterClassify routes the lead to human classification from scratch, used
// when the classifier could not produce a usable result or the lead was
// sampled into the blind-validation lane.
func (l *Lead) EnterClassify() error {
	if l.Status.Status != StatusProcessing {
		return &TransitionError{From: l.Status.Status, To: StatusClassify}
	}
	l.Status.Status = StatusClassify
	return nil
}

// MarkBlindValidation records the bot's classification but diverts the
// lead to the classify lane so a human can classify it without seeing the
// bot's call. Used for leads sampled into the validation lane after they
// were otherwise eligible for automation.
func (l *Lead) MarkBlindValidation(res ClassificationResult, threshold *float64, draw *float64, now time.Time) error {
	if l.Status.Status != StatusProcessing {
		return &TransitionError{From: l.Status.Status, To: StatusClassify}
	}
	if err := res.Validate(); err != nil {
		return err
	}

	l.ClassificationResult = &res
	l.Classifications = l.Classifications.Prepend(ClassificationEntry{
		Author:           AuthorBot,
		Classification:   res.Classification,
		Confidence:       res.Confidence,
		Timestamp:        now,
		AppliedThreshold: copyThreshold(threshold),
		RolloutDraw:      draw,
	})
	l.Status.Status = StatusClassify
	return nil
}

// copyThreshold detaches the recorded threshold from the caller's value.
func copyThreshold(threshold *float64) *float64 {
	if threshold == nil {
		return nil
	}
	t := *threshold
	return &t
}

// Approve closes a reviewed lead, keeping the bot's classification as the
// authoritative call. No history entry is added; the approval is visible
// through sent_by carrying the reviewer identity.
func (l *Lead) Approve(reviewer string, now time.Time) error {
	if l.Status.Status != StatusReview {
		return &TransitionError{From: l.Status.Status, To: StatusDone}
	}
	sent := now
	l.Status.Status = StatusDone
	l.Status.SentAt = &sent
	l.Status.SentBy = reviewer
	return nil
}

// Override closes a reviewed lead under a different classification. The
// human entry is prepended, never replacing the bot entry, so the original
// automatic call survives for comparison.
func (l *Lead) Override(reviewer string, c Classification, now time.Time) error {
	if l.Status.Status != StatusReview {
		return &TransitionError{From: l.Status.Status, To: StatusDone}
	}
	if _, err := ParseClassification(string(c)); err != nil {
		return err
	}
	l.Classifications = l.Classifications.Prepend(ClassificationEntry{
		Author:         AuthorHuman,
		Classification: c,
		Timestamp:      now,
	})
	sent := now
	l.Status.Status = StatusDone
	l.Status.SentAt = &sent
	l.Status.SentBy = reviewer
	return nil
}

// ClassifyByHuman closes a classify-lane lead with a classification supplied
// outright by a human. When a bot entry already exists (blind validation or
// a reroute), the human entry is flagged blind: the human never saw the
// bot's call.
func (l *Lead) ClassifyByHuman(reviewer string, c Classification, now time.Time) error {
	if l.Status.Status != StatusClassify {
		return &TransitionError{From: l.Status.Status, To: StatusDone}
	}
	if _, err := ParseClassification(string(c)); err != nil {
		return err
	}
	_, hasBot := l.Classifications.LatestBy(AuthorBot)
	l.Classifications = l.Classifications.Prepend(ClassificationEntry{
		Author:         AuthorHuman,
		Classification: c,
		Timestamp:      now,
		Blind:          hasBot,
	})
	sent := now
	l.Status.Status = StatusDone
	l.Status.SentAt = &sent
	l.Status.SentBy = reviewer
	return nil
}

// ApplyReroute records a dispute of a done lead's disposition and re-enters
// the lifecycle at classify. The disputed history stays intact; the new
// classification is simply prepended once the lead is reclassified.
func (l *Lead) ApplyReroute(source RerouteSource, reason string, now time.Time) error {
	if l.Reroute != nil {
		return ErrAlreadyRerouted
	}
	if l.Status.Status != StatusDone {
		return &TransitionError{From: l.Status.Status, To: StatusClassify}
	}
	if _, err := ParseRerouteSource(string(source)); err != nil {
		return err
	}
	entry, ok := l.Classifications.Latest()
	if !ok {
		return &TransitionError{From: l.Status.Status, To: StatusClassify}
	}

	rec := &RerouteRecord{
		Source:                 source,
		Reason:                 reason,
		OriginalClassification: entry.Classification,
		Timestamp:              now,
	}
	if terminal, ok := l.TerminalState(); ok {
		rec.PreviousTerminalState = &terminal
	}
	l.Reroute = rec
	l.Status.Status = StatusClassify
	return nil
}
