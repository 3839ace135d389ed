package leads

import (
	"errors"
	"testing"
	"time"
)

var testTime = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func floatPtr(v float64) *float64 { return &v }

func newTestLead() *Lead {
	return New("lead-1", Submission{
		Name:    "Ada Byrne",
		Email:   "ada@example.com",
		Company: "Byrne Analytics",
		Message: "We need help consolidating our data pipelines.",
	}, testTime)
}

func TestNewLead_StartsProcessing(t *testing.T) {
	lead := newTestLead()

	if lead.Status.Status != StatusProcessing {
		t.Fatalf("expected status %q, got %q", StatusProcessing, lead.Status.Status)
	}
	if len(lead.Classifications) != 0 {
		t.Fatalf("expected empty classification log, got %d entries", len(lead.Classifications))
	}
	if _, ok := lead.TerminalState(); ok {
		t.Fatal("terminal state must be undefined before done")
	}
}

func TestMarkReview(t *testing.T) {
	lead := newTestLead()
	res := ClassificationResult{
		Classification: ClassificationHighQuality,
		Confidence:     0.72,
		Reasoning:      "mentions budget and timeline",
	}

	if err := lead.MarkReview(res, floatPtr(0.9), nil, testTime); err != nil {
		t.Fatalf("MarkReview: %v", err)
	}

	if lead.Status.Status != StatusReview {
		t.Fatalf("expected status review, got %q", lead.Status.Status)
	}
	entry, ok := lead.Classifications.Latest()
	if !ok {
		t.Fatal("expected a classification entry")
	}
	if entry.Author != AuthorBot || !entry.NeedsReview {
		t.Fatalf("expected bot entry needing review, got %+v", entry)
	}
	if entry.AppliedThreshold == nil || *entry.AppliedThreshold != 0.9 {
		t.Fatalf("expected applied threshold 0.9, got %v", entry.AppliedThreshold)
	}
	if entry.Confidence != 0.72 {
		t.Fatalf("expected recorded confidence 0.72, got %v", entry.Confidence)
	}
}

func TestMarkAutoDone(t *testing.T) {
	lead := newTestLead()
	res := ClassificationResult{
		Classification: ClassificationLowQuality,
		Confidence:     0.95,
	}
	draw := 0.12

	if err := lead.MarkAutoDone(res, floatPtr(0.85), &draw, SentByBot, testTime); err != nil {
		t.Fatalf("MarkAutoDone: %v", err)
	}

	if lead.Status.Status != StatusDone {
		t.Fatalf("expected status done, got %q", lead.Status.Status)
	}
	if lead.Status.SentAt == nil || lead.Status.SentBy != SentByBot {
		t.Fatalf("expected sent bookkeeping, got %+v", lead.Status)
	}
	entry, _ := lead.Classifications.Latest()
	if entry.NeedsReview {
		t.Fatal("auto-done entry must not need review")
	}
	if entry.RolloutDraw == nil || *entry.RolloutDraw != draw {
		t.Fatalf("expected recorded rollout draw %v, got %v", draw, entry.RolloutDraw)
	}

	terminal, ok := lead.TerminalState()
	if !ok || terminal != TerminalSentGeneric {
		t.Fatalf("expected terminal %q, got %q (ok=%v)", TerminalSentGeneric, terminal, ok)
	}
}

func TestMarkAutoDone_NilThresholdRecordsNoBar(t *testing.T) {
	lead := newTestLead()
	res := ClassificationResult{
		Classification:     ClassificationExisting,
		Confidence:         0.99,
		IsExistingCustomer: true,
	}

	if err := lead.MarkAutoDone(res, nil, nil, SentBySystem, testTime); err != nil {
		t.Fatalf("MarkAutoDone: %v", err)
	}

	entry, ok := lead.Classifications.Latest()
	if !ok {
		t.Fatal("expected a classification entry")
	}
	if entry.AppliedThreshold != nil {
		t.Fatalf("entry without a checked bar must record nil, got %v", *entry.AppliedThreshold)
	}
}

func TestMarkBlindValidation(t *testing.T) {
	lead := newTestLead()
	res := ClassificationResult{
		Classification: ClassificationHighQuality,
		Confidence:     0.97,
	}
	draw := 0.05

	if err := lead.MarkBlindValidation(res, floatPtr(0.90), &draw, testTime); err != nil {
		t.Fatalf("MarkBlindValidation: %v", err)
	}

	if lead.Status.Status != StatusClassify {
		t.Fatalf("expected status classify, got %q", lead.Status.Status)
	}
	if lead.Status.SentAt != nil {
		t.Fatal("sampled lead must not record a send")
	}
	entry, ok := lead.Classifications.Latest()
	if !ok || entry.Author != AuthorBot {
		t.Fatalf("expected bot entry at head, got %+v", entry)
	}

	// The human call that follows lands blind.
	if err := lead.ClassifyByHuman("reviewer@leadgate.ai", ClassificationHighQuality, testTime.Add(time.Hour)); err != nil {
		t.Fatalf("ClassifyByHuman: %v", err)
	}
	head, _ := lead.Classifications.Latest()
	if !head.Blind {
		t.Fatal("human entry after sampling must be blind")
	}
}

func TestMarkAutoDone_RejectsMalformedResult(t *testing.T) {
	tests := []struct {
		name    string
		res     ClassificationResult
		wantErr error
	}{
		{
			name:    "confidence above one",
			res:     ClassificationResult{Classification: ClassificationSupport, Confidence: 1.2},
			wantErr: ErrConfidenceOutOfRange,
		},
		{
			name:    "negative confidence",
			res:     ClassificationResult{Classification: ClassificationSupport, Confidence: -0.1},
			wantErr: ErrConfidenceOutOfRange,
		},
		{
			name:    "unknown classification",
			res:     ClassificationResult{Classification: "spam", Confidence: 0.9},
			wantErr: ErrClassificationUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lead := newTestLead()
			err := lead.MarkAutoDone(tt.res, floatPtr(0.8), nil, SentByBot, testTime)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if lead.Status.Status != StatusProcessing {
				t.Fatalf("lead must be untouched on rejection, got status %q", lead.Status.Status)
			}
		})
	}
}

func TestApprove_KeepsBotEntry(t *testing.T) {
	lead := newTestLead()
	res := ClassificationResult{Classification: ClassificationHighQuality, Confidence: 0.8}
	if err := lead.MarkReview(res, floatPtr(0.9), nil, testTime); err != nil {
		t.Fatalf("MarkReview: %v", err)
	}

	if err := lead.Approve("dana@sales", testTime.Add(time.Hour)); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	if len(lead.Classifications) != 1 {
		t.Fatalf("approve must not add history entries, got %d", len(lead.Classifications))
	}
	if lead.Status.SentBy != "dana@sales" {
		t.Fatalf("expected sent_by dana@sales, got %q", lead.Status.SentBy)
	}
	terminal, ok := lead.TerminalState()
	if !ok || terminal != TerminalSentMeetingOffer {
		t.Fatalf("expected terminal %q, got %q", TerminalSentMeetingOffer, terminal)
	}
}

func TestOverride_PrependsHumanEntry(t *testing.T) {
	lead := newTestLead()
	res := ClassificationResult{Classification: ClassificationHighQuality, Confidence: 0.8}
	if err := lead.MarkReview(res, floatPtr(0.9), nil, testTime); err != nil {
		t.Fatalf("MarkReview: %v", err)
	}

	if err := lead.Override("dana@sales", ClassificationSupport, testTime.Add(time.Hour)); err != nil {
		t.Fatalf("Override: %v", err)
	}

	if len(lead.Classifications) != 2 {
		t.Fatalf("override must preserve the bot entry, got %d entries", len(lead.Classifications))
	}
	head, _ := lead.Classifications.Latest()
	if head.Author != AuthorHuman || head.Classification != ClassificationSupport {
		t.Fatalf("expected human support entry at head, got %+v", head)
	}
	if lead.Classifications[1].Author != AuthorBot {
		t.Fatal("original bot entry must survive an override")
	}
	terminal, _ := lead.TerminalState()
	if terminal != TerminalForwardedSupport {
		t.Fatalf("terminal must follow the head entry, got %q", terminal)
	}
}

func TestClassifyByHuman_FirstEntry(t *testing.T) {
	lead := newTestLead()
	if err := lead.EnterClassify(); err != nil {
		t.Fatalf("EnterClassify: %v", err)
	}

	if err := lead.ClassifyByHuman("omar@sales", ClassificationLowQuality, testTime.Add(time.Hour)); err != nil {
		t.Fatalf("ClassifyByHuman: %v", err)
	}

	entry, _ := lead.Classifications.Latest()
	if entry.Author != AuthorHuman || entry.Blind {
		t.Fatalf("first human entry with no bot call must not be blind, got %+v", entry)
	}
	if lead.Status.Status != StatusDone {
		t.Fatalf("expected done, got %q", lead.Status.Status)
	}
}

func TestTransitions_RejectWrongStatus(t *testing.T) {
	lead := newTestLead()
	res := ClassificationResult{Classification: ClassificationSupport, Confidence: 0.9}

	if err := lead.Approve("x", testTime); !IsTransitionError(err) {
		t.Fatalf("expected transition error approving a processing lead, got %v", err)
	}
	if err := lead.ClassifyByHuman("x", ClassificationSupport, testTime); !IsTransitionError(err) {
		t.Fatalf("expected transition error classifying a processing lead, got %v", err)
	}

	if err := lead.MarkAutoDone(res, floatPtr(0.8), nil, SentByBot, testTime); err != nil {
		t.Fatalf("MarkAutoDone: %v", err)
	}
	if err := lead.MarkReview(res, floatPtr(0.8), nil, testTime); !IsTransitionError(err) {
		t.Fatalf("expected transition error re-reviewing a done lead, got %v", err)
	}
	if err := lead.EnterClassify(); !IsTransitionError(err) {
		t.Fatalf("expected transition error entering classify from done, got %v", err)
	}
}

func TestApplyReroute(t *testing.T) {
	lead := newTestLead()
	res := ClassificationResult{Classification: ClassificationLowQuality, Confidence: 0.95}
	if err := lead.MarkAutoDone(res, floatPtr(0.85), nil, SentByBot, testTime); err != nil {
		t.Fatalf("MarkAutoDone: %v", err)
	}
	historyLen := len(lead.Classifications)

	err := lead.ApplyReroute(RerouteSourceCustomer, "not a fit", testTime.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("ApplyReroute: %v", err)
	}

	if lead.Status.Status != StatusClassify {
		t.Fatalf("expected classify after reroute, got %q", lead.Status.Status)
	}
	if lead.Reroute == nil {
		t.Fatal("expected reroute record")
	}
	if lead.Reroute.OriginalClassification != ClassificationLowQuality {
		t.Fatalf("expected original classification low-quality, got %q", lead.Reroute.OriginalClassification)
	}
	if lead.Reroute.PreviousTerminalState == nil || *lead.Reroute.PreviousTerminalState != TerminalSentGeneric {
		t.Fatalf("expected previous terminal sent_generic, got %v", lead.Reroute.PreviousTerminalState)
	}
	if len(lead.Classifications) != historyLen {
		t.Fatal("reroute must not touch the classification history")
	}
	if _, ok := lead.TerminalState(); ok {
		t.Fatal("terminal state must be undefined after reroute")
	}
}

func TestApplyReroute_SecondRerouteRejected(t *testing.T) {
	lead := newTestLead()
	res := ClassificationResult{Classification: ClassificationLowQuality, Confidence: 0.95}
	if err := lead.MarkAutoDone(res, floatPtr(0.85), nil, SentByBot, testTime); err != nil {
		t.Fatalf("MarkAutoDone: %v", err)
	}
	if err := lead.ApplyReroute(RerouteSourceCustomer, "wrong call", testTime); err != nil {
		t.Fatalf("first reroute: %v", err)
	}
	if err := lead.ClassifyByHuman("omar@sales", ClassificationHighQuality, testTime.Add(time.Hour)); err != nil {
		t.Fatalf("reclassify: %v", err)
	}
	first := *lead.Reroute

	err := lead.ApplyReroute(RerouteSourceSales, "again", testTime.Add(2*time.Hour))
	if !errors.Is(err, ErrAlreadyRerouted) {
		t.Fatalf("expected ErrAlreadyRerouted, got %v", err)
	}
	if *lead.Reroute != first {
		t.Fatal("first reroute record must be unchanged after a rejected second reroute")
	}
}

func TestApplyReroute_RequiresDone(t *testing.T) {
	lead := newTestLead()
	err := lead.ApplyReroute(RerouteSourceSupport, "", testTime)
	if !IsTransitionError(err) {
		t.Fatalf("expected transition error rerouting a processing lead, got %v", err)
	}
}

func TestRerouteThenBlindReclassification(t *testing.T) {
	lead := newTestLead()
	res := ClassificationResult{Classification: ClassificationLowQuality, Confidence: 0.95}
	if err := lead.MarkAutoDone(res, floatPtr(0.85), nil, SentByBot, testTime); err != nil {
		t.Fatalf("MarkAutoDone: %v", err)
	}
	if err := lead.ApplyReroute(RerouteSourceCustomer, "misjudged", testTime); err != nil {
		t.Fatalf("ApplyReroute: %v", err)
	}

	if err := lead.ClassifyByHuman("omar@sales", ClassificationHighQuality, testTime.Add(time.Hour)); err != nil {
		t.Fatalf("ClassifyByHuman: %v", err)
	}

	head, _ := lead.Classifications.Latest()
	if !head.Blind {
		t.Fatal("post-reroute human entry must be blind: the bot call is disputed, not shown")
	}
	if len(lead.Classifications) != 2 {
		t.Fatalf("expected bot entry preserved under human entry, got %d entries", len(lead.Classifications))
	}
	terminal, _ := lead.TerminalState()
	if terminal != TerminalSentMeetingOffer {
		t.Fatalf("expected terminal %q, got %q", TerminalSentMeetingOffer, terminal)
	}
}

func TestClassificationLog_PrependLeavesOriginal(t *testing.T) {
	log := ClassificationLog{}
	first := ClassificationEntry{Author: AuthorBot, Classification: ClassificationSupport, Timestamp: testTime}
	withOne := log.Prepend(first)
	withTwo := withOne.Prepend(ClassificationEntry{Author: AuthorHuman, Classification: ClassificationExisting, Timestamp: testTime})

	if len(withOne) != 1 || len(withTwo) != 2 {
		t.Fatalf("expected 1 and 2 entries, got %d and %d", len(withOne), len(withTwo))
	}
	if withOne[0].Author != AuthorBot {
		t.Fatal("earlier snapshot must be unaffected by later prepends")
	}
	if withTwo[1] != first {
		t.Fatal("prepend must keep prior entries in order")
	}
}

func TestParseClassification(t *testing.T) {
	for _, valid := range []string{"high-quality", "low-quality", "support", "existing", " Support "} {
		if _, err := ParseClassification(valid); err != nil {
			t.Errorf("ParseClassification(%q): %v", valid, err)
		}
	}
	if _, err := ParseClassification("junk"); !errors.Is(err, ErrClassificationUnknown) {
		t.Fatalf("expected ErrClassificationUnknown, got %v", err)
	}
}
