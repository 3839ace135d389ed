package leads

import (
	"encoding/json"
	"strings"
	"time"
)

// Classification is the categorical judgment assigned to a lead.
// The set is closed; anything else is rejected at the boundary.
type Classification string

const (
	ClassificationHighQuality Classification = "high-quality"
	ClassificationLowQuality  Classification = "low-quality"
	ClassificationSupport     Classification = "support"
	ClassificationExisting    Classification = "existing"
)

// ParseClassification validates a raw classification string.
func ParseClassification(s string) (Classification, error) {
	switch Classification(strings.TrimSpace(strings.ToLower(s))) {
	case ClassificationHighQuality:
		return ClassificationHighQuality, nil
	case ClassificationLowQuality:
		return ClassificationLowQuality, nil
	case ClassificationSupport:
		return ClassificationSupport, nil
	case ClassificationExisting:
		return ClassificationExisting, nil
	default:
		return "", ErrClassificationUnknown
	}
}

// TerminalState is the final disposition of a done lead.
type TerminalState string

const (
	TerminalSentMeetingOffer     TerminalState = "sent_meeting_offer"
	TerminalSentGeneric          TerminalState = "sent_generic"
	TerminalForwardedSupport     TerminalState = "forwarded_support"
	TerminalForwardedAccountTeam TerminalState = "forwarded_account_team"
)

// Terminal maps a classification to the disposition it commits the lead to.
func (c Classification) Terminal() (TerminalState, bool) {
	switch c {
	case ClassificationHighQuality:
		return TerminalSentMeetingOffer, true
	case ClassificationLowQuality:
		return TerminalSentGeneric, true
	case ClassificationSupport:
		return TerminalForwardedSupport, true
	case ClassificationExisting:
		return TerminalForwardedAccountTeam, true
	default:
		return "", false
	}
}

// LeadStatus tracks where a lead sits in its lifecycle.
type LeadStatus string

const (
	StatusProcessing LeadStatus = "processing"
	StatusClassify   LeadStatus = "classify"
	StatusReview     LeadStatus = "review"
	StatusDone       LeadStatus = "done"
)

// Author identifies who produced a classification entry.
type Author string

const (
	AuthorBot   Author = "bot"
	AuthorHuman Author = "human"
)

// Submission is the immutable snapshot of the original inquiry.
type Submission struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company"`
	Message string `json:"message"`
}

// Validate checks the minimum fields required to accept a submission.
func (s *Submission) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrInvalidName
	}
	if strings.TrimSpace(s.Email) == "" {
		return ErrMissingContact
	}
	return nil
}

// ClassificationResult is the latest automatic classification of a lead.
type ClassificationResult struct {
	Classification     Classification `json:"classification"`
	Confidence         float64        `json:"confidence"`
	Reasoning          string         `json:"reasoning"`
	IsExistingCustomer bool           `json:"is_existing_customer"`
}

// Validate rejects malformed results before any policy decision is made.
// A confidence outside [0,1] indicates an upstream classifier bug and is
// never clamped.
func (r *ClassificationResult) Validate() error {
	if r.Confidence < 0 || r.Confidence > 1 {
		return ErrConfidenceOutOfRange
	}
	if _, err := ParseClassification(string(r.Classification)); err != nil {
		return err
	}
	return nil
}

// EmailDraft is the generated or human-edited outbound message for a lead.
type EmailDraft struct {
	Subject   string     `json:"subject"`
	Body      string     `json:"body"`
	CreatedAt time.Time  `json:"created_at"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
	EditedBy  string     `json:"edited_by,omitempty"`
}

// Status bundles the lifecycle status with its send bookkeeping.
type Status struct {
	Status     LeadStatus `json:"status"`
	ReceivedAt time.Time  `json:"received_at"`
	SentAt     *time.Time `json:"sent_at,omitempty"`
	SentBy     string     `json:"sent_by,omitempty"`
}

// ClassificationEntry is one record in a lead's decision audit trail.
// Entries are never mutated or removed, only prepended.
type ClassificationEntry struct {
	Author           Author         `json:"author"`
	Classification   Classification `json:"classification"`
	Confidence       float64        `json:"confidence,omitempty"`
	Timestamp        time.Time      `json:"timestamp"`
	NeedsReview      bool           `json:"needs_review,omitempty"`
	AppliedThreshold *float64       `json:"applied_threshold,omitempty"`
	RolloutDraw      *float64       `json:"rollout_draw,omitempty"`
	// Blind marks a human entry made without seeing the bot's call.
	Blind bool `json:"blind,omitempty"`
}

// ClassificationLog is the ordered decision trail, newest entry first.
type ClassificationLog []ClassificationEntry

// Prepend returns a new log with e as the authoritative head entry.
// The receiver is left untouched so historical snapshots stay valid.
func (l ClassificationLog) Prepend(e ClassificationEntry) ClassificationLog {
	out := make(ClassificationLog, 0, len(l)+1)
	out = append(out, e)
	out = append(out, l...)
	return out
}

// Latest returns the authoritative current classification entry.
func (l ClassificationLog) Latest() (ClassificationEntry, bool) {
	if len(l) == 0 {
		return ClassificationEntry{}, false
	}
	return l[0], true
}

// LatestBy returns the most recent entry from the given author.
func (l ClassificationLog) LatestBy(author Author) (ClassificationEntry, bool) {
	for _, e := range l {
		if e.Author == author {
			return e, true
		}
	}
	return ClassificationEntry{}, false
}

// RerouteSource identifies who disputed a lead's disposition.
type RerouteSource string

const (
	RerouteSourceCustomer RerouteSource = "customer"
	RerouteSourceSupport  RerouteSource = "support"
	RerouteSourceSales    RerouteSource = "sales"
)

// ParseRerouteSource validates a raw reroute source string.
func ParseRerouteSource(s string) (RerouteSource, error) {
	switch RerouteSource(strings.TrimSpace(strings.ToLower(s))) {
	case RerouteSourceCustomer:
		return RerouteSourceCustomer, nil
	case RerouteSourceSupport:
		return RerouteSourceSupport, nil
	case RerouteSourceSales:
		return RerouteSourceSales, nil
	default:
		return "", ErrRerouteSourceUnknown
	}
}

// RerouteRecord captures a post-hoc dispute of a lead's disposition.
type RerouteRecord struct {
	Source                 RerouteSource  `json:"source"`
	Reason                 string         `json:"reason,omitempty"`
	OriginalClassification Classification `json:"original_classification"`
	PreviousTerminalState  *TerminalState `json:"previous_terminal_state,omitempty"`
	Timestamp              time.Time      `json:"timestamp"`
}

// Lead is one inbound inquiry tracked from submission to terminal disposition.
// Leads are retained indefinitely for audit and never deleted by this core.
type Lead struct {
	ID                   string                `json:"id"`
	Version              int64                 `json:"version"`
	Submission           Submission            `json:"submission"`
	ClassificationResult *ClassificationResult `json:"classification_result,omitempty"`
	Email                *EmailDraft           `json:"email,omitempty"`
	Status               Status                `json:"status"`
	Classifications      ClassificationLog     `json:"classifications"`
	Reroute              *RerouteRecord        `json:"reroute,omitempty"`
	EvalResults          json.RawMessage       `json:"eval_results,omitempty"`
	CreatedAt            time.Time             `json:"created_at"`
}

// New creates a lead in the processing state with an empty audit trail.
func New(id string, sub Submission, now time.Time) *Lead {
	return &Lead{
		ID:         id,
		Submission: sub,
		Status: Status{
			Status:     StatusProcessing,
			ReceivedAt: now,
		},
		Classifications: ClassificationLog{},
		CreatedAt:       now,
	}
}

// TerminalState derives the final disposition from the current classification.
// It is defined only while the lead is done.
func (l *Lead) TerminalState() (TerminalState, bool) {
	if l.Status.Status != StatusDone {
		return "", false
	}
	entry, ok := l.Classifications.Latest()
	if !ok {
		return "", false
	}
	return entry.Classification.Terminal()
}
