package leads

import "errors"

var (
	// ErrInvalidName is returned when the submission name is missing.
	ErrInvalidName = errors.New("leads: name is required")

	// ErrMissingContact is returned when the submission has no email address.
	ErrMissingContact = errors.New("leads: email is required")

	// ErrLeadNotFound is returned when a lead is not found.
	ErrLeadNotFound = errors.New("leads: lead not found")

	// ErrLeadExists is returned when creating a lead whose ID is already taken.
	ErrLeadExists = errors.New("leads: lead already exists")

	// ErrVersionConflict is returned when a conditional write loses a race.
	// The caller decides whether to re-read and retry; the core never does.
	ErrVersionConflict = errors.New("leads: lead was modified concurrently")

	// ErrClassificationUnknown is returned for a classification outside the
	// fixed set. It never falls through to a default automatic action.
	ErrClassificationUnknown = errors.New("leads: unknown classification")

	// ErrConfidenceOutOfRange is returned for a confidence outside [0,1].
	ErrConfidenceOutOfRange = errors.New("leads: confidence outside [0,1]")

	// ErrRerouteSourceUnknown is returned for a reroute source outside the
	// fixed set.
	ErrRerouteSourceUnknown = errors.New("leads: unknown reroute source")

	// ErrAlreadyRerouted is returned when a lead already carries a reroute.
	// Only one dispute is tracked per lead; a second complaint is handled
	// out-of-band, never silently overwritten.
	ErrAlreadyRerouted = errors.New("leads: lead already rerouted")
)

// TransitionError reports a lifecycle transition attempted from the wrong
// status. It names the violated precondition so callers can surface a
// specific failure rather than a generic one.
type TransitionError struct {
	From LeadStatus
	To   LeadStatus
}

func (e *TransitionError) Error() string {
	return "leads: invalid transition from " + string(e.From) + " to " + string(e.To)
}

// IsTransitionError reports whether err is a lifecycle transition violation.
func IsTransitionError(err error) bool {
	var te *TransitionError
	return errors.As(err, &te)
}
