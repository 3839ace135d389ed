package archive

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/leadgate-ai/leadgate/internal/leads"
)

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phoneRe = regexp.MustCompile(`\+?1?[-.\s]?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}`)
)

// HashEmail returns the hex-encoded SHA-256 hash of an email address, so
// archived leads stay joinable without storing the address itself.
func HashEmail(email string) string {
	h := sha256.Sum256([]byte(email))
	return fmt.Sprintf("%x", h)
}

// ScrubPII replaces emails with [EMAIL] and phone numbers with [PHONE].
// Names and company are kept for analysis context.
func ScrubPII(text string) string {
	text = emailRe.ReplaceAllString(text, "[EMAIL]")
	text = phoneRe.ReplaceAllString(text, "[PHONE]")
	return text
}

// ScrubLead returns a deep copy of the lead with contact details redacted.
// The stored email becomes its hash; free text is scrubbed in place.
func ScrubLead(l *leads.Lead) *leads.Lead {
	data, err := json.Marshal(l)
	if err != nil {
		return l
	}
	var out leads.Lead
	if err := json.Unmarshal(data, &out); err != nil {
		return l
	}

	out.Submission.Email = HashEmail(out.Submission.Email)
	out.Submission.Message = ScrubPII(out.Submission.Message)
	if out.Email != nil {
		out.Email.Body = ScrubPII(out.Email.Body)
	}
	return &out
}
