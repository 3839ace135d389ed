package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/leadgate-ai/leadgate/internal/leads"
	"github.com/leadgate-ai/leadgate/pkg/logging"
)

// ErrNoTerminalState reports a delivery attempt for a lead that has not
// reached a final disposition.
var ErrNoTerminalState = errors.New("notify: lead has no terminal state")

// Inboxes holds the internal destinations for forwarded leads.
type Inboxes struct {
	Support     string
	AccountTeam string
}

// Service turns a routed lead's disposition into outbound mail: a reply
// to the lead itself, or a forward to the right internal team. It only
// sends; recording sent_at/sent_by on the lead is the caller's job.
type Service struct {
	email   EmailSender
	inboxes Inboxes
	logger  *logging.Logger
}

func NewService(email EmailSender, inboxes Inboxes, logger *logging.Logger) *Service {
	if email == nil {
		panic("notify: nil email sender")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{email: email, inboxes: inboxes, logger: logger}
}

// Deliver sends the message implied by the lead's terminal state. A lead
// that is not done is an error; the caller decided too early.
func (s *Service) Deliver(ctx context.Context, lead *leads.Lead) error {
	terminal, ok := lead.TerminalState()
	if !ok {
		return ErrNoTerminalState
	}

	var msg EmailMessage
	switch terminal {
	case leads.TerminalSentMeetingOffer:
		msg = s.composeReply(lead, meetingOfferSubject, meetingOfferBody(lead))
	case leads.TerminalSentGeneric:
		msg = s.composeReply(lead, genericSubject, genericBody(lead))
	case leads.TerminalForwardedSupport:
		msg = s.composeForward(lead, s.inboxes.Support, "support")
	case leads.TerminalForwardedAccountTeam:
		msg = s.composeForward(lead, s.inboxes.AccountTeam, "account team")
	default:
		return fmt.Errorf("notify: unhandled terminal state %q", terminal)
	}

	if err := s.email.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: deliver %s for lead %s: %w", terminal, lead.ID, err)
	}
	s.logger.Info("lead mail delivered", "lead_id", lead.ID, "terminal_state", string(terminal), "to", msg.To)
	return nil
}

const (
	meetingOfferSubject = "Let's find a time to talk"
	genericSubject      = "Thanks for reaching out"
)

// composeReply prefers a reviewed draft over the stock template. Human
// edits to the draft always win.
func (s *Service) composeReply(lead *leads.Lead, subject, body string) EmailMessage {
	if lead.Email != nil && strings.TrimSpace(lead.Email.Body) != "" {
		if strings.TrimSpace(lead.Email.Subject) != "" {
			subject = lead.Email.Subject
		}
		body = lead.Email.Body
	}
	return EmailMessage{
		To:      lead.Submission.Email,
		ToName:  lead.Submission.Name,
		Subject: subject,
		Body:    body,
	}
}

func (s *Service) composeForward(lead *leads.Lead, inbox, team string) EmailMessage {
	reasoning := ""
	if lead.ClassificationResult != nil {
		reasoning = lead.ClassificationResult.Reasoning
	}
	body := fmt.Sprintf(`An inbound lead was routed to the %s.

Name: %s
Email: %s
Company: %s

Message:
%s
`, team, lead.Submission.Name, lead.Submission.Email, lead.Submission.Company, lead.Submission.Message)
	if reasoning != "" {
		body += fmt.Sprintf("\nRouting note: %s\n", reasoning)
	}
	return EmailMessage{
		To:      inbox,
		Subject: fmt.Sprintf("[lead] %s (%s)", lead.Submission.Name, lead.Submission.Company),
		Body:    body,
	}
}

func meetingOfferBody(lead *leads.Lead) string {
	return fmt.Sprintf(`Hi %s,

Thanks for reaching out about %s. What you described sounds like a strong fit for what we do, and I'd love to set up a short call to walk through it.

You can grab a time that works for you here, or just reply with a couple of slots.

Best,
The LeadGate team`, firstName(lead.Submission.Name), companyOr(lead.Submission.Company, "your project"))
}

func genericBody(lead *leads.Lead) string {
	return fmt.Sprintf(`Hi %s,

Thanks for getting in touch. We've received your message and will follow up if there's a good fit.

In the meantime, our documentation and product pages cover most common questions.

Best,
The LeadGate team`, firstName(lead.Submission.Name))
}

func firstName(full string) string {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return "there"
	}
	return fields[0]
}

func companyOr(company, fallback string) string {
	if strings.TrimSpace(company) == "" {
		return fallback
	}
	return company
}
