package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/leadgate-ai/leadgate/internal/leads"
)

type captureSender struct {
	sent []EmailMessage
	err  error
}

func (c *captureSender) Send(ctx context.Context, msg EmailMessage) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msg)
	return nil
}

var testInboxes = Inboxes{
	Support:     "support@leadgate.ai",
	AccountTeam: "accounts@leadgate.ai",
}

func doneLead(t *testing.T, class leads.Classification) *leads.Lead {
	t.Helper()
	now := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	l := leads.New("l-1", leads.Submission{
		Name:    "Dana Reyes",
		Email:   "dana@acme.io",
		Company: "Acme",
		Message: "We need routing for our sales team.",
	}, now)
	res := leads.ClassificationResult{Classification: class, Confidence: 0.95, Reasoning: "clear signal"}
	l.ClassificationResult = &res
	threshold := 0.85
	draw := 0.1
	if err := l.MarkAutoDone(res, &threshold, &draw, leads.SentByBot, now); err != nil {
		t.Fatalf("mark done: %v", err)
	}
	return l
}

func TestDeliver_MeetingOfferGoesToLead(t *testing.T) {
	sender := &captureSender{}
	svc := NewService(sender, testInboxes, nil)

	if err := svc.Deliver(context.Background(), doneLead(t, leads.ClassificationHighQuality)); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.To != "dana@acme.io" {
		t.Fatalf("to = %s", msg.To)
	}
	if !strings.Contains(msg.Body, "Dana") || !strings.Contains(msg.Body, "call") {
		t.Fatalf("unexpected meeting offer body: %q", msg.Body)
	}
}

func TestDeliver_GenericReplyGoesToLead(t *testing.T) {
	sender := &captureSender{}
	svc := NewService(sender, testInboxes, nil)

	if err := svc.Deliver(context.Background(), doneLead(t, leads.ClassificationLowQuality)); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	msg := sender.sent[0]
	if msg.To != "dana@acme.io" {
		t.Fatalf("to = %s", msg.To)
	}
	if msg.Subject != genericSubject {
		t.Fatalf("subject = %q", msg.Subject)
	}
}

func TestDeliver_ForwardsToTeamInboxes(t *testing.T) {
	cases := []struct {
		class leads.Classification
		to    string
	}{
		{leads.ClassificationSupport, testInboxes.Support},
		{leads.ClassificationExisting, testInboxes.AccountTeam},
	}
	for _, tc := range cases {
		sender := &captureSender{}
		svc := NewService(sender, testInboxes, nil)
		if err := svc.Deliver(context.Background(), doneLead(t, tc.class)); err != nil {
			t.Fatalf("%s: deliver: %v", tc.class, err)
		}
		msg := sender.sent[0]
		if msg.To != tc.to {
			t.Fatalf("%s: to = %s, want %s", tc.class, msg.To, tc.to)
		}
		if !strings.Contains(msg.Body, "dana@acme.io") {
			t.Fatalf("%s: forward body missing lead contact", tc.class)
		}
		if !strings.Contains(msg.Body, "clear signal") {
			t.Fatalf("%s: forward body missing routing note", tc.class)
		}
	}
}

func TestDeliver_PrefersReviewedDraft(t *testing.T) {
	lead := doneLead(t, leads.ClassificationHighQuality)
	lead.Email = &leads.EmailDraft{
		Subject: "Following up on Acme",
		Body:    "Hand-tuned reply body.",
	}

	sender := &captureSender{}
	svc := NewService(sender, testInboxes, nil)
	if err := svc.Deliver(context.Background(), lead); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	msg := sender.sent[0]
	if msg.Subject != "Following up on Acme" || msg.Body != "Hand-tuned reply body." {
		t.Fatalf("draft not used: %q / %q", msg.Subject, msg.Body)
	}
}

func TestDeliver_RejectsNonTerminalLead(t *testing.T) {
	now := time.Now()
	lead := leads.New("l-2", leads.Submission{Name: "A", Email: "a@b.co"}, now)

	svc := NewService(&captureSender{}, testInboxes, nil)
	if err := svc.Deliver(context.Background(), lead); !errors.Is(err, ErrNoTerminalState) {
		t.Fatalf("err = %v, want ErrNoTerminalState", err)
	}
}

func TestDeliver_SendFailurePropagates(t *testing.T) {
	boom := errors.New("smtp down")
	svc := NewService(&captureSender{err: boom}, testInboxes, nil)
	if err := svc.Deliver(context.Background(), doneLead(t, leads.ClassificationLowQuality)); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}
