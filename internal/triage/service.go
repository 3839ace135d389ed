// Package triage orchestrates the lead routing pipeline: intake,
// automatic classification, the routing decision, human review actions,
// and reroute disputes. All lead mutation flows through here so the
// optimistic-write discipline lives in one place.
package triage

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/leadgate-ai/leadgate/internal/leads"
	"github.com/leadgate-ai/leadgate/internal/observability/metrics"
	"github.com/leadgate-ai/leadgate/internal/policy"
	"github.com/leadgate-ai/leadgate/internal/routing"
	"github.com/leadgate-ai/leadgate/pkg/logging"
)

var tracer = otel.Tracer("leadgate/triage")

// Classifier produces an automatic classification for a submission.
type Classifier interface {
	Classify(ctx context.Context, sub leads.Submission) (leads.ClassificationResult, error)
}

// PolicySource supplies the active routing policy. Implementations must
// not block lead processing on a slow fetch; see routing.Provider.
type PolicySource interface {
	Active(ctx context.Context) routing.Config
}

// Deliverer sends the outbound mail implied by a lead's terminal state.
type Deliverer interface {
	Deliver(ctx context.Context, lead *leads.Lead) error
}

// Archiver persists audit snapshots of routed leads.
type Archiver interface {
	ArchiveLead(ctx context.Context, lead *leads.Lead, event string) error
}

// Service runs the routing pipeline. Version conflicts from the
// repository are returned to the caller untouched; retrying a decision
// made from a stale read is the caller's choice, never automatic.
type Service struct {
	repo       leads.Repository
	classifier Classifier
	policies   PolicySource
	deliverer  Deliverer
	archiver   Archiver
	metrics    *metrics.RoutingMetrics
	logger     *logging.Logger

	now   func() time.Time
	draw  func() float64
	newID func() string
}

// Options carries the optional collaborators.
type Options struct {
	Archiver Archiver
	Metrics  *metrics.RoutingMetrics
	Logger   *logging.Logger
	// Now and Draw are overridable for tests.
	Now  func() time.Time
	Draw func() float64
}

func NewService(repo leads.Repository, classifier Classifier, policies PolicySource, deliverer Deliverer, opts Options) *Service {
	if repo == nil {
		panic("triage: nil repository")
	}
	if classifier == nil {
		panic("triage: nil classifier")
	}
	if policies == nil {
		panic("triage: nil policy source")
	}
	if deliverer == nil {
		panic("triage: nil deliverer")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	draw := opts.Draw
	if draw == nil {
		draw = rand.Float64
	}
	return &Service{
		repo:       repo,
		classifier: classifier,
		policies:   policies,
		deliverer:  deliverer,
		archiver:   opts.Archiver,
		metrics:    opts.Metrics,
		logger:     logger,
		now:        now,
		draw:       draw,
		newID:      uuid.NewString,
	}
}

// Intake accepts a submission, persists the new lead, and runs it through
// classification and the routing decision.
func (s *Service) Intake(ctx context.Context, sub leads.Submission) (*leads.Lead, error) {
	return s.IntakeWithID(ctx, s.newID(), sub)
}

// IntakeWithID is Intake with a caller-supplied lead ID. The queue worker
// passes the job ID here so a redelivered job collides on
// leads.ErrLeadExists instead of minting a second lead, and a second
// rollout draw, for the same submission.
func (s *Service) IntakeWithID(ctx context.Context, id string, sub leads.Submission) (*leads.Lead, error) {
	ctx, span := tracer.Start(ctx, "triage.intake")
	defer span.End()

	if err := sub.Validate(); err != nil {
		return nil, err
	}
	if id == "" {
		id = s.newID()
	}

	lead := leads.New(id, sub, s.now().UTC())
	if err := s.repo.Create(ctx, lead); err != nil {
		return nil, fmt.Errorf("triage: create lead: %w", err)
	}
	span.SetAttributes(attribute.String("lead.id", lead.ID))

	if err := s.Process(ctx, lead); err != nil {
		return nil, err
	}
	return lead, nil
}

// Resume picks a previously created lead back up after an interrupted
// intake. A lead still in processing never had a decision persisted, so
// running it again records the first and only draw; a lead that already
// advanced is returned unchanged with nothing recomputed.
func (s *Service) Resume(ctx context.Context, leadID string) (*leads.Lead, error) {
	lead, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if lead.Status.Status != leads.StatusProcessing {
		return lead, nil
	}
	if err := s.Process(ctx, lead); err != nil {
		return nil, err
	}
	return lead, nil
}

// Process classifies a freshly created lead and applies the routing
// decision. A classifier failure is not fatal: the lead is diverted to
// the classify lane and a human takes over.
func (s *Service) Process(ctx context.Context, lead *leads.Lead) error {
	ctx, span := tracer.Start(ctx, "triage.process",
		trace.WithAttributes(attribute.String("lead.id", lead.ID)))
	defer span.End()

	classifyStart := s.now()
	res, err := s.classifier.Classify(ctx, lead.Submission)
	s.metrics.ObserveClassifyLatency("primary", s.now().Sub(classifyStart).Seconds())
	if err != nil {
		s.logger.Warn("classification failed, routing to human", "lead_id", lead.ID, "error", err)
		if terr := lead.EnterClassify(); terr != nil {
			return terr
		}
		if uerr := s.repo.Update(ctx, lead); uerr != nil {
			return s.noteConflict(fmt.Errorf("triage: persist classify lane: %w", uerr))
		}
		s.metrics.ObserveDecision("human_classify", "unclassified")
		return nil
	}

	cfg := s.policies.Active(ctx)
	decision, err := policy.Evaluate(res, cfg, s.draw)
	if err != nil {
		// A malformed result is a classifier bug; a human takes the lead.
		s.logger.Error("classification rejected by policy", "lead_id", lead.ID, "error", err)
		if terr := lead.EnterClassify(); terr != nil {
			return terr
		}
		if uerr := s.repo.Update(ctx, lead); uerr != nil {
			return s.noteConflict(fmt.Errorf("triage: persist classify lane: %w", uerr))
		}
		s.metrics.ObserveDecision("human_classify", string(res.Classification))
		return nil
	}
	span.SetAttributes(
		attribute.String("decision.outcome", string(decision.Outcome)),
		attribute.String("classification", string(res.Classification)),
	)

	now := s.now().UTC()
	switch decision.Outcome {
	case policy.OutcomeRequireReview:
		if err := lead.MarkReview(res, decision.Threshold, decision.RolloutDraw, now); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, lead); err != nil {
			return s.noteConflict(fmt.Errorf("triage: persist review: %w", err))
		}
		s.metrics.ObserveDecision(string(decision.Outcome), string(res.Classification))
		return nil

	case policy.OutcomeAutoSend, policy.OutcomeAutoForward:
		// A slice of auto-eligible leads is diverted for blind human
		// validation instead of being acted on. The deterministic
		// existing-customer bypass is never sampled.
		if !res.IsExistingCustomer && cfg.ValidationSamplePercent > 0 && s.draw() < cfg.ValidationSamplePercent {
			if err := lead.MarkBlindValidation(res, decision.Threshold, decision.RolloutDraw, now); err != nil {
				return err
			}
			if err := s.repo.Update(ctx, lead); err != nil {
				return s.noteConflict(fmt.Errorf("triage: persist validation sample: %w", err))
			}
			s.metrics.ObserveDecision("blind_validation", string(res.Classification))
			return nil
		}

		if err := lead.MarkAutoDone(res, decision.Threshold, decision.RolloutDraw, decision.SentBy, now); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, lead); err != nil {
			return s.noteConflict(fmt.Errorf("triage: persist decision: %w", err))
		}
		s.metrics.ObserveDecision(string(decision.Outcome), string(res.Classification))
		s.archive(ctx, lead, "decision")
		if err := s.deliverer.Deliver(ctx, lead); err != nil {
			return fmt.Errorf("triage: deliver lead %s: %w", lead.ID, err)
		}
		return nil
	}

	return fmt.Errorf("triage: unhandled outcome %q", decision.Outcome)
}

// Approve confirms a reviewed lead under the bot's classification and
// sends the resulting mail.
func (s *Service) Approve(ctx context.Context, leadID, reviewer string) (*leads.Lead, error) {
	ctx, span := tracer.Start(ctx, "triage.approve")
	defer span.End()

	lead, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if err := lead.Approve(reviewer, s.now().UTC()); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, lead); err != nil {
		return nil, s.noteConflict(fmt.Errorf("triage: persist approve: %w", err))
	}
	s.archive(ctx, lead, "approve")
	if err := s.deliverer.Deliver(ctx, lead); err != nil {
		return nil, fmt.Errorf("triage: deliver lead %s: %w", lead.ID, err)
	}
	return lead, nil
}

// Override closes a reviewed lead under the reviewer's classification.
func (s *Service) Override(ctx context.Context, leadID, reviewer string, class leads.Classification) (*leads.Lead, error) {
	ctx, span := tracer.Start(ctx, "triage.override")
	defer span.End()

	lead, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if err := lead.Override(reviewer, class, s.now().UTC()); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, lead); err != nil {
		return nil, s.noteConflict(fmt.Errorf("triage: persist override: %w", err))
	}
	s.archive(ctx, lead, "override")
	if err := s.deliverer.Deliver(ctx, lead); err != nil {
		return nil, fmt.Errorf("triage: deliver lead %s: %w", lead.ID, err)
	}
	return lead, nil
}

// Classify closes a classify-lane lead with the human's call and sends
// the resulting mail.
func (s *Service) Classify(ctx context.Context, leadID, reviewer string, class leads.Classification) (*leads.Lead, error) {
	ctx, span := tracer.Start(ctx, "triage.classify")
	defer span.End()

	lead, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if err := lead.ClassifyByHuman(reviewer, class, s.now().UTC()); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, lead); err != nil {
		return nil, s.noteConflict(fmt.Errorf("triage: persist classify: %w", err))
	}
	s.archive(ctx, lead, "classify")
	if err := s.deliverer.Deliver(ctx, lead); err != nil {
		return nil, fmt.Errorf("triage: deliver lead %s: %w", lead.ID, err)
	}
	return lead, nil
}

// Reroute records a dispute against a done lead and reopens it for
// reclassification. The second dispute for the same lead fails with
// leads.ErrAlreadyRerouted and changes nothing.
func (s *Service) Reroute(ctx context.Context, leadID string, source leads.RerouteSource, reason string) (*leads.Lead, error) {
	ctx, span := tracer.Start(ctx, "triage.reroute")
	defer span.End()

	lead, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if err := lead.ApplyReroute(source, reason, s.now().UTC()); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, lead); err != nil {
		return nil, s.noteConflict(fmt.Errorf("triage: persist reroute: %w", err))
	}
	s.metrics.ObserveReroute(string(source))
	s.archive(ctx, lead, "reroute")
	return lead, nil
}

// ReviewQueue lists leads waiting for a human approve/override decision,
// oldest first.
func (s *Service) ReviewQueue(ctx context.Context, limit int) ([]*leads.Lead, error) {
	return s.repo.ListByStatus(ctx, leads.StatusReview, limit)
}

// ClassifyQueue lists leads waiting for human classification from
// scratch, oldest first.
func (s *Service) ClassifyQueue(ctx context.Context, limit int) ([]*leads.Lead, error) {
	return s.repo.ListByStatus(ctx, leads.StatusClassify, limit)
}

// Get returns a single lead.
func (s *Service) Get(ctx context.Context, leadID string) (*leads.Lead, error) {
	return s.repo.GetByID(ctx, leadID)
}

func (s *Service) archive(ctx context.Context, lead *leads.Lead, event string) {
	if s.archiver == nil {
		return
	}
	if err := s.archiver.ArchiveLead(ctx, lead, event); err != nil {
		s.logger.Warn("lead archive failed", "lead_id", lead.ID, "event", event, "error", err)
	}
}

func (s *Service) noteConflict(err error) error {
	if errors.Is(err, leads.ErrVersionConflict) {
		s.metrics.ObserveVersionConflict()
	}
	return err
}
