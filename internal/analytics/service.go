package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/leadgate-ai/leadgate/internal/leads"
	"github.com/leadgate-ai/leadgate/pkg/logging"
)

// Service loads a point-in-time snapshot of leads and reports agreement
// statistics over it. Runs are independent and safe to execute while
// leads are being processed; nothing is maintained incrementally.
type Service struct {
	repo   leads.Repository
	logger *logging.Logger
}

func NewService(repo leads.Repository, logger *logging.Logger) *Service {
	if repo == nil {
		panic("analytics: nil repository")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// AgreementBetween computes agreement stats for leads received in
// [from, to).
func (s *Service) AgreementBetween(ctx context.Context, from, to time.Time) (*Stats, error) {
	snapshot, err := s.repo.ListByDateRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("analytics: load snapshot: %w", err)
	}
	stats := Compute(snapshot)
	s.logger.Info("agreement computed",
		"leads", len(snapshot),
		"comparisons", stats.Overall.Total,
		"agreement_percent", stats.AgreementPercent())
	return stats, nil
}
