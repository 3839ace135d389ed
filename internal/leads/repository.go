package leads

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// Repository defines the interface for lead storage.
//
// Update is a conditional write: it succeeds only when the stored version
// still matches lead.Version, bumping the version on success. A lost race
// returns ErrVersionConflict so the caller can re-read; the core never
// retries on a stale decision.
type Repository interface {
	Create(ctx context.Context, lead *Lead) error
	GetByID(ctx context.Context, id string) (*Lead, error)
	Update(ctx context.Context, lead *Lead) error
	ListByStatus(ctx context.Context, status LeadStatus, limit int) ([]*Lead, error)
	ListByDateRange(ctx context.Context, start, end time.Time) ([]*Lead, error)
}

// InMemoryRepository is a Repository backed by a map, used in tests and
// local development.
type InMemoryRepository struct {
	mu    sync.RWMutex
	leads map[string]*Lead
}

// NewInMemoryRepository creates a new in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		leads: make(map[string]*Lead),
	}
}

func cloneLead(l *Lead) *Lead {
	data, _ := json.Marshal(l)
	var out Lead
	_ = json.Unmarshal(data, &out)
	return &out
}

// Create stores a new lead. The ID must be unused.
func (r *InMemoryRepository) Create(ctx context.Context, lead *Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.leads[lead.ID]; ok {
		return ErrLeadExists
	}
	r.leads[lead.ID] = cloneLead(lead)
	return nil
}

// GetByID retrieves a lead by ID.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lead, ok := r.leads[id]
	if !ok {
		return nil, ErrLeadNotFound
	}
	return cloneLead(lead), nil
}

// Update writes the lead back if nobody else has written it since it was
// read, and bumps the caller's copy to the new version.
func (r *InMemoryRepository) Update(ctx context.Context, lead *Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.leads[lead.ID]
	if !ok {
		return ErrLeadNotFound
	}
	if stored.Version != lead.Version {
		return ErrVersionConflict
	}
	lead.Version++
	r.leads[lead.ID] = cloneLead(lead)
	return nil
}

// ListByStatus returns leads currently in the given status, oldest first.
func (r *InMemoryRepository) ListByStatus(ctx context.Context, status LeadStatus, limit int) ([]*Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Lead
	for _, lead := range r.leads {
		if lead.Status.Status == status {
			out = append(out, cloneLead(lead))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListByDateRange returns leads created in [start, end), oldest first.
func (r *InMemoryRepository) ListByDateRange(ctx context.Context, start, end time.Time) ([]*Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Lead
	for _, lead := range r.leads {
		if !lead.CreatedAt.Before(start) && lead.CreatedAt.Before(end) {
			out = append(out, cloneLead(lead))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
