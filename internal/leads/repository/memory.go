package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kah-digital/agency-backend/internal/leads/domain"
)

// MemoryStore keeps leads in process memory. It backs tests and local
// development where Postgres is not running.
type MemoryStore struct {
	mu    sync.RWMutex
	leads []domain.LeadRecord

	// FailPatch, when set, makes PatchTriage return the given error.
	// Tests use it to exercise optimistic-rollback paths.
	FailPatch error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Insert(_ context.Context, lead *domain.LeadRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	if lead.SubmittedAt.IsZero() {
		lead.SubmittedAt = time.Now().UTC()
	}
	if lead.Feasibility == "" {
		lead.Feasibility = domain.FeasibilityPending
	}
	if lead.Deposit == "" {
		lead.Deposit = domain.DepositNone
	}

	s.leads = append(s.leads, *lead)
	return nil
}

func (s *MemoryStore) ListRecent(_ context.Context, limit int) ([]domain.LeadRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.LeadRecord, len(s.leads))
	copy(out, s.leads)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) PatchTriage(_ context.Context, ref Ref, patch TriagePatch) (*domain.LeadRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailPatch != nil {
		return nil, s.FailPatch
	}

	for i := range s.leads {
		lead := &s.leads[i]
		match := (ref.ID != "" && lead.ID == ref.ID) ||
			(ref.ID == "" && lead.SubmittedAt.Equal(ref.SubmittedAt))
		if !match {
			continue
		}
		if patch.Feasibility != nil {
			lead.Feasibility = *patch.Feasibility
		}
		if patch.Deposit != nil {
			lead.Deposit = *patch.Deposit
		}
		updated := *lead
		return &updated, nil
	}
	return nil, ErrNotFound
}
