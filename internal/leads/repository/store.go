package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kah-digital/agency-backend/internal/leads/domain"
)

var ErrNotFound = errors.New("lead not found")

// Ref identifies a lead for a triage patch: by ID when the record has been
// persisted with one, otherwise by its immutable submission timestamp.
type Ref struct {
	ID          string
	SubmittedAt time.Time
}

// TriagePatch is a partial update of the server-mutable triage fields.
// Nil fields are left untouched.
type TriagePatch struct {
	Feasibility *domain.Feasibility
	Deposit     *domain.Deposit
}

// Store is the persistence boundary for lead records. The concrete backing
// store is swappable; handlers and the triage board only see this interface.
type Store interface {
	Insert(ctx context.Context, lead *domain.LeadRecord) error
	ListRecent(ctx context.Context, limit int) ([]domain.LeadRecord, error)
	PatchTriage(ctx context.Context, ref Ref, patch TriagePatch) (*domain.LeadRecord, error)
}
