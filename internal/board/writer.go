package board

import (
	"context"
	"sync"

	"github.com/kah-digital/agency-backend/internal/leads/domain"
	"github.com/kah-digital/agency-backend/internal/leads/repository"
)

// TriageWriter coordinates optimistic updates to the server-tracked triage
// fields. The optimistic value is applied before the write is issued and
// rolled back if the write fails, so the displayed state never silently
// diverges from the store. Writes to the same lead key are serialized; a
// second update waits for the first to resolve.
type TriageWriter struct {
	store repository.Store

	mu       sync.Mutex
	keyLocks map[string]*sync.Mutex
	pending  map[string]repository.TriagePatch
}

func NewTriageWriter(store repository.Store) *TriageWriter {
	return &TriageWriter{
		store:    store,
		keyLocks: make(map[string]*sync.Mutex),
		pending:  make(map[string]repository.TriagePatch),
	}
}

// Update applies the patch optimistically, writes through, and rolls the
// optimistic state back when the write fails. The returned record is the
// store's post-write truth on success, nil plus the error on failure.
func (w *TriageWriter) Update(ctx context.Context, lead domain.LeadRecord, patch repository.TriagePatch) (*domain.LeadRecord, error) {
	key := lead.Key()
	lock := w.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	// Optimistic apply before the network call.
	w.setPending(key, patch)

	ref := repository.Ref{ID: lead.ID, SubmittedAt: lead.SubmittedAt}
	updated, err := w.store.PatchTriage(ctx, ref, patch)

	// Resolved either way: on success the store is authoritative, on
	// failure we roll back to the pre-update value.
	w.clearPending(key)

	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Overlay projects in-flight optimistic values onto a freshly polled
// snapshot, so a concurrent stale read cannot clobber a pending write.
func (w *TriageWriter) Overlay(leads []domain.LeadRecord) []domain.LeadRecord {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.pending) == 0 {
		return leads
	}

	out := make([]domain.LeadRecord, len(leads))
	copy(out, leads)
	for i := range out {
		patch, ok := w.pending[out[i].Key()]
		if !ok {
			continue
		}
		if patch.Feasibility != nil {
			out[i].Feasibility = *patch.Feasibility
		}
		if patch.Deposit != nil {
			out[i].Deposit = *patch.Deposit
		}
	}
	return out
}

func (w *TriageWriter) lockFor(key string) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()

	lock, ok := w.keyLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		w.keyLocks[key] = lock
	}
	return lock
}

func (w *TriageWriter) setPending(key string, patch repository.TriagePatch) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[key] = patch
}

func (w *TriageWriter) clearPending(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.pending, key)
}
