package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kah-digital/agency-backend/internal/leads/domain"
)

// PostgresStore persists leads in a single table: indexed identity and
// triage columns plus the full record as jsonb.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, lead *domain.LeadRecord) error {
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

	payload, err := json.Marshal(lead)
	if err != nil {
		return fmt.Errorf("marshal lead: %w", err)
	}

	const q = `
INSERT INTO leads (id, submitted_at, email, feasibility, deposit, payload)
VALUES ($1, $2, $3, $4, $5, $6);
`
	if _, err := s.db.Exec(ctx, q,
		lead.ID, lead.SubmittedAt, lead.Email,
		string(lead.Feasibility), string(lead.Deposit), payload,
	); err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]domain.LeadRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	const q = `
SELECT payload
FROM leads
ORDER BY submitted_at DESC
LIMIT $1;
`
	rows, err := s.db.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	out := make([]domain.LeadRecord, 0, limit)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var lead domain.LeadRecord
		if err := json.Unmarshal(payload, &lead); err != nil {
			return nil, fmt.Errorf("decode lead: %w", err)
		}
		out = append(out, lead)
	}
	return out, rows.Err()
}

func (s *PostgresStore) PatchTriage(ctx context.Context, ref Ref, patch TriagePatch) (*domain.LeadRecord, error) {
	feas := ""
	if patch.Feasibility != nil {
		feas = string(*patch.Feasibility)
	}
	dep := ""
	if patch.Deposit != nil {
		dep = string(*patch.Deposit)
	}

	// COALESCE(NULLIF(...)) keeps the stored value when the patch omits a
	// field; the payload mirrors the columns so reads stay one-column.
	const q = `
UPDATE leads
SET feasibility = COALESCE(NULLIF($3, ''), feasibility),
    deposit     = COALESCE(NULLIF($4, ''), deposit),
    payload     = payload
                  || jsonb_build_object('feasibility', COALESCE(NULLIF($3, ''), feasibility))
                  || jsonb_build_object('deposit', COALESCE(NULLIF($4, ''), deposit))
WHERE ($1 != '' AND id = $1)
   OR ($1 = '' AND submitted_at = $2)
RETURNING payload;
`
	var payload []byte
	err := s.db.QueryRow(ctx, q, ref.ID, ref.SubmittedAt, feas, dep).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("patch lead: %w", err)
	}

	var lead domain.LeadRecord
	if err := json.Unmarshal(payload, &lead); err != nil {
		return nil, fmt.Errorf("decode lead: %w", err)
	}
	return &lead, nil
}
