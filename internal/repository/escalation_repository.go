package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-hr-approvals/internal/database"
	"github.com/pesio-ai/be-hr-approvals/internal/errors"
)

// EscalationRepository persists leave-balance escalation chains. Status
// transitions are compare-and-set on the current status, and the terminal
// balance mutation runs inside the transition's transaction.
type EscalationRepository struct {
	db *database.DB
}

// NewEscalationRepository creates a new EscalationRepository.
func NewEscalationRepository(db *database.DB) *EscalationRepository {
	return &EscalationRepository{db: db}
}

// Create inserts a chain. The extra callback runs in the same transaction so
// the creation audit entry is written atomically with the chain itself.
func (r *EscalationRepository) Create(ctx context.Context, chain *EscalationChain, extra TxFunc) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO escalation_chains
			    (requester_id, target_id, category, amount, reason, status)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at, updated_at
		`

		err := tx.QueryRow(ctx, query,
			chain.RequesterID,
			chain.TargetID,
			chain.Category,
			chain.Amount,
			chain.Reason,
			chain.Status,
		).Scan(&chain.ID, &chain.CreatedAt, &chain.UpdatedAt)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to create escalation chain")
		}

		if extra != nil {
			return extra(ctx, tx)
		}
		return nil
	})
}

// GetByID retrieves a chain by primary key.
func (r *EscalationRepository) GetByID(ctx context.Context, id string) (*EscalationChain, error) {
	query := `
		SELECT id, requester_id, target_id, category, amount, reason, status,
		       created_at, updated_at
		FROM escalation_chains
		WHERE id = $1
	`

	chain, err := scanChain(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("escalation_chain", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get escalation chain")
	}
	return chain, nil
}

// Transition moves a chain from one status to another with optimistic
// concurrency: the update is conditioned on the status the caller read, so
// racing approvers produce exactly one successful transition. The extra
// callback (audit entry, terminal balance mutation) runs inside the same
// transaction.
func (r *EscalationRepository) Transition(ctx context.Context, id, fromStatus, toStatus string, extra TxFunc) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			UPDATE escalation_chains
			SET status     = $3,
			    updated_at = NOW()
			WHERE id = $1 AND status = $2
			RETURNING id
		`

		var returnedID string
		err := tx.QueryRow(ctx, query, id, fromStatus, toStatus).Scan(&returnedID)
		if err == pgx.ErrNoRows {
			return errors.New(errors.ErrCodeAlreadyFinalized,
				"escalation chain was advanced or finalized by another actor")
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to transition escalation chain")
		}

		if extra != nil {
			return extra(ctx, tx)
		}
		return nil
	})
}

// ListByStatus returns chains in a given status, oldest first.
func (r *EscalationRepository) ListByStatus(ctx context.Context, status string) ([]*EscalationChain, error) {
	query := `
		SELECT id, requester_id, target_id, category, amount, reason, status,
		       created_at, updated_at
		FROM escalation_chains
		WHERE status = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, status)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list escalation chains")
	}
	defer rows.Close()

	var chains []*EscalationChain
	for rows.Next() {
		chain, err := scanChain(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan escalation chain")
		}
		chains = append(chains, chain)
	}
	return chains, nil
}

func scanChain(row rowScanner) (*EscalationChain, error) {
	chain := &EscalationChain{}
	err := row.Scan(
		&chain.ID,
		&chain.RequesterID,
		&chain.TargetID,
		&chain.Category,
		&chain.Amount,
		&chain.Reason,
		&chain.Status,
		&chain.CreatedAt,
		&chain.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return chain, nil
}
