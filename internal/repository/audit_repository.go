package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-hr-approvals/internal/database"
	"github.com/pesio-ai/be-hr-approvals/internal/errors"
)

// AuditRepository appends and reads immutable approval audit entries.
// Append is the only mutation; the table carries a delete-prevention trigger.
type AuditRepository struct {
	db *database.DB
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db *database.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// rowQuerier is satisfied by both the pool wrapper and pgx.Tx.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Append inserts one audit entry outside any transaction. Generic workflow
// audit writes go through here and are treated as non-fatal by callers.
func (r *AuditRepository) Append(ctx context.Context, entry *AuditEntry) error {
	return appendEntry(ctx, r.db, entry)
}

// AppendTx inserts one audit entry inside the caller's transaction. The
// escalation chain uses this so its audit trail is exactly one entry per
// transition, atomically with the transition itself.
func (r *AuditRepository) AppendTx(ctx context.Context, tx pgx.Tx, entry *AuditEntry) error {
	return appendEntry(ctx, tx, entry)
}

func appendEntry(ctx context.Context, q rowQuerier, entry *AuditEntry) error {
	var metadataJSON []byte
	if entry.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(entry.Metadata)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal audit metadata")
		}
	}

	query := `
		INSERT INTO approval_audit_log
		    (workflow_id, chain_id, step_name,
		     action, actor_id, actor_role, comments, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, performed_at
	`

	err := q.QueryRow(ctx, query,
		entry.WorkflowID,
		entry.ChainID,
		entry.StepName,
		entry.Action,
		entry.ActorID,
		entry.ActorRole,
		entry.Comments,
		metadataJSON,
	).Scan(&entry.ID, &entry.PerformedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to append audit entry")
	}
	return nil
}

// ListByWorkflowID returns a workflow's audit trail oldest-first.
func (r *AuditRepository) ListByWorkflowID(ctx context.Context, workflowID string) ([]*AuditEntry, error) {
	return r.list(ctx, `workflow_id = $1`, workflowID)
}

// ListByChainID returns an escalation chain's audit trail oldest-first.
func (r *AuditRepository) ListByChainID(ctx context.Context, chainID string) ([]*AuditEntry, error) {
	return r.list(ctx, `chain_id = $1`, chainID)
}

func (r *AuditRepository) list(ctx context.Context, where string, arg any) ([]*AuditEntry, error) {
	query := `
		SELECT id, workflow_id, chain_id, step_name,
		       action, actor_id, actor_role, comments, metadata, performed_at
		FROM approval_audit_log
		WHERE ` + where + `
		ORDER BY performed_at ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list audit entries")
	}
	defer rows.Close()

	var entries []*AuditEntry
	for rows.Next() {
		entry := &AuditEntry{}
		var metadataJSON []byte
		err := rows.Scan(
			&entry.ID,
			&entry.WorkflowID,
			&entry.ChainID,
			&entry.StepName,
			&entry.Action,
			&entry.ActorID,
			&entry.ActorRole,
			&entry.Comments,
			&metadataJSON,
			&entry.PerformedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan audit entry")
		}
		if metadataJSON != nil {
			if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to unmarshal audit metadata")
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
