package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-hr-approvals/internal/database"
	"github.com/pesio-ai/be-hr-approvals/internal/errors"
)

// LeaveRepository reads leave records and syncs their status when the
// governing workflow reaches a terminal state.
type LeaveRepository struct {
	db *database.DB
}

// NewLeaveRepository creates a new LeaveRepository.
func NewLeaveRepository(db *database.DB) *LeaveRepository {
	return &LeaveRepository{db: db}
}

// GetByID retrieves a leave record by primary key.
func (r *LeaveRepository) GetByID(ctx context.Context, id string) (*LeaveRecord, error) {
	query := `
		SELECT id, employee_id, category, start_date, end_date, reason,
		       status, approved_at, created_at, updated_at
		FROM leave_records
		WHERE id = $1
	`

	rec := &LeaveRecord{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&rec.ID,
		&rec.EmployeeID,
		&rec.Category,
		&rec.StartDate,
		&rec.EndDate,
		&rec.Reason,
		&rec.Status,
		&rec.ApprovedAt,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("leave_record", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get leave record")
	}
	return rec, nil
}

// UpdateStatusTx sets the record's status inside the workflow transition's
// transaction, stamping approved_at when provided.
func (r *LeaveRepository) UpdateStatusTx(ctx context.Context, tx pgx.Tx, id, status string, approvedAt *time.Time) error {
	query := `
		UPDATE leave_records
		SET status      = $2,
		    approved_at = COALESCE($3, approved_at),
		    updated_at  = NOW()
		WHERE id = $1
		RETURNING id
	`

	var returnedID string
	err := tx.QueryRow(ctx, query, id, status, approvedAt).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return errors.NotFound("leave_record", id)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to update leave record")
	}
	return nil
}
