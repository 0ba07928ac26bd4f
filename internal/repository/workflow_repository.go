package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-hr-approvals/internal/approval"
	"github.com/pesio-ai/be-hr-approvals/internal/database"
	"github.com/pesio-ai/be-hr-approvals/internal/errors"
)

// WorkflowRepository persists approval workflows and their steps.
// A workflow and its steps are always written together in one transaction,
// and every state transition is a compare-and-set on (status, cursor).
type WorkflowRepository struct {
	db *database.DB
}

// NewWorkflowRepository creates a new WorkflowRepository.
func NewWorkflowRepository(db *database.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

// Create inserts a workflow and its steps in one transaction. When finalize
// is non-nil (auto-approved workflows) it runs inside the same transaction.
func (r *WorkflowRepository) Create(ctx context.Context, wf *approval.Workflow, finalize TxFunc) error {
	var payloadJSON []byte
	if wf.Payload != nil {
		var err error
		payloadJSON, err = json.Marshal(wf.Payload)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal workflow payload")
		}
	}

	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		wfQuery := `
			INSERT INTO approval_workflows
			    (requester_id, request_type, reference_id, payload,
			     status, cursor, submitted_at, completed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id, created_at, updated_at
		`

		err := tx.QueryRow(ctx, wfQuery,
			wf.RequesterID,
			wf.RequestType,
			wf.ReferenceID,
			payloadJSON,
			wf.Status,
			wf.Cursor,
			wf.SubmittedAt,
			wf.CompletedAt,
		).Scan(&wf.ID, &wf.CreatedAt, &wf.UpdatedAt)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to create approval workflow")
		}

		stepQuery := `
			INSERT INTO approval_steps
			    (workflow_id, step_number, step_name,
			     approver_kind, approver_role, approver_user_id, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`

		for i, step := range wf.Steps {
			_, err := tx.Exec(ctx, stepQuery,
				wf.ID,
				i,
				step.Name,
				step.Approver.Kind,
				nullable(step.Approver.Role),
				nullable(step.Approver.UserID),
				step.Status,
			)
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeInternal, "failed to create approval step")
			}
		}

		if finalize != nil {
			return finalize(ctx, tx)
		}
		return nil
	})
}

// GetByID retrieves a workflow with its steps ordered by step number.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*approval.Workflow, error) {
	query := `
		SELECT id, requester_id, request_type, reference_id, payload,
		       status, cursor, submitted_at, completed_at, created_at, updated_at
		FROM approval_workflows
		WHERE id = $1
	`

	wf, err := scanWorkflow(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("approval_workflow", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get approval workflow")
	}

	steps, err := r.loadSteps(ctx, []string{wf.ID})
	if err != nil {
		return nil, err
	}
	wf.Steps = steps[wf.ID]
	return wf, nil
}

// ApplyTransition writes one step transition with optimistic concurrency:
// the workflow row update is conditioned on the status and cursor observed
// by the caller's read. Zero rows updated means another actor got there
// first (or the workflow was already terminal) and the caller's transition
// is rejected without touching anything.
//
// When finalize is non-nil (terminal approval, or leave rejection sync) it
// runs inside the same transaction, so the status flip and the side effect
// commit or roll back as one unit.
func (r *WorkflowRepository) ApplyTransition(
	ctx context.Context,
	workflowID string,
	expectedCursor int,
	tr *approval.Transition,
	finalize TxFunc,
) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		casQuery := `
			UPDATE approval_workflows
			SET status       = $2,
			    cursor       = $3,
			    completed_at = $4,
			    updated_at   = NOW()
			WHERE id = $1
			  AND status = 'pending'
			  AND cursor = $5
			RETURNING id
		`

		var completedAt any
		if tr.Status != approval.WorkflowPending {
			completedAt = tr.Step.ActedAt
		}

		var returnedID string
		err := tx.QueryRow(ctx, casQuery,
			workflowID, tr.Status, tr.Cursor, completedAt, expectedCursor,
		).Scan(&returnedID)
		if err == pgx.ErrNoRows {
			return errors.New(errors.ErrCodeAlreadyFinalized,
				"workflow was finalized or advanced by another actor")
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to update approval workflow")
		}

		stepQuery := `
			UPDATE approval_steps
			SET status     = $3,
			    acted_by   = $4,
			    acted_at   = $5,
			    comments   = $6,
			    updated_at = NOW()
			WHERE workflow_id = $1 AND step_number = $2
		`

		tag, err := tx.Exec(ctx, stepQuery,
			workflowID,
			tr.StepIndex,
			tr.Step.Status,
			tr.Step.ActedBy,
			tr.Step.ActedAt,
			tr.Step.Comments,
		)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to update approval step")
		}
		if tag.RowsAffected() == 0 {
			return errors.NotFound("approval_step", workflowID)
		}

		if finalize != nil {
			return finalize(ctx, tx)
		}
		return nil
	})
}

// ListByRequester returns all workflows submitted by a user, newest first,
// with steps attached.
func (r *WorkflowRepository) ListByRequester(ctx context.Context, requesterID string) ([]*approval.Workflow, error) {
	query := `
		SELECT id, requester_id, request_type, reference_id, payload,
		       status, cursor, submitted_at, completed_at, created_at, updated_at
		FROM approval_workflows
		WHERE requester_id = $1
		ORDER BY submitted_at DESC
	`

	rows, err := r.db.Query(ctx, query, requesterID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list workflows")
	}
	defer rows.Close()

	var workflows []*approval.Workflow
	var ids []string
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan workflow")
		}
		workflows = append(workflows, wf)
		ids = append(ids, wf.ID)
	}

	if len(ids) > 0 {
		steps, err := r.loadSteps(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, wf := range workflows {
			wf.Steps = steps[wf.ID]
		}
	}
	return workflows, nil
}

// ListPendingForActor is the inbox query: pending workflows whose ACTIVE
// step matches the actor by specific user id or by role. The join hits only
// the step at the workflow's cursor, never the step history, and applies the
// same matching rule as the executor's authorization predicate.
func (r *WorkflowRepository) ListPendingForActor(ctx context.Context, actorID, actorRole string) ([]*InboxItem, error) {
	query := `
		SELECT w.id, w.requester_id, w.request_type, w.reference_id,
		       s.step_number, s.step_name, w.submitted_at
		FROM approval_workflows w
		JOIN approval_steps s
		  ON s.workflow_id = w.id AND s.step_number = w.cursor
		WHERE w.status = 'pending'
		  AND (
		       (s.approver_kind = 'user' AND s.approver_user_id = $1)
		    OR (s.approver_kind = 'role' AND s.approver_role = $2)
		  )
		ORDER BY w.submitted_at ASC
	`

	rows, err := r.db.Query(ctx, query, actorID, actorRole)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to query inbox")
	}
	defer rows.Close()

	var items []*InboxItem
	for rows.Next() {
		item := &InboxItem{}
		err := rows.Scan(
			&item.WorkflowID,
			&item.RequesterID,
			&item.RequestType,
			&item.ReferenceID,
			&item.StepNumber,
			&item.StepName,
			&item.SubmittedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan inbox item")
		}
		items = append(items, item)
	}
	return items, nil
}

// ── scan helpers ──────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*approval.Workflow, error) {
	wf := &approval.Workflow{}
	var payloadJSON []byte
	err := row.Scan(
		&wf.ID,
		&wf.RequesterID,
		&wf.RequestType,
		&wf.ReferenceID,
		&payloadJSON,
		&wf.Status,
		&wf.Cursor,
		&wf.SubmittedAt,
		&wf.CompletedAt,
		&wf.CreatedAt,
		&wf.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if payloadJSON != nil {
		if err := json.Unmarshal(payloadJSON, &wf.Payload); err != nil {
			return nil, err
		}
	}
	return wf, nil
}

// loadSteps fetches steps for a set of workflows in one query, keyed by
// workflow id and ordered by step number.
func (r *WorkflowRepository) loadSteps(ctx context.Context, workflowIDs []string) (map[string][]approval.Step, error) {
	query := `
		SELECT workflow_id, step_name,
		       approver_kind, approver_role, approver_user_id,
		       status, acted_by, acted_at, comments
		FROM approval_steps
		WHERE workflow_id = ANY($1)
		ORDER BY workflow_id, step_number ASC
	`

	rows, err := r.db.Query(ctx, query, workflowIDs)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to load approval steps")
	}
	defer rows.Close()

	steps := make(map[string][]approval.Step)
	for rows.Next() {
		var wfID string
		var step approval.Step
		var role, userID *string
		err := rows.Scan(
			&wfID,
			&step.Name,
			&step.Approver.Kind,
			&role,
			&userID,
			&step.Status,
			&step.ActedBy,
			&step.ActedAt,
			&step.Comments,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan approval step")
		}
		if role != nil {
			step.Approver.Role = *role
		}
		if userID != nil {
			step.Approver.UserID = *userID
		}
		steps[wfID] = append(steps[wfID], step)
	}
	return steps, nil
}

// nullable converts "" to a NULL parameter.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
