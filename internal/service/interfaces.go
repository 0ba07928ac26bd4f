package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-hr-approvals/internal/approval"
	"github.com/pesio-ai/be-hr-approvals/internal/repository"
)

// Consumer-side interfaces over the persistence layer. The pgx repositories
// satisfy these; tests substitute in-memory fakes.

// WorkflowStore persists workflow aggregates with compare-and-set
// transitions.
type WorkflowStore interface {
	Create(ctx context.Context, wf *approval.Workflow, finalize repository.TxFunc) error
	GetByID(ctx context.Context, id string) (*approval.Workflow, error)
	ApplyTransition(ctx context.Context, workflowID string, expectedCursor int, tr *approval.Transition, finalize repository.TxFunc) error
	ListByRequester(ctx context.Context, requesterID string) ([]*approval.Workflow, error)
	ListPendingForActor(ctx context.Context, actorID, actorRole string) ([]*repository.InboxItem, error)
}

// DirectoryStore is the employee directory collaborator.
type DirectoryStore interface {
	GetByID(ctx context.Context, id string) (*repository.Employee, error)
	ApplyProfileUpdateTx(ctx context.Context, tx pgx.Tx, id string, fields map[string]any) error
	AdjustLeaveBalanceTx(ctx context.Context, tx pgx.Tx, id, category string, delta float64) error
}

// LeaveStore is the leave-record collaborator whose status the engine syncs.
type LeaveStore interface {
	GetByID(ctx context.Context, id string) (*repository.LeaveRecord, error)
	UpdateStatusTx(ctx context.Context, tx pgx.Tx, id, status string, approvedAt *time.Time) error
}

// EscalationStore persists escalation chains with compare-and-set status
// transitions.
type EscalationStore interface {
	Create(ctx context.Context, chain *repository.EscalationChain, extra repository.TxFunc) error
	GetByID(ctx context.Context, id string) (*repository.EscalationChain, error)
	Transition(ctx context.Context, id, fromStatus, toStatus string, extra repository.TxFunc) error
	ListByStatus(ctx context.Context, status string) ([]*repository.EscalationChain, error)
}

// AuditStore records immutable transition history.
type AuditStore interface {
	Append(ctx context.Context, entry *repository.AuditEntry) error
	AppendTx(ctx context.Context, tx pgx.Tx, entry *repository.AuditEntry) error
	ListByWorkflowID(ctx context.Context, workflowID string) ([]*repository.AuditEntry, error)
	ListByChainID(ctx context.Context, chainID string) ([]*repository.AuditEntry, error)
}

// EventPublisher emits fire-and-forget transition events.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, fields map[string]any)
}
