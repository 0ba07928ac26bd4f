package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-hr-approvals/internal/approval"
)

// TxFunc is a side effect executed inside a repository-managed transaction.
type TxFunc func(ctx context.Context, tx pgx.Tx) error

// ── Employee directory ───────────────────────────────────────────────────────

// Employee is a directory record: identity attributes used by the step
// policy plus the leave balances the escalation chain mutates.
type Employee struct {
	ID            string
	Name          string
	Email         string
	Role          string
	ManagerID     *string
	Phone         *string
	Department    *string
	Designation   *string
	LeaveBalances map[string]float64 // category -> remaining days
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ── Leave records ────────────────────────────────────────────────────────────

// Leave record statuses.
const (
	LeaveStatusPending   = "pending"
	LeaveStatusApproved  = "approved"
	LeaveStatusRejected  = "rejected"
	LeaveStatusCancelled = "cancelled"
)

// LeaveRecord is the governed record a leave workflow references.
type LeaveRecord struct {
	ID         string
	EmployeeID string
	Category   string
	StartDate  time.Time
	EndDate    time.Time
	Reason     *string
	Status     string
	ApprovedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ── Escalation chains ────────────────────────────────────────────────────────

// Escalation chain statuses. The awaiting_* progression is fixed; rejection
// is terminal at any stage.
const (
	ChainStatusAwaitingCHO      = "awaiting_cho"
	ChainStatusAwaitingCXO      = "awaiting_cxo"
	ChainStatusAwaitingDirector = "awaiting_director"
	ChainStatusApproved         = "approved"
	ChainStatusRejected         = "rejected"
)

// EscalationChain is a leave-balance adjustment awaiting the fixed
// CHO -> CXO -> Director approval progression.
type EscalationChain struct {
	ID          string
	RequesterID string
	TargetID    string
	Category    string
	Amount      float64 // signed days; positive credits the balance
	Reason      *string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ── Audit log ────────────────────────────────────────────────────────────────

// Audit actions.
const (
	AuditActionCreated   = "created"
	AuditActionSubmitted = "submitted"
	AuditActionApproved  = "approved"
	AuditActionRejected  = "rejected"
)

// AuditEntry is one immutable record in the approval audit log. Exactly one
// of WorkflowID / ChainID is set.
type AuditEntry struct {
	ID          string
	WorkflowID  *string
	ChainID     *string
	StepName    *string
	Action      string
	ActorID     string
	ActorRole   string
	Comments    *string
	Metadata    map[string]any
	PerformedAt time.Time
}

// ── Inbox view ───────────────────────────────────────────────────────────────

// InboxItem is one pending workflow awaiting the queried actor, annotated
// with the active step so approvers see what they are being asked for.
type InboxItem struct {
	WorkflowID  string
	RequesterID string
	RequestType approval.RequestType
	ReferenceID *string
	StepNumber  int
	StepName    string
	SubmittedAt time.Time
}
