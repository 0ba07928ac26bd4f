package approval

import (
	"time"

	"github.com/pesio-ai/be-hr-approvals/internal/errors"
)

// WorkflowStatus is the overall state of a workflow.
type WorkflowStatus string

const (
	WorkflowPending   WorkflowStatus = "pending"
	WorkflowApproved  WorkflowStatus = "approved"
	WorkflowRejected  WorkflowStatus = "rejected"
	WorkflowCancelled WorkflowStatus = "cancelled"
)

// StepStatus is the state of one approval step.
type StepStatus string

const (
	StepPending  StepStatus = "pending"
	StepApproved StepStatus = "approved"
	StepRejected StepStatus = "rejected"
	StepSkipped  StepStatus = "skipped"
)

// Action is what an approver does to the active step.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// ParseAction validates a wire-level action string.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionApprove, ActionReject:
		return Action(s), nil
	default:
		return "", errors.InvalidInput("action", "must be 'approve' or 'reject'")
	}
}

// Step is one approval gate in a workflow.
type Step struct {
	Name     string
	Approver ApproverSpec
	Status   StepStatus
	ActedBy  *string
	Comments *string
	ActedAt  *time.Time
}

// Workflow is the approval aggregate: an ordered step list, a cursor pointing
// at the active step and the overall status.
//
// Invariant: Status == pending exactly when Cursor is in range and
// Steps[Cursor] is pending. All steps before the cursor are terminal; all
// steps after it are untouched. Once Status leaves pending the aggregate is
// immutable.
type Workflow struct {
	ID          string
	RequesterID string
	RequestType RequestType
	ReferenceID *string
	Payload     map[string]any
	Status      WorkflowStatus
	Cursor      int
	Steps       []Step
	SubmittedAt time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewWorkflow builds a workflow from policy output. An empty step list
// auto-approves the workflow at creation.
func NewWorkflow(requesterID string, t RequestType, referenceID *string, payload map[string]any, defs []StepDef, now time.Time) *Workflow {
	wf := &Workflow{
		RequesterID: requesterID,
		RequestType: t,
		ReferenceID: referenceID,
		Payload:     payload,
		Status:      WorkflowPending,
		Cursor:      0,
		SubmittedAt: now,
	}
	for _, def := range defs {
		wf.Steps = append(wf.Steps, Step{
			Name:     def.Name,
			Approver: def.Approver,
			Status:   StepPending,
		})
	}
	if len(wf.Steps) == 0 {
		wf.Status = WorkflowApproved
		completed := now
		wf.CompletedAt = &completed
	}
	return wf
}

// ActiveStep returns the step at the cursor, or nil when the workflow is not
// pending.
func (w *Workflow) ActiveStep() *Step {
	if w.Status != WorkflowPending || w.Cursor < 0 || w.Cursor >= len(w.Steps) {
		return nil
	}
	return &w.Steps[w.Cursor]
}

// Transition is the outcome of one Apply call, used by the persistence layer
// to write the compare-and-set update and by callers to decide follow-up
// work.
type Transition struct {
	StepIndex int
	Step      Step
	Status    WorkflowStatus
	Cursor    int
	Finalized bool
}

// Apply validates the actor against the active step and computes the
// approve/reject transition, mutating the aggregate in memory. The caller
// persists the result conditioned on the status and cursor it read.
//
// Error cases leave the aggregate untouched:
//   - AlreadyFinalized when the workflow is not pending
//   - Forbidden when the actor fails the approver predicate
func (w *Workflow) Apply(actorID, actorRole string, overrides RoleSet, action Action, comments *string, now time.Time) (*Transition, error) {
	step := w.ActiveStep()
	if step == nil {
		return nil, errors.Newf(errors.ErrCodeAlreadyFinalized,
			"workflow is already finalized (status: %s)", w.Status)
	}
	if action != ActionApprove && action != ActionReject {
		return nil, errors.InvalidInput("action", "must be 'approve' or 'reject'")
	}
	if !step.Approver.Matches(actorID, actorRole, overrides) {
		return nil, errors.Forbidden("actor is not authorized for the active approval step")
	}

	idx := w.Cursor
	actedBy := actorID
	actedAt := now
	step.ActedBy = &actedBy
	step.ActedAt = &actedAt
	step.Comments = comments

	if action == ActionReject {
		step.Status = StepRejected
		w.Status = WorkflowRejected
		w.CompletedAt = &actedAt
	} else {
		step.Status = StepApproved
		if w.Cursor+1 < len(w.Steps) {
			w.Cursor++
		} else {
			w.Status = WorkflowApproved
			w.CompletedAt = &actedAt
		}
	}

	return &Transition{
		StepIndex: idx,
		Step:      *step,
		Status:    w.Status,
		Cursor:    w.Cursor,
		Finalized: w.Status == WorkflowApproved,
	}, nil
}
