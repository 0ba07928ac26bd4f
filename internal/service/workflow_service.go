package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-hr-approvals/internal/approval"
	"github.com/pesio-ai/be-hr-approvals/internal/auth"
	"github.com/pesio-ai/be-hr-approvals/internal/errors"
	"github.com/pesio-ai/be-hr-approvals/internal/logger"
	"github.com/pesio-ai/be-hr-approvals/internal/repository"
)

// Transition event types emitted to the audit publisher.
const (
	EventWorkflowSubmitted = "workflow_submitted"
	EventStepApproved      = "step_approved"
	EventWorkflowApproved  = "workflow_approved"
	EventWorkflowRejected  = "workflow_rejected"
)

// WorkflowService orchestrates the generic approval engine: chain creation
// via the step policy, the sequential step executor, the finalizer and the
// inbox/sent read models.
//
// Admin is a universal override in THIS engine only; the escalation chain
// deliberately grants no override.
type WorkflowService struct {
	workflows WorkflowStore
	directory DirectoryStore
	leaves    LeaveStore
	audit     AuditStore
	finalizer *Finalizer
	policy    *approval.Policy
	events    EventPublisher
	overrides approval.RoleSet
	log       *logger.Logger
}

// NewWorkflowService creates a new WorkflowService.
func NewWorkflowService(
	workflows WorkflowStore,
	directory DirectoryStore,
	leaves LeaveStore,
	audit AuditStore,
	finalizer *Finalizer,
	policy *approval.Policy,
	events EventPublisher,
	log *logger.Logger,
) *WorkflowService {
	return &WorkflowService{
		workflows: workflows,
		directory: directory,
		leaves:    leaves,
		audit:     audit,
		finalizer: finalizer,
		policy:    policy,
		events:    events,
		overrides: approval.NewRoleSet(approval.RoleAdmin),
		log:       log,
	}
}

// SubmitRequest is a request to open an approval workflow.
type SubmitRequest struct {
	RequestType string
	ReferenceID *string
	Payload     map[string]any
}

// Submit validates the request, builds the approval chain from the policy
// and persists the workflow. A policy yielding zero steps auto-approves the
// workflow, and its side effect (if any) runs in the creation transaction.
func (s *WorkflowService) Submit(ctx context.Context, actor auth.Identity, req *SubmitRequest) (*approval.Workflow, error) {
	if req.RequestType == "" {
		return nil, errors.InvalidInput("request_type", "request type is required")
	}
	reqType := approval.RequestType(req.RequestType)

	if err := s.validateReference(ctx, actor, reqType, req); err != nil {
		return nil, err
	}

	requester, err := s.directory.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	defs := s.policy.BuildSteps(approval.Requester{
		ID:        requester.ID,
		Role:      requester.Role,
		ManagerID: requester.ManagerID,
	}, reqType, req.Payload)

	wf := approval.NewWorkflow(actor.ID, reqType, req.ReferenceID, req.Payload, defs, time.Now())

	var finalize repository.TxFunc
	if wf.Status == approval.WorkflowApproved {
		finalize = func(ctx context.Context, tx pgx.Tx) error {
			return s.finalizer.Run(ctx, tx, wf)
		}
	}

	if err := s.workflows.Create(ctx, wf, finalize); err != nil {
		return nil, err
	}

	s.appendAudit(ctx, &repository.AuditEntry{
		WorkflowID: &wf.ID,
		Action:     repository.AuditActionSubmitted,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Metadata: map[string]any{
			"request_type": wf.RequestType,
			"total_steps":  len(wf.Steps),
			"status":       wf.Status,
		},
	})
	s.events.Publish(ctx, EventWorkflowSubmitted, map[string]any{
		"workflow_id":  wf.ID,
		"requester_id": wf.RequesterID,
		"request_type": wf.RequestType,
		"total_steps":  len(wf.Steps),
	})

	s.log.Info().
		Str("workflow_id", wf.ID).
		Str("requester_id", wf.RequesterID).
		Str("request_type", string(wf.RequestType)).
		Int("total_steps", len(wf.Steps)).
		Str("status", string(wf.Status)).
		Msg("Approval workflow submitted")

	return wf, nil
}

// validateReference checks the per-type creation requirements.
func (s *WorkflowService) validateReference(ctx context.Context, actor auth.Identity, t approval.RequestType, req *SubmitRequest) error {
	switch t {
	case approval.RequestTypeLeave:
		if req.ReferenceID == nil || *req.ReferenceID == "" {
			return errors.InvalidInput("reference_id", "leave requests must reference a leave record")
		}
		rec, err := s.leaves.GetByID(ctx, *req.ReferenceID)
		if err != nil {
			return err
		}
		if rec.EmployeeID != actor.ID {
			return errors.Forbidden("leave record belongs to another employee")
		}
	case approval.RequestTypeProfileUpdate, approval.RequestTypeGeneralUpdate, approval.RequestTypeMajorUpdate:
		if len(req.Payload) == 0 {
			return errors.InvalidInput("payload", "update requests must carry pending field changes")
		}
		if err := repository.ValidateProfileFields(req.Payload); err != nil {
			return err
		}
	}
	return nil
}

// Act is the step executor: it validates the actor against the active step,
// applies approve/reject in memory and persists the transition with a
// compare-and-set write. Rejecting a leave workflow syncs the referenced
// leave record; the final approval runs the finalizer. Both happen inside
// the transition's transaction.
func (s *WorkflowService) Act(ctx context.Context, workflowID string, actor auth.Identity, action string, comments *string) (*approval.Workflow, error) {
	act, err := approval.ParseAction(action)
	if err != nil {
		return nil, err
	}

	wf, err := s.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	expectedCursor := wf.Cursor
	tr, err := wf.Apply(actor.ID, actor.Role, s.overrides, act, comments, time.Now())
	if err != nil {
		return nil, err
	}

	finalize := s.transitionSideEffect(wf, tr)
	if err := s.workflows.ApplyTransition(ctx, workflowID, expectedCursor, tr, finalize); err != nil {
		return nil, err
	}

	s.recordTransition(ctx, wf, tr, actor, comments)
	return wf, nil
}

// transitionSideEffect returns the in-transaction side effect for a
// transition, or nil when none is needed.
func (s *WorkflowService) transitionSideEffect(wf *approval.Workflow, tr *approval.Transition) repository.TxFunc {
	switch {
	case tr.Finalized:
		return func(ctx context.Context, tx pgx.Tx) error {
			return s.finalizer.Run(ctx, tx, wf)
		}
	case tr.Status == approval.WorkflowRejected &&
		wf.RequestType == approval.RequestTypeLeave &&
		wf.ReferenceID != nil:
		return func(ctx context.Context, tx pgx.Tx) error {
			return s.leaves.UpdateStatusTx(ctx, tx, *wf.ReferenceID, repository.LeaveStatusRejected, nil)
		}
	default:
		return nil
	}
}

// recordTransition writes the audit entry and publishes the event for a
// persisted transition. Neither failure propagates.
func (s *WorkflowService) recordTransition(ctx context.Context, wf *approval.Workflow, tr *approval.Transition, actor auth.Identity, comments *string) {
	action := repository.AuditActionApproved
	event := EventStepApproved
	if tr.Step.Status == approval.StepRejected {
		action = repository.AuditActionRejected
		event = EventWorkflowRejected
	} else if tr.Finalized {
		event = EventWorkflowApproved
	}

	s.appendAudit(ctx, &repository.AuditEntry{
		WorkflowID: &wf.ID,
		StepName:   &wf.Steps[tr.StepIndex].Name,
		Action:     action,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Comments:   comments,
		Metadata: map[string]any{
			"step_number":     tr.StepIndex,
			"workflow_status": tr.Status,
		},
	})
	s.events.Publish(ctx, event, map[string]any{
		"workflow_id":  wf.ID,
		"requester_id": wf.RequesterID,
		"request_type": wf.RequestType,
		"step_number":  tr.StepIndex,
		"actor_id":     actor.ID,
	})

	s.log.Info().
		Str("workflow_id", wf.ID).
		Int("step_number", tr.StepIndex).
		Str("step_status", string(tr.Step.Status)).
		Str("workflow_status", string(tr.Status)).
		Str("actor_id", actor.ID).
		Msg("Approval step acted on")
}

// Get returns a workflow with its steps.
func (s *WorkflowService) Get(ctx context.Context, workflowID string) (*approval.Workflow, error) {
	return s.workflows.GetByID(ctx, workflowID)
}

// Inbox returns pending workflows whose active step awaits the actor.
func (s *WorkflowService) Inbox(ctx context.Context, actor auth.Identity) ([]*repository.InboxItem, error) {
	return s.workflows.ListPendingForActor(ctx, actor.ID, actor.Role)
}

// Sent returns the actor's own workflows in any status.
func (s *WorkflowService) Sent(ctx context.Context, actor auth.Identity) ([]*approval.Workflow, error) {
	return s.workflows.ListByRequester(ctx, actor.ID)
}

// History returns the audit trail for a workflow.
func (s *WorkflowService) History(ctx context.Context, workflowID string) ([]*repository.AuditEntry, error) {
	if _, err := s.workflows.GetByID(ctx, workflowID); err != nil {
		return nil, err
	}
	return s.audit.ListByWorkflowID(ctx, workflowID)
}

// appendAudit writes an audit entry, logging a warning on failure.
func (s *WorkflowService) appendAudit(ctx context.Context, entry *repository.AuditEntry) {
	if err := s.audit.Append(ctx, entry); err != nil {
		s.log.Warn().Err(err).
			Str("action", entry.Action).
			Msg("Failed to write audit log entry")
	}
}
