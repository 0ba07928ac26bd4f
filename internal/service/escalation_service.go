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

// Escalation event types.
const (
	EventEscalationCreated  = "escalation_created"
	EventEscalationAdvanced = "escalation_advanced"
	EventEscalationApproved = "escalation_approved"
	EventEscalationRejected = "escalation_rejected"
)

// chainStepDefs is the fixed CHO -> CXO -> Director progression, expressed
// as generic engine steps. Transitions go through the engine aggregate's
// Apply, but with NO override roles: not even admin can approve in someone
// else's stead.
var chainStepDefs = []approval.StepDef{
	{Name: "CHO Approval", Approver: approval.ByRole(approval.RoleCHO)},
	{Name: "CXO Approval", Approver: approval.ByRole(approval.RoleCXO)},
	{Name: approval.StepDirectorApproval, Approver: approval.ByRole(approval.RoleDirector)},
}

// awaitingStatuses maps the engine's cursor onto the chain's public status.
var awaitingStatuses = []string{
	repository.ChainStatusAwaitingCHO,
	repository.ChainStatusAwaitingCXO,
	repository.ChainStatusAwaitingDirector,
}

// EscalationService manages leave-balance adjustment chains.
type EscalationService struct {
	chains    EscalationStore
	directory DirectoryStore
	audit     AuditStore
	events    EventPublisher
	log       *logger.Logger
}

// NewEscalationService creates a new EscalationService.
func NewEscalationService(
	chains EscalationStore,
	directory DirectoryStore,
	audit AuditStore,
	events EventPublisher,
	log *logger.Logger,
) *EscalationService {
	return &EscalationService{
		chains:    chains,
		directory: directory,
		audit:     audit,
		events:    events,
		log:       log,
	}
}

// CreateEscalationRequest is a request to open a balance adjustment chain.
type CreateEscalationRequest struct {
	TargetID string
	Category string
	Amount   float64
	Reason   string
}

// Create opens a chain. Only admins may initiate one. The creation audit
// entry is written in the same transaction as the chain.
func (s *EscalationService) Create(ctx context.Context, actor auth.Identity, req *CreateEscalationRequest) (*repository.EscalationChain, error) {
	if actor.Role != approval.RoleAdmin {
		return nil, errors.Forbidden("only admins may initiate a balance adjustment")
	}
	if req.TargetID == "" {
		return nil, errors.InvalidInput("target_id", "target employee is required")
	}
	if req.Category == "" {
		return nil, errors.InvalidInput("category", "leave category is required")
	}
	if req.Amount == 0 {
		return nil, errors.InvalidInput("amount", "adjustment must be non-zero")
	}
	if _, err := s.directory.GetByID(ctx, req.TargetID); err != nil {
		return nil, err
	}

	var reason *string
	if req.Reason != "" {
		reason = &req.Reason
	}

	chain := &repository.EscalationChain{
		RequesterID: actor.ID,
		TargetID:    req.TargetID,
		Category:    req.Category,
		Amount:      req.Amount,
		Reason:      reason,
		Status:      repository.ChainStatusAwaitingCHO,
	}

	err := s.chains.Create(ctx, chain, func(ctx context.Context, tx pgx.Tx) error {
		return s.audit.AppendTx(ctx, tx, &repository.AuditEntry{
			ChainID:   &chain.ID,
			Action:    repository.AuditActionCreated,
			ActorID:   actor.ID,
			ActorRole: actor.Role,
			Comments:  reason,
			Metadata: map[string]any{
				"target_id": chain.TargetID,
				"category":  chain.Category,
				"amount":    chain.Amount,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(ctx, EventEscalationCreated, map[string]any{
		"chain_id":  chain.ID,
		"target_id": chain.TargetID,
		"category":  chain.Category,
		"amount":    chain.Amount,
	})

	s.log.Info().
		Str("chain_id", chain.ID).
		Str("target_id", chain.TargetID).
		Str("category", chain.Category).
		Float64("amount", chain.Amount).
		Msg("Escalation chain created")

	return chain, nil
}

// Advance applies one approve/reject transition through the generic step
// engine: the chain's public status is decoded into a three-step aggregate,
// the engine's Apply validates the actor and computes the transition, and
// the resulting cursor/status pair is encoded back into the stored status.
// No override set is passed, so the gating role alone may act at each stage.
// Approving the final stage atomically applies the balance adjustment. Each
// transition appends exactly one audit entry inside the transition's
// transaction.
func (s *EscalationService) Advance(ctx context.Context, chainID string, actor auth.Identity, action string, comments *string) (*repository.EscalationChain, error) {
	act, err := approval.ParseAction(action)
	if err != nil {
		return nil, err
	}

	chain, err := s.chains.GetByID(ctx, chainID)
	if err != nil {
		return nil, err
	}

	wf, err := chainWorkflow(chain)
	if err != nil {
		return nil, err
	}

	tr, err := wf.Apply(actor.ID, actor.Role, nil, act, comments, time.Now())
	if err != nil {
		return nil, err
	}

	toStatus := chainStatus(wf)
	auditAction := repository.AuditActionApproved
	if tr.Step.Status == approval.StepRejected {
		auditAction = repository.AuditActionRejected
	}

	err = s.chains.Transition(ctx, chainID, chain.Status, toStatus, func(ctx context.Context, tx pgx.Tx) error {
		entry := &repository.AuditEntry{
			ChainID:   &chain.ID,
			StepName:  &tr.Step.Name,
			Action:    auditAction,
			ActorID:   actor.ID,
			ActorRole: actor.Role,
			Comments:  comments,
			Metadata:  map[string]any{"to_status": toStatus},
		}
		if err := s.audit.AppendTx(ctx, tx, entry); err != nil {
			return err
		}
		if tr.Finalized {
			return s.directory.AdjustLeaveBalanceTx(ctx, tx, chain.TargetID, chain.Category, chain.Amount)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	chain.Status = toStatus

	event := EventEscalationAdvanced
	if toStatus == repository.ChainStatusRejected {
		event = EventEscalationRejected
	} else if tr.Finalized {
		event = EventEscalationApproved
	}
	s.events.Publish(ctx, event, map[string]any{
		"chain_id":  chain.ID,
		"target_id": chain.TargetID,
		"status":    toStatus,
		"actor_id":  actor.ID,
	})

	s.log.Info().
		Str("chain_id", chain.ID).
		Str("status", toStatus).
		Str("actor_id", actor.ID).
		Msg("Escalation chain transitioned")

	return chain, nil
}

// PendingForActor returns the chains awaiting the stage the actor's role
// gates, oldest first. Like the workflow inbox, it matches the active gate
// only; roles outside the progression get an empty list.
func (s *EscalationService) PendingForActor(ctx context.Context, actor auth.Identity) ([]*repository.EscalationChain, error) {
	for i, def := range chainStepDefs {
		if def.Approver.Matches(actor.ID, actor.Role, nil) {
			return s.chains.ListByStatus(ctx, awaitingStatuses[i])
		}
	}
	return nil, nil
}

// Get returns a chain with its audit trail.
func (s *EscalationService) Get(ctx context.Context, chainID string) (*repository.EscalationChain, []*repository.AuditEntry, error) {
	chain, err := s.chains.GetByID(ctx, chainID)
	if err != nil {
		return nil, nil, err
	}
	trail, err := s.audit.ListByChainID(ctx, chainID)
	if err != nil {
		return nil, nil, err
	}
	return chain, trail, nil
}

// chainWorkflow rehydrates the step-engine aggregate a chain's public status
// encodes: the cursor is the awaiting stage, every earlier step approved.
// Terminal chains have no aggregate to act on.
func chainWorkflow(chain *repository.EscalationChain) (*approval.Workflow, error) {
	cursor := -1
	for i, status := range awaitingStatuses {
		if status == chain.Status {
			cursor = i
			break
		}
	}
	if cursor < 0 {
		return nil, errors.Newf(errors.ErrCodeAlreadyFinalized,
			"escalation chain is already finalized (status: %s)", chain.Status)
	}

	wf := &approval.Workflow{
		ID:          chain.ID,
		RequesterID: chain.RequesterID,
		Status:      approval.WorkflowPending,
		Cursor:      cursor,
		SubmittedAt: chain.CreatedAt,
	}
	for i, def := range chainStepDefs {
		status := approval.StepPending
		if i < cursor {
			status = approval.StepApproved
		}
		wf.Steps = append(wf.Steps, approval.Step{
			Name:     def.Name,
			Approver: def.Approver,
			Status:   status,
		})
	}
	return wf, nil
}

// chainStatus encodes the aggregate's state back into the public status.
func chainStatus(wf *approval.Workflow) string {
	switch wf.Status {
	case approval.WorkflowApproved:
		return repository.ChainStatusApproved
	case approval.WorkflowRejected:
		return repository.ChainStatusRejected
	default:
		return awaitingStatuses[wf.Cursor]
	}
}
