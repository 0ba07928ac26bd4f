package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-hr-approvals/internal/approval"
	"github.com/pesio-ai/be-hr-approvals/internal/logger"
	"github.com/pesio-ai/be-hr-approvals/internal/repository"
)

// FinalizeFunc applies a fully-approved workflow's side effect. It runs
// inside the transaction that flips the workflow to approved, so the status
// change and the side effect commit or roll back together.
type FinalizeFunc func(ctx context.Context, tx pgx.Tx, wf *approval.Workflow) error

// Finalizer dispatches the terminal side effect by request type. Request
// types without a registered handler finalize as a no-op, so new types can
// be introduced before their side effect exists.
type Finalizer struct {
	handlers map[approval.RequestType]FinalizeFunc
	log      *logger.Logger
}

// NewFinalizer creates a finalizer with the standard handlers: leave
// approval syncs the referenced leave record; the update types apply the
// workflow payload to the requester's profile.
func NewFinalizer(directory DirectoryStore, leaves LeaveStore, log *logger.Logger) *Finalizer {
	f := &Finalizer{
		handlers: make(map[approval.RequestType]FinalizeFunc),
		log:      log,
	}

	f.Register(approval.RequestTypeLeave, func(ctx context.Context, tx pgx.Tx, wf *approval.Workflow) error {
		if wf.ReferenceID == nil {
			log.Warn().Str("workflow_id", wf.ID).Msg("Leave workflow approved without a reference; nothing to finalize")
			return nil
		}
		now := time.Now()
		return leaves.UpdateStatusTx(ctx, tx, *wf.ReferenceID, repository.LeaveStatusApproved, &now)
	})

	applyProfile := func(ctx context.Context, tx pgx.Tx, wf *approval.Workflow) error {
		return directory.ApplyProfileUpdateTx(ctx, tx, wf.RequesterID, wf.Payload)
	}
	f.Register(approval.RequestTypeProfileUpdate, applyProfile)
	f.Register(approval.RequestTypeGeneralUpdate, applyProfile)
	f.Register(approval.RequestTypeMajorUpdate, applyProfile)

	return f
}

// Register installs (or replaces) the handler for a request type.
func (f *Finalizer) Register(t approval.RequestType, fn FinalizeFunc) {
	f.handlers[t] = fn
}

// Run applies the side effect for a fully-approved workflow.
func (f *Finalizer) Run(ctx context.Context, tx pgx.Tx, wf *approval.Workflow) error {
	fn, ok := f.handlers[wf.RequestType]
	if !ok {
		f.log.Debug().
			Str("workflow_id", wf.ID).
			Str("request_type", string(wf.RequestType)).
			Msg("No finalizer registered for request type; skipping")
		return nil
	}
	return fn(ctx, tx, wf)
}
