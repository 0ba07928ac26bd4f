package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-hr-approvals/internal/approval"
	"github.com/pesio-ai/be-hr-approvals/internal/errors"
	"github.com/pesio-ai/be-hr-approvals/internal/repository"
)

// In-memory fakes for the store interfaces. They mirror the pgx repositories'
// observable behavior, including the compare-and-set semantics of transitions,
// so the services can be exercised without a database. TxFunc side effects run
// with a nil pgx.Tx.

type fakeWorkflowStore struct {
	mu        sync.Mutex
	workflows map[string]*approval.Workflow
	nextID    int
}

func newFakeWorkflowStore() *fakeWorkflowStore {
	return &fakeWorkflowStore{workflows: make(map[string]*approval.Workflow)}
}

func cloneWorkflow(wf *approval.Workflow) *approval.Workflow {
	cp := *wf
	cp.Steps = make([]approval.Step, len(wf.Steps))
	copy(cp.Steps, wf.Steps)
	return &cp
}

func (s *fakeWorkflowStore) Create(ctx context.Context, wf *approval.Workflow, finalize repository.TxFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	wf.ID = fmt.Sprintf("wf-%d", s.nextID)
	s.workflows[wf.ID] = cloneWorkflow(wf)
	if finalize != nil {
		return finalize(ctx, nil)
	}
	return nil
}

func (s *fakeWorkflowStore) GetByID(ctx context.Context, id string) (*approval.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wf, ok := s.workflows[id]
	if !ok {
		return nil, errors.NotFound("workflow", id)
	}
	return cloneWorkflow(wf), nil
}

func (s *fakeWorkflowStore) ApplyTransition(ctx context.Context, workflowID string, expectedCursor int, tr *approval.Transition, finalize repository.TxFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	wf, ok := s.workflows[workflowID]
	if !ok {
		return errors.NotFound("workflow", workflowID)
	}
	if wf.Status != approval.WorkflowPending || wf.Cursor != expectedCursor {
		return errors.Newf(errors.ErrCodeAlreadyFinalized,
			"workflow is already finalized (status: %s)", wf.Status)
	}
	wf.Steps[tr.StepIndex] = tr.Step
	wf.Status = tr.Status
	wf.Cursor = tr.Cursor
	if finalize != nil {
		return finalize(ctx, nil)
	}
	return nil
}

func (s *fakeWorkflowStore) ListByRequester(ctx context.Context, requesterID string) ([]*approval.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*approval.Workflow
	for _, wf := range s.workflows {
		if wf.RequesterID == requesterID {
			out = append(out, cloneWorkflow(wf))
		}
	}
	return out, nil
}

func (s *fakeWorkflowStore) ListPendingForActor(ctx context.Context, actorID, actorRole string) ([]*repository.InboxItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*repository.InboxItem
	for _, wf := range s.workflows {
		if wf.Status != approval.WorkflowPending {
			continue
		}
		step := wf.Steps[wf.Cursor]
		match := (step.Approver.Kind == approval.SpecByUser && step.Approver.UserID == actorID) ||
			(step.Approver.Kind == approval.SpecByRole && step.Approver.Role == actorRole)
		if match {
			out = append(out, &repository.InboxItem{
				WorkflowID:  wf.ID,
				RequesterID: wf.RequesterID,
				RequestType: wf.RequestType,
				ReferenceID: wf.ReferenceID,
				StepNumber:  wf.Cursor,
				StepName:    step.Name,
				SubmittedAt: wf.SubmittedAt,
			})
		}
	}
	return out, nil
}

type fakeDirectoryStore struct {
	employees      map[string]*repository.Employee
	profileUpdates []map[string]any
}

func newFakeDirectoryStore(emps ...*repository.Employee) *fakeDirectoryStore {
	s := &fakeDirectoryStore{employees: make(map[string]*repository.Employee)}
	for _, e := range emps {
		s.employees[e.ID] = e
	}
	return s
}

func (s *fakeDirectoryStore) GetByID(ctx context.Context, id string) (*repository.Employee, error) {
	e, ok := s.employees[id]
	if !ok {
		return nil, errors.NotFound("employee", id)
	}
	return e, nil
}

func (s *fakeDirectoryStore) ApplyProfileUpdateTx(ctx context.Context, tx pgx.Tx, id string, fields map[string]any) error {
	if _, ok := s.employees[id]; !ok {
		return errors.NotFound("employee", id)
	}
	s.profileUpdates = append(s.profileUpdates, fields)
	return nil
}

func (s *fakeDirectoryStore) AdjustLeaveBalanceTx(ctx context.Context, tx pgx.Tx, id, category string, delta float64) error {
	e, ok := s.employees[id]
	if !ok {
		return errors.NotFound("employee", id)
	}
	if e.LeaveBalances == nil {
		e.LeaveBalances = make(map[string]float64)
	}
	e.LeaveBalances[category] += delta
	return nil
}

type fakeLeaveStore struct {
	records map[string]*repository.LeaveRecord
}

func newFakeLeaveStore(recs ...*repository.LeaveRecord) *fakeLeaveStore {
	s := &fakeLeaveStore{records: make(map[string]*repository.LeaveRecord)}
	for _, r := range recs {
		s.records[r.ID] = r
	}
	return s
}

func (s *fakeLeaveStore) GetByID(ctx context.Context, id string) (*repository.LeaveRecord, error) {
	r, ok := s.records[id]
	if !ok {
		return nil, errors.NotFound("leave record", id)
	}
	return r, nil
}

func (s *fakeLeaveStore) UpdateStatusTx(ctx context.Context, tx pgx.Tx, id, status string, approvedAt *time.Time) error {
	r, ok := s.records[id]
	if !ok {
		return errors.NotFound("leave record", id)
	}
	r.Status = status
	if approvedAt != nil {
		r.ApprovedAt = approvedAt
	}
	return nil
}

type fakeEscalationStore struct {
	chains map[string]*repository.EscalationChain
	nextID int
}

func newFakeEscalationStore() *fakeEscalationStore {
	return &fakeEscalationStore{chains: make(map[string]*repository.EscalationChain)}
}

func (s *fakeEscalationStore) Create(ctx context.Context, chain *repository.EscalationChain, extra repository.TxFunc) error {
	s.nextID++
	chain.ID = fmt.Sprintf("chain-%d", s.nextID)
	cp := *chain
	s.chains[chain.ID] = &cp
	if extra != nil {
		return extra(ctx, nil)
	}
	return nil
}

func (s *fakeEscalationStore) GetByID(ctx context.Context, id string) (*repository.EscalationChain, error) {
	c, ok := s.chains[id]
	if !ok {
		return nil, errors.NotFound("escalation chain", id)
	}
	cp := *c
	return &cp, nil
}

func (s *fakeEscalationStore) Transition(ctx context.Context, id, fromStatus, toStatus string, extra repository.TxFunc) error {
	c, ok := s.chains[id]
	if !ok {
		return errors.NotFound("escalation chain", id)
	}
	if c.Status != fromStatus {
		return errors.Newf(errors.ErrCodeAlreadyFinalized,
			"escalation chain is no longer in status %s", fromStatus)
	}
	c.Status = toStatus
	if extra != nil {
		return extra(ctx, nil)
	}
	return nil
}

func (s *fakeEscalationStore) ListByStatus(ctx context.Context, status string) ([]*repository.EscalationChain, error) {
	var out []*repository.EscalationChain
	for _, c := range s.chains {
		if c.Status == status {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeAuditStore struct {
	entries []*repository.AuditEntry
}

func (s *fakeAuditStore) Append(ctx context.Context, entry *repository.AuditEntry) error {
	s.entries = append(s.entries, entry)
	return nil
}

func (s *fakeAuditStore) AppendTx(ctx context.Context, tx pgx.Tx, entry *repository.AuditEntry) error {
	s.entries = append(s.entries, entry)
	return nil
}

func (s *fakeAuditStore) ListByWorkflowID(ctx context.Context, workflowID string) ([]*repository.AuditEntry, error) {
	var out []*repository.AuditEntry
	for _, e := range s.entries {
		if e.WorkflowID != nil && *e.WorkflowID == workflowID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeAuditStore) ListByChainID(ctx context.Context, chainID string) ([]*repository.AuditEntry, error) {
	var out []*repository.AuditEntry
	for _, e := range s.entries {
		if e.ChainID != nil && *e.ChainID == chainID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakePublisher struct {
	events []string
}

func (p *fakePublisher) Publish(ctx context.Context, eventType string, fields map[string]any) {
	p.events = append(p.events, eventType)
}
