package approval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-hr-approvals/internal/errors"
)

var adminOverride = NewRoleSet(RoleAdmin)

func twoStepWorkflow(t *testing.T) *Workflow {
	t.Helper()
	defs := []StepDef{
		{Name: StepManagerApproval, Approver: ByUser("mgr-1")},
		{Name: StepHRReview, Approver: ByRole(RoleHR)},
	}
	return NewWorkflow("emp-1", RequestTypeLeave, strPtr("leave-1"), nil, defs, time.Now())
}

func TestNewWorkflowPending(t *testing.T) {
	wf := twoStepWorkflow(t)

	assert.Equal(t, WorkflowPending, wf.Status)
	assert.Equal(t, 0, wf.Cursor)
	require.Len(t, wf.Steps, 2)
	assert.Equal(t, StepPending, wf.Steps[0].Status)
	assert.Equal(t, StepPending, wf.Steps[1].Status)
	require.NotNil(t, wf.ActiveStep())
	assert.Equal(t, StepManagerApproval, wf.ActiveStep().Name)
}

func TestNewWorkflowAutoApprovesEmptyChain(t *testing.T) {
	wf := NewWorkflow("emp-1", RequestTypeOther, nil, nil, nil, time.Now())

	assert.Equal(t, WorkflowApproved, wf.Status)
	assert.NotNil(t, wf.CompletedAt)
	assert.Nil(t, wf.ActiveStep())
}

func TestApplyApproveAdvancesCursor(t *testing.T) {
	wf := twoStepWorkflow(t)
	now := time.Now()

	tr, err := wf.Apply("mgr-1", RoleManager, adminOverride, ActionApprove, strPtr("ok"), now)
	require.NoError(t, err)

	assert.Equal(t, 0, tr.StepIndex)
	assert.Equal(t, StepApproved, tr.Step.Status)
	assert.False(t, tr.Finalized)
	assert.Equal(t, WorkflowPending, wf.Status)
	assert.Equal(t, 1, wf.Cursor)
	assert.Equal(t, StepHRReview, wf.ActiveStep().Name)

	// Exactly one step is pending: the one at the cursor.
	assert.Equal(t, StepApproved, wf.Steps[0].Status)
	assert.Equal(t, StepPending, wf.Steps[1].Status)
	require.NotNil(t, wf.Steps[0].ActedBy)
	assert.Equal(t, "mgr-1", *wf.Steps[0].ActedBy)
}

func TestApplyFinalApprovalFinalizes(t *testing.T) {
	wf := twoStepWorkflow(t)

	_, err := wf.Apply("mgr-1", RoleManager, adminOverride, ActionApprove, nil, time.Now())
	require.NoError(t, err)

	tr, err := wf.Apply("hr-1", RoleHR, adminOverride, ActionApprove, nil, time.Now())
	require.NoError(t, err)

	assert.True(t, tr.Finalized)
	assert.Equal(t, WorkflowApproved, wf.Status)
	assert.NotNil(t, wf.CompletedAt)
	assert.Nil(t, wf.ActiveStep())
}

func TestApplyRejectTerminatesImmediately(t *testing.T) {
	wf := twoStepWorkflow(t)

	tr, err := wf.Apply("mgr-1", RoleManager, adminOverride, ActionReject, strPtr("no"), time.Now())
	require.NoError(t, err)

	assert.Equal(t, StepRejected, tr.Step.Status)
	assert.Equal(t, WorkflowRejected, wf.Status)
	assert.False(t, tr.Finalized)

	// The second step was never reached and stays untouched.
	assert.Equal(t, StepPending, wf.Steps[1].Status)
}

func TestApplyOnFinalizedWorkflowFails(t *testing.T) {
	wf := twoStepWorkflow(t)
	_, err := wf.Apply("mgr-1", RoleManager, adminOverride, ActionReject, nil, time.Now())
	require.NoError(t, err)

	_, err = wf.Apply("hr-1", RoleHR, adminOverride, ActionApprove, nil, time.Now())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAlreadyFinalized, errors.CodeOf(err))
}

func TestApplyUnauthorizedActorLeavesStateUnchanged(t *testing.T) {
	wf := twoStepWorkflow(t)

	_, err := wf.Apply("someone-else", RoleEmployee, adminOverride, ActionApprove, nil, time.Now())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeForbidden, errors.CodeOf(err))

	assert.Equal(t, WorkflowPending, wf.Status)
	assert.Equal(t, 0, wf.Cursor)
	assert.Equal(t, StepPending, wf.Steps[0].Status)
	assert.Nil(t, wf.Steps[0].ActedBy)
}

func TestApplyAdminOverridesAnyStep(t *testing.T) {
	wf := twoStepWorkflow(t)

	// The manager step is bound to a specific user, but admin may act anyway.
	tr, err := wf.Apply("admin-1", RoleAdmin, adminOverride, ActionApprove, nil, time.Now())
	require.NoError(t, err)
	assert.Equal(t, StepApproved, tr.Step.Status)
}

func TestApplyInvalidAction(t *testing.T) {
	wf := twoStepWorkflow(t)

	_, err := wf.Apply("mgr-1", RoleManager, adminOverride, Action("defer"), nil, time.Now())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidation, errors.CodeOf(err))
	assert.Equal(t, StepPending, wf.Steps[0].Status)
}

func TestParseAction(t *testing.T) {
	act, err := ParseAction("approve")
	require.NoError(t, err)
	assert.Equal(t, ActionApprove, act)

	act, err = ParseAction("reject")
	require.NoError(t, err)
	assert.Equal(t, ActionReject, act)

	_, err = ParseAction("escalate")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidation, errors.CodeOf(err))
}
