package approval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestBuildStepsLeaveWithManager(t *testing.T) {
	p := NewPolicy()
	req := Requester{ID: "emp-1", Role: RoleEmployee, ManagerID: strPtr("mgr-1")}

	steps := p.BuildSteps(req, RequestTypeLeave, nil)

	require.Len(t, steps, 2)
	assert.Equal(t, StepManagerApproval, steps[0].Name)
	assert.Equal(t, ByUser("mgr-1"), steps[0].Approver)
	assert.Equal(t, StepHRReview, steps[1].Name)
	assert.Equal(t, ByRole(RoleHR), steps[1].Approver)
}

func TestBuildStepsLeaveForDirector(t *testing.T) {
	p := NewPolicy()
	// Executives skip the manager step even when a manager is on record, and
	// a director's leave is reviewed by a director peer, not HR.
	req := Requester{ID: "dir-1", Role: RoleDirector, ManagerID: strPtr("ceo-1")}

	steps := p.BuildSteps(req, RequestTypeLeave, nil)

	require.Len(t, steps, 1)
	assert.Equal(t, StepDirectorApproval, steps[0].Name)
	assert.Equal(t, ByRole(RoleDirector), steps[0].Approver)
}

func TestBuildStepsLeaveForHRGoesToDirector(t *testing.T) {
	p := NewPolicy()
	req := Requester{ID: "hr-1", Role: RoleHR}

	steps := p.BuildSteps(req, RequestTypeLeave, nil)

	require.Len(t, steps, 1)
	assert.Equal(t, StepDirectorApproval, steps[0].Name)
	assert.Equal(t, ByRole(RoleDirector), steps[0].Approver)
}

func TestBuildStepsMajorUpdateForCXO(t *testing.T) {
	p := NewPolicy()
	req := Requester{ID: "cxo-1", Role: RoleCXO, ManagerID: strPtr("cho-1")}

	steps := p.BuildSteps(req, RequestTypeMajorUpdate, nil)

	require.Len(t, steps, 1)
	assert.Equal(t, StepDirectorApproval, steps[0].Name)
}

func TestBuildStepsMajorUpdateKeepsManagerStep(t *testing.T) {
	p := NewPolicy()
	req := Requester{ID: "emp-1", Role: RoleEmployee, ManagerID: strPtr("mgr-1")}

	steps := p.BuildSteps(req, RequestTypeMajorUpdate, nil)

	require.Len(t, steps, 2)
	assert.Equal(t, StepManagerApproval, steps[0].Name)
	assert.Equal(t, StepDirectorApproval, steps[1].Name)
}

func TestBuildStepsProfileUpdate(t *testing.T) {
	p := NewPolicy()
	req := Requester{ID: "emp-1", Role: RoleEmployee, ManagerID: strPtr("mgr-1")}

	for _, reqType := range []RequestType{RequestTypeProfileUpdate, RequestTypeGeneralUpdate} {
		steps := p.BuildSteps(req, reqType, map[string]any{"phone": "123"})

		require.Len(t, steps, 3)
		assert.Equal(t, StepManagerApproval, steps[0].Name)
		assert.Equal(t, StepHRVerification, steps[1].Name)
		assert.Equal(t, ByRole(RoleHR), steps[1].Approver)
		assert.Equal(t, StepAdminFinal, steps[2].Name)
		assert.Equal(t, ByRole(RoleAdmin), steps[2].Approver)
	}
}

func TestBuildStepsUnknownTypeFallsBackToHR(t *testing.T) {
	p := NewPolicy()
	req := Requester{ID: "emp-1", Role: RoleEmployee}

	steps := p.BuildSteps(req, RequestType("equipment_request"), nil)

	require.Len(t, steps, 1)
	assert.Equal(t, StepHRReview, steps[0].Name)
}

func TestBuildStepsNoManagerNoManagerStep(t *testing.T) {
	p := NewPolicy()
	req := Requester{ID: "emp-1", Role: RoleEmployee}

	steps := p.BuildSteps(req, RequestTypeLeave, nil)

	require.Len(t, steps, 1)
	assert.Equal(t, StepHRReview, steps[0].Name)
}

func TestBuildStepsIsDeterministic(t *testing.T) {
	p := NewPolicy()
	req := Requester{ID: "emp-1", Role: RoleEmployee, ManagerID: strPtr("mgr-1")}

	first := p.BuildSteps(req, RequestTypeProfileUpdate, map[string]any{"name": "X"})
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, p.BuildSteps(req, RequestTypeProfileUpdate, map[string]any{"name": "X"}))
	}
}

func TestRegisterCustomBuilder(t *testing.T) {
	p := NewPolicy()
	p.Register(RequestType("onboarding"), func(_ Requester, _ map[string]any) []StepDef {
		return []StepDef{{Name: "IT Setup", Approver: ByRole(RoleAdmin)}}
	})

	steps := p.BuildSteps(Requester{ID: "e", Role: RoleEmployee}, RequestType("onboarding"), nil)

	require.Len(t, steps, 1)
	assert.Equal(t, "IT Setup", steps[0].Name)
}
