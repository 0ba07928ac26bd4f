package approval

// RequestType classifies what an approval workflow was created to do.
type RequestType string

const (
	RequestTypeLeave         RequestType = "leave"
	RequestTypeProfileUpdate RequestType = "profile_update"
	RequestTypeGeneralUpdate RequestType = "general_update"
	RequestTypeMajorUpdate   RequestType = "major_update"
	RequestTypeOther         RequestType = "other"
)

// Step names produced by the default policy.
const (
	StepManagerApproval  = "Manager Approval"
	StepHRReview         = "HR Review"
	StepHRVerification   = "HR Verification"
	StepAdminFinal       = "Admin Final Approval"
	StepDirectorApproval = "Director Approval"
)

// Requester carries the attributes of the user submitting a request that the
// policy needs to build the chain.
type Requester struct {
	ID        string
	Role      string
	ManagerID *string
}

// StepDef is one gate the policy decided the request must pass.
type StepDef struct {
	Name     string
	Approver ApproverSpec
}

// StepBuilder produces the type-specific tail of a chain. Builders must be
// pure: the same inputs always yield the same steps.
type StepBuilder func(req Requester, payload map[string]any) []StepDef

// Policy maps request types to step builders. New request types are added by
// registering a builder, not by editing existing ones.
type Policy struct {
	builders       map[RequestType]StepBuilder
	defaultBuilder StepBuilder
}

// NewPolicy returns the standard HR policy with builders for all known
// request types and an HR-review fallback for everything else.
func NewPolicy() *Policy {
	p := &Policy{
		builders:       make(map[RequestType]StepBuilder),
		defaultBuilder: hrReviewSteps,
	}
	p.Register(RequestTypeLeave, leaveSteps)
	p.Register(RequestTypeProfileUpdate, updateSteps)
	p.Register(RequestTypeGeneralUpdate, updateSteps)
	p.Register(RequestTypeMajorUpdate, majorUpdateSteps)
	p.Register(RequestTypeOther, hrReviewSteps)
	return p
}

// Register installs (or replaces) the builder for a request type.
func (p *Policy) Register(t RequestType, b StepBuilder) {
	p.builders[t] = b
}

// BuildSteps computes the ordered approval chain for a request. A manager
// step is prepended for any non-executive requester with a manager; the
// type-specific builder supplies the rest. An empty result means the request
// needs no approval at all.
func (p *Policy) BuildSteps(req Requester, t RequestType, payload map[string]any) []StepDef {
	var steps []StepDef

	if req.ManagerID != nil && *req.ManagerID != "" && !ExecutiveRoles.Contains(req.Role) {
		steps = append(steps, StepDef{
			Name:     StepManagerApproval,
			Approver: ByUser(*req.ManagerID),
		})
	}

	builder, ok := p.builders[t]
	if !ok {
		builder = p.defaultBuilder
	}
	return append(steps, builder(req, payload)...)
}

// leaveRequiresDirector holds the roles whose leave is reviewed by a
// director instead of HR: the executive tier plus the roles that staff the
// HR review themselves. A director's leave is approved by a director peer.
var leaveRequiresDirector = NewRoleSet(RoleDirector, RoleCHO, RoleCXO, RoleVP, RoleAdmin, RoleHR)

func leaveSteps(req Requester, _ map[string]any) []StepDef {
	if leaveRequiresDirector.Contains(req.Role) {
		return []StepDef{{Name: StepDirectorApproval, Approver: ByRole(RoleDirector)}}
	}
	return []StepDef{{Name: StepHRReview, Approver: ByRole(RoleHR)}}
}

func updateSteps(_ Requester, _ map[string]any) []StepDef {
	return []StepDef{
		{Name: StepHRVerification, Approver: ByRole(RoleHR)},
		{Name: StepAdminFinal, Approver: ByRole(RoleAdmin)},
	}
}

func majorUpdateSteps(_ Requester, _ map[string]any) []StepDef {
	return []StepDef{{Name: StepDirectorApproval, Approver: ByRole(RoleDirector)}}
}

func hrReviewSteps(_ Requester, _ map[string]any) []StepDef {
	return []StepDef{{Name: StepHRReview, Approver: ByRole(RoleHR)}}
}
