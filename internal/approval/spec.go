// Package approval contains the pure approval-chain engine: approver
// specifications, the step policy registry and the workflow aggregate's
// transition rules. Nothing in this package touches storage or transport.
package approval

// HR roles recognized by the step policy and authorization predicate.
const (
	RoleEmployee = "employee"
	RoleManager  = "manager"
	RoleHR       = "hr"
	RoleAdmin    = "admin"
	RoleDirector = "director"
	RoleVP       = "vp"
	RoleCXO      = "cxo"
	RoleCHO      = "cho"
)

// RoleSet is a set of role names, used for executive exemptions and
// authorization override capabilities.
type RoleSet map[string]struct{}

// NewRoleSet builds a RoleSet from role names.
func NewRoleSet(roles ...string) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

// Contains reports whether role is in the set. A nil set contains nothing.
func (s RoleSet) Contains(role string) bool {
	_, ok := s[role]
	return ok
}

// ExecutiveRoles never get a manager-approval step prepended to their chains.
var ExecutiveRoles = NewRoleSet(RoleDirector, RoleVP, RoleCXO, RoleCHO)

// SpecKind discriminates the two approver spec variants.
type SpecKind string

const (
	SpecByRole SpecKind = "role"
	SpecByUser SpecKind = "user"
)

// ApproverSpec is a tagged value describing who may act on a step: any holder
// of a role, or one specific user.
type ApproverSpec struct {
	Kind   SpecKind `json:"kind"`
	Role   string   `json:"role,omitempty"`
	UserID string   `json:"user_id,omitempty"`
}

// ByRole creates a role-gated approver spec.
func ByRole(role string) ApproverSpec {
	return ApproverSpec{Kind: SpecByRole, Role: role}
}

// ByUser creates an approver spec bound to one specific user.
func ByUser(userID string) ApproverSpec {
	return ApproverSpec{Kind: SpecByUser, UserID: userID}
}

// Matches is the single authorization predicate shared by the step executor,
// the escalation chain and the inbox view. Overrides is an explicit
// capability set: any actor holding one of those roles may act regardless of
// the spec. The generic engine passes {admin}; the escalation chain passes
// nil.
func (s ApproverSpec) Matches(actorID, actorRole string, overrides RoleSet) bool {
	if overrides.Contains(actorRole) {
		return true
	}
	switch s.Kind {
	case SpecByUser:
		return s.UserID == actorID
	case SpecByRole:
		return s.Role == actorRole
	default:
		return false
	}
}
