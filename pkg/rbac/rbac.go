package rbac

// Permissions.
const (
	PermissionIdeaWrite       = "idea:write"
	PermissionIdeaRead        = "idea:read"
	PermissionReviewRead      = "review:read"
	PermissionAssignmentWrite = "assignment:write"
	PermissionEvaluationWrite = "evaluation:write"
	PermissionEvaluationRead  = "evaluation:read"
	PermissionDecisionWrite   = "decision:write"
	PermissionDashboardRead   = "dashboard:read"
	PermissionAdmin           = "admin"
)

// Roles.
const (
	RoleSubmitter  = "submitter"
	RoleEvaluator  = "evaluator"
	RoleManagement = "management"
)

// rolePermissions maps each role to what it may do.
var rolePermissions = map[string][]string{
	RoleSubmitter: {
		PermissionIdeaWrite,
		PermissionIdeaRead,
	},
	RoleEvaluator: {
		PermissionIdeaRead,
		PermissionEvaluationWrite,
		PermissionEvaluationRead,
	},
	RoleManagement: {
		PermissionIdeaWrite,
		PermissionIdeaRead,
		PermissionReviewRead,
		PermissionAssignmentWrite,
		PermissionEvaluationWrite,
		PermissionEvaluationRead,
		PermissionDecisionWrite,
		PermissionDashboardRead,
		PermissionAdmin,
	},
}

// ValidRole reports whether role is known.
func ValidRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}

// HasPermission reports whether role grants permission.
func HasPermission(role, permission string) bool {
	for _, p := range rolePermissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}

// CheckPermission is HasPermission returning a *PermissionDeniedError.
func CheckPermission(role, permission string) error {
	if !HasPermission(role, permission) {
		return &PermissionDeniedError{
			Role:       role,
			Permission: permission,
		}
	}
	return nil
}

// PermissionDeniedError is returned when a role lacks a permission.
type PermissionDeniedError struct {
	Role       string
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return "insufficient permissions"
}
