package auth

import "github.com/rosterly/rosterd/internal/domain"

// Permission names a guarded action. Handlers check the coarse permission
// here; ownership rules (self-only edits, own assignments) are enforced in
// the usecases where the target entity is known.
type Permission string

const (
	PermEmployeeRead    Permission = "employee:read"
	PermEmployeeWrite   Permission = "employee:write"
	PermEmployeeDelete  Permission = "employee:delete"
	PermPasswordReset   Permission = "password:reset"
	PermRoleChange      Permission = "role:change"
	PermDepartmentRead  Permission = "department:read"
	PermDepartmentWrite Permission = "department:write"
	PermShiftRead       Permission = "shift:read"
	PermShiftWrite      Permission = "shift:write"
	PermScheduleRead    Permission = "schedule:read"
	PermScheduleWrite   Permission = "schedule:write"
	PermSchedulePropose Permission = "schedule:propose"
	PermScheduleApprove Permission = "schedule:approve"
	PermAssignmentWrite Permission = "assignment:write"
	PermAssignmentRead  Permission = "assignment:read"
	PermSolverRun       Permission = "solver:run"
	PermRuleRead        Permission = "rule:read"
	PermRuleWrite       Permission = "rule:write"
	PermCacheStats      Permission = "cache:stats"
)

// permissions is the role matrix. Supervisors sit between manager and
// scheduler: full scheduling power over their department, no employee
// administration.
var permissions = map[domain.Role][]Permission{
	domain.RoleAdmin: {
		PermEmployeeRead, PermEmployeeWrite, PermEmployeeDelete,
		PermPasswordReset, PermRoleChange,
		PermDepartmentRead, PermDepartmentWrite,
		PermShiftRead, PermShiftWrite,
		PermScheduleRead, PermScheduleWrite, PermSchedulePropose, PermScheduleApprove,
		PermAssignmentRead, PermAssignmentWrite,
		PermSolverRun,
		PermRuleRead, PermRuleWrite,
		PermCacheStats,
	},
	domain.RoleManager: {
		PermEmployeeRead, PermEmployeeWrite,
		PermPasswordReset,
		PermDepartmentRead, PermDepartmentWrite,
		PermShiftRead, PermShiftWrite,
		PermScheduleRead, PermScheduleWrite, PermSchedulePropose, PermScheduleApprove,
		PermAssignmentRead, PermAssignmentWrite,
		PermSolverRun,
		PermRuleRead, PermRuleWrite,
	},
	domain.RoleSupervisor: {
		PermEmployeeRead,
		PermDepartmentRead,
		PermShiftRead, PermShiftWrite,
		PermScheduleRead, PermScheduleWrite, PermSchedulePropose,
		PermAssignmentRead, PermAssignmentWrite,
		PermSolverRun,
		PermRuleRead, PermRuleWrite,
	},
	domain.RoleScheduler: {
		PermEmployeeRead,
		PermDepartmentRead,
		PermShiftRead,
		PermScheduleRead, PermSchedulePropose,
		PermAssignmentRead, PermAssignmentWrite,
		PermSolverRun,
		PermRuleRead,
	},
	domain.RoleEmployee: {
		PermShiftRead,
		PermScheduleRead,
		PermAssignmentRead,
	},
}

// Allowed reports whether the role carries the permission.
func Allowed(role domain.Role, perm Permission) bool {
	for _, p := range permissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// Permissions returns the role's permission list as strings, for the
// role-permissions cache and the me endpoint.
func Permissions(role domain.Role) []string {
	perms := permissions[role]
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}
