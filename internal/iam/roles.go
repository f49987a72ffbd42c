package iam

// Role is an actor's privilege class. Roles are totally ordered by
// privilege: USER < STAFF < ADMIN < SYSTEM.
type Role string

const (
	RoleUser   Role = "user"
	RoleStaff  Role = "staff"
	RoleAdmin  Role = "admin"
	RoleSystem Role = "system"
)

// RoleRank maps roles to a comparable integer for privilege ordering.
var RoleRank = map[Role]int{
	RoleUser:   0,
	RoleStaff:  1,
	RoleAdmin:  2,
	RoleSystem: 3,
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := RoleRank[r]
	return ok
}

// Permission is a single enumerated capability.
type Permission string

const (
	// Escalation queue permissions.
	PermViewOwnEscalations Permission = "view_own_escalations"
	PermViewAllEscalations Permission = "view_all_escalations"
	PermResolveEscalations Permission = "resolve_escalations"

	// Agent interaction permissions.
	PermUseAgent Permission = "use_agent"

	// Banking permissions.
	PermViewOwnAccounts Permission = "view_own_accounts"
	PermViewAllAccounts Permission = "view_all_accounts"
	PermExecuteTransfer Permission = "execute_transfer"

	// Configuration permissions.
	PermViewConfig            Permission = "view_config"
	PermModifyConfig          Permission = "modify_config"
	PermModifyComplianceRules Permission = "modify_compliance_rules"

	// System administration.
	PermViewLogs    Permission = "view_logs"
	PermManageUsers Permission = "manage_users"
)

// AllPermissions lists every permission the system knows about.
// Order matches the declaration order above.
var AllPermissions = []Permission{
	PermViewOwnEscalations,
	PermViewAllEscalations,
	PermResolveEscalations,
	PermUseAgent,
	PermViewOwnAccounts,
	PermViewAllAccounts,
	PermExecuteTransfer,
	PermViewConfig,
	PermModifyConfig,
	PermModifyComplianceRules,
	PermViewLogs,
	PermManageUsers,
}

// rolePermissions is the static role → permission table. It is never
// mutated at runtime; RoleSystem is handled by short-circuit in
// HasPermission rather than by enumeration.
var rolePermissions = map[Role]map[Permission]bool{
	RoleUser: permSet(
		PermUseAgent,
		PermViewOwnEscalations,
		PermViewOwnAccounts,
	),
	RoleStaff: permSet(
		PermUseAgent,
		PermViewOwnEscalations,
		PermViewAllEscalations,
		PermViewOwnAccounts,
		PermViewAllAccounts,
		PermViewConfig,
		PermViewLogs,
	),
	RoleAdmin: permSet(
		PermUseAgent,
		PermViewOwnEscalations,
		PermViewAllEscalations,
		PermResolveEscalations,
		PermViewOwnAccounts,
		PermViewAllAccounts,
		PermExecuteTransfer,
		PermViewConfig,
		PermModifyConfig,
		PermModifyComplianceRules,
		PermViewLogs,
		PermManageUsers,
	),
}

func permSet(perms ...Permission) map[Permission]bool {
	s := make(map[Permission]bool, len(perms))
	for _, p := range perms {
		s[p] = true
	}
	return s
}

// PermissionsOf returns the permission set for a role. RoleSystem holds
// every permission. Unknown roles hold none.
func PermissionsOf(role Role) map[Permission]bool {
	if role == RoleSystem {
		return permSet(AllPermissions...)
	}
	set := rolePermissions[role]
	out := make(map[Permission]bool, len(set))
	for p := range set {
		out[p] = true
	}
	return out
}

// HasPermission reports whether the actor's role grants the permission.
// RoleSystem short-circuits to true for everything.
func HasPermission(actor Actor, perm Permission) bool {
	if actor.Role == RoleSystem {
		return true
	}
	return rolePermissions[actor.Role][perm]
}
