package rbac

import "github.com/mind-engage/coursetrack/internal/auth"

// Default policy. Ownership of individual enrollments is checked by the
// services; these permissions only gate which routes a role may call.
var RolePermissions = map[auth.Role][]string{
	auth.RoleLearner: {
		"course:view",
		"enrollment:create",
		"enrollment:view-own",
		"progress:update",
		"attempt:submit",
		"attempt:view-own",
	},
	auth.RoleInstructor: {
		"course:*",
		"enrollment:*",
		"attempt:view-all",
		"attempt:view-own",
	},
	auth.RoleAdmin: {
		"*",
	},
}
