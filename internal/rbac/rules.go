package rbac

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	"student": {
		"course:view",
		"enroll:self",
		"review:create",
		"quiz:view",
		"attempt:create",
		"attempt:save",
		"attempt:submit",
		"attempt:view-own",
		"user:change_password",
	},
	"instructor": {
		"course:view",
		"course:create",
		"course:update",
		"course:publish",
		"lesson:manage",
		"quiz:view",
		"quiz:create",
		"quiz:delete",
		"enroll:manage",
		"attempt:view-all",
		"attempt:grade",
		"users:list",
		"user:change_password",
	},
	"admin": {
		"*", // everything
	},
}
