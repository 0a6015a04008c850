package utils

// Action enumerates the privileged operations the messaging core gates on
// role. Checks go through Can so the role→action policy lives in one table
// instead of ad hoc string comparisons in handlers.
type Action string

const (
	ActionManageCategories Action = "manage_categories"
	ActionManageChannels   Action = "manage_channels"
	ActionPostAnnouncement Action = "post_announcement"
	ActionDeleteAnyMedia   Action = "delete_any_media"
	ActionManageAnyTask    Action = "manage_any_task"
)

const (
	RoleUser       = "user"
	RoleHost       = "host"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

var rolePermissions = map[string]map[Action]bool{
	RoleUser: {},
	RoleHost: {
		ActionPostAnnouncement: true,
	},
	RoleAdmin: {
		ActionManageCategories: true,
		ActionManageChannels:   true,
		ActionPostAnnouncement: true,
		ActionDeleteAnyMedia:   true,
		ActionManageAnyTask:    true,
	},
	RoleSuperAdmin: {
		ActionManageCategories: true,
		ActionManageChannels:   true,
		ActionPostAnnouncement: true,
		ActionDeleteAnyMedia:   true,
		ActionManageAnyTask:    true,
	},
}

// Can reports whether the role may perform the action. Unknown roles have no
// permissions.
func Can(role string, action Action) bool {
	perms, ok := rolePermissions[role]
	if !ok {
		return false
	}
	return perms[action]
}
