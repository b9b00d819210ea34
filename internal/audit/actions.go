package audit

// Action vocabulary. Values are stored verbatim and shown in the audit view.
const (
	ActionLogin               = "User Login"
	ActionLoginFailed         = "Failed Login Attempt"
	ActionLoginLocked         = "Locked Account Login Attempt"
	ActionLoginDisabled       = "Disabled Account Login Attempt"
	ActionLogout              = "User Logout"
	ActionUserCreated         = "User Created"
	ActionUserUpdated         = "User Updated"
	ActionUserDeleted         = "User Deleted"
	ActionPasswordReset       = "Password Reset"
	ActionPasswordChanged     = "Password Changed"
	ActionAdminPasswordReset  = "Admin Password Reset"
	ActionGroupCreated        = "Group Created"
	ActionGroupUpdated        = "Group Updated"
	ActionGroupDeleted        = "Group Deleted"
	ActionGroupMemberAdded    = "Group Member Added"
	ActionGroupMemberRemoved  = "Group Member Removed"
	ActionOUCreated           = "OU Created"
	ActionOUUpdated           = "OU Updated"
	ActionOUDeleted           = "OU Deleted"
	ActionComputerCreated     = "Computer Created"
	ActionComputerUpdated     = "Computer Updated"
	ActionComputerDeleted     = "Computer Deleted"
	actionComputerStatusStart = "Computer "
)

// ComputerStatusAction names a power state change, e.g. "Computer ON".
func ComputerStatusAction(status string) string {
	return actionComputerStatusStart + status
}
