package models

// Role is a user's position in the community hierarchy.
// Roles are stored as strings in the Store and on user records, but all
// permission logic goes through the predicates below instead of comparing
// strings at call sites.
type Role string

const (
	RoleAdmin          Role = "admin"
	RoleCoAdmin        Role = "co_admin"
	RoleAssistantAdmin Role = "assistant_admin"
	RoleLeader         Role = "leader"
	RoleGroupLeader    Role = "group_leader"
	RoleRater          Role = "rater"
	RoleMember         Role = "member"
)

// ParseRole maps an arbitrary string to a known role, defaulting to member.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleAdmin, RoleCoAdmin, RoleAssistantAdmin, RoleLeader, RoleGroupLeader, RoleRater:
		return Role(s)
	default:
		return RoleMember
	}
}

// IsManager reports whether the role carries moderation capability
// (pinning, restriction toggles, sending into restricted groups).
func (r Role) IsManager() bool {
	switch r {
	case RoleAdmin, RoleCoAdmin, RoleAssistantAdmin, RoleLeader, RoleGroupLeader:
		return true
	}
	return false
}

// IsSeniorManager reports whether the role may delete other users' messages
// regardless of sender role (admin-authored messages excepted).
func (r Role) IsSeniorManager() bool {
	switch r {
	case RoleAdmin, RoleCoAdmin, RoleAssistantAdmin:
		return true
	}
	return false
}

// IsLeader reports whether the role is one of the leader tiers, which may
// moderate rater-authored messages only.
func (r Role) IsLeader() bool {
	return r == RoleLeader || r == RoleGroupLeader
}

// CanSeeRedactedContent reports whether the role may read the original text
// of deleted messages. Only the main admin retains that access.
func (r Role) CanSeeRedactedContent() bool {
	return r == RoleAdmin
}
