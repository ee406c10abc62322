package enums

import "fmt"

// MemberRole represents a club-level permissions role.
type MemberRole string

const (
	MemberRoleOwner     MemberRole = "owner"
	MemberRoleAdmin     MemberRole = "admin"
	MemberRoleOrganizer MemberRole = "organizer"
	MemberRoleCoach     MemberRole = "coach"
	MemberRoleMember    MemberRole = "member"
)

var validMemberRoles = []MemberRole{
	MemberRoleOwner,
	MemberRoleAdmin,
	MemberRoleOrganizer,
	MemberRoleCoach,
	MemberRoleMember,
}

// String implements fmt.Stringer.
func (m MemberRole) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MemberRole.
func (m MemberRole) IsValid() bool {
	for _, candidate := range validMemberRoles {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMemberRole converts raw input into a MemberRole.
func ParseMemberRole(value string) (MemberRole, error) {
	for _, candidate := range validMemberRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid member role %q", value)
}

// CanManagePayments reports whether the role may issue refunds and view the
// club ledger.
func (m MemberRole) CanManagePayments() bool {
	switch m {
	case MemberRoleOwner, MemberRoleAdmin, MemberRoleOrganizer:
		return true
	default:
		return false
	}
}
