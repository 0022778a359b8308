package model

import "time"

// Role is a member's standing within a household. Every household with at
// least one member has exactly one RoleOwner.
type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleMember Role = "MEMBER"
)

type Household struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	InviteCode  string    `json:"invite_code"`
	Address     string    `json:"address,omitempty"`
	Description string    `json:"description,omitempty"`
	HostUserID  int64     `json:"host_user_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type HouseholdMember struct {
	ID          int64     `json:"id"`
	HouseholdID int64     `json:"household_id"`
	UserID      int64     `json:"user_id"`
	Role        Role      `json:"role"`
	JoinedAt    time.Time `json:"joined_at"`
}

// MemberDetail is a roster row joined with the member's user record.
type MemberDetail struct {
	UserID      int64     `json:"user_id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Role        Role      `json:"role"`
	TotalXP     int       `json:"-"`
	Level       int       `json:"-"`
	JoinedAt    time.Time `json:"joined_at"`
}

// HouseholdPreview is what a prospective member sees before joining. It never
// carries the invite code or the roster.
type HouseholdPreview struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	MemberCount     int    `json:"member_count"`
	HostDisplayName string `json:"host_display_name"`
}
