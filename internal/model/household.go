package model

import "time"

type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}

type Household struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	OwnerID     int64      `json:"ownerId"`
	InviteCode  string     `json:"inviteCode"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

// HouseholdPatch carries a partial update; nil fields are left unchanged.
type HouseholdPatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type HouseholdMember struct {
	ID          int64      `json:"id"`
	HouseholdID int64      `json:"householdId"`
	UserID      int64      `json:"userId"`
	Role        Role       `json:"role"`
	JoinedAt    time.Time  `json:"joinedAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

type MemberWithUser struct {
	HouseholdMember
	User UserSummary `json:"user"`
}

// HouseholdDetails is a household as seen by one of its members.
type HouseholdDetails struct {
	Household
	Role        Role             `json:"role"`
	MemberCount int              `json:"memberCount"`
	Members     []MemberWithUser `json:"members"`
}
