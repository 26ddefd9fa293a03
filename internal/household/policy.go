package household

import (
	"github.com/dukerupert/smartcart/internal/apperr"
	"github.com/dukerupert/smartcart/internal/model"
)

// Departure is what a permitted removal does to the household.
type Departure int

const (
	RemoveMembership Departure = iota
	DeleteHousehold
)

// CanManage reports whether m may administer the household: edit it,
// regenerate the invite code, change roles and remove other members.
func CanManage(m *model.HouseholdMember) bool {
	return m != nil && (m.Role == model.RoleOwner || m.Role == model.RoleAdmin)
}

// CheckRoleChange validates actor setting target's role to role. Assigning
// the owner role is a transfer: the caller must move ownership atomically.
func CheckRoleChange(actor, target *model.HouseholdMember, role model.Role) error {
	if !CanManage(actor) {
		return apperr.Denied("Only owners and admins can change member roles")
	}
	if !role.Valid() {
		return apperr.Invalid("Invalid role. Must be owner, admin, or member")
	}
	if target == nil {
		return apperr.Missing("Member not found")
	}
	if role == model.RoleOwner && actor.Role != model.RoleOwner {
		return apperr.Denied("Only the owner can transfer ownership")
	}
	if target.UserID == actor.UserID && actor.Role == model.RoleOwner {
		return apperr.Invalid("Owners cannot change their own role")
	}
	if target.Role == model.RoleOwner {
		return apperr.Invalid("The owner's role can only change through an ownership transfer")
	}
	return nil
}

// CheckRemoval validates actor removing target from a household that
// currently has memberCount members.
func CheckRemoval(actor, target *model.HouseholdMember, memberCount int) (Departure, error) {
	if actor == nil {
		return 0, apperr.Denied("You are not a member of this household")
	}
	if target == nil {
		return 0, apperr.Missing("Member not found")
	}
	self := actor.UserID == target.UserID
	if !self && !CanManage(actor) {
		return 0, apperr.Denied("Only owners and admins can remove members")
	}
	if target.Role != model.RoleOwner {
		return RemoveMembership, nil
	}
	if !self {
		return 0, apperr.Invalid("Cannot remove owner. Transfer ownership first.")
	}
	if memberCount > 1 {
		return 0, apperr.Invalid("Cannot leave household as owner. Transfer ownership or delete household first.")
	}
	return DeleteHousehold, nil
}

// CheckDelete validates a member deleting (owner) or leaving (anyone else)
// the household.
func CheckDelete(actor *model.HouseholdMember, memberCount int) (Departure, error) {
	if actor == nil {
		return 0, apperr.Missing("Household not found or you are not a member")
	}
	if actor.Role != model.RoleOwner {
		return RemoveMembership, nil
	}
	if memberCount > 1 {
		return 0, apperr.Invalid("Cannot delete household with other members. Transfer ownership or remove all members first.")
	}
	return DeleteHousehold, nil
}
