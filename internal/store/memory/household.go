package memory

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/dukerupert/smartcart/internal/model"
)

func (s *Store) CreateHousehold(_ context.Context, name, description string, ownerID int64, inviteCode string) (*model.Household, *model.HouseholdMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.inviteCodes[inviteCode]; ok {
		return nil, nil, duplicate("insert household")
	}
	now := s.timestamp()
	h := &model.Household{
		ID:          s.nextID("households"),
		Name:        name,
		Description: description,
		OwnerID:     ownerID,
		InviteCode:  inviteCode,
		CreatedAt:   now,
	}
	m := &model.HouseholdMember{
		ID:          s.nextID("household_members"),
		HouseholdID: h.ID,
		UserID:      ownerID,
		Role:        model.RoleOwner,
		JoinedAt:    now,
	}
	s.households[h.ID] = h
	s.inviteCodes[inviteCode] = h.ID
	s.members[memberKey{h.ID, ownerID}] = m

	hc, mc := *h, *m
	return &hc, &mc, nil
}

func (s *Store) GetHousehold(_ context.Context, id int64) (*model.Household, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.households[id]
	if !ok {
		return nil, nil
	}
	cp := *h
	return &cp, nil
}

func (s *Store) GetHouseholdByInviteCode(ctx context.Context, code string) (*model.Household, error) {
	s.mu.RLock()
	id, ok := s.inviteCodes[code]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return s.GetHousehold(ctx, id)
}

func (s *Store) UpdateHousehold(_ context.Context, id int64, patch model.HouseholdPatch) (*model.Household, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.households[id]
	if !ok {
		return nil, nil
	}
	if patch.Name != nil {
		h.Name = *patch.Name
	}
	if patch.Description != nil {
		h.Description = *patch.Description
	}
	h.UpdatedAt = ptrTime(s.timestamp())
	cp := *h
	return &cp, nil
}

func (s *Store) SetInviteCode(_ context.Context, id int64, code string) (*model.Household, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.households[id]
	if !ok {
		return nil, nil
	}
	if owner, taken := s.inviteCodes[code]; taken && owner != id {
		return nil, duplicate("set invite code")
	}
	delete(s.inviteCodes, h.InviteCode)
	h.InviteCode = code
	h.UpdatedAt = ptrTime(s.timestamp())
	s.inviteCodes[code] = id
	cp := *h
	return &cp, nil
}

func (s *Store) DeleteHousehold(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.households[id]
	if !ok {
		return nil
	}
	delete(s.inviteCodes, h.InviteCode)
	delete(s.households, id)
	for k := range s.members {
		if k.householdID == id {
			delete(s.members, k)
		}
	}
	for itemID, item := range s.items {
		if item.HouseholdID == id {
			delete(s.items, itemID)
		}
	}
	s.history = slices.DeleteFunc(s.history, func(p purchase) bool {
		return p.rec.HouseholdID == id
	})
	return nil
}

func (s *Store) AddMember(_ context.Context, householdID, userID int64, role model.Role) (*model.HouseholdMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.households[householdID]; !ok {
		return nil, fmt.Errorf("add member: household %d does not exist", householdID)
	}
	key := memberKey{householdID, userID}
	if _, ok := s.members[key]; ok {
		return nil, duplicate("add member")
	}
	if role == model.RoleOwner && s.ownerOf(householdID) != nil {
		return nil, duplicate("add member")
	}
	m := &model.HouseholdMember{
		ID:          s.nextID("household_members"),
		HouseholdID: householdID,
		UserID:      userID,
		Role:        role,
		JoinedAt:    s.timestamp(),
	}
	s.members[key] = m
	cp := *m
	return &cp, nil
}

// ownerOf must be called with mu held.
func (s *Store) ownerOf(householdID int64) *model.HouseholdMember {
	for k, m := range s.members {
		if k.householdID == householdID && m.Role == model.RoleOwner {
			return m
		}
	}
	return nil
}

func (s *Store) GetMember(_ context.Context, householdID, userID int64) (*model.HouseholdMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.members[memberKey{householdID, userID}]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (s *Store) ListMembers(_ context.Context, householdID int64) ([]model.MemberWithUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listMembers(householdID), nil
}

// listMembers must be called with mu held.
func (s *Store) listMembers(householdID int64) []model.MemberWithUser {
	members := []model.MemberWithUser{}
	for k, m := range s.members {
		if k.householdID != householdID {
			continue
		}
		mu := model.MemberWithUser{HouseholdMember: *m}
		if u, ok := s.users[m.UserID]; ok {
			mu.User = u.Summary()
		}
		members = append(members, mu)
	}
	slices.SortFunc(members, func(a, b model.MemberWithUser) int {
		return cmp.Or(a.JoinedAt.Compare(b.JoinedAt), cmp.Compare(a.ID, b.ID))
	})
	return members
}

func (s *Store) CountMembers(_ context.Context, householdID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for k := range s.members {
		if k.householdID == householdID {
			n++
		}
	}
	return n, nil
}

func (s *Store) UpdateMemberRole(_ context.Context, householdID, userID int64, role model.Role) (*model.HouseholdMember, error) {
	if role == model.RoleOwner {
		return nil, errors.New("update member role: ownership changes require a transfer")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[memberKey{householdID, userID}]
	if !ok || m.Role == model.RoleOwner {
		return nil, nil
	}
	m.Role = role
	m.UpdatedAt = ptrTime(s.timestamp())
	cp := *m
	return &cp, nil
}

func (s *Store) TransferOwnership(_ context.Context, householdID, fromUserID, toUserID int64) (*model.HouseholdMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.members[memberKey{householdID, toUserID}]
	if !ok {
		return nil, nil
	}
	owner, ok := s.members[memberKey{householdID, fromUserID}]
	if !ok || owner.Role != model.RoleOwner {
		return nil, fmt.Errorf("transfer ownership: user %d does not own household %d", fromUserID, householdID)
	}
	now := s.timestamp()
	owner.Role = model.RoleAdmin
	owner.UpdatedAt = ptrTime(now)
	target.Role = model.RoleOwner
	target.UpdatedAt = ptrTime(now)
	if h, ok := s.households[householdID]; ok {
		h.OwnerID = toUserID
		h.UpdatedAt = ptrTime(now)
	}
	cp := *target
	return &cp, nil
}

func (s *Store) RemoveMember(_ context.Context, householdID, userID int64) (*model.HouseholdMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memberKey{householdID, userID}
	m, ok := s.members[key]
	if !ok {
		return nil, nil
	}
	delete(s.members, key)
	cp := *m
	return &cp, nil
}

func (s *Store) ListHouseholdsForUser(_ context.Context, userID int64) ([]model.HouseholdDetails, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var own []*model.HouseholdMember
	for k, m := range s.members {
		if k.userID == userID {
			own = append(own, m)
		}
	}
	slices.SortFunc(own, func(a, b *model.HouseholdMember) int {
		return cmp.Or(a.JoinedAt.Compare(b.JoinedAt), cmp.Compare(a.HouseholdID, b.HouseholdID))
	})

	details := []model.HouseholdDetails{}
	for _, m := range own {
		h, ok := s.households[m.HouseholdID]
		if !ok {
			continue
		}
		members := s.listMembers(h.ID)
		details = append(details, model.HouseholdDetails{
			Household:   *h,
			Role:        m.Role,
			MemberCount: len(members),
			Members:     members,
		})
	}
	return details, nil
}
