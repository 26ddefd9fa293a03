// Package household implements household creation, joining and the
// membership rules around the owner/admin/member roles.
package household

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/dukerupert/smartcart/internal/apperr"
	"github.com/dukerupert/smartcart/internal/model"
	"github.com/dukerupert/smartcart/internal/shopping"
	"github.com/dukerupert/smartcart/internal/store"
)

var errNotMember = apperr.Denied("You are not a member of this household")

type Store interface {
	store.UserStore
	store.HouseholdStore
}

// Mailer delivers invite codes by e-mail.
type Mailer interface {
	Configured() bool
	SendInvite(ctx context.Context, to, inviterName, householdName, inviteCode string) error
}

type Service struct {
	store   Store
	tracker shopping.Tracker
	mailer  Mailer
	codes   func() (string, error)
	logger  *slog.Logger
}

type Option func(*Service)

func WithCodeGenerator(gen func() (string, error)) Option {
	return func(s *Service) {
		s.codes = gen
	}
}

func WithMailer(m Mailer) Option {
	return func(s *Service) {
		s.mailer = m
	}
}

func NewService(st Store, tracker shopping.Tracker, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:   st,
		tracker: tracker,
		codes:   GenerateInviteCode,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Member returns the caller's membership or a Forbidden error.
func (s *Service) Member(ctx context.Context, householdID, userID int64) (*model.HouseholdMember, error) {
	m, err := s.store.GetMember(ctx, householdID, userID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errNotMember
	}
	return m, nil
}

func (s *Service) List(ctx context.Context, userID int64) ([]model.HouseholdDetails, error) {
	return s.store.ListHouseholdsForUser(ctx, userID)
}

func (s *Service) Create(ctx context.Context, userID int64, name, description string) (*model.Household, *model.HouseholdMember, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil, apperr.Invalid("Household name is required")
	}

	var h *model.Household
	var m *model.HouseholdMember
	err := s.withInviteCode(func(code string) error {
		var err error
		h, m, err = s.store.CreateHousehold(ctx, name, strings.TrimSpace(description), userID, code)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("household created", "household_id", h.ID, "user_id", userID)
	return h, m, nil
}

func (s *Service) Join(ctx context.Context, userID int64, code string) (*model.Household, *model.HouseholdMember, error) {
	code = NormalizeInviteCode(code)
	if code == "" {
		return nil, nil, apperr.Invalid("Invite code is required")
	}
	h, err := s.store.GetHouseholdByInviteCode(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	if h == nil {
		return nil, nil, apperr.Missing("Invalid invite code")
	}

	m, err := s.store.AddMember(ctx, h.ID, userID, model.RoleMember)
	if errors.Is(err, store.ErrDuplicate) {
		return nil, nil, apperr.Conflicting("You are already a member of this household")
	}
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("household joined", "household_id", h.ID, "user_id", userID)
	return h, m, nil
}

func (s *Service) Update(ctx context.Context, userID, householdID int64, patch model.HouseholdPatch) (*model.Household, error) {
	m, err := s.Member(ctx, householdID, userID)
	if err != nil {
		return nil, err
	}
	if !CanManage(m) {
		return nil, apperr.Denied("Only owners and admins can update household settings")
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperr.Invalid("Household name is required")
		}
		patch.Name = &name
	}
	h, err := s.store.UpdateHousehold(ctx, householdID, patch)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, apperr.Missing("Household not found")
	}
	return h, nil
}

// Delete deletes the household when its sole owner asks, or removes a
// non-owner caller from it.
func (s *Service) Delete(ctx context.Context, userID, householdID int64) (Departure, error) {
	m, err := s.store.GetMember(ctx, householdID, userID)
	if err != nil {
		return 0, err
	}
	count, err := s.store.CountMembers(ctx, householdID)
	if err != nil {
		return 0, err
	}
	d, err := CheckDelete(m, count)
	if err != nil {
		return 0, err
	}
	return d, s.depart(ctx, householdID, userID, d)
}

func (s *Service) Members(ctx context.Context, userID, householdID int64) ([]model.MemberWithUser, error) {
	if _, err := s.Member(ctx, householdID, userID); err != nil {
		return nil, err
	}
	return s.store.ListMembers(ctx, householdID)
}

// ChangeRole sets target's role. Assigning owner transfers ownership and
// demotes the acting owner to admin.
func (s *Service) ChangeRole(ctx context.Context, actorID, householdID, targetID int64, role model.Role) (*model.MemberWithUser, error) {
	actor, err := s.Member(ctx, householdID, actorID)
	if err != nil {
		return nil, err
	}
	target, err := s.store.GetMember(ctx, householdID, targetID)
	if err != nil {
		return nil, err
	}
	if err := CheckRoleChange(actor, target, role); err != nil {
		return nil, err
	}

	var updated *model.HouseholdMember
	if role == model.RoleOwner {
		updated, err = s.store.TransferOwnership(ctx, householdID, actorID, targetID)
	} else {
		updated, err = s.store.UpdateMemberRole(ctx, householdID, targetID, role)
	}
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, apperr.Missing("Member not found")
	}
	s.logger.Info("member role changed", "household_id", householdID, "user_id", targetID, "role", role)
	return s.withUser(ctx, updated)
}

// RemoveMember removes target (possibly the actor) from the household.
func (s *Service) RemoveMember(ctx context.Context, actorID, householdID, targetID int64) (*model.HouseholdMember, Departure, error) {
	actor, err := s.Member(ctx, householdID, actorID)
	if err != nil {
		return nil, 0, err
	}
	target, err := s.store.GetMember(ctx, householdID, targetID)
	if err != nil {
		return nil, 0, err
	}
	count, err := s.store.CountMembers(ctx, householdID)
	if err != nil {
		return nil, 0, err
	}
	d, err := CheckRemoval(actor, target, count)
	if err != nil {
		return nil, 0, err
	}
	if err := s.depart(ctx, householdID, targetID, d); err != nil {
		return nil, 0, err
	}
	return target, d, nil
}

func (s *Service) depart(ctx context.Context, householdID, userID int64, d Departure) error {
	if d == DeleteHousehold {
		if err := s.store.DeleteHousehold(ctx, householdID); err != nil {
			return err
		}
		if err := s.tracker.Clear(ctx, householdID); err != nil {
			return err
		}
		s.logger.Info("household deleted", "household_id", householdID, "user_id", userID)
		return nil
	}

	removed, err := s.store.RemoveMember(ctx, householdID, userID)
	if err != nil {
		return err
	}
	if removed == nil {
		return apperr.Missing("Member not found")
	}
	// A departing shopper leaves no orphaned session behind.
	if _, err := s.tracker.Finish(ctx, householdID, userID); err != nil {
		return err
	}
	s.logger.Info("member removed", "household_id", householdID, "user_id", userID)
	return nil
}

func (s *Service) RegenerateInviteCode(ctx context.Context, actorID, householdID int64) (*model.Household, error) {
	h, err := s.store.GetHousehold(ctx, householdID)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, apperr.Missing("Household not found")
	}
	m, err := s.store.GetMember(ctx, householdID, actorID)
	if err != nil {
		return nil, err
	}
	if !CanManage(m) {
		return nil, apperr.Denied("Only owners and admins can generate invite codes")
	}

	err = s.withInviteCode(func(code string) error {
		updated, err := s.store.SetInviteCode(ctx, householdID, code)
		if err != nil {
			return err
		}
		if updated == nil {
			return apperr.Missing("Household not found")
		}
		h = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

// SendInvite e-mails the household's invite code to address.
func (s *Service) SendInvite(ctx context.Context, actorID, householdID int64, address string) error {
	addr, err := mail.ParseAddress(strings.TrimSpace(address))
	if err != nil {
		return apperr.Invalid("A valid email address is required")
	}
	if s.mailer == nil || !s.mailer.Configured() {
		return apperr.New(apperr.Unavailable, "Email invitations are not configured")
	}
	m, err := s.Member(ctx, householdID, actorID)
	if err != nil {
		return err
	}
	if !CanManage(m) {
		return apperr.Denied("Only owners and admins can send invitations")
	}
	h, err := s.store.GetHousehold(ctx, householdID)
	if err != nil {
		return err
	}
	if h == nil {
		return apperr.Missing("Household not found")
	}
	inviter, err := s.store.GetUserByID(ctx, actorID)
	if err != nil {
		return err
	}
	inviterName := ""
	if inviter != nil {
		inviterName = inviter.Name
	}
	if err := s.mailer.SendInvite(ctx, addr.Address, inviterName, h.Name, h.InviteCode); err != nil {
		return fmt.Errorf("send invite: %w", err)
	}
	s.logger.Info("invite sent", "household_id", householdID, "user_id", actorID)
	return nil
}

func (s *Service) withInviteCode(fn func(code string) error) error {
	for i := 0; i < MaxInviteCodeAttempts; i++ {
		code, err := s.codes()
		if err != nil {
			return err
		}
		err = fn(code)
		if !errors.Is(err, store.ErrDuplicate) {
			return err
		}
		s.logger.Debug("invite code collision", "attempt", i+1)
	}
	return apperr.New(apperr.Internal, "Unable to generate unique invite code. Please try again.")
}

func (s *Service) withUser(ctx context.Context, m *model.HouseholdMember) (*model.MemberWithUser, error) {
	u, err := s.store.GetUserByID(ctx, m.UserID)
	if err != nil {
		return nil, err
	}
	mu := &model.MemberWithUser{HouseholdMember: *m}
	if u != nil {
		mu.User = u.Summary()
	}
	return mu, nil
}
