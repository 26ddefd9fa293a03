// Package store defines the persistence contract shared by the SQLite and
// in-memory backends.
//
// Lookups return (nil, nil) when the record does not exist. Writes that would
// violate a uniqueness rule return an error wrapping ErrDuplicate.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/dukerupert/smartcart/internal/model"
)

var ErrDuplicate = errors.New("duplicate record")

type UserStore interface {
	CreateUser(ctx context.Context, name, email, passwordHash string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

type HouseholdStore interface {
	// CreateHousehold inserts the household and its owner membership atomically.
	CreateHousehold(ctx context.Context, name, description string, ownerID int64, inviteCode string) (*model.Household, *model.HouseholdMember, error)
	GetHousehold(ctx context.Context, id int64) (*model.Household, error)
	GetHouseholdByInviteCode(ctx context.Context, code string) (*model.Household, error)
	UpdateHousehold(ctx context.Context, id int64, patch model.HouseholdPatch) (*model.Household, error)
	SetInviteCode(ctx context.Context, id int64, code string) (*model.Household, error)
	// DeleteHousehold removes the household with its members, items and history.
	DeleteHousehold(ctx context.Context, id int64) error

	AddMember(ctx context.Context, householdID, userID int64, role model.Role) (*model.HouseholdMember, error)
	GetMember(ctx context.Context, householdID, userID int64) (*model.HouseholdMember, error)
	ListMembers(ctx context.Context, householdID int64) ([]model.MemberWithUser, error)
	CountMembers(ctx context.Context, householdID int64) (int, error)
	// UpdateMemberRole changes a non-owner role. Ownership moves only through
	// TransferOwnership.
	UpdateMemberRole(ctx context.Context, householdID, userID int64, role model.Role) (*model.HouseholdMember, error)
	// TransferOwnership demotes the current owner to admin and promotes the
	// target in one step, keeping households.owner_id in sync.
	TransferOwnership(ctx context.Context, householdID, fromUserID, toUserID int64) (*model.HouseholdMember, error)
	RemoveMember(ctx context.Context, householdID, userID int64) (*model.HouseholdMember, error)
	ListHouseholdsForUser(ctx context.Context, userID int64) ([]model.HouseholdDetails, error)
}

type ItemStore interface {
	CreateItem(ctx context.Context, householdID, addedBy int64, name, category string) (*model.Item, error)
	GetItem(ctx context.Context, id int64) (*model.Item, error)
	ListItems(ctx context.Context, householdID int64) ([]model.Item, error)
	UpdateItem(ctx context.Context, id int64, patch model.ItemPatch) (*model.Item, error)
	DeleteItem(ctx context.Context, id int64) (bool, error)
	// CompleteShopping records every checked item of the household as
	// purchased by purchasedBy at the given time and removes those items.
	CompleteShopping(ctx context.Context, householdID, purchasedBy int64, at time.Time) ([]model.PurchaseRecord, error)
}

type HistoryStore interface {
	AddPurchase(ctx context.Context, rec model.PurchaseRecord) (*model.PurchaseRecord, error)
	// ListHistory returns the household's purchases, newest first.
	ListHistory(ctx context.Context, householdID int64) ([]model.PurchaseRecord, error)
	// ListHistoryByItemName matches names case-insensitively, newest first.
	ListHistoryByItemName(ctx context.Context, householdID int64, name string) ([]model.PurchaseRecord, error)
}

type PushStore interface {
	SaveSubscription(ctx context.Context, userID int64, endpoint, p256dh, auth string) (*model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, userID, id int64) (bool, error)
	DeleteSubscriptionByEndpoint(ctx context.Context, endpoint string) error
	// ListSubscriptionsForHousehold returns the subscriptions of every member.
	ListSubscriptionsForHousehold(ctx context.Context, householdID int64) ([]model.PushSubscription, error)
}

// Store is the full persistence surface used by the server.
type Store interface {
	UserStore
	HouseholdStore
	ItemStore
	HistoryStore
	PushStore
	Close() error
}
