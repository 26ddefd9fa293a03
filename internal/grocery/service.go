package grocery

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/smartcart/internal/apperr"
	"github.com/dukerupert/smartcart/internal/model"
	"github.com/dukerupert/smartcart/internal/shopping"
	"github.com/dukerupert/smartcart/internal/store"
)

type Store interface {
	store.UserStore
	store.ItemStore
	store.HistoryStore
}

// Service implements list and shopping-session operations for a household.
// Callers are expected to have verified membership already.
type Service struct {
	store   Store
	tracker shopping.Tracker
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(st Store, tracker shopping.Tracker, logger *slog.Logger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: st, tracker: tracker, logger: logger, now: now}
}

func (s *Service) ListItems(ctx context.Context, householdID int64) ([]model.Item, error) {
	return s.store.ListItems(ctx, householdID)
}

// AddItem adds name to the list, categorizing it when category is empty.
func (s *Service) AddItem(ctx context.Context, householdID, userID int64, name, category string) (*model.Item, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Invalid("Item name is required")
	}
	category = strings.TrimSpace(category)
	if category == "" {
		category = Categorize(name)
	}
	return s.store.CreateItem(ctx, householdID, userID, name, category)
}

// UpdateItem applies patch to an item of the household. Checking an item
// records userID as the one who checked it.
func (s *Service) UpdateItem(ctx context.Context, householdID, itemID, userID int64, patch model.ItemPatch) (*model.Item, error) {
	if _, err := s.item(ctx, householdID, itemID); err != nil {
		return nil, err
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperr.Invalid("Item name is required")
		}
		patch.Name = &name
	}
	if patch.IsChecked != nil && *patch.IsChecked {
		patch.CheckedBy = &userID
	}
	item, err := s.store.UpdateItem(ctx, itemID, patch)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, apperr.Missing("Item not found")
	}
	return item, nil
}

func (s *Service) DeleteItem(ctx context.Context, householdID, itemID int64) error {
	if _, err := s.item(ctx, householdID, itemID); err != nil {
		return err
	}
	ok, err := s.store.DeleteItem(ctx, itemID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Missing("Item not found")
	}
	return nil
}

// item loads an item and hides items of other households.
func (s *Service) item(ctx context.Context, householdID, itemID int64) (*model.Item, error) {
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil || item.HouseholdID != householdID {
		return nil, apperr.Missing("Item not found")
	}
	return item, nil
}

func (s *Service) History(ctx context.Context, householdID int64) ([]model.PurchaseRecord, error) {
	return s.store.ListHistory(ctx, householdID)
}

func (s *Service) Shopper(ctx context.Context, householdID int64) (*model.Shopper, error) {
	return s.tracker.Current(ctx, householdID)
}

func (s *Service) StartShopping(ctx context.Context, householdID, userID int64) (*model.Shopper, error) {
	u, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.Unauthorized("User not found")
	}
	shopper := model.Shopper{UserID: u.ID, Name: u.Name, StartedAt: s.now().UTC()}
	ok, err := s.tracker.Start(ctx, householdID, shopper)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Conflicting("Someone is already shopping")
	}
	s.logger.Info("shopping started", "household_id", householdID, "user_id", userID)
	return &shopper, nil
}

// FinishShopping moves checked items into purchase history and ends the
// caller's session. It returns the number of items cleared.
func (s *Service) FinishShopping(ctx context.Context, householdID, userID int64) (int, error) {
	cur, err := s.tracker.Current(ctx, householdID)
	if err != nil {
		return 0, err
	}
	if cur == nil || cur.UserID != userID {
		return 0, apperr.Invalid("You are not currently shopping")
	}

	records, err := s.store.CompleteShopping(ctx, householdID, userID, s.now())
	if err != nil {
		return 0, err
	}
	if _, err := s.tracker.Finish(ctx, householdID, userID); err != nil {
		return 0, err
	}
	s.logger.Info("shopping completed", "household_id", householdID, "user_id", userID, "items", len(records))
	return len(records), nil
}
