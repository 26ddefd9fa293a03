package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dukerupert/smartcart/internal/model"
	"github.com/dukerupert/smartcart/internal/store"
)

// itemView must be called with mu held.
func (s *Store) itemView(item *model.Item) model.Item {
	cp := *item
	if item.CheckedBy != nil {
		v := *item.CheckedBy
		cp.CheckedBy = &v
	}
	if u, ok := s.users[item.AddedBy]; ok {
		cp.AddedByName = u.Name
	}
	return cp
}

func (s *Store) CreateItem(_ context.Context, householdID, addedBy int64, name, category string) (*model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.households[householdID]; !ok {
		return nil, fmt.Errorf("insert item: household %d does not exist", householdID)
	}
	item := &model.Item{
		ID:          s.nextID("items"),
		HouseholdID: householdID,
		Name:        name,
		Category:    category,
		AddedBy:     addedBy,
		CreatedAt:   s.timestamp(),
	}
	s.items[item.ID] = item
	v := s.itemView(item)
	return &v, nil
}

func (s *Store) GetItem(_ context.Context, id int64) (*model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, nil
	}
	v := s.itemView(item)
	return &v, nil
}

func (s *Store) ListItems(_ context.Context, householdID int64) ([]model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := []model.Item{}
	for _, item := range s.items {
		if item.HouseholdID == householdID {
			items = append(items, s.itemView(item))
		}
	}
	slices.SortFunc(items, func(a, b model.Item) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID, a.ID))
	})
	return items, nil
}

func (s *Store) UpdateItem(_ context.Context, id int64, patch model.ItemPatch) (*model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return nil, nil
	}
	if patch.Name != nil {
		item.Name = *patch.Name
	}
	if patch.Category != nil {
		item.Category = *patch.Category
	}
	if patch.IsChecked != nil {
		item.IsChecked = *patch.IsChecked
		item.CheckedBy = nil
		if item.IsChecked && patch.CheckedBy != nil {
			v := *patch.CheckedBy
			item.CheckedBy = &v
		}
	}
	item.UpdatedAt = ptrTime(s.timestamp())
	v := s.itemView(item)
	return &v, nil
}

func (s *Store) DeleteItem(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return false, nil
	}
	delete(s.items, id)
	return true, nil
}

func (s *Store) CompleteShopping(_ context.Context, householdID, purchasedBy int64, at time.Time) ([]model.PurchaseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var checked []*model.Item
	for _, item := range s.items {
		if item.HouseholdID == householdID && item.IsChecked {
			checked = append(checked, item)
		}
	}
	slices.SortFunc(checked, func(a, b *model.Item) int { return cmp.Compare(a.ID, b.ID) })

	records := []model.PurchaseRecord{}
	for _, item := range checked {
		rec := s.appendPurchase(model.PurchaseRecord{
			HouseholdID: householdID,
			ItemName:    item.Name,
			Category:    item.Category,
			PurchasedBy: purchasedBy,
			PurchasedAt: at,
		})
		delete(s.items, item.ID)
		records = append(records, rec)
	}
	return records, nil
}

// appendPurchase must be called with mu held for writing.
func (s *Store) appendPurchase(rec model.PurchaseRecord) model.PurchaseRecord {
	rec.ID = s.nextID("purchase_history")
	rec.PurchasedAt = rec.PurchasedAt.UTC()
	s.history = append(s.history, purchase{rec: rec, key: store.ItemKey(rec.ItemName)})
	return rec
}

func (s *Store) AddPurchase(_ context.Context, rec model.PurchaseRecord) (*model.PurchaseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.appendPurchase(rec)
	return &out, nil
}

func (s *Store) ListHistory(_ context.Context, householdID int64) ([]model.PurchaseRecord, error) {
	return s.filterHistory(func(p purchase) bool {
		return p.rec.HouseholdID == householdID
	}), nil
}

func (s *Store) ListHistoryByItemName(_ context.Context, householdID int64, name string) ([]model.PurchaseRecord, error) {
	key := store.ItemKey(name)
	return s.filterHistory(func(p purchase) bool {
		return p.rec.HouseholdID == householdID && p.key == key
	}), nil
}

func (s *Store) filterHistory(keep func(purchase) bool) []model.PurchaseRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := []model.PurchaseRecord{}
	for _, p := range s.history {
		if keep(p) {
			records = append(records, p.rec)
		}
	}
	slices.SortFunc(records, func(a, b model.PurchaseRecord) int {
		return cmp.Or(b.PurchasedAt.Compare(a.PurchasedAt), cmp.Compare(b.ID, a.ID))
	})
	return records
}
