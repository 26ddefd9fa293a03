package sqlite

import (
	"context"
	"fmt"

	"github.com/dukerupert/smartcart/internal/model"
	"github.com/dukerupert/smartcart/internal/store"
)

const purchaseCols = `id, household_id, item_name, category, purchased_by, purchased_at`

func (s *Store) AddPurchase(ctx context.Context, rec model.PurchaseRecord) (*model.PurchaseRecord, error) {
	return insertPurchase(ctx, s.db, rec)
}

func (s *Store) ListHistory(ctx context.Context, householdID int64) ([]model.PurchaseRecord, error) {
	return s.queryHistory(ctx,
		`SELECT `+purchaseCols+` FROM purchase_history WHERE household_id = ?
		 ORDER BY purchased_at DESC, id DESC`, householdID,
	)
}

func (s *Store) ListHistoryByItemName(ctx context.Context, householdID int64, name string) ([]model.PurchaseRecord, error) {
	return s.queryHistory(ctx,
		`SELECT `+purchaseCols+` FROM purchase_history WHERE household_id = ? AND item_key = ?
		 ORDER BY purchased_at DESC, id DESC`, householdID, store.ItemKey(name),
	)
}

func (s *Store) queryHistory(ctx context.Context, query string, args ...any) ([]model.PurchaseRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	records := []model.PurchaseRecord{}
	for rows.Next() {
		var r model.PurchaseRecord
		if err := rows.Scan(&r.ID, &r.HouseholdID, &r.ItemName, &r.Category, &r.PurchasedBy, &r.PurchasedAt); err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
