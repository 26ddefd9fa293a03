package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/smartcart/internal/model"
	"github.com/dukerupert/smartcart/internal/store"
)

func scanItem(scanner interface{ Scan(...any) error }) (*model.Item, error) {
	var item model.Item
	var checkedBy sql.NullInt64
	var updatedAt sql.NullTime
	err := scanner.Scan(
		&item.ID, &item.HouseholdID, &item.Name, &item.Category, &item.IsChecked,
		&checkedBy, &item.AddedBy, &item.AddedByName, &item.CreatedAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if checkedBy.Valid {
		item.CheckedBy = &checkedBy.Int64
	}
	item.UpdatedAt = nullTime(updatedAt)
	return &item, nil
}

const itemSelect = `SELECT i.id, i.household_id, i.name, i.category, i.is_checked, i.checked_by,
	i.added_by, COALESCE(u.name, ''), i.created_at, i.updated_at
	FROM items i LEFT JOIN users u ON u.id = i.added_by`

func getItem(ctx context.Context, q queryer, id int64) (*model.Item, error) {
	row := q.QueryRowContext(ctx, itemSelect+` WHERE i.id = ?`, id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

func (s *Store) CreateItem(ctx context.Context, householdID, addedBy int64, name, category string) (*model.Item, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO items (household_id, name, category, added_by, created_at) VALUES (?, ?, ?, ?, ?)`,
		householdID, name, category, addedBy, s.timestamp(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return getItem(ctx, s.db, id)
}

func (s *Store) GetItem(ctx context.Context, id int64) (*model.Item, error) {
	return getItem(ctx, s.db, id)
}

func (s *Store) ListItems(ctx context.Context, householdID int64) ([]model.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		itemSelect+` WHERE i.household_id = ? ORDER BY i.created_at DESC, i.id DESC`, householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := []model.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// UpdateItem merges patch into the stored item. Unchecking an item clears
// checked_by.
func (s *Store) UpdateItem(ctx context.Context, id int64, patch model.ItemPatch) (*model.Item, error) {
	var item *model.Item
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		cur, err := getItem(ctx, tx, id)
		if err != nil || cur == nil {
			return err
		}
		applyItemPatch(cur, patch)
		var checkedBy any
		if cur.CheckedBy != nil {
			checkedBy = *cur.CheckedBy
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE items SET name = ?, category = ?, is_checked = ?, checked_by = ?, updated_at = ? WHERE id = ?`,
			cur.Name, cur.Category, cur.IsChecked, checkedBy, s.timestamp(), id,
		); err != nil {
			return fmt.Errorf("update item: %w", err)
		}
		item, err = getItem(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func applyItemPatch(item *model.Item, patch model.ItemPatch) {
	if patch.Name != nil {
		item.Name = *patch.Name
	}
	if patch.Category != nil {
		item.Category = *patch.Category
	}
	if patch.IsChecked != nil {
		item.IsChecked = *patch.IsChecked
		if item.IsChecked {
			item.CheckedBy = patch.CheckedBy
		} else {
			item.CheckedBy = nil
		}
	}
}

func (s *Store) DeleteItem(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *Store) CompleteShopping(ctx context.Context, householdID, purchasedBy int64, at time.Time) ([]model.PurchaseRecord, error) {
	at = at.UTC()
	records := []model.PurchaseRecord{}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT id, name, category FROM items WHERE household_id = ? AND is_checked = 1 ORDER BY id ASC`,
			householdID,
		)
		if err != nil {
			return fmt.Errorf("list checked items: %w", err)
		}
		type checked struct {
			id             int64
			name, category string
		}
		var items []checked
		for rows.Next() {
			var c checked
			if err := rows.Scan(&c.id, &c.name, &c.category); err != nil {
				rows.Close()
				return fmt.Errorf("scan checked item: %w", err)
			}
			items = append(items, c)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("list checked items: %w", err)
		}

		for _, c := range items {
			rec, err := insertPurchase(ctx, tx, model.PurchaseRecord{
				HouseholdID: householdID,
				ItemName:    c.name,
				Category:    c.category,
				PurchasedBy: purchasedBy,
				PurchasedAt: at,
			})
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, c.id); err != nil {
				return fmt.Errorf("delete purchased item: %w", err)
			}
			records = append(records, *rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func insertPurchase(ctx context.Context, q queryer, rec model.PurchaseRecord) (*model.PurchaseRecord, error) {
	rec.PurchasedAt = rec.PurchasedAt.UTC()
	result, err := q.ExecContext(ctx,
		`INSERT INTO purchase_history (household_id, item_name, item_key, category, purchased_by, purchased_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.HouseholdID, rec.ItemName, store.ItemKey(rec.ItemName), rec.Category, rec.PurchasedBy, rec.PurchasedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert purchase: %w", err)
	}
	if rec.ID, err = result.LastInsertId(); err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &rec, nil
}
