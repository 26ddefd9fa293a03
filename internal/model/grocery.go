package model

import "time"

type Item struct {
	ID          int64      `json:"id"`
	HouseholdID int64      `json:"householdId"`
	Name        string     `json:"name"`
	Category    string     `json:"category"`
	IsChecked   bool       `json:"isChecked"`
	CheckedBy   *int64     `json:"checkedBy"`
	AddedBy     int64      `json:"addedBy"`
	AddedByName string     `json:"addedByName"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

// ItemPatch carries a partial item update; nil fields are left unchanged.
type ItemPatch struct {
	Name      *string
	Category  *string
	IsChecked *bool
	CheckedBy *int64
}

// PurchaseRecord is one entry of a household's append-only purchase history.
type PurchaseRecord struct {
	ID          int64     `json:"id"`
	HouseholdID int64     `json:"householdId"`
	ItemName    string    `json:"itemName"`
	Category    string    `json:"category"`
	PurchasedBy int64     `json:"purchasedBy"`
	PurchasedAt time.Time `json:"purchasedAt"`
}

// Shopper identifies the member currently running a shopping session.
type Shopper struct {
	UserID    int64     `json:"id"`
	Name      string    `json:"name"`
	StartedAt time.Time `json:"startedAt"`
}
