package suggest

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/dukerupert/smartcart/internal/model"
	"github.com/dukerupert/smartcart/internal/store/memory"
)

var base = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func at(dayOffset float64) time.Time {
	return base.Add(time.Duration(dayOffset * float64(24*time.Hour)))
}

func purchases(name, category string, dayOffsets ...float64) []model.PurchaseRecord {
	var recs []model.PurchaseRecord
	for _, d := range dayOffsets {
		recs = append(recs, model.PurchaseRecord{ItemName: name, Category: category, PurchasedAt: at(d)})
	}
	return recs
}

func TestFrequency(t *testing.T) {
	tests := []struct {
		name   string
		days   []float64
		want   float64
		wantOK bool
	}{
		{"no purchases", nil, 0, false},
		{"single purchase", []float64{0}, 0, false},
		{"two purchases", []float64{0, 7}, 7, true},
		{"uneven gaps", []float64{0, 7, 21}, 10.5, true},
		{"unsorted input", []float64{21, 0, 7}, 10.5, true},
		{"fractional", []float64{0, 1.5}, 1.5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Frequency(purchases("Milk", "Dairy", tt.days...))
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Frequency = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputeDueBoundary(t *testing.T) {
	history := purchases("milk", "Dairy", 0, 7)

	// Frequency 7, six days since: 6 >= 5.6 so it is due.
	got := Compute(at(13), history, nil)
	if len(got) != 1 {
		t.Fatalf("got %d suggestions, want 1", len(got))
	}
	s := got[0]
	if s.ItemName != "Milk" {
		t.Errorf("ItemName = %q, want %q", s.ItemName, "Milk")
	}
	if s.Frequency != 7 || s.DaysSinceLastPurchase != 6 {
		t.Errorf("frequency/days = %d/%d, want 7/6", s.Frequency, s.DaysSinceLastPurchase)
	}
	if s.Confidence != 86 {
		t.Errorf("Confidence = %d, want 86", s.Confidence)
	}
	if s.Category != "Dairy" {
		t.Errorf("Category = %q, want %q", s.Category, "Dairy")
	}
	want := "You usually buy this every 7 days. Last purchased 6 days ago."
	if s.Message != want {
		t.Errorf("Message = %q, want %q", s.Message, want)
	}

	// Five days since: 5 < 5.6 so nothing is suggested.
	if got := Compute(at(12), history, nil); len(got) != 0 {
		t.Errorf("got %d suggestions, want 0", len(got))
	}
}

func TestComputeConfidenceCapped(t *testing.T) {
	got := Compute(at(40), purchases("Eggs", "Dairy", 0, 10), nil)
	if len(got) != 1 {
		t.Fatalf("got %d suggestions, want 1", len(got))
	}
	if got[0].Confidence != 95 {
		t.Errorf("Confidence = %d, want 95", got[0].Confidence)
	}
}

func TestComputeSkipsItemsOnList(t *testing.T) {
	history := append(purchases("Milk", "Dairy", 0, 7), purchases("Bread", "Pantry", 0, 7)...)
	current := []model.Item{{Name: "  MILK "}}

	got := Compute(at(14), history, current)
	if len(got) != 1 {
		t.Fatalf("got %d suggestions, want 1", len(got))
	}
	if got[0].ItemName != "Bread" {
		t.Errorf("ItemName = %q, want %q", got[0].ItemName, "Bread")
	}
}

func TestComputeGroupsCaseInsensitively(t *testing.T) {
	history := []model.PurchaseRecord{
		{ItemName: "Milk", Category: "Dairy", PurchasedAt: at(0)},
		{ItemName: "milk", Category: "Dairy", PurchasedAt: at(7)},
	}
	got := Compute(at(14), history, nil)
	if len(got) != 1 {
		t.Fatalf("got %d suggestions, want 1", len(got))
	}
	if got[0].Frequency != 7 {
		t.Errorf("Frequency = %d, want 7", got[0].Frequency)
	}
}

func TestComputeSkipsSparseAndZeroFrequency(t *testing.T) {
	history := append(purchases("Tea", "Pantry", 0), purchases("Salt", "Pantry", 3, 3)...)
	if got := Compute(at(30), history, nil); len(got) != 0 {
		t.Errorf("got %+v, want no suggestions", got)
	}
}

func TestComputeOrdersAndLimits(t *testing.T) {
	var history []model.PurchaseRecord
	// Last purchases at day 10, intervals chosen for distinct confidences at day 20.
	history = append(history, purchases("apples", "Produce", 0, 10)...)   // 10/10 -> 100 -> 95
	history = append(history, purchases("bananas", "Produce", -10, 10)...) // 10/20 -> 50, not due
	history = append(history, purchases("cheese", "Dairy", 1, 10)...)     // 10/9 -> 111 -> 95
	history = append(history, purchases("rice", "Pantry", -2, 10)...)     // 10/12 -> 83
	history = append(history, purchases("pasta", "Pantry", -1, 10)...)    // 10/11 -> 91

	got := Compute(at(20), history, nil)
	want := []string{"Apples", "Cheese", "Pasta"}
	if len(got) != len(want) {
		t.Fatalf("got %d suggestions, want %d", len(got), len(want))
	}
	for i, name := range want {
		if got[i].ItemName != name {
			t.Errorf("suggestion[%d] = %q, want %q", i, got[i].ItemName, name)
		}
	}
	if got[2].Confidence != 91 {
		t.Errorf("Pasta confidence = %d, want 91", got[2].Confidence)
	}
}

func TestEstimator(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	u, _ := s.CreateUser(ctx, "Alice", "alice@example.com", "hash")
	h, _, _ := s.CreateHousehold(ctx, "Home", "", u.ID, "ABC123")
	for _, d := range []float64{0, 7, 21} {
		if _, err := s.AddPurchase(ctx, model.PurchaseRecord{
			HouseholdID: h.ID, ItemName: "Milk", Category: "Dairy", PurchasedBy: u.ID, PurchasedAt: at(d),
		}); err != nil {
			t.Fatalf("AddPurchase: %v", err)
		}
	}

	e := NewEstimator(s, s, func() time.Time { return at(31) })

	freq, ok, err := e.Frequency(ctx, h.ID, "MILK")
	if err != nil {
		t.Fatalf("Frequency: %v", err)
	}
	if !ok || freq != 10.5 {
		t.Errorf("Frequency = %v, %v, want 10.5, true", freq, ok)
	}

	got, err := e.Suggest(ctx, h.ID)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(got) != 1 || got[0].ItemName != "Milk" {
		t.Fatalf("Suggest = %+v", got)
	}
	if got[0].Frequency != 11 || got[0].DaysSinceLastPurchase != 10 {
		t.Errorf("frequency/days = %d/%d, want 11/10", got[0].Frequency, got[0].DaysSinceLastPurchase)
	}

	if _, err := s.CreateItem(ctx, h.ID, u.ID, "milk", "Dairy"); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	got, err = e.Suggest(ctx, h.ID)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no suggestions while milk is on the list, got %+v", got)
	}
}

func TestComputeUsesLatestCategory(t *testing.T) {
	// Filed under Other first, then moved to Home by the household.
	history := append(purchases("Candles", "Other", 0), purchases("Candles", "Home", 7)...)
	got := Compute(at(14), history, nil)
	if len(got) != 1 {
		t.Fatalf("got %d suggestions, want 1", len(got))
	}
	if got[0].Category != "Home" {
		t.Errorf("Category = %q, want %q", got[0].Category, "Home")
	}
}
