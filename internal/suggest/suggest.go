// Package suggest estimates how often a household buys each item and
// proposes items that are due again.
package suggest

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dukerupert/smartcart/internal/model"
	"github.com/dukerupert/smartcart/internal/store"
)

const (
	// DueRatio is the fraction of the usual interval after which an item is
	// suggested again.
	DueRatio       = 0.8
	MaxConfidence  = 95
	MaxSuggestions = 3
)

const day = 24 * time.Hour

type Suggestion struct {
	ItemName              string `json:"itemName"`
	Category              string `json:"category"`
	Frequency             int    `json:"frequency"`
	DaysSinceLastPurchase int    `json:"daysSinceLastPurchase"`
	Confidence            int    `json:"confidence"`
	Message               string `json:"message"`
}

// Frequency returns the mean gap in days between consecutive purchases.
// It reports false when fewer than two purchases exist.
func Frequency(purchases []model.PurchaseRecord) (float64, bool) {
	if len(purchases) < 2 {
		return 0, false
	}
	times := make([]time.Time, len(purchases))
	for i, p := range purchases {
		times[i] = p.PurchasedAt
	}
	slices.SortFunc(times, func(a, b time.Time) int { return b.Compare(a) })

	var total float64
	for i := 1; i < len(times); i++ {
		total += days(times[i-1].Sub(times[i]))
	}
	return total / float64(len(times)-1), true
}

// Compute returns up to MaxSuggestions items from history that are due at
// now, excluding names already on the list, highest confidence first.
func Compute(now time.Time, history []model.PurchaseRecord, current []model.Item) []Suggestion {
	onList := make(map[string]bool, len(current))
	for _, item := range current {
		onList[store.ItemKey(item.Name)] = true
	}

	var order []string
	groups := make(map[string][]model.PurchaseRecord)
	for _, p := range history {
		key := store.ItemKey(p.ItemName)
		if onList[key] {
			continue
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], p)
	}

	suggestions := []Suggestion{}
	for _, key := range order {
		purchases := groups[key]
		freq, ok := Frequency(purchases)
		if !ok || freq == 0 {
			continue
		}
		latest := slices.MaxFunc(purchases, func(a, b model.PurchaseRecord) int {
			return a.PurchasedAt.Compare(b.PurchasedAt)
		})
		since := days(now.Sub(latest.PurchasedAt))
		if since < freq*DueRatio {
			continue
		}

		confidence := min(MaxConfidence, round(since/freq*100))
		roundedFreq := round(freq)
		roundedSince := round(since)
		suggestions = append(suggestions, Suggestion{
			ItemName:              capitalize(key),
			Category:              latest.Category,
			Frequency:             roundedFreq,
			DaysSinceLastPurchase: roundedSince,
			Confidence:            confidence,
			Message: fmt.Sprintf("You usually buy this every %d days. Last purchased %d days ago.",
				roundedFreq, roundedSince),
		})
	}

	slices.SortStableFunc(suggestions, func(a, b Suggestion) int {
		return cmp.Compare(b.Confidence, a.Confidence)
	})
	if len(suggestions) > MaxSuggestions {
		suggestions = suggestions[:MaxSuggestions]
	}
	return suggestions
}

// Estimator reads history and the current list from the store.
type Estimator struct {
	history store.HistoryStore
	items   store.ItemStore
	now     func() time.Time
}

func NewEstimator(history store.HistoryStore, items store.ItemStore, now func() time.Time) *Estimator {
	if now == nil {
		now = time.Now
	}
	return &Estimator{history: history, items: items, now: now}
}

func (e *Estimator) Suggest(ctx context.Context, householdID int64) ([]Suggestion, error) {
	history, err := e.history.ListHistory(ctx, householdID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	items, err := e.items.ListItems(ctx, householdID)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	return Compute(e.now(), history, items), nil
}

// Frequency returns the purchase interval for one item name in days.
func (e *Estimator) Frequency(ctx context.Context, householdID int64, itemName string) (float64, bool, error) {
	purchases, err := e.history.ListHistoryByItemName(ctx, householdID, itemName)
	if err != nil {
		return 0, false, fmt.Errorf("load history: %w", err)
	}
	freq, ok := Frequency(purchases)
	return freq, ok, nil
}

func days(d time.Duration) float64 {
	return float64(d) / float64(day)
}

// round rounds half up.
func round(x float64) int {
	return int(math.Floor(x + 0.5))
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
