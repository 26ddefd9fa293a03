// Package grocery holds the shared-list rules: item categorization and the
// item and shopping-session operations built on the store.
package grocery

import "strings"

const DefaultCategory = "Other"

type categoryKeywords struct {
	category string
	keywords []string
}

// categories is checked in order; the first category with a keyword
// contained in the item name wins.
var categories = []categoryKeywords{
	{"Produce", []string{"spinach", "tomatoes", "lettuce", "apples", "bananas", "carrots", "onions", "potatoes"}},
	{"Dairy", []string{"milk", "eggs", "cheese", "yogurt", "butter"}},
	{"Pantry", []string{"coffee", "tea", "rice", "pasta", "bread", "flour", "sugar", "salt"}},
	{"Meat", []string{"chicken", "beef", "fish", "pork", "turkey"}},
	{"Frozen", []string{"ice cream", "frozen vegetables", "frozen fruit"}},
	{"Personal", []string{"shampoo", "soap", "toothpaste", "toilet paper"}},
}

// Categorize returns the category for an item name using case-insensitive
// substring matching. Falls back to "Other".
func Categorize(itemName string) string {
	name := strings.ToLower(strings.TrimSpace(itemName))
	if name == "" {
		return DefaultCategory
	}
	for _, c := range categories {
		for _, kw := range c.keywords {
			if strings.Contains(name, kw) {
				return c.category
			}
		}
	}
	return DefaultCategory
}
