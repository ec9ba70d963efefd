package models

import (
	"strings"
	"time"
)

// Category groups entries by theme
type Category struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// CategorySummary is a category with the number of entries filed under it
type CategorySummary struct {
	Category
	EntryCount int `json:"entry_count" db:"entry_count"`
}

// CategoryID derives the id of a category from its name: "Food & Drink"
// becomes "food-&-drink". Names differing only in case or spacing share an id.
func CategoryID(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}
