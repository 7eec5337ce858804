package model

import "time"

// Item is one inventory row: a quantity-tracked stock line.
type Item struct {
	Row      int              `json:"row"`
	ID       string           `json:"id,omitempty"`
	Name     string           `json:"name"`
	Quantity int              `json:"quantity"`
	History  []MutationRecord `json:"history,omitempty"`
}

// MutationRecord is one entry of an item's rotating history.
type MutationRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Delta     int       `json:"delta"`
	Actor     string    `json:"actor"`
	Text      string    `json:"text"`
}

// Item fields addressable by single-cell edits.
const (
	ItemFieldID       = "id"
	ItemFieldName     = "name"
	ItemFieldQuantity = "quantity"
	ItemFieldHistory  = "history"
)
