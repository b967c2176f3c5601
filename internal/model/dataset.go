package model

import "time"

// Dataset represents an uploaded CSV file.
//
// The raw bytes are stored alongside the metadata so an analysis can re-parse
// the exact upload at any time — the parsed form is always derived, never
// persisted. Content is excluded from JSON: listings and previews go through
// dedicated endpoints, and a multi-megabyte blob has no business in a list
// response.
type Dataset struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId,omitempty"`
	Name      string    `json:"name"` // original filename, e.g. "sales.csv"
	Content   []byte    `json:"-"`
	Rows      int       `json:"rows"`
	Cols      int       `json:"cols"`
	CreatedAt time.Time `json:"createdAt"`
}
