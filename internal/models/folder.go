package models

import "time"

// Folder groups templates within an account. Names are unique per account.
type Folder struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	AuthorID  string    `json:"author_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
