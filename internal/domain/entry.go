package domain

import "time"

// Entry holds an immutable audit record of a single balance change.
type Entry struct {
	ID        int64     `json:"id"`
	AccountID int32     `json:"account_id"`
	Amount    string    `json:"amount"` // can be negative or positive
	CreatedAt time.Time `json:"created_at"`
}
