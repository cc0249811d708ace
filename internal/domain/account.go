// Package domain provides definitions of all entities.
package domain

import (
	"errors"
	"time"
)

var (
	// ErrAccountNotFound indicates that the account is not found.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountAlreadyExists indicates that the owner already has an account.
	ErrAccountAlreadyExists = errors.New("account already exists")
	// ErrOwnerNotFound indicates that the owner for the account is not found.
	ErrOwnerNotFound = errors.New("owner not found")
	// ErrExternalUIDAlreadyLinked indicates that the account already has a linked external identity.
	ErrExternalUIDAlreadyLinked = errors.New("external identity already linked")
	// ErrExternalUIDTaken indicates that the external identity is linked to another account.
	ErrExternalUIDTaken = errors.New("external identity linked to another account")
)

// Account holds the single wallet balance of a user.
//
// Balance is kept in the internal unit and is never negative;
// the accounts_balance_check constraint enforces it at the storage layer.
type Account struct {
	ID          int32     `json:"id"`
	Owner       string    `json:"owner"`
	Balance     string    `json:"balance"`
	ExternalUID string    `json:"external_uid,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
	CreatedAt   time.Time `json:"created_at"`
}
