package domain

import (
	"errors"
	"time"
)

var (
	// ErrInvalidAmount indicates invalid amount.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrNegativeAmount indicates non-positive amount.
	ErrNegativeAmount = errors.New("amount must be positive")
	// ErrInsufficientBalance indicates that the account does not have sufficient balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInvalidOwner indicates that the user is unauthorized to move money from the account.
	ErrInvalidOwner = errors.New("unauthorized owner")
	// ErrSelfTransfer indicates a transfer where sender and receiver are the same account.
	ErrSelfTransfer = errors.New("sender and receiver accounts must differ")
	// ErrTransactionNotFound indicates that the transaction is not found.
	ErrTransactionNotFound = errors.New("transaction not found")
)

// TransactionCompleted is the only status this core produces.
// Transactions are recorded after balances have settled, never before.
const TransactionCompleted = "completed"

// Transaction holds one settled balance movement between two accounts.
// Top-ups are recorded as self movements (SenderID == ReceiverID).
type Transaction struct {
	ID         int64     `json:"id"`
	SenderID   int32     `json:"sender_id"`
	ReceiverID int32     `json:"receiver_id"`
	Amount     string    `json:"amount"` // must be positive
	Note       string    `json:"note,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// CreateTransferParams is the input data for the transfer transaction.
type CreateTransferParams struct {
	SenderID   int32  `json:"sender_id"`
	ReceiverID int32  `json:"receiver_id"`
	Amount     string `json:"amount"`
	Note       string `json:"note"`
}

// ListTransactionsParams is the input data to list an account's transactions.
type ListTransactionsParams struct {
	AccountID int32 `json:"account_id"`
	Limit     int32 `json:"limit"`
	Offset    int32 `json:"offset"`
}

// TransferTxResult is the result of the transfer transaction.
type TransferTxResult struct {
	Transaction     Transaction `json:"transaction"`
	SenderAccount   Account     `json:"sender_account"`
	ReceiverAccount Account     `json:"receiver_account"`
	SenderEntry     Entry       `json:"sender_entry"`
	ReceiverEntry   Entry       `json:"receiver_entry"`
}
