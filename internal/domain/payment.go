package domain

import (
	"errors"
	"time"
)

var (
	// ErrMissingPaymentID indicates a payment operation without a payment identifier.
	ErrMissingPaymentID = errors.New("missing payment identifier")
	// ErrPaymentAlreadyCredited indicates that the payment has already been credited.
	// It is not a failure: callers treat it as an idempotent replay.
	ErrPaymentAlreadyCredited = errors.New("payment already credited")
	// ErrPaymentNotFound indicates that there is no record for the payment.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrGatewayUnavailable indicates a failed or non-2xx gateway call. Retryable.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrPaymentIncomplete indicates the provider never reported the payment
	// complete within the retry budget. Retryable.
	ErrPaymentIncomplete = errors.New("payment not complete on provider")
	// ErrWrongDirection indicates the provider record shows money flowing out of the system.
	ErrWrongDirection = errors.New("payment direction mismatch")
	// ErrPaymentCancelled indicates the payment was cancelled on the provider side.
	ErrPaymentCancelled = errors.New("payment cancelled")
	// ErrAmountMismatch indicates the requested amount differs from the provider record.
	ErrAmountMismatch = errors.New("payment amount mismatch")
	// ErrTxIDMismatch indicates the caller's txid differs from the provider record.
	ErrTxIDMismatch = errors.New("payment txid mismatch")
	// ErrIdentityMismatch indicates the payment's external identity does not
	// match the identity linked to the local account.
	ErrIdentityMismatch = errors.New("payment external identity mismatch")
	// ErrLedgerInconsistent indicates a failed credit after the balance was
	// mutated. The compensating rollback has run; operator follow-up is required
	// if it also failed.
	ErrLedgerInconsistent = errors.New("ledger inconsistent")
)

// PaymentCredited is the only status the idempotency ledger records.
const PaymentCredited = "credited"

// PaymentRecord is the idempotency ledger row for one external payment.
// The unique PaymentID is the single source of truth for "already credited".
type PaymentRecord struct {
	ID           int64     `json:"id"`
	PaymentID    string    `json:"payment_id"`
	AccountID    int32     `json:"account_id"`
	Amount       string    `json:"amount"`
	ExternalTxID string    `json:"external_txid,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreatePaymentParams is the input data to record a credited external payment.
type CreatePaymentParams struct {
	PaymentID    string `json:"payment_id"`
	AccountID    int32  `json:"account_id"`
	Amount       string `json:"amount"`
	ExternalTxID string `json:"external_txid"`
}

// CreditParams is the input data for crediting an external payment.
type CreditParams struct {
	PaymentID string `json:"payment_id"`
	Amount    string `json:"amount"`
	TxID      string `json:"txid"`
	UserToken string `json:"user_token"`
}

// CreditResult is the outcome of a credit call. A replayed credit returns
// AlreadyCredited true with no other mutation; callers render it the same
// as first-time success.
type CreditResult struct {
	AlreadyCredited bool        `json:"already_credited"`
	Transaction     Transaction `json:"transaction"`
	Account         Account     `json:"account"`
}
