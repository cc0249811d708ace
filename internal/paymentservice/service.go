// Package paymentservice reconciles external payments into the ledger.
//
// An external payment travels through three externally-triggered phases:
// approve and complete only acknowledge the payment to the provider and may
// be retried freely; credit is the single phase that touches the ledger.
// Credit is fail-closed (it trusts only the provider's authoritative record)
// and idempotent (the payments unique key makes crediting at-most-once), so
// provider-side retries after timeouts are always safe.
package paymentservice

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/go-vlad/walletpay/internal/domain"
	"github.com/go-vlad/walletpay/internal/paygate"
	"github.com/go-vlad/walletpay/pkg/configpkg"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// amountEpsilon bounds the acceptable difference between the requested
// credit amount and the float amount on the provider record.
const amountEpsilon = 1e-7

const topUpNote = "top-up"

// Gateway provides the provider API surface needed by the payment service.
//
//go:generate mockgen -source service.go -destination service_mock.go -package paymentservice
type Gateway interface {
	Approve(ctx context.Context, paymentID, userToken string) error
	Complete(ctx context.Context, paymentID, txid, userToken string) error
	Payment(ctx context.Context, paymentID, userToken string) (paygate.Payment, error)
}

// AccountRepo provides the wallet operations needed by the payment service.
type AccountRepo interface {
	GetByOwner(ctx context.Context, owner string) (domain.Account, error)
	AddBalance(ctx context.Context, amount string, id int32) (domain.Account, error)
}

// PaymentRepo provides the idempotency ledger operations.
type PaymentRepo interface {
	Create(ctx context.Context, arg domain.CreatePaymentParams) (domain.PaymentRecord, error)
	Delete(ctx context.Context, paymentID string) error
}

// TransactionRepo records the settled top-up movement.
type TransactionRepo interface {
	TopUpTx(ctx context.Context, accountID int32, amount, note string) (domain.Transaction, error)
}

// Service facilitates payment reconciliation logic.
type Service struct {
	gateway       Gateway
	accountRepo   AccountRepo
	paymentRepo   PaymentRepo
	txRepo        TransactionRepo
	fetchAttempts int
	fetchDelay    time.Duration
}

// New returns payment service struct to manage payment reconciliation.
func New(gw Gateway, ar AccountRepo, pr PaymentRepo, tr TransactionRepo, config configpkg.Config) *Service {
	attempts := config.StatusFetchAttempts
	if attempts <= 0 {
		attempts = 3
	}

	delay := config.StatusFetchDelay
	if delay <= 0 {
		delay = time.Second
	}

	return &Service{
		gateway:       gw,
		accountRepo:   ar,
		paymentRepo:   pr,
		txRepo:        tr,
		fetchAttempts: attempts,
		fetchDelay:    delay,
	}
}

// Approve acknowledges the payment to the provider. It has no ledger effect
// and is safe to call more than once.
func (s *Service) Approve(ctx context.Context, username, paymentID, userToken string) error {
	if paymentID == "" {
		return domain.ErrMissingPaymentID
	}

	if _, err := s.accountRepo.GetByOwner(ctx, username); err != nil {
		return err
	}

	return s.gateway.Approve(ctx, paymentID, userToken)
}

// Complete acknowledges the signed payment to the provider. It has no ledger
// effect and is safe to call more than once; credit independently re-verifies
// completeness before any money moves.
func (s *Service) Complete(ctx context.Context, username, paymentID, txid, userToken string) error {
	if paymentID == "" {
		return domain.ErrMissingPaymentID
	}

	if _, err := s.accountRepo.GetByOwner(ctx, username); err != nil {
		return err
	}

	return s.gateway.Complete(ctx, paymentID, txid, userToken)
}

// Credit settles a finished external payment into the caller's wallet
// exactly once.
//
// The call verifies the payment against the provider's authoritative record,
// inserts the idempotency row, and only then credits the balance and records
// the self transaction. A payment_id that is already present short-circuits
// into an AlreadyCredited success with no further mutation.
func (s *Service) Credit(ctx context.Context, username string, arg domain.CreditParams) (domain.CreditResult, error) {
	l := zerolog.Ctx(ctx)

	var result domain.CreditResult

	if arg.PaymentID == "" {
		return result, domain.ErrMissingPaymentID
	}

	amount, err := decimal.NewFromString(arg.Amount)
	if err != nil {
		l.Info().Err(err).Send()
		return result, domain.ErrInvalidAmount
	}

	if amount.LessThanOrEqual(decimal.Zero) {
		return result, domain.ErrNegativeAmount
	}

	// Storage and the compensating debit both work off this string, so it
	// must be the canonical form, not the caller's spelling.
	arg.Amount = amount.String()

	account, err := s.accountRepo.GetByOwner(ctx, username)
	if err != nil {
		return result, err
	}

	// Non-authoritative hint: the client may have missed the complete phase.
	// The verified status fetch below decides the outcome on its own.
	if err := s.gateway.Complete(ctx, arg.PaymentID, arg.TxID, arg.UserToken); err != nil {
		l.Info().Err(err).Str("payment_id", arg.PaymentID).Msg("best-effort complete failed")
	}

	payment, err := s.fetchCompletePayment(ctx, arg)
	if err != nil {
		return result, err
	}

	if err := validatePayment(payment, account, amount, arg.TxID); err != nil {
		l.Info().
			Err(err).
			Str("payment_id", arg.PaymentID).
			Str("amount", arg.Amount).
			Msg("payment failed verification")

		return result, err
	}

	txid := arg.TxID
	if txid == "" && payment.Transaction != nil {
		txid = payment.Transaction.TxID
	}

	// The idempotency boundary. Once this insert commits the payment is
	// spoken for; a duplicate key means another call already credited it.
	_, err = s.paymentRepo.Create(ctx, domain.CreatePaymentParams{
		PaymentID:    arg.PaymentID,
		AccountID:    account.ID,
		Amount:       arg.Amount,
		ExternalTxID: txid,
	})
	if err != nil {
		if errors.Is(err, domain.ErrPaymentAlreadyCredited) {
			result.AlreadyCredited = true
			result.Account = account

			return result, nil
		}

		return result, err
	}

	creditedAccount, err := s.accountRepo.AddBalance(ctx, arg.Amount, account.ID)
	if err != nil {
		// No money moved; release the payment_id for a later retry.
		if delErr := s.paymentRepo.Delete(ctx, arg.PaymentID); delErr != nil {
			l.Error().
				Err(delErr).
				Str("payment_id", arg.PaymentID).
				Msg("failed to release payment record after credit failure")

			return result, domain.ErrLedgerInconsistent
		}

		return result, err
	}

	txn, err := s.txRepo.TopUpTx(ctx, account.ID, arg.Amount, topUpNote)
	if err != nil {
		return result, s.compensate(ctx, account.ID, amount, arg, err)
	}

	result.Transaction = txn
	result.Account = creditedAccount

	return result, nil
}

// fetchCompletePayment fetches the authoritative payment record, retrying a
// bounded number of times until the provider reports the payment complete.
// A cancelled payment stops retrying early; validation turns it into a
// terminal error.
func (s *Service) fetchCompletePayment(ctx context.Context, arg domain.CreditParams) (paygate.Payment, error) {
	l := zerolog.Ctx(ctx)

	var (
		payment paygate.Payment
		err     error
	)

	for attempt := 1; attempt <= s.fetchAttempts; attempt++ {
		payment, err = s.gateway.Payment(ctx, arg.PaymentID, arg.UserToken)
		if err == nil && (payment.Complete() || payment.Status.Cancelled || payment.Status.UserCancelled) {
			return payment, nil
		}

		if attempt == s.fetchAttempts {
			break
		}

		l.Info().
			Int("attempt", attempt).
			Str("payment_id", arg.PaymentID).
			Msg("payment not complete yet, retrying status fetch")

		select {
		case <-ctx.Done():
			return payment, ctx.Err()
		case <-time.After(s.fetchDelay):
		}
	}

	if err != nil {
		return payment, err
	}

	return payment, domain.ErrPaymentIncomplete
}

// validatePayment runs every fail-closed check against the authoritative
// provider record. Any failure is terminal for the payment and must never
// turn into a credit under retries.
func validatePayment(payment paygate.Payment, account domain.Account, amount decimal.Decimal, txid string) error {
	if payment.Direction != paygate.DirectionUserToApp {
		return domain.ErrWrongDirection
	}

	if payment.Status.Cancelled || payment.Status.UserCancelled {
		return domain.ErrPaymentCancelled
	}

	if !payment.Complete() {
		return domain.ErrPaymentIncomplete
	}

	requested, _ := amount.Float64()
	if math.Abs(payment.Amount-requested) > amountEpsilon {
		return domain.ErrAmountMismatch
	}

	if txid != "" && payment.Transaction != nil && payment.Transaction.TxID != txid {
		return domain.ErrTxIDMismatch
	}

	if account.ExternalUID != "" && payment.UserUID != account.ExternalUID {
		return domain.ErrIdentityMismatch
	}

	return nil
}

// compensate reverses a half-applied credit: the balance was updated but the
// transaction record failed. True atomicity is not available here because the
// credit spans an external verification round-trip, so the reversal is an
// explicit debit plus record delete. A failed reversal is escalated for
// operator follow-up.
func (s *Service) compensate(ctx context.Context, accountID int32, amount decimal.Decimal, arg domain.CreditParams, cause error) error {
	l := zerolog.Ctx(ctx)

	l.Error().
		Err(cause).
		Str("payment_id", arg.PaymentID).
		Int32("account_id", accountID).
		Str("amount", arg.Amount).
		Msg("transaction record failed after balance credit, compensating")

	if _, err := s.accountRepo.AddBalance(ctx, amount.Neg().String(), accountID); err != nil {
		l.Error().
			Err(err).
			Str("payment_id", arg.PaymentID).
			Int32("account_id", accountID).
			Str("amount", arg.Amount).
			Msg("COMPENSATION FAILED: balance credit not reversed, manual intervention required")

		return domain.ErrLedgerInconsistent
	}

	if err := s.paymentRepo.Delete(ctx, arg.PaymentID); err != nil {
		l.Error().
			Err(err).
			Str("payment_id", arg.PaymentID).
			Int32("account_id", accountID).
			Msg("COMPENSATION FAILED: payment record not deleted, manual intervention required")

		return domain.ErrLedgerInconsistent
	}

	return domain.ErrLedgerInconsistent
}
