// Package paymentrepo manages repository layer of external payment records.
package paymentrepo

import (
	"context"
	"database/sql"

	"github.com/go-vlad/walletpay/internal/domain"
	"github.com/go-vlad/walletpay/pkg/dbpkg"
	"github.com/go-vlad/walletpay/pkg/errorspkg"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

// RepoPGS facilitates payment record repository layer logic.
//
// The payments table is the idempotency ledger: the unique payment_id
// constraint is what makes crediting at-most-once, even for concurrent or
// replayed credit calls. It must stay a storage-layer constraint.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns payment RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{db: db}
}

const createQuery = `
INSERT INTO
    payments (payment_id, account_id, amount, external_txid, status)
VALUES
    ($1, $2, $3, $4, $5)
RETURNING id, payment_id, account_id, amount, external_txid, status, created_at
`

// Create inserts the idempotency record for the payment. A duplicate
// payment_id returns ErrPaymentAlreadyCredited and writes nothing.
func (r *RepoPGS) Create(ctx context.Context, arg domain.CreatePaymentParams) (domain.PaymentRecord, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, createQuery,
		arg.PaymentID,
		arg.AccountID,
		arg.Amount,
		newNullString(arg.ExternalTxID),
		domain.PaymentCredited,
	)

	p, err := scanPayment(row)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code.Name() == "unique_violation" && pqErr.Constraint == "payments_payment_id_key" {
				return p, domain.ErrPaymentAlreadyCredited
			}
		}

		l.Error().Err(err).Msgf("Create(ctx, %+v)", arg)

		return p, errorspkg.ErrInternal
	}

	return p, nil
}

const deleteQuery = `
DELETE FROM payments
WHERE payment_id = $1
`

// Delete removes the record for the given payment_id. It exists solely for
// the compensating rollback of a half-applied credit; no other code path
// deletes payment records.
func (r *RepoPGS) Delete(ctx context.Context, paymentID string) error {
	l := zerolog.Ctx(ctx)

	if _, err := r.db.ExecContext(ctx, deleteQuery, paymentID); err != nil {
		l.Error().Err(err).Str("payment_id", paymentID).Send()
		return errorspkg.ErrInternal
	}

	return nil
}

const getQuery = `
SELECT
	id, payment_id, account_id, amount, external_txid, status, created_at
FROM payments
WHERE payment_id = $1
`

// Get returns the record for the given payment_id.
func (r *RepoPGS) Get(ctx context.Context, paymentID string) (domain.PaymentRecord, error) {
	l := zerolog.Ctx(ctx)

	p, err := scanPayment(r.db.QueryRowContext(ctx, getQuery, paymentID))
	if err != nil {
		l.Error().Err(err).Send()

		if err == sql.ErrNoRows {
			return p, domain.ErrPaymentNotFound
		}

		return p, errorspkg.ErrInternal
	}

	return p, nil
}

func scanPayment(row *sql.Row) (domain.PaymentRecord, error) {
	var (
		p    domain.PaymentRecord
		txid sql.NullString
	)

	err := row.Scan(
		&p.ID,
		&p.PaymentID,
		&p.AccountID,
		&p.Amount,
		&txid,
		&p.Status,
		&p.CreatedAt,
	)
	p.ExternalTxID = txid.String

	return p, err
}

func newNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
