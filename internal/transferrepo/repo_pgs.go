// Package transferrepo manages repository layer of transactions.
package transferrepo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-vlad/walletpay/internal/accountrepo"
	"github.com/go-vlad/walletpay/internal/domain"
	"github.com/go-vlad/walletpay/internal/entryrepo"
	"github.com/go-vlad/walletpay/pkg/dbpkg"
	"github.com/go-vlad/walletpay/pkg/errorspkg"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// RepoPGS facilitates transaction repository layer logic.
type RepoPGS struct {
	db   dbpkg.SQLInterface
	conn *sql.DB
}

// NewTxRepoPGS returns transaction RepoPGS bound to an ongoing transaction.
func NewTxRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{
		db: db,
	}
}

// NewRepoPGS returns transaction RepoPGS with a connection to start transactions.
func NewRepoPGS(db *sql.DB) *RepoPGS {
	return &RepoPGS{
		db:   db,
		conn: db,
	}
}

const createQuery = `
INSERT INTO
    transactions (sender_id, receiver_id, amount, note, status)
VALUES
    ($1, $2, $3, $4, $5)
RETURNING id, sender_id, receiver_id, amount, note, status, created_at
`

// Create creates the transaction record and then returns it.
func (r *RepoPGS) Create(ctx context.Context, arg domain.CreateTransferParams) (domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, createQuery,
		arg.SenderID,
		arg.ReceiverID,
		arg.Amount,
		arg.Note,
		domain.TransactionCompleted,
	)

	var t domain.Transaction
	err := row.Scan(
		&t.ID,
		&t.SenderID,
		&t.ReceiverID,
		&t.Amount,
		&t.Note,
		&t.Status,
		&t.CreatedAt,
	)

	if err != nil {
		l.Error().Err(err).Msgf("Create(ctx, %+v)", arg)

		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Constraint {
			case "transactions_sender_id_fkey", "transactions_receiver_id_fkey":
				return t, domain.ErrAccountNotFound
			case "transactions_amount_check":
				return t, domain.ErrInvalidAmount
			}
		}

		return t, errorspkg.ErrInternal
	}

	return t, nil
}

const getQuery = `
SELECT
	id, sender_id, receiver_id, amount, note, status, created_at
FROM transactions
WHERE id = $1
`

// Get returns the transaction with the given id.
func (r *RepoPGS) Get(ctx context.Context, id int64) (domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, getQuery, id)

	var t domain.Transaction

	err := row.Scan(
		&t.ID,
		&t.SenderID,
		&t.ReceiverID,
		&t.Amount,
		&t.Note,
		&t.Status,
		&t.CreatedAt,
	)

	if err != nil {
		l.Error().Err(err).Send()

		if err == sql.ErrNoRows {
			return t, domain.ErrTransactionNotFound
		}

		return t, errorspkg.ErrInternal
	}

	return t, nil
}

const listQuery = `
SELECT
	id, sender_id, receiver_id, amount, note, status, created_at
FROM transactions
WHERE
    sender_id = $1 OR receiver_id = $1
ORDER BY id DESC
LIMIT $2 OFFSET $3
`

// List returns the account's transactions, newest first. Top-ups appear in
// the same stream as transfers since they are self transactions.
func (r *RepoPGS) List(ctx context.Context, arg domain.ListTransactionsParams) ([]domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, listQuery,
		arg.AccountID,
		arg.Limit,
		arg.Offset,
	)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}
	defer rows.Close()

	items := []domain.Transaction{}

	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(
			&t.ID,
			&t.SenderID,
			&t.ReceiverID,
			&t.Amount,
			&t.Note,
			&t.Status,
			&t.CreatedAt,
		); err != nil {
			l.Error().Err(err).Send()
			return nil, errorspkg.ErrInternal
		}

		items = append(items, t)
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	return items, nil
}

// TransferTx moves money between two accounts.
//
// It updates both balances, adds the audit entries and creates the
// transaction record within a single database transaction, so concurrent
// readers observe either the full pre-operation or full post-operation state.
func (r *RepoPGS) TransferTx(ctx context.Context, arg domain.CreateTransferParams) (domain.TransferTxResult, error) {
	l := zerolog.Ctx(ctx)

	var result domain.TransferTxResult

	amount, err := decimal.NewFromString(arg.Amount)
	if err != nil {
		l.Error().Err(err).Send()
		return result, domain.ErrInvalidAmount
	}

	// The debit is composed from the parsed amount, not the caller's string:
	// a spelling like "+40" would otherwise turn the debit into "-+40".
	credit, debit := amount.String(), amount.Neg().String()
	arg.Amount = credit

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		l.Error().Err(err).Send()
		return result, errorspkg.ErrInternal
	}

	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			l.Error().Err(err).Send()
		}
	}()

	entryRepo := entryrepo.NewRepoPGS(tx)
	accountRepo := accountrepo.NewRepoPGS(tx)
	txRepo := NewTxRepoPGS(tx)

	var senderAccount, receiverAccount domain.Account
	// To avoid deadlocks acquire the row locks in consistent id order.
	if arg.SenderID < arg.ReceiverID {
		senderAccount, err = accountRepo.AddBalance(ctx, debit, arg.SenderID)
		if err == nil {
			receiverAccount, err = accountRepo.AddBalance(ctx, credit, arg.ReceiverID)
		}
	} else {
		receiverAccount, err = accountRepo.AddBalance(ctx, credit, arg.ReceiverID)
		if err == nil {
			senderAccount, err = accountRepo.AddBalance(ctx, debit, arg.SenderID)
		}
	}

	if err != nil {
		l.Error().Err(err).Send()
		return result, passDomainErr(err)
	}

	result.SenderAccount, result.ReceiverAccount = senderAccount, receiverAccount

	result.SenderEntry, err = entryRepo.Create(ctx, debit, arg.SenderID)
	if err != nil {
		l.Error().Err(err).Send()
		return result, errorspkg.ErrInternal
	}

	result.ReceiverEntry, err = entryRepo.Create(ctx, credit, arg.ReceiverID)
	if err != nil {
		l.Error().Err(err).Send()
		return result, errorspkg.ErrInternal
	}

	result.Transaction, err = txRepo.Create(ctx, arg)
	if err != nil {
		l.Error().Err(err).Send()
		return result, passDomainErr(err)
	}

	if err := tx.Commit(); err != nil {
		l.Error().Err(err).Send()
		return result, errorspkg.ErrInternal
	}

	return result, nil
}

// TopUpTx records an already verified external top-up: it creates the self
// transaction and the audit entry in one database transaction. The balance
// credit itself happens before this call; on failure the caller runs the
// compensating rollback.
func (r *RepoPGS) TopUpTx(ctx context.Context, accountID int32, amount, note string) (domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	var txn domain.Transaction

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		l.Error().Err(err).Send()
		return txn, errorspkg.ErrInternal
	}

	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			l.Error().Err(err).Send()
		}
	}()

	txRepo := NewTxRepoPGS(tx)
	entryRepo := entryrepo.NewRepoPGS(tx)

	txn, err = txRepo.Create(ctx, domain.CreateTransferParams{
		SenderID:   accountID,
		ReceiverID: accountID,
		Amount:     amount,
		Note:       note,
	})
	if err != nil {
		l.Error().Err(err).Send()
		return txn, passDomainErr(err)
	}

	if _, err = entryRepo.Create(ctx, amount, accountID); err != nil {
		l.Error().Err(err).Send()
		return txn, errorspkg.ErrInternal
	}

	if err := tx.Commit(); err != nil {
		l.Error().Err(err).Send()
		return txn, errorspkg.ErrInternal
	}

	return txn, nil
}

// passDomainErr keeps domain sentinels intact so callers can act on them
// and hides everything else behind ErrInternal.
func passDomainErr(err error) error {
	switch {
	case errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrInvalidAmount):
		return err
	}

	return errorspkg.ErrInternal
}
