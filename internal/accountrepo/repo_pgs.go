// Package accountrepo manages repository layer of accounts.
package accountrepo

import (
	"context"
	"database/sql"

	"github.com/go-vlad/walletpay/internal/domain"
	"github.com/go-vlad/walletpay/pkg/dbpkg"
	"github.com/go-vlad/walletpay/pkg/errorspkg"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

// RepoPGS facilitates account repository layer logic.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns account RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{
		db: db,
	}
}

func scanAccount(row *sql.Row) (domain.Account, error) {
	var (
		a           domain.Account
		externalUID sql.NullString
	)

	err := row.Scan(
		&a.ID,
		&a.Owner,
		&a.Balance,
		&externalUID,
		&a.UpdatedAt,
		&a.CreatedAt,
	)
	a.ExternalUID = externalUID.String

	return a, err
}

const addBalanceQuery = `
UPDATE accounts
SET balance = balance + $1,
    updated_at = now()
WHERE id = $2
RETURNING id, owner, balance, external_uid, updated_at, created_at
`

// AddBalance atomically changes the account's balance and returns the changed
// account. The amount may be negative; the accounts_balance_check constraint
// rejects any update that would leave the balance negative.
func (r *RepoPGS) AddBalance(ctx context.Context, amount string, id int32) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	a, err := scanAccount(r.db.QueryRowContext(ctx, addBalanceQuery, amount, id))
	if err != nil {
		l.Error().Err(err).Send()

		if err == sql.ErrNoRows {
			return a, domain.ErrAccountNotFound
		}

		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Constraint == "accounts_balance_check" {
				return a, domain.ErrInsufficientBalance
			}
		}

		return a, errorspkg.ErrInternal
	}

	return a, nil
}

const createQuery = `
INSERT INTO
    accounts (owner, balance)
VALUES
    ($1, $2)
RETURNING id, owner, balance, external_uid, updated_at, created_at
`

// Create creates the single wallet account for the owner and then returns it.
func (r *RepoPGS) Create(ctx context.Context, owner, balance string) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	a, err := scanAccount(r.db.QueryRowContext(ctx, createQuery, owner, balance))
	if err != nil {
		l.Error().Err(err).Send()

		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Constraint {
			case "accounts_owner_fkey":
				return a, domain.ErrOwnerNotFound
			case "accounts_owner_key":
				return a, domain.ErrAccountAlreadyExists
			}
		}

		return a, errorspkg.ErrInternal
	}

	return a, nil
}

const getQuery = `
SELECT
	id, owner, balance, external_uid, updated_at, created_at
FROM accounts
WHERE id = $1
`

// Get returns the account with the given id.
func (r *RepoPGS) Get(ctx context.Context, id int32) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	a, err := scanAccount(r.db.QueryRowContext(ctx, getQuery, id))
	if err != nil {
		l.Error().Err(err).Send()

		if err == sql.ErrNoRows {
			return a, domain.ErrAccountNotFound
		}

		return a, errorspkg.ErrInternal
	}

	return a, nil
}

const getByOwnerQuery = `
SELECT
	id, owner, balance, external_uid, updated_at, created_at
FROM accounts
WHERE owner = $1
`

// GetByOwner returns the wallet account of the given owner.
func (r *RepoPGS) GetByOwner(ctx context.Context, owner string) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	a, err := scanAccount(r.db.QueryRowContext(ctx, getByOwnerQuery, owner))
	if err != nil {
		l.Error().Err(err).Send()

		if err == sql.ErrNoRows {
			return a, domain.ErrAccountNotFound
		}

		return a, errorspkg.ErrInternal
	}

	return a, nil
}

const linkExternalUIDQuery = `
UPDATE accounts
SET external_uid = $1,
    updated_at = now()
WHERE id = $2 AND external_uid IS NULL
RETURNING id, owner, balance, external_uid, updated_at, created_at
`

// LinkExternalUID links the external payment network identity to the account.
// The link is one-time; relinking is rejected.
func (r *RepoPGS) LinkExternalUID(ctx context.Context, uid string, id int32) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	a, err := scanAccount(r.db.QueryRowContext(ctx, linkExternalUIDQuery, uid, id))
	if err != nil {
		l.Error().Err(err).Send()

		if err == sql.ErrNoRows {
			return a, domain.ErrExternalUIDAlreadyLinked
		}

		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Constraint == "accounts_external_uid_key" {
				return a, domain.ErrExternalUIDTaken
			}
		}

		return a, errorspkg.ErrInternal
	}

	return a, nil
}
