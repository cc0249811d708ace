// Package userrepo manages repository layer of users.
package userrepo

import (
	"context"
	"database/sql"

	"github.com/go-vlad/walletpay/internal/accountrepo"
	"github.com/go-vlad/walletpay/internal/domain"
	"github.com/go-vlad/walletpay/pkg/dbpkg"
	"github.com/go-vlad/walletpay/pkg/errorspkg"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

// RepoPGS facilitates user repository layer logic.
type RepoPGS struct {
	db   dbpkg.SQLInterface
	conn *sql.DB
}

// NewTxRepoPGS returns user RepoPGS bound to an ongoing transaction.
func NewTxRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{
		db: db,
	}
}

// NewRepoPGS returns user RepoPGS with a connection to start transactions.
func NewRepoPGS(db *sql.DB) *RepoPGS {
	return &RepoPGS{
		db:   db,
		conn: db,
	}
}

const createQuery = `
INSERT INTO users (
    username,
    hashed_password,
    email
) VALUES (
    $1, $2, $3
) RETURNING username, hashed_password, email, created_at
`

// Create creates the user and then returns it.
func (r *RepoPGS) Create(ctx context.Context, arg domain.CreateUserParams) (domain.User, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, createQuery,
		arg.Username,
		arg.HashedPassword,
		arg.Email,
	)

	var u domain.User

	err := row.Scan(
		&u.Username,
		&u.HashedPassword,
		&u.Email,
		&u.CreatedAt,
	)

	if err != nil {
		l.Error().Err(err).Send()

		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code.Name() == "unique_violation" {
				switch pqErr.Constraint {
				case "users_pkey":
					return u, domain.ErrUsernameAlreadyExists
				case "users_email_key":
					return u, domain.ErrEmailAlreadyExists
				}
			}
		}

		return u, errorspkg.ErrInternal
	}

	return u, nil
}

// CreateTx creates the user together with their zero-balance wallet account
// in a single database transaction. Either both rows exist afterwards or
// neither does, so a user can never end up without a wallet.
func (r *RepoPGS) CreateTx(ctx context.Context, arg domain.CreateUserParams) (domain.User, domain.Account, error) {
	l := zerolog.Ctx(ctx)

	var (
		u domain.User
		a domain.Account
	)

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		l.Error().Err(err).Send()
		return u, a, errorspkg.ErrInternal
	}

	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			l.Error().Err(err).Send()
		}
	}()

	userRepo := NewTxRepoPGS(tx)
	accountRepo := accountrepo.NewRepoPGS(tx)

	u, err = userRepo.Create(ctx, arg)
	if err != nil {
		return u, a, err
	}

	a, err = accountRepo.Create(ctx, u.Username, "0")
	if err != nil {
		return u, a, err
	}

	if err := tx.Commit(); err != nil {
		l.Error().Err(err).Send()
		return u, a, errorspkg.ErrInternal
	}

	return u, a, nil
}

const getQuery = `
SELECT
	username,
	hashed_password,
	email,
	created_at
FROM users
WHERE username = $1
`

// Get returns the user with the given username.
func (r *RepoPGS) Get(ctx context.Context, username string) (domain.User, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, getQuery, username)

	var u domain.User

	err := row.Scan(
		&u.Username,
		&u.HashedPassword,
		&u.Email,
		&u.CreatedAt,
	)

	if err != nil {
		l.Error().Err(err).Send()

		if err == sql.ErrNoRows {
			return u, domain.ErrUserNotFound
		}

		return u, errorspkg.ErrInternal
	}

	return u, nil
}
