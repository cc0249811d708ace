// Package entryrepo manages repository layer of ledger entries.
package entryrepo

import (
	"context"

	"github.com/go-vlad/walletpay/internal/domain"
	"github.com/go-vlad/walletpay/pkg/dbpkg"
	"github.com/go-vlad/walletpay/pkg/errorspkg"
	"github.com/rs/zerolog"
)

// RepoPGS facilitates entry repository layer logic.
// Entries are the append-only audit trail: one row per balance change,
// written in the same database transaction as the change itself.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns entry RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{db: db}
}

const createQuery = `
INSERT INTO
    entries (account_id, amount)
VALUES
    ($1, $2)
RETURNING id, account_id, amount, created_at
`

// Create creates the entry and then returns it.
func (r *RepoPGS) Create(ctx context.Context, amount string, accountID int32) (domain.Entry, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, createQuery, accountID, amount)

	var e domain.Entry

	err := row.Scan(
		&e.ID,
		&e.AccountID,
		&e.Amount,
		&e.CreatedAt,
	)

	if err != nil {
		l.Error().Err(err).Send()
		return e, errorspkg.ErrInternal
	}

	return e, nil
}

const listQuery = `
SELECT id, account_id, amount, created_at FROM entries
WHERE account_id = $1
ORDER BY id
LIMIT $2 OFFSET $3
`

// List returns the specified number of entries for the given accountID.
func (r *RepoPGS) List(ctx context.Context, accountID, limit, offset int32) ([]domain.Entry, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, listQuery, accountID, limit, offset)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}
	defer rows.Close()

	items := []domain.Entry{}

	for rows.Next() {
		var e domain.Entry
		if err := rows.Scan(
			&e.ID,
			&e.AccountID,
			&e.Amount,
			&e.CreatedAt,
		); err != nil {
			l.Error().Err(err).Send()
			return nil, errorspkg.ErrInternal
		}

		items = append(items, e)
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	return items, nil
}
