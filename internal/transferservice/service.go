// Package transferservice manages business logic layer of transfers.
package transferservice

import (
	"context"

	"github.com/go-vlad/walletpay/internal/accountdelivery"
	"github.com/go-vlad/walletpay/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Repo provides data access layer interface needed by transfer service layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package transferservice
type Repo interface {
	TransferTx(ctx context.Context, arg domain.CreateTransferParams) (domain.TransferTxResult, error)
	List(ctx context.Context, arg domain.ListTransactionsParams) ([]domain.Transaction, error)
}

// Service facilitates transfer service layer logic.
type Service struct {
	repo           Repo
	accountService accountdelivery.Service
}

// New returns transfer service struct to manage transfer business logic.
func New(tr Repo, as accountdelivery.Service) *Service {
	return &Service{
		repo:           tr,
		accountService: as,
	}
}

func (s *Service) validRequest(ctx context.Context, senderUsername string, arg domain.CreateTransferParams) error {
	l := zerolog.Ctx(ctx)

	amount, err := decimal.NewFromString(arg.Amount)
	if err != nil {
		l.Info().Err(err).Send()
		return domain.ErrInvalidAmount
	}

	if amount.LessThanOrEqual(decimal.Zero) {
		return domain.ErrNegativeAmount
	}

	// Self crediting is only permitted through the top-up reconciler.
	if arg.SenderID == arg.ReceiverID {
		return domain.ErrSelfTransfer
	}

	senderAccount, err := s.accountService.Get(ctx, arg.SenderID)
	if err != nil {
		l.Error().Err(err).Send()
		return err
	}

	if senderAccount.Owner != senderUsername {
		return domain.ErrInvalidOwner
	}

	senderBalance, err := decimal.NewFromString(senderAccount.Balance)
	if err != nil {
		l.Error().Err(err).Send()
		return err
	}

	if senderBalance.LessThan(amount) {
		return domain.ErrInsufficientBalance
	}

	return nil
}

// Transfer checks if the transfer request is valid and then executes the
// transfer as one atomic unit of work. A concurrent debit that drains the
// sender between the check and the unit of work still fails closed: the
// storage layer rejects any negative balance.
func (s *Service) Transfer(ctx context.Context, senderUsername string, arg domain.CreateTransferParams) (domain.TransferTxResult, error) {
	if err := s.validRequest(ctx, senderUsername, arg); err != nil {
		return domain.TransferTxResult{}, err
	}

	return s.repo.TransferTx(ctx, arg)
}

// List returns the caller's transaction history, top-ups included.
func (s *Service) List(ctx context.Context, username string, limit, offset int32) ([]domain.Transaction, error) {
	account, err := s.accountService.GetByOwner(ctx, username)
	if err != nil {
		return nil, err
	}

	return s.repo.List(ctx, domain.ListTransactionsParams{
		AccountID: account.ID,
		Limit:     limit,
		Offset:    offset,
	})
}
