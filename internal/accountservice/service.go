// Package accountservice manages business logic layer of accounts.
package accountservice

import (
	"context"

	"github.com/go-vlad/walletpay/internal/domain"
)

// Repo provides data access layer interface needed by account service layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package accountservice
type Repo interface {
	Get(ctx context.Context, id int32) (domain.Account, error)
	GetByOwner(ctx context.Context, owner string) (domain.Account, error)
	LinkExternalUID(ctx context.Context, uid string, id int32) (domain.Account, error)
}

// Service facilitates account service layer logic.
type Service struct {
	repo Repo
}

// New returns account service struct to manage account business logic.
func New(ar Repo) *Service {
	return &Service{
		repo: ar,
	}
}

// Get returns the account with the given id.
func (s *Service) Get(ctx context.Context, id int32) (domain.Account, error) {
	return s.repo.Get(ctx, id)
}

// GetByOwner returns the wallet account of the given owner.
func (s *Service) GetByOwner(ctx context.Context, owner string) (domain.Account, error) {
	return s.repo.GetByOwner(ctx, owner)
}

// LinkExternalUID links the external network identity to the owner's account.
func (s *Service) LinkExternalUID(ctx context.Context, owner, uid string) (domain.Account, error) {
	account, err := s.repo.GetByOwner(ctx, owner)
	if err != nil {
		return domain.Account{}, err
	}

	if account.ExternalUID == uid {
		return account, nil
	}

	return s.repo.LinkExternalUID(ctx, uid, account.ID)
}
