// Package userservice manages business logic layer of users.
package userservice

import (
	"context"

	"github.com/go-vlad/walletpay/internal/domain"
	"github.com/go-vlad/walletpay/pkg/errorspkg"
	"github.com/go-vlad/walletpay/pkg/passpkg"
	"github.com/rs/zerolog"
)

// Repo provides data access layer interface needed by user service layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package userservice
type Repo interface {
	CreateTx(ctx context.Context, arg domain.CreateUserParams) (domain.User, domain.Account, error)
	Get(ctx context.Context, username string) (domain.User, error)
}

// Service facilitates user service layer logic.
type Service struct {
	repo Repo
}

// New returns user service struct to manage user business logic.
func New(ur Repo) *Service {
	return &Service{
		repo: ur,
	}
}

// NewUserWithoutPassword returns user with removed sensitive data.
func NewUserWithoutPassword(u domain.User) domain.UserWithoutPassword {
	return domain.UserWithoutPassword{
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

// Create creates the user together with their wallet account in one unit of
// work. The account starts at zero balance and lives forever.
func (s *Service) Create(ctx context.Context, username, password, email string) (domain.UserWithoutPassword, error) {
	l := zerolog.Ctx(ctx)

	var result domain.UserWithoutPassword

	hashedPassword, err := passpkg.Hash(password)
	if err != nil {
		l.Error().Err(err).Send()
		return result, errorspkg.ErrInternal
	}

	arg := domain.CreateUserParams{
		Username:       username,
		HashedPassword: hashedPassword,
		Email:          email,
	}

	gotUser, _, err := s.repo.CreateTx(ctx, arg)
	if err != nil {
		return result, err
	}

	result = NewUserWithoutPassword(gotUser)

	return result, nil
}

// CheckPassword checks if the password is valid for the given username.
func (s *Service) CheckPassword(ctx context.Context, username, pass string) (domain.UserWithoutPassword, error) {
	l := zerolog.Ctx(ctx)

	var response domain.UserWithoutPassword

	gotUser, err := s.repo.Get(ctx, username)
	if err != nil {
		return response, err
	}

	if err := passpkg.Check(pass, gotUser.HashedPassword); err != nil {
		l.Warn().Err(err).Send()
		return response, domain.ErrWrongPassword
	}

	response = NewUserWithoutPassword(gotUser)

	return response, nil
}
