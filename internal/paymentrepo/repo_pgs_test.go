//go:build integration

package paymentrepo

import (
	"context"
	"database/sql"
	"log"
	"os"
	"testing"

	"github.com/go-vlad/walletpay/internal/accountrepo"
	"github.com/go-vlad/walletpay/internal/domain"
	"github.com/go-vlad/walletpay/internal/userrepo"
	"github.com/go-vlad/walletpay/pkg/configpkg"
	"github.com/go-vlad/walletpay/pkg/passpkg"
	"github.com/go-vlad/walletpay/pkg/randompkg"
	"github.com/stretchr/testify/require"
)

var (
	testRepo        *RepoPGS
	testUserRepo    *userrepo.RepoPGS
	testAccountRepo *accountrepo.RepoPGS
)

func TestMain(m *testing.M) {
	config, err := configpkg.Load("../../configs")
	if err != nil {
		log.Fatal("cannot load config:", err)
	}

	testDB, err := sql.Open(config.DBDriver, config.DBSource)
	if err != nil {
		log.Fatal("cannot connect to db:", err)
	}

	testRepo = NewRepoPGS(testDB)
	testUserRepo = userrepo.NewRepoPGS(testDB)
	testAccountRepo = accountrepo.NewRepoPGS(testDB)

	os.Exit(m.Run())
}

func createRandomAccount(t *testing.T) domain.Account {
	t.Helper()

	hashedPassword, err := passpkg.Hash(randompkg.String(10))
	require.NoError(t, err)

	testUser, err := testUserRepo.Create(context.Background(), domain.CreateUserParams{
		Username:       randompkg.Owner(),
		HashedPassword: hashedPassword,
		Email:          randompkg.Email(),
	})
	require.NoError(t, err)

	account, err := testAccountRepo.Create(context.Background(), testUser.Username, "0")
	require.NoError(t, err)

	return account
}

func TestCreate(t *testing.T) {
	account := createRandomAccount(t)

	arg := domain.CreatePaymentParams{
		PaymentID:    randompkg.PaymentID(),
		AccountID:    account.ID,
		Amount:       "25",
		ExternalTxID: randompkg.TxID(),
	}

	record, err := testRepo.Create(context.Background(), arg)
	require.NoError(t, err)
	require.Equal(t, arg.PaymentID, record.PaymentID)
	require.Equal(t, arg.AccountID, record.AccountID)
	require.Equal(t, arg.Amount, record.Amount)
	require.Equal(t, arg.ExternalTxID, record.ExternalTxID)
	require.Equal(t, domain.PaymentCredited, record.Status)
	require.NotZero(t, record.ID)
	require.NotZero(t, record.CreatedAt)
}

func TestCreateWithoutTxID(t *testing.T) {
	account := createRandomAccount(t)

	record, err := testRepo.Create(context.Background(), domain.CreatePaymentParams{
		PaymentID: randompkg.PaymentID(),
		AccountID: account.ID,
		Amount:    "25",
	})
	require.NoError(t, err)
	require.Empty(t, record.ExternalTxID)
}

func TestCreateDuplicatePaymentID(t *testing.T) {
	account := createRandomAccount(t)

	arg := domain.CreatePaymentParams{
		PaymentID: randompkg.PaymentID(),
		AccountID: account.ID,
		Amount:    "25",
	}

	_, err := testRepo.Create(context.Background(), arg)
	require.NoError(t, err)

	// Any replay of the same payment_id loses, including from another account.
	_, err = testRepo.Create(context.Background(), arg)
	require.ErrorIs(t, err, domain.ErrPaymentAlreadyCredited)

	otherAccount := createRandomAccount(t)
	arg.AccountID = otherAccount.ID

	_, err = testRepo.Create(context.Background(), arg)
	require.ErrorIs(t, err, domain.ErrPaymentAlreadyCredited)
}

func TestConcurrentCreate(t *testing.T) {
	account := createRandomAccount(t)

	arg := domain.CreatePaymentParams{
		PaymentID: randompkg.PaymentID(),
		AccountID: account.ID,
		Amount:    "25",
	}

	n := 5
	errs := make(chan error, n)

	for i := 0; i < n; i++ {
		go func() {
			_, err := testRepo.Create(context.Background(), arg)
			errs <- err
		}()
	}

	// Exactly one insert wins.
	var created, duplicated int

	for i := 0; i < n; i++ {
		err := <-errs
		switch {
		case err == nil:
			created++
		case err == domain.ErrPaymentAlreadyCredited:
			duplicated++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	require.Equal(t, 1, created)
	require.Equal(t, n-1, duplicated)
}

func TestGet(t *testing.T) {
	account := createRandomAccount(t)

	arg := domain.CreatePaymentParams{
		PaymentID: randompkg.PaymentID(),
		AccountID: account.ID,
		Amount:    "25",
	}

	created, err := testRepo.Create(context.Background(), arg)
	require.NoError(t, err)

	got, err := testRepo.Get(context.Background(), arg.PaymentID)
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)
	require.Equal(t, created.PaymentID, got.PaymentID)

	_, err = testRepo.Get(context.Background(), randompkg.PaymentID())
	require.ErrorIs(t, err, domain.ErrPaymentNotFound)
}

func TestDelete(t *testing.T) {
	account := createRandomAccount(t)

	arg := domain.CreatePaymentParams{
		PaymentID: randompkg.PaymentID(),
		AccountID: account.ID,
		Amount:    "25",
	}

	_, err := testRepo.Create(context.Background(), arg)
	require.NoError(t, err)

	require.NoError(t, testRepo.Delete(context.Background(), arg.PaymentID))

	// The payment_id is released for a later retry.
	_, err = testRepo.Create(context.Background(), arg)
	require.NoError(t, err)
}
