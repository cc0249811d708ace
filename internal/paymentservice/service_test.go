package paymentservice

import (
	"context"
	"testing"
	"time"

	"github.com/go-vlad/walletpay/internal/domain"
	"github.com/go-vlad/walletpay/internal/paygate"
	"github.com/go-vlad/walletpay/pkg/configpkg"
	"github.com/go-vlad/walletpay/pkg/errorspkg"
	"github.com/go-vlad/walletpay/pkg/randompkg"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
)

var testConfig = configpkg.Config{
	StatusFetchAttempts: 3,
	StatusFetchDelay:    time.Millisecond,
}

func newService(t *testing.T) (*Service, *MockGateway, *MockAccountRepo, *MockPaymentRepo, *MockTransactionRepo) {
	t.Helper()

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	gw := NewMockGateway(ctrl)
	ar := NewMockAccountRepo(ctrl)
	pr := NewMockPaymentRepo(ctrl)
	tr := NewMockTransactionRepo(ctrl)

	return New(gw, ar, pr, tr, testConfig), gw, ar, pr, tr
}

func completePayment(amount float64, uid, txid string) paygate.Payment {
	return paygate.Payment{
		Amount:    amount,
		Direction: paygate.DirectionUserToApp,
		UserUID:   uid,
		Status: paygate.Status{
			DeveloperCompleted:  true,
			TransactionVerified: true,
		},
		Transaction: &paygate.Transaction{TxID: txid},
	}
}

func TestApprove(t *testing.T) {
	username := randompkg.Owner()
	paymentID := randompkg.PaymentID()
	account := domain.Account{ID: 1, Owner: username, Balance: "100"}

	testCases := []struct {
		name       string
		paymentID  string
		buildStubs func(gw *MockGateway, ar *MockAccountRepo)
		wantErr    error
	}{
		{
			name:      "OK",
			paymentID: paymentID,
			buildStubs: func(gw *MockGateway, ar *MockAccountRepo) {
				ar.EXPECT().GetByOwner(gomock.Any(), gomock.Eq(username)).Times(1).Return(account, nil)
				gw.EXPECT().Approve(gomock.Any(), gomock.Eq(paymentID), gomock.Any()).Times(1).Return(nil)
			},
		},
		{
			name:      "MissingPaymentID",
			paymentID: "",
			buildStubs: func(gw *MockGateway, ar *MockAccountRepo) {
				ar.EXPECT().GetByOwner(gomock.Any(), gomock.Any()).Times(0)
				gw.EXPECT().Approve(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			wantErr: domain.ErrMissingPaymentID,
		},
		{
			name:      "GatewayDown",
			paymentID: paymentID,
			buildStubs: func(gw *MockGateway, ar *MockAccountRepo) {
				ar.EXPECT().GetByOwner(gomock.Any(), gomock.Eq(username)).Times(1).Return(account, nil)
				gw.EXPECT().Approve(gomock.Any(), gomock.Eq(paymentID), gomock.Any()).
					Times(1).
					Return(domain.ErrGatewayUnavailable)
			},
			wantErr: domain.ErrGatewayUnavailable,
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			service, gw, ar, _, _ := newService(t)
			tc.buildStubs(gw, ar)

			err := service.Approve(context.Background(), username, tc.paymentID, "token")
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}

			require.NoError(t, err)
		})
	}
}

func TestCompleteIsRepeatable(t *testing.T) {
	username := randompkg.Owner()
	paymentID := randompkg.PaymentID()
	txid := randompkg.TxID()
	account := domain.Account{ID: 1, Owner: username, Balance: "100"}

	service, gw, ar, _, _ := newService(t)

	ar.EXPECT().GetByOwner(gomock.Any(), gomock.Eq(username)).Times(2).Return(account, nil)
	gw.EXPECT().Complete(gomock.Any(), gomock.Eq(paymentID), gomock.Eq(txid), gomock.Any()).
		Times(2).
		Return(nil)

	// Replaying complete acknowledges the provider again and touches nothing
	// else; the ledger mocks reject any unexpected call.
	for i := 0; i < 2; i++ {
		err := service.Complete(context.Background(), username, paymentID, txid, "token")
		require.NoError(t, err)
	}
}

func TestCredit(t *testing.T) {
	username := randompkg.Owner()
	paymentID := randompkg.PaymentID()
	txid := randompkg.TxID()
	externalUID := randompkg.String(16)
	amount := "25"

	account := domain.Account{ID: 7, Owner: username, Balance: "100", ExternalUID: externalUID}
	creditedAccount := domain.Account{ID: 7, Owner: username, Balance: "125", ExternalUID: externalUID}

	topUp := domain.Transaction{
		ID:         1,
		SenderID:   account.ID,
		ReceiverID: account.ID,
		Amount:     amount,
		Note:       topUpNote,
		Status:     domain.TransactionCompleted,
	}

	recordArg := domain.CreatePaymentParams{
		PaymentID:    paymentID,
		AccountID:    account.ID,
		Amount:       amount,
		ExternalTxID: txid,
	}

	testCases := []struct {
		name          string
		arg           domain.CreditParams
		buildStubs    func(gw *MockGateway, ar *MockAccountRepo, pr *MockPaymentRepo, tr *MockTransactionRepo)
		checkResponse func(t *testing.T, res domain.CreditResult, err error)
	}{
		{
			name: "OK",
			arg:  domain.CreditParams{PaymentID: paymentID, Amount: amount, TxID: txid},
			buildStubs: func(gw *MockGateway, ar *MockAccountRepo, pr *MockPaymentRepo, tr *MockTransactionRepo) {
				ar.EXPECT().GetByOwner(gomock.Any(), gomock.Eq(username)).Times(1).Return(account, nil)
				gw.EXPECT().Complete(gomock.Any(), gomock.Eq(paymentID), gomock.Eq(txid), gomock.Any()).Times(1).Return(nil)
				gw.EXPECT().Payment(gomock.Any(), gomock.Eq(paymentID), gomock.Any()).
					Times(1).
					Return(completePayment(25, externalUID, txid), nil)
				pr.EXPECT().Create(gomock.Any(), gomock.Eq(recordArg)).Times(1).Return(domain.PaymentRecord{}, nil)
				ar.EXPECT().AddBalance(gomock.Any(), gomock.Eq(amount), gomock.Eq(account.ID)).
					Times(1).
					Return(creditedAccount, nil)
				tr.EXPECT().TopUpTx(gomock.Any(), gomock.Eq(account.ID), gomock.Eq(amount), gomock.Eq(topUpNote)).
					Times(1).
					Return(topUp, nil)
			},
			checkResponse: func(t *testing.T, res domain.CreditResult, err error) {
				require.NoError(t, err)
				require.False(t, res.AlreadyCredited)
				require.Equal(t, topUp, res.Transaction)
				require.Equal(t, creditedAccount, res.Account)
			},
		},
		{
			name: "BestEffortCompleteFailureIgnored",
			arg:  domain.CreditParams{PaymentID: paymentID, Amount: amount, TxID: txid},
			buildStubs: func(gw *MockGateway, ar *MockAccountRepo, pr *MockPaymentRepo, tr *MockTransactionRepo) {
				ar.EXPECT().GetByOwner(gomock.Any(), gomock.Eq(username)).Times(1).Return(account, nil)
				gw.EXPECT().Complete(gomock.Any(), gomock.Eq(paymentID), gomock.Eq(txid), gomock.Any()).
					Times(1).
					Return(domain.ErrGatewayUnavailable)
				gw.EXPECT().Payment(gomock.Any(), gomock.Eq(paymentID), gomock.Any()).
					Times(1).
					Return(completePayment(25, externalUID, txid), nil)
				pr.EXPECT().Create(gomock.Any(), gomock.Eq(recordArg)).Times(1).Return(domain.PaymentRecord{}, nil)
				ar.EXPECT().AddBalance(gomock.Any(), gomock.Eq(amount), gomock.Eq(account.ID)).
					Times(1).
					Return(creditedAccount, nil)
				tr.EXPECT().TopUpTx(gomock.Any(), gomock.Eq(account.ID), gomock.Eq(amount), gomock.Eq(topUpNote)).
					Times(1).
					Return(topUp, nil)
			},
			checkResponse: func(t *testing.T, res domain.CreditResult, err error) {
				require.NoError(t, err)
				require.False(t, res.AlreadyCredited)
			},
		},
		{
			name: "MissingPaymentID",
			arg:  domain.CreditParams{Amount: amount},
			buildStubs: func(gw *MockGateway, ar *MockAccountRepo, pr *MockPaymentRepo, tr *MockTransactionRepo) {
			},
			checkResponse: func(t *testing.T, res domain.CreditResult, err error) {
				require.ErrorIs(t, err, domain.ErrMissingPaymentID)
			},
		},
		{
			name: "InvalidAmount",
			arg:  domain.CreditParams{PaymentID: paymentID, Amount: "!@#$"},
			buildStubs: func(gw *MockGateway, ar *MockAccountRepo, pr *MockPaymentRepo, tr *MockTransactionRepo) {
			},
			checkResponse: func(t *testing.T, res domain.CreditResult, err error) {
				require.ErrorIs(t, err, domain.ErrInvalidAmount)
			},
		},
		{
			name: "NegativeAmount",
			arg:  domain.CreditParams{PaymentID: paymentID, Amount: "-25"},
			buildStubs: func(gw *MockGateway, ar *MockAccountRepo, pr *MockPaymentRepo, tr *MockTransactionRepo) {
			},
			checkResponse: func(t *testing.T, res domain.CreditResult, err error) {
				require.ErrorIs(t, err, domain.ErrNegativeAmount)
			},
		},
		{
			name: "AccountNotFound",
			arg:  domain.CreditParams{PaymentID: paymentID, Amount: amount},
			buildStubs: func(gw *MockGateway, ar *MockAccountRepo, pr *MockPaymentRepo, tr *MockTransactionRepo) {
				ar.EXPECT().GetByOwner(gomock.Any(), gomock.Eq(username)).
					Times(1).
					Return(domain.Account{}, domain.ErrAccountNotFound)
			},
			checkResponse: func(t *testing.T, res domain.CreditResult, err error) {
				require.ErrorIs(t, err, domain.ErrAccountNotFound)
			},
		},
		{
			name: "GatewayDownRetriesExhausted",
			arg:  domain.CreditParams{PaymentID: paymentID, Amount: amount, TxID: txid},
			buildStubs: func(gw *MockGateway, ar *MockAccountRepo, pr *MockPaymentRepo, tr *MockTransactionRepo) {
				ar.EXPECT().GetByOwner(gomock.Any(), gomock.Eq(username)).Times(1).Return(account, nil)
				gw.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(1).Return(nil)
				gw.EXPECT().Payment(gomock.Any(), gomock.Eq(paymentID), gomock.Any()).
					Times(testConfig.StatusFetchAttempts).
					Return(paygate.Payment{}, domain.ErrGatewayUnavailable)
			},
			checkResponse: func(t *testing.T, res domain.CreditResult, err error) {
				require.ErrorIs(t, err, domain.ErrGatewayUnavailable)
			},
		},
		{
			name: "IncompleteAfterRetries",
			arg:  domain.CreditParams{PaymentID: paymentID, Amount: amount, TxID: txid},
			buildStubs: func(gw *MockGateway, ar *MockAccountRepo, pr *MockPaymentRepo, tr *MockTransactionRepo) {
				incomplete := completePayment(25, externalUID, txid)
				incomplete.Status.TransactionVerified = false

				ar.EXPECT().GetByOwner(gomock.Any(), gomock.Eq(username)).Times(1).Return(account, nil)
				gw.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(1).Return(nil)
				gw.EXPECT().Payment(gomock.Any(), gomock.Eq(paymentID), gomock.Any()).
					Times(testConfig.StatusFetchAttempts).
					Return(incomplete, nil)
			},
			checkResponse: func(t *testing.T, res domain.CreditResult, err error) {
				require.ErrorIs(t, err, domain.ErrPaymentIncomplete)
			},
		},
		{
			name: "WrongDirection",
			arg:  domain.CreditParams{PaymentID: paymentID, Amount: amount, TxID: txid},
			buildStubs: func(gw *MockGateway, ar *MockAccountRepo, pr *MockPaymentRepo, tr *MockTransactionRepo) {
				payment := completePayment(25, externalUID, txid)
				payment.Direction = paygate.DirectionAppToUser

				ar.EXPECT().GetByOwner(gomock.Any(), gomock.Eq(username)).Times(1).Return(account, nil)
				gw.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(1).Return(nil)
				gw.EXPECT().Payment(gomock.Any(), gomock.Eq(paymentID), gomock.Any()).Times(1).Return(payment, nil)
			},
			checkResponse: func(t *testing.T, res domain.CreditResult, err error) {
				require.ErrorIs(t, err, domain.ErrWrongDirection)
			},
		},
		{
			name: "Cancelled",
			arg:  domain.CreditParams{PaymentID: paymentID, Amount: amount, TxID: txid},
			buildStubs: func(gw *MockGateway, ar *MockAccountRepo, pr *MockPaymentRepo, tr *MockTransactionRepo) {
				payment := completePayment(25, externalUID, txid)
				payment.Status.TransactionVerified = false
				payment.Status.Cancelled = true

				ar.EXPECT().GetByOwner(gomock.Any(), gomock.Eq(username)).Times(1).Return(account, nil)
				gw.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(1).Return(nil)
				// A cancelled payment never completes; the fetch loop must not
				// burn the whole retry budget on it.
				gw.EXPECT().Payment(gomock.Any(), gomock.Eq(paymentID), gomock.Any()).Times(1).Return(payment, nil)
			},
			checkResponse: func(t *testing.T, res domain.CreditResult, err error) {
				require.ErrorIs(t, err, domain.ErrPaymentCancelled)
			},
		},
		{
			name: "AmountMismatch",
			arg:  domain.CreditParams{PaymentID: paymentID, Amount: amount, TxID: txid},
			buildStubs: func(gw *MockGateway, ar *MockAccountRepo, pr *MockPaymentRepo, tr *MockTransactionRepo) {
				ar.EXPECT().GetByOwner(gomock.Any(), gomock.Eq(username)).Times(1).Return(account, nil)
				gw.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(1).Return(nil)
				gw.EXPECT().Payment(gomock.Any(), gomock.Eq(paymentID), gomock.Any()).
					Times(1).
					Return(completePayment(20, externalUID, txid), nil)
			},
			checkResponse: func(t *testing.T, res domain.CreditResult, err error) {
				require.ErrorIs(t, err, domain.ErrAmountMismatch)
			},
		},
		{
			name: "TxIDMismatch",
			arg:  domain.CreditParams{PaymentID: paymentID, Amount: amount, TxID: txid},
			buildStubs: func(gw *MockGateway, ar *MockAccountRepo, pr *MockPaymentRepo, tr *MockTransactionRepo) {
				ar.EXPECT().GetByOwner(gomock.Any(), gomock.Eq(username)).Times(1).Return(account, nil)
				gw.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(1).Return(nil)
				gw.EXPECT().Payment(gomock.Any(), gomock.Eq(paymentID), gomock.Any()).
					Times(1).
					Return(completePayment(25, externalUID, randompkg.TxID()), nil)
			},
			checkResponse: func(t *testing.T, res domain.CreditResult, err error) {
				require.ErrorIs(t, err, domain.ErrTxIDMismatch)
			},
		},
		{
			name: "IdentityMismatch",
			arg:  domain.CreditParams{PaymentID: paymentID, Amount: amount, TxID: txid},
			buildStubs: func(gw *MockGateway, ar *MockAccountRepo, pr *MockPaymentRepo, tr *MockTransactionRepo) {
				ar.EXPECT().GetByOwner(gomock.Any(), gomock.Eq(username)).Times(1).Return(account, nil)
				gw.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(1).Return(nil)
				gw.EXPECT().Payment(gomock.Any(), gomock.Eq(paymentID), gomock.Any()).
					Times(1).
					Return(completePayment(25, randompkg.String(16), txid), nil)
			},
			checkResponse: func(t *testing.T, res domain.CreditResult, err error) {
				require.ErrorIs(t, err, domain.ErrIdentityMismatch)
			},
		},
		{
			name: "AlreadyCredited",
			arg:  domain.CreditParams{PaymentID: paymentID, Amount: amount, TxID: txid},
			buildStubs: func(gw *MockGateway, ar *MockAccountRepo, pr *MockPaymentRepo, tr *MockTransactionRepo) {
				ar.EXPECT().GetByOwner(gomock.Any(), gomock.Eq(username)).Times(1).Return(account, nil)
				gw.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(1).Return(nil)
				gw.EXPECT().Payment(gomock.Any(), gomock.Eq(paymentID), gomock.Any()).
					Times(1).
					Return(completePayment(25, externalUID, txid), nil)
				pr.EXPECT().Create(gomock.Any(), gomock.Eq(recordArg)).
					Times(1).
					Return(domain.PaymentRecord{}, domain.ErrPaymentAlreadyCredited)
				ar.EXPECT().AddBalance(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
				tr.EXPECT().TopUpTx(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(t *testing.T, res domain.CreditResult, err error) {
				require.NoError(t, err)
				require.True(t, res.AlreadyCredited)
				require.Equal(t, account, res.Account)
			},
		},
		{
			name: "RecordReleasedWhenBalanceCreditFails",
			arg:  domain.CreditParams{PaymentID: paymentID, Amount: amount, TxID: txid},
			buildStubs: func(gw *MockGateway, ar *MockAccountRepo, pr *MockPaymentRepo, tr *MockTransactionRepo) {
				ar.EXPECT().GetByOwner(gomock.Any(), gomock.Eq(username)).Times(1).Return(account, nil)
				gw.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(1).Return(nil)
				gw.EXPECT().Payment(gomock.Any(), gomock.Eq(paymentID), gomock.Any()).
					Times(1).
					Return(completePayment(25, externalUID, txid), nil)
				pr.EXPECT().Create(gomock.Any(), gomock.Eq(recordArg)).Times(1).Return(domain.PaymentRecord{}, nil)
				ar.EXPECT().AddBalance(gomock.Any(), gomock.Eq(amount), gomock.Eq(account.ID)).
					Times(1).
					Return(domain.Account{}, errorspkg.ErrInternal)
				pr.EXPECT().Delete(gomock.Any(), gomock.Eq(paymentID)).Times(1).Return(nil)
				tr.EXPECT().TopUpTx(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(t *testing.T, res domain.CreditResult, err error) {
				require.ErrorIs(t, err, errorspkg.ErrInternal)
			},
		},
		{
			name: "CompensatedOnTransactionFailure",
			arg:  domain.CreditParams{PaymentID: paymentID, Amount: amount, TxID: txid},
			buildStubs: func(gw *MockGateway, ar *MockAccountRepo, pr *MockPaymentRepo, tr *MockTransactionRepo) {
				ar.EXPECT().GetByOwner(gomock.Any(), gomock.Eq(username)).Times(1).Return(account, nil)
				gw.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(1).Return(nil)
				gw.EXPECT().Payment(gomock.Any(), gomock.Eq(paymentID), gomock.Any()).
					Times(1).
					Return(completePayment(25, externalUID, txid), nil)
				pr.EXPECT().Create(gomock.Any(), gomock.Eq(recordArg)).Times(1).Return(domain.PaymentRecord{}, nil)
				ar.EXPECT().AddBalance(gomock.Any(), gomock.Eq(amount), gomock.Eq(account.ID)).
					Times(1).
					Return(creditedAccount, nil)
				tr.EXPECT().TopUpTx(gomock.Any(), gomock.Eq(account.ID), gomock.Eq(amount), gomock.Eq(topUpNote)).
					Times(1).
					Return(domain.Transaction{}, errorspkg.ErrInternal)
				// The saga reversal: debit back the credit, release the payment_id.
				ar.EXPECT().AddBalance(gomock.Any(), gomock.Eq("-"+amount), gomock.Eq(account.ID)).
					Times(1).
					Return(account, nil)
				pr.EXPECT().Delete(gomock.Any(), gomock.Eq(paymentID)).Times(1).Return(nil)
			},
			checkResponse: func(t *testing.T, res domain.CreditResult, err error) {
				require.ErrorIs(t, err, domain.ErrLedgerInconsistent)
			},
		},
		{
			name: "CompensationReversalFails",
			arg:  domain.CreditParams{PaymentID: paymentID, Amount: amount, TxID: txid},
			buildStubs: func(gw *MockGateway, ar *MockAccountRepo, pr *MockPaymentRepo, tr *MockTransactionRepo) {
				ar.EXPECT().GetByOwner(gomock.Any(), gomock.Eq(username)).Times(1).Return(account, nil)
				gw.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(1).Return(nil)
				gw.EXPECT().Payment(gomock.Any(), gomock.Eq(paymentID), gomock.Any()).
					Times(1).
					Return(completePayment(25, externalUID, txid), nil)
				pr.EXPECT().Create(gomock.Any(), gomock.Eq(recordArg)).Times(1).Return(domain.PaymentRecord{}, nil)
				ar.EXPECT().AddBalance(gomock.Any(), gomock.Eq(amount), gomock.Eq(account.ID)).
					Times(1).
					Return(creditedAccount, nil)
				tr.EXPECT().TopUpTx(gomock.Any(), gomock.Eq(account.ID), gomock.Eq(amount), gomock.Eq(topUpNote)).
					Times(1).
					Return(domain.Transaction{}, errorspkg.ErrInternal)
				ar.EXPECT().AddBalance(gomock.Any(), gomock.Eq("-"+amount), gomock.Eq(account.ID)).
					Times(1).
					Return(domain.Account{}, errorspkg.ErrInternal)
				pr.EXPECT().Delete(gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(t *testing.T, res domain.CreditResult, err error) {
				require.ErrorIs(t, err, domain.ErrLedgerInconsistent)
			},
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			service, gw, ar, pr, tr := newService(t)
			tc.buildStubs(gw, ar, pr, tr)

			res, err := service.Credit(context.Background(), username, tc.arg)
			tc.checkResponse(t, res, err)
		})
	}
}

func TestCreditWithoutCallerTxID(t *testing.T) {
	username := randompkg.Owner()
	paymentID := randompkg.PaymentID()
	providerTxID := randompkg.TxID()
	amount := "25"

	account := domain.Account{ID: 3, Owner: username, Balance: "0"}

	service, gw, ar, pr, tr := newService(t)

	ar.EXPECT().GetByOwner(gomock.Any(), gomock.Eq(username)).Times(1).Return(account, nil)
	gw.EXPECT().Complete(gomock.Any(), gomock.Eq(paymentID), gomock.Eq(""), gomock.Any()).Times(1).Return(nil)
	gw.EXPECT().Payment(gomock.Any(), gomock.Eq(paymentID), gomock.Any()).
		Times(1).
		Return(completePayment(25, randompkg.String(16), providerTxID), nil)

	// The provider-reported txid is recorded when the caller supplied none.
	pr.EXPECT().Create(gomock.Any(), gomock.Eq(domain.CreatePaymentParams{
		PaymentID:    paymentID,
		AccountID:    account.ID,
		Amount:       amount,
		ExternalTxID: providerTxID,
	})).Times(1).Return(domain.PaymentRecord{}, nil)

	ar.EXPECT().AddBalance(gomock.Any(), gomock.Eq(amount), gomock.Eq(account.ID)).
		Times(1).
		Return(domain.Account{ID: 3, Owner: username, Balance: amount}, nil)
	tr.EXPECT().TopUpTx(gomock.Any(), gomock.Eq(account.ID), gomock.Eq(amount), gomock.Eq(topUpNote)).
		Times(1).
		Return(domain.Transaction{ID: 9}, nil)

	res, err := service.Credit(context.Background(), username, domain.CreditParams{
		PaymentID: paymentID,
		Amount:    amount,
	})
	require.NoError(t, err)
	require.False(t, res.AlreadyCredited)
}

func TestCreditCanonicalizesSignedAmount(t *testing.T) {
	username := randompkg.Owner()
	paymentID := randompkg.PaymentID()
	txid := randompkg.TxID()

	account := domain.Account{ID: 5, Owner: username, Balance: "0"}

	service, gw, ar, pr, tr := newService(t)

	ar.EXPECT().GetByOwner(gomock.Any(), gomock.Eq(username)).Times(1).Return(account, nil)
	gw.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(1).Return(nil)
	gw.EXPECT().Payment(gomock.Any(), gomock.Eq(paymentID), gomock.Any()).
		Times(1).
		Return(completePayment(25, "", txid), nil)

	// "+25" parses fine but is not valid numeric input for the database, and
	// a textual reversal of it would be "-+25". Every downstream string must
	// be the canonical "25"/"-25".
	pr.EXPECT().Create(gomock.Any(), gomock.Eq(domain.CreatePaymentParams{
		PaymentID:    paymentID,
		AccountID:    account.ID,
		Amount:       "25",
		ExternalTxID: txid,
	})).Times(1).Return(domain.PaymentRecord{}, nil)

	ar.EXPECT().AddBalance(gomock.Any(), gomock.Eq("25"), gomock.Eq(account.ID)).
		Times(1).
		Return(domain.Account{ID: 5, Owner: username, Balance: "25"}, nil)
	tr.EXPECT().TopUpTx(gomock.Any(), gomock.Eq(account.ID), gomock.Eq("25"), gomock.Eq(topUpNote)).
		Times(1).
		Return(domain.Transaction{}, errorspkg.ErrInternal)
	ar.EXPECT().AddBalance(gomock.Any(), gomock.Eq("-25"), gomock.Eq(account.ID)).
		Times(1).
		Return(account, nil)
	pr.EXPECT().Delete(gomock.Any(), gomock.Eq(paymentID)).Times(1).Return(nil)

	_, err := service.Credit(context.Background(), username, domain.CreditParams{
		PaymentID: paymentID,
		Amount:    "+25",
		TxID:      txid,
	})
	require.ErrorIs(t, err, domain.ErrLedgerInconsistent)
}

func TestCreditRetriesUntilComplete(t *testing.T) {
	username := randompkg.Owner()
	paymentID := randompkg.PaymentID()
	txid := randompkg.TxID()
	amount := "10"

	account := domain.Account{ID: 4, Owner: username, Balance: "0"}

	incomplete := completePayment(10, "", txid)
	incomplete.Status.TransactionVerified = false

	service, gw, ar, pr, tr := newService(t)

	ar.EXPECT().GetByOwner(gomock.Any(), gomock.Eq(username)).Times(1).Return(account, nil)
	gw.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(1).Return(nil)

	gomock.InOrder(
		gw.EXPECT().Payment(gomock.Any(), gomock.Eq(paymentID), gomock.Any()).Times(2).Return(incomplete, nil),
		gw.EXPECT().Payment(gomock.Any(), gomock.Eq(paymentID), gomock.Any()).
			Times(1).
			Return(completePayment(10, "", txid), nil),
	)

	pr.EXPECT().Create(gomock.Any(), gomock.Any()).Times(1).Return(domain.PaymentRecord{}, nil)
	ar.EXPECT().AddBalance(gomock.Any(), gomock.Eq(amount), gomock.Eq(account.ID)).
		Times(1).
		Return(account, nil)
	tr.EXPECT().TopUpTx(gomock.Any(), gomock.Eq(account.ID), gomock.Eq(amount), gomock.Eq(topUpNote)).
		Times(1).
		Return(domain.Transaction{ID: 2}, nil)

	_, err := service.Credit(context.Background(), username, domain.CreditParams{
		PaymentID: paymentID,
		Amount:    amount,
		TxID:      txid,
	})
	require.NoError(t, err)
}
