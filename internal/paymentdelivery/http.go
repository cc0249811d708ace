// Package paymentdelivery manages delivery layer of external payments.
package paymentdelivery

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/go-vlad/walletpay/internal/domain"
	"github.com/go-vlad/walletpay/internal/middleware"
	"github.com/go-vlad/walletpay/pkg/errorspkg"
	"github.com/go-vlad/walletpay/pkg/tokenpkg"
	"github.com/go-vlad/walletpay/pkg/web"
)

// UserTokenHeader carries the caller's provider access token, forwarded to
// the gateway on every provider call.
const UserTokenHeader = "X-Provider-Token"

// Service provides service layer interface needed by payment delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package paymentdelivery
type Service interface {
	Approve(ctx context.Context, username, paymentID, userToken string) error
	Complete(ctx context.Context, username, paymentID, txid, userToken string) error
	Credit(ctx context.Context, username string, arg domain.CreditParams) (domain.CreditResult, error)
}

// Handler facilitates payment delivery layer logic.
type Handler struct {
	service Service
}

// NewHandler returns payment handler.
func NewHandler(ps Service) *Handler {
	return &Handler{
		service: ps,
	}
}

type ackResponse struct {
	Data struct {
		PaymentID string `json:"payment_id"`
	} `json:"data"`
}

// Approve handles the provider SDK callback for the approve phase.
func (h *Handler) Approve(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	paymentID := gctx.Param("id")
	authPayload := gctx.MustGet(middleware.AuthPayloadKey).(*tokenpkg.Payload)

	err := h.service.Approve(ctx, authPayload.Username, paymentID, gctx.GetHeader(UserTokenHeader))
	if err != nil {
		l.Info().Err(err).Send()
		writeError(gctx, err)

		return
	}

	var res ackResponse
	res.Data.PaymentID = paymentID

	gctx.JSON(http.StatusOK, res)
}

type completeRequest struct {
	TxID string `json:"txid"`
}

// Complete handles the provider SDK callback for the complete phase.
func (h *Handler) Complete(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req completeRequest
	// The txid body is optional; an empty body decodes to io.EOF.
	if err := gctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.Error(err))

		return
	}

	paymentID := gctx.Param("id")
	authPayload := gctx.MustGet(middleware.AuthPayloadKey).(*tokenpkg.Payload)

	err := h.service.Complete(ctx, authPayload.Username, paymentID, req.TxID, gctx.GetHeader(UserTokenHeader))
	if err != nil {
		l.Info().Err(err).Send()
		writeError(gctx, err)

		return
	}

	var res ackResponse
	res.Data.PaymentID = paymentID

	gctx.JSON(http.StatusOK, res)
}

type creditRequest struct {
	Amount string `json:"amount" binding:"required"`
	TxID   string `json:"txid"`
}

type creditData struct {
	AlreadyCredited bool               `json:"already_credited"`
	Transaction     domain.Transaction `json:"transaction"`
	Account         domain.Account     `json:"account"`
}

type creditResponse struct {
	Data creditData `json:"data"`
}

// Credit handles the provider SDK callback that settles the payment into the
// wallet. A replayed credit responds the same as first-time success, with
// already_credited set.
func (h *Handler) Credit(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req creditRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.Error(err))

		return
	}

	authPayload := gctx.MustGet(middleware.AuthPayloadKey).(*tokenpkg.Payload)

	arg := domain.CreditParams{
		PaymentID: gctx.Param("id"),
		Amount:    req.Amount,
		TxID:      req.TxID,
		UserToken: gctx.GetHeader(UserTokenHeader),
	}

	result, err := h.service.Credit(ctx, authPayload.Username, arg)
	if err != nil {
		l.Info().Err(err).Send()
		writeError(gctx, err)

		return
	}

	res := creditResponse{
		Data: creditData{
			AlreadyCredited: result.AlreadyCredited,
			Transaction:     result.Transaction,
			Account:         result.Account,
		},
	}

	gctx.JSON(http.StatusOK, res)
}

// writeError maps the payment error taxonomy onto HTTP statuses: validation
// 400, integrity 409, retryable gateway failures 502, the rest 500.
func writeError(gctx *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrMissingPaymentID),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrNegativeAmount):
		gctx.JSON(http.StatusBadRequest, web.Error(err))
	case errors.Is(err, domain.ErrAccountNotFound):
		gctx.JSON(http.StatusNotFound, web.Error(err))
	case errors.Is(err, domain.ErrWrongDirection),
		errors.Is(err, domain.ErrPaymentCancelled),
		errors.Is(err, domain.ErrAmountMismatch),
		errors.Is(err, domain.ErrTxIDMismatch),
		errors.Is(err, domain.ErrIdentityMismatch):
		gctx.JSON(http.StatusConflict, web.Error(err))
	case errors.Is(err, domain.ErrGatewayUnavailable),
		errors.Is(err, domain.ErrPaymentIncomplete):
		gctx.JSON(http.StatusBadGateway, web.Error(err))
	default:
		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))
	}
}
