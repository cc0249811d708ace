// Package transferdelivery manages delivery layer of transfers.
package transferdelivery

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/go-vlad/walletpay/internal/domain"
	"github.com/go-vlad/walletpay/internal/middleware"
	"github.com/go-vlad/walletpay/pkg/errorspkg"
	"github.com/go-vlad/walletpay/pkg/tokenpkg"
	"github.com/go-vlad/walletpay/pkg/web"
)

// Service provides service layer interface needed by transfer delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package transferdelivery
type Service interface {
	Transfer(ctx context.Context, senderUsername string, arg domain.CreateTransferParams) (domain.TransferTxResult, error)
	List(ctx context.Context, username string, limit, offset int32) ([]domain.Transaction, error)
}

// Handler facilitates transfer delivery layer logic.
type Handler struct {
	service Service
}

// NewHandler returns transfer handler.
func NewHandler(ts Service) *Handler {
	return &Handler{
		service: ts,
	}
}

type createRequest struct {
	SenderID   int32  `json:"sender_id" binding:"required,min=1"`
	ReceiverID int32  `json:"receiver_id" binding:"required,min=1"`
	Amount     string `json:"amount" binding:"required"`
	Note       string `json:"note" binding:"max=200"`
}

type createData struct {
	Transfer domain.TransferTxResult `json:"transfer"`
}

type createResponse struct {
	Data createData `json:"data,omitempty"`
}

// Create handles http request to create a transfer between two accounts.
func (h *Handler) Create(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req createRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.Error(err))

		return
	}

	authPayload := gctx.MustGet(middleware.AuthPayloadKey).(*tokenpkg.Payload)

	arg := domain.CreateTransferParams{
		SenderID:   req.SenderID,
		ReceiverID: req.ReceiverID,
		Amount:     req.Amount,
		Note:       req.Note,
	}

	result, err := h.service.Transfer(ctx, authPayload.Username, arg)
	if err != nil {
		l.Info().Err(err).Send()

		switch err {
		case domain.ErrInvalidOwner:
			gctx.JSON(http.StatusUnauthorized, web.Error(err))

			return
		case
			domain.ErrInvalidAmount,
			domain.ErrNegativeAmount,
			domain.ErrSelfTransfer,
			domain.ErrInsufficientBalance,
			domain.ErrAccountNotFound:
			gctx.JSON(http.StatusBadRequest, web.Error(err))

			return
		}

		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

		return
	}

	res := createResponse{
		Data: createData{result},
	}

	gctx.JSON(http.StatusOK, res)
}

type listRequest struct {
	Limit  int32 `form:"limit,default=20" binding:"min=1,max=100"`
	Offset int32 `form:"offset,default=0" binding:"min=0"`
}

type listData struct {
	Transactions []domain.Transaction `json:"transactions"`
}

type listResponse struct {
	Data listData `json:"data,omitempty"`
}

// List handles http request to list the caller's transactions.
func (h *Handler) List(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req listRequest
	if err := gctx.ShouldBindQuery(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.Error(err))

		return
	}

	authPayload := gctx.MustGet(middleware.AuthPayloadKey).(*tokenpkg.Payload)

	transactions, err := h.service.List(ctx, authPayload.Username, req.Limit, req.Offset)
	if err != nil {
		l.Info().Err(err).Send()

		if err == domain.ErrAccountNotFound {
			gctx.JSON(http.StatusNotFound, web.Error(err))

			return
		}

		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

		return
	}

	res := listResponse{
		Data: listData{transactions},
	}

	gctx.JSON(http.StatusOK, res)
}
