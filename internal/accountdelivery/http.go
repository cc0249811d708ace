// Package accountdelivery manages delivery layer of accounts.
package accountdelivery

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

// Service provides service layer interface needed by account delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package accountdelivery
type Service interface {
	Get(ctx context.Context, id int32) (domain.Account, error)
	GetByOwner(ctx context.Context, owner string) (domain.Account, error)
	LinkExternalUID(ctx context.Context, owner, uid string) (domain.Account, error)
}

// Handler facilitates account delivery layer logic.
type Handler struct {
	service Service
}

// NewHandler returns account handler.
func NewHandler(as Service) *Handler {
	return &Handler{
		service: as,
	}
}

type accountResponse struct {
	Data struct {
		Account domain.Account `json:"account"`
	} `json:"data"`
}

// GetMe handles http request to get the caller's wallet account.
func (h *Handler) GetMe(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	authPayload := gctx.MustGet(middleware.AuthPayloadKey).(*tokenpkg.Payload)

	account, err := h.service.GetByOwner(ctx, authPayload.Username)
	if err != nil {
		l.Info().Err(err).Send()

		if err == domain.ErrAccountNotFound {
			gctx.JSON(http.StatusNotFound, web.Error(err))
			return
		}

		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

		return
	}

	var res accountResponse
	res.Data.Account = account

	gctx.JSON(http.StatusOK, res)
}

type linkExternalRequest struct {
	ExternalUID string `json:"external_uid" binding:"required"`
}

// LinkExternal handles http request to link the caller's external network
// identity to their account. The link is one-time.
func (h *Handler) LinkExternal(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req linkExternalRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.Error(err))

		return
	}

	authPayload := gctx.MustGet(middleware.AuthPayloadKey).(*tokenpkg.Payload)

	account, err := h.service.LinkExternalUID(ctx, authPayload.Username, req.ExternalUID)
	if err != nil {
		l.Info().Err(err).Send()

		switch err {
		case domain.ErrAccountNotFound:
			gctx.JSON(http.StatusNotFound, web.Error(err))
			return
		case domain.ErrExternalUIDAlreadyLinked, domain.ErrExternalUIDTaken:
			gctx.JSON(http.StatusConflict, web.Error(err))
			return
		}

		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

		return
	}

	var res accountResponse
	res.Data.Account = account

	gctx.JSON(http.StatusOK, res)
}
