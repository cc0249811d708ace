// Package userdelivery manages delivery layer of users.
package userdelivery

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/go-vlad/walletpay/internal/domain"
	"github.com/go-vlad/walletpay/pkg/errorspkg"
	"github.com/go-vlad/walletpay/pkg/web"
)

// Service provides service layer interface needed by user delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package userdelivery
type Service interface {
	Create(ctx context.Context, username, password, email string) (domain.UserWithoutPassword, error)
	CheckPassword(ctx context.Context, username, password string) (domain.UserWithoutPassword, error)
}

// SessionService provides session service interface needed by user delivery layer.
type SessionService interface {
	Create(ctx context.Context, arg domain.CreateSessionParams) (string, time.Time, domain.Session, error)
}

// Handler facilitates user delivery layer logic.
type Handler struct {
	service        Service
	sessionService SessionService
}

// NewHandler returns user handler.
func NewHandler(us Service, ss SessionService) *Handler {
	return &Handler{
		service:        us,
		sessionService: ss,
	}
}

type userResponse struct {
	AccessToken           string                     `json:"access_token"`
	AccessTokenExpiresAt  time.Time                  `json:"access_token_expires_at"`
	RefreshToken          string                     `json:"refresh_token"`
	RefreshTokenExpiresAt time.Time                  `json:"refresh_token_expires_at"`
	User                  domain.UserWithoutPassword `json:"user"`
}

func (h *Handler) startSession(gctx *gin.Context, user domain.UserWithoutPassword) (userResponse, error) {
	ctx := gctx.Request.Context()

	arg := domain.CreateSessionParams{
		Username:  user.Username,
		UserAgent: gctx.Request.UserAgent(),
		ClientIP:  gctx.ClientIP(),
	}

	accessToken, accessExpiresAt, sess, err := h.sessionService.Create(ctx, arg)
	if err != nil {
		return userResponse{}, err
	}

	return userResponse{
		AccessToken:           accessToken,
		AccessTokenExpiresAt:  accessExpiresAt,
		RefreshToken:          sess.RefreshToken,
		RefreshTokenExpiresAt: sess.ExpiresAt,
		User:                  user,
	}, nil
}

type createRequest struct {
	Username string `json:"username" binding:"required,alphanum"`
	Password string `json:"password" binding:"required,min=6"`
	Email    string `json:"email" binding:"required,email"`
}

// Create handles http request to sign up a user and open their wallet account.
func (h *Handler) Create(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req createRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.Error(err))

		return
	}

	user, err := h.service.Create(ctx, req.Username, req.Password, req.Email)
	if err != nil {
		l.Info().Err(err).Send()

		switch err {
		case domain.ErrUsernameAlreadyExists, domain.ErrEmailAlreadyExists:
			gctx.JSON(http.StatusConflict, web.Error(err))

			return
		}

		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

		return
	}

	res, err := h.startSession(gctx, user)
	if err != nil {
		l.Error().Err(err).Send()
		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

		return
	}

	gctx.JSON(http.StatusOK, res)
}

type loginRequest struct {
	Username string `json:"username" binding:"required,alphanum"`
	Password string `json:"password" binding:"required,min=6"`
}

// Login handles http request to log in a user.
func (h *Handler) Login(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req loginRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.Error(err))

		return
	}

	user, err := h.service.CheckPassword(ctx, req.Username, req.Password)
	if err != nil {
		l.Info().Err(err).Send()

		switch err {
		case domain.ErrUserNotFound:
			gctx.JSON(http.StatusNotFound, web.Error(err))

			return
		case domain.ErrWrongPassword:
			gctx.JSON(http.StatusUnauthorized, web.Error(err))

			return
		}

		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

		return
	}

	res, err := h.startSession(gctx, user)
	if err != nil {
		l.Error().Err(err).Send()
		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

		return
	}

	gctx.JSON(http.StatusOK, res)
}
