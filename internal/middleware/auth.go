// Package middleware provides gin middleware for auth, logging and recovery.
package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-vlad/walletpay/pkg/tokenpkg"
	"github.com/go-vlad/walletpay/pkg/web"
	"github.com/stretchr/testify/require"
)

const (
	// AuthHeaderKey is the header carrying the access token.
	AuthHeaderKey = "authorization"
	// AuthTypeBearer is the only supported authorization type.
	AuthTypeBearer = "bearer"
	// AuthPayloadKey is the gin context key holding the verified token payload.
	AuthPayloadKey = "authorization_payload"
)

// AddAuthorization attaches a fresh bearer token to the request. Test helper.
func AddAuthorization(
	t *testing.T,
	request *http.Request,
	tokenMaker tokenpkg.Maker,
	authType string,
	username string,
	duration time.Duration,
) {
	t.Helper()

	token, _, err := tokenMaker.CreateToken(username, duration)
	require.NoError(t, err)

	request.Header.Set(AuthHeaderKey, fmt.Sprintf("%s %s", authType, token))
}

// Auth verifies the bearer token and stores its payload in the gin context.
func Auth(tokenMaker tokenpkg.Maker) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authHeader := ctx.GetHeader(AuthHeaderKey)
		if len(authHeader) == 0 {
			err := errors.New("authorization header is not provided")
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, web.Error(err))

			return
		}

		fields := strings.Fields(authHeader)
		if len(fields) < 2 {
			err := errors.New("invalid authorization header format")
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, web.Error(err))

			return
		}

		authType := strings.ToLower(fields[0])
		if authType != AuthTypeBearer {
			err := fmt.Errorf("unsupported authorization type %s", authType)
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, web.Error(err))

			return
		}

		accessToken := fields[1]

		payload, err := tokenMaker.VerifyToken(accessToken)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, web.Error(err))

			return
		}

		ctx.Set(AuthPayloadKey, payload)
		ctx.Next()
	}
}
