package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-vlad/walletpay/pkg/randompkg"
	"github.com/go-vlad/walletpay/pkg/tokenpkg"
	"github.com/stretchr/testify/require"
)

func TestAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tokenMaker, err := tokenpkg.NewPasetoMaker(randompkg.String(32))
	require.NoError(t, err)

	testCases := []struct {
		name           string
		setupAuth      func(t *testing.T, request *http.Request)
		wantStatusCode int
	}{
		{
			name: "OK",
			setupAuth: func(t *testing.T, request *http.Request) {
				AddAuthorization(t, request, tokenMaker, AuthTypeBearer, "user", time.Minute)
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "NoAuthorization",
			setupAuth:      func(t *testing.T, request *http.Request) {},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name: "MissingAuthType",
			setupAuth: func(t *testing.T, request *http.Request) {
				AddAuthorization(t, request, tokenMaker, "", "user", time.Minute)
			},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name: "UnsupportedAuthType",
			setupAuth: func(t *testing.T, request *http.Request) {
				AddAuthorization(t, request, tokenMaker, "basic", "user", time.Minute)
			},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name: "ExpiredToken",
			setupAuth: func(t *testing.T, request *http.Request) {
				AddAuthorization(t, request, tokenMaker, AuthTypeBearer, "user", -time.Minute)
			},
			wantStatusCode: http.StatusUnauthorized,
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			router := gin.New()
			router.GET("/auth", Auth(tokenMaker), func(gctx *gin.Context) {
				payload := gctx.MustGet(AuthPayloadKey).(*tokenpkg.Payload)
				gctx.JSON(http.StatusOK, gin.H{"username": payload.Username})
			})

			recorder := httptest.NewRecorder()

			request, err := http.NewRequest(http.MethodGet, "/auth", nil)
			require.NoError(t, err)

			tc.setupAuth(t, request)
			router.ServeHTTP(recorder, request)
			require.Equal(t, tc.wantStatusCode, recorder.Code)
		})
	}
}
