// Package httpserver manages server creation and api routing.
package httpserver

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/slok/go-http-metrics/metrics/prometheus"
	metricsmiddleware "github.com/slok/go-http-metrics/middleware"
	ginmiddleware "github.com/slok/go-http-metrics/middleware/gin"

	"github.com/go-vlad/walletpay/internal/accountdelivery"
	"github.com/go-vlad/walletpay/internal/accountrepo"
	"github.com/go-vlad/walletpay/internal/accountservice"
	"github.com/go-vlad/walletpay/internal/middleware"
	"github.com/go-vlad/walletpay/internal/paygate"
	"github.com/go-vlad/walletpay/internal/paymentdelivery"
	"github.com/go-vlad/walletpay/internal/paymentrepo"
	"github.com/go-vlad/walletpay/internal/paymentservice"
	"github.com/go-vlad/walletpay/internal/sessiondelivery"
	"github.com/go-vlad/walletpay/internal/sessionrepo"
	"github.com/go-vlad/walletpay/internal/sessionservice"
	"github.com/go-vlad/walletpay/internal/transferdelivery"
	"github.com/go-vlad/walletpay/internal/transferrepo"
	"github.com/go-vlad/walletpay/internal/transferservice"
	"github.com/go-vlad/walletpay/internal/userdelivery"
	"github.com/go-vlad/walletpay/internal/userrepo"
	"github.com/go-vlad/walletpay/internal/userservice"
	"github.com/go-vlad/walletpay/pkg/configpkg"
	"github.com/go-vlad/walletpay/pkg/tokenpkg"
)

// Server holds db connection, handlers router and configuration.
type Server struct {
	DB     *sql.DB
	Engine *gin.Engine
	Config configpkg.Config
}

// ServeHTTP implements the http.Handler interface for the Server type.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Engine.ServeHTTP(w, r)
}

// New creates Server type with instantiated domains and routes.
func New(conn *sql.DB, logger zerolog.Logger, config configpkg.Config) (*Server, error) {
	userRepo := userrepo.NewRepoPGS(conn)
	accountRepo := accountrepo.NewRepoPGS(conn)
	transferRepo := transferrepo.NewRepoPGS(conn)
	paymentRepo := paymentrepo.NewRepoPGS(conn)
	sessionRepo := sessionrepo.NewRepoPGS(conn)

	tokenMaker, err := tokenpkg.NewPasetoMaker(config.TokenSymmetricKey)
	if err != nil {
		return nil, errors.New("cannot create token maker")
	}

	gatewayClient := paygate.New(config)

	accountService := accountservice.New(accountRepo)
	userService := userservice.New(userRepo)
	transferService := transferservice.New(transferRepo, accountService)
	paymentService := paymentservice.New(gatewayClient, accountRepo, paymentRepo, transferRepo, config)
	sessionService := sessionservice.New(sessionRepo, config, tokenMaker)

	userHandler := userdelivery.NewHandler(userService, sessionService)
	accountHandler := accountdelivery.NewHandler(accountService)
	transferHandler := transferdelivery.NewHandler(transferService)
	paymentHandler := paymentdelivery.NewHandler(paymentService)
	sessionHandler := sessiondelivery.NewHandler(sessionService)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(middleware.RequestLogger(logger))
	engine.Use(gin.Recovery())

	mdlw := metricsmiddleware.New(metricsmiddleware.Config{
		Recorder: prometheus.NewRecorder(prometheus.Config{}),
	})
	engine.Use(ginmiddleware.Handler("", mdlw))

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	engine.POST("/users", userHandler.Create)
	engine.POST("/users/login", userHandler.Login)
	engine.POST("/sessions", sessionHandler.RenewAccessToken)

	authRoutes := engine.Group("/").Use(middleware.Auth(sessionService.TokenMaker))

	authRoutes.GET("/accounts/me", accountHandler.GetMe)
	authRoutes.POST("/accounts/me/link", accountHandler.LinkExternal)

	authRoutes.GET("/transactions", transferHandler.List)
	authRoutes.POST("/transfers", transferHandler.Create)

	authRoutes.POST("/payments/:id/approve", paymentHandler.Approve)
	authRoutes.POST("/payments/:id/complete", paymentHandler.Complete)
	authRoutes.POST("/payments/:id/credit", paymentHandler.Credit)

	return &Server{
		DB:     conn,
		Engine: engine,
		Config: config,
	}, nil
}
