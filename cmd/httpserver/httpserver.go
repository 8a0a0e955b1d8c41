// Package httpserver manages server creation and api routing.
package httpserver

import (
	"database/sql"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/internal/accountdelivery"
	"github.com/go-petr/pet-ledger/internal/accountrepo"
	"github.com/go-petr/pet-ledger/internal/accountservice"
	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/internal/jobdelivery"
	"github.com/go-petr/pet-ledger/internal/jobrepo"
	"github.com/go-petr/pet-ledger/internal/jobservice"
	"github.com/go-petr/pet-ledger/internal/ledgerdelivery"
	"github.com/go-petr/pet-ledger/internal/ledgerrepo"
	"github.com/go-petr/pet-ledger/internal/ledgerservice"
	"github.com/go-petr/pet-ledger/internal/middleware"
	"github.com/go-petr/pet-ledger/internal/userdelivery"
	"github.com/go-petr/pet-ledger/internal/userrepo"
	"github.com/go-petr/pet-ledger/internal/userservice"
	"github.com/go-petr/pet-ledger/pkg/configpkg"
	"github.com/go-petr/pet-ledger/pkg/tokenpkg"
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
//
// A nil cache disables Idempotency-Key handling on POST /transactions.
func New(conn *sql.DB, cache redis.Cmdable, logger zerolog.Logger, config configpkg.Config) (*Server, error) {
	userRepo := userrepo.NewRepoPGS(conn)
	accountRepo := accountrepo.NewRepoPGS(conn)
	ledgerRepo := ledgerrepo.NewRepoPGS(conn)
	jobRepo := jobrepo.NewRepoPGS(conn)

	tokenMaker, err := tokenpkg.New(config.TokenKind, config.TokenSymmetricKey)
	if err != nil {
		return nil, fmt.Errorf("cannot create token maker: %w", err)
	}

	userService := userservice.New(userRepo)
	accountService := accountservice.New(accountRepo)
	ledgerService := ledgerservice.New(ledgerRepo)
	jobService := jobservice.New(jobRepo)

	userHandler := userdelivery.NewHandler(userService, tokenMaker, config.AccessTokenDuration)
	accountHandler := accountdelivery.NewHandler(accountService)
	ledgerHandler := ledgerdelivery.NewHandler(ledgerService)
	jobHandler := jobdelivery.NewHandler(jobService)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(middleware.RequestLogger(logger))

	engine.POST("/users", userHandler.Create)
	engine.POST("/users/login", userHandler.Login)

	authRoutes := engine.Group("/", middleware.AuthMiddleware(tokenMaker))

	authRoutes.GET("/accounts", accountHandler.Mine)
	authRoutes.GET("/accounts/:id", accountHandler.Get)

	submit := []gin.HandlerFunc{ledgerHandler.Create}
	if cache != nil {
		submit = append([]gin.HandlerFunc{middleware.Idempotency(cache, config.IdempotencyTTL, config.IdempotencyLockTTL)}, submit...)
	}

	authRoutes.POST("/transactions", submit...)
	authRoutes.GET("/transactions", ledgerHandler.List)
	authRoutes.GET("/transactions/:id", ledgerHandler.Get)

	adminRoutes := authRoutes.Group("/admin", middleware.RequireRole(domain.RoleAdmin))

	adminRoutes.GET("/jobs/dead", jobHandler.ListDead)
	adminRoutes.POST("/jobs/:id/requeue", jobHandler.Requeue)

	server := &Server{
		DB:     conn,
		Engine: engine,
		Config: config,
	}

	return server, nil
}
