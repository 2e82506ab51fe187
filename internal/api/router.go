package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.mongodb.org/mongo-driver/mongo"

	_ "github.com/tommypurcell/autoscape-api/docs"
	"github.com/tommypurcell/autoscape-api/internal/api/handler"
	"github.com/tommypurcell/autoscape-api/internal/api/middleware"
	"github.com/tommypurcell/autoscape-api/internal/core/domain"
	"github.com/tommypurcell/autoscape-api/internal/core/ports"
)

// Deps bundles everything the router needs. Services are constructed in main
// so the video dispatcher and the HTTP layer can share them.
type Deps struct {
	DB        *mongo.Database
	Redis     *redis.Client
	JWTSecret string

	Auth     ports.AuthService
	Designs  ports.DesignService
	Resolver ports.DesignResolver
	Ledger   ports.CreditLedger
	Notifier ports.BalanceNotifier
	Videos   handler.VideoEnqueuer

	Log zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("autoscape"))

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(d.Auth)
	designHandler := handler.NewDesignHandler(d.Designs, d.Resolver, d.Videos)
	creditHandler := handler.NewCreditHandler(d.Ledger, d.Notifier)

	required := middleware.Auth(d.JWTSecret)
	optional := middleware.OptionalAuth(d.JWTSecret)

	// --- Auth routes ---
	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/login", authHandler.Login)

	// --- API v1 ---
	v1 := e.Group("/v1")

	// Generation and resolution work for anonymous devices too.
	v1.POST("/designs", designHandler.Generate, optional)
	v1.GET("/designs/:id", designHandler.Get, optional)
	v1.GET("/gallery", designHandler.Gallery)

	v1.GET("/designs", designHandler.ListOwn, required)
	v1.PATCH("/designs/:id/visibility", designHandler.Publish, required)
	v1.DELETE("/designs/:id", designHandler.Delete, required)
	v1.POST("/designs/:id/video", designHandler.RequestVideo, required)

	v1.GET("/credits", creditHandler.Balance, optional)
	v1.GET("/credits/stream", creditHandler.Stream, optional)
	v1.POST("/credits/grant", creditHandler.Grant, required, middleware.RBAC(domain.RoleAdmin))

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(d.DB, d.Redis)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?

	// --- Operational endpoints ---
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}
