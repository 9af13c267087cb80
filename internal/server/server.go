package server

import (
	"context"
	"iap-entitlement-service/internal/handler"
	"iap-entitlement-service/internal/metrics"
	authmw "iap-entitlement-service/internal/middleware"
	"iap-entitlement-service/internal/service"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Server struct {
	echo            *echo.Echo
	log             *zap.Logger
	jwtSecret       string
	purchaseHandler *handler.PurchaseHandler
	packageHandler  *handler.PackageHandler
	userHandler     *handler.UserHandler
}

type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

func NewServer(
	purchaseService service.PurchaseService,
	catalog service.CatalogResolver,
	userService service.UserService,
	jwtSecret string,
	log *zap.Logger,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{validate: validator.New()}
	e.HTTPErrorHandler = handler.ErrorHandler(log)

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("http_request",
				zap.String("request_id", v.RequestID),
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(metrics.Middleware())

	s := &Server{
		echo:            e,
		log:             log,
		jwtSecret:       jwtSecret,
		purchaseHandler: handler.NewPurchaseHandler(purchaseService),
		packageHandler:  handler.NewPackageHandler(catalog),
		userHandler:     handler.NewUserHandler(userService),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api.GET("/packages", s.packageHandler.ListPackages)

	auth := api.Group("", authmw.AuthMiddleware(s.jwtSecret))
	auth.GET("/me", s.userHandler.GetAccount)

	purchases := auth.Group("/purchases")
	purchases.POST("/verify", s.purchaseHandler.VerifyPurchase)
	purchases.POST("/points", s.purchaseHandler.AddPoints)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
