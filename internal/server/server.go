package server

import (
	"context"
	"net/http"

	"paypal-billing/internal/handler"
	pbmiddleware "paypal-billing/internal/middleware"
	"paypal-billing/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Server struct {
	echo          *echo.Echo
	log           *zap.Logger
	webhookKey    string
	paypalHandler *handler.PaypalHandler
}

func NewServer(log *zap.Logger, webhookKey string, paypalService service.PaypalService) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURIPath: true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("path", v.URIPath),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			log.Info("request", fields...)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	s := &Server{
		echo:          e,
		log:           log,
		webhookKey:    webhookKey,
		paypalHandler: handler.NewPaypalHandler(log, paypalService),
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

	// -------- paypal webhooks / callbacks --------
	paypal := api.Group("/paypal", pbmiddleware.WebhookKey(s.webhookKey))
	paypal.POST("/webhook", s.paypalHandler.PayPalWebhook)
	paypal.POST("/ipn", s.paypalHandler.PayPalIPN)
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
