package http

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jrjocham/apihub/internal/dedupe"
	"github.com/jrjocham/apihub/internal/http/middleware"
	"github.com/jrjocham/apihub/internal/metrics"
)

const HealthText = "API Hub is running!"

type Deps struct {
	Router   Router
	Dedupe   dedupe.Store     // nil disables re-delivery checks
	Commands CommandPublisher // nil leaves /whatsapp/commands unregistered
	Log      *zap.Logger
	LogLevel string
}

type Server struct {
	e   *echo.Echo
	log *zap.Logger
}

func NewServer(d Deps) *Server {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}

	// echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(echoLogLevel(d.LogLevel))
	e.HTTPErrorHandler = errorHandler(e, d.Log)
	e.Use(
		echoMid.Recover(),
		echoMid.RequestIDWithConfig(echoMid.RequestIDConfig{Generator: uuid.NewString}),
		echoMid.Logger(),
	)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/", func(c echo.Context) error { return c.String(http.StatusOK, HealthText) })
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// middlewares
	dedupeMW := middleware.DedupeMiddleware(middleware.DedupeConfig{
		Store:       d.Dedupe,
		Log:         d.Log,
		OnDuplicate: func(c echo.Context) error { return reply(c) },
	})

	// routes
	e.POST("/whatsapp", whatsappHandler(d.Router), dedupeMW)
	if d.Commands != nil {
		e.POST("/whatsapp/commands", commandsHandler(d.Commands), dedupeMW)
	}

	return &Server{e: e, log: d.Log}
}

func echoLogLevel(level string) log.Lvl {
	switch level {
	case "debug":
		return log.DEBUG
	case "warn":
		return log.WARN
	case "error":
		return log.ERROR
	default:
		return log.INFO
	}
}

// Handler exposes the router for in-process use.
func (s *Server) Handler() http.Handler { return s.e }

func (s *Server) Start(addr string) error {
	s.log.Info("http: listening", zap.String("addr", addr))
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
