package admin

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter builds the operational HTTP surface: liveness, readiness and the
// Prometheus scrape endpoint.
func NewRouter(db Pinger, gatherer prometheus.Gatherer, log *slog.Logger) *echo.Echo {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "admin"))

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Debug("request",
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.String("request_id", v.RequestID),
				slog.Duration("latency", v.Latency),
			)
			return nil
		},
	}))

	health := NewHealthHandler(db)
	e.GET("/health", health.Liveness)
	e.GET("/health/ready", health.Readiness)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return e
}
