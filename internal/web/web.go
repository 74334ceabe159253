// Package web contains the web front-end.
package web

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/swapshelf/swapshelf/internal/config"
	"github.com/swapshelf/swapshelf/internal/observability"
	"github.com/swapshelf/swapshelf/internal/sec"
	"github.com/swapshelf/swapshelf/internal/storage"
)

// sessionKey is the echo context key holding the request's [sec.RequestContext].
const sessionKey = "session"

// New creates a web front-end server. Every application route runs behind
// the session middleware, so a handler always has an identity-stamped
// database connection at hand.
func New(
	cfg *config.Config,
	logger *slog.Logger,
	pool sec.ConnPool,
	users storage.Users,
) *echo.Echo {
	srv := echo.New()

	srv.HideBanner = true
	srv.HidePort = true
	srv.Logger.SetLevel(log.OFF)
	srv.HTTPErrorHandler = errorHandler(logger)

	srv.Use(middleware.Recover())
	if cfg.DevMode {
		srv.Debug = true
		srv.Use(logRequests(logger))
	}
	srv.Use(
		middleware.Decompress(),
		middleware.Gzip(),
		middleware.Secure(),
		middleware.RequestID(),
		countRequests(),
	)

	srv.GET("/healthz", func(c echo.Context) error {
		return c.NoContent(200)
	})
	if cfg.Metrics.Enabled {
		srv.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.Handler()))
	}

	app := srv.Group("", bindSession(sec.NewBinder(pool, users)))
	handler{}.register(app)
	return srv
}

// bindSession resolves the request credential, authenticates it, and leases
// an identity-stamped database connection for the lifetime of the request.
// Handlers never see a request whose session failed to bind.
func bindSession(binder *sec.Binder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rc, err := binder.Bind(c.Request())
			if err != nil {
				return err
			}
			defer rc.Conn.Release()

			if rc.User != nil {
				ctx := sec.WithIdentity(c.Request().Context(), rc.User)
				c.SetRequest(c.Request().WithContext(ctx))
			}
			c.Set(sessionKey, rc)
			return next(c)
		}
	}
}

// session returns the bound request context. It only exists on routes behind
// [bindSession].
func session(c echo.Context) *sec.RequestContext {
	rc, _ := c.Get(sessionKey).(*sec.RequestContext)
	return rc
}

func countRequests() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			observability.RequestsTotal.WithLabelValues(
				c.Request().Method,
				strconv.Itoa(c.Response().Status),
			).Inc()
			return err
		}
	}
}

func logRequests(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			latency := time.Since(start)

			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			attrs := []slog.Attr{
				slog.String("method", req.Method),
				slog.String("uri", req.RequestURI),
				slog.String("route", c.Path()),
				slog.Duration("latency", latency),
				slog.Int("status", res.Status),
			}
			if err != nil {
				attrs = append(attrs, slog.Any("error", err))
			}
			logger.LogAttrs(
				req.Context(),
				slog.LevelDebug,
				"request handled",
				attrs...,
			)
			return err
		}
	}
}
