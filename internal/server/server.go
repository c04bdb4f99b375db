// Package server is the HTTP surface in front of the exchange core.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/VictoriaMetrics/metrics"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"spot-exchange/internal/apperr"
	"spot-exchange/internal/engine"
)

// Server serves the JSON API.
type Server struct {
	echo   *echo.Echo
	engine *engine.Engine
	db     *sqlx.DB
	log    *zap.Logger
}

// bodyValidator plugs go-playground/validator into echo's binding.
type bodyValidator struct {
	validate *validator.Validate
}

func (v *bodyValidator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return apperr.Wrap(apperr.Validation, err, "invalid request body")
	}
	return nil
}

// New wires routes, middleware and error handling.
func New(eng *engine.Engine, conn *sqlx.DB, log *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &bodyValidator{validate: validator.New()}

	s := &Server{echo: e, engine: eng, db: conn, log: log}
	e.HTTPErrorHandler = s.handleError
	e.Use(s.countRequests)
	e.Use(s.logRequests)

	e.GET("/", s.root)
	e.GET("/health", s.health)
	e.GET("/metrics", s.metrics)

	api := e.Group("/api/v1")

	public := api.Group("/public")
	public.POST("/register", s.register)
	public.GET("/instrument", s.listInstruments)
	public.GET("/orderbook/:ticker", s.orderbook)
	public.GET("/transactions/:ticker", s.transactions)

	user := api.Group("", s.requireUser)
	user.GET("/balance", s.balances)
	user.POST("/order", s.placeOrder)
	user.GET("/orders", s.listOrders)
	user.GET("/order/:id", s.getOrder)
	user.DELETE("/order/:id", s.cancelOrder)

	admin := api.Group("/admin", s.requireUser, s.requireAdmin)
	admin.POST("/instrument", s.createInstrument)
	admin.DELETE("/instrument/:ticker", s.deleteInstrument)
	admin.POST("/balance/deposit", s.deposit)
	admin.POST("/balance/withdraw", s.withdraw)
	admin.DELETE("/user/:user_id", s.deleteUser)

	return s
}

// Start begins serving on addr and blocks.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// handleError maps typed errors onto status codes with a FastAPI-style
// {"detail": ...} body.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	detail := "internal server error"

	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		detail = fmt.Sprintf("%v", he.Message)
	} else {
		kind := apperr.KindOf(err)
		status = apperr.HTTPStatus(kind)
		if kind == apperr.Internal {
			s.log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
		} else {
			detail = apperr.Message(err)
		}
	}

	if err := c.JSON(status, map[string]string{"detail": detail}); err != nil {
		s.log.Error("writing error response", zap.Error(err))
	}
}

// countRequests increments per-path and total request counters.
func (s *Server) countRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		metrics.GetOrCreateCounter(fmt.Sprintf(`requests_total{path=%q}`, c.Path())).Inc()
		metrics.GetOrCreateCounter(`request_total`).Inc()
		return next(c)
	}
}

// logRequests logs one line per request.
func (s *Server) logRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		s.log.Info("request",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Request().URL.Path),
			zap.Int("status", c.Response().Status))
		return err
	}
}

func (s *Server) root(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"name":    "spot-exchange",
		"version": "0.1",
	})
}

func (s *Server) health(c echo.Context) error {
	if err := s.db.Ping(); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) metrics(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderContentType, "text/plain; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	metrics.WritePrometheus(c.Response(), true)
	return nil
}
