package server

import (
	"net/http"
	"strconv"

	"github.com/VictoriaMetrics/metrics"
	"github.com/labstack/echo/v4"

	"spot-exchange/internal/engine"
	"spot-exchange/internal/models"
)

// --- public ---

func (s *Server) register(c echo.Context) error {
	var body models.RegisterRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON")
	}
	if err := c.Validate(&body); err != nil {
		return err
	}

	user, err := s.engine.Register(c.Request().Context(), body.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

func (s *Server) listInstruments(c echo.Context) error {
	instruments, err := s.engine.Instruments(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, instruments)
}

func (s *Server) orderbook(c echo.Context) error {
	depth := intQuery(c, "limit", 10)
	book, err := s.engine.Book(c.Request().Context(), c.Param("ticker"), depth)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, book)
}

func (s *Server) transactions(c echo.Context) error {
	limit := intQuery(c, "limit", 10)
	trades, err := s.engine.Trades(c.Request().Context(), c.Param("ticker"), limit)
	if err != nil {
		return err
	}
	if trades == nil {
		trades = []models.Trade{}
	}
	return c.JSON(http.StatusOK, trades)
}

// --- user ---

func (s *Server) balances(c echo.Context) error {
	out, err := s.engine.Balances(c.Request().Context(), currentUser(c).ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) placeOrder(c echo.Context) error {
	var body models.PlaceOrderBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON")
	}
	if err := c.Validate(&body); err != nil {
		return err
	}

	cmd, err := engine.BuildPlaceCommand(currentUser(c).ID, body)
	if err != nil {
		return err
	}

	order, trades, err := s.engine.PlaceOrder(c.Request().Context(), cmd)
	if err != nil {
		return err
	}

	metrics.GetOrCreateCounter(`orders_placed_total`).Inc()
	metrics.GetOrCreateCounter(`trades_executed_total`).Add(len(trades))

	return c.JSON(http.StatusOK, models.CreateOrderResponse{Success: true, OrderID: order.ID})
}

func (s *Server) listOrders(c echo.Context) error {
	orders, err := s.engine.Orders(c.Request().Context(), currentUser(c).ID)
	if err != nil {
		return err
	}

	out := make([]models.OrderOut, 0, len(orders))
	for i := range orders {
		out = append(out, orders[i].ToOut())
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) getOrder(c echo.Context) error {
	order, err := s.engine.Order(c.Request().Context(), c.Param("id"), currentUser(c).ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, order.ToOut())
}

func (s *Server) cancelOrder(c echo.Context) error {
	_, err := s.engine.CancelOrder(c.Request().Context(), c.Param("id"), currentUser(c).ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models.Ok{Success: true})
}

// --- admin ---

func (s *Server) createInstrument(c echo.Context) error {
	var body models.InstrumentRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON")
	}
	if err := c.Validate(&body); err != nil {
		return err
	}

	inst := &models.Instrument{Ticker: body.Ticker, Name: body.Name}
	if err := s.engine.CreateInstrument(c.Request().Context(), inst); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models.Ok{Success: true})
}

func (s *Server) deleteInstrument(c echo.Context) error {
	if err := s.engine.DeleteInstrument(c.Request().Context(), c.Param("ticker")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models.Ok{Success: true})
}

func (s *Server) deposit(c echo.Context) error {
	var body models.BalanceOpRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON")
	}
	if err := c.Validate(&body); err != nil {
		return err
	}

	if err := s.engine.Deposit(c.Request().Context(), body.UserID, body.Ticker, body.Amount); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models.Ok{Success: true})
}

func (s *Server) withdraw(c echo.Context) error {
	var body models.BalanceOpRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON")
	}
	if err := c.Validate(&body); err != nil {
		return err
	}

	if err := s.engine.Withdraw(c.Request().Context(), body.UserID, body.Ticker, body.Amount); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models.Ok{Success: true})
}

func (s *Server) deleteUser(c echo.Context) error {
	snapshot, err := s.engine.DeleteUser(c.Request().Context(), c.Param("user_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, snapshot)
}

// intQuery parses a positive integer query parameter with a default.
func intQuery(c echo.Context, name string, def int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}
