package engine

import (
	"spot-exchange/internal/apperr"
	"spot-exchange/internal/models"
)

// PlaceCommand is the typed form of an order request. The raw body is
// classified exactly once, before any state changes: price present means
// LIMIT, absent means MARKET.
type PlaceCommand struct {
	UserID      string
	Type        models.OrderType
	Direction   models.Direction
	Ticker      string
	Qty         int64
	Price       int64 // meaningful for LIMIT only
	MaxNotional int64 // optional MARKET BUY spend cap, 0 = uncapped
}

// BuildPlaceCommand validates the raw body and classifies it into one of
// the four order variants.
func BuildPlaceCommand(userID string, body models.PlaceOrderBody) (PlaceCommand, error) {
	cmd := PlaceCommand{
		UserID:    userID,
		Direction: body.Direction,
		Ticker:    body.Ticker,
		Qty:       body.Qty,
	}

	if body.Direction != models.DirectionBuy && body.Direction != models.DirectionSell {
		return cmd, apperr.Newf(apperr.Validation, "direction must be BUY or SELL, got %q", body.Direction)
	}
	if body.Ticker == "" {
		return cmd, apperr.New(apperr.Validation, "ticker is required")
	}
	if body.Ticker == models.CashTicker {
		return cmd, apperr.Newf(apperr.Validation, "%s cannot be traded against itself", models.CashTicker)
	}
	if body.Qty < 1 {
		return cmd, apperr.Newf(apperr.Validation, "qty must be at least 1, got %d", body.Qty)
	}

	if body.Price != nil {
		if *body.Price < 1 {
			return cmd, apperr.Newf(apperr.Validation, "price must be at least 1, got %d", *body.Price)
		}
		cmd.Type = models.OrderTypeLimit
		cmd.Price = *body.Price
	} else {
		cmd.Type = models.OrderTypeMarket
	}

	if body.MaxNotional != nil {
		if cmd.Type != models.OrderTypeMarket || cmd.Direction != models.DirectionBuy {
			return cmd, apperr.New(apperr.Validation, "max_notional only applies to market buy orders")
		}
		if *body.MaxNotional < 1 {
			return cmd, apperr.Newf(apperr.Validation, "max_notional must be at least 1, got %d", *body.MaxNotional)
		}
		cmd.MaxNotional = *body.MaxNotional
	}

	return cmd, nil
}
