package engine

import (
	"testing"

	"github.com/matryer/is"

	"spot-exchange/internal/apperr"
	"spot-exchange/internal/models"
)

func int64p(v int64) *int64 { return &v }

func TestBuildPlaceCommandClassification(t *testing.T) {
	is := is.New(t)

	// Price present means LIMIT.
	cmd, err := BuildPlaceCommand("u1", models.PlaceOrderBody{
		Direction: models.DirectionBuy, Ticker: "BTC", Qty: 5, Price: int64p(100),
	})
	is.NoErr(err)
	is.Equal(cmd.Type, models.OrderTypeLimit)
	is.Equal(cmd.Price, int64(100))
	is.Equal(cmd.Qty, int64(5))

	// Price absent means MARKET.
	cmd, err = BuildPlaceCommand("u1", models.PlaceOrderBody{
		Direction: models.DirectionSell, Ticker: "BTC", Qty: 3,
	})
	is.NoErr(err)
	is.Equal(cmd.Type, models.OrderTypeMarket)
	is.Equal(cmd.Price, int64(0))
}

func TestBuildPlaceCommandRejects(t *testing.T) {
	cases := []struct {
		name string
		body models.PlaceOrderBody
	}{
		{"bad direction", models.PlaceOrderBody{Direction: "HOLD", Ticker: "BTC", Qty: 1}},
		{"missing ticker", models.PlaceOrderBody{Direction: models.DirectionBuy, Qty: 1}},
		{"cash ticker", models.PlaceOrderBody{Direction: models.DirectionBuy, Ticker: models.CashTicker, Qty: 1}},
		{"zero qty", models.PlaceOrderBody{Direction: models.DirectionBuy, Ticker: "BTC", Qty: 0}},
		{"negative qty", models.PlaceOrderBody{Direction: models.DirectionSell, Ticker: "BTC", Qty: -2}},
		{"zero price", models.PlaceOrderBody{Direction: models.DirectionBuy, Ticker: "BTC", Qty: 1, Price: int64p(0)}},
		{"max_notional on limit", models.PlaceOrderBody{Direction: models.DirectionBuy, Ticker: "BTC", Qty: 1, Price: int64p(10), MaxNotional: int64p(50)}},
		{"max_notional on market sell", models.PlaceOrderBody{Direction: models.DirectionSell, Ticker: "BTC", Qty: 1, MaxNotional: int64p(50)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			is := is.New(t)
			_, err := BuildPlaceCommand("u1", tc.body)
			is.True(err != nil)
			is.Equal(apperr.KindOf(err), apperr.Validation)
		})
	}
}

func TestBuildPlaceCommandMaxNotional(t *testing.T) {
	is := is.New(t)

	cmd, err := BuildPlaceCommand("u1", models.PlaceOrderBody{
		Direction: models.DirectionBuy, Ticker: "BTC", Qty: 4, MaxNotional: int64p(250),
	})
	is.NoErr(err)
	is.Equal(cmd.Type, models.OrderTypeMarket)
	is.Equal(cmd.MaxNotional, int64(250))
}
