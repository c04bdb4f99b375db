package models

import "time"

// Wire shapes for the HTTP surface.

// RegisterRequest creates a new user account.
type RegisterRequest struct {
	Name string `json:"name" validate:"required,min=3"`
}

// PlaceOrderBody is the raw order payload. The presence of price decides
// whether the order is a limit or a market order. MaxNotional optionally
// caps the cumulative cash spend of a market buy.
type PlaceOrderBody struct {
	Direction   Direction `json:"direction" validate:"required,oneof=BUY SELL"`
	Ticker      string    `json:"ticker" validate:"required"`
	Qty         int64     `json:"qty" validate:"required,gte=1"`
	Price       *int64    `json:"price,omitempty" validate:"omitempty,gte=1"`
	MaxNotional *int64    `json:"max_notional,omitempty" validate:"omitempty,gte=1"`
}

// CreateOrderResponse acknowledges a placed order.
type CreateOrderResponse struct {
	Success bool   `json:"success"`
	OrderID string `json:"order_id"`
}

// Ok is the generic success response.
type Ok struct {
	Success bool `json:"success"`
}

// Level is one aggregated price level of the book.
type Level struct {
	Price int64 `db:"price" json:"price"`
	Qty   int64 `db:"qty" json:"qty"`
}

// L2OrderBook is the top-K view of both sides: bids descending, asks
// ascending.
type L2OrderBook struct {
	BidLevels []Level `json:"bid_levels"`
	AskLevels []Level `json:"ask_levels"`
}

// OrderBody is the order payload echoed back inside OrderOut.
type OrderBody struct {
	Direction Direction `json:"direction"`
	Ticker    string    `json:"ticker"`
	Qty       int64     `json:"qty"`
	Price     *int64    `json:"price,omitempty"`
}

// OrderOut is the order detail shape returned to callers.
type OrderOut struct {
	ID        string      `json:"id"`
	Status    OrderStatus `json:"status"`
	UserID    string      `json:"user_id"`
	Timestamp time.Time   `json:"timestamp"`
	Body      OrderBody   `json:"body"`
	Filled    int64       `json:"filled"`
}

// ToOut converts an order record into its wire shape.
func (o *Order) ToOut() OrderOut {
	return OrderOut{
		ID:        o.ID,
		Status:    o.Status,
		UserID:    o.UserID,
		Timestamp: o.CreatedAt,
		Body: OrderBody{
			Direction: o.Direction,
			Ticker:    o.Ticker,
			Qty:       o.Qty,
			Price:     o.Price,
		},
		Filled: o.Filled,
	}
}

// BalanceOpRequest is the admin deposit/withdraw payload.
type BalanceOpRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Ticker string `json:"ticker" validate:"required"`
	Amount int64  `json:"amount" validate:"required,gte=1"`
}

// InstrumentRequest is the admin instrument-creation payload.
type InstrumentRequest struct {
	Ticker string `json:"ticker" validate:"required,uppercase,min=1,max=16"`
	Name   string `json:"name" validate:"required"`
}
