package models

import "time"

// CashTicker is the reserved ticker that denominates prices. Every trade
// settles qty units of the instrument against qty*price units of cash.
const CashTicker = "CASH"

// Role controls access to the admin surface.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// User is an account holder identified by its api_key.
type User struct {
	ID     string `db:"id" json:"id"`
	Name   string `db:"name" json:"name"`
	Role   Role   `db:"role" json:"role"`
	APIKey string `db:"api_key" json:"api_key"`
}

// Instrument is a tradable asset listed by an admin.
type Instrument struct {
	Ticker string `db:"ticker" json:"ticker"`
	Name   string `db:"name" json:"name"`
}

// Balance is the amount of one asset held by one user. Amount is always
// non-negative; a reservation is an immediate debit, so reserved funds
// are never part of Amount.
type Balance struct {
	UserID string `db:"user_id" json:"user_id"`
	Ticker string `db:"ticker" json:"ticker"`
	Amount int64  `db:"amount" json:"amount"`
}

// Direction is the side of an order.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// Opposite returns the other side of the book.
func (d Direction) Opposite() Direction {
	if d == DirectionBuy {
		return DirectionSell
	}
	return DirectionBuy
}

// OrderType distinguishes limit orders (price given) from market orders.
type OrderType string

const (
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeMarket OrderType = "MARKET"
)

// OrderStatus is the order's lifecycle state. Transitions:
// NEW -> PARTIALLY_EXECUTED -> EXECUTED, or {NEW, PARTIALLY_EXECUTED} -> CANCELLED.
type OrderStatus string

const (
	OrderStatusNew               OrderStatus = "NEW"
	OrderStatusPartiallyExecuted OrderStatus = "PARTIALLY_EXECUTED"
	OrderStatusExecuted          OrderStatus = "EXECUTED"
	OrderStatusCancelled         OrderStatus = "CANCELLED"
)

// Open reports whether the order is still on the book.
func (s OrderStatus) Open() bool {
	return s == OrderStatusNew || s == OrderStatusPartiallyExecuted
}

// Terminal reports whether the order can no longer change.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusExecuted || s == OrderStatusCancelled
}

// Order is a buy or sell instruction. Price is nil for market orders.
// Invariant: 0 <= Filled <= Qty, and Status == EXECUTED iff Filled == Qty.
type Order struct {
	ID        string      `db:"id" json:"id"`
	UserID    string      `db:"user_id" json:"user_id"`
	Type      OrderType   `db:"type" json:"type"`
	Direction Direction   `db:"direction" json:"direction"`
	Ticker    string      `db:"ticker" json:"ticker"`
	Qty       int64       `db:"qty" json:"qty"`
	Price     *int64      `db:"price" json:"price,omitempty"`
	Status    OrderStatus `db:"status" json:"status"`
	Filled    int64       `db:"filled" json:"filled"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
}

// Remaining is the unfilled quantity.
func (o *Order) Remaining() int64 {
	return o.Qty - o.Filled
}

// Trade is one executed fill. Amount is the traded quantity; the
// counterparties are encoded in the paired balance movements, not here.
type Trade struct {
	ID        string    `db:"id" json:"id"`
	Ticker    string    `db:"ticker" json:"ticker"`
	Amount    int64     `db:"amount" json:"amount"`
	Price     int64     `db:"price" json:"price"`
	CreatedAt time.Time `db:"created_at" json:"timestamp"`
}
