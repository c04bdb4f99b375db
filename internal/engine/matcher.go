package engine

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"spot-exchange/internal/ledger"
	"spot-exchange/internal/models"
	"spot-exchange/internal/store"
)

// Matcher walks the opposing side of the book in price-time priority and
// settles each fill. It only ever runs inside the controller's
// transaction: maker rows arrive locked FOR UPDATE and balance movements
// hold their row locks until commit.
type Matcher struct {
	ledger         *ledger.Ledger
	allowSelfTrade bool
	log            *zap.Logger
}

// NewMatcher returns a Matcher settling through the given ledger.
func NewMatcher(l *ledger.Ledger, allowSelfTrade bool, log *zap.Logger) *Matcher {
	return &Matcher{ledger: l, allowSelfTrade: allowSelfTrade, log: log}
}

// tradePrice resolves the execution price for one fill:
//   - maker LIMIT: the maker's price (price improvement goes to the taker)
//   - maker MARKET vs taker LIMIT: the taker's price
//   - both MARKET: no deterministic price exists, no trade
func tradePrice(makerPrice, takerPrice *int64) (int64, bool) {
	switch {
	case makerPrice != nil:
		return *makerPrice, true
	case takerPrice != nil:
		return *takerPrice, true
	default:
		return 0, false
	}
}

// Match fills the taker against the book until it is satisfied, the
// opposing side is exhausted, the price bound stops crossing, or a
// market buy runs out of cash. Returns the executed trades in order.
//
// maxNotional, when positive, additionally caps the cumulative cash
// spend of a MARKET BUY.
func (m *Matcher) Match(tx *sqlx.Tx, taker *models.Order, maxNotional int64) ([]models.Trade, error) {
	var (
		trades      []models.Trade
		spent       int64 // market-buy cumulative notional
		improvement int64 // limit-buy taker refund for better prices
	)

	excludeUser := ""
	if !m.allowSelfTrade {
		excludeUser = taker.UserID
	}

	marketBuy := taker.Direction == models.DirectionBuy && taker.Type == models.OrderTypeMarket

	for taker.Remaining() > 0 {
		maker, err := store.NextMaker(tx, taker.Ticker, taker.Direction.Opposite(), taker.Price, excludeUser)
		if err != nil {
			return nil, err
		}
		if maker == nil {
			break
		}

		avail := maker.Remaining()
		if avail <= 0 {
			// The query filters these out; never select one twice.
			break
		}

		price, ok := tradePrice(maker.Price, taker.Price)
		if !ok {
			// Two market orders cannot set a price.
			break
		}

		qty := taker.Remaining()
		if avail < qty {
			qty = avail
		}

		if marketBuy {
			// No cash was reserved at entry: each fill is paid out of the
			// live balance, capped so the buyer never overdraws.
			cash, err := m.ledger.Locked(tx, taker.UserID, models.CashTicker)
			if err != nil {
				return nil, err
			}
			budget := cash
			if maxNotional > 0 && maxNotional-spent < budget {
				budget = maxNotional - spent
			}
			affordable := budget / price
			if affordable <= 0 {
				break
			}
			if qty > affordable {
				qty = affordable
			}
			if err := m.ledger.Reserve(tx, taker.UserID, models.CashTicker, qty*price); err != nil {
				return nil, err
			}
			spent += qty * price
		}

		buyerID, sellerID := taker.UserID, maker.UserID
		if taker.Direction == models.DirectionSell {
			buyerID, sellerID = maker.UserID, taker.UserID
		}
		if err := m.settle(tx, buyerID, sellerID, taker.Ticker, qty, price); err != nil {
			return nil, err
		}

		// A limit buy reserved qty*limit at entry; fills below the limit
		// free the difference.
		if taker.Direction == models.DirectionBuy && taker.Type == models.OrderTypeLimit && *taker.Price > price {
			improvement += (*taker.Price - price) * qty
		}

		if err := store.ApplyFill(tx, maker, qty); err != nil {
			return nil, err
		}
		if err := store.ApplyFill(tx, taker, qty); err != nil {
			return nil, err
		}

		trade := models.Trade{
			ID:        uuid.NewString(),
			Ticker:    taker.Ticker,
			Amount:    qty,
			Price:     price,
			CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
		}
		if err := store.InsertTrade(tx, &trade); err != nil {
			return nil, err
		}
		trades = append(trades, trade)

		m.log.Info("trade executed",
			zap.String("ticker", trade.Ticker),
			zap.Int64("qty", trade.Amount),
			zap.Int64("price", trade.Price),
			zap.String("taker_order", taker.ID),
			zap.String("maker_order", maker.ID))
	}

	if improvement > 0 {
		if err := m.ledger.Refund(tx, taker.UserID, models.CashTicker, improvement); err != nil {
			return nil, err
		}
	}

	return trades, nil
}

// settle credits the buyer with the instrument and the seller with cash.
// The two balance rows are locked in lexicographic (ticker, user) order
// so concurrent mirrored trades cannot deadlock on them.
func (m *Matcher) settle(tx *sqlx.Tx, buyerID, sellerID, ticker string, qty, price int64) error {
	ops := []struct {
		userID, ticker string
		amount         int64
	}{
		{buyerID, ticker, qty},
		{sellerID, models.CashTicker, qty * price},
	}
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].ticker != ops[j].ticker {
			return ops[i].ticker < ops[j].ticker
		}
		return ops[i].userID < ops[j].userID
	})

	for _, op := range ops {
		if err := m.ledger.Credit(tx, op.userID, op.ticker, op.amount); err != nil {
			return err
		}
	}
	return nil
}
