package domain

import "github.com/shopspring/decimal"

// Position is the mutable, per-(trade_id, account_id) aggregate built
// from fills. Created on the first fill, destroyed on TradeClosed.
// Mutation is the projection's job; this type just carries the state
// and its one derived query.
type Position struct {
	AccountID     string
	TradeID       string
	Symbol        string
	Side          OrderSide
	Qty           decimal.Decimal
	AvgEntryPrice decimal.Decimal
}

// IsClosed reports whether the position quantity has reached zero.
func (p *Position) IsClosed() bool {
	return p.Qty.IsZero()
}
