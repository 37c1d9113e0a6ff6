package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order tracks a single venue order through its lifecycle, from
// SUBMITTING intent through a terminal status. Orders are mutable —
// mutation is the projection's job (internal/projection), not this
// type's. The constructor here only enforces the invariants that must
// hold at every observable point.
type Order struct {
	ClientOrderID string
	VenueOrderID  *string
	AccountID     string
	CommandID     string
	Symbol        string
	Side          OrderSide
	OrderType     OrderType
	Qty           decimal.Decimal
	FilledQty     decimal.Decimal
	Price         *decimal.Decimal
	StopPrice     *decimal.Decimal
	Status        OrderStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewOrder validates and constructs an Order. It is the only supported
// construction path; the projection (internal/projection) builds every
// Order through it and then mutates the returned value in place.
func NewOrder(
	clientOrderID string,
	venueOrderID *string,
	accountID, commandID, symbol string,
	side OrderSide,
	orderType OrderType,
	qty, filledQty decimal.Decimal,
	price, stopPrice *decimal.Decimal,
	status OrderStatus,
	createdAt, updatedAt time.Time,
) (*Order, error) {
	const typ = "Order"

	if err := requireString(typ, "client_order_id", clientOrderID); err != nil {
		return nil, err
	}
	if err := requireString(typ, "account_id", accountID); err != nil {
		return nil, err
	}
	if err := requireString(typ, "command_id", commandID); err != nil {
		return nil, err
	}
	if err := requireString(typ, "symbol", symbol); err != nil {
		return nil, err
	}
	if createdAt.IsZero() {
		return nil, invalidArg(typ, "created_at", "must be set")
	}
	if updatedAt.IsZero() {
		return nil, invalidArg(typ, "updated_at", "must be set")
	}
	if !qty.GreaterThan(decimal.Zero) {
		return nil, invalidArg(typ, "qty", "must be positive")
	}
	if filledQty.LessThan(decimal.Zero) {
		return nil, invalidArg(typ, "filled_qty", "must be non-negative")
	}
	if filledQty.GreaterThan(qty) {
		return nil, invalidArg(typ, "filled_qty", "cannot exceed qty")
	}
	if orderType == OrderTypeMarket && price != nil {
		return nil, invalidArg(typ, "price", "must be nil for MARKET orders")
	}
	if price != nil && price.LessThan(decimal.Zero) {
		return nil, invalidArg(typ, "price", "must be non-negative")
	}
	if stopPrice != nil && stopPrice.LessThan(decimal.Zero) {
		return nil, invalidArg(typ, "stop_price", "must be non-negative")
	}

	return &Order{
		ClientOrderID: clientOrderID,
		VenueOrderID:  venueOrderID,
		AccountID:     accountID,
		CommandID:     commandID,
		Symbol:        symbol,
		Side:          side,
		OrderType:     orderType,
		Qty:           qty,
		FilledQty:     filledQty,
		Price:         price,
		StopPrice:     stopPrice,
		Status:        status,
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}, nil
}

// IsTerminal reports whether the order has reached a terminal status.
func (o *Order) IsTerminal() bool {
	return o.Status.IsTerminal()
}

// RemainingQty is the unfilled quantity.
func (o *Order) RemainingQty() decimal.Decimal {
	return o.Qty.Sub(o.FilledQty)
}
