package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event is the closed union of domain events the Event Spine persists
// and the Projection folds over. EventType returns the exact string
// used as the event_type column / registry key, so the Spine's
// serializer and the Projection's dispatch never drift from each
// other. An UnknownEvent variant (see unknown.go) satisfies this
// interface too, for forward compatibility with event types this
// build does not recognise.
type Event interface {
	EventType() string
	GetAccountID() string
	GetTimestamp() time.Time
}

type eventBase struct {
	AccountID string
	Timestamp time.Time
}

func (e eventBase) GetAccountID() string     { return e.AccountID }
func (e eventBase) GetTimestamp() time.Time { return e.Timestamp }

func newEventBase(typ, accountID string, timestamp time.Time) (eventBase, error) {
	if err := requireString(typ, "account_id", accountID); err != nil {
		return eventBase{}, err
	}
	if timestamp.IsZero() {
		return eventBase{}, invalidArg(typ, "timestamp", "must be timezone-aware")
	}
	return eventBase{AccountID: accountID, Timestamp: timestamp}, nil
}

// CommandAccepted records acceptance of a TradeCommand into the
// execution pipeline. No-op on the projection.
type CommandAccepted struct {
	eventBase
	CommandID string
	TradeID   string
}

func (CommandAccepted) EventType() string { return "CommandAccepted" }

func NewCommandAccepted(accountID string, timestamp time.Time, commandID, tradeID string) (*CommandAccepted, error) {
	base, err := newEventBase("CommandAccepted", accountID, timestamp)
	if err != nil {
		return nil, err
	}
	if err := requireString("CommandAccepted", "command_id", commandID); err != nil {
		return nil, err
	}
	if err := requireString("CommandAccepted", "trade_id", tradeID); err != nil {
		return nil, err
	}
	return &CommandAccepted{eventBase: base, CommandID: commandID, TradeID: tradeID}, nil
}

// OrderSubmitIntent records the executor's intent to submit an order,
// before venue acknowledgement.
type OrderSubmitIntent struct {
	eventBase
	CommandID     string
	TradeID       string
	ClientOrderID string
	Symbol        string
	Side          OrderSide
	OrderType     OrderType
	Qty           decimal.Decimal
	Price         *decimal.Decimal
	StopPrice     *decimal.Decimal
}

func (OrderSubmitIntent) EventType() string { return "OrderSubmitIntent" }

func NewOrderSubmitIntent(
	accountID string, timestamp time.Time,
	commandID, tradeID, clientOrderID, symbol string,
	side OrderSide, orderType OrderType,
	qty decimal.Decimal, price, stopPrice *decimal.Decimal,
) (*OrderSubmitIntent, error) {
	const typ = "OrderSubmitIntent"
	base, err := newEventBase(typ, accountID, timestamp)
	if err != nil {
		return nil, err
	}
	for _, f := range []struct{ name, value string }{
		{"command_id", commandID}, {"trade_id", tradeID},
		{"client_order_id", clientOrderID}, {"symbol", symbol},
	} {
		if err := requireString(typ, f.name, f.value); err != nil {
			return nil, err
		}
	}
	if !qty.GreaterThan(decimal.Zero) {
		return nil, invalidArg(typ, "qty", "must be positive")
	}
	if price != nil && !price.GreaterThan(decimal.Zero) {
		return nil, invalidArg(typ, "price", "must be positive")
	}
	if stopPrice != nil && !stopPrice.GreaterThan(decimal.Zero) {
		return nil, invalidArg(typ, "stop_price", "must be positive")
	}
	return &OrderSubmitIntent{
		eventBase: base, CommandID: commandID, TradeID: tradeID,
		ClientOrderID: clientOrderID, Symbol: symbol, Side: side,
		OrderType: orderType, Qty: qty, Price: price, StopPrice: stopPrice,
	}, nil
}

// OrderSubmitted records successful order submission to the venue.
type OrderSubmitted struct {
	eventBase
	ClientOrderID string
	VenueOrderID  string
}

func (OrderSubmitted) EventType() string { return "OrderSubmitted" }

func NewOrderSubmitted(accountID string, timestamp time.Time, clientOrderID, venueOrderID string) (*OrderSubmitted, error) {
	const typ = "OrderSubmitted"
	base, err := newEventBase(typ, accountID, timestamp)
	if err != nil {
		return nil, err
	}
	if err := requireString(typ, "client_order_id", clientOrderID); err != nil {
		return nil, err
	}
	if err := requireString(typ, "venue_order_id", venueOrderID); err != nil {
		return nil, err
	}
	return &OrderSubmitted{eventBase: base, ClientOrderID: clientOrderID, VenueOrderID: venueOrderID}, nil
}

// OrderSubmitFailed records a failed order submission attempt (the
// order never reached the venue, e.g. a local validation or transport
// failure after retries exhausted).
type OrderSubmitFailed struct {
	eventBase
	ClientOrderID string
	Reason        string
}

func (OrderSubmitFailed) EventType() string { return "OrderSubmitFailed" }

func NewOrderSubmitFailed(accountID string, timestamp time.Time, clientOrderID, reason string) (*OrderSubmitFailed, error) {
	const typ = "OrderSubmitFailed"
	base, err := newEventBase(typ, accountID, timestamp)
	if err != nil {
		return nil, err
	}
	if err := requireString(typ, "client_order_id", clientOrderID); err != nil {
		return nil, err
	}
	if err := requireString(typ, "reason", reason); err != nil {
		return nil, err
	}
	return &OrderSubmitFailed{eventBase: base, ClientOrderID: clientOrderID, Reason: reason}, nil
}

// OrderAcked records venue acknowledgement of an order (e.g. from the
// user-data stream, independent of the submission response).
type OrderAcked struct {
	eventBase
	ClientOrderID string
	VenueOrderID  string
}

func (OrderAcked) EventType() string { return "OrderAcked" }

func NewOrderAcked(accountID string, timestamp time.Time, clientOrderID, venueOrderID string) (*OrderAcked, error) {
	const typ = "OrderAcked"
	base, err := newEventBase(typ, accountID, timestamp)
	if err != nil {
		return nil, err
	}
	if err := requireString(typ, "client_order_id", clientOrderID); err != nil {
		return nil, err
	}
	if err := requireString(typ, "venue_order_id", venueOrderID); err != nil {
		return nil, err
	}
	return &OrderAcked{eventBase: base, ClientOrderID: clientOrderID, VenueOrderID: venueOrderID}, nil
}

// FillReceived records a single execution reported by the venue.
type FillReceived struct {
	eventBase
	ClientOrderID string
	VenueOrderID  string
	VenueTradeID  string
	TradeID       string
	CommandID     string
	Symbol        string
	Side          OrderSide
	Qty           decimal.Decimal
	Price         decimal.Decimal
	Fee           decimal.Decimal
	FeeAsset      string
	IsMaker       bool
}

func (FillReceived) EventType() string { return "FillReceived" }

func NewFillReceived(
	accountID string, timestamp time.Time,
	clientOrderID, venueOrderID, venueTradeID, tradeID, commandID, symbol string,
	side OrderSide, qty, price, fee decimal.Decimal, feeAsset string, isMaker bool,
) (*FillReceived, error) {
	const typ = "FillReceived"
	base, err := newEventBase(typ, accountID, timestamp)
	if err != nil {
		return nil, err
	}
	for _, f := range []struct{ name, value string }{
		{"client_order_id", clientOrderID}, {"venue_order_id", venueOrderID},
		{"trade_id", tradeID}, {"command_id", commandID},
		{"symbol", symbol}, {"fee_asset", feeAsset},
	} {
		if err := requireString(typ, f.name, f.value); err != nil {
			return nil, err
		}
	}
	if !qty.GreaterThan(decimal.Zero) {
		return nil, invalidArg(typ, "qty", "must be positive")
	}
	if !price.GreaterThan(decimal.Zero) {
		return nil, invalidArg(typ, "price", "must be positive")
	}
	if fee.LessThan(decimal.Zero) {
		return nil, invalidArg(typ, "fee", "must be non-negative")
	}
	return &FillReceived{
		eventBase: base, ClientOrderID: clientOrderID, VenueOrderID: venueOrderID,
		VenueTradeID: venueTradeID, TradeID: tradeID, CommandID: commandID, Symbol: symbol,
		Side: side, Qty: qty, Price: price, Fee: fee, FeeAsset: feeAsset, IsMaker: isMaker,
	}, nil
}

// DedupKey mirrors Fill.DedupKey so Spine.Append can compute the same
// key from the raw event it is about to persist.
func (f *FillReceived) DedupKey() string {
	return FillDedupKey(f.VenueTradeID, f.VenueOrderID, f.Price, f.Qty, f.Timestamp)
}

// OrderRejected records a venue rejection of an order.
type OrderRejected struct {
	eventBase
	ClientOrderID string
	VenueOrderID  *string
	Reason        string
}

func (OrderRejected) EventType() string { return "OrderRejected" }

func NewOrderRejected(accountID string, timestamp time.Time, clientOrderID string, venueOrderID *string, reason string) (*OrderRejected, error) {
	const typ = "OrderRejected"
	base, err := newEventBase(typ, accountID, timestamp)
	if err != nil {
		return nil, err
	}
	if err := requireString(typ, "client_order_id", clientOrderID); err != nil {
		return nil, err
	}
	if err := requireStringOptional(typ, "venue_order_id", venueOrderID); err != nil {
		return nil, err
	}
	if err := requireString(typ, "reason", reason); err != nil {
		return nil, err
	}
	return &OrderRejected{eventBase: base, ClientOrderID: clientOrderID, VenueOrderID: venueOrderID, Reason: reason}, nil
}

// OrderCanceled records cancellation of an order.
type OrderCanceled struct {
	eventBase
	ClientOrderID string
	VenueOrderID  *string
	Reason        *string
}

func (OrderCanceled) EventType() string { return "OrderCanceled" }

func NewOrderCanceled(accountID string, timestamp time.Time, clientOrderID string, venueOrderID, reason *string) (*OrderCanceled, error) {
	const typ = "OrderCanceled"
	base, err := newEventBase(typ, accountID, timestamp)
	if err != nil {
		return nil, err
	}
	if err := requireString(typ, "client_order_id", clientOrderID); err != nil {
		return nil, err
	}
	if err := requireStringOptional(typ, "venue_order_id", venueOrderID); err != nil {
		return nil, err
	}
	if err := requireStringOptional(typ, "reason", reason); err != nil {
		return nil, err
	}
	return &OrderCanceled{eventBase: base, ClientOrderID: clientOrderID, VenueOrderID: venueOrderID, Reason: reason}, nil
}

// OrderExpired records expiration of an order.
type OrderExpired struct {
	eventBase
	ClientOrderID string
	VenueOrderID  *string
}

func (OrderExpired) EventType() string { return "OrderExpired" }

func NewOrderExpired(accountID string, timestamp time.Time, clientOrderID string, venueOrderID *string) (*OrderExpired, error) {
	const typ = "OrderExpired"
	base, err := newEventBase(typ, accountID, timestamp)
	if err != nil {
		return nil, err
	}
	if err := requireString(typ, "client_order_id", clientOrderID); err != nil {
		return nil, err
	}
	if err := requireStringOptional(typ, "venue_order_id", venueOrderID); err != nil {
		return nil, err
	}
	return &OrderExpired{eventBase: base, ClientOrderID: clientOrderID, VenueOrderID: venueOrderID}, nil
}

// TradeClosed records closure of a trade lifecycle, removing its position.
type TradeClosed struct {
	eventBase
	TradeID   string
	CommandID string
}

func (TradeClosed) EventType() string { return "TradeClosed" }

func NewTradeClosed(accountID string, timestamp time.Time, tradeID, commandID string) (*TradeClosed, error) {
	const typ = "TradeClosed"
	base, err := newEventBase(typ, accountID, timestamp)
	if err != nil {
		return nil, err
	}
	if err := requireString(typ, "trade_id", tradeID); err != nil {
		return nil, err
	}
	if err := requireString(typ, "command_id", commandID); err != nil {
		return nil, err
	}
	return &TradeClosed{eventBase: base, TradeID: tradeID, CommandID: commandID}, nil
}
