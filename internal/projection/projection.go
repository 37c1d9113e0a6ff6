// Package projection implements TradingState: the in-memory, pure
// derivation of positions and orders from the Event Spine (spec.md
// §4.C). It is always reconstructible from scratch by replaying
// events in sequence-number order; it never writes to the Spine and
// never raises on anomalies, only logs warnings, per spec.md §7.
package projection

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/praxis-trading/core/internal/domain"
)

// positionKey mirrors the Python projection's (trade_id, account_id) tuple key.
type positionKey struct {
	TradeID   string
	AccountID string
}

// TradingState is the per-account projection. Its maps are not safe
// for concurrent mutation (spec.md §5) — Apply must be driven serially
// by one writer per account.
type TradingState struct {
	AccountID    string
	Positions    map[positionKey]*domain.Position
	Orders       map[string]*domain.Order
	ClosedOrders map[string]*domain.Order
}

// New constructs an empty projection for an account.
func New(accountID string) (*TradingState, error) {
	if accountID == "" {
		return nil, domainInvalidArgument("TradingState.account_id must be a non-empty string")
	}
	return &TradingState{
		AccountID:    accountID,
		Positions:    make(map[positionKey]*domain.Position),
		Orders:       make(map[string]*domain.Order),
		ClosedOrders: make(map[string]*domain.Order),
	}, nil
}

// domainInvalidArgument mirrors domain's InvalidArgumentError shape
// without exporting a constructor from that package for this one
// cross-cutting case (the projection's constructor-arg check, not a
// domain value type).
func domainInvalidArgument(reason string) error {
	return &invalidArgument{reason: reason}
}

type invalidArgument struct{ reason string }

func (e *invalidArgument) Error() string { return e.reason }

// Apply updates projection state for a single event. Replaying the
// same sequence of events on an empty projection always yields the
// same resulting state (spec.md §8 replay determinism): Apply has no
// dependency on anything but its own current maps and the event.
func (t *TradingState) Apply(ctx context.Context, event domain.Event) {
	switch e := event.(type) {
	case *domain.CommandAccepted:
		return
	case *domain.OrderSubmitIntent:
		t.onOrderSubmitIntent(ctx, e)
	case *domain.OrderSubmitted:
		t.onOrderSubmitted(ctx, e)
	case *domain.OrderSubmitFailed:
		t.onOrderSubmitFailed(ctx, e)
	case *domain.OrderAcked:
		t.onOrderAcked(ctx, e)
	case *domain.FillReceived:
		t.onFillReceived(ctx, e)
	case *domain.OrderRejected:
		t.onOrderRejected(ctx, e)
	case *domain.OrderCanceled:
		t.onOrderCanceled(ctx, e)
	case *domain.OrderExpired:
		t.onOrderExpired(ctx, e)
	case *domain.TradeClosed:
		t.onTradeClosed(ctx, e)
	default:
		logWarn(ctx, "unhandled event type in apply", map[string]any{
			"event_type": event.EventType(),
			"account_id": t.AccountID,
		})
	}
}

func (t *TradingState) getOrder(ctx context.Context, eventType, clientOrderID string) *domain.Order {
	order, ok := t.Orders[clientOrderID]
	if !ok {
		logWarn(ctx, "unknown order referenced by event", map[string]any{
			"event_type":      eventType,
			"client_order_id": clientOrderID,
			"account_id":      t.AccountID,
		})
		return nil
	}
	return order
}

func (t *TradingState) onOrderSubmitIntent(ctx context.Context, e *domain.OrderSubmitIntent) {
	order, err := domain.NewOrder(
		e.ClientOrderID, nil, e.AccountID, e.CommandID, e.Symbol,
		e.Side, e.OrderType, e.Qty, decimal.Zero,
		e.Price, e.StopPrice, domain.OrderStatusSubmitting,
		e.Timestamp, e.Timestamp,
	)
	if err != nil {
		// The intent already passed construction-time validation when it
		// was created; a failure here would mean the Spine replayed a
		// corrupt record. No order is created; the intent is logged as a
		// warning and dropped, like an unknown-order reference elsewhere
		// in this file.
		logWarn(ctx, "invalid OrderSubmitIntent dropped", map[string]any{
			"client_order_id": e.ClientOrderID,
			"account_id":      t.AccountID,
			"error":           err.Error(),
		})
		return
	}
	t.Orders[e.ClientOrderID] = order
}

func (t *TradingState) onOrderSubmitted(ctx context.Context, e *domain.OrderSubmitted) {
	order := t.getOrder(ctx, "OrderSubmitted", e.ClientOrderID)
	if order == nil {
		return
	}
	v := e.VenueOrderID
	order.VenueOrderID = &v
	order.Status = domain.OrderStatusOpen
	order.UpdatedAt = e.Timestamp
}

func (t *TradingState) onOrderSubmitFailed(ctx context.Context, e *domain.OrderSubmitFailed) {
	order := t.getOrder(ctx, "OrderSubmitFailed", e.ClientOrderID)
	if order == nil {
		return
	}
	order.Status = domain.OrderStatusRejected
	order.UpdatedAt = e.Timestamp
	t.closeOrder(ctx, e.ClientOrderID)
}

func (t *TradingState) onOrderAcked(ctx context.Context, e *domain.OrderAcked) {
	order := t.getOrder(ctx, "OrderAcked", e.ClientOrderID)
	if order == nil {
		return
	}
	v := e.VenueOrderID
	order.VenueOrderID = &v
	if order.Status == domain.OrderStatusSubmitting {
		order.Status = domain.OrderStatusOpen
	}
	order.UpdatedAt = e.Timestamp
}

func (t *TradingState) onFillReceived(ctx context.Context, e *domain.FillReceived) {
	t.updateOrderOnFill(ctx, e)
	t.updatePositionOnFill(ctx, e)
}

func (t *TradingState) updateOrderOnFill(ctx context.Context, e *domain.FillReceived) {
	order := t.getOrder(ctx, "FillReceived", e.ClientOrderID)
	if order == nil {
		return
	}
	order.FilledQty = order.FilledQty.Add(e.Qty)
	order.UpdatedAt = e.Timestamp

	if order.FilledQty.GreaterThanOrEqual(order.Qty) {
		order.Status = domain.OrderStatusFilled
		t.closeOrder(ctx, e.ClientOrderID)
	} else {
		order.Status = domain.OrderStatusPartiallyFilled
	}
}

func (t *TradingState) updatePositionOnFill(ctx context.Context, e *domain.FillReceived) {
	key := positionKey{TradeID: e.TradeID, AccountID: e.AccountID}
	pos, ok := t.Positions[key]
	if !ok {
		t.Positions[key] = &domain.Position{
			AccountID:     e.AccountID,
			TradeID:       e.TradeID,
			Symbol:        e.Symbol,
			Side:          e.Side,
			Qty:           e.Qty,
			AvgEntryPrice: e.Price,
		}
		return
	}

	if e.Side == pos.Side {
		newQty := pos.Qty.Add(e.Qty)
		pos.AvgEntryPrice = pos.Qty.Mul(pos.AvgEntryPrice).Add(e.Qty.Mul(e.Price)).Div(newQty)
		pos.Qty = newQty
		return
	}

	pos.Qty = pos.Qty.Sub(e.Qty)
	if pos.Qty.IsNegative() {
		// Flagged as anomalous but tolerated rather than clamped or
		// rejected — see the open-question decision in DESIGN.md.
		logWarn(ctx, "position qty went negative", map[string]any{
			"trade_id":   e.TradeID,
			"account_id": e.AccountID,
			"qty":        pos.Qty.String(),
		})
	}
}

func (t *TradingState) onOrderRejected(ctx context.Context, e *domain.OrderRejected) {
	order := t.getOrder(ctx, "OrderRejected", e.ClientOrderID)
	if order == nil {
		return
	}
	if e.VenueOrderID != nil {
		order.VenueOrderID = e.VenueOrderID
	}
	order.Status = domain.OrderStatusRejected
	order.UpdatedAt = e.Timestamp
	t.closeOrder(ctx, e.ClientOrderID)
}

func (t *TradingState) onOrderCanceled(ctx context.Context, e *domain.OrderCanceled) {
	order := t.getOrder(ctx, "OrderCanceled", e.ClientOrderID)
	if order == nil {
		return
	}
	if e.VenueOrderID != nil {
		order.VenueOrderID = e.VenueOrderID
	}
	order.Status = domain.OrderStatusCanceled
	order.UpdatedAt = e.Timestamp
	t.closeOrder(ctx, e.ClientOrderID)
}

func (t *TradingState) onOrderExpired(ctx context.Context, e *domain.OrderExpired) {
	order := t.getOrder(ctx, "OrderExpired", e.ClientOrderID)
	if order == nil {
		return
	}
	if e.VenueOrderID != nil {
		order.VenueOrderID = e.VenueOrderID
	}
	order.Status = domain.OrderStatusExpired
	order.UpdatedAt = e.Timestamp
	t.closeOrder(ctx, e.ClientOrderID)
}

func (t *TradingState) onTradeClosed(ctx context.Context, e *domain.TradeClosed) {
	key := positionKey{TradeID: e.TradeID, AccountID: t.AccountID}
	if _, ok := t.Positions[key]; !ok {
		logWarn(ctx, "no position for TradeClosed", map[string]any{
			"trade_id":   e.TradeID,
			"account_id": t.AccountID,
		})
		return
	}
	delete(t.Positions, key)
}

func (t *TradingState) closeOrder(ctx context.Context, clientOrderID string) {
	order, ok := t.Orders[clientOrderID]
	if !ok {
		logWarn(ctx, "closeOrder called for unknown order", map[string]any{
			"client_order_id": clientOrderID,
			"account_id":      t.AccountID,
		})
		return
	}
	delete(t.Orders, clientOrderID)
	t.ClosedOrders[clientOrderID] = order
}
