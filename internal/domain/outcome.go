package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeOutcome is the immutable, point-in-time snapshot of command
// execution status pushed to the upstream Manager. Both intermediate
// progress and terminal completion use this type. Exactly one terminal
// outcome per CommandID is an upstream contract enforced by the
// executor (internal/executor), not by this dataclass — see spec.md §9.
type TradeOutcome struct {
	CommandID        string
	TradeID          string
	AccountID        string
	Status           TradeStatus
	TargetQty        decimal.Decimal
	FilledQty        decimal.Decimal
	AvgFillPrice     *decimal.Decimal
	SlicesCompleted  int
	SlicesTotal      int
	Reason           *string
	MissedIterations *int
	MissedReason     *string
	CreatedAt        time.Time
}

// NewTradeOutcome validates and constructs a TradeOutcome.
func NewTradeOutcome(
	commandID, tradeID, accountID string,
	status TradeStatus,
	targetQty, filledQty decimal.Decimal,
	avgFillPrice *decimal.Decimal,
	slicesCompleted, slicesTotal int,
	reason *string,
	missedIterations *int,
	missedReason *string,
	createdAt time.Time,
) (*TradeOutcome, error) {
	const typ = "TradeOutcome"

	for _, f := range []struct{ name, value string }{
		{"command_id", commandID},
		{"trade_id", tradeID},
		{"account_id", accountID},
	} {
		if err := requireString(typ, f.name, f.value); err != nil {
			return nil, err
		}
	}
	if createdAt.IsZero() {
		return nil, invalidArg(typ, "created_at", "must be set")
	}
	if !targetQty.GreaterThan(decimal.Zero) {
		return nil, invalidArg(typ, "target_qty", "must be positive")
	}
	if filledQty.LessThan(decimal.Zero) {
		return nil, invalidArg(typ, "filled_qty", "must be non-negative")
	}
	if filledQty.GreaterThan(targetQty) {
		return nil, invalidArg(typ, "filled_qty", "cannot exceed target_qty")
	}
	if avgFillPrice != nil && !avgFillPrice.GreaterThan(decimal.Zero) {
		return nil, invalidArg(typ, "avg_fill_price", "must be positive")
	}
	if filledQty.IsZero() && avgFillPrice != nil {
		return nil, invalidArg(typ, "avg_fill_price", "must be nil when filled_qty is zero")
	}
	if slicesCompleted < 0 {
		return nil, invalidArg(typ, "slices_completed", "must be non-negative")
	}
	if slicesTotal <= 0 {
		return nil, invalidArg(typ, "slices_total", "must be positive")
	}
	if slicesCompleted > slicesTotal {
		return nil, invalidArg(typ, "slices_completed", "cannot exceed slices_total")
	}
	if missedIterations != nil && *missedIterations < 0 {
		return nil, invalidArg(typ, "missed_iterations", "must be non-negative")
	}

	return &TradeOutcome{
		CommandID:        commandID,
		TradeID:          tradeID,
		AccountID:        accountID,
		Status:           status,
		TargetQty:        targetQty,
		FilledQty:        filledQty,
		AvgFillPrice:     avgFillPrice,
		SlicesCompleted:  slicesCompleted,
		SlicesTotal:      slicesTotal,
		Reason:           reason,
		MissedIterations: missedIterations,
		MissedReason:     missedReason,
		CreatedAt:        createdAt,
	}, nil
}

// IsTerminal reports whether the outcome represents a terminal trade status.
func (o *TradeOutcome) IsTerminal() bool {
	return o.Status.IsTerminal()
}

// FillRatio is the ratio of filled quantity to target quantity.
func (o *TradeOutcome) FillRatio() decimal.Decimal {
	return o.FilledQty.Div(o.TargetQty)
}
