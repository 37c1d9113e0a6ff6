package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SingleShotParams carries the optional price fields for the
// SINGLE_SHOT execution mode. Other execution modes (BRACKET, TWAP,
// SCHEDULED_VWAP, ICEBERG, TIME_DCA, LADDER_DCA) are enumerated in
// ExecutionMode but have no defined parameter type — strategies that
// use them are out of scope for this core (spec Non-goal).
type SingleShotParams struct {
	Price          *decimal.Decimal
	StopPrice      *decimal.Decimal
	StopLimitPrice *decimal.Decimal
}

// NewSingleShotParams validates and constructs SingleShotParams.
func NewSingleShotParams(price, stopPrice, stopLimitPrice *decimal.Decimal) (SingleShotParams, error) {
	const typ = "SingleShotParams"
	for _, f := range []struct {
		name  string
		value *decimal.Decimal
	}{
		{"price", price},
		{"stop_price", stopPrice},
		{"stop_limit_price", stopLimitPrice},
	} {
		if f.value != nil && !f.value.GreaterThan(decimal.Zero) {
			return SingleShotParams{}, invalidArg(typ, f.name, "must be positive")
		}
	}
	return SingleShotParams{Price: price, StopPrice: stopPrice, StopLimitPrice: stopLimitPrice}, nil
}

// TradeCommand is an immutable execution instruction from the upstream
// Manager. The Trading sub-system assigns CommandID; TradeCommand is
// never mutated after construction.
type TradeCommand struct {
	CommandID        string
	TradeID          string
	AccountID        string
	Symbol           string
	Side             OrderSide
	Qty              decimal.Decimal
	OrderType        OrderType
	ExecutionMode    ExecutionMode
	ExecutionParams  SingleShotParams
	Timeout          time.Duration
	ReferencePrice   *decimal.Decimal
	MakerPreference  MakerPreference
	STPMode          STPMode
	CreatedAt        time.Time
}

// NewTradeCommand validates and constructs a TradeCommand.
func NewTradeCommand(
	commandID, tradeID, accountID, symbol string,
	side OrderSide,
	qty decimal.Decimal,
	orderType OrderType,
	executionMode ExecutionMode,
	executionParams SingleShotParams,
	timeout time.Duration,
	referencePrice *decimal.Decimal,
	makerPreference MakerPreference,
	stpMode STPMode,
	createdAt time.Time,
) (*TradeCommand, error) {
	const typ = "TradeCommand"

	for _, f := range []struct{ name, value string }{
		{"command_id", commandID},
		{"trade_id", tradeID},
		{"account_id", accountID},
		{"symbol", symbol},
	} {
		if err := requireString(typ, f.name, f.value); err != nil {
			return nil, err
		}
	}
	if !qty.GreaterThan(decimal.Zero) {
		return nil, invalidArg(typ, "qty", "must be positive")
	}
	if timeout <= 0 {
		return nil, invalidArg(typ, "timeout", "must be positive")
	}
	if referencePrice != nil && !referencePrice.GreaterThan(decimal.Zero) {
		return nil, invalidArg(typ, "reference_price", "must be positive")
	}
	if createdAt.IsZero() {
		return nil, invalidArg(typ, "created_at", "must be set")
	}
	if !side.Valid() {
		return nil, invalidArg(typ, "side", "unknown OrderSide")
	}
	if !orderType.Valid() {
		return nil, invalidArg(typ, "order_type", "unknown OrderType")
	}
	if !executionMode.Valid() {
		return nil, invalidArg(typ, "execution_mode", "unknown ExecutionMode")
	}
	if !makerPreference.Valid() {
		return nil, invalidArg(typ, "maker_preference", "unknown MakerPreference")
	}
	if !stpMode.Valid() {
		return nil, invalidArg(typ, "stp_mode", "unknown STPMode")
	}

	return &TradeCommand{
		CommandID:       commandID,
		TradeID:         tradeID,
		AccountID:       accountID,
		Symbol:          symbol,
		Side:            side,
		Qty:             qty,
		OrderType:       orderType,
		ExecutionMode:   executionMode,
		ExecutionParams: executionParams,
		Timeout:         timeout,
		ReferencePrice:  referencePrice,
		MakerPreference: makerPreference,
		STPMode:         stpMode,
		CreatedAt:       createdAt,
	}, nil
}
