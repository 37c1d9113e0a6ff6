package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestNewOrder_RejectsPriceOnMarketOrder(t *testing.T) {
	price := dec("100")
	_, err := NewOrder(
		"cid-1", nil, "acct-1", "cmd-1", "BTCUSDT",
		SideBuy, OrderTypeMarket,
		dec("1"), dec("0"), &price, nil,
		OrderStatusOpen, time.Now(), time.Now(),
	)
	require.Error(t, err)
	var invalidArg *InvalidArgumentError
	require.ErrorAs(t, err, &invalidArg)
	assert.Equal(t, "price", invalidArg.Field)
}

func TestNewOrder_RejectsFilledQtyExceedingQty(t *testing.T) {
	_, err := NewOrder(
		"cid-1", nil, "acct-1", "cmd-1", "BTCUSDT",
		SideBuy, OrderTypeLimit,
		dec("1"), dec("2"), nil, nil,
		OrderStatusOpen, time.Now(), time.Now(),
	)
	require.Error(t, err)
	var invalidArg *InvalidArgumentError
	require.ErrorAs(t, err, &invalidArg)
	assert.Equal(t, "filled_qty", invalidArg.Field)
}

func TestOrder_RemainingQtyAndTerminal(t *testing.T) {
	order, err := NewOrder(
		"cid-1", nil, "acct-1", "cmd-1", "BTCUSDT",
		SideBuy, OrderTypeLimit,
		dec("10"), dec("4"), nil, nil,
		OrderStatusPartiallyFilled, time.Now(), time.Now(),
	)
	require.NoError(t, err)
	assert.True(t, dec("6").Equal(order.RemainingQty()))
	assert.False(t, order.IsTerminal())

	order.Status = OrderStatusFilled
	assert.True(t, order.IsTerminal())
}

func TestPosition_IsClosed(t *testing.T) {
	pos := &Position{Qty: decimal.Zero}
	assert.True(t, pos.IsClosed())
	pos.Qty = dec("0.5")
	assert.False(t, pos.IsClosed())
}

func TestNewFill_RejectsNonPositiveQty(t *testing.T) {
	_, err := NewFill(
		"t-1", "o-1", "cid-1", "acct-1", "trade-1", "cmd-1", "BTCUSDT",
		SideBuy, decimal.Zero, dec("100"), decimal.Zero, "USDT", false, time.Now(),
	)
	require.Error(t, err)
	var invalidArg *InvalidArgumentError
	require.ErrorAs(t, err, &invalidArg)
	assert.Equal(t, "qty", invalidArg.Field)
}

func TestFillDedupKey_PrefersVenueTradeID(t *testing.T) {
	key := FillDedupKey("99", "order-1", dec("100"), dec("1"), time.Now())
	assert.Equal(t, "99", key)
}

func TestFillDedupKey_CompositeFallbackIsStableAndDistinguishing(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	keyA := FillDedupKey("", "order-1", dec("100"), dec("1"), ts)
	keyB := FillDedupKey("", "order-1", dec("100"), dec("1"), ts)
	assert.Equal(t, keyA, keyB, "identical inputs must hash identically")

	keyDifferentPrice := FillDedupKey("", "order-1", dec("101"), dec("1"), ts)
	assert.NotEqual(t, keyA, keyDifferentPrice)

	keyDifferentOrder := FillDedupKey("", "order-2", dec("100"), dec("1"), ts)
	assert.NotEqual(t, keyA, keyDifferentOrder)
}

func TestNewTradeOutcome_RejectsFilledQtyExceedingTarget(t *testing.T) {
	_, err := NewTradeOutcome(
		"cmd-1", "trade-1", "acct-1", TradeStatusPartial,
		dec("1"), dec("2"), nil, 0, 1, nil, nil, nil, time.Now(),
	)
	require.Error(t, err)
	var invalidArg *InvalidArgumentError
	require.ErrorAs(t, err, &invalidArg)
	assert.Equal(t, "filled_qty", invalidArg.Field)
}

func TestNewTradeOutcome_RejectsAvgFillPriceWhenUnfilled(t *testing.T) {
	avg := dec("100")
	_, err := NewTradeOutcome(
		"cmd-1", "trade-1", "acct-1", TradeStatusPending,
		dec("1"), decimal.Zero, &avg, 0, 1, nil, nil, nil, time.Now(),
	)
	require.Error(t, err)
	var invalidArg *InvalidArgumentError
	require.ErrorAs(t, err, &invalidArg)
	assert.Equal(t, "avg_fill_price", invalidArg.Field)
}

func TestTradeOutcome_FillRatio(t *testing.T) {
	outcome, err := NewTradeOutcome(
		"cmd-1", "trade-1", "acct-1", TradeStatusPartial,
		dec("10"), dec("4"), nil, 0, 1, nil, nil, nil, time.Now(),
	)
	require.NoError(t, err)
	assert.True(t, dec("0.4").Equal(outcome.FillRatio()))
}

func TestNewFillReceived_RequiresNonEmptyIdentifiers(t *testing.T) {
	_, err := NewFillReceived(
		"acct-1", time.Now(),
		"cid-1", "venue-1", "trade-99", "", "cmd-1", "BTCUSDT",
		SideBuy, dec("1"), dec("100"), decimal.Zero, "USDT", false,
	)
	require.Error(t, err)
	var invalidArg *InvalidArgumentError
	require.ErrorAs(t, err, &invalidArg)
	assert.Equal(t, "trade_id", invalidArg.Field)
}

func TestNewTradeCommand_RejectsNonPositiveQty(t *testing.T) {
	params, err := NewSingleShotParams(nil, nil, nil)
	require.NoError(t, err)
	_, err = NewTradeCommand(
		"cmd-1", "trade-1", "acct-1", "BTCUSDT",
		SideBuy, decimal.Zero, OrderTypeMarket,
		ExecutionModeSingleShot, params,
		30*time.Second, nil, NoPreference, STPNone, time.Now(),
	)
	require.Error(t, err)
	var invalidArg *InvalidArgumentError
	require.ErrorAs(t, err, &invalidArg)
	assert.Equal(t, "qty", invalidArg.Field)
}

func TestOrderSide_Opposite(t *testing.T) {
	assert.Equal(t, SideSell, SideBuy.Opposite())
	assert.Equal(t, SideBuy, SideSell.Opposite())
}
