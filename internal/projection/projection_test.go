package projection

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxis-trading/core/internal/domain"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestNew_RejectsEmptyAccountID(t *testing.T) {
	_, err := New("")
	require.Error(t, err)
}

func TestApply_FullSingleShotLifecycle(t *testing.T) {
	ctx := context.Background()
	state, err := New("acct-1")
	require.NoError(t, err)

	now := time.Now()
	intent, err := domain.NewOrderSubmitIntent(
		"acct-1", now, "cmd-1", "trade-1", "cid-1", "BTCUSDT",
		domain.SideBuy, domain.OrderTypeMarket, dec("1"), nil, nil,
	)
	require.NoError(t, err)
	state.Apply(ctx, intent)

	order, ok := state.Orders["cid-1"]
	require.True(t, ok)
	assert.Equal(t, domain.OrderStatusSubmitting, order.Status)

	submitted, err := domain.NewOrderSubmitted("acct-1", now, "cid-1", "venue-1")
	require.NoError(t, err)
	state.Apply(ctx, submitted)
	assert.Equal(t, domain.OrderStatusOpen, state.Orders["cid-1"].Status)

	fill, err := domain.NewFillReceived(
		"acct-1", now, "cid-1", "venue-1", "trade-99", "trade-1", "cmd-1", "BTCUSDT",
		domain.SideBuy, dec("1"), dec("100"), dec("0.1"), "USDT", false,
	)
	require.NoError(t, err)
	state.Apply(ctx, fill)

	_, stillOpen := state.Orders["cid-1"]
	assert.False(t, stillOpen, "fully-filled order should be moved to ClosedOrders")
	closedOrder, ok := state.ClosedOrders["cid-1"]
	require.True(t, ok)
	assert.Equal(t, domain.OrderStatusFilled, closedOrder.Status)
	assert.True(t, dec("1").Equal(closedOrder.FilledQty))

	key := positionKey{TradeID: "trade-1", AccountID: "acct-1"}
	pos, ok := state.Positions[key]
	require.True(t, ok)
	assert.True(t, dec("1").Equal(pos.Qty))
	assert.True(t, dec("100").Equal(pos.AvgEntryPrice))
}

func TestApply_PartialFillKeepsOrderOpen(t *testing.T) {
	ctx := context.Background()
	state, err := New("acct-1")
	require.NoError(t, err)
	now := time.Now()

	intent, err := domain.NewOrderSubmitIntent(
		"acct-1", now, "cmd-1", "trade-1", "cid-1", "BTCUSDT",
		domain.SideBuy, domain.OrderTypeLimit, dec("10"), nil, nil,
	)
	require.NoError(t, err)
	state.Apply(ctx, intent)

	fill, err := domain.NewFillReceived(
		"acct-1", now, "cid-1", "venue-1", "trade-99", "trade-1", "cmd-1", "BTCUSDT",
		domain.SideBuy, dec("4"), dec("100"), decimal.Zero, "USDT", true,
	)
	require.NoError(t, err)
	state.Apply(ctx, fill)

	order, ok := state.Orders["cid-1"]
	require.True(t, ok, "partially-filled order must remain open")
	assert.Equal(t, domain.OrderStatusPartiallyFilled, order.Status)
	assert.True(t, dec("4").Equal(order.FilledQty))
}

func TestApply_AveragesEntryPriceAcrossFillsOnSameSide(t *testing.T) {
	ctx := context.Background()
	state, err := New("acct-1")
	require.NoError(t, err)
	now := time.Now()

	for i, fillInput := range []struct {
		clientOrderID string
		qty, price    string
	}{
		{"cid-1", "1", "100"},
		{"cid-2", "1", "200"},
	} {
		intent, err := domain.NewOrderSubmitIntent(
			"acct-1", now, "cmd-1", "trade-1", fillInput.clientOrderID, "BTCUSDT",
			domain.SideBuy, domain.OrderTypeLimit, dec(fillInput.qty), nil, nil,
		)
		require.NoError(t, err)
		state.Apply(ctx, intent)

		fill, err := domain.NewFillReceived(
			"acct-1", now, fillInput.clientOrderID, "venue-1", "trade-"+fillInput.clientOrderID, "trade-1", "cmd-1", "BTCUSDT",
			domain.SideBuy, dec(fillInput.qty), dec(fillInput.price), decimal.Zero, "USDT", false,
		)
		require.NoError(t, err)
		state.Apply(ctx, fill)
		_ = i
	}

	key := positionKey{TradeID: "trade-1", AccountID: "acct-1"}
	pos := state.Positions[key]
	assert.True(t, dec("2").Equal(pos.Qty))
	assert.True(t, dec("150").Equal(pos.AvgEntryPrice))
}

func TestApply_OppositeSideFillReducesPosition(t *testing.T) {
	ctx := context.Background()
	state, err := New("acct-1")
	require.NoError(t, err)
	now := time.Now()

	buyIntent, err := domain.NewOrderSubmitIntent(
		"acct-1", now, "cmd-1", "trade-1", "cid-1", "BTCUSDT",
		domain.SideBuy, domain.OrderTypeLimit, dec("2"), nil, nil,
	)
	require.NoError(t, err)
	state.Apply(ctx, buyIntent)
	buyFill, err := domain.NewFillReceived(
		"acct-1", now, "cid-1", "venue-1", "trade-a", "trade-1", "cmd-1", "BTCUSDT",
		domain.SideBuy, dec("2"), dec("100"), decimal.Zero, "USDT", false,
	)
	require.NoError(t, err)
	state.Apply(ctx, buyFill)

	sellIntent, err := domain.NewOrderSubmitIntent(
		"acct-1", now, "cmd-2", "trade-1", "cid-2", "BTCUSDT",
		domain.SideSell, domain.OrderTypeLimit, dec("1"), nil, nil,
	)
	require.NoError(t, err)
	state.Apply(ctx, sellIntent)
	sellFill, err := domain.NewFillReceived(
		"acct-1", now, "cid-2", "venue-1", "trade-b", "trade-1", "cmd-2", "BTCUSDT",
		domain.SideSell, dec("1"), dec("110"), decimal.Zero, "USDT", false,
	)
	require.NoError(t, err)
	state.Apply(ctx, sellFill)

	key := positionKey{TradeID: "trade-1", AccountID: "acct-1"}
	pos := state.Positions[key]
	assert.True(t, dec("1").Equal(pos.Qty))
}

func TestApply_UnknownOrderReferenceIsIgnoredNotPanicked(t *testing.T) {
	ctx := context.Background()
	state, err := New("acct-1")
	require.NoError(t, err)

	submitted, err := domain.NewOrderSubmitted("acct-1", time.Now(), "never-submitted", "venue-1")
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		state.Apply(ctx, submitted)
	})
	assert.Empty(t, state.Orders)
}

func TestApply_UnknownEventTypeIsIgnored(t *testing.T) {
	ctx := context.Background()
	state, err := New("acct-1")
	require.NoError(t, err)

	unknown := domain.NewUnknownEvent("acct-1", time.Now(), "SomeFutureEvent", []byte(`{}`))
	assert.NotPanics(t, func() {
		state.Apply(ctx, unknown)
	})
}

func TestApply_ReplayIsDeterministic(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	build := func() *TradingState {
		state, err := New("acct-1")
		require.NoError(t, err)
		intent, err := domain.NewOrderSubmitIntent(
			"acct-1", now, "cmd-1", "trade-1", "cid-1", "BTCUSDT",
			domain.SideBuy, domain.OrderTypeMarket, dec("1"), nil, nil,
		)
		require.NoError(t, err)
		state.Apply(ctx, intent)
		fill, err := domain.NewFillReceived(
			"acct-1", now, "cid-1", "venue-1", "trade-99", "trade-1", "cmd-1", "BTCUSDT",
			domain.SideBuy, dec("1"), dec("100"), decimal.Zero, "USDT", false,
		)
		require.NoError(t, err)
		state.Apply(ctx, fill)
		return state
	}

	first := build()
	second := build()
	assert.Equal(t, first.ClosedOrders["cid-1"].Status, second.ClosedOrders["cid-1"].Status)
	assert.True(t, first.Positions[positionKey{TradeID: "trade-1", AccountID: "acct-1"}].Qty.Equal(
		second.Positions[positionKey{TradeID: "trade-1", AccountID: "acct-1"}].Qty,
	))
}
