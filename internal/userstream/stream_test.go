package userstream

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxis-trading/core/internal/domain"
)

func newTestConsumer(t *testing.T, resolve OrderResolver, sink EventSink) *Consumer {
	t.Helper()
	if sink == nil {
		sink = func(ctx context.Context, event domain.Event) {}
	}
	return NewConsumer("https://testnet.binance.vision", "wss://testnet.binance.vision", "key", "acct-1", sink, resolve)
}

func TestTranslate_NewExecutionTypeProducesOrderAcked(t *testing.T) {
	c := newTestConsumer(t, nil, nil)
	event, err := c.translate(executionReport{
		ExecutionType: "NEW", ClientOrderID: "cid-1", OrderID: 42, EventTime: 1000,
	})
	require.NoError(t, err)
	acked, ok := event.(*domain.OrderAcked)
	require.True(t, ok)
	assert.Equal(t, "cid-1", acked.ClientOrderID)
	assert.Equal(t, "42", acked.VenueOrderID)
}

func TestTranslate_TradeExecutionTypeProducesFillReceived(t *testing.T) {
	resolve := func(clientOrderID string) (string, string, bool) {
		assert.Equal(t, "cid-1", clientOrderID)
		return "trade-1", "cmd-1", true
	}
	c := newTestConsumer(t, resolve, nil)

	event, err := c.translate(executionReport{
		ExecutionType: "TRADE", ClientOrderID: "cid-1", OrderID: 42, TradeID: 7,
		Side: "BUY", Symbol: "BTCUSDT", LastFilledQty: "1.5", LastFilledPrice: "100.25",
		Commission: "0.001", CommissionAsset: "BNB", IsMaker: true, EventTime: 1000,
	})
	require.NoError(t, err)
	fill, ok := event.(*domain.FillReceived)
	require.True(t, ok)
	assert.Equal(t, "trade-1", fill.TradeID)
	assert.Equal(t, "cmd-1", fill.CommandID)
	assert.Equal(t, "7", fill.VenueTradeID)
	assert.Equal(t, domain.SideBuy, fill.Side)
	assert.True(t, fill.IsMaker)
}

func TestTranslate_TradeExecutionTypeFailsWhenOrderUnresolved(t *testing.T) {
	resolve := func(clientOrderID string) (string, string, bool) { return "", "", false }
	c := newTestConsumer(t, resolve, nil)

	_, err := c.translate(executionReport{
		ExecutionType: "TRADE", ClientOrderID: "cid-unknown", LastFilledQty: "1", LastFilledPrice: "100",
	})
	require.Error(t, err)
}

func TestTranslate_CanceledExecutionTypeProducesOrderCanceled(t *testing.T) {
	c := newTestConsumer(t, nil, nil)
	event, err := c.translate(executionReport{
		ExecutionType: "CANCELED", ClientOrderID: "cid-1", OrderID: 42,
	})
	require.NoError(t, err)
	_, ok := event.(*domain.OrderCanceled)
	assert.True(t, ok)
}

func TestTranslate_ExpiredExecutionTypeProducesOrderExpired(t *testing.T) {
	c := newTestConsumer(t, nil, nil)
	event, err := c.translate(executionReport{
		ExecutionType: "EXPIRED", ClientOrderID: "cid-1", OrderID: 42,
	})
	require.NoError(t, err)
	_, ok := event.(*domain.OrderExpired)
	assert.True(t, ok)
}

func TestTranslate_RejectedExecutionTypeUsesUnknownReasonWhenEmpty(t *testing.T) {
	c := newTestConsumer(t, nil, nil)
	event, err := c.translate(executionReport{
		ExecutionType: "REJECTED", ClientOrderID: "cid-1", OrderID: 42, RejectReason: "",
	})
	require.NoError(t, err)
	rejected, ok := event.(*domain.OrderRejected)
	require.True(t, ok)
	assert.Equal(t, "unknown", rejected.Reason)
}

func TestTranslate_UnrecognizedExecutionTypeIsIgnored(t *testing.T) {
	c := newTestConsumer(t, nil, nil)
	event, err := c.translate(executionReport{ExecutionType: "REPLACED"})
	require.NoError(t, err)
	assert.Nil(t, event)
}

func TestHandleFrame_IgnoresNonExecutionReportFrames(t *testing.T) {
	var called bool
	sink := func(ctx context.Context, event domain.Event) { called = true }
	c := newTestConsumer(t, nil, sink)

	c.handleFrame(context.Background(), []byte(`{"e":"outboundAccountPosition"}`))
	assert.False(t, called, "non-executionReport frames must never reach the sink")
}

func TestHandleFrame_DispatchesTranslatedExecutionReportToSink(t *testing.T) {
	var received domain.Event
	sink := func(ctx context.Context, event domain.Event) { received = event }
	c := newTestConsumer(t, nil, sink)

	c.handleFrame(context.Background(), []byte(`{"e":"executionReport","x":"NEW","c":"cid-1","i":99,"E":1000}`))
	require.NotNil(t, received)
	acked, ok := received.(*domain.OrderAcked)
	require.True(t, ok)
	assert.Equal(t, "cid-1", acked.ClientOrderID)
	assert.Equal(t, "99", acked.VenueOrderID)
}

func TestHandleFrame_MalformedFrameIsIgnoredWithoutPanic(t *testing.T) {
	var called bool
	sink := func(ctx context.Context, event domain.Event) { called = true }
	c := newTestConsumer(t, nil, sink)

	assert.NotPanics(t, func() {
		c.handleFrame(context.Background(), []byte(`not json`))
	})
	assert.False(t, called)
}
