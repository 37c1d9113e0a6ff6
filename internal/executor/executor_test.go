package executor

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxis-trading/core/internal/domain"
	"github.com/praxis-trading/core/internal/spine"
	"github.com/praxis-trading/core/internal/venue"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// fakeAdapter is a scriptable venue.Adapter double: each test sets the
// fields it cares about before calling Submit/Abort.
type fakeAdapter struct {
	submitResult venue.SubmitResult
	submitErr    error
	cancelResult venue.CancelResult
	cancelErr    error

	submitCalls []string // client_order_id per call, to assert idempotent addressing
}

func (f *fakeAdapter) SubmitOrder(ctx context.Context, accountID, symbol string, side domain.OrderSide, orderType domain.OrderType, qty decimal.Decimal, params venue.SubmitOrderParams) (venue.SubmitResult, error) {
	f.submitCalls = append(f.submitCalls, params.ClientOrderID)
	return f.submitResult, f.submitErr
}

func (f *fakeAdapter) CancelOrder(ctx context.Context, accountID, symbol string, params venue.CancelOrderParams) (venue.CancelResult, error) {
	return f.cancelResult, f.cancelErr
}

func (f *fakeAdapter) QueryOrder(ctx context.Context, accountID, symbol string, params venue.QueryOrderParams) (venue.VenueOrder, error) {
	return venue.VenueOrder{}, nil
}

func (f *fakeAdapter) QueryOpenOrders(ctx context.Context, accountID, symbol string) ([]venue.VenueOrder, error) {
	return nil, nil
}

func (f *fakeAdapter) QueryBalance(ctx context.Context, accountID string, assets map[string]struct{}) ([]venue.BalanceEntry, error) {
	return nil, nil
}

func (f *fakeAdapter) QueryTrades(ctx context.Context, accountID, symbol string, params venue.QueryTradesParams) ([]venue.VenueTrade, error) {
	return nil, nil
}

func (f *fakeAdapter) GetExchangeInfo(ctx context.Context, symbol string) (venue.SymbolFilters, error) {
	return venue.SymbolFilters{}, nil
}

func (f *fakeAdapter) GetServerTime(ctx context.Context) (int64, error) { return 0, nil }

func (f *fakeAdapter) RegisterAccount(accountID, apiKey, apiSecret string) {}
func (f *fakeAdapter) UnregisterAccount(accountID string)                 {}

func newTestExecutor(t *testing.T, adapter venue.Adapter) *Executor {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := spine.New(db, spine.DriverSQLite)
	require.NoError(t, s.EnsureSchema(context.Background()))
	return New(s, adapter, 1)
}

func newCommand(t *testing.T, commandID string, qty decimal.Decimal) *domain.TradeCommand {
	t.Helper()
	params, err := domain.NewSingleShotParams(nil, nil, nil)
	require.NoError(t, err)
	cmd, err := domain.NewTradeCommand(
		commandID, "trade-1", "acct-1", "BTCUSDT",
		domain.SideBuy, qty, domain.OrderTypeMarket,
		domain.ExecutionModeSingleShot, params,
		30*time.Second, nil, domain.NoPreference, domain.STPNone, time.Now(),
	)
	require.NoError(t, err)
	return cmd
}

func TestSubmit_FullFillProducesFilledOutcome(t *testing.T) {
	ctx := context.Background()
	adapter := &fakeAdapter{
		submitResult: venue.SubmitResult{
			VenueOrderID: "venue-1",
			Status:       domain.OrderStatusFilled,
			ImmediateFills: []venue.ImmediateFill{
				{VenueTradeID: "t-1", Qty: dec("1"), Price: dec("100")},
			},
		},
	}
	ex := newTestExecutor(t, adapter)

	outcome, err := ex.Submit(ctx, newCommand(t, "cmd-1", dec("1")))
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStatusFilled, outcome.Status)
	assert.True(t, dec("1").Equal(outcome.FilledQty))
	require.NotNil(t, outcome.AvgFillPrice)
	assert.True(t, dec("100").Equal(*outcome.AvgFillPrice))

	// The venue must have been addressed with the deterministic client_order_id.
	require.Len(t, adapter.submitCalls, 1)
	assert.Equal(t, "px-cmd-1", adapter.submitCalls[0])

	state, err := ex.stateFor("acct-1")
	require.NoError(t, err)
	_, stillOpen := state.Orders["px-cmd-1"]
	assert.False(t, stillOpen)
	_, closed := state.ClosedOrders["px-cmd-1"]
	assert.True(t, closed)
}

func TestSubmit_PartialFillProducesPartialOutcome(t *testing.T) {
	ctx := context.Background()
	adapter := &fakeAdapter{
		submitResult: venue.SubmitResult{
			VenueOrderID: "venue-1",
			ImmediateFills: []venue.ImmediateFill{
				{VenueTradeID: "t-1", Qty: dec("4"), Price: dec("100")},
			},
		},
	}
	ex := newTestExecutor(t, adapter)

	outcome, err := ex.Submit(ctx, newCommand(t, "cmd-1", dec("10")))
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStatusPartial, outcome.Status)
	assert.True(t, dec("4").Equal(outcome.FilledQty))
}

func TestSubmit_NoImmediateFillProducesPendingOutcome(t *testing.T) {
	ctx := context.Background()
	adapter := &fakeAdapter{
		submitResult: venue.SubmitResult{VenueOrderID: "venue-1"},
	}
	ex := newTestExecutor(t, adapter)

	outcome, err := ex.Submit(ctx, newCommand(t, "cmd-1", dec("1")))
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStatusPending, outcome.Status)
	assert.True(t, outcome.FilledQty.IsZero())
}

func TestSubmit_VenueRejectionProducesRejectedOutcome(t *testing.T) {
	ctx := context.Background()
	adapter := &fakeAdapter{
		submitErr: venue.NewOrderRejectedError("insufficient balance", -2010, "INSUFFICIENT_BALANCE"),
	}
	ex := newTestExecutor(t, adapter)

	outcome, err := ex.Submit(ctx, newCommand(t, "cmd-1", dec("1")))
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStatusRejected, outcome.Status)
	require.NotNil(t, outcome.Reason)
	assert.Contains(t, *outcome.Reason, "insufficient balance")
}

func TestSubmit_RejectsNonSingleShotExecutionMode(t *testing.T) {
	ctx := context.Background()
	ex := newTestExecutor(t, &fakeAdapter{})

	params, err := domain.NewSingleShotParams(nil, nil, nil)
	require.NoError(t, err)
	cmd, err := domain.NewTradeCommand(
		"cmd-1", "trade-1", "acct-1", "BTCUSDT",
		domain.SideBuy, dec("1"), domain.OrderTypeMarket,
		domain.ExecutionModeTWAP, params,
		30*time.Second, nil, domain.NoPreference, domain.STPNone, time.Now(),
	)
	require.NoError(t, err)

	_, err = ex.Submit(ctx, cmd)
	require.Error(t, err)
}

func TestTerminalOutcome_RejectsSecondTerminalForSameCommand(t *testing.T) {
	ctx := context.Background()
	adapter := &fakeAdapter{
		submitResult: venue.SubmitResult{
			VenueOrderID: "venue-1",
			ImmediateFills: []venue.ImmediateFill{
				{VenueTradeID: "t-1", Qty: dec("1"), Price: dec("100")},
			},
		},
	}
	ex := newTestExecutor(t, adapter)

	_, err := ex.Submit(ctx, newCommand(t, "cmd-1", dec("1")))
	require.NoError(t, err)

	_, err = ex.terminalOutcome(ctx, newCommand(t, "cmd-1", dec("1")), domain.TradeStatusFilled, dec("1"), nil, nil)
	require.Error(t, err, "a second terminal outcome for the same command_id must be rejected")
}

func TestAbort_CancelsOpenOrderAndProducesCanceledOutcome(t *testing.T) {
	ctx := context.Background()
	adapter := &fakeAdapter{
		submitResult: venue.SubmitResult{VenueOrderID: "venue-1"},
		cancelResult: venue.CancelResult{VenueOrderID: "venue-1", Status: domain.OrderStatusCanceled},
	}
	ex := newTestExecutor(t, adapter)

	_, err := ex.Submit(ctx, newCommand(t, "cmd-1", dec("1")))
	require.NoError(t, err)

	abort, err := domain.NewTradeAbort("cmd-1", "acct-1", "user requested cancel", time.Now())
	require.NoError(t, err)

	outcome, err := ex.Abort(ctx, abort)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStatusCanceled, outcome.Status)
	assert.Equal(t, "trade-1", outcome.TradeID, "must carry the order's actual trade_id, not its command_id")
}

func TestAbort_VenueNotFoundIsTreatedAsIdempotentSuccess(t *testing.T) {
	ctx := context.Background()
	adapter := &fakeAdapter{
		submitResult: venue.SubmitResult{VenueOrderID: "venue-1"},
		cancelErr:    venue.NewNotFoundError("order does not exist"),
	}
	ex := newTestExecutor(t, adapter)

	_, err := ex.Submit(ctx, newCommand(t, "cmd-1", dec("1")))
	require.NoError(t, err)

	abort, err := domain.NewTradeAbort("cmd-1", "acct-1", "user requested cancel", time.Now())
	require.NoError(t, err)

	_, err = ex.Abort(ctx, abort)
	require.NoError(t, err, "a NotFoundError from CancelOrder must not fail Abort")
}

func TestAbort_UnknownCommandIDFails(t *testing.T) {
	ctx := context.Background()
	ex := newTestExecutor(t, &fakeAdapter{})

	abort, err := domain.NewTradeAbort("never-submitted", "acct-1", "reason", time.Now())
	require.NoError(t, err)

	_, err = ex.Abort(ctx, abort)
	require.Error(t, err)
}

func TestRecover_RebuildsProjectionFromSpine(t *testing.T) {
	ctx := context.Background()
	adapter := &fakeAdapter{
		submitResult: venue.SubmitResult{
			VenueOrderID: "venue-1",
			ImmediateFills: []venue.ImmediateFill{
				{VenueTradeID: "t-1", Qty: dec("1"), Price: dec("100")},
			},
		},
	}
	ex := newTestExecutor(t, adapter)
	_, err := ex.Submit(ctx, newCommand(t, "cmd-1", dec("1")))
	require.NoError(t, err)

	// A fresh Executor against the same Spine must recover identical state.
	recovered := New(ex.spine, adapter, ex.epochID)
	state, err := recovered.Recover(ctx, "acct-1")
	require.NoError(t, err)

	_, closed := state.ClosedOrders["px-cmd-1"]
	assert.True(t, closed)

	tradeID, commandID, ok := recovered.ResolveOrder("px-cmd-1")
	assert.True(t, ok)
	assert.Equal(t, "trade-1", tradeID)
	assert.Equal(t, "cmd-1", commandID)
}

func TestApplyExternalEvent_UpdatesProjectionWithoutDuplicateSideEffects(t *testing.T) {
	ctx := context.Background()
	ex := newTestExecutor(t, &fakeAdapter{})

	intent, err := domain.NewOrderSubmitIntent(
		"acct-1", time.Now(), "cmd-1", "trade-1", "cid-ext", "BTCUSDT",
		domain.SideBuy, domain.OrderTypeMarket, dec("1"), nil, nil,
	)
	require.NoError(t, err)
	require.NoError(t, ex.ApplyExternalEvent(ctx, intent))

	fill, err := domain.NewFillReceived(
		"acct-1", time.Now(), "cid-ext", "venue-ext", "trade-ext", "trade-1", "cmd-1", "BTCUSDT",
		domain.SideBuy, dec("1"), dec("100"), decimal.Zero, "USDT", false,
	)
	require.NoError(t, err)
	require.NoError(t, ex.ApplyExternalEvent(ctx, fill))

	state, err := ex.stateFor("acct-1")
	require.NoError(t, err)
	_, closed := state.ClosedOrders["cid-ext"]
	assert.True(t, closed)

	// Re-applying the identical fill must be dropped by the Spine's dedup, not double-count the position.
	require.NoError(t, ex.ApplyExternalEvent(ctx, fill))
	require.Len(t, state.Positions, 1)
	for _, pos := range state.Positions {
		assert.True(t, dec("1").Equal(pos.Qty))
	}
}

type recordingNotifier struct {
	outcomes []*domain.TradeOutcome
}

func (r *recordingNotifier) Notify(ctx context.Context, outcome *domain.TradeOutcome) error {
	r.outcomes = append(r.outcomes, outcome)
	return nil
}

func TestSetNotifier_ReceivesTerminalOutcomes(t *testing.T) {
	ctx := context.Background()
	adapter := &fakeAdapter{
		submitResult: venue.SubmitResult{
			VenueOrderID: "venue-1",
			ImmediateFills: []venue.ImmediateFill{
				{VenueTradeID: "t-1", Qty: dec("1"), Price: dec("100")},
			},
		},
	}
	ex := newTestExecutor(t, adapter)
	notifier := &recordingNotifier{}
	ex.SetNotifier(notifier)

	_, err := ex.Submit(ctx, newCommand(t, "cmd-1", dec("1")))
	require.NoError(t, err)

	require.Len(t, notifier.outcomes, 1)
	assert.Equal(t, domain.TradeStatusFilled, notifier.outcomes[0].Status)
}
