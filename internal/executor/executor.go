// Package executor is the SINGLE_SHOT command-to-event translator
// (spec.md §2's data flow, §9's recovery design note): an upstream
// TradeCommand enters, a CommandAccepted event is appended, one
// OrderSubmitIntent is appended, the venue adapter submits it, and the
// venue's response is folded into further events. Every appended event
// is also dispatched to that account's Projection before the call
// returns, so callers always observe state consistent with what the
// Spine holds.
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/praxis-trading/core/internal/domain"
	"github.com/praxis-trading/core/internal/observability"
	"github.com/praxis-trading/core/internal/projection"
	"github.com/praxis-trading/core/internal/spine"
	"github.com/praxis-trading/core/internal/venue"
)

// clock is overridable in tests; production code always uses time.Now.
type clock func() time.Time

// OutcomeNotifier is the outbound channel a terminal TradeOutcome is
// pushed to, left unspecified transport by spec.md §9. Optional:
// an Executor with no notifier set simply doesn't push outcomes
// anywhere but its return value. internal/notify.TelegramNotifier
// satisfies this.
type OutcomeNotifier interface {
	Notify(ctx context.Context, outcome *domain.TradeOutcome) error
}

// Executor owns the per-account Projections, the Event Spine, and the
// venue adapter, and drives the one pipeline this core implements:
// ExecutionMode.SINGLE_SHOT. BRACKET/TWAP/SCHEDULED_VWAP/ICEBERG/
// TIME_DCA/LADDER_DCA are valid TradeCommand values but rejected here
// (spec.md §1 Non-goal: higher-level execution strategies).
type Executor struct {
	spine    *spine.Spine
	adapter  venue.Adapter
	epochID  int64
	now      clock
	notifier OutcomeNotifier

	mu           sync.Mutex
	states       map[string]*projection.TradingState
	terminalSent map[string]bool
	clientOrders map[string]orderRef // client_order_id -> (trade_id, command_id), for user-stream resolution
}

type orderRef struct {
	tradeID   string
	commandID string
}

// New constructs an Executor bound to one epoch: Recover replays it and
// every append writes to it. cmd/praxis passes Spine.CurrentEpoch, so a
// restart continues the highest epoch already written.
func New(s *spine.Spine, adapter venue.Adapter, epochID int64) *Executor {
	return &Executor{
		spine:        s,
		adapter:      adapter,
		epochID:      epochID,
		now:          time.Now,
		states:       make(map[string]*projection.TradingState),
		terminalSent: make(map[string]bool),
		clientOrders: make(map[string]orderRef),
	}
}

// SetNotifier wires an optional outbound TradeOutcome notifier. Every
// terminal outcome the Executor produces after this call is also
// pushed there, best-effort: a notify failure is logged by the
// notifier itself and never fails the Submit/Abort call that produced
// the outcome.
func (ex *Executor) SetNotifier(n OutcomeNotifier) {
	ex.notifier = n
}

// Recover rebuilds accountID's projection by replaying every event in
// the executor's epoch from the start (spec.md §4.B/§9: "replay from
// last_event_seq − prefix to rebuild"). It must be called before the
// account's first Submit/Abort in a fresh process, otherwise the
// in-memory projection starts empty with no knowledge of open orders.
func (ex *Executor) Recover(ctx context.Context, accountID string) (*projection.TradingState, error) {
	ctx = observability.WithAccount(ctx, accountID)
	ctx = observability.WithEpoch(ctx, ex.epochID)

	state, err := projection.New(accountID)
	if err != nil {
		return nil, fmt.Errorf("new projection: %w", err)
	}

	records, err := ex.spine.Read(ctx, ex.epochID, 0)
	if err != nil {
		return nil, fmt.Errorf("read epoch for recovery: %w", err)
	}

	ex.mu.Lock()
	defer ex.mu.Unlock()
	for _, rec := range records {
		if rec.Event.GetAccountID() != accountID {
			continue
		}
		state.Apply(ctx, rec.Event)
		ex.trackClientOrder(rec.Event)
	}
	ex.states[accountID] = state
	return state, nil
}

// stateFor returns the cached projection for accountID, creating one
// if Recover was never called (a fresh account with no history).
func (ex *Executor) stateFor(accountID string) (*projection.TradingState, error) {
	if state, ok := ex.states[accountID]; ok {
		return state, nil
	}
	state, err := projection.New(accountID)
	if err != nil {
		return nil, err
	}
	ex.states[accountID] = state
	return state, nil
}

// ResolveOrder implements userstream.OrderResolver: it answers which
// (trade_id, command_id) a client_order_id belongs to, from the
// executor's own submission bookkeeping.
func (ex *Executor) ResolveOrder(clientOrderID string) (tradeID, commandID string, ok bool) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	ref, ok := ex.clientOrders[clientOrderID]
	return ref.tradeID, ref.commandID, ok
}

// ApplyExternalEvent appends an event this process did not itself
// produce — a user-data-stream execution report translated by
// internal/userstream — to the Spine and that account's Projection.
// It is the sink the stream consumer dispatches into, so that fills
// and order-status changes the venue reports asynchronously update
// the same projection Submit/Abort read and write.
func (ex *Executor) ApplyExternalEvent(ctx context.Context, event domain.Event) error {
	ctx = observability.WithAccount(ctx, event.GetAccountID())
	ctx = observability.WithEpoch(ctx, ex.epochID)

	ex.mu.Lock()
	defer ex.mu.Unlock()

	state, err := ex.stateFor(event.GetAccountID())
	if err != nil {
		return err
	}
	return ex.append(ctx, state, event)
}

func (ex *Executor) trackClientOrder(event domain.Event) {
	switch e := event.(type) {
	case *domain.OrderSubmitIntent:
		ex.clientOrders[e.ClientOrderID] = orderRef{tradeID: e.TradeID, commandID: e.CommandID}
	}
}

// append persists an event to the Spine and, unless it was a dropped
// duplicate fill, dispatches it to accountID's Projection.
func (ex *Executor) append(ctx context.Context, state *projection.TradingState, event domain.Event) error {
	seq, err := ex.spine.Append(ctx, event, ex.epochID)
	if err != nil {
		return fmt.Errorf("append %s: %w", event.EventType(), err)
	}
	if seq == nil {
		return nil // duplicate fill, dropped by the Spine
	}
	state.Apply(ctx, event)
	ex.trackClientOrder(event)
	return nil
}

// Submit runs the SINGLE_SHOT pipeline for cmd: CommandAccepted,
// OrderSubmitIntent, a venue SubmitOrder call, then OrderSubmitted (or
// OrderSubmitFailed) plus one FillReceived per immediate fill the
// venue returned inline. Returns the resulting TradeOutcome.
func (ex *Executor) Submit(ctx context.Context, cmd *domain.TradeCommand) (*domain.TradeOutcome, error) {
	if cmd.ExecutionMode != domain.ExecutionModeSingleShot {
		return nil, fmt.Errorf("execution mode %s is not implemented by this executor", cmd.ExecutionMode)
	}

	ctx = observability.WithAccount(ctx, cmd.AccountID)
	ctx = observability.WithEpoch(ctx, ex.epochID)
	ctx = observability.WithCommand(ctx, cmd.CommandID, cmd.TradeID)

	ex.mu.Lock()
	defer ex.mu.Unlock()

	state, err := ex.stateFor(cmd.AccountID)
	if err != nil {
		return nil, err
	}

	now := ex.now()
	accepted, err := domain.NewCommandAccepted(cmd.AccountID, now, cmd.CommandID, cmd.TradeID)
	if err != nil {
		return nil, fmt.Errorf("build CommandAccepted: %w", err)
	}
	if err := ex.append(ctx, state, accepted); err != nil {
		return nil, err
	}

	clientOrderID := clientOrderID(cmd.CommandID)
	intent, err := domain.NewOrderSubmitIntent(
		cmd.AccountID, now, cmd.CommandID, cmd.TradeID, clientOrderID, cmd.Symbol,
		cmd.Side, cmd.OrderType, cmd.Qty, cmd.ExecutionParams.Price, cmd.ExecutionParams.StopPrice,
	)
	if err != nil {
		return nil, fmt.Errorf("build OrderSubmitIntent: %w", err)
	}
	if err := ex.append(ctx, state, intent); err != nil {
		return nil, err
	}

	result, submitErr := ex.adapter.SubmitOrder(ctx, cmd.AccountID, cmd.Symbol, cmd.Side, cmd.OrderType, cmd.Qty, venue.SubmitOrderParams{
		Price:         cmd.ExecutionParams.Price,
		StopPrice:     cmd.ExecutionParams.StopPrice,
		ClientOrderID: clientOrderID,
	})
	if submitErr != nil {
		failed, err := domain.NewOrderSubmitFailed(cmd.AccountID, ex.now(), clientOrderID, submitErr.Error())
		if err != nil {
			return nil, fmt.Errorf("build OrderSubmitFailed: %w", err)
		}
		if err := ex.append(ctx, state, failed); err != nil {
			return nil, err
		}
		return ex.terminalOutcome(ctx, cmd, domain.TradeStatusRejected, decimal.Zero, nil, strPtr(submitErr.Error()))
	}

	submitted, err := domain.NewOrderSubmitted(cmd.AccountID, ex.now(), clientOrderID, result.VenueOrderID)
	if err != nil {
		return nil, fmt.Errorf("build OrderSubmitted: %w", err)
	}
	if err := ex.append(ctx, state, submitted); err != nil {
		return nil, err
	}

	filledQty := decimal.Zero
	notional := decimal.Zero
	for _, fill := range result.ImmediateFills {
		fillEvent, err := domain.NewFillReceived(
			cmd.AccountID, ex.now(),
			clientOrderID, result.VenueOrderID, fill.VenueTradeID, cmd.TradeID, cmd.CommandID, cmd.Symbol,
			cmd.Side, fill.Qty, fill.Price, fill.Fee, fill.FeeAsset, fill.IsMaker,
		)
		if err != nil {
			return nil, fmt.Errorf("build FillReceived: %w", err)
		}
		if err := ex.append(ctx, state, fillEvent); err != nil {
			return nil, err
		}
		filledQty = filledQty.Add(fill.Qty)
		notional = notional.Add(fill.Qty.Mul(fill.Price))
	}

	if filledQty.GreaterThanOrEqual(cmd.Qty) {
		avg := notional.Div(filledQty)
		return ex.terminalOutcome(ctx, cmd, domain.TradeStatusFilled, filledQty, &avg, nil)
	}
	if filledQty.IsZero() {
		return domain.NewTradeOutcome(
			cmd.CommandID, cmd.TradeID, cmd.AccountID, domain.TradeStatusPending,
			cmd.Qty, filledQty, nil, 0, 1, nil, nil, nil, ex.now(),
		)
	}
	avg := notional.Div(filledQty)
	return domain.NewTradeOutcome(
		cmd.CommandID, cmd.TradeID, cmd.AccountID, domain.TradeStatusPartial,
		cmd.Qty, filledQty, &avg, 0, 1, nil, nil, nil, ex.now(),
	)
}

// Abort cancels the venue order for an existing command and appends
// the resulting OrderCanceled event. It addresses the order the same
// way Submit created it: by the deterministic client_order_id derived
// from abort.CommandID.
func (ex *Executor) Abort(ctx context.Context, abort *domain.TradeAbort) (*domain.TradeOutcome, error) {
	ctx = observability.WithAccount(ctx, abort.AccountID)
	ctx = observability.WithEpoch(ctx, ex.epochID)
	ctx = observability.WithCommand(ctx, abort.CommandID, "")

	ex.mu.Lock()
	defer ex.mu.Unlock()

	state, err := ex.stateFor(abort.AccountID)
	if err != nil {
		return nil, err
	}

	clientOID := clientOrderID(abort.CommandID)
	order, ok := state.Orders[clientOID]
	if !ok {
		return nil, fmt.Errorf("no open order for command_id %q", abort.CommandID)
	}

	result, cancelErr := ex.adapter.CancelOrder(ctx, abort.AccountID, order.Symbol, venue.CancelOrderParams{ClientOrderID: clientOID})
	if cancelErr != nil {
		if _, isNotFound := cancelErr.(*venue.NotFoundError); !isNotFound {
			return nil, fmt.Errorf("cancel order: %w", cancelErr)
		}
		// Already gone at the venue: treat as idempotent success.
	}

	venueOrderID := order.VenueOrderID
	if result.VenueOrderID != "" {
		v := result.VenueOrderID
		venueOrderID = &v
	}
	reason := abort.Reason
	canceled, err := domain.NewOrderCanceled(abort.AccountID, ex.now(), clientOID, venueOrderID, &reason)
	if err != nil {
		return nil, fmt.Errorf("build OrderCanceled: %w", err)
	}
	if err := ex.append(ctx, state, canceled); err != nil {
		return nil, err
	}

	ref, ok := ex.clientOrders[clientOID]
	if !ok {
		return nil, fmt.Errorf("no trade_id tracked for client_order_id %q", clientOID)
	}

	return ex.terminalOutcome(ctx, &domain.TradeCommand{
		CommandID: abort.CommandID,
		TradeID:   ref.tradeID,
		AccountID: abort.AccountID,
		Qty:       order.Qty,
	}, domain.TradeStatusCanceled, order.FilledQty, nil, &reason)
}

// terminalOutcome enforces the at-most-one-terminal-TradeOutcome
// guard spec.md §9 explicitly places on the executor rather than on
// TradeOutcome itself: once a command_id has produced one terminal
// outcome, subsequent attempts return an error rather than a second one.
func (ex *Executor) terminalOutcome(
	ctx context.Context,
	cmd *domain.TradeCommand,
	status domain.TradeStatus,
	filledQty decimal.Decimal,
	avgFillPrice *decimal.Decimal,
	reason *string,
) (*domain.TradeOutcome, error) {
	if ex.terminalSent[cmd.CommandID] {
		return nil, fmt.Errorf("terminal outcome already sent for command_id %q", cmd.CommandID)
	}
	outcome, err := domain.NewTradeOutcome(
		cmd.CommandID, cmd.TradeID, cmd.AccountID, status,
		cmd.Qty, filledQty, avgFillPrice, 1, 1, reason, nil, nil, ex.now(),
	)
	if err != nil {
		return nil, fmt.Errorf("build terminal TradeOutcome: %w", err)
	}
	ex.terminalSent[cmd.CommandID] = true
	if ex.notifier != nil {
		_ = ex.notifier.Notify(ctx, outcome) // best-effort; failures are logged by the notifier itself
	}
	return outcome, nil
}

func clientOrderID(commandID string) string {
	return "px-" + commandID
}

func strPtr(s string) *string { return &s }
