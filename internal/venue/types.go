// Package venue defines the venue-agnostic adapter contract and its
// normalized response/error types (spec.md §4.D). Concrete venues —
// currently Binance Spot, internal/venue/binance — implement this
// interface; the executor depends only on it.
package venue

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/praxis-trading/core/internal/domain"
)

// ImmediateFill is a fill returned inline with an order submission response.
type ImmediateFill struct {
	VenueTradeID string
	Qty          decimal.Decimal
	Price        decimal.Decimal
	Fee          decimal.Decimal
	FeeAsset     string
	IsMaker      bool
}

// SubmitResult is the venue response to an order submission.
type SubmitResult struct {
	VenueOrderID   string
	Status         domain.OrderStatus
	ImmediateFills []ImmediateFill
}

// CancelResult is the venue response to an order cancellation.
type CancelResult struct {
	VenueOrderID string
	Status       domain.OrderStatus
}

// VenueOrder is an order as reported by the venue on query.
type VenueOrder struct {
	VenueOrderID  string
	ClientOrderID string
	Status        domain.OrderStatus
	Symbol        string
	Side          domain.OrderSide
	OrderType     domain.OrderType
	Qty           decimal.Decimal
	FilledQty     decimal.Decimal
	Price         *decimal.Decimal
}

// VenueTrade is a historical trade record from the venue.
type VenueTrade struct {
	VenueTradeID  string
	VenueOrderID  string
	ClientOrderID string
	Symbol        string
	Side          domain.OrderSide
	Qty           decimal.Decimal
	Price         decimal.Decimal
	Fee           decimal.Decimal
	FeeAsset      string
	IsMaker       bool
	Timestamp     time.Time
}

// BalanceEntry is a single asset balance from the venue account.
type BalanceEntry struct {
	Asset  string
	Free   decimal.Decimal
	Locked decimal.Decimal
}

// SymbolFilters are venue-imposed trading filters for a symbol.
type SymbolFilters struct {
	Symbol      string
	TickSize    decimal.Decimal
	LotStep     decimal.Decimal
	LotMin      decimal.Decimal
	LotMax      decimal.Decimal
	MinNotional decimal.Decimal
}

// SubmitOrderParams carries the optional fields of an order submission.
type SubmitOrderParams struct {
	Price         *decimal.Decimal
	StopPrice     *decimal.Decimal
	ClientOrderID string
	TimeInForce   string
}

// CancelOrderParams identifies the order to cancel; at least one of
// VenueOrderID or ClientOrderID must be set.
type CancelOrderParams struct {
	VenueOrderID  string
	ClientOrderID string
}

// QueryOrderParams identifies the order to query; at least one of
// VenueOrderID or ClientOrderID must be set.
type QueryOrderParams struct {
	VenueOrderID  string
	ClientOrderID string
}

// QueryTradesParams optionally bounds a trade history query.
type QueryTradesParams struct {
	StartTime *time.Time
}

// Adapter is the venue-agnostic interface consumed by the executor.
// Implementations own authentication, retries,
// rate limiting, and response normalization; callers never see a raw
// venue error type, only the VenueError taxonomy in errors.go.
type Adapter interface {
	SubmitOrder(
		ctx context.Context,
		accountID, symbol string,
		side domain.OrderSide,
		orderType domain.OrderType,
		qty decimal.Decimal,
		params SubmitOrderParams,
	) (SubmitResult, error)

	CancelOrder(ctx context.Context, accountID, symbol string, params CancelOrderParams) (CancelResult, error)

	QueryOrder(ctx context.Context, accountID, symbol string, params QueryOrderParams) (VenueOrder, error)

	QueryOpenOrders(ctx context.Context, accountID, symbol string) ([]VenueOrder, error)

	// QueryBalance returns the balances for the requested assets only. An
	// empty assets set short-circuits to an empty result without a
	// network call (spec.md §4.D).
	QueryBalance(ctx context.Context, accountID string, assets map[string]struct{}) ([]BalanceEntry, error)

	QueryTrades(ctx context.Context, accountID, symbol string, params QueryTradesParams) ([]VenueTrade, error)

	GetExchangeInfo(ctx context.Context, symbol string) (SymbolFilters, error)

	GetServerTime(ctx context.Context) (int64, error)

	// RegisterAccount and UnregisterAccount bind/unbind credentials for
	// an account_id — cheap, synchronous map operations per spec.md §5.
	RegisterAccount(accountID, apiKey, apiSecret string)
	UnregisterAccount(accountID string)
}
