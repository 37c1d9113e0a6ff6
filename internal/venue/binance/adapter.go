// Package binance implements the VenueAdapter contract (internal/venue)
// against Binance Spot's REST API: HMAC-SHA256 request signing, order
// submission and lifecycle queries, HTTP-status error classification,
// and a randomized exponential backoff retry policy (spec.md §4.E).
package binance

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/praxis-trading/core/internal/domain"
	"github.com/praxis-trading/core/internal/venue"
)

const apiKeyHeader = "X-MBX-APIKEY"

const (
	httpBadRequest   = 400
	httpUnauthorized = 401
	httpForbidden    = 403
	httpTeapot       = 418
	httpTooMany      = 429
	httpServerError  = 500
)

// Binance order-rejection codes classifyStatus maps to NotFound rather
// than OrderRejected (spec.md §7, §8 scenario 6): the referenced order
// simply doesn't exist anymore, which is idempotent-success territory
// for cancel/query callers.
const (
	codeUnknownOrder  = -2013
	codeOrderNotFound = -2011
)

var statusMap = map[string]domain.OrderStatus{
	"NEW":              domain.OrderStatusOpen,
	"PARTIALLY_FILLED": domain.OrderStatusPartiallyFilled,
	"FILLED":           domain.OrderStatusFilled,
	"CANCELED":         domain.OrderStatusCanceled,
	"REJECTED":         domain.OrderStatusRejected,
	"EXPIRED":          domain.OrderStatusExpired,
	"EXPIRED_IN_MATCH": domain.OrderStatusExpired,
}

type credential struct {
	apiKey    string
	apiSecret string
}

// RetryPolicy controls the adapter's backoff on transient failures
// (spec.md §8 scenario 5): up to MaxAttempts tries total, sleeping a
// random duration in [0, BaseDelay*2^attempt] between attempts.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond}
}

// Adapter is the Binance Spot implementation of venue.Adapter. The
// underlying *http.Client is adapter-owned, built once in NewAdapter
// and shared by every request; the adapter has no Close method.
// Credentials are mutated only via RegisterAccount/UnregisterAccount,
// cheap synchronous map operations per spec.md §5.
type Adapter struct {
	baseURL     string
	httpClient  *http.Client
	retryPolicy RetryPolicy

	mu          sync.RWMutex
	credentials map[string]credential
}

// NewAdapter constructs a Binance Spot adapter. baseURL is either the
// testnet or mainnet REST base (config.TestnetRESTBaseURL or the
// production equivalent); requestTimeout is the total per-request
// timeout (30s default per spec.md §5).
func NewAdapter(baseURL string, requestTimeout time.Duration, retryPolicy RetryPolicy) *Adapter {
	return &Adapter{
		baseURL:     trimTrailingSlash(baseURL),
		httpClient:  &http.Client{Timeout: requestTimeout},
		retryPolicy: retryPolicy,
		credentials: make(map[string]credential),
	}
}

func trimTrailingSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

func (a *Adapter) RegisterAccount(accountID, apiKey, apiSecret string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.credentials[accountID] = credential{apiKey: apiKey, apiSecret: apiSecret}
}

func (a *Adapter) UnregisterAccount(accountID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.credentials, accountID)
}

func (a *Adapter) getCredentials(accountID string) (credential, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	cred, ok := a.credentials[accountID]
	if !ok {
		return credential{}, venue.NewAuthenticationError(
			fmt.Sprintf("no credentials registered for account %q", accountID))
	}
	return cred, nil
}

func mapOrderStatus(binanceStatus string) (domain.OrderStatus, error) {
	status, ok := statusMap[binanceStatus]
	if !ok {
		return "", fmt.Errorf("unknown Binance order status: %q", binanceStatus)
	}
	return status, nil
}

// mapOrderType translates a Binance `type`/`timeInForce` pair into the
// domain's OrderType vocabulary: MARKET/* -> MARKET, LIMIT/IOC ->
// LIMIT_IOC, LIMIT/other -> LIMIT. Anything else is an InvalidArgument
// (spec.md §4.E) — this venue adapter never submits those types, so a
// venue response carrying one means the wire contract changed underneath it.
func mapOrderType(binanceType, timeInForce string) (domain.OrderType, error) {
	switch binanceType {
	case "MARKET":
		return domain.OrderTypeMarket, nil
	case "LIMIT":
		if timeInForce == "IOC" {
			return domain.OrderTypeLimitIOC, nil
		}
		return domain.OrderTypeLimit, nil
	default:
		return "", &domain.InvalidArgumentError{
			Type:   "VenueOrder",
			Field:  "order_type",
			Reason: fmt.Sprintf("unrecognized Binance order type %q", binanceType),
		}
	}
}

// formatDecimal renders a decimal in plain (never scientific) notation,
// as Binance's parser rejects exponential forms (spec.md §9).
func formatDecimal(d decimal.Decimal) string {
	return d.String()
}

var _ venue.Adapter = (*Adapter)(nil)

// sleepCtx is used by call sites that perform a blocking sleep
// between retry attempts; it lets a caller's cancellation interrupt
// the backoff wait instead of always sleeping the full duration.
func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
