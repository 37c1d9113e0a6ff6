package binance

import (
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/praxis-trading/core/internal/domain"
	"github.com/praxis-trading/core/internal/venue"
)

// buildOrderParams translates a domain order request into Binance's
// query parameter vocabulary. Only MARKET, LIMIT, and LIMIT_IOC are
// wired to the REST mapping — the remaining OrderType values are valid
// domain values (a TradeCommand may carry them) but this venue does
// not yet submit them, matching the upstream adapter this is grounded
// on. The returned error is a local precondition violation: never
// retried, surfaced to the caller unchanged.
func buildOrderParams(
	symbol string,
	side domain.OrderSide,
	orderType domain.OrderType,
	qty decimal.Decimal,
	params venue.SubmitOrderParams,
) (url.Values, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("side", string(side))
	q.Set("quantity", formatDecimal(qty))
	q.Set("newOrderRespType", "FULL")

	switch orderType {
	case domain.OrderTypeMarket:
		q.Set("type", "MARKET")
		if params.StopPrice != nil {
			return nil, fmt.Errorf("stop_price is not supported for MARKET orders")
		}

	case domain.OrderTypeLimit:
		q.Set("type", "LIMIT")
		if params.Price == nil {
			return nil, fmt.Errorf("price is required for LIMIT orders")
		}
		q.Set("price", formatDecimal(*params.Price))
		tif := params.TimeInForce
		if tif == "" {
			tif = "GTC"
		}
		q.Set("timeInForce", tif)
		if params.StopPrice != nil {
			return nil, fmt.Errorf("stop_price is not supported for LIMIT orders")
		}

	case domain.OrderTypeLimitIOC:
		q.Set("type", "LIMIT")
		if params.Price == nil {
			return nil, fmt.Errorf("price is required for LIMIT_IOC orders")
		}
		q.Set("price", formatDecimal(*params.Price))
		q.Set("timeInForce", "IOC")
		if params.StopPrice != nil {
			return nil, fmt.Errorf("stop_price is not supported for LIMIT_IOC orders")
		}

	default:
		return nil, fmt.Errorf("unsupported order type: %s", orderType)
	}

	if params.ClientOrderID != "" {
		q.Set("newClientOrderId", params.ClientOrderID)
	}

	return q, nil
}
