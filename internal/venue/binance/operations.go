package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/praxis-trading/core/internal/domain"
	"github.com/praxis-trading/core/internal/venue"
)

func (a *Adapter) SubmitOrder(
	ctx context.Context,
	accountID, symbol string,
	side domain.OrderSide,
	orderType domain.OrderType,
	qty decimal.Decimal,
	params venue.SubmitOrderParams,
) (venue.SubmitResult, error) {
	q, err := buildOrderParams(symbol, side, orderType, qty, params)
	if err != nil {
		return venue.SubmitResult{}, err
	}

	body, err := a.doSigned(ctx, "POST", "/api/v3/order", accountID, q)
	if err != nil {
		return venue.SubmitResult{}, err
	}

	var raw struct {
		OrderID int64  `json:"orderId"`
		Status  string `json:"status"`
		Fills   []struct {
			TradeID         int64  `json:"tradeId"`
			Price           string `json:"price"`
			Qty             string `json:"qty"`
			Commission      string `json:"commission"`
			CommissionAsset string `json:"commissionAsset"`
		} `json:"fills"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return venue.SubmitResult{}, venue.NewTransientError(fmt.Sprintf("parse submit response: %v", err))
	}

	status, err := mapOrderStatus(raw.Status)
	if err != nil {
		return venue.SubmitResult{}, err
	}

	fills := make([]venue.ImmediateFill, 0, len(raw.Fills))
	for _, f := range raw.Fills {
		price, err := decimal.NewFromString(f.Price)
		if err != nil {
			return venue.SubmitResult{}, fmt.Errorf("parse fill price: %w", err)
		}
		fillQty, err := decimal.NewFromString(f.Qty)
		if err != nil {
			return venue.SubmitResult{}, fmt.Errorf("parse fill qty: %w", err)
		}
		fee, err := decimal.NewFromString(f.Commission)
		if err != nil {
			return venue.SubmitResult{}, fmt.Errorf("parse fill commission: %w", err)
		}
		fills = append(fills, venue.ImmediateFill{
			VenueTradeID: strconv.FormatInt(f.TradeID, 10),
			Qty:          fillQty,
			Price:        price,
			Fee:          fee,
			FeeAsset:     f.CommissionAsset,
			IsMaker:      false,
		})
	}

	return venue.SubmitResult{
		VenueOrderID:   strconv.FormatInt(raw.OrderID, 10),
		Status:         status,
		ImmediateFills: fills,
	}, nil
}

func (a *Adapter) CancelOrder(ctx context.Context, accountID, symbol string, params venue.CancelOrderParams) (venue.CancelResult, error) {
	if params.VenueOrderID == "" && params.ClientOrderID == "" {
		return venue.CancelResult{}, fmt.Errorf("at least one of venue_order_id or client_order_id must be provided")
	}

	q := url.Values{"symbol": {symbol}}
	if params.VenueOrderID != "" {
		q.Set("orderId", params.VenueOrderID)
	}
	if params.ClientOrderID != "" {
		q.Set("origClientOrderId", params.ClientOrderID)
	}

	body, err := a.doSigned(ctx, "DELETE", "/api/v3/order", accountID, q)
	if err != nil {
		return venue.CancelResult{}, err
	}

	var raw struct {
		OrderID int64  `json:"orderId"`
		Status  string `json:"status"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return venue.CancelResult{}, venue.NewTransientError(fmt.Sprintf("parse cancel response: %v", err))
	}
	status, err := mapOrderStatus(raw.Status)
	if err != nil {
		return venue.CancelResult{}, err
	}
	return venue.CancelResult{VenueOrderID: strconv.FormatInt(raw.OrderID, 10), Status: status}, nil
}

func (a *Adapter) QueryOrder(ctx context.Context, accountID, symbol string, params venue.QueryOrderParams) (venue.VenueOrder, error) {
	if params.VenueOrderID == "" && params.ClientOrderID == "" {
		return venue.VenueOrder{}, fmt.Errorf("at least one of venue_order_id or client_order_id must be provided")
	}

	q := url.Values{"symbol": {symbol}}
	if params.VenueOrderID != "" {
		q.Set("orderId", params.VenueOrderID)
	}
	if params.ClientOrderID != "" {
		q.Set("origClientOrderId", params.ClientOrderID)
	}

	body, err := a.doSigned(ctx, "GET", "/api/v3/order", accountID, q)
	if err != nil {
		return venue.VenueOrder{}, err
	}
	return parseVenueOrder(body)
}

func (a *Adapter) QueryOpenOrders(ctx context.Context, accountID, symbol string) ([]venue.VenueOrder, error) {
	q := url.Values{"symbol": {symbol}}
	body, err := a.doSigned(ctx, "GET", "/api/v3/openOrders", accountID, q)
	if err != nil {
		return nil, err
	}

	var rawOrders []json.RawMessage
	if err := json.Unmarshal(body, &rawOrders); err != nil {
		return nil, venue.NewTransientError(fmt.Sprintf("parse open orders response: %v", err))
	}
	orders := make([]venue.VenueOrder, 0, len(rawOrders))
	for _, raw := range rawOrders {
		o, err := parseVenueOrder(raw)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func (a *Adapter) QueryBalance(ctx context.Context, accountID string, assets map[string]struct{}) ([]venue.BalanceEntry, error) {
	if len(assets) == 0 {
		return nil, nil
	}

	body, err := a.doSigned(ctx, "GET", "/api/v3/account", accountID, url.Values{})
	if err != nil {
		return nil, err
	}

	var raw struct {
		Balances []struct {
			Asset  string `json:"asset"`
			Free   string `json:"free"`
			Locked string `json:"locked"`
		} `json:"balances"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, venue.NewTransientError(fmt.Sprintf("parse account response: %v", err))
	}

	entries := make([]venue.BalanceEntry, 0, len(assets))
	for _, b := range raw.Balances {
		if _, wanted := assets[b.Asset]; !wanted {
			continue
		}
		free, err := decimal.NewFromString(b.Free)
		if err != nil {
			return nil, fmt.Errorf("parse balance free: %w", err)
		}
		locked, err := decimal.NewFromString(b.Locked)
		if err != nil {
			return nil, fmt.Errorf("parse balance locked: %w", err)
		}
		entries = append(entries, venue.BalanceEntry{Asset: b.Asset, Free: free, Locked: locked})
	}
	return entries, nil
}

func (a *Adapter) QueryTrades(ctx context.Context, accountID, symbol string, params venue.QueryTradesParams) ([]venue.VenueTrade, error) {
	q := url.Values{"symbol": {symbol}}
	if params.StartTime != nil {
		q.Set("startTime", strconv.FormatInt(params.StartTime.UnixMilli(), 10))
	}

	body, err := a.doSigned(ctx, "GET", "/api/v3/myTrades", accountID, q)
	if err != nil {
		return nil, err
	}

	var raw []struct {
		ID              int64  `json:"id"`
		OrderID         int64  `json:"orderId"`
		Symbol          string `json:"symbol"`
		IsBuyer         bool   `json:"isBuyer"`
		Price           string `json:"price"`
		Qty             string `json:"qty"`
		Commission      string `json:"commission"`
		CommissionAsset string `json:"commissionAsset"`
		IsMaker         bool   `json:"isMaker"`
		Time            int64  `json:"time"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, venue.NewTransientError(fmt.Sprintf("parse trades response: %v", err))
	}

	trades := make([]venue.VenueTrade, 0, len(raw))
	for _, t := range raw {
		price, err := decimal.NewFromString(t.Price)
		if err != nil {
			return nil, fmt.Errorf("parse trade price: %w", err)
		}
		tradeQty, err := decimal.NewFromString(t.Qty)
		if err != nil {
			return nil, fmt.Errorf("parse trade qty: %w", err)
		}
		fee, err := decimal.NewFromString(t.Commission)
		if err != nil {
			return nil, fmt.Errorf("parse trade commission: %w", err)
		}
		side := domain.SideSell
		if t.IsBuyer {
			side = domain.SideBuy
		}
		trades = append(trades, venue.VenueTrade{
			VenueTradeID: strconv.FormatInt(t.ID, 10),
			VenueOrderID: strconv.FormatInt(t.OrderID, 10),
			Symbol:       t.Symbol,
			Side:         side,
			Qty:          tradeQty,
			Price:        price,
			Fee:          fee,
			FeeAsset:     t.CommissionAsset,
			IsMaker:      t.IsMaker,
			Timestamp:    millisToTime(t.Time),
		})
	}
	return trades, nil
}

func (a *Adapter) GetExchangeInfo(ctx context.Context, symbol string) (venue.SymbolFilters, error) {
	body, err := a.doPublic(ctx, "GET", "/api/v3/exchangeInfo", url.Values{"symbol": {symbol}})
	if err != nil {
		return venue.SymbolFilters{}, err
	}

	var raw struct {
		Symbols []struct {
			Symbol  string `json:"symbol"`
			Filters []struct {
				FilterType  string `json:"filterType"`
				TickSize    string `json:"tickSize"`
				StepSize    string `json:"stepSize"`
				MinQty      string `json:"minQty"`
				MaxQty      string `json:"maxQty"`
				MinNotional string `json:"minNotional"`
				Notional    string `json:"notional"`
			} `json:"filters"`
		} `json:"symbols"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return venue.SymbolFilters{}, venue.NewTransientError(fmt.Sprintf("parse exchange info response: %v", err))
	}
	if len(raw.Symbols) == 0 {
		return venue.SymbolFilters{}, venue.NewNotFoundError(fmt.Sprintf("symbol %q not found", symbol))
	}

	filters := venue.SymbolFilters{Symbol: raw.Symbols[0].Symbol}
	for _, f := range raw.Symbols[0].Filters {
		switch f.FilterType {
		case "PRICE_FILTER":
			filters.TickSize = mustDecimal(f.TickSize)
		case "LOT_SIZE":
			filters.LotStep = mustDecimal(f.StepSize)
			filters.LotMin = mustDecimal(f.MinQty)
			filters.LotMax = mustDecimal(f.MaxQty)
		case "MIN_NOTIONAL", "NOTIONAL":
			notional := f.MinNotional
			if notional == "" {
				notional = f.Notional
			}
			filters.MinNotional = mustDecimal(notional)
		}
	}
	return filters, nil
}

func (a *Adapter) GetServerTime(ctx context.Context) (int64, error) {
	body, err := a.doPublic(ctx, "GET", "/api/v3/time", url.Values{})
	if err != nil {
		return 0, err
	}
	var raw struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return 0, venue.NewTransientError(fmt.Sprintf("parse server time response: %v", err))
	}
	return raw.ServerTime, nil
}

func parseVenueOrder(body []byte) (venue.VenueOrder, error) {
	var raw struct {
		OrderID       int64  `json:"orderId"`
		ClientOrderID string `json:"clientOrderId"`
		Status        string `json:"status"`
		Symbol        string `json:"symbol"`
		Side          string `json:"side"`
		Type          string `json:"type"`
		TimeInForce   string `json:"timeInForce"`
		OrigQty       string `json:"origQty"`
		ExecutedQty   string `json:"executedQty"`
		Price         string `json:"price"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return venue.VenueOrder{}, venue.NewTransientError(fmt.Sprintf("parse order response: %v", err))
	}

	status, err := mapOrderStatus(raw.Status)
	if err != nil {
		return venue.VenueOrder{}, err
	}
	qty, err := decimal.NewFromString(raw.OrigQty)
	if err != nil {
		return venue.VenueOrder{}, fmt.Errorf("parse order qty: %w", err)
	}
	filledQty, err := decimal.NewFromString(raw.ExecutedQty)
	if err != nil {
		return venue.VenueOrder{}, fmt.Errorf("parse order filled qty: %w", err)
	}

	var price *decimal.Decimal
	if raw.Price != "" && raw.Price != "0.00000000" {
		p, err := decimal.NewFromString(raw.Price)
		if err != nil {
			return venue.VenueOrder{}, fmt.Errorf("parse order price: %w", err)
		}
		price = &p
	}

	orderType, err := mapOrderType(raw.Type, raw.TimeInForce)
	if err != nil {
		return venue.VenueOrder{}, err
	}

	side := domain.SideBuy
	if raw.Side == "SELL" {
		side = domain.SideSell
	}

	return venue.VenueOrder{
		VenueOrderID:  strconv.FormatInt(raw.OrderID, 10),
		ClientOrderID: raw.ClientOrderID,
		Status:        status,
		Symbol:        raw.Symbol,
		Side:          side,
		OrderType:     orderType,
		Qty:           qty,
		FilledQty:     filledQty,
		Price:         price,
	}, nil
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
