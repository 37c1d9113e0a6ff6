package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Fill is a single, immutable execution reported by the venue. A single
// order can produce many fills; at most one Fill per (epoch, account,
// dedup_key) is ever persisted by the Event Spine.
type Fill struct {
	VenueTradeID  string
	VenueOrderID  string
	ClientOrderID string
	AccountID     string
	TradeID       string
	CommandID     string
	Symbol        string
	Side          OrderSide
	Qty           decimal.Decimal
	Price         decimal.Decimal
	Fee           decimal.Decimal
	FeeAsset      string
	IsMaker       bool
	Timestamp     time.Time
}

// NewFill validates and constructs a Fill.
func NewFill(
	venueTradeID, venueOrderID, clientOrderID, accountID, tradeID, commandID, symbol string,
	side OrderSide,
	qty, price, fee decimal.Decimal,
	feeAsset string,
	isMaker bool,
	timestamp time.Time,
) (*Fill, error) {
	const typ = "Fill"

	for _, f := range []struct{ name, value string }{
		{"venue_order_id", venueOrderID},
		{"client_order_id", clientOrderID},
		{"account_id", accountID},
		{"trade_id", tradeID},
		{"command_id", commandID},
		{"symbol", symbol},
		{"fee_asset", feeAsset},
	} {
		if err := requireString(typ, f.name, f.value); err != nil {
			return nil, err
		}
	}
	if timestamp.IsZero() {
		return nil, invalidArg(typ, "timestamp", "must be set")
	}
	if !qty.GreaterThan(decimal.Zero) {
		return nil, invalidArg(typ, "qty", "must be positive")
	}
	if !price.GreaterThan(decimal.Zero) {
		return nil, invalidArg(typ, "price", "must be positive")
	}
	if fee.LessThan(decimal.Zero) {
		return nil, invalidArg(typ, "fee", "must be non-negative")
	}

	return &Fill{
		VenueTradeID:  venueTradeID,
		VenueOrderID:  venueOrderID,
		ClientOrderID: clientOrderID,
		AccountID:     accountID,
		TradeID:       tradeID,
		CommandID:     commandID,
		Symbol:        symbol,
		Side:          side,
		Qty:           qty,
		Price:         price,
		Fee:           fee,
		FeeAsset:      feeAsset,
		IsMaker:       isMaker,
		Timestamp:     timestamp,
	}, nil
}

// DedupKey returns the deduplication key for this fill: venue_trade_id
// when present, otherwise a stable string built from the composite
// fallback (venue_order_id, price, qty, timestamp), per spec.
func (f *Fill) DedupKey() string {
	return FillDedupKey(f.VenueTradeID, f.VenueOrderID, f.Price, f.Qty, f.Timestamp)
}

// FillDedupKey canonicalises the fill dedup key rule so the Event
// Spine and the domain layer agree on it byte-for-byte: venue_trade_id
// when non-empty, else a canonical-JSON hash of the composite
// (venue_order_id, price, qty, timestamp) fallback.
func FillDedupKey(venueTradeID, venueOrderID string, price, qty decimal.Decimal, ts time.Time) string {
	if venueTradeID != "" {
		return venueTradeID
	}
	composite := struct {
		VenueOrderID string `json:"venue_order_id"`
		Price        string `json:"price"`
		Qty          string `json:"qty"`
		Timestamp    string `json:"timestamp"`
	}{
		VenueOrderID: venueOrderID,
		Price:        price.String(),
		Qty:          qty.String(),
		Timestamp:    ts.UTC().Format(time.RFC3339Nano),
	}
	raw, _ := json.Marshal(composite)
	sum := sha256.Sum256(raw)
	return "composite:" + hex.EncodeToString(sum[:])
}
