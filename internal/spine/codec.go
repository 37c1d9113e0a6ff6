package spine

import (
	"encoding/json"
	"fmt"

	"github.com/praxis-trading/core/internal/domain"
)

// rfc3339Offset is the timestamp layout Append stores: ISO-8601 with
// explicit UTC offset, per spec.md §6's persisted storage layout.
const rfc3339Offset = "2006-01-02T15:04:05.000000Z07:00"

// registry is the closed set of event types the Spine will append.
// Anything else is rejected at Append time and, on Read, surfaced as
// domain.UnknownEvent rather than failing the whole read.
var registry = map[string]bool{
	"CommandAccepted":   true,
	"OrderSubmitIntent": true,
	"OrderSubmitted":    true,
	"OrderSubmitFailed": true,
	"OrderAcked":        true,
	"FillReceived":      true,
	"OrderRejected":     true,
	"OrderCanceled":     true,
	"OrderExpired":      true,
	"TradeClosed":       true,
}

func encode(event domain.Event) ([]byte, error) {
	return json.Marshal(event)
}

// envelope extracts just the fields every event carries, used to
// populate domain.UnknownEvent when event_type is not in the registry.
type envelope struct {
	AccountID string `json:"AccountID"`
	Timestamp string `json:"Timestamp"`
}

func decode(eventType string, payload []byte) (domain.Event, error) {
	switch eventType {
	case "CommandAccepted":
		var e domain.CommandAccepted
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, err
		}
		return &e, nil
	case "OrderSubmitIntent":
		var e domain.OrderSubmitIntent
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, err
		}
		return &e, nil
	case "OrderSubmitted":
		var e domain.OrderSubmitted
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, err
		}
		return &e, nil
	case "OrderSubmitFailed":
		var e domain.OrderSubmitFailed
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, err
		}
		return &e, nil
	case "OrderAcked":
		var e domain.OrderAcked
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, err
		}
		return &e, nil
	case "FillReceived":
		var e domain.FillReceived
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, err
		}
		return &e, nil
	case "OrderRejected":
		var e domain.OrderRejected
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, err
		}
		return &e, nil
	case "OrderCanceled":
		var e domain.OrderCanceled
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, err
		}
		return &e, nil
	case "OrderExpired":
		var e domain.OrderExpired
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, err
		}
		return &e, nil
	case "TradeClosed":
		var e domain.TradeClosed
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, err
		}
		return &e, nil
	default:
		var env envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			return nil, fmt.Errorf("unhydratable unknown event %q: %w", eventType, err)
		}
		ts, err := parseTimestamp(env.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("unknown event %q has unparsable timestamp: %w", eventType, err)
		}
		return domain.NewUnknownEvent(env.AccountID, ts, eventType, payload), nil
	}
}
