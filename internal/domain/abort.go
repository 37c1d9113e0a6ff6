package domain

import "time"

// TradeAbort is an immutable cancel instruction addressing an existing
// TradeCommand by CommandID.
type TradeAbort struct {
	CommandID string
	AccountID string
	Reason    string
	CreatedAt time.Time
}

// NewTradeAbort validates and constructs a TradeAbort.
func NewTradeAbort(commandID, accountID, reason string, createdAt time.Time) (*TradeAbort, error) {
	const typ = "TradeAbort"
	for _, f := range []struct{ name, value string }{
		{"command_id", commandID},
		{"account_id", accountID},
		{"reason", reason},
	} {
		if err := requireString(typ, f.name, f.value); err != nil {
			return nil, err
		}
	}
	if createdAt.IsZero() {
		return nil, invalidArg(typ, "created_at", "must be set")
	}
	return &TradeAbort{CommandID: commandID, AccountID: accountID, Reason: reason, CreatedAt: createdAt}, nil
}
