// Package observability wires the structured logging the execution
// core emits (spec.md §4.F); it exposes no metrics. Logging uses
// zerolog, matching the rest of the stack; context propagation of
// account_id/epoch_id/command_id stands in for the Python build's
// structlog contextvars binding.
package observability

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global zerolog logger. debug raises the level
// to Debug; otherwise Info. pretty selects a human-readable console
// writer (local/dev use); otherwise raw JSON lines, the format a
// log-shipping sidecar expects in production. Timestamps are ISO-8601
// in UTC.
func Setup(debug, pretty bool) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }

	var logger zerolog.Logger
	if pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	if debug {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	zerolog.DefaultContextLogger = &logger
	log.Logger = logger
	return logger
}

// WithAccount binds account_id to the logger carried on ctx, returning
// a context whose logger (retrieved via zerolog.Ctx) always includes
// it. Every Spine append and venue call threads ctx through for this
// reason.
func WithAccount(ctx context.Context, accountID string) context.Context {
	logger := zerolog.Ctx(ctx).With().Str("account_id", accountID).Logger()
	return logger.WithContext(ctx)
}

// WithEpoch binds epoch_id, the monotonically increasing generation
// counter that scopes Spine sequence numbers and fill deduplication.
func WithEpoch(ctx context.Context, epochID int64) context.Context {
	logger := zerolog.Ctx(ctx).With().Int64("epoch_id", epochID).Logger()
	return logger.WithContext(ctx)
}

// WithCommand binds command_id and trade_id, the pair every event and
// log line inside one execution lifecycle carries.
func WithCommand(ctx context.Context, commandID, tradeID string) context.Context {
	logger := zerolog.Ctx(ctx).With().Str("command_id", commandID).Str("trade_id", tradeID).Logger()
	return logger.WithContext(ctx)
}
