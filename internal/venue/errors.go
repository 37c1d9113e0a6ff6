package venue

// VenueError is the marker every adapter failure satisfies. Callers
// type-switch on the concrete kinds below; this interface exists so a
// generic "is this a venue failure at all" check is possible without
// enumerating every kind.
type VenueError interface {
	error
	isVenueError()
}

type base struct{ message string }

func (b base) Error() string  { return b.message }
func (b base) isVenueError() {}

// OrderRejectedError is raised when the venue rejects an order
// submission for a business reason (insufficient balance, filter
// violation, self-trade, etc).
type OrderRejectedError struct {
	base
	VenueCode int
	Reason    string
}

func NewOrderRejectedError(message string, venueCode int, reason string) *OrderRejectedError {
	return &OrderRejectedError{base: base{message: message}, VenueCode: venueCode, Reason: reason}
}

// RateLimitError is raised on HTTP 403, 418 and 429 responses; it is
// never retried by the adapter.
type RateLimitError struct{ base }

func NewRateLimitError(message string) *RateLimitError {
	return &RateLimitError{base{message: message}}
}

// AuthenticationError is raised when the venue rejects API key or signature.
type AuthenticationError struct{ base }

func NewAuthenticationError(message string) *AuthenticationError {
	return &AuthenticationError{base{message: message}}
}

// TransientError is raised when retries are exhausted on HTTP 5xx or timeout.
type TransientError struct{ base }

func NewTransientError(message string) *TransientError {
	return &TransientError{base{message: message}}
}

// NotFoundError is raised when the requested order or resource does
// not exist on the venue. Callers treat this as idempotent success for
// cancel/query, fatal for submit-follow-ups (spec.md §7).
type NotFoundError struct{ base }

func NewNotFoundError(message string) *NotFoundError {
	return &NotFoundError{base{message: message}}
}
