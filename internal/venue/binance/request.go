package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/praxis-trading/core/internal/venue"
)

// classifyStatus maps an HTTP response to a VenueError, or nil if the
// response was not an error (spec.md §7, §8 scenarios 5-6).
func classifyStatus(resp *http.Response, body []byte) error {
	if resp.StatusCode < httpBadRequest {
		return nil
	}

	switch resp.StatusCode {
	case httpUnauthorized:
		return venue.NewAuthenticationError(fmt.Sprintf("authentication failed: HTTP %d", resp.StatusCode))
	case httpForbidden, httpTeapot, httpTooMany:
		return venue.NewRateLimitError(fmt.Sprintf("rate limited: HTTP %d", resp.StatusCode))
	}

	if resp.StatusCode >= httpServerError {
		return venue.NewTransientError(fmt.Sprintf("venue server error: HTTP %d", resp.StatusCode))
	}

	var errBody struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	venueCode := -1
	reason := fmt.Sprintf("HTTP %d", resp.StatusCode)
	if err := json.Unmarshal(body, &errBody); err == nil && errBody.Code != 0 {
		venueCode = errBody.Code
		reason = errBody.Msg
	}

	if venueCode == codeUnknownOrder || venueCode == codeOrderNotFound {
		return venue.NewNotFoundError(fmt.Sprintf("%s (code %d)", reason, venueCode))
	}

	return venue.NewOrderRejectedError(fmt.Sprintf("order rejected: %s (code %d)", reason, venueCode), venueCode, reason)
}

// doSigned performs a signed HTTP request with the adapter's retry
// policy: up to RetryPolicy.MaxAttempts tries, sleeping a randomized
// exponential backoff between attempts, retrying only on Transient
// failures (network errors and HTTP 5xx). AuthenticationError,
// RateLimitError, NotFoundError, and OrderRejectedError all surface on
// the first occurrence without retry (spec.md §7 propagation rules).
func (a *Adapter) doSigned(ctx context.Context, method, path, accountID string, params url.Values) ([]byte, error) {
	cred, err := a.getCredentials(accountID)
	if err != nil {
		return nil, err
	}
	query := signParams(params, cred.apiSecret)

	var lastErr error
	for attempt := 1; attempt <= a.retryPolicy.MaxAttempts; attempt++ {
		body, err := a.doOnce(ctx, method, path, cred.apiKey, query)
		if err == nil {
			return body, nil
		}

		if _, transient := err.(*venue.TransientError); !transient {
			return nil, err
		}
		lastErr = err

		if attempt == a.retryPolicy.MaxAttempts {
			break
		}

		zerolog.Ctx(ctx).Warn().
			Int("attempt", attempt).
			Int("max_attempts", a.retryPolicy.MaxAttempts).
			Err(err).
			Msg("venue request failed, retrying")

		maxDelay := a.retryPolicy.BaseDelay * time.Duration(int64(1)<<uint(attempt))
		delay := time.Duration(rand.Int63n(int64(maxDelay) + 1))
		sleepCtx(ctx, delay)
	}

	return nil, lastErr
}

// doPublic performs an unauthenticated, unsigned request against a
// public market-data endpoint (exchangeInfo, server time) — these
// carry no API key and are not part of the signed-endpoint surface,
// but still go through the same retry/classification path as signed
// requests since they can fail with the same transient/rate-limit
// conditions.
func (a *Adapter) doPublic(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	query := params.Encode()

	var lastErr error
	for attempt := 1; attempt <= a.retryPolicy.MaxAttempts; attempt++ {
		body, err := a.doOnce(ctx, method, path, "", query)
		if err == nil {
			return body, nil
		}

		if _, transient := err.(*venue.TransientError); !transient {
			return nil, err
		}
		lastErr = err

		if attempt == a.retryPolicy.MaxAttempts {
			break
		}

		maxDelay := a.retryPolicy.BaseDelay * time.Duration(int64(1)<<uint(attempt))
		delay := time.Duration(rand.Int63n(int64(maxDelay) + 1))
		sleepCtx(ctx, delay)
	}

	return nil, lastErr
}

func (a *Adapter) doOnce(ctx context.Context, method, path, apiKey, query string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path+"?"+query, nil)
	if err != nil {
		return nil, venue.NewTransientError(fmt.Sprintf("build request: %v", err))
	}
	if apiKey != "" {
		req.Header.Set(apiKeyHeader, apiKey)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, venue.NewTransientError(fmt.Sprintf("request failed: %v", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, venue.NewTransientError(fmt.Sprintf("read response: %v", err))
	}

	if classifyErr := classifyStatus(resp, body); classifyErr != nil {
		return nil, classifyErr
	}
	return body, nil
}
