package domain

import "errors"

var (
	// ErrProductNotFound is returned when no price entry exists for a product title
	ErrProductNotFound = errors.New("product not found")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrMalformedMessage is returned when a scrape payload is not valid JSON
	ErrMalformedMessage = errors.New("malformed scrape message")

	// ErrServiceUnavailable is returned when the price service cannot be reached or fails
	ErrServiceUnavailable = errors.New("price service unavailable")

	// ErrStaleResponse marks a round trip result superseded by a newer request or a teardown
	ErrStaleResponse = errors.New("stale response")

	// ErrStoreUnavailable is returned when the price store backend fails
	ErrStoreUnavailable = errors.New("price store unavailable")

	// ErrRateLimited is returned when rate limit is exceeded
	ErrRateLimited = errors.New("rate limit exceeded")
)
