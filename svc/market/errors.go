package market

import "errors"

var (
	// ErrInvalidConfiguration is returned when the price API settings are
	// incomplete or malformed.
	ErrInvalidConfiguration = errors.New("market: invalid configuration")

	// ErrInvalidSymbol is returned when the requested symbol is not a
	// plausible ticker.
	ErrInvalidSymbol = errors.New("market: invalid symbol")

	// ErrUnknownSymbol is returned when the price API does not know the
	// symbol.
	ErrUnknownSymbol = errors.New("market: unknown symbol")

	// ErrMarketUnavailable is returned when the price API cannot be
	// reached or answers with a server error.
	ErrMarketUnavailable = errors.New("market: price api unavailable")

	// ErrMalformedQuote is returned when the price API answer cannot be
	// interpreted.
	ErrMalformedQuote = errors.New("market: malformed quote payload")
)
