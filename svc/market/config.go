package market

import "time"

// Config holds the price API and cache settings sourced from the
// environment.
type Config struct {
	// BaseURL is the root of the external price API.
	BaseURL string `env:"MARKET_API_BASE_URL,required"`
	// APIKey authenticates requests against the price API.
	APIKey string `env:"MARKET_API_KEY,required"`
	// RequestTimeout bounds a single quote fetch.
	RequestTimeout time.Duration `env:"MARKET_REQUEST_TIMEOUT" envDefault:"5s"`
	// CacheTTL is how long a fetched quote stays served from Redis.
	CacheTTL time.Duration `env:"MARKET_CACHE_TTL" envDefault:"60s"`
}
