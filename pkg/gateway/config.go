package gateway

import "time"

// Config holds the merchant credentials and connection settings for the
// payment gateway.
type Config struct {
	BaseURL        string        `env:"GATEWAY_BASE_URL,required"`
	MerchantID     string        `env:"GATEWAY_MERCHANT_ID,required"`
	APIKey         string        `env:"GATEWAY_API_KEY,required"`
	SigningSecret  string        `env:"GATEWAY_SIGNING_SECRET,required"`
	RequestTimeout time.Duration `env:"GATEWAY_REQUEST_TIMEOUT" envDefault:"10s"`
	CallbackMaxAge time.Duration `env:"GATEWAY_CALLBACK_MAX_AGE" envDefault:"5m"`
}
