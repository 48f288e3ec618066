package auth

import "time"

// Config holds token issuance settings.
type Config struct {
	SigningKey      string        `env:"AUTH_SIGNING_KEY,required"`
	AccessTokenTTL  time.Duration `env:"AUTH_ACCESS_TOKEN_TTL" envDefault:"168h"`
	RefreshTokenTTL time.Duration `env:"AUTH_REFRESH_TOKEN_TTL" envDefault:"720h"`
	Issuer          string        `env:"AUTH_TOKEN_ISSUER" envDefault:"tradesignal"`
}
