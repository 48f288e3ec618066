package payment

// Config holds the checkout settings sourced from the environment.
type Config struct {
	// CallbackURL is where the gateway posts payment results.
	CallbackURL string `env:"PAYMENT_CALLBACK_URL,required"`
	// RedirectURL is where the payer lands after completing checkout.
	RedirectURL string `env:"PAYMENT_REDIRECT_URL,required"`
	// TempPasswordLength sizes the generated password for accounts created
	// through the register-and-pay flow.
	TempPasswordLength int `env:"PAYMENT_TEMP_PASSWORD_LENGTH" envDefault:"12"`
}
