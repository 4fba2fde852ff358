package checkapplicationgate

import "time"

type Config struct {
	Timeout time.Duration
	// PaymentStepOnZeroFee mirrors wizard.payment_step_when_fee_zero.
	PaymentStepOnZeroFee bool
}

func LoadConfig() *Config {
	return &Config{
		Timeout:              15 * time.Second,
		PaymentStepOnZeroFee: true,
	}
}
