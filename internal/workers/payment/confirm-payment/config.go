package confirmpayment

import (
	"time"

	"tender-workflow/internal/payment"
)

type Config struct {
	// Timeout must exceed PollInterval * MaxAttempts plus the push round trip.
	Timeout      time.Duration
	PollInterval time.Duration
	MaxAttempts  int
	PushTimeout  time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout:      60 * time.Second,
		PollInterval: payment.DefaultPollInterval,
		MaxAttempts:  payment.DefaultMaxAttempts,
		PushTimeout:  payment.DefaultPushTimeout,
	}
}
