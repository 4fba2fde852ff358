package uploadapplicationdocument

import "time"

type Config struct {
	Timeout time.Duration
	// MaxDocumentBytes rejects oversized documents before they reach the backend.
	MaxDocumentBytes int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:          60 * time.Second,
		MaxDocumentBytes: 10 << 20,
	}
}
