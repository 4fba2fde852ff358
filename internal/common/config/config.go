// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig               `mapstructure:"app"`
	Camunda  CamundaConfig           `mapstructure:"camunda"`
	Backend  BackendConfig           `mapstructure:"backend"`
	Auth     AuthConfig              `mapstructure:"auth"`
	Database DatabaseConfig          `mapstructure:"database"`
	Payment  PaymentConfig           `mapstructure:"payment"`
	Wizard   WizardConfig            `mapstructure:"wizard"`
	Events   EventsConfig            `mapstructure:"events"`
	Workers  map[string]WorkerConfig `mapstructure:"workers"`
	Logging  LoggingConfig           `mapstructure:"logging"`
	Server   ServerConfig            `mapstructure:"server"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

// BackendConfig points at the procurement REST backend.
type BackendConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	Timeout  int    `mapstructure:"timeout"`   // milliseconds
	CacheTTL int    `mapstructure:"cache_ttl"` // milliseconds, tender details cache
}

// AuthConfig holds the client-credentials used to obtain backend tokens.
type AuthConfig struct {
	Keycloak struct {
		URL          string `mapstructure:"url"`
		Realm        string `mapstructure:"realm"`
		ClientID     string `mapstructure:"client_id"`
		ClientSecret string `mapstructure:"client_secret"`
	} `mapstructure:"keycloak"`
}

// Enabled reports whether token auth should be attached to backend calls.
func (a AuthConfig) Enabled() bool {
	return a.Keycloak.URL != "" && a.Keycloak.ClientID != ""
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// CorrelationTTL bounds how long an applicationId is remembered for a returning bidder.
	CorrelationTTL int `mapstructure:"correlation_ttl"` // milliseconds
}

// PaymentConfig drives the push/poll confirmation protocol.
type PaymentConfig struct {
	PollInterval    int `mapstructure:"poll_interval"` // milliseconds
	MaxPollAttempts int `mapstructure:"max_poll_attempts"`
	PushTimeout     int `mapstructure:"push_timeout"` // milliseconds
}

// WizardConfig holds application wizard behaviour switches.
type WizardConfig struct {
	// PaymentStepWhenFeeZero keeps the observed rule: the PAYMENT step appears
	// when applicationFee == 0. Set false for the inverted rule (fee owed).
	PaymentStepWhenFeeZero *bool `mapstructure:"payment_step_when_fee_zero"`
}

// PaymentStepOnZeroFee resolves the flag, defaulting to the observed behaviour.
func (w WizardConfig) PaymentStepOnZeroFee() bool {
	if w.PaymentStepWhenFeeZero == nil {
		return true
	}
	return *w.PaymentStepWhenFeeZero
}

// EventsConfig configures domain event fan-out.
type EventsConfig struct {
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicARN string `mapstructure:"topic_arn"`
		Region   string `mapstructure:"region"`
	} `mapstructure:"sns"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// ServerConfig is the health/metrics listener.
type ServerConfig struct {
	Address string `mapstructure:"address"`
}
