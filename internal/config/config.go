package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	Database    Database `envPrefix:"DATABASE_"`

	Paypal Paypal `envPrefix:"PAYPAL_"`
	Redis  Redis  `envPrefix:"REDIS_"`
	Mail   Mail   `envPrefix:"MAIL_"`
}

type Paypal struct {
	BaseApiURL   string `env:"BASE_API_URL" envDefault:"https://api-m.sandbox.paypal.com"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	WebhookID    string `env:"WEBHOOK_ID"`
	// WebhookKey is the shared secret expected in the ?key= query parameter of both endpoints.
	WebhookKey string `env:"WEBHOOK_KEY,required"`
	BusinessID string `env:"BUSINESS_ID"`
	IpnURL     string `env:"IPN_URL" envDefault:"https://ipnpb.sandbox.paypal.com/cgi-bin/webscr"`
}

type Database struct {
	Driver          string        `env:"DRIVER" envDefault:"mysql"` // mysql | postgres | sqlite
	// URL is the driver DSN. sqlite DSNs get _foreign_keys=on unless they set it.
	URL             string        `env:"URL,required"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"10"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"50"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"1h"`
	AutoMigrate     bool          `env:"AUTO_MIGRATE" envDefault:"true"`
}

type Redis struct {
	// Addr empty disables the refund lock.
	Addr     string        `env:"ADDR"`
	Password string        `env:"PASSWORD"`
	DB       int           `env:"DB" envDefault:"0"`
	LockTTL  time.Duration `env:"LOCK_TTL" envDefault:"10s"`
}

type Mail struct {
	// Host empty switches the notifier to log-only.
	Host     string `env:"SMTP_HOST"`
	Port     string `env:"SMTP_PORT" envDefault:"587"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"FROM" envDefault:"billing@localhost"`
	FromName string `env:"FROM_NAME" envDefault:"Billing"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

func (e Environment) IsDevelopment() bool {
	return e.Name == "development"
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host            string        `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port            string        `env:"HTTP_PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// Load reads the process environment into a Config.
func Load() (*Config, error) {
	return parse(env.Options{})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	switch cfg.Database.Driver {
	case DriverMySQL, DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}

	return cfg, nil
}

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)
