package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/josh-kwaku/clinic-settlement/internal/gateway"
)

var ErrTestModeInProduction = errors.New("GATEWAY_TEST_MODE cannot be enabled in production")

type Config struct {
	DatabaseURL   string `env:"DATABASE_URL,required"`
	JWTSecret     string `env:"JWT_SECRET,required"`
	Port          int    `env:"PORT" envDefault:"8080"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv        string `env:"APP_ENV" envDefault:"production"`
	AutoMigrate   bool   `env:"AUTO_MIGRATE" envDefault:"false"`
	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"migrations"`

	Gateway GatewayConfig `envPrefix:"GATEWAY_"`

	ReturnRateLimitRPS   float64 `env:"RETURN_RATE_LIMIT_RPS" envDefault:"20"`
	ReturnRateLimitBurst int     `env:"RETURN_RATE_LIMIT_BURST" envDefault:"40"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

type GatewayConfig struct {
	BaseURL        string        `env:"BASE_URL" envDefault:"http://mock-gateway:8081/paymentv2/vpcpay.html"`
	APIURL         string        `env:"API_URL" envDefault:"http://mock-gateway:8081/merchant_webapi/api/transaction"`
	TmnCode        string        `env:"TMN_CODE,required"`
	HashSecret     string        `env:"HASH_SECRET,required"`
	ReturnURL      string        `env:"RETURN_URL" envDefault:"http://localhost:8080/api/v1/payment/gateway-return"`
	Version        string        `env:"VERSION" envDefault:"2.1.0"`
	Locale         string        `env:"LOCALE" envDefault:"vn"`
	Currency       string        `env:"CURRENCY" envDefault:"VND"`
	AmountScale    int64         `env:"AMOUNT_SCALE" envDefault:"100"`
	UTCOffsetHours int           `env:"UTC_OFFSET_HOURS" envDefault:"7"`
	ExpireMinutes  int           `env:"EXPIRE_MINUTES" envDefault:"15"`
	Timeout        time.Duration `env:"TIMEOUT" envDefault:"5s"`
	TestMode       bool          `env:"TEST_MODE" envDefault:"false"`
}

// Load reads an optional .env file, then the environment. Values already set
// in the environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config.Load: .env: %w", err)
	}
	return Parse()
}

func Parse() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Gateway.TestMode && c.AppEnv == "production" {
		return ErrTestModeInProduction
	}
	if c.Gateway.AmountScale <= 0 {
		return fmt.Errorf("GATEWAY_AMOUNT_SCALE must be positive, got %d", c.Gateway.AmountScale)
	}
	if c.Gateway.UTCOffsetHours < -12 || c.Gateway.UTCOffsetHours > 14 {
		return fmt.Errorf("GATEWAY_UTC_OFFSET_HOURS out of range: %d", c.Gateway.UTCOffsetHours)
	}
	return nil
}

// Location is the gateway's fixed-offset time zone. Gateway timestamps and
// the "today" used for appointment dates are both evaluated in it.
func (g GatewayConfig) Location() *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+d", g.UTCOffsetHours), g.UTCOffsetHours*60*60)
}

func (g GatewayConfig) Adapter() gateway.Config {
	return gateway.Config{
		BaseURL:     g.BaseURL,
		TmnCode:     g.TmnCode,
		HashSecret:  g.HashSecret,
		ReturnURL:   g.ReturnURL,
		Version:     g.Version,
		Locale:      g.Locale,
		Currency:    g.Currency,
		AmountScale: g.AmountScale,
		Location:    g.Location(),
		ExpireAfter: time.Duration(g.ExpireMinutes) * time.Minute,
		TestMode:    g.TestMode,
	}
}
