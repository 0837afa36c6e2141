// Command mock-gateway stands in for the payment gateway during local runs.
// It serves the hosted payment page, which immediately redirects back to the
// merchant with a signed result, and the signed querydr API.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	env "github.com/caarlos0/env/v11"

	"github.com/josh-kwaku/clinic-settlement/internal/logging"
)

type config struct {
	Port           int    `env:"PORT" envDefault:"8081"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv         string `env:"APP_ENV" envDefault:"development"`
	TmnCode        string `env:"GATEWAY_TMN_CODE,required"`
	HashSecret     string `env:"GATEWAY_HASH_SECRET,required"`
	ResponseCode   string `env:"MOCK_RESPONSE_CODE" envDefault:"00"`
	UTCOffsetHours int    `env:"GATEWAY_UTC_OFFSET_HOURS" envDefault:"7"`
}

func main() {
	cfg, err := env.ParseAs[config]()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Init("mock-gateway", cfg.LogLevel, cfg.AppEnv)

	loc := time.FixedZone(fmt.Sprintf("UTC%+d", cfg.UTCOffsetHours), cfg.UTCOffsetHours*60*60)
	srv := newServer(cfg.TmnCode, cfg.HashSecret, cfg.ResponseCode, loc, time.Now)

	addr := fmt.Sprintf(":%d", cfg.Port)
	slog.Info("mock gateway started", "addr", addr, "response_code", cfg.ResponseCode)
	if err := http.ListenAndServe(addr, srv.routes()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
