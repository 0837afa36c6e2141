package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/josh-kwaku/clinic-settlement/internal/clock"
	"github.com/josh-kwaku/clinic-settlement/internal/config"
	"github.com/josh-kwaku/clinic-settlement/internal/gateway"
	"github.com/josh-kwaku/clinic-settlement/internal/handler"
	"github.com/josh-kwaku/clinic-settlement/internal/logging"
	"github.com/josh-kwaku/clinic-settlement/internal/middleware"
	"github.com/josh-kwaku/clinic-settlement/internal/repository"
	"github.com/josh-kwaku/clinic-settlement/internal/service"
	"github.com/josh-kwaku/clinic-settlement/internal/service/ledger"
	"github.com/josh-kwaku/clinic-settlement/internal/service/settlement"
)

const serviceName = "clinic-api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Init(serviceName, cfg.LogLevel, cfg.AppEnv)

	if cfg.Gateway.TestMode {
		slog.Warn("gateway test mode enabled: callbacks may skip signature verification")
	}

	if cfg.AutoMigrate {
		if err := repository.Migrate(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
			slog.Error("failed to apply migrations", "error", err)
			os.Exit(1)
		}
		slog.Info("migrations applied", "dir", cfg.MigrationsDir)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := connectDB(ctx, cfg)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	loc := cfg.Gateway.Location()
	clk := clock.System()

	paymentRepo := repository.NewPaymentRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	appointmentRepo := repository.NewAppointmentRepository(db)
	patientRepo := repository.NewPatientRepository(db)
	directoryRepo := repository.NewDirectoryRepository(db)
	paymentEventRepo := repository.NewPaymentEventRepository(db)
	gatewayEventRepo := repository.NewGatewayEventRepository(db)
	idempotencyRepo := repository.NewIdempotencyRepository(db)

	payments := ledger.NewService(paymentRepo, invoiceRepo, appointmentRepo, paymentEventRepo, db, clk, loc)
	registrations := settlement.NewOrchestrator(patientRepo, invoiceRepo, appointmentRepo, directoryRepo, db, clk, loc)

	adapter := gateway.NewAdapter(cfg.Gateway.Adapter())
	client := gateway.NewClient(cfg.Gateway.APIURL, adapter, cfg.Gateway.Timeout)
	checkout := service.NewGatewayService(payments, gatewayEventRepo, adapter, client, clk)

	paymentHandler := handler.NewPaymentHandler(payments, loc)
	settlementHandler := handler.NewSettlementHandler(registrations, loc)
	gatewayHandler := handler.NewGatewayHandler(checkout)
	healthHandler := handler.NewHealthHandler(db, serviceName)

	returnLimiter := middleware.NewRateLimiter(cfg.ReturnRateLimitRPS, cfg.ReturnRateLimitBurst, 5*time.Minute)
	go returnLimiter.Run(ctx)
	go cleanIdempotencyKeys(ctx, idempotencyRepo, time.Hour)

	protected := func(h http.HandlerFunc) http.Handler {
		return middleware.Chain(h, middleware.Auth(cfg.JWTSecret), middleware.Idempotency(idempotencyRepo))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health/live", healthHandler.Liveness)
	mux.HandleFunc("GET /health/ready", healthHandler.Readiness)

	mux.Handle("GET /api/v1/payment", protected(paymentHandler.List))
	mux.Handle("POST /api/v1/payment", protected(paymentHandler.Create))
	mux.Handle("GET /api/v1/payment/{id}", protected(paymentHandler.Get))
	mux.Handle("PUT /api/v1/payment/{id}", protected(paymentHandler.Update))
	mux.Handle("DELETE /api/v1/payment/{id}", protected(paymentHandler.Delete))
	mux.Handle("GET /api/v1/payment/{id}/events", protected(paymentHandler.History))
	mux.Handle("POST /api/v1/payment/from-appointment", protected(paymentHandler.CreateFromAppointment))
	mux.Handle("POST /api/v1/payment/gateway-qr-code", protected(gatewayHandler.CreatePaymentURL))
	mux.Handle("POST /api/v1/payment/{id}/gateway-query", protected(gatewayHandler.Query))
	mux.Handle("POST /api/v1/invoice/create-and-appointment", protected(settlementHandler.CreateAndAppointment))

	// The callback carries its own signature and is called by the payer's
	// browser, so it sits outside bearer auth.
	mux.Handle("GET /api/v1/payment/gateway-return", returnLimiter.Middleware(http.HandlerFunc(gatewayHandler.Return)))

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           middleware.Chain(mux, middleware.Tracing, middleware.Logging, middleware.Recovery),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", addr, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func connectDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	pool := repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	}

	var err error
	for i := range 30 {
		var db *sql.DB
		if db, err = repository.NewPostgresDB(ctx, cfg.DatabaseURL, pool); err == nil {
			return db, nil
		}
		slog.Info("waiting for database", "attempt", i+1)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connectDB: %w", ctx.Err())
		case <-time.After(time.Second):
		}
	}
	return nil, fmt.Errorf("connectDB: gave up after 30 attempts: %w", err)
}

type expiredKeyCleaner interface {
	CleanExpired(ctx context.Context) (int64, error)
}

func cleanIdempotencyKeys(ctx context.Context, repo expiredKeyCleaner, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.CleanExpired(ctx)
			if err != nil {
				slog.Warn("idempotency cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("idempotency keys expired", "count", n)
			}
		}
	}
}
