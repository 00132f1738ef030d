package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	agentRepoImpl "github.com/veripoint/identity-gateway/internal/agent_service/repository/postgres"
	"github.com/veripoint/identity-gateway/internal/catalog_service/domain"
	"github.com/veripoint/identity-gateway/internal/platform/config"
	"github.com/veripoint/identity-gateway/internal/platform/database"
	"github.com/veripoint/identity-gateway/internal/platform/logger"
	"github.com/veripoint/identity-gateway/internal/platform/messagebroker"
	"github.com/veripoint/identity-gateway/internal/request_service/adapters/providers"
	requestapp "github.com/veripoint/identity-gateway/internal/request_service/app"
	requestRepoImpl "github.com/veripoint/identity-gateway/internal/request_service/repository/postgres"
)

const serviceName = "sweeper"

// Standalone reconciliation runner: polls async providers on a ticker,
// independent of the external cron trigger the API also exposes. Both
// paths are safe to run together because terminal transitions are
// conditional on the row still being PROCESSING.
func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("Failed to load configuration", "service", serviceName, "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel)
	appLogger.Info("Reconciliation sweeper starting...",
		"interval_seconds", cfg.SweepIntervalSeconds, "batch_size", cfg.SweepBatchSize)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := database.NewDBPool(rootCtx, cfg.PostgresDSN)
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	var publisher requestapp.EventPublisher
	natsClient, err := messagebroker.NewNatsClient(cfg.NATSUrl, serviceName, appLogger)
	if err != nil {
		appLogger.Warn("Failed to connect to NATS; resolution events disabled", "error", err)
	} else {
		defer natsClient.Close()
		publisher = natsClient
	}

	providerTimeout := time.Duration(cfg.ProviderTimeoutSeconds) * time.Second
	var checkers map[string]providers.StatusChecker
	if cfg.UseMockProviders {
		appLogger.Warn("Mock providers enabled; no upstream calls will be made")
		mock := providers.NewMockProvider(appLogger, "mock-identity", 0.1, 50, 300)
		checkers = map[string]providers.StatusChecker{
			domain.TypeIPEClearance:       mock,
			domain.TypeNINPersonalization: mock,
		}
	} else {
		checkers = map[string]providers.StatusChecker{
			domain.TypeIPEClearance:       providers.NewNinSlipIPEProvider(cfg.NinSlipAPIKey, cfg.NinSlipBaseURL, providerTimeout, appLogger),
			domain.TypeNINPersonalization: providers.NewRobostPersonalizationProvider(cfg.RobostAPIKey, cfg.RobostBaseURL, providerTimeout, appLogger),
		}
	}

	sweeper := requestapp.NewSweeper(
		agentRepoImpl.NewPgAgentRepository(),
		requestRepoImpl.NewPgRequestRepository(),
		checkers,
		database.NewPoolTxRunner(dbPool),
		dbPool,
		publisher,
		cfg.SweepBatchSize,
		appLogger,
	)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.MetricsPort), Handler: metricsMux}

	g, gCtx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(time.Duration(cfg.SweepIntervalSeconds) * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gCtx.Done():
				return nil
			case <-ticker.C:
				if _, err := sweeper.Sweep(gCtx); err != nil {
					appLogger.Error("Sweep pass failed", "error", err)
				}
			}
		}
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		appLogger.Error("Sweeper exited with error", "error", err)
		os.Exit(1)
	}
	appLogger.Info("Reconciliation sweeper shut down.")
}
