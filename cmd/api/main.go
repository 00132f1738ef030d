package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	agentapp "github.com/veripoint/identity-gateway/internal/agent_service/app"
	agentRepoImpl "github.com/veripoint/identity-gateway/internal/agent_service/repository/postgres"
	"github.com/veripoint/identity-gateway/internal/api_service/middleware"
	httptransport "github.com/veripoint/identity-gateway/internal/api_service/transport/http"
	catalogapp "github.com/veripoint/identity-gateway/internal/catalog_service/app"
	catalogdomain "github.com/veripoint/identity-gateway/internal/catalog_service/domain"
	catalogRepoImpl "github.com/veripoint/identity-gateway/internal/catalog_service/repository/postgres"
	"github.com/veripoint/identity-gateway/internal/platform/config"
	"github.com/veripoint/identity-gateway/internal/platform/database"
	"github.com/veripoint/identity-gateway/internal/platform/logger"
	"github.com/veripoint/identity-gateway/internal/platform/messagebroker"
	"github.com/veripoint/identity-gateway/internal/request_service/adapters/docrender"
	"github.com/veripoint/identity-gateway/internal/request_service/adapters/providers"
	requestapp "github.com/veripoint/identity-gateway/internal/request_service/app"
	requestRepoImpl "github.com/veripoint/identity-gateway/internal/request_service/repository/postgres"
)

const serviceName = "api"

// buildProviderSet wires the upstream adapters, or the simulated provider
// when USE_MOCK_PROVIDERS is set.
func buildProviderSet(cfg *config.Config, appLogger *slog.Logger) requestapp.ProviderSet {
	if cfg.UseMockProviders {
		appLogger.Warn("Mock providers enabled; no upstream calls will be made")
		mock := providers.NewMockProvider(appLogger, "mock-identity", 0.1, 50, 300)
		return requestapp.ProviderSet{
			NINLookup:   mock,
			PhoneLookup: mock,
			VNINSlip:    mock,
			Async: map[string]providers.AsyncProvider{
				catalogdomain.TypeIPEClearance:       mock,
				catalogdomain.TypeNINPersonalization: mock,
			},
		}
	}

	providerTimeout := time.Duration(cfg.ProviderTimeoutSeconds) * time.Second
	return requestapp.ProviderSet{
		NINLookup:   providers.NewRobostNINProvider(cfg.RobostAPIKey, cfg.RobostBaseURL, providerTimeout, appLogger),
		PhoneLookup: providers.NewRobostPhoneProvider(cfg.RobostAPIKey, cfg.RobostBaseURL, providerTimeout, appLogger),
		VNINSlip:    providers.NewDataVerifyVNINProvider(cfg.DataVerifyAPIKey, cfg.DataVerifyURL, providerTimeout, appLogger),
		Async: map[string]providers.AsyncProvider{
			catalogdomain.TypeIPEClearance:       providers.NewNinSlipIPEProvider(cfg.NinSlipAPIKey, cfg.NinSlipBaseURL, providerTimeout, appLogger),
			catalogdomain.TypeNINPersonalization: providers.NewRobostPersonalizationProvider(cfg.RobostAPIKey, cfg.RobostBaseURL, providerTimeout, appLogger),
		},
	}
}

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("Failed to load configuration", "service", serviceName, "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel)
	appLogger.Info("Identity gateway API starting...", "port", cfg.ServerPort)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := database.NewDBPool(rootCtx, cfg.PostgresDSN)
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	appLogger.Info("Connected to PostgreSQL database")

	var publisher requestapp.EventPublisher
	natsClient, err := messagebroker.NewNatsClient(cfg.NATSUrl, serviceName, appLogger)
	if err != nil {
		appLogger.Warn("Failed to connect to NATS; resolution events disabled", "error", err)
	} else {
		defer natsClient.Close()
		publisher = natsClient
		appLogger.Info("Connected to NATS")
	}

	// Repositories.
	agentRepo := agentRepoImpl.NewPgAgentRepository()
	serviceRepo := catalogRepoImpl.NewPgServiceRepository()
	requestRepo := requestRepoImpl.NewPgRequestRepository()
	walletRepo := requestRepoImpl.NewPgWalletTransactionRepository()
	txRunner := database.NewPoolTxRunner(dbPool)

	// App services.
	authService := agentapp.NewAuthService(agentRepo, dbPool, cfg.JWTSecret,
		time.Duration(cfg.JWTAccessExpiryHours)*time.Hour, appLogger)
	pricing := catalogapp.NewPricingResolver(serviceRepo, dbPool, appLogger)

	providerSet := buildProviderSet(cfg, appLogger)
	renderer := docrender.NewHTTPRenderer(cfg.DocRenderURL,
		time.Duration(cfg.ProviderTimeoutSeconds)*time.Second, appLogger)

	engine := requestapp.NewEngine(agentRepo, requestRepo, walletRepo, pricing,
		providerSet, renderer, txRunner, dbPool, publisher, appLogger)
	sweeper := requestapp.NewSweeper(agentRepo, requestRepo, requestapp.AsyncCheckers(providerSet),
		txRunner, dbPool, publisher, cfg.SweepBatchSize, appLogger)
	queryService := requestapp.NewQueryService(requestRepo, walletRepo, dbPool, appLogger)

	// Handlers.
	authHandler := httptransport.NewAuthHandler(authService, appLogger)
	accountHandler := httptransport.NewAccountHandler(authService, queryService, appLogger)
	identityHandler := httptransport.NewIdentityHandler(engine, queryService, appLogger)
	cronHandler := httptransport.NewCronHandler(sweeper, appLogger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(90 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	r.Route("/api/auth", func(authRouter chi.Router) {
		authHandler.RegisterRoutes(authRouter)
	})

	r.Route("/api/user", func(userRouter chi.Router) {
		userRouter.Use(middleware.JWTAuth(authService, appLogger))
		accountHandler.RegisterRoutes(userRouter)
	})

	r.Route("/api/v1/identity", func(apiRouter chi.Router) {
		apiRouter.Use(middleware.APIKeyAuth(authService, appLogger))
		identityHandler.RegisterRoutes(apiRouter)
	})

	r.Route("/api/cron", func(cronRouter chi.Router) {
		cronRouter.Use(middleware.CronAuth(cfg.CronSecret, appLogger))
		cronHandler.RegisterRoutes(cronRouter)
	})

	httpServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.ServerPort), Handler: r}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.MetricsPort), Handler: metricsMux}

	g, gCtx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		appLogger.Info(fmt.Sprintf("API server listening on port %d", cfg.ServerPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		appLogger.Info(fmt.Sprintf("Metrics server listening on port %d", cfg.MetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		appLogger.Info("Shutdown signal received, shutting down HTTP servers...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("API server shutdown failed", "error", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("Metrics server shutdown failed", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		appLogger.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
	appLogger.Info("Identity gateway API shut down.")
}
