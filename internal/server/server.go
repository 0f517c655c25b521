package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"

	"github.com/labomba/deposit-settlement/internal/chain"
	"github.com/labomba/deposit-settlement/internal/chain/evm"
	"github.com/labomba/deposit-settlement/internal/chain/solana"
	"github.com/labomba/deposit-settlement/internal/consts"
	"github.com/labomba/deposit-settlement/internal/controller"
	"github.com/labomba/deposit-settlement/internal/handler"
	"github.com/labomba/deposit-settlement/internal/ledger"
	"github.com/labomba/deposit-settlement/internal/model"
	"github.com/labomba/deposit-settlement/internal/monitoring"
	"github.com/labomba/deposit-settlement/internal/notifier"
	"github.com/labomba/deposit-settlement/internal/store"
	pgstore "github.com/labomba/deposit-settlement/internal/store/postgres"
	"github.com/labomba/deposit-settlement/internal/telemetry"
	httptransport "github.com/labomba/deposit-settlement/internal/transport/http"
	"github.com/labomba/deposit-settlement/internal/utils/config"
	"github.com/labomba/deposit-settlement/internal/utils/logger"
	"github.com/labomba/deposit-settlement/internal/utils/vault"
	"github.com/labomba/deposit-settlement/internal/utils/webhook"
	"github.com/labomba/deposit-settlement/internal/verifier"
)

const (
	shutdownTimeout       = 20 * time.Second
	reconciliationTimeout = 2 * time.Minute
)

func Init() {
	appConfig := config.New()
	logger := logger.New(appConfig.Environment)
	defer logger.Sync()

	if appConfig.Vault.Addr != "" {
		if err := loadVaultSecrets(appConfig); err != nil {
			logger.Fatal("[Init][loadVaultSecrets]", map[string]string{"error": err.Error()})
		}
		logger.Info("[Init][loadVaultSecrets] credentials loaded from vault", map[string]string{"path": appConfig.Vault.KVPath})
	}

	if err := appConfig.Validate(); err != nil {
		logger.Fatal("[Init][Validate] invalid configuration", map[string]string{"error": err.Error()})
	}

	db := pgstore.New(appConfig, logger)
	s := store.New(db)

	metricsRegistry := prometheus.NewRegistry()
	metricsRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	apiMetrics := monitoring.NewExternalAPIMetrics()
	apiMetrics.MustRegister(metricsRegistry)
	settlementMetrics := monitoring.NewSettlementMetrics()
	settlementMetrics.MustRegister(metricsRegistry)
	httpMetrics := monitoring.NewHTTPMetrics()
	httpMetrics.MustRegister(metricsRegistry)
	jobMetrics := monitoring.NewBackgroundJobMetrics()
	jobMetrics.MustRegister(metricsRegistry)

	registry, err := newChainRegistry(appConfig, apiMetrics, logger)
	if err != nil {
		logger.Fatal("[Init][newChainRegistry]", map[string]string{"error": err.Error()})
	}
	custody := make(map[model.Network]string)
	for _, network := range model.Networks() {
		chainCfg, _ := appConfig.Chains.For(network)
		custody[network] = chainCfg.CustodyAddress
	}
	if err := registry.ValidateCustody(custody); err != nil {
		logger.Fatal("[Init][ValidateCustody]", map[string]string{"error": err.Error()})
	}

	ledgerClient := ledger.NewSupabase(appConfig.Ledger, appConfig.RPCTimeout, logger)

	notifiers, natsConn := newNotifiers(appConfig, ledgerClient, logger)
	if natsConn != nil {
		defer natsConn.Drain()
	}

	v := verifier.New(registry, appConfig.VerdictCacheTTL, settlementMetrics, logger)
	ctrl := controller.New(db, s, registry, v, ledgerClient, notifiers, settlementMetrics, appConfig, logger)
	tel := telemetry.New(db, s, appConfig, logger, settlementMetrics)

	jobStatusManager := monitoring.NewJobStatusManager(logger, jobMetrics)
	defer jobStatusManager.Stop()

	reconcileJob := monitoring.NewInstrumentedJobWithWebhook(
		consts.ReconciliationJobName,
		tel.RunReconciliation,
		jobStatusManager,
		logger,
		reconciliationTimeout,
		webhook.New(logger),
		appConfig.UptimeWebhookURL,
	)

	c := cron.New()
	var reconcileEntry cron.EntryID
	reconcileEntry, err = c.AddFunc(appConfig.ReconcileSchedule, func() {
		reconcileJob.Execute()
		jobStatusManager.SetNextRun(consts.ReconciliationJobName, c.Entry(reconcileEntry).Next)
	})
	if err != nil {
		logger.Fatal("[Init][AddFunc] invalid reconcile schedule", map[string]string{
			"schedule": appConfig.ReconcileSchedule,
			"error":    err.Error(),
		})
	}
	c.Start()
	jobStatusManager.SetNextRun(consts.ReconciliationJobName, c.Entry(reconcileEntry).Next)

	h := handler.New(appConfig, logger, ctrl, tel, registry, db, metricsRegistry, jobStatusManager)
	srv := &http.Server{
		Addr:              ":" + appConfig.ApiServer.Port,
		Handler:           httptransport.NewHttpServer(appConfig, logger, h, httpMetrics),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("[Init] http server listening", map[string]string{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("[Init][ListenAndServe]", map[string]string{"error": err.Error()})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("[Init] shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("[Init][Shutdown]", map[string]string{"error": err.Error()})
	}
	<-c.Stop().Done()
	if err := ctrl.Wait(ctx); err != nil {
		logger.Warn("[Init][Wait] notifications still in flight", map[string]string{"error": err.Error()})
	}
}

func loadVaultSecrets(appConfig *config.AppConfig) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	vc, err := vault.New(ctx, appConfig.Vault.Addr, appConfig.Vault.KVPath, appConfig.Vault.Role, appConfig.Vault.TokenPath)
	if err != nil {
		return err
	}
	secrets, err := vc.Secrets(ctx)
	if err != nil {
		return err
	}
	appConfig.ApplySecrets(secrets)
	return nil
}

// newChainRegistry builds one adapter per network, each behind a circuit breaker.
func newChainRegistry(appConfig *config.AppConfig, apiMetrics *monitoring.ExternalAPIMetrics, logger *logger.Logger) (*chain.Registry, error) {
	base, err := evm.Dial(model.NetworkBase, appConfig.Chains.Base, appConfig.RPCTimeout, logger.With(map[string]string{"network": model.NetworkBase.String()}))
	if err != nil {
		return nil, err
	}
	polygon, err := evm.Dial(model.NetworkPolygon, appConfig.Chains.Polygon, appConfig.RPCTimeout, logger.With(map[string]string{"network": model.NetworkPolygon.String()}))
	if err != nil {
		return nil, err
	}
	sol := solana.New(appConfig.Chains.Solana, appConfig.RPCTimeout, logger.With(map[string]string{"network": model.NetworkSolana.String()}))

	timeouts := monitoring.TimeoutConfig{
		RequestTimeout:     appConfig.RPCTimeout,
		HealthCheckTimeout: monitoring.DefaultTimeoutConfig.HealthCheckTimeout,
	}
	adapters := []chain.IAdapter{sol, base, polygon}
	wrapped := make([]chain.IAdapter, 0, len(adapters))
	for _, a := range adapters {
		wrapped = append(wrapped, monitoring.NewCircuitBreakerAdapterWithTimeout(
			a, monitoring.CircuitBreakerConfigs[a.Network()], timeouts, apiMetrics, logger,
		))
	}
	return chain.NewRegistry(wrapped...), nil
}

// newNotifiers enables each channel whose credentials are configured.
func newNotifiers(appConfig *config.AppConfig, lookup notifier.EmailLookup, logger *logger.Logger) (notifier.INotifier, *nats.Conn) {
	var channels []notifier.INotifier
	if appConfig.Telegram.BotToken != "" && appConfig.Telegram.AdminChatID != "" {
		channels = append(channels, notifier.NewTelegram(appConfig.Telegram, logger))
	}
	if appConfig.Email.ResendAPIKey != "" {
		channels = append(channels, notifier.NewEmail(appConfig.Email, lookup, logger))
	}

	var conn *nats.Conn
	if appConfig.NATS.URL != "" {
		var err error
		conn, err = notifier.ConnectNATS(appConfig.NATS, logger)
		if err != nil {
			logger.Error("[newNotifiers][ConnectNATS] event stream disabled", map[string]string{"error": err.Error()})
		} else {
			channels = append(channels, notifier.NewNATS(conn, appConfig.NATS.SubjectPrefix))
		}
	}

	multi := notifier.NewMulti(logger, channels...)
	logger.Info("[newNotifiers] notification channels enabled", map[string]string{
		"count": strconv.Itoa(multi.Len()),
	})
	return multi, conn
}
