package handler

import (
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/labomba/deposit-settlement/internal/chain"
	"github.com/labomba/deposit-settlement/internal/controller"
	"github.com/labomba/deposit-settlement/internal/handler/admin"
	"github.com/labomba/deposit-settlement/internal/handler/claim"
	"github.com/labomba/deposit-settlement/internal/handler/health"
	"github.com/labomba/deposit-settlement/internal/handler/links"
	"github.com/labomba/deposit-settlement/internal/handler/metrics"
	"github.com/labomba/deposit-settlement/internal/handler/withdrawal"
	"github.com/labomba/deposit-settlement/internal/monitoring"
	"github.com/labomba/deposit-settlement/internal/telemetry"
	"github.com/labomba/deposit-settlement/internal/utils/config"
	"github.com/labomba/deposit-settlement/internal/utils/logger"
)

type Handler struct {
	ClaimHandler      claim.IHandler
	WithdrawalHandler withdrawal.IHandler
	AdminHandler      admin.IHandler
	LinkHandler       links.IHandler
	HealthHandler     health.IHealthHandler
	MetricsHandler    *metrics.MetricsHandler
}

func New(appConfig *config.AppConfig, logger *logger.Logger,
	controller controller.IController,
	telemetry telemetry.ITelemetry,
	registry *chain.Registry,
	db *gorm.DB,
	metricsRegistry *prometheus.Registry,
	jobStatusManager *monitoring.JobStatusManager) *Handler {
	return &Handler{
		ClaimHandler:      claim.New(controller, logger),
		WithdrawalHandler: withdrawal.New(controller, logger),
		AdminHandler:      admin.New(controller, telemetry, logger),
		LinkHandler:       links.New(controller, appConfig, logger),
		HealthHandler:     health.New(appConfig, logger, db, registry, jobStatusManager),
		MetricsHandler:    metrics.NewMetricsHandler(metricsRegistry),
	}
}
