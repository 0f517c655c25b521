package health

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/labomba/deposit-settlement/internal/chain"
	"github.com/labomba/deposit-settlement/internal/monitoring"
	"github.com/labomba/deposit-settlement/internal/utils/config"
	"github.com/labomba/deposit-settlement/internal/utils/logger"
)

// HealthHandler implements IHealthHandler interface
type HealthHandler struct {
	config           *config.AppConfig
	logger           *logger.Logger
	db               *gorm.DB
	registry         *chain.Registry
	jobStatusManager *monitoring.JobStatusManager
}

// New creates a new health handler instance
func New(config *config.AppConfig, logger *logger.Logger, db *gorm.DB, registry *chain.Registry, jobStatusManager *monitoring.JobStatusManager) IHealthHandler {
	return &HealthHandler{
		config:           config,
		logger:           logger,
		db:               db,
		registry:         registry,
		jobStatusManager: jobStatusManager,
	}
}

// Basic handles the basic health check endpoint (/healthz)
// @Summary Basic health check
// @Description Returns basic system availability status
// @Tags health
// @Accept json
// @Produce json
// @Success 200 {object} BasicHealthResponse
// @Router /healthz [get]
func (h *HealthHandler) Basic(c *gin.Context) {
	response := BasicHealthResponse{
		Message: "ok",
	}
	c.JSON(http.StatusOK, response)
}

// Database handles the database health check endpoint
// @Summary Database health check
// @Description Validates database connectivity and performance
// @Tags health
// @Accept json
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /api/v1/health/db [get]
func (h *HealthHandler) Database(c *gin.Context) {
	start := time.Now()

	response := HealthResponse{
		Timestamp: start,
		Checks:    make(map[string]HealthCheck),
	}

	dbCheck := h.checkDatabase(requestContext(c))
	response.Checks["database"] = dbCheck
	response.DurationMs = time.Since(start).Milliseconds()

	if dbCheck.Status == statusHealthy {
		response.Status = statusHealthy
		c.JSON(http.StatusOK, response)
	} else {
		response.Status = statusUnhealthy
		c.JSON(http.StatusServiceUnavailable, response)
	}
}

// External handles the chain RPC health check endpoint
// @Summary Chain RPC health check
// @Description Validates connectivity to every configured chain RPC
// @Tags health
// @Accept json
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /api/v1/health/external [get]
func (h *HealthHandler) External(c *gin.Context) {
	start := time.Now()

	response := HealthResponse{
		Timestamp: start,
		Checks:    make(map[string]HealthCheck),
	}

	ctx, cancel := context.WithTimeout(requestContext(c), 10*time.Second)
	defer cancel()

	if h.registry == nil {
		response.Checks["chains"] = HealthCheck{
			Status: statusUnhealthy,
			Error:  "chain registry not available",
		}
	} else {
		var wg sync.WaitGroup
		var mu sync.Mutex
		for _, network := range h.registry.Networks() {
			adapter, err := h.registry.Get(network)
			if err != nil {
				continue
			}
			wg.Add(1)
			go func(adapter chain.IAdapter) {
				defer wg.Done()
				check := h.checkChain(ctx, adapter)
				mu.Lock()
				response.Checks[adapter.Network().String()+"_rpc"] = check
				mu.Unlock()
			}(adapter)
		}
		wg.Wait()
	}
	response.DurationMs = time.Since(start).Milliseconds()

	allHealthy := true
	for _, check := range response.Checks {
		if check.Status != statusHealthy {
			allHealthy = false
			break
		}
	}

	if allHealthy {
		response.Status = statusHealthy
		c.JSON(http.StatusOK, response)
	} else {
		response.Status = statusUnhealthy
		c.JSON(http.StatusServiceUnavailable, response)
	}
}

// checkDatabase performs database health validation
func (h *HealthHandler) checkDatabase(ctx context.Context) HealthCheck {
	start := time.Now()

	check := HealthCheck{
		Metadata: make(map[string]interface{}),
	}

	if h.db == nil {
		check.Status = statusUnhealthy
		check.Error = "database connection not available"
		check.Latency = time.Since(start).Milliseconds()
		return check
	}

	sqlDB, err := h.db.DB()
	if err != nil {
		check.Status = statusUnhealthy
		check.Error = fmt.Sprintf("failed to get underlying database: %v", err)
		check.Latency = time.Since(start).Milliseconds()
		return check
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(pingCtx); err != nil {
		check.Status = statusUnhealthy
		if pingCtx.Err() == context.DeadlineExceeded {
			check.Error = "timeout"
		} else {
			check.Error = err.Error()
		}
		check.Latency = time.Since(start).Milliseconds()
		return check
	}

	stats := sqlDB.Stats()

	check.Status = statusHealthy
	check.Latency = time.Since(start).Milliseconds()
	check.Metadata["driver"] = h.db.Dialector.Name()
	check.Metadata["connection_pool"] = map[string]interface{}{
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
		"max_open":         stats.MaxOpenConnections,
	}

	return check
}

// checkChain asks one chain adapter for its latest block within 3 seconds.
func (h *HealthHandler) checkChain(ctx context.Context, adapter chain.IAdapter) HealthCheck {
	start := time.Now()

	check := HealthCheck{
		Metadata: map[string]interface{}{
			"network": adapter.Network().String(),
			"asset":   adapter.AssetID(),
		},
	}

	checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- adapter.HealthCheck(checkCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			check.Status = statusUnhealthy
			check.Error = err.Error()
		} else {
			check.Status = statusHealthy
		}
	case <-checkCtx.Done():
		check.Status = statusUnhealthy
		if checkCtx.Err() == context.DeadlineExceeded {
			check.Error = "timeout"
		} else {
			check.Error = checkCtx.Err().Error()
		}
	}

	if check.Status == statusUnhealthy {
		h.logger.Warn("[checkChain] chain rpc unhealthy", map[string]string{
			"network": adapter.Network().String(),
			"error":   check.Error,
		})
	}

	check.Latency = time.Since(start).Milliseconds()
	return check
}

func requestContext(c *gin.Context) context.Context {
	if c.Request != nil {
		return c.Request.Context()
	}
	return context.Background()
}
