package controller

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/labomba/deposit-settlement/internal/chain"
	"github.com/labomba/deposit-settlement/internal/ledger"
	"github.com/labomba/deposit-settlement/internal/model"
	"github.com/labomba/deposit-settlement/internal/notifier"
	"github.com/labomba/deposit-settlement/internal/store"
	"github.com/labomba/deposit-settlement/internal/utils/config"
	"github.com/labomba/deposit-settlement/internal/utils/logger"
	"github.com/labomba/deposit-settlement/internal/verifier"
)

const (
	notifyTimeout        = 15 * time.Second
	defaultSettleTimeout = 30 * time.Second
	adminLinkTTL         = 72 * time.Hour

	entityClaim      = "deposit_claim"
	entityWithdrawal = "withdrawal_request"
)

type Controller struct {
	db       *gorm.DB
	store    *store.Store
	registry *chain.Registry
	verifier verifier.IVerifier
	ledger   ledger.ILedger
	notifier notifier.INotifier
	metrics  Metrics
	config   *config.AppConfig
	logger   *logger.Logger

	notifications sync.WaitGroup
	now           func() time.Time
}

func New(
	db *gorm.DB,
	store *store.Store,
	registry *chain.Registry,
	verifier verifier.IVerifier,
	ledger ledger.ILedger,
	notifier notifier.INotifier,
	metrics Metrics,
	config *config.AppConfig,
	logger *logger.Logger,
) IController {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Controller{
		db:       db,
		store:    store,
		registry: registry,
		verifier: verifier,
		ledger:   ledger,
		notifier: notifier,
		metrics:  metrics,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// notify delivers the event in the background. Delivery failures are logged
// and counted; they never change the outcome of the operation that raised it.
func (c *Controller) notify(event notifier.Event) {
	if c.notifier == nil {
		return
	}
	event.OccurredAt = c.now()

	c.notifications.Add(1)
	go func() {
		defer c.notifications.Done()
		defer func() {
			if r := recover(); r != nil {
				c.metrics.RecordNotificationFailure(string(event.Kind))
				c.logger.Error("[notify] recovered panic", map[string]string{
					"kind":      string(event.Kind),
					"entity_id": event.EntityID,
				})
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if err := c.notifier.Notify(ctx, event); err != nil {
			c.metrics.RecordNotificationFailure(string(event.Kind))
			c.logger.Error("[notify] delivery failed", map[string]string{
				"kind":      string(event.Kind),
				"entity_id": event.EntityID,
				"error":     err.Error(),
			})
		}
	}()
}

// settleContext detaches ledger calls and their bookkeeping from the caller
// once state has been committed, so a dropped request cannot cut them short.
func (c *Controller) settleContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := 3 * c.config.RPCTimeout
	if timeout <= 0 {
		timeout = defaultSettleTimeout
	}
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

func (c *Controller) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.notifications.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) explorerURL(network model.Network, txHash string) string {
	chainCfg, ok := c.config.Chains.For(network)
	if !ok || chainCfg.ExplorerTxURL == "" || txHash == "" {
		return ""
	}
	return chainCfg.ExplorerTxURL + txHash
}

func (c *Controller) custodyAddress(network model.Network) string {
	chainCfg, _ := c.config.Chains.For(network)
	return chainCfg.CustodyAddress
}

type noopMetrics struct{}

func (noopMetrics) RecordTransition(string, string, string) {}
func (noopMetrics) RecordLedgerFailure(string)              {}
func (noopMetrics) RecordNotificationFailure(string)        {}
