package notifier

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"github.com/labomba/deposit-settlement/internal/utils/config"
	"github.com/labomba/deposit-settlement/internal/utils/logger"
)

// Publisher is the subset of *nats.Conn used for events.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATS publishes every event as JSON on <prefix>.<kind>.
type NATS struct {
	publisher Publisher
	prefix    string
}

func NewNATS(publisher Publisher, prefix string) *NATS {
	return &NATS{publisher: publisher, prefix: prefix}
}

// ConnectNATS dials the broker and keeps reconnecting forever.
func ConnectNATS(cfg config.NATSConfig, logger *logger.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name("deposit-settlement"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			fields := map[string]string{"url": cfg.URL}
			if err != nil {
				fields["error"] = err.Error()
			}
			logger.Warn("[ConnectNATS] disconnected", fields)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("[ConnectNATS] reconnected", map[string]string{"url": nc.ConnectedUrl()})
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "connect nats")
	}
	return conn, nil
}

func (n *NATS) Notify(_ context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}
	subject := n.prefix + "." + string(event.Kind)
	if err := n.publisher.Publish(subject, data); err != nil {
		return errors.Wrapf(err, "publish %s", subject)
	}
	return nil
}
