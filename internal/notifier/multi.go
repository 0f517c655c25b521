package notifier

import (
	"context"
	"errors"

	"github.com/labomba/deposit-settlement/internal/utils/logger"
)

// Multi fans an event out to every notifier. A failing notifier does not stop
// the others; all failures are logged and joined.
type Multi struct {
	notifiers []INotifier
	logger    *logger.Logger
}

func NewMulti(logger *logger.Logger, notifiers ...INotifier) *Multi {
	return &Multi{notifiers: notifiers, logger: logger}
}

func (m *Multi) Notify(ctx context.Context, event Event) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, event); err != nil {
			m.logger.Error("[Multi][Notify]", map[string]string{
				"kind":      string(event.Kind),
				"entity_id": event.EntityID,
				"error":     err.Error(),
			})
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len reports how many delivery channels are configured.
func (m *Multi) Len() int {
	return len(m.notifiers)
}
