package chain

import (
	"github.com/pkg/errors"

	"github.com/labomba/deposit-settlement/internal/model"
)

// Registry dispatches per-network behavior. It is read-only after construction.
type Registry struct {
	adapters map[model.Network]IAdapter
}

func NewRegistry(adapters ...IAdapter) *Registry {
	r := &Registry{adapters: make(map[model.Network]IAdapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Network()] = a
	}
	return r
}

func (r *Registry) Get(network model.Network) (IAdapter, error) {
	a, ok := r.adapters[network]
	if !ok {
		return nil, errors.Wrapf(model.ErrUnsupportedNetwork, "network %q", network)
	}
	return a, nil
}

func (r *Registry) Networks() []model.Network {
	out := make([]model.Network, 0, len(r.adapters))
	for _, n := range model.Networks() {
		if _, ok := r.adapters[n]; ok {
			out = append(out, n)
		}
	}
	return out
}

// ValidateCustody checks each configured custody address against its network's format.
func (r *Registry) ValidateCustody(custody map[model.Network]string) error {
	for network, address := range custody {
		a, err := r.Get(network)
		if err != nil {
			return err
		}
		if err := a.ValidateAddress(address); err != nil {
			return errors.Wrapf(err, "custody address for %s", network)
		}
	}
	return nil
}
