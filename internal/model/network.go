package model

import (
	"strings"

	"github.com/pkg/errors"
)

// Network is the closed set of chains deposits and withdrawals settle on.
type Network string

const (
	NetworkSolana  Network = "solana"
	NetworkBase    Network = "base"
	NetworkPolygon Network = "polygon"
)

var ErrUnsupportedNetwork = errors.New("unsupported network")

func Networks() []Network {
	return []Network{NetworkSolana, NetworkBase, NetworkPolygon}
}

func ParseNetwork(s string) (Network, error) {
	n := Network(strings.ToLower(strings.TrimSpace(s)))
	if !n.Valid() {
		return "", errors.Wrapf(ErrUnsupportedNetwork, "network %q", s)
	}
	return n, nil
}

func (n Network) Valid() bool {
	switch n {
	case NetworkSolana, NetworkBase, NetworkPolygon:
		return true
	}
	return false
}

func (n Network) String() string {
	return string(n)
}
