package chain

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/labomba/deposit-settlement/internal/model"
)

type FetchErrorKind string

const (
	FetchNotFound       FetchErrorKind = "not_found"
	FetchRPCUnreachable FetchErrorKind = "rpc_unreachable"
	FetchMalformedHash  FetchErrorKind = "malformed_hash"
)

var (
	ErrInvalidTxHash   = errors.New("invalid transaction hash")
	ErrInvalidAddress  = errors.New("invalid address")
	ErrReceiptMismatch = errors.New("receipt does not belong to this network")
)

// FetchError is the only error type returned by IAdapter.Fetch.
type FetchError struct {
	Kind    FetchErrorKind
	Network model.Network
	Err     error
}

func NewFetchError(kind FetchErrorKind, network model.Network, err error) *FetchError {
	return &FetchError{Kind: kind, Network: network, Err: err}
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Network, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Network, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// FetchErrorKindOf returns the kind of a fetch failure, rpc_unreachable for
// anything that is not a *FetchError.
func FetchErrorKindOf(err error) FetchErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return FetchRPCUnreachable
}
