package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type VerdictErrorCode string

const (
	VerdictErrorMalformedHash      VerdictErrorCode = "malformed_hash"
	VerdictErrorNotFound           VerdictErrorCode = "not_found"
	VerdictErrorRPCUnreachable     VerdictErrorCode = "rpc_unreachable"
	VerdictErrorUnsupportedNetwork VerdictErrorCode = "unsupported_network"
	VerdictErrorExtractionFailed   VerdictErrorCode = "extraction_failed"
)

// VerificationVerdict is the outcome of checking a claim against on-chain data.
// It is computed on demand and never persisted.
type VerificationVerdict struct {
	Network                          Network          `json:"network"`
	TxHash                           string           `json:"tx_hash"`
	TransactionFound                 bool             `json:"transaction_found"`
	Confirmed                        bool             `json:"confirmed"`
	DetectedAmount                   *decimal.Decimal `json:"detected_amount"`
	DestinationMatchesCustodyAddress bool             `json:"destination_matches_custody_address"`
	ObservedWrongDestination         string           `json:"observed_wrong_destination,omitempty"`
	NoAssetTransfer                  bool             `json:"no_asset_transfer"`
	ErrorCode                        VerdictErrorCode `json:"error_code,omitempty"`
	ErrorReason                      string           `json:"error_reason,omitempty"`
	Retryable                        bool             `json:"retryable"`
	CheckedAt                        time.Time        `json:"checked_at"`
}

// Final reports whether the on-chain state backing the verdict can no longer change.
func (v VerificationVerdict) Final() bool {
	return v.ErrorCode == "" && v.TransactionFound && v.Confirmed
}

// Creditable is true only when a confirmed transfer of the asset reached custody.
func (v VerificationVerdict) Creditable() bool {
	return v.Final() && v.DestinationMatchesCustodyAddress && v.DetectedAmount != nil
}
