package verifier

import (
	"context"

	"github.com/labomba/deposit-settlement/internal/model"
)

// IVerifier checks a transaction against on-chain data. It never mutates
// state and never returns an error; failures are reported in the verdict.
type IVerifier interface {
	Verify(ctx context.Context, network model.Network, txHash, custodyAddress string) model.VerificationVerdict
}

// Recorder receives one outcome label per verification.
type Recorder interface {
	RecordVerification(network, outcome string)
}
