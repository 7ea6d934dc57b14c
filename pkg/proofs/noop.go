package proofs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/effectai/engine-sub003/pkg/models"
)

// NoopProver is a development stand-in for the external proving circuit.
// It derives proof points deterministically from the public signals so that
// Verify can check its own output, but offers no cryptographic guarantees.
type NoopProver struct{}

func NewNoopProver() *NoopProver {
	return &NoopProver{}
}

func (p *NoopProver) Prove(ctx context.Context, payments []models.Payment) (models.Proof, error) {
	signals, err := ValidateBatch(payments)
	if err != nil {
		return models.Proof{}, err
	}

	digest := signalsDigest(signals)
	return models.Proof{
		PiA:           []string{digest, "1"},
		PiB:           [][]string{{digest, "0"}, {"0", "1"}},
		PiC:           []string{digest, "1"},
		Protocol:      "groth16",
		Curve:         "bn128",
		PublicSignals: signals,
	}, nil
}

func (p *NoopProver) Verify(ctx context.Context, proof models.Proof) (bool, error) {
	if len(proof.PiA) == 0 {
		return false, nil
	}
	return proof.PiA[0] == signalsDigest(proof.PublicSignals), nil
}

func signalsDigest(signals models.PublicSignals) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%d|%d",
		signals.Recipient, signals.PaymentAccount, signals.MinNonce, signals.MaxNonce, signals.Amount)))
	return hex.EncodeToString(sum[:])
}

// compile-time check that NoopProver implements Prover
var _ Prover = (*NoopProver)(nil)
