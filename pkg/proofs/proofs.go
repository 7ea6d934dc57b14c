// Package proofs defines the boundary to the external zero-knowledge
// proving function. The engine treats proving as pure and deterministic:
// it selects and validates the payment batch, and everything inside the
// circuit is someone else's problem.
package proofs

import (
	"context"

	"github.com/effectai/engine-sub003/pkg/models"
)

// Prover produces and verifies batched payment proofs.
type Prover interface {
	// Prove generates a proof over a validated payment batch.
	Prove(ctx context.Context, payments []models.Payment) (models.Proof, error)
	// Verify checks a proof produced by Prove.
	Verify(ctx context.Context, proof models.Proof) (bool, error)
}

// ValidateBatch checks that the payments form a provable batch: non-empty,
// a single recipient and payment account, and nonces strictly increasing
// with no gaps. The circuit enforces the same constraints; validating here
// turns a cryptic proving failure into a useful error before any work is
// done. Returns the public signals the batch commits to.
func ValidateBatch(payments []models.Payment) (models.PublicSignals, error) {
	var signals models.PublicSignals
	if len(payments) == 0 {
		return signals, NewErrEmptyBatch()
	}

	first := payments[0]
	signals.Recipient = first.Recipient
	signals.PaymentAccount = first.PaymentAccount
	signals.MinNonce = first.Nonce
	signals.MaxNonce = first.Nonce
	signals.Amount = first.Amount

	for i := 1; i < len(payments); i++ {
		payment := payments[i]
		if payment.Recipient != signals.Recipient || payment.PaymentAccount != signals.PaymentAccount {
			return signals, NewErrMixedBatch(signals.Recipient, payment.Recipient)
		}
		if payment.Nonce != payments[i-1].Nonce+1 {
			return signals, NewErrNonContiguousBatch(payments[i-1].Nonce, payment.Nonce)
		}
		signals.MaxNonce = payment.Nonce
		signals.Amount += payment.Amount
	}

	return signals, nil
}
