//go:build unit || !integration

package proofs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/effectai/engine-sub003/pkg/models"
)

func payment(recipient string, nonce, amount uint64) models.Payment {
	return models.Payment{
		ID:             models.PaymentID(recipient, nonce),
		Recipient:      recipient,
		Nonce:          nonce,
		Amount:         amount,
		PaymentAccount: "account",
	}
}

func TestValidateBatch(t *testing.T) {
	signals, err := ValidateBatch([]models.Payment{
		payment("r", 3, 10),
		payment("r", 4, 20),
		payment("r", 5, 30),
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), signals.MinNonce)
	assert.Equal(t, uint64(5), signals.MaxNonce)
	assert.Equal(t, uint64(60), signals.Amount)
	assert.Equal(t, "r", signals.Recipient)
	assert.Equal(t, "account", signals.PaymentAccount)
}

func TestValidateBatchSinglePayment(t *testing.T) {
	signals, err := ValidateBatch([]models.Payment{payment("r", 7, 5)})
	require.NoError(t, err)
	assert.Equal(t, uint64(7), signals.MinNonce)
	assert.Equal(t, uint64(7), signals.MaxNonce)
}

func TestValidateBatchEmpty(t *testing.T) {
	_, err := ValidateBatch(nil)
	require.Error(t, err)
	assert.True(t, errors.As(err, &ErrEmptyBatch{}))
}

func TestValidateBatchMixedRecipients(t *testing.T) {
	_, err := ValidateBatch([]models.Payment{
		payment("r1", 1, 10),
		{ID: "x", Recipient: "r2", Nonce: 2, Amount: 10, PaymentAccount: "account"},
	})
	require.Error(t, err)
	assert.True(t, errors.As(err, &ErrMixedBatch{}))
}

func TestValidateBatchGap(t *testing.T) {
	_, err := ValidateBatch([]models.Payment{
		payment("r", 1, 10),
		payment("r", 3, 10),
	})
	require.Error(t, err)

	var nonContiguous ErrNonContiguousBatch
	require.True(t, errors.As(err, &nonContiguous))
	assert.Equal(t, uint64(1), nonContiguous.Previous)
	assert.Equal(t, uint64(3), nonContiguous.Next)
}

func TestValidateBatchDescendingRejected(t *testing.T) {
	_, err := ValidateBatch([]models.Payment{
		payment("r", 2, 10),
		payment("r", 1, 10),
	})
	require.Error(t, err)
	assert.True(t, errors.As(err, &ErrNonContiguousBatch{}))
}

func TestNoopProverRoundTrip(t *testing.T) {
	ctx := context.Background()
	prover := NewNoopProver()

	proof, err := prover.Prove(ctx, []models.Payment{
		payment("r", 1, 10),
		payment("r", 2, 20),
	})
	require.NoError(t, err)

	ok, err := prover.Verify(ctx, proof)
	require.NoError(t, err)
	assert.True(t, ok)

	// tampering with the signals invalidates the proof
	proof.PublicSignals.Amount++
	ok, err = prover.Verify(ctx, proof)
	require.NoError(t, err)
	assert.False(t, ok)
}
