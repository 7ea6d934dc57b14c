package ledger

import "fmt"

// ErrNonceOverflow is returned when a worker's nonce cannot be advanced
// without wrapping. This is fatal for that worker's further payouts and is
// surfaced rather than wrapped around.
type ErrNonceOverflow struct {
	WorkerPeer string
}

func NewErrNonceOverflow(workerPeer string) ErrNonceOverflow {
	return ErrNonceOverflow{WorkerPeer: workerPeer}
}

func (e ErrNonceOverflow) Error() string {
	return "nonce overflow for worker: " + e.WorkerPeer
}

// ErrInvalidNonce is returned when a mint request would leave a gap in the
// worker's nonce sequence.
type ErrInvalidNonce struct {
	WorkerPeer string
	Expected   uint64
	Actual     uint64
}

func NewErrInvalidNonce(workerPeer string, expected, actual uint64) ErrInvalidNonce {
	return ErrInvalidNonce{WorkerPeer: workerPeer, Expected: expected, Actual: actual}
}

func (e ErrInvalidNonce) Error() string {
	return fmt.Sprintf("invalid nonce for worker %s: expected %d, got %d", e.WorkerPeer, e.Expected, e.Actual)
}

// ErrNothingAccrued is returned when a payout request arrives before any
// payable time has accumulated.
type ErrNothingAccrued struct {
	WorkerPeer string
}

func NewErrNothingAccrued(workerPeer string) ErrNothingAccrued {
	return ErrNothingAccrued{WorkerPeer: workerPeer}
}

func (e ErrNothingAccrued) Error() string {
	return "no payout accrued for worker: " + e.WorkerPeer
}

// ErrInvalidSignature is returned when a payment in a proof batch fails
// signature verification.
type ErrInvalidSignature struct {
	PaymentID string
}

func NewErrInvalidSignature(paymentID string) ErrInvalidSignature {
	return ErrInvalidSignature{PaymentID: paymentID}
}

func (e ErrInvalidSignature) Error() string {
	return "invalid signature on payment: " + e.PaymentID
}
