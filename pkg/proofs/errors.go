package proofs

import "fmt"

// ErrEmptyBatch is returned when proving is requested over zero payments.
type ErrEmptyBatch struct{}

func NewErrEmptyBatch() ErrEmptyBatch {
	return ErrEmptyBatch{}
}

func (e ErrEmptyBatch) Error() string {
	return "payment batch is empty"
}

// ErrMixedBatch is returned when a batch spans more than one recipient or
// payment account.
type ErrMixedBatch struct {
	Expected string
	Actual   string
}

func NewErrMixedBatch(expected, actual string) ErrMixedBatch {
	return ErrMixedBatch{Expected: expected, Actual: actual}
}

func (e ErrMixedBatch) Error() string {
	return fmt.Sprintf("payment batch mixes recipients: %s and %s", e.Expected, e.Actual)
}

// ErrNonContiguousBatch is returned when batch nonces are out of order or
// have a gap.
type ErrNonContiguousBatch struct {
	Previous uint64
	Next     uint64
}

func NewErrNonContiguousBatch(previous, next uint64) ErrNonContiguousBatch {
	return ErrNonContiguousBatch{Previous: previous, Next: next}
}

func (e ErrNonContiguousBatch) Error() string {
	return fmt.Sprintf("payment batch nonces are not contiguous: %d followed by %d", e.Previous, e.Next)
}
