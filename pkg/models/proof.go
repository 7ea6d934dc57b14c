package models

// PublicSignals are the values a payment proof commits to publicly. The
// circuit proves that a contiguous batch of signed payments for a single
// recipient sums to Amount across nonces [MinNonce, MaxNonce].
type PublicSignals struct {
	MinNonce       uint64 `json:"min_nonce"`
	MaxNonce       uint64 `json:"max_nonce"`
	Amount         uint64 `json:"amount"`
	Recipient      string `json:"recipient"`
	PaymentAccount string `json:"payment_account"`
}

// Proof is a zero-knowledge argument over a batch of payments, produced by
// an external proving function and consumed opaquely by this engine.
type Proof struct {
	PiA           []string      `json:"pi_a"`
	PiB           [][]string    `json:"pi_b"`
	PiC           []string      `json:"pi_c"`
	Protocol      string        `json:"protocol"`
	Curve         string        `json:"curve"`
	PublicSignals PublicSignals `json:"public_signals"`
}
