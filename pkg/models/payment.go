package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Payment is a signed claim that a recipient has earned an amount at a given
// nonce. The ID is a pure function of (recipient, nonce) and acts as the
// natural idempotency key: minting the same payment twice overwrites rather
// than duplicates.
type Payment struct {
	ID             string `json:"id"`
	Recipient      string `json:"recipient"`
	Amount         uint64 `json:"amount"`
	Nonce          uint64 `json:"nonce"`
	PaymentAccount string `json:"payment_account"`
	Signature      []byte `json:"signature,omitempty"`
}

// PaymentID derives the deterministic payment id for a recipient and nonce.
func PaymentID(recipient string, nonce uint64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", recipient, nonce)))
	return hex.EncodeToString(sum[:])
}

// SigningBytes returns the canonical byte representation covered by the
// payment signature.
func (p Payment) SigningBytes() []byte {
	return []byte(fmt.Sprintf("%s|%s|%d|%d", p.PaymentAccount, p.Recipient, p.Nonce, p.Amount))
}

type PaymentEventType string

const (
	PaymentEventCreate PaymentEventType = "create"
)

// PaymentEvent is one entry in a payment record's event log. Payments are
// minted once and never transition, so the log holds a single create event.
type PaymentEvent struct {
	Type      PaymentEventType `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	Payment   *Payment         `json:"payment,omitempty"`
}

func (e PaymentEvent) EventType() string {
	return string(e.Type)
}

// NewPaymentState returns the initial projection, before any event is applied.
func NewPaymentState() Payment {
	return Payment{}
}

// ApplyPaymentEvent is the pure reducer folding one event into the projection.
func ApplyPaymentEvent(state Payment, event PaymentEvent) Payment {
	if event.Type == PaymentEventCreate && event.Payment != nil {
		state = *event.Payment
	}
	return state
}
