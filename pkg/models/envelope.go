package models

import (
	"encoding/json"
	"time"
)

// Message variant names. Each corresponds to exactly one field of Envelope
// and is the key handlers register under.
const (
	MessageTask             = "task"
	MessageTaskAccepted     = "taskAccepted"
	MessageTaskRejected     = "taskRejected"
	MessageTaskCompleted    = "taskCompleted"
	MessagePayment          = "payment"
	MessagePayoutRequest    = "payoutRequest"
	MessageProofRequest     = "proofRequest"
	MessageProofResponse    = "proofResponse"
	MessageTemplateRequest  = "templateRequest"
	MessageTemplateResponse = "templateResponse"
	MessageRegister         = "register"
	MessageRegisterResponse = "registerResponse"
	MessageAck              = "ack"
)

// Envelope is the wire message exchanged between peers. It is a one-of:
// exactly one field must be populated. Envelopes with zero populated fields
// are empty, and envelopes with more than one are ambiguous; both are
// rejected at the routing layer instead of guessing.
type Envelope struct {
	Task             *TaskMessage             `json:"task,omitempty"`
	TaskAccepted     *TaskAcceptedMessage     `json:"taskAccepted,omitempty"`
	TaskRejected     *TaskRejectedMessage     `json:"taskRejected,omitempty"`
	TaskCompleted    *TaskCompletedMessage    `json:"taskCompleted,omitempty"`
	Payment          *PaymentMessage          `json:"payment,omitempty"`
	PayoutRequest    *PayoutRequestMessage    `json:"payoutRequest,omitempty"`
	ProofRequest     *ProofRequestMessage     `json:"proofRequest,omitempty"`
	ProofResponse    *ProofResponseMessage    `json:"proofResponse,omitempty"`
	TemplateRequest  *TemplateRequestMessage  `json:"templateRequest,omitempty"`
	TemplateResponse *TemplateResponseMessage `json:"templateResponse,omitempty"`
	Register         *RegisterMessage         `json:"register,omitempty"`
	RegisterResponse *RegisterResponseMessage `json:"registerResponse,omitempty"`
	Ack              *AckMessage              `json:"ack,omitempty"`
}

// Variants returns the names of all populated fields, in declaration order.
func (e *Envelope) Variants() []string {
	var variants []string
	if e.Task != nil {
		variants = append(variants, MessageTask)
	}
	if e.TaskAccepted != nil {
		variants = append(variants, MessageTaskAccepted)
	}
	if e.TaskRejected != nil {
		variants = append(variants, MessageTaskRejected)
	}
	if e.TaskCompleted != nil {
		variants = append(variants, MessageTaskCompleted)
	}
	if e.Payment != nil {
		variants = append(variants, MessagePayment)
	}
	if e.PayoutRequest != nil {
		variants = append(variants, MessagePayoutRequest)
	}
	if e.ProofRequest != nil {
		variants = append(variants, MessageProofRequest)
	}
	if e.ProofResponse != nil {
		variants = append(variants, MessageProofResponse)
	}
	if e.TemplateRequest != nil {
		variants = append(variants, MessageTemplateRequest)
	}
	if e.TemplateResponse != nil {
		variants = append(variants, MessageTemplateResponse)
	}
	if e.Register != nil {
		variants = append(variants, MessageRegister)
	}
	if e.RegisterResponse != nil {
		variants = append(variants, MessageRegisterResponse)
	}
	if e.Ack != nil {
		variants = append(variants, MessageAck)
	}
	return variants
}

// TaskMessage assigns a task to the receiving worker.
type TaskMessage struct {
	Task Task `json:"task"`
}

// TaskAcceptedMessage is sent by a worker that accepts an assigned task.
type TaskAcceptedMessage struct {
	TaskID    string    `json:"task_id"`
	Timestamp time.Time `json:"timestamp"`
}

// TaskRejectedMessage is sent by a worker that declines an assigned task.
type TaskRejectedMessage struct {
	TaskID    string    `json:"task_id"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TaskCompletedMessage carries the opaque result of a finished task.
type TaskCompletedMessage struct {
	TaskID    string          `json:"task_id"`
	Result    json.RawMessage `json:"result,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// PaymentMessage delivers a minted payment to a worker. It is also the
// response variant for payoutRequest.
type PaymentMessage struct {
	Payment Payment `json:"payment"`
}

// PayoutRequestMessage asks the manager to convert the worker's accrued time
// since the last payout into a payment.
type PayoutRequestMessage struct {
	Timestamp time.Time `json:"timestamp"`
}

// ProofRequestMessage asks the manager to produce a batched proof over the
// given payments. The batch must be a contiguous, strictly increasing nonce
// range for a single recipient.
type ProofRequestMessage struct {
	Payments []Payment `json:"payments"`
}

// ProofResponseMessage is the response variant for proofRequest.
type ProofResponseMessage struct {
	Proof Proof `json:"proof"`
}

// TemplateRequestMessage asks the manager for a task template blob.
type TemplateRequestMessage struct {
	TemplateID string `json:"template_id"`
}

// TemplateResponseMessage is the response variant for templateRequest.
type TemplateResponseMessage struct {
	TemplateID string          `json:"template_id"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// RegisterMessage is the worker handshake. Until it succeeds the worker is
// connected at the transport layer but not eligible for task assignment.
type RegisterMessage struct {
	Recipient  string `json:"recipient"`
	AccessCode string `json:"access_code,omitempty"`
}

// RegisterResponseMessage is the response variant for register.
type RegisterResponseMessage struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// AckMessage is the empty response for variants with no response payload.
type AckMessage struct{}

// NewAckEnvelope returns an envelope carrying a bare ack.
func NewAckEnvelope() *Envelope {
	return &Envelope{Ack: &AckMessage{}}
}
