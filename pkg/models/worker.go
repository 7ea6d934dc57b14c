package models

import "time"

type WorkerEventType string

const (
	WorkerEventCreate        WorkerEventType = "create"
	WorkerEventJoin          WorkerEventType = "join"
	WorkerEventBan           WorkerEventType = "ban"
	WorkerEventTaskAssigned  WorkerEventType = "task_assigned"
	WorkerEventTaskAccepted  WorkerEventType = "task_accepted"
	WorkerEventTaskCompleted WorkerEventType = "task_completed"
	WorkerEventTaskRejected  WorkerEventType = "task_rejected"
	WorkerEventPayment       WorkerEventType = "payment"
)

// WorkerEvent is one entry in a worker's append-only event log. Payment
// events carry the nonce the worker record was advanced to, which is how the
// "state equals fold(events)" invariant holds for nonce bookkeeping.
type WorkerEvent struct {
	Type      WorkerEventType `json:"type"`
	Timestamp time.Time       `json:"timestamp"`

	// create
	PeerID     string `json:"peer_id,omitempty"`
	Recipient  string `json:"recipient,omitempty"`
	AccessCode string `json:"access_code,omitempty"`

	// ban
	Reason string `json:"reason,omitempty"`

	// payment
	Nonce  uint64 `json:"nonce,omitempty"`
	Amount uint64 `json:"amount,omitempty"`
	Payout bool   `json:"payout,omitempty"`
}

func (e WorkerEvent) EventType() string {
	return string(e.Type)
}

// WorkerState is the materialized projection of a worker's event log.
// Nonce only ever increases, and is advanced exactly once per minted payment.
type WorkerState struct {
	PeerID             string    `json:"peer_id"`
	Recipient          string    `json:"recipient"`
	Nonce              uint64    `json:"nonce"`
	LastPayout         time.Time `json:"last_payout,omitempty"`
	TotalTasks         uint64    `json:"total_tasks"`
	TasksAccepted      uint64    `json:"tasks_accepted"`
	TasksCompleted     uint64    `json:"tasks_completed"`
	TasksRejected      uint64    `json:"tasks_rejected"`
	TotalEarned        uint64    `json:"total_earned"`
	Banned             bool      `json:"banned,omitempty"`
	BanReason          string    `json:"ban_reason,omitempty"`
	AccessCodeRedeemed string    `json:"access_code_redeemed,omitempty"`
	JoinedAt           time.Time `json:"joined_at,omitempty"`
}

// NewWorkerState returns the initial projection, before any event is applied.
func NewWorkerState() WorkerState {
	return WorkerState{}
}

// ApplyWorkerEvent is the pure reducer folding one event into the projection.
func ApplyWorkerEvent(state WorkerState, event WorkerEvent) WorkerState {
	switch event.Type {
	case WorkerEventCreate:
		state.PeerID = event.PeerID
		state.Recipient = event.Recipient
		state.AccessCodeRedeemed = event.AccessCode
		state.JoinedAt = event.Timestamp
		// payout elapsed time is measured from creation until the first payout
		state.LastPayout = event.Timestamp
	case WorkerEventJoin:
		state.JoinedAt = event.Timestamp
	case WorkerEventBan:
		state.Banned = true
		state.BanReason = event.Reason
	case WorkerEventTaskAssigned:
		state.TotalTasks++
	case WorkerEventTaskAccepted:
		state.TasksAccepted++
	case WorkerEventTaskCompleted:
		state.TasksCompleted++
	case WorkerEventTaskRejected:
		state.TasksRejected++
	case WorkerEventPayment:
		state.Nonce = event.Nonce
		state.TotalEarned += event.Amount
		if event.Payout {
			state.LastPayout = event.Timestamp
		}
	}
	return state
}
