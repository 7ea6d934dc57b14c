package models

import "time"

type AccessCodeEventType string

const (
	AccessCodeEventCreate AccessCodeEventType = "create"
	AccessCodeEventRedeem AccessCodeEventType = "redeem"
)

// AccessCodeEvent is one entry in an access code's event log. At most one
// redeem event may ever exist for a code.
type AccessCodeEvent struct {
	Type      AccessCodeEventType `json:"type"`
	Timestamp time.Time           `json:"timestamp"`
	Code      string              `json:"code,omitempty"`
	RedeemedBy string             `json:"redeemed_by,omitempty"`
}

func (e AccessCodeEvent) EventType() string {
	return string(e.Type)
}

// AccessCodeState is the materialized projection of an access code's events.
type AccessCodeState struct {
	Code       string    `json:"code"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
	Redeemed   bool      `json:"redeemed,omitempty"`
	RedeemedBy string    `json:"redeemed_by,omitempty"`
	RedeemedAt time.Time `json:"redeemed_at,omitempty"`
}

// NewAccessCodeState returns the initial projection, before any event is applied.
func NewAccessCodeState() AccessCodeState {
	return AccessCodeState{}
}

// ApplyAccessCodeEvent is the pure reducer folding one event into the projection.
func ApplyAccessCodeEvent(state AccessCodeState, event AccessCodeEvent) AccessCodeState {
	switch event.Type {
	case AccessCodeEventCreate:
		state.Code = event.Code
		state.CreatedAt = event.Timestamp
	case AccessCodeEventRedeem:
		state.Redeemed = true
		state.RedeemedBy = event.RedeemedBy
		state.RedeemedAt = event.Timestamp
	}
	return state
}
