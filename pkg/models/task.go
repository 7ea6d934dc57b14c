package models

import (
	"encoding/json"
	"time"
)

// TaskStatus is derived from the last lifecycle event in a task's event log.
// It is never stored separately from the event history.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "PENDING"
	TaskStatusAssigned  TaskStatus = "ASSIGNED"
	TaskStatusAccepted  TaskStatus = "ACCEPTED"
	TaskStatusCompleted TaskStatus = "COMPLETED"
	TaskStatusRejected  TaskStatus = "REJECTED"
)

// IsTerminal returns true if the status is a final state.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusRejected
}

// Task is the immutable definition of a unit of work. Template data is an
// opaque blob rendered by the worker; the engine never inspects it.
type Task struct {
	ID               string          `json:"id"`
	Title            string          `json:"title"`
	Reward           uint64          `json:"reward"`
	TimeLimitSeconds int64           `json:"time_limit_seconds"`
	TemplateID       string          `json:"template_id,omitempty"`
	TemplateData     json.RawMessage `json:"template_data,omitempty"`
}

type TaskEventType string

const (
	TaskEventCreate   TaskEventType = "create"
	TaskEventAssign   TaskEventType = "assign"
	TaskEventAccept   TaskEventType = "accept"
	TaskEventComplete TaskEventType = "complete"
	TaskEventReject   TaskEventType = "reject"
)

// TaskEvent is one entry in a task's append-only event log. Only the fields
// relevant to the event type are populated.
type TaskEvent struct {
	Type      TaskEventType `json:"type"`
	Timestamp time.Time     `json:"timestamp"`

	// create
	Task     *Task  `json:"task,omitempty"`
	Provider string `json:"provider,omitempty"`

	// assign
	Worker string `json:"worker,omitempty"`

	// complete
	Result json.RawMessage `json:"result,omitempty"`

	// reject
	Reason string `json:"reason,omitempty"`
}

// EventType returns the event's type tag. Used by the entity store for
// targeted rollbacks.
func (e TaskEvent) EventType() string {
	return string(e.Type)
}

// TaskState is the materialized projection of a task's event log.
type TaskState struct {
	Task            Task            `json:"task"`
	Status          TaskStatus      `json:"status"`
	Provider        string          `json:"provider,omitempty"`
	Worker          string          `json:"worker,omitempty"`
	CreatedAt       time.Time       `json:"created_at,omitempty"`
	AssignedAt      time.Time       `json:"assigned_at,omitempty"`
	AcceptedAt      time.Time       `json:"accepted_at,omitempty"`
	CompletedAt     time.Time       `json:"completed_at,omitempty"`
	Result          json.RawMessage `json:"result,omitempty"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
}

// NewTaskState returns the initial projection, before any event is applied.
func NewTaskState() TaskState {
	return TaskState{}
}

// ApplyTaskEvent is the pure reducer folding one event into the projection.
// Replaying the full event log through this function must always reproduce
// the stored state exactly.
func ApplyTaskEvent(state TaskState, event TaskEvent) TaskState {
	switch event.Type {
	case TaskEventCreate:
		if event.Task != nil {
			state.Task = *event.Task
		}
		state.Provider = event.Provider
		state.CreatedAt = event.Timestamp
		state.Status = TaskStatusPending
	case TaskEventAssign:
		state.Worker = event.Worker
		state.AssignedAt = event.Timestamp
		state.Status = TaskStatusAssigned
	case TaskEventAccept:
		state.AcceptedAt = event.Timestamp
		state.Status = TaskStatusAccepted
	case TaskEventComplete:
		state.Result = event.Result
		state.CompletedAt = event.Timestamp
		state.Status = TaskStatusCompleted
	case TaskEventReject:
		state.RejectionReason = event.Reason
		state.CompletedAt = event.Timestamp
		state.Status = TaskStatusRejected
	}
	return state
}

// IsExpired reports whether the task's time limit has elapsed since the
// event that put it in its current state. Only assigned and accepted tasks
// can expire; the countdown restarts when the worker accepts.
func (s TaskState) IsExpired(now time.Time) bool {
	if s.Task.TimeLimitSeconds <= 0 {
		return false
	}
	limit := time.Duration(s.Task.TimeLimitSeconds) * time.Second

	switch s.Status {
	case TaskStatusAssigned:
		return now.After(s.AssignedAt.Add(limit))
	case TaskStatusAccepted:
		return now.After(s.AcceptedAt.Add(limit))
	default:
		return false
	}
}
