package manager

import (
	"fmt"

	"github.com/effectai/engine-sub003/pkg/models"
)

// ErrDuplicateTask is returned when submitting a task whose id already exists.
type ErrDuplicateTask struct {
	TaskID string
}

func NewErrDuplicateTask(taskID string) ErrDuplicateTask {
	return ErrDuplicateTask{TaskID: taskID}
}

func (e ErrDuplicateTask) Error() string {
	return "task already exists: " + e.TaskID
}

// ErrInvalidTransition is returned when an operation does not apply to the
// task's current status, e.g. completing a task that was never accepted.
type ErrInvalidTransition struct {
	TaskID    string
	Status    models.TaskStatus
	Operation string
}

func NewErrInvalidTransition(taskID string, status models.TaskStatus, operation string) ErrInvalidTransition {
	return ErrInvalidTransition{TaskID: taskID, Status: status, Operation: operation}
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("cannot %s task %s in status %s", e.Operation, e.TaskID, e.Status)
}

// ErrWrongWorker is returned when a task lifecycle message arrives from a
// peer other than the task's assigned worker.
type ErrWrongWorker struct {
	TaskID   string
	Assigned string
	Actual   string
}

func NewErrWrongWorker(taskID, assigned, actual string) ErrWrongWorker {
	return ErrWrongWorker{TaskID: taskID, Assigned: assigned, Actual: actual}
}

func (e ErrWrongWorker) Error() string {
	return fmt.Sprintf("task %s is assigned to %s, not %s", e.TaskID, e.Assigned, e.Actual)
}

// ErrWorkerBanned is returned when a banned worker attempts to register.
type ErrWorkerBanned struct {
	WorkerPeer string
	Reason     string
}

func NewErrWorkerBanned(workerPeer, reason string) ErrWorkerBanned {
	return ErrWorkerBanned{WorkerPeer: workerPeer, Reason: reason}
}

func (e ErrWorkerBanned) Error() string {
	return "worker is banned: " + e.WorkerPeer
}

// ErrAccessCodeRequired is returned when registration arrives without an
// access code while the manager runs in restricted mode.
type ErrAccessCodeRequired struct {
	WorkerPeer string
}

func NewErrAccessCodeRequired(workerPeer string) ErrAccessCodeRequired {
	return ErrAccessCodeRequired{WorkerPeer: workerPeer}
}

func (e ErrAccessCodeRequired) Error() string {
	return "an access code is required to register: " + e.WorkerPeer
}

// ErrInvalidActionParams is returned when an action is invoked with a
// params value of the wrong type.
type ErrInvalidActionParams struct {
	Action string
	Params interface{}
}

func NewErrInvalidActionParams(action string, params interface{}) ErrInvalidActionParams {
	return ErrInvalidActionParams{Action: action, Params: params}
}

func (e ErrInvalidActionParams) Error() string {
	return fmt.Sprintf("invalid params for action %s: %T", e.Action, e.Params)
}

// ErrTemplateNotFound is returned for template ids the registry does not hold.
type ErrTemplateNotFound struct {
	TemplateID string
}

func NewErrTemplateNotFound(templateID string) ErrTemplateNotFound {
	return ErrTemplateNotFound{TemplateID: templateID}
}

func (e ErrTemplateNotFound) Error() string {
	return "template not found: " + e.TemplateID
}
