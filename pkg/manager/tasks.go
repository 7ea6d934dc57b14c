package manager

import (
	"context"
	"encoding/json"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/rs/zerolog/log"

	"github.com/effectai/engine-sub003/pkg/entitystore"
	"github.com/effectai/engine-sub003/pkg/ledger"
	"github.com/effectai/engine-sub003/pkg/lib/concurrency"
	"github.com/effectai/engine-sub003/pkg/models"
	"github.com/effectai/engine-sub003/pkg/telemetry"
)

// TaskStorePrefix is the key namespace owned by the task manager.
const TaskStorePrefix = "/tasks/"

type TaskStore = entitystore.Store[models.TaskState, models.TaskEvent]

// NewTaskStore builds the entity store for tasks over the given datastore.
func NewTaskStore(datastore entitystore.Datastore) *TaskStore {
	return entitystore.NewStore(entitystore.StoreParams[models.TaskState, models.TaskEvent]{
		Datastore: datastore,
		Prefix:    TaskStorePrefix,
		Initial:   models.NewTaskState,
		Apply:     models.ApplyTaskEvent,
	})
}

// Sender delivers an envelope to a remote peer and returns its response.
// Implemented by the transport proxy; narrowed to an interface here so the
// task manager can be driven by an in-process fake in tests.
type Sender interface {
	Send(ctx context.Context, to peer.ID, env *models.Envelope) (*models.Envelope, error)
}

type TaskManagerParams struct {
	Store   *TaskStore
	Workers *WorkerManager
	Queue   *WorkerQueue
	Ledger  *ledger.Ledger
	Sender  Sender
	Clock   clock.Clock
}

// TaskManager owns the task lifecycle: submission, round-robin assignment,
// accept/complete/reject transitions, and expiry. Every task mutation runs
// under that task's lock, so concurrent lifecycle messages for one task are
// applied in some serial order and the event log never forks.
type TaskManager struct {
	store   *TaskStore
	workers *WorkerManager
	queue   *WorkerQueue
	ledger  *ledger.Ledger
	sender  Sender
	locker  *concurrency.KeyedLocker
	clock   clock.Clock
}

func NewTaskManager(params TaskManagerParams) *TaskManager {
	if params.Clock == nil {
		params.Clock = clock.New()
	}
	return &TaskManager{
		store:   params.Store,
		workers: params.Workers,
		queue:   params.Queue,
		ledger:  params.Ledger,
		sender:  params.Sender,
		locker:  concurrency.NewKeyedLocker(),
		clock:   params.Clock,
	}
}

type CreateTaskRequest struct {
	// ID is optional; a uuid is generated when empty. Supplying an id makes
	// submission idempotent from the provider's side.
	ID               string
	Title            string
	Reward           uint64
	TimeLimitSeconds int64
	TemplateID       string
	TemplateData     json.RawMessage
	Provider         string
}

// CreateTask records a new task in the pending state. It does not assign:
// assignment happens on the next manage pass.
func (m *TaskManager) CreateTask(ctx context.Context, req CreateTaskRequest) (models.TaskState, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	unlock := m.locker.Lock(req.ID)
	defer unlock()

	exists, err := m.store.Has(ctx, req.ID)
	if err != nil {
		return models.TaskState{}, err
	}
	if exists {
		return models.TaskState{}, NewErrDuplicateTask(req.ID)
	}

	record := m.store.NewRecord(models.TaskEvent{
		Type:      models.TaskEventCreate,
		Timestamp: m.clock.Now().UTC(),
		Task: &models.Task{
			ID:               req.ID,
			Title:            req.Title,
			Reward:           req.Reward,
			TimeLimitSeconds: req.TimeLimitSeconds,
			TemplateID:       req.TemplateID,
			TemplateData:     req.TemplateData,
		},
		Provider: req.Provider,
	})
	if err := m.store.Put(ctx, req.ID, record); err != nil {
		return models.TaskState{}, err
	}

	telemetry.TasksCreated.Inc()
	log.Ctx(ctx).Info().
		Str("task", req.ID).
		Str("provider", req.Provider).
		Uint64("reward", req.Reward).
		Msg("task created")
	return record.State, nil
}

// ManageTasks runs one pass over all live tasks: expired assignments are
// rolled back to pending, then pending tasks are offered to the worker
// rotation. Called by the housekeeping tick and after lifecycle changes
// that may free up work.
func (m *TaskManager) ManageTasks(ctx context.Context) error {
	entities, err := m.store.List(ctx, entitystore.ListOptions[models.TaskState, models.TaskEvent]{
		Limit: -1,
		Filter: func(e entitystore.Entity[models.TaskState, models.TaskEvent]) bool {
			return !e.Record.State.Status.IsTerminal()
		},
	})
	if err != nil {
		return err
	}

	for _, entity := range entities {
		if err := m.ManageTask(ctx, entity.ID); err != nil {
			// one broken task must not starve the rest of the pass
			log.Ctx(ctx).Error().Err(err).Str("task", entity.ID).Msg("failed to manage task")
		}
	}
	return nil
}

// ManageTask advances a single task: requeues it if its assignment expired,
// then tries to assign it if it is pending.
func (m *TaskManager) ManageTask(ctx context.Context, taskID string) error {
	unlock := m.locker.Lock(taskID)
	defer unlock()

	record, err := m.store.Get(ctx, taskID)
	if err != nil {
		return err
	}

	if record.State.IsExpired(m.clock.Now().UTC()) {
		record, err = m.expireLocked(ctx, taskID, record)
		if err != nil {
			return err
		}
	}

	if record.State.Status != models.TaskStatusPending {
		return nil
	}
	return m.assignLocked(ctx, taskID, record)
}

// expireLocked rolls an expired assignment back to pending by popping the
// lifecycle events that put the task in flight. The rollback is targeted:
// only a tail accept and a tail assign are removed, so an interleaved
// completion can never be destroyed.
func (m *TaskManager) expireLocked(
	ctx context.Context,
	taskID string,
	record entitystore.Record[models.TaskState, models.TaskEvent],
) (entitystore.Record[models.TaskState, models.TaskEvent], error) {
	worker := record.State.Worker

	if record.State.Status == models.TaskStatusAccepted {
		var err error
		record, err = m.store.RollbackEvent(ctx, taskID, string(models.TaskEventAccept))
		if err != nil {
			return record, err
		}
	}
	record, err := m.store.RollbackEvent(ctx, taskID, string(models.TaskEventAssign))
	if err != nil {
		return record, err
	}

	telemetry.TasksExpired.Inc()
	log.Ctx(ctx).Info().
		Str("task", taskID).
		Str("worker", worker).
		Msg("task assignment expired, requeued")
	return record, nil
}

// assignLocked offers a pending task to the next eligible worker. The assign
// event is committed before the send; a failed send rolls it back so the
// next pass retries with another worker, while the worker keeps its place in
// the rotation.
func (m *TaskManager) assignLocked(
	ctx context.Context,
	taskID string,
	record entitystore.Record[models.TaskState, models.TaskEvent],
) error {
	workerPeer, ok := m.queue.Next()
	if !ok {
		log.Ctx(ctx).Trace().Str("task", taskID).Msg("no workers available")
		return nil
	}

	m.store.Append(&record, models.TaskEvent{
		Type:      models.TaskEventAssign,
		Timestamp: m.clock.Now().UTC(),
		Worker:    workerPeer.String(),
	})
	if err := m.store.Put(ctx, taskID, record); err != nil {
		return err
	}

	task := record.State.Task
	_, err := m.sender.Send(ctx, workerPeer, &models.Envelope{
		Task: &models.TaskMessage{Task: task},
	})
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).
			Str("task", taskID).
			Stringer("worker", workerPeer).
			Msg("failed to deliver task, rolling back assignment")
		if _, rollbackErr := m.store.RollbackEvent(ctx, taskID, string(models.TaskEventAssign)); rollbackErr != nil {
			return rollbackErr
		}
		return nil
	}

	if err := m.workers.RecordTaskEvent(ctx, workerPeer.String(), models.WorkerEventTaskAssigned); err != nil {
		log.Ctx(ctx).Error().Err(err).Stringer("worker", workerPeer).Msg("failed to record assignment stat")
	}

	telemetry.TasksAssigned.Inc()
	log.Ctx(ctx).Info().
		Str("task", taskID).
		Stringer("worker", workerPeer).
		Msg("task assigned")
	return nil
}

// OnTaskAccepted handles a worker's acceptance of its assigned task.
func (m *TaskManager) OnTaskAccepted(ctx context.Context, workerPeer string, taskID string) error {
	unlock := m.locker.Lock(taskID)
	defer unlock()

	record, err := m.store.Get(ctx, taskID)
	if err != nil {
		return err
	}
	if record.State.Status != models.TaskStatusAssigned {
		return NewErrInvalidTransition(taskID, record.State.Status, "accept")
	}
	if record.State.Worker != workerPeer {
		return NewErrWrongWorker(taskID, record.State.Worker, workerPeer)
	}

	m.store.Append(&record, models.TaskEvent{
		Type:      models.TaskEventAccept,
		Timestamp: m.clock.Now().UTC(),
	})
	if err := m.store.Put(ctx, taskID, record); err != nil {
		return err
	}

	if err := m.workers.RecordTaskEvent(ctx, workerPeer, models.WorkerEventTaskAccepted); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("worker", workerPeer).Msg("failed to record acceptance stat")
	}
	log.Ctx(ctx).Debug().Str("task", taskID).Str("worker", workerPeer).Msg("task accepted")
	return nil
}

// OnTaskCompleted handles a worker's result for an accepted task and mints
// the reward payment at the worker's next nonce. The returned payment is
// what the transport hands back to the worker on the same stream.
func (m *TaskManager) OnTaskCompleted(ctx context.Context, workerPeer string, taskID string, result json.RawMessage) (models.Payment, error) {
	unlock := m.locker.Lock(taskID)
	defer unlock()

	record, err := m.store.Get(ctx, taskID)
	if err != nil {
		return models.Payment{}, err
	}
	if record.State.Status != models.TaskStatusAccepted {
		return models.Payment{}, NewErrInvalidTransition(taskID, record.State.Status, "complete")
	}
	if record.State.Worker != workerPeer {
		return models.Payment{}, NewErrWrongWorker(taskID, record.State.Worker, workerPeer)
	}

	m.store.Append(&record, models.TaskEvent{
		Type:      models.TaskEventComplete,
		Timestamp: m.clock.Now().UTC(),
		Result:    result,
	})
	if err := m.store.Put(ctx, taskID, record); err != nil {
		return models.Payment{}, err
	}

	if err := m.workers.RecordTaskEvent(ctx, workerPeer, models.WorkerEventTaskCompleted); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("worker", workerPeer).Msg("failed to record completion stat")
	}

	payment, err := m.ledger.MintForWorker(ctx, workerPeer, record.State.Task.Reward)
	if err != nil {
		return models.Payment{}, err
	}

	telemetry.TasksCompleted.Inc()
	log.Ctx(ctx).Info().
		Str("task", taskID).
		Str("worker", workerPeer).
		Uint64("reward", record.State.Task.Reward).
		Msg("task completed")
	return payment, nil
}

// OnTaskRejected handles a worker declining its assigned or accepted task.
// Rejection is terminal for the task; no payment is minted.
func (m *TaskManager) OnTaskRejected(ctx context.Context, workerPeer string, taskID string, reason string) error {
	unlock := m.locker.Lock(taskID)
	defer unlock()

	record, err := m.store.Get(ctx, taskID)
	if err != nil {
		return err
	}
	if record.State.Status != models.TaskStatusAssigned && record.State.Status != models.TaskStatusAccepted {
		return NewErrInvalidTransition(taskID, record.State.Status, "reject")
	}
	if record.State.Worker != workerPeer {
		return NewErrWrongWorker(taskID, record.State.Worker, workerPeer)
	}

	m.store.Append(&record, models.TaskEvent{
		Type:      models.TaskEventReject,
		Timestamp: m.clock.Now().UTC(),
		Reason:    reason,
	})
	if err := m.store.Put(ctx, taskID, record); err != nil {
		return err
	}

	if err := m.workers.RecordTaskEvent(ctx, workerPeer, models.WorkerEventTaskRejected); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("worker", workerPeer).Msg("failed to record rejection stat")
	}

	telemetry.TasksRejected.Inc()
	log.Ctx(ctx).Info().
		Str("task", taskID).
		Str("worker", workerPeer).
		Str("reason", reason).
		Msg("task rejected")
	return nil
}

// GetTask returns the task's current state.
func (m *TaskManager) GetTask(ctx context.Context, taskID string) (models.TaskState, error) {
	record, err := m.store.Get(ctx, taskID)
	if err != nil {
		return models.TaskState{}, err
	}
	return record.State, nil
}

// ListTasks returns tasks, optionally filtered by status.
func (m *TaskManager) ListTasks(ctx context.Context, status models.TaskStatus) ([]entitystore.Entity[models.TaskState, models.TaskEvent], error) {
	opts := entitystore.ListOptions[models.TaskState, models.TaskEvent]{Limit: -1}
	if status != "" {
		opts.Filter = func(e entitystore.Entity[models.TaskState, models.TaskEvent]) bool {
			return e.Record.State.Status == status
		}
	}
	return m.store.List(ctx, opts)
}
