package manager

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/rs/zerolog/log"

	"github.com/effectai/engine-sub003/pkg/access"
	"github.com/effectai/engine-sub003/pkg/entitystore"
	"github.com/effectai/engine-sub003/pkg/lib/concurrency"
	"github.com/effectai/engine-sub003/pkg/models"
)

// WorkerStorePrefix is the key namespace owned by the worker manager.
const WorkerStorePrefix = "/worker/"

type WorkerStore = entitystore.Store[models.WorkerState, models.WorkerEvent]

// NewWorkerStore builds the entity store for workers over the given datastore.
func NewWorkerStore(datastore entitystore.Datastore) *WorkerStore {
	return entitystore.NewStore(entitystore.StoreParams[models.WorkerState, models.WorkerEvent]{
		Datastore: datastore,
		Prefix:    WorkerStorePrefix,
		Initial:   models.NewWorkerState,
		Apply:     models.ApplyWorkerEvent,
	})
}

type WorkerManagerParams struct {
	Store *WorkerStore
	// Locker must be the same instance the ledger uses so that stat updates
	// and nonce advancement on the same worker record never interleave.
	Locker      *concurrency.KeyedLocker
	Queue       *WorkerQueue
	AccessCodes *access.Service
	// RequireAccessCodes gates first-time registration behind a single-use
	// access code.
	RequireAccessCodes bool
	Clock              clock.Clock
}

// WorkerManager admits workers into the network, tracks their lifecycle
// stats through events, and controls queue eligibility.
type WorkerManager struct {
	store              *WorkerStore
	locker             *concurrency.KeyedLocker
	queue              *WorkerQueue
	accessCodes        *access.Service
	requireAccessCodes bool
	clock              clock.Clock
}

func NewWorkerManager(params WorkerManagerParams) *WorkerManager {
	if params.Clock == nil {
		params.Clock = clock.New()
	}
	return &WorkerManager{
		store:              params.Store,
		locker:             params.Locker,
		queue:              params.Queue,
		accessCodes:        params.AccessCodes,
		requireAccessCodes: params.RequireAccessCodes,
		clock:              params.Clock,
	}
}

// ConnectWorker registers a worker after its handshake and makes it eligible
// for assignment. First-time workers must redeem an access code when the
// manager runs restricted; returning workers skip the code check but are
// refused while banned. Reconnecting is idempotent.
func (m *WorkerManager) ConnectWorker(ctx context.Context, workerPeer peer.ID, recipient, accessCode string) error {
	id := workerPeer.String()
	unlock := m.locker.Lock(id)
	defer unlock()

	record, exists, err := m.store.GetSafe(ctx, id)
	if err != nil {
		return err
	}

	now := m.clock.Now().UTC()
	if exists {
		if record.State.Banned {
			return NewErrWorkerBanned(id, record.State.BanReason)
		}
		m.store.Append(&record, models.WorkerEvent{
			Type:      models.WorkerEventJoin,
			Timestamp: now,
		})
		if err := m.store.Put(ctx, id, record); err != nil {
			return err
		}
		m.queue.Enqueue(workerPeer)
		log.Ctx(ctx).Debug().Str("worker", id).Msg("worker rejoined")
		return nil
	}

	if m.requireAccessCodes {
		if accessCode == "" {
			return NewErrAccessCodeRequired(id)
		}
		if err := m.accessCodes.Redeem(ctx, accessCode, id); err != nil {
			return err
		}
	}

	record = m.store.NewRecord(models.WorkerEvent{
		Type:       models.WorkerEventCreate,
		Timestamp:  now,
		PeerID:     id,
		Recipient:  recipient,
		AccessCode: accessCode,
	})
	if err := m.store.Put(ctx, id, record); err != nil {
		return err
	}
	m.queue.Enqueue(workerPeer)

	log.Ctx(ctx).Info().
		Str("worker", id).
		Str("recipient", recipient).
		Msg("worker registered")
	return nil
}

// DisconnectWorker removes the worker from the assignment rotation. Its
// record and earnings persist for when it comes back.
func (m *WorkerManager) DisconnectWorker(ctx context.Context, workerPeer peer.ID) {
	m.queue.Remove(workerPeer)
	log.Ctx(ctx).Debug().Stringer("worker", workerPeer).Msg("worker left the queue")
}

// BanWorker marks the worker as banned and removes it from the rotation.
// Banned workers cannot re-register until the record is amended.
func (m *WorkerManager) BanWorker(ctx context.Context, workerPeer peer.ID, reason string) error {
	id := workerPeer.String()
	unlock := m.locker.Lock(id)
	defer unlock()

	record, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}

	m.store.Append(&record, models.WorkerEvent{
		Type:      models.WorkerEventBan,
		Timestamp: m.clock.Now().UTC(),
		Reason:    reason,
	})
	if err := m.store.Put(ctx, id, record); err != nil {
		return err
	}
	m.queue.Remove(workerPeer)

	log.Ctx(ctx).Warn().Str("worker", id).Str("reason", reason).Msg("worker banned")
	return nil
}

// RecordTaskEvent appends a task lifecycle stat event to the worker's log.
func (m *WorkerManager) RecordTaskEvent(ctx context.Context, workerPeer string, eventType models.WorkerEventType) error {
	unlock := m.locker.Lock(workerPeer)
	defer unlock()

	record, err := m.store.Get(ctx, workerPeer)
	if err != nil {
		return err
	}

	m.store.Append(&record, models.WorkerEvent{
		Type:      eventType,
		Timestamp: m.clock.Now().UTC(),
	})
	return m.store.Put(ctx, workerPeer, record)
}

// GetWorker returns the worker's current state.
func (m *WorkerManager) GetWorker(ctx context.Context, workerPeer string) (models.WorkerState, error) {
	record, err := m.store.Get(ctx, workerPeer)
	if err != nil {
		return models.WorkerState{}, err
	}
	return record.State, nil
}

// IsRegistered reports whether the peer completed a register exchange at
// some point, banned or not.
func (m *WorkerManager) IsRegistered(ctx context.Context, workerPeer peer.ID) (bool, error) {
	return m.store.Has(ctx, workerPeer.String())
}

// ListWorkers returns all known workers.
func (m *WorkerManager) ListWorkers(ctx context.Context) ([]entitystore.Entity[models.WorkerState, models.WorkerEvent], error) {
	return m.store.List(ctx, entitystore.ListOptions[models.WorkerState, models.WorkerEvent]{Limit: -1})
}
