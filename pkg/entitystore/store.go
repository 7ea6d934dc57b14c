package entitystore

import (
	"context"
	"errors"
	"fmt"

	"github.com/effectai/engine-sub003/pkg/lib/marshaller"
)

// DefaultListLimit bounds All queries when the caller does not set a limit.
const DefaultListLimit = 100

// Event is implemented by every entity event sum type. The type tag is used
// for targeted rollbacks.
type Event interface {
	EventType() string
}

// Record pairs an entity's materialized state with its full event history.
// The invariant maintained by this store is that State always equals folding
// Events in order over the entity's reducer: events are never mutated or
// removed except by popping the last one via Rollback/RollbackEvent.
type Record[S any, E Event] struct {
	State  S   `json:"state"`
	Events []E `json:"events"`
}

// Entity is a record together with its id, as returned by List.
type Entity[S any, E Event] struct {
	ID     string
	Record Record[S, E]
}

// ListOptions scope a List call. Prefix is an additional id prefix inside
// the store's namespace (e.g. a recipient prefix inside the payments
// namespace). A zero Limit applies DefaultListLimit; a negative Limit
// returns everything.
type ListOptions[S any, E Event] struct {
	Prefix string
	Limit  int
	Filter func(Entity[S, E]) bool
}

type StoreParams[S any, E Event] struct {
	Datastore Datastore
	// Prefix is the key namespace this store owns, e.g. "/tasks/".
	Prefix string
	// Initial returns the zero projection before any event is applied.
	Initial func() S
	// Apply is the pure reducer folding one event into the projection.
	Apply func(S, E) S
	// Marshaller defaults to JSON when nil.
	Marshaller marshaller.Marshaller
}

// Store is a generic event-sourced entity store over a byte datastore. It is
// deliberately thin: Put overwrites the whole record, and appending events
// then persisting is the caller's job (serialized per entity id by the
// caller, as the datastore has no compare-and-swap primitive).
type Store[S any, E Event] struct {
	datastore  Datastore
	prefix     string
	initial    func() S
	apply      func(S, E) S
	marshaller marshaller.Marshaller
}

func NewStore[S any, E Event](params StoreParams[S, E]) *Store[S, E] {
	if params.Marshaller == nil {
		params.Marshaller = marshaller.NewJSONMarshaller()
	}
	return &Store[S, E]{
		datastore:  params.Datastore,
		prefix:     params.Prefix,
		initial:    params.Initial,
		apply:      params.Apply,
		marshaller: params.Marshaller,
	}
}

// Prefix returns the key namespace this store owns.
func (s *Store[S, E]) Prefix() string {
	return s.prefix
}

func (s *Store[S, E]) key(id string) string {
	return s.prefix + id
}

// Has returns true if the entity exists.
func (s *Store[S, E]) Has(ctx context.Context, id string) (bool, error) {
	return s.datastore.Has(ctx, s.key(id))
}

// Get returns the entity's record, or ErrEntityNotFound.
func (s *Store[S, E]) Get(ctx context.Context, id string) (Record[S, E], error) {
	var record Record[S, E]

	data, err := s.datastore.Get(ctx, s.key(id))
	if err != nil {
		if errors.As(err, &ErrKeyNotFound{}) {
			return record, NewErrEntityNotFound(s.prefix, id)
		}
		return record, err
	}

	if err := s.marshaller.Unmarshal(data, &record); err != nil {
		return record, fmt.Errorf("failed to unmarshal entity %s: %w", s.key(id), err)
	}
	return record, nil
}

// GetSafe returns the entity's record and true, or the zero record and false
// if the entity is absent. Errors other than absence are propagated.
func (s *Store[S, E]) GetSafe(ctx context.Context, id string) (Record[S, E], bool, error) {
	record, err := s.Get(ctx, id)
	if err != nil {
		if errors.As(err, &ErrEntityNotFound{}) {
			return record, false, nil
		}
		return record, false, err
	}
	return record, true, nil
}

// Put persists the whole record, overwriting any previous value. The write
// is durable before Put returns.
func (s *Store[S, E]) Put(ctx context.Context, id string, record Record[S, E]) error {
	data, err := s.marshaller.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal entity %s: %w", s.key(id), err)
	}
	return s.datastore.Put(ctx, s.key(id), data)
}

// Delete removes the entity. Deleting an absent entity is not an error.
func (s *Store[S, E]) Delete(ctx context.Context, id string) error {
	return s.datastore.Delete(ctx, s.key(id))
}

// List scans the store's namespace. Ordering follows the datastore's key
// order, not any domain ordering.
func (s *Store[S, E]) List(ctx context.Context, opts ListOptions[S, E]) ([]Entity[S, E], error) {
	limit := opts.Limit
	if limit == 0 {
		limit = DefaultListLimit
	}

	// Scan without a limit when filtering: the limit applies to matching
	// entities, not scanned keys.
	scanLimit := limit
	if opts.Filter != nil {
		scanLimit = -1
	}

	pairs, err := s.datastore.Scan(ctx, s.prefix+opts.Prefix, scanLimit)
	if err != nil {
		return nil, err
	}

	entities := make([]Entity[S, E], 0, len(pairs))
	for _, pair := range pairs {
		var record Record[S, E]
		if err := s.marshaller.Unmarshal(pair.Value, &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal entity %s: %w", pair.Key, err)
		}
		entity := Entity[S, E]{ID: pair.Key[len(s.prefix):], Record: record}
		if opts.Filter != nil && !opts.Filter(entity) {
			continue
		}
		entities = append(entities, entity)
		if limit >= 0 && len(entities) >= limit {
			break
		}
	}
	return entities, nil
}

// Fold re-derives the projection from scratch by applying every event in
// order to the initial state.
func (s *Store[S, E]) Fold(events []E) S {
	state := s.initial()
	for _, event := range events {
		state = s.apply(state, event)
	}
	return state
}

// Append folds the events into the record in place. The caller still owns
// persisting the record with Put.
func (s *Store[S, E]) Append(record *Record[S, E], events ...E) {
	for _, event := range events {
		record.Events = append(record.Events, event)
		record.State = s.apply(record.State, event)
	}
}

// NewRecord returns a record holding the given events and the projection
// folded from them.
func (s *Store[S, E]) NewRecord(events ...E) Record[S, E] {
	record := Record[S, E]{State: s.initial()}
	s.Append(&record, events...)
	return record
}

// Rollback pops the last event, re-derives the state from the remaining
// history and persists the result. Fails with ErrEmptyEventLog if the entity
// has no events.
func (s *Store[S, E]) Rollback(ctx context.Context, id string) (Record[S, E], error) {
	record, err := s.Get(ctx, id)
	if err != nil {
		return record, err
	}
	if len(record.Events) == 0 {
		return record, NewErrEmptyEventLog(id)
	}

	record.Events = record.Events[:len(record.Events)-1]
	record.State = s.Fold(record.Events)

	if err := s.Put(ctx, id, record); err != nil {
		return record, err
	}
	return record, nil
}

// RollbackEvent removes the named event only if it is the last event in the
// log, then re-derives and persists. Anything else is a deliberate no-op:
// removing an interior event would create a gap in history.
func (s *Store[S, E]) RollbackEvent(ctx context.Context, id string, eventType string) (Record[S, E], error) {
	record, err := s.Get(ctx, id)
	if err != nil {
		return record, err
	}
	if len(record.Events) == 0 {
		return record, nil
	}
	if record.Events[len(record.Events)-1].EventType() != eventType {
		return record, nil
	}

	record.Events = record.Events[:len(record.Events)-1]
	record.State = s.Fold(record.Events)

	if err := s.Put(ctx, id, record); err != nil {
		return record, err
	}
	return record, nil
}
