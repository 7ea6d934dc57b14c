//go:build unit || !integration

package entitystore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/effectai/engine-sub003/pkg/logger"
)

type counterEvent struct {
	Kind  string `json:"kind"`
	Delta int    `json:"delta"`
}

func (e counterEvent) EventType() string {
	return e.Kind
}

type counterState struct {
	Total int `json:"total"`
}

func newCounterStore(datastore Datastore) *Store[counterState, counterEvent] {
	return NewStore(StoreParams[counterState, counterEvent]{
		Datastore: datastore,
		Prefix:    "/counter/",
		Initial:   func() counterState { return counterState{} },
		Apply: func(s counterState, e counterEvent) counterState {
			s.Total += e.Delta
			return s
		},
	})
}

type StoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *Store[counterState, counterEvent]
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	logger.ConfigureTestLogging(s.T())
	s.ctx = context.Background()
	s.store = newCounterStore(NewInMemoryDatastore())
}

func (s *StoreSuite) TestPutGetRoundTrip() {
	record := s.store.NewRecord(
		counterEvent{Kind: "add", Delta: 2},
		counterEvent{Kind: "add", Delta: 3},
	)
	s.Require().NoError(s.store.Put(s.ctx, "a", record))

	got, err := s.store.Get(s.ctx, "a")
	s.Require().NoError(err)
	s.Equal(5, got.State.Total)
	s.Len(got.Events, 2)
}

func (s *StoreSuite) TestGetMissing() {
	_, err := s.store.Get(s.ctx, "nope")
	s.Require().Error(err)
	s.True(errors.As(err, &ErrEntityNotFound{}))

	_, ok, err := s.store.GetSafe(s.ctx, "nope")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *StoreSuite) TestStateAlwaysEqualsFold() {
	record := s.store.NewRecord(counterEvent{Kind: "add", Delta: 1})
	s.store.Append(&record, counterEvent{Kind: "add", Delta: 10})
	s.store.Append(&record, counterEvent{Kind: "sub", Delta: -4})
	s.Require().NoError(s.store.Put(s.ctx, "a", record))

	got, err := s.store.Get(s.ctx, "a")
	s.Require().NoError(err)
	s.Equal(s.store.Fold(got.Events), got.State)
	s.Equal(7, got.State.Total)
}

func (s *StoreSuite) TestRollbackPopsLastEvent() {
	record := s.store.NewRecord(
		counterEvent{Kind: "add", Delta: 1},
		counterEvent{Kind: "add", Delta: 2},
	)
	s.Require().NoError(s.store.Put(s.ctx, "a", record))

	got, err := s.store.Rollback(s.ctx, "a")
	s.Require().NoError(err)
	s.Equal(1, got.State.Total)
	s.Len(got.Events, 1)

	// rollback is persisted
	reread, err := s.store.Get(s.ctx, "a")
	s.Require().NoError(err)
	s.Equal(got, reread)
}

func (s *StoreSuite) TestRollbackEmptyLog() {
	s.Require().NoError(s.store.Put(s.ctx, "a", Record[counterState, counterEvent]{}))

	_, err := s.store.Rollback(s.ctx, "a")
	s.Require().Error(err)
	s.True(errors.As(err, &ErrEmptyEventLog{}))
}

func (s *StoreSuite) TestRollbackEventOnlyRemovesMatchingTail() {
	record := s.store.NewRecord(
		counterEvent{Kind: "add", Delta: 1},
		counterEvent{Kind: "sub", Delta: -1},
	)
	s.Require().NoError(s.store.Put(s.ctx, "a", record))

	// tail is "sub", asking for "add" must change nothing
	got, err := s.store.RollbackEvent(s.ctx, "a", "add")
	s.Require().NoError(err)
	s.Len(got.Events, 2)
	s.Equal(0, got.State.Total)

	// asking for the actual tail removes it
	got, err = s.store.RollbackEvent(s.ctx, "a", "sub")
	s.Require().NoError(err)
	s.Len(got.Events, 1)
	s.Equal(1, got.State.Total)
}

func (s *StoreSuite) TestRollbackEventEmptyLogIsNoOp() {
	s.Require().NoError(s.store.Put(s.ctx, "a", Record[counterState, counterEvent]{}))

	got, err := s.store.RollbackEvent(s.ctx, "a", "add")
	s.Require().NoError(err)
	s.Empty(got.Events)
}

func (s *StoreSuite) TestListPrefixAndLimit() {
	for _, id := range []string{"x:1", "x:2", "y:1"} {
		s.Require().NoError(s.store.Put(s.ctx, id, s.store.NewRecord(counterEvent{Kind: "add", Delta: 1})))
	}

	entities, err := s.store.List(s.ctx, ListOptions[counterState, counterEvent]{Prefix: "x:", Limit: -1})
	s.Require().NoError(err)
	s.Len(entities, 2)

	entities, err = s.store.List(s.ctx, ListOptions[counterState, counterEvent]{Limit: 2})
	s.Require().NoError(err)
	s.Len(entities, 2)
}

func (s *StoreSuite) TestListFilterAppliesBeforeLimit() {
	for i, id := range []string{"a", "b", "c", "d"} {
		s.Require().NoError(s.store.Put(s.ctx, id, s.store.NewRecord(counterEvent{Kind: "add", Delta: i})))
	}

	entities, err := s.store.List(s.ctx, ListOptions[counterState, counterEvent]{
		Limit: 2,
		Filter: func(e Entity[counterState, counterEvent]) bool {
			return e.Record.State.Total >= 1
		},
	})
	s.Require().NoError(err)
	s.Len(entities, 2)
	for _, entity := range entities {
		s.GreaterOrEqual(entity.Record.State.Total, 1)
	}
}

func (s *StoreSuite) TestDeleteIsIdempotent() {
	s.Require().NoError(s.store.Put(s.ctx, "a", s.store.NewRecord(counterEvent{Kind: "add", Delta: 1})))
	s.Require().NoError(s.store.Delete(s.ctx, "a"))
	s.Require().NoError(s.store.Delete(s.ctx, "a"))

	has, err := s.store.Has(s.ctx, "a")
	s.Require().NoError(err)
	s.False(has)
}

func (s *StoreSuite) TestBoltBackendSurvivesReopen() {
	path := filepath.Join(s.T().TempDir(), "store.db")

	datastore, err := NewBoltDatastore(path)
	s.Require().NoError(err)
	store := newCounterStore(datastore)
	s.Require().NoError(store.Put(s.ctx, "a", store.NewRecord(counterEvent{Kind: "add", Delta: 9})))
	s.Require().NoError(datastore.Close())

	reopened, err := NewBoltDatastore(path)
	s.Require().NoError(err)
	defer func() {
		s.Require().NoError(reopened.Close())
	}()

	got, err := newCounterStore(reopened).Get(s.ctx, "a")
	s.Require().NoError(err)
	s.Equal(9, got.State.Total)
}

func (s *StoreSuite) TestReplayIsDeterministic() {
	record := s.store.NewRecord(
		counterEvent{Kind: "add", Delta: 5},
		counterEvent{Kind: "sub", Delta: -2},
		counterEvent{Kind: "add", Delta: 4},
	)
	s.Require().NoError(s.store.Put(s.ctx, "a", record))

	got, err := s.store.Get(s.ctx, "a")
	s.Require().NoError(err)
	s.Equal(got.State, s.store.Fold(got.Events))
	s.Equal(s.store.Fold(got.Events), s.store.Fold(got.Events))
}
