//go:build unit || !integration

package manager

import (
	"context"
	"errors"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/suite"

	"github.com/effectai/engine-sub003/pkg/access"
	"github.com/effectai/engine-sub003/pkg/entitystore"
	"github.com/effectai/engine-sub003/pkg/lib/concurrency"
	"github.com/effectai/engine-sub003/pkg/logger"
)

type WorkerManagerSuite struct {
	suite.Suite
	ctx         context.Context
	clock       *clock.Mock
	queue       *WorkerQueue
	accessCodes *access.Service
	workers     *WorkerManager
	restricted  *WorkerManager
}

func TestWorkerManagerSuite(t *testing.T) {
	suite.Run(t, new(WorkerManagerSuite))
}

func (s *WorkerManagerSuite) SetupTest() {
	logger.ConfigureTestLogging(s.T())
	s.ctx = context.Background()
	s.clock = clock.NewMock()

	datastore := entitystore.NewInMemoryDatastore()
	store := NewWorkerStore(datastore)
	locker := concurrency.NewKeyedLocker()
	s.queue = NewWorkerQueue()
	s.accessCodes = access.NewService(access.ServiceParams{
		Store: access.NewStore(datastore),
		Clock: s.clock,
	})

	s.workers = NewWorkerManager(WorkerManagerParams{
		Store:       store,
		Locker:      locker,
		Queue:       s.queue,
		AccessCodes: s.accessCodes,
		Clock:       s.clock,
	})
	s.restricted = NewWorkerManager(WorkerManagerParams{
		Store:              store,
		Locker:             locker,
		Queue:              s.queue,
		AccessCodes:        s.accessCodes,
		RequireAccessCodes: true,
		Clock:              s.clock,
	})
}

func (s *WorkerManagerSuite) TestConnectNewWorker() {
	s.Require().NoError(s.workers.ConnectWorker(s.ctx, workerOne, "recipient-1", ""))

	s.True(s.queue.Contains(workerOne))
	s.Equal(1, s.queue.Len())

	state, err := s.workers.GetWorker(s.ctx, workerOne.String())
	s.Require().NoError(err)
	s.Equal("recipient-1", state.Recipient)
	s.Equal(uint64(0), state.Nonce)
}

func (s *WorkerManagerSuite) TestReconnectIsIdempotent() {
	s.Require().NoError(s.workers.ConnectWorker(s.ctx, workerOne, "recipient-1", ""))
	s.Require().NoError(s.workers.ConnectWorker(s.ctx, workerOne, "recipient-1", ""))
	s.Equal(1, s.queue.Len())
}

func (s *WorkerManagerSuite) TestRestrictedRequiresCode() {
	err := s.restricted.ConnectWorker(s.ctx, workerOne, "recipient-1", "")
	s.Require().Error(err)
	s.True(errors.As(err, &ErrAccessCodeRequired{}))
	s.False(s.queue.Contains(workerOne))
}

func (s *WorkerManagerSuite) TestRestrictedRejectsUnknownCode() {
	err := s.restricted.ConnectWorker(s.ctx, workerOne, "recipient-1", "bogus")
	s.Require().Error(err)
	s.True(errors.As(err, &entitystore.ErrEntityNotFound{}))
}

func (s *WorkerManagerSuite) TestAccessCodeIsSingleUse() {
	code, err := s.accessCodes.Create(s.ctx)
	s.Require().NoError(err)

	s.Require().NoError(s.restricted.ConnectWorker(s.ctx, workerOne, "recipient-1", code))

	err = s.restricted.ConnectWorker(s.ctx, workerTwo, "recipient-2", code)
	s.Require().Error(err)
	s.True(errors.As(err, &access.ErrAlreadyRedeemed{}))
	s.False(s.queue.Contains(workerTwo))
}

func (s *WorkerManagerSuite) TestKnownWorkerSkipsCodeCheck() {
	code, err := s.accessCodes.Create(s.ctx)
	s.Require().NoError(err)
	s.Require().NoError(s.restricted.ConnectWorker(s.ctx, workerOne, "recipient-1", code))

	s.restricted.DisconnectWorker(s.ctx, workerOne)
	s.False(s.queue.Contains(workerOne))

	// reconnect without a code succeeds: the code gates first admission only
	s.Require().NoError(s.restricted.ConnectWorker(s.ctx, workerOne, "recipient-1", ""))
	s.True(s.queue.Contains(workerOne))
}

func (s *WorkerManagerSuite) TestBanRemovesAndBlocks() {
	s.Require().NoError(s.workers.ConnectWorker(s.ctx, workerOne, "recipient-1", ""))
	s.Require().NoError(s.workers.BanWorker(s.ctx, workerOne, "spamming results"))

	s.False(s.queue.Contains(workerOne))

	err := s.workers.ConnectWorker(s.ctx, workerOne, "recipient-1", "")
	s.Require().Error(err)

	var banned ErrWorkerBanned
	s.Require().True(errors.As(err, &banned))
	s.Equal("spamming results", banned.Reason)
}

func (s *WorkerManagerSuite) TestDisconnectKeepsRecord() {
	s.Require().NoError(s.workers.ConnectWorker(s.ctx, workerOne, "recipient-1", ""))
	s.workers.DisconnectWorker(s.ctx, workerOne)

	s.False(s.queue.Contains(workerOne))

	registered, err := s.workers.IsRegistered(s.ctx, workerOne)
	s.Require().NoError(err)
	s.True(registered)
}

func (s *WorkerManagerSuite) TestListWorkers() {
	s.Require().NoError(s.workers.ConnectWorker(s.ctx, workerOne, "recipient-1", ""))
	s.Require().NoError(s.workers.ConnectWorker(s.ctx, workerTwo, "recipient-2", ""))

	workers, err := s.workers.ListWorkers(s.ctx)
	s.Require().NoError(err)
	s.Len(workers, 2)
}
