//go:build unit || !integration

package transport

import (
	"context"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
	"github.com/stretchr/testify/suite"

	"github.com/effectai/engine-sub003/pkg/logger"
	"github.com/effectai/engine-sub003/pkg/models"
	"github.com/effectai/engine-sub003/pkg/protocol"
)

type TransportSuite struct {
	suite.Suite
	ctx          context.Context
	cancel       context.CancelFunc
	managerHost  host.Host
	workerHost   host.Host
	managerRoute *protocol.Router
	proxy        *Proxy
}

func TestTransportSuite(t *testing.T) {
	suite.Run(t, new(TransportSuite))
}

func (s *TransportSuite) SetupTest() {
	logger.ConfigureTestLogging(s.T())
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 10*time.Second)

	var err error
	s.managerHost, err = NewHostForTest()
	s.Require().NoError(err)
	s.workerHost, err = NewHostForTest()
	s.Require().NoError(err)

	s.managerRoute = protocol.NewRouter()
	NewServer(ServerParams{Host: s.managerHost, Router: s.managerRoute})
	s.proxy = NewProxy(ProxyParams{Host: s.workerHost})

	s.workerHost.Peerstore().AddAddrs(s.managerHost.ID(), s.managerHost.Addrs(), peerstore.PermanentAddrTTL)
}

func (s *TransportSuite) TearDownTest() {
	s.cancel()
	s.Require().NoError(s.workerHost.Close())
	s.Require().NoError(s.managerHost.Close())
}

func (s *TransportSuite) TestRequestResponseRoundTrip() {
	s.managerRoute.Register(models.MessageRegister, func(ctx context.Context, from peer.ID, env *models.Envelope) (*models.Envelope, error) {
		s.Equal(s.workerHost.ID(), from)
		s.Equal("recipient-1", env.Register.Recipient)
		return &models.Envelope{
			RegisterResponse: &models.RegisterResponseMessage{Accepted: true},
		}, nil
	})

	response, err := s.proxy.Send(s.ctx, s.managerHost.ID(), &models.Envelope{
		Register: &models.RegisterMessage{Recipient: "recipient-1"},
	})
	s.Require().NoError(err)
	s.Require().NotNil(response.RegisterResponse)
	s.True(response.RegisterResponse.Accepted)
}

func (s *TransportSuite) TestNilHandlerResponseBecomesAck() {
	s.managerRoute.Register(models.MessageTaskAccepted, func(ctx context.Context, from peer.ID, env *models.Envelope) (*models.Envelope, error) {
		return nil, nil
	})

	response, err := s.proxy.Send(s.ctx, s.managerHost.ID(), &models.Envelope{
		TaskAccepted: &models.TaskAcceptedMessage{TaskID: "t1", Timestamp: time.Now()},
	})
	s.Require().NoError(err)
	s.NotNil(response.Ack)
}

func (s *TransportSuite) TestHandlerErrorReachesCaller() {
	s.managerRoute.Register(models.MessagePayoutRequest, func(ctx context.Context, from peer.ID, env *models.Envelope) (*models.Envelope, error) {
		return nil, protocol.NewErrNoAction("worker.payout")
	})

	_, err := s.proxy.Send(s.ctx, s.managerHost.ID(), &models.Envelope{
		PayoutRequest: &models.PayoutRequestMessage{Timestamp: time.Now()},
	})
	s.Require().Error(err)
	s.Contains(err.Error(), "worker.payout")
}

func (s *TransportSuite) TestUnhandledVariantIsRejected() {
	_, err := s.proxy.Send(s.ctx, s.managerHost.ID(), &models.Envelope{
		Ack: &models.AckMessage{},
	})
	s.Require().Error(err)
}

func (s *TransportSuite) TestSendToUnknownPeerFails() {
	stranger, err := NewHostForTest()
	s.Require().NoError(err)
	strangerID := stranger.ID()
	s.Require().NoError(stranger.Close())

	shortCtx, cancel := context.WithTimeout(s.ctx, time.Second)
	defer cancel()

	_, err = s.proxy.Send(shortCtx, strangerID, models.NewAckEnvelope())
	s.Require().Error(err)
}
