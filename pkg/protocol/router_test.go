//go:build unit || !integration

package protocol

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/suite"

	"github.com/effectai/engine-sub003/pkg/logger"
	"github.com/effectai/engine-sub003/pkg/models"
)

type RouterSuite struct {
	suite.Suite
	ctx    context.Context
	router *Router
	from   peer.ID
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	logger.ConfigureTestLogging(s.T())
	s.ctx = context.Background()
	s.router = NewRouter()
	s.from = peer.ID("test-peer")
}

func (s *RouterSuite) TestRouteToRegisteredHandler() {
	var handled bool
	s.router.Register(models.MessageTaskAccepted, func(ctx context.Context, from peer.ID, env *models.Envelope) (*models.Envelope, error) {
		handled = true
		s.Equal("t1", env.TaskAccepted.TaskID)
		return nil, nil
	})

	response, err := s.router.Route(s.ctx, s.from, &models.Envelope{
		TaskAccepted: &models.TaskAcceptedMessage{TaskID: "t1", Timestamp: time.Now()},
	})
	s.Require().NoError(err)
	s.True(handled)
	s.NotNil(response.Ack)
}

func (s *RouterSuite) TestHandlerResponsePassedThrough() {
	s.router.Register(models.MessageTemplateRequest, func(ctx context.Context, from peer.ID, env *models.Envelope) (*models.Envelope, error) {
		return &models.Envelope{
			TemplateResponse: &models.TemplateResponseMessage{TemplateID: env.TemplateRequest.TemplateID},
		}, nil
	})

	response, err := s.router.Route(s.ctx, s.from, &models.Envelope{
		TemplateRequest: &models.TemplateRequestMessage{TemplateID: "tpl"},
	})
	s.Require().NoError(err)
	s.Require().NotNil(response.TemplateResponse)
	s.Equal("tpl", response.TemplateResponse.TemplateID)
}

func (s *RouterSuite) TestEmptyEnvelopeRejected() {
	_, err := s.router.Route(s.ctx, s.from, &models.Envelope{})
	s.Require().Error(err)
	s.True(errors.As(err, &ErrEmptyMessage{}))
}

func (s *RouterSuite) TestAmbiguousEnvelopeRejected() {
	env := &models.Envelope{
		Ack:          &models.AckMessage{},
		TaskAccepted: &models.TaskAcceptedMessage{TaskID: "t1"},
	}
	_, err := s.router.Route(s.ctx, s.from, env)
	s.Require().Error(err)

	var ambiguous ErrAmbiguousMessage
	s.Require().True(errors.As(err, &ambiguous))
	s.ElementsMatch([]string{models.MessageTaskAccepted, models.MessageAck}, ambiguous.Variants)
}

func (s *RouterSuite) TestNoHandlerRegistered() {
	_, err := s.router.Route(s.ctx, s.from, &models.Envelope{Ack: &models.AckMessage{}})
	s.Require().Error(err)
	s.True(errors.As(err, &ErrNoHandler{}))
}

func (s *RouterSuite) TestHandlerErrorPropagates() {
	boom := errors.New("boom")
	s.router.Register(models.MessageAck, func(ctx context.Context, from peer.ID, env *models.Envelope) (*models.Envelope, error) {
		return nil, boom
	})

	_, err := s.router.Route(s.ctx, s.from, &models.Envelope{Ack: &models.AckMessage{}})
	s.Require().ErrorIs(err, boom)
}

func (s *RouterSuite) TestInvokeAction() {
	s.router.RegisterAction("echo", func(ctx context.Context, params interface{}) (interface{}, error) {
		return params, nil
	})

	result, err := s.router.InvokeAction(s.ctx, "echo", 42)
	s.Require().NoError(err)
	s.Equal(42, result)
}

func (s *RouterSuite) TestInvokeUnknownAction() {
	_, err := s.router.InvokeAction(s.ctx, "missing", nil)
	s.Require().Error(err)
	s.True(errors.As(err, &ErrNoAction{}))
}

func (s *RouterSuite) TestActionsNotReachableFromWire() {
	s.router.RegisterAction(models.MessageAck, func(ctx context.Context, params interface{}) (interface{}, error) {
		return nil, nil
	})

	// an action registered under a variant name must not handle messages
	_, err := s.router.Route(s.ctx, s.from, &models.Envelope{Ack: &models.AckMessage{}})
	s.Require().Error(err)
	s.True(errors.As(err, &ErrNoHandler{}))
}
