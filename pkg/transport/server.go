package transport

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/rs/zerolog/log"

	"github.com/effectai/engine-sub003/pkg/logger"
	"github.com/effectai/engine-sub003/pkg/models"
	"github.com/effectai/engine-sub003/pkg/protocol"
	"github.com/effectai/engine-sub003/pkg/telemetry"
)

type ServerParams struct {
	Host   host.Host
	Router *protocol.Router
}

// Server registers for inbound engine streams and delegates decoded
// envelopes to the message router. One stream carries one request and one
// response.
type Server struct {
	host   host.Host
	router *protocol.Router
}

func NewServer(params ServerParams) *Server {
	server := &Server{
		host:   params.Host,
		router: params.Router,
	}
	server.host.SetStreamHandler(ProtocolID, server.handleStream)
	log.Debug().Msgf("engine server started on host %s", server.host.ID().String())
	return server
}

func (s *Server) handleStream(stream network.Stream) {
	ctx := logger.ContextWithNodeIDLogger(context.Background(), s.host.ID().String())

	if err := stream.Scope().SetService(ServiceName); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("error attaching stream to engine service")
		_ = stream.Reset()
		return
	}

	env := new(models.Envelope)
	if err := json.NewDecoder(stream).Decode(env); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("error decoding envelope")
		telemetry.MessagesDropped.WithLabelValues("decode").Inc()
		_ = stream.Reset()
		return
	}
	defer stream.Close() //nolint:errcheck

	from := stream.Conn().RemotePeer()
	response, err := s.router.Route(ctx, from, env)

	// Routing failures still produce a Result so the caller learns what
	// went wrong; malformed one-ofs are counted and dropped.
	result := Result{Response: response}
	if err != nil {
		result.Error = err.Error()
		s.countDrop(err)
		log.Ctx(ctx).Debug().Err(err).Stringer("from", from).Msg("error handling envelope")
	}

	if err := json.NewEncoder(stream).Encode(result); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("error encoding response")
		_ = stream.Reset()
		return
	}
}

func (s *Server) countDrop(err error) {
	switch {
	case errors.As(err, &protocol.ErrEmptyMessage{}):
		telemetry.MessagesDropped.WithLabelValues("empty").Inc()
	case errors.As(err, &protocol.ErrAmbiguousMessage{}):
		telemetry.MessagesDropped.WithLabelValues("ambiguous").Inc()
	case errors.As(err, &protocol.ErrNoHandler{}):
		telemetry.MessagesDropped.WithLabelValues("no_handler").Inc()
	}
}
