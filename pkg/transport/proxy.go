package transport

import (
	"context"
	"encoding/json"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/pkg/errors"

	"github.com/effectai/engine-sub003/pkg/manager"
	"github.com/effectai/engine-sub003/pkg/models"
)

type ProxyParams struct {
	Host host.Host
}

// Proxy sends envelopes to remote peers over a fresh stream per request and
// decodes the wrapped response.
type Proxy struct {
	host host.Host
}

func NewProxy(params ProxyParams) *Proxy {
	return &Proxy{
		host: params.Host,
	}
}

// Send delivers the envelope to the peer and returns the peer's response
// envelope, or the remote handler's error.
func (p *Proxy) Send(ctx context.Context, to peer.ID, env *models.Envelope) (*models.Envelope, error) {
	stream, err := p.host.NewStream(ctx, to, ProtocolID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open stream to peer %s", to)
	}
	defer stream.Close() //nolint:errcheck

	if err := stream.Scope().SetService(ServiceName); err != nil {
		_ = stream.Reset()
		return nil, errors.Wrap(err, "error attaching stream to engine service")
	}

	if err := json.NewEncoder(stream).Encode(env); err != nil {
		_ = stream.Reset()
		return nil, errors.Wrapf(err, "failed to send envelope to peer %s", to)
	}

	result := new(Result)
	if err := json.NewDecoder(stream).Decode(result); err != nil {
		_ = stream.Reset()
		return nil, errors.Wrapf(err, "failed to decode response from peer %s", to)
	}
	return result.Rehydrate()
}

// Compile-time interface check:
var _ manager.Sender = (*Proxy)(nil)
