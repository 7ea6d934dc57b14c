package transport

import (
	"context"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/multiformats/go-multiaddr"
	"github.com/rs/zerolog/log"

	"github.com/effectai/engine-sub003/pkg/logger"
	"github.com/effectai/engine-sub003/pkg/manager"
)

type NotifieeParams struct {
	Host    host.Host
	Workers *manager.WorkerManager
}

// Notifiee watches connection lifecycle and keeps the worker queue honest: a
// peer that drops its last connection leaves the rotation immediately, so
// housekeeping never assigns work to a peer that cannot receive it. Connects
// do NOT add a peer to the queue; only a successful register exchange does.
type Notifiee struct {
	host    host.Host
	workers *manager.WorkerManager
}

func NewNotifiee(params NotifieeParams) *Notifiee {
	notifiee := &Notifiee{
		host:    params.Host,
		workers: params.Workers,
	}
	notifiee.host.Network().Notify(notifiee)
	return notifiee
}

func (n *Notifiee) Connected(net network.Network, conn network.Conn) {
	log.Debug().
		Stringer("peer", conn.RemotePeer()).
		Msg("peer connected")
}

func (n *Notifiee) Disconnected(net network.Network, conn network.Conn) {
	remote := conn.RemotePeer()
	if len(net.ConnsToPeer(remote)) > 0 {
		return
	}
	ctx := logger.ContextWithNodeIDLogger(context.Background(), n.host.ID().String())
	n.workers.DisconnectWorker(ctx, remote)
}

func (n *Notifiee) Listen(network.Network, multiaddr.Multiaddr)      {}
func (n *Notifiee) ListenClose(network.Network, multiaddr.Multiaddr) {}

// Compile-time interface check:
var _ network.Notifiee = (*Notifiee)(nil)
