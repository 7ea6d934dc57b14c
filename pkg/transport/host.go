package transport

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
	"github.com/multiformats/go-multiaddr"
	"github.com/rs/zerolog/log"
)

type HostParams struct {
	Port int
	// PrivateKey is the host identity. A fresh ed25519 key is generated
	// when nil, which also means a fresh peer ID on every start.
	PrivateKey crypto.PrivKey
}

// NewHost creates a libp2p host listening on the given TCP port.
func NewHost(params HostParams) (host.Host, error) {
	privKey := params.PrivateKey
	if privKey == nil {
		var err error
		privKey, _, err = crypto.GenerateEd25519Key(rand.Reader)
		if err != nil {
			return nil, err
		}
	}

	addrs := []string{
		"/ip4/0.0.0.0/tcp/%d",
		"/ip6/::/tcp/%d",
	}
	listenAddrs := make([]multiaddr.Multiaddr, 0, len(addrs))
	for _, s := range addrs {
		addr, addrErr := multiaddr.NewMultiaddr(fmt.Sprintf(s, params.Port))
		if addrErr != nil {
			return nil, addrErr
		}
		listenAddrs = append(listenAddrs, addr)
	}

	h, err := libp2p.New(
		libp2p.ListenAddrs(listenAddrs...),
		libp2p.Identity(privKey),
	)
	if err != nil {
		return nil, err
	}

	log.Info().
		Stringer("host-id", h.ID()).
		Int("port", params.Port).
		Msg("started libp2p host")
	return h, nil
}

// NewHostForTest creates a host bound to an ephemeral loopback port.
func NewHostForTest() (host.Host, error) {
	privKey, _, err := crypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		return nil, err
	}
	return libp2p.New(
		libp2p.ListenAddrStrings("/ip4/127.0.0.1/tcp/0"),
		libp2p.Identity(privKey),
	)
}

// ConnectToPeer dials the peer behind a /p2p multiaddr and pins its
// addresses in the peerstore.
func ConnectToPeer(ctx context.Context, h host.Host, addr multiaddr.Multiaddr) (peer.ID, error) {
	info, err := peer.AddrInfoFromP2pAddr(addr)
	if err != nil {
		return "", fmt.Errorf("failed to parse peer address %s: %w", addr, err)
	}

	h.Peerstore().AddAddrs(info.ID, info.Addrs, peerstore.PermanentAddrTTL)
	if err := h.Connect(ctx, *info); err != nil {
		return "", fmt.Errorf("failed to connect to peer %s: %w", info.ID, err)
	}

	log.Ctx(ctx).Debug().Stringer("peer", info.ID).Msg("connected to peer")
	return info.ID, nil
}
