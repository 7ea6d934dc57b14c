package node

import (
	"context"
	"path/filepath"

	"github.com/benbjohnson/clock"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/multiformats/go-multiaddr"

	"github.com/effectai/engine-sub003/pkg/config"
	"github.com/effectai/engine-sub003/pkg/entitystore"
	"github.com/effectai/engine-sub003/pkg/ledger"
	"github.com/effectai/engine-sub003/pkg/protocol"
	"github.com/effectai/engine-sub003/pkg/system"
	"github.com/effectai/engine-sub003/pkg/transport"
	"github.com/effectai/engine-sub003/pkg/worker"
)

type WorkerNodeParams struct {
	Config    config.Config
	Host      host.Host
	Executor  worker.Executor
	Clock     clock.Clock
	Datastore entitystore.Datastore
}

// WorkerNode is a fully wired worker.
type WorkerNode struct {
	Host      host.Host
	Router    *protocol.Router
	Worker    *worker.Worker
	Datastore entitystore.Datastore

	managerAddr string
	cleanup     *system.CleanupManager
}

func NewWorkerNode(ctx context.Context, params WorkerNodeParams) (*WorkerNode, error) {
	cfg := params.Config
	cleanup := system.NewCleanupManager()

	h := params.Host
	if h == nil {
		var err error
		h, err = transport.NewHost(transport.HostParams{Port: cfg.Libp2pPort})
		if err != nil {
			return nil, err
		}
		cleanup.RegisterCallback(h.Close)
	}

	datastore := params.Datastore
	if datastore == nil {
		var err error
		if cfg.DataDir != "" {
			datastore, err = entitystore.NewBoltDatastore(filepath.Join(cfg.DataDir, "worker.db"))
			if err != nil {
				return nil, err
			}
		} else {
			datastore = entitystore.NewInMemoryDatastore()
		}
		cleanup.RegisterCallback(datastore.Close)
	}

	router := protocol.NewRouter()
	proxy := transport.NewProxy(transport.ProxyParams{Host: h})

	w := worker.NewWorker(worker.Params{
		Host:         h,
		Router:       router,
		Proxy:        proxy,
		PaymentStore: ledger.NewLocalPaymentStore(datastore),
		Recipient:    cfg.Recipient,
		AccessCode:   cfg.AccessCode,
		Executor:     params.Executor,
		Clock:        params.Clock,
	})

	transport.NewServer(transport.ServerParams{Host: h, Router: router})

	return &WorkerNode{
		Host:        h,
		Router:      router,
		Worker:      w,
		Datastore:   datastore,
		managerAddr: cfg.ManagerAddr,
		cleanup:     cleanup,
	}, nil
}

// Connect registers with the manager at the configured address.
func (n *WorkerNode) Connect(ctx context.Context) error {
	addr, err := multiaddr.NewMultiaddr(n.managerAddr)
	if err != nil {
		return err
	}
	return n.Worker.Connect(ctx, addr)
}

// Close releases the node's resources.
func (n *WorkerNode) Close(ctx context.Context) error {
	n.cleanup.Cleanup()
	return nil
}
