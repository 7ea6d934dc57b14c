// Package node wires the manager's components into a runnable unit: the
// libp2p host, stores, ledger, managers, protocol handlers and the public
// HTTP API.
package node

import (
	"context"
	"path/filepath"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/go-multierror"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/rs/zerolog/log"

	"github.com/effectai/engine-sub003/pkg/access"
	"github.com/effectai/engine-sub003/pkg/config"
	"github.com/effectai/engine-sub003/pkg/entitystore"
	"github.com/effectai/engine-sub003/pkg/ledger"
	"github.com/effectai/engine-sub003/pkg/lib/concurrency"
	"github.com/effectai/engine-sub003/pkg/manager"
	"github.com/effectai/engine-sub003/pkg/proofs"
	"github.com/effectai/engine-sub003/pkg/protocol"
	"github.com/effectai/engine-sub003/pkg/publicapi"
	"github.com/effectai/engine-sub003/pkg/system"
	"github.com/effectai/engine-sub003/pkg/transport"
)

type ManagerNodeParams struct {
	Config config.Config
	// Host is optional; one is constructed from Config when nil.
	Host host.Host
	// Prover defaults to the noop prover.
	Prover proofs.Prover
	// Clock defaults to the wall clock. Tests pass a fake.
	Clock clock.Clock
	// Datastore is optional; bolt or in-memory is picked from Config when
	// nil. A caller-supplied datastore is the caller's to close.
	Datastore entitystore.Datastore
}

// ManagerNode is a fully wired manager.
type ManagerNode struct {
	Host         host.Host
	Router       *protocol.Router
	Datastore    entitystore.Datastore
	AccessCodes  *access.Service
	Workers      *manager.WorkerManager
	Tasks        *manager.TaskManager
	Ledger       *ledger.Ledger
	Templates    *manager.TemplateRegistry
	Housekeeping *manager.Housekeeping
	APIServer    *publicapi.Server

	cleanup *system.CleanupManager
}

func NewManagerNode(ctx context.Context, params ManagerNodeParams) (*ManagerNode, error) {
	cfg := params.Config
	cleanup := system.NewCleanupManager()

	if params.Clock == nil {
		params.Clock = clock.New()
	}
	if params.Prover == nil {
		params.Prover = proofs.NewNoopProver()
	}

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
			datastore, err = entitystore.NewBoltDatastore(filepath.Join(cfg.DataDir, "engine.db"))
			if err != nil {
				return nil, err
			}
		} else {
			datastore = entitystore.NewInMemoryDatastore()
		}
		cleanup.RegisterCallback(datastore.Close)
	}

	workerStore := manager.NewWorkerStore(datastore)
	workerLocker := concurrency.NewKeyedLocker()

	accessCodes := access.NewService(access.ServiceParams{
		Store: access.NewStore(datastore),
		Clock: params.Clock,
	})

	queue := manager.NewWorkerQueue()
	workers := manager.NewWorkerManager(manager.WorkerManagerParams{
		Store:              workerStore,
		Locker:             workerLocker,
		Queue:              queue,
		AccessCodes:        accessCodes,
		RequireAccessCodes: cfg.RequireAccessCodes,
		Clock:              params.Clock,
	})

	paymentLedger := ledger.NewLedger(ledger.Params{
		PaymentStore:        ledger.NewPaymentStore(datastore),
		WorkerStore:         workerStore,
		WorkerLocker:        workerLocker,
		Signer:              h.Peerstore().PrivKey(h.ID()),
		PaymentAccount:      cfg.PaymentAccount,
		PayoutRatePerSecond: cfg.PayoutRatePerSecond,
		Prover:              params.Prover,
		Clock:               params.Clock,
	})

	router := protocol.NewRouter()
	proxy := transport.NewProxy(transport.ProxyParams{Host: h})

	tasks := manager.NewTaskManager(manager.TaskManagerParams{
		Store:   manager.NewTaskStore(datastore),
		Workers: workers,
		Queue:   queue,
		Ledger:  paymentLedger,
		Sender:  proxy,
		Clock:   params.Clock,
	})

	templates := manager.NewTemplateRegistry()
	endpoint := manager.NewEndpoint(manager.EndpointParams{
		TaskManager:   tasks,
		WorkerManager: workers,
		Ledger:        paymentLedger,
		Templates:     templates,
	})
	endpoint.RegisterHandlers(router)

	transport.NewServer(transport.ServerParams{Host: h, Router: router})
	transport.NewNotifiee(transport.NotifieeParams{Host: h, Workers: workers})

	housekeeping := manager.NewHousekeeping(manager.HousekeepingParams{
		TaskManager: tasks,
		Interval:    cfg.ManageInterval,
		Clock:       params.Clock,
	})

	apiServer := publicapi.NewServer(publicapi.ServerParams{
		Config: publicapi.ServerConfig{
			Host:              cfg.APIHost,
			Port:              cfg.APIPort,
			ReadHeaderTimeout: publicapi.DefaultServerConfig.ReadHeaderTimeout,
			ReadTimeout:       publicapi.DefaultServerConfig.ReadTimeout,
			WriteTimeout:      publicapi.DefaultServerConfig.WriteTimeout,
		},
		Endpoint: publicapi.NewEndpoint(publicapi.EndpointParams{
			Router:  router,
			Tasks:   tasks,
			Workers: workers,
			Ledger:  paymentLedger,
		}),
	})

	return &ManagerNode{
		Host:         h,
		Router:       router,
		Datastore:    datastore,
		AccessCodes:  accessCodes,
		Workers:      workers,
		Tasks:        tasks,
		Ledger:       paymentLedger,
		Templates:    templates,
		Housekeeping: housekeeping,
		APIServer:    apiServer,
		cleanup:      cleanup,
	}, nil
}

// Start launches the housekeeping tick and the public API.
func (n *ManagerNode) Start(ctx context.Context) error {
	n.Housekeeping.Start(ctx)
	if err := n.APIServer.ListenAndServe(ctx); err != nil {
		return err
	}
	log.Ctx(ctx).Info().Stringer("node", n.Host.ID()).Msg("manager node started")
	return nil
}

// Close stops everything in reverse start order.
func (n *ManagerNode) Close(ctx context.Context) error {
	var result *multierror.Error

	n.Housekeeping.Stop(ctx)
	if err := n.APIServer.Shutdown(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	n.cleanup.Cleanup()
	return result.ErrorOrNil()
}
