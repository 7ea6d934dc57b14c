// Package worker implements the worker side of the engine protocol: it
// registers with a manager, executes assigned tasks, collects the signed
// payments, and can ask for payouts and batched payment proofs.
package worker

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/effectai/engine-sub003/pkg/entitystore"
	"github.com/effectai/engine-sub003/pkg/ledger"
	"github.com/effectai/engine-sub003/pkg/models"
	"github.com/effectai/engine-sub003/pkg/protocol"
	"github.com/effectai/engine-sub003/pkg/transport"
)

// Executor runs one task and returns its opaque result. Returning an error
// makes the worker reject the task instead of completing it.
type Executor func(ctx context.Context, task models.Task) (json.RawMessage, error)

type Params struct {
	Host   host.Host
	Router *protocol.Router
	Proxy  *transport.Proxy
	// PaymentStore persists every payment this worker receives, keyed the
	// same way the manager keys them.
	PaymentStore *ledger.PaymentStore
	// Recipient is the account payments to this worker are addressed to.
	Recipient  string
	AccessCode string
	Executor   Executor
	Clock      clock.Clock
}

// Worker is a single worker node. It holds one manager connection at a time.
type Worker struct {
	host         host.Host
	router       *protocol.Router
	proxy        *transport.Proxy
	paymentStore *ledger.PaymentStore
	recipient    string
	accessCode   string
	executor     Executor
	clock        clock.Clock

	mu          sync.Mutex
	managerPeer peer.ID
}

func NewWorker(params Params) *Worker {
	if params.Clock == nil {
		params.Clock = clock.New()
	}
	if params.Executor == nil {
		params.Executor = func(ctx context.Context, task models.Task) (json.RawMessage, error) {
			return task.TemplateData, nil
		}
	}
	w := &Worker{
		host:         params.Host,
		router:       params.Router,
		proxy:        params.Proxy,
		paymentStore: params.PaymentStore,
		recipient:    params.Recipient,
		accessCode:   params.AccessCode,
		executor:     params.Executor,
		clock:        params.Clock,
	}
	w.router.Register(models.MessageTask, w.handleTask)
	w.router.Register(models.MessagePayment, w.handlePayment)
	return w
}

// Connect dials the manager and performs the register handshake. The worker
// is not offered tasks until this succeeds.
func (w *Worker) Connect(ctx context.Context, managerAddr multiaddr.Multiaddr) error {
	managerPeer, err := transport.ConnectToPeer(ctx, w.host, managerAddr)
	if err != nil {
		return err
	}

	response, err := w.proxy.Send(ctx, managerPeer, &models.Envelope{
		Register: &models.RegisterMessage{
			Recipient:  w.recipient,
			AccessCode: w.accessCode,
		},
	})
	if err != nil {
		return errors.Wrap(err, "register handshake failed")
	}
	if response.RegisterResponse == nil {
		return errors.Errorf("unexpected register response: %v", response.Variants())
	}
	if !response.RegisterResponse.Accepted {
		return errors.Errorf("registration refused: %s", response.RegisterResponse.Reason)
	}

	w.mu.Lock()
	w.managerPeer = managerPeer
	w.mu.Unlock()

	log.Ctx(ctx).Info().Stringer("manager", managerPeer).Msg("registered with manager")
	return nil
}

// Manager returns the peer ID of the connected manager.
func (w *Worker) Manager() peer.ID {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.managerPeer
}

// handleTask accepts an assigned task and executes it in the background.
// The ack goes back immediately; acceptance, execution and completion each
// travel on their own stream.
func (w *Worker) handleTask(ctx context.Context, from peer.ID, env *models.Envelope) (*models.Envelope, error) {
	task := env.Task.Task
	log.Ctx(ctx).Info().Str("task", task.ID).Msg("task assigned")

	go w.runTask(context.Background(), from, task)
	return nil, nil
}

func (w *Worker) runTask(ctx context.Context, managerPeer peer.ID, task models.Task) {
	now := w.clock.Now().UTC()
	_, err := w.proxy.Send(ctx, managerPeer, &models.Envelope{
		TaskAccepted: &models.TaskAcceptedMessage{TaskID: task.ID, Timestamp: now},
	})
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("task", task.ID).Msg("failed to accept task")
		return
	}

	execCtx := ctx
	if task.TimeLimitSeconds > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, time.Duration(task.TimeLimitSeconds)*time.Second)
		defer cancel()
	}

	result, err := w.executor(execCtx, task)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("task", task.ID).Msg("task execution failed, rejecting")
		_, sendErr := w.proxy.Send(ctx, managerPeer, &models.Envelope{
			TaskRejected: &models.TaskRejectedMessage{
				TaskID:    task.ID,
				Reason:    err.Error(),
				Timestamp: w.clock.Now().UTC(),
			},
		})
		if sendErr != nil {
			log.Ctx(ctx).Error().Err(sendErr).Str("task", task.ID).Msg("failed to reject task")
		}
		return
	}

	response, err := w.proxy.Send(ctx, managerPeer, &models.Envelope{
		TaskCompleted: &models.TaskCompletedMessage{
			TaskID:    task.ID,
			Result:    result,
			Timestamp: w.clock.Now().UTC(),
		},
	})
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("task", task.ID).Msg("failed to complete task")
		return
	}

	// the completion response carries the reward payment
	if response.Payment != nil {
		if err := w.storePayment(ctx, response.Payment.Payment); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("task", task.ID).Msg("failed to store reward payment")
		}
	}
}

// handlePayment stores a payment pushed by the manager outside of a
// completion response.
func (w *Worker) handlePayment(ctx context.Context, from peer.ID, env *models.Envelope) (*models.Envelope, error) {
	return nil, w.storePayment(ctx, env.Payment.Payment)
}

func (w *Worker) storePayment(ctx context.Context, payment models.Payment) error {
	key := ledger.PaymentKey(payment.Recipient, payment.Nonce)
	record := w.paymentStore.NewRecord(models.PaymentEvent{
		Type:      models.PaymentEventCreate,
		Timestamp: w.clock.Now().UTC(),
		Payment:   &payment,
	})
	if err := w.paymentStore.Put(ctx, key, record); err != nil {
		return err
	}
	log.Ctx(ctx).Info().
		Uint64("nonce", payment.Nonce).
		Uint64("amount", payment.Amount).
		Msg("payment received")
	return nil
}

// RequestPayout asks the manager to convert accrued time into a payment and
// stores the result.
func (w *Worker) RequestPayout(ctx context.Context) (models.Payment, error) {
	response, err := w.proxy.Send(ctx, w.Manager(), &models.Envelope{
		PayoutRequest: &models.PayoutRequestMessage{Timestamp: w.clock.Now().UTC()},
	})
	if err != nil {
		return models.Payment{}, err
	}
	if response.Payment == nil {
		return models.Payment{}, errors.Errorf("unexpected payout response: %v", response.Variants())
	}

	payment := response.Payment.Payment
	if err := w.storePayment(ctx, payment); err != nil {
		return models.Payment{}, err
	}
	return payment, nil
}

// RequestProof asks the manager for a batched proof over the given payments.
func (w *Worker) RequestProof(ctx context.Context, payments []models.Payment) (models.Proof, error) {
	response, err := w.proxy.Send(ctx, w.Manager(), &models.Envelope{
		ProofRequest: &models.ProofRequestMessage{Payments: payments},
	})
	if err != nil {
		return models.Proof{}, err
	}
	if response.ProofResponse == nil {
		return models.Proof{}, errors.Errorf("unexpected proof response: %v", response.Variants())
	}
	return response.ProofResponse.Proof, nil
}

// FetchTemplate retrieves an opaque template blob from the manager.
func (w *Worker) FetchTemplate(ctx context.Context, templateID string) (json.RawMessage, error) {
	response, err := w.proxy.Send(ctx, w.Manager(), &models.Envelope{
		TemplateRequest: &models.TemplateRequestMessage{TemplateID: templateID},
	})
	if err != nil {
		return nil, err
	}
	if response.TemplateResponse == nil {
		return nil, errors.Errorf("unexpected template response: %v", response.Variants())
	}
	return response.TemplateResponse.Data, nil
}

// Payments returns every payment this worker has stored, ordered by nonce.
func (w *Worker) Payments(ctx context.Context) ([]models.Payment, error) {
	entities, err := w.paymentStore.List(ctx, entitystore.ListOptions[models.Payment, models.PaymentEvent]{
		Prefix: w.recipient + ":",
		Limit:  -1,
	})
	if err != nil {
		return nil, err
	}
	payments := make([]models.Payment, 0, len(entities))
	for _, entity := range entities {
		payments = append(payments, entity.Record.State)
	}
	sort.Slice(payments, func(i, j int) bool {
		return payments[i].Nonce < payments[j].Nonce
	})
	return payments, nil
}
