package manager

import (
	"context"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/rs/zerolog/log"

	"github.com/effectai/engine-sub003/pkg/ledger"
	"github.com/effectai/engine-sub003/pkg/models"
	"github.com/effectai/engine-sub003/pkg/protocol"
)

// Action keys registered by the manager endpoint. Actions are invoked
// locally (by the public API and the CLI), never from the wire.
const (
	ActionTaskCreate = "task.create"
	ActionTaskManage = "task.manage"
	ActionWorkerBan  = "worker.ban"
)

type EndpointParams struct {
	TaskManager   *TaskManager
	WorkerManager *WorkerManager
	Ledger        *ledger.Ledger
	Templates     *TemplateRegistry
}

// Endpoint binds the manager's services to the message router: one handler
// per inbound variant a worker may send, plus the local action registry.
type Endpoint struct {
	tasks     *TaskManager
	workers   *WorkerManager
	ledger    *ledger.Ledger
	templates *TemplateRegistry
}

func NewEndpoint(params EndpointParams) *Endpoint {
	return &Endpoint{
		tasks:     params.TaskManager,
		workers:   params.WorkerManager,
		ledger:    params.Ledger,
		templates: params.Templates,
	}
}

// RegisterHandlers installs the manager's message handlers and actions on
// the router.
func (e *Endpoint) RegisterHandlers(router *protocol.Router) {
	router.Register(models.MessageRegister, e.handleRegister)
	router.Register(models.MessageTaskAccepted, e.handleTaskAccepted)
	router.Register(models.MessageTaskRejected, e.handleTaskRejected)
	router.Register(models.MessageTaskCompleted, e.handleTaskCompleted)
	router.Register(models.MessagePayoutRequest, e.handlePayoutRequest)
	router.Register(models.MessageProofRequest, e.handleProofRequest)
	router.Register(models.MessageTemplateRequest, e.handleTemplateRequest)

	router.RegisterAction(ActionTaskCreate, e.actionTaskCreate)
	router.RegisterAction(ActionTaskManage, e.actionTaskManage)
	router.RegisterAction(ActionWorkerBan, e.actionWorkerBan)
}

// handleRegister admits the worker. Admission failures are reported in the
// response body rather than as a stream error, so the worker gets a reason
// it can act on.
func (e *Endpoint) handleRegister(ctx context.Context, from peer.ID, env *models.Envelope) (*models.Envelope, error) {
	msg := env.Register
	if err := e.workers.ConnectWorker(ctx, from, msg.Recipient, msg.AccessCode); err != nil {
		log.Ctx(ctx).Warn().Err(err).Stringer("worker", from).Msg("registration refused")
		return &models.Envelope{
			RegisterResponse: &models.RegisterResponseMessage{Accepted: false, Reason: err.Error()},
		}, nil
	}
	return &models.Envelope{
		RegisterResponse: &models.RegisterResponseMessage{Accepted: true},
	}, nil
}

func (e *Endpoint) handleTaskAccepted(ctx context.Context, from peer.ID, env *models.Envelope) (*models.Envelope, error) {
	return nil, e.tasks.OnTaskAccepted(ctx, from.String(), env.TaskAccepted.TaskID)
}

func (e *Endpoint) handleTaskRejected(ctx context.Context, from peer.ID, env *models.Envelope) (*models.Envelope, error) {
	msg := env.TaskRejected
	return nil, e.tasks.OnTaskRejected(ctx, from.String(), msg.TaskID, msg.Reason)
}

// handleTaskCompleted applies the result and answers with the reward
// payment on the same stream.
func (e *Endpoint) handleTaskCompleted(ctx context.Context, from peer.ID, env *models.Envelope) (*models.Envelope, error) {
	msg := env.TaskCompleted
	payment, err := e.tasks.OnTaskCompleted(ctx, from.String(), msg.TaskID, msg.Result)
	if err != nil {
		return nil, err
	}
	return &models.Envelope{
		Payment: &models.PaymentMessage{Payment: payment},
	}, nil
}

func (e *Endpoint) handlePayoutRequest(ctx context.Context, from peer.ID, env *models.Envelope) (*models.Envelope, error) {
	payment, err := e.ledger.RequestPayout(ctx, from.String())
	if err != nil {
		return nil, err
	}
	return &models.Envelope{
		Payment: &models.PaymentMessage{Payment: payment},
	}, nil
}

func (e *Endpoint) handleProofRequest(ctx context.Context, from peer.ID, env *models.Envelope) (*models.Envelope, error) {
	proof, err := e.ledger.RequestPaymentProof(ctx, env.ProofRequest.Payments)
	if err != nil {
		return nil, err
	}
	return &models.Envelope{
		ProofResponse: &models.ProofResponseMessage{Proof: proof},
	}, nil
}

func (e *Endpoint) handleTemplateRequest(ctx context.Context, from peer.ID, env *models.Envelope) (*models.Envelope, error) {
	templateID := env.TemplateRequest.TemplateID
	data, err := e.templates.Get(templateID)
	if err != nil {
		return nil, err
	}
	return &models.Envelope{
		TemplateResponse: &models.TemplateResponseMessage{TemplateID: templateID, Data: data},
	}, nil
}

func (e *Endpoint) actionTaskCreate(ctx context.Context, params interface{}) (interface{}, error) {
	req, ok := params.(CreateTaskRequest)
	if !ok {
		return nil, NewErrInvalidActionParams(ActionTaskCreate, params)
	}
	return e.tasks.CreateTask(ctx, req)
}

func (e *Endpoint) actionTaskManage(ctx context.Context, params interface{}) (interface{}, error) {
	return nil, e.tasks.ManageTasks(ctx)
}

type BanWorkerRequest struct {
	WorkerPeer peer.ID
	Reason     string
}

func (e *Endpoint) actionWorkerBan(ctx context.Context, params interface{}) (interface{}, error) {
	req, ok := params.(BanWorkerRequest)
	if !ok {
		return nil, NewErrInvalidActionParams(ActionWorkerBan, params)
	}
	return nil, e.workers.BanWorker(ctx, req.WorkerPeer, req.Reason)
}
