// Package ledger tracks per-worker nonces and cumulative earnings, mints
// signed payments, and prepares batched proof requests.
//
// The one non-negotiable property here is nonce integrity: for any worker
// the minted nonces form the contiguous range 1..N with no duplicates, under
// any interleaving of concurrent calls. The underlying datastore has no
// compare-and-swap, so every read-mint-advance sequence runs inside a
// per-worker critical section.
package ledger

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/effectai/engine-sub003/pkg/entitystore"
	"github.com/effectai/engine-sub003/pkg/lib/concurrency"
	"github.com/effectai/engine-sub003/pkg/lib/marshaller"
	"github.com/effectai/engine-sub003/pkg/models"
	"github.com/effectai/engine-sub003/pkg/proofs"
	"github.com/effectai/engine-sub003/pkg/telemetry"
)

// StorePrefix is the key namespace owned by the ledger.
const StorePrefix = "/payments/"

// DefaultPerPage is the payment page size when the caller does not set one.
const DefaultPerPage = 25

type PaymentStore = entitystore.Store[models.Payment, models.PaymentEvent]
type WorkerStore = entitystore.Store[models.WorkerState, models.WorkerEvent]

// NewPaymentStore builds the entity store for payments over the given
// datastore. Records are JSON so the manager's payment log stays readable by
// external tooling.
func NewPaymentStore(datastore entitystore.Datastore) *PaymentStore {
	return entitystore.NewStore(entitystore.StoreParams[models.Payment, models.PaymentEvent]{
		Datastore: datastore,
		Prefix:    StorePrefix,
		Initial:   models.NewPaymentState,
		Apply:     models.ApplyPaymentEvent,
	})
}

// NewLocalPaymentStore builds a payment store with the binary codec. Meant
// for a worker's private payment cache, which no other process reads.
func NewLocalPaymentStore(datastore entitystore.Datastore) *PaymentStore {
	return entitystore.NewStore(entitystore.StoreParams[models.Payment, models.PaymentEvent]{
		Datastore:  datastore,
		Prefix:     StorePrefix,
		Initial:    models.NewPaymentState,
		Apply:      models.ApplyPaymentEvent,
		Marshaller: marshaller.NewBinaryMarshaller(),
	})
}

type Params struct {
	PaymentStore *PaymentStore
	WorkerStore  *WorkerStore
	// WorkerLocker serializes all read-modify-write sequences against a
	// worker record. It must be the same instance the worker manager uses,
	// so that stat updates and nonce advancement never interleave.
	WorkerLocker *concurrency.KeyedLocker
	// Signer signs minted payments. The manager's host identity key.
	Signer crypto.PrivKey
	// PaymentAccount is the on-chain account payments draw from.
	PaymentAccount string
	// PayoutRatePerSecond converts accrued time into an amount for payout
	// requests.
	PayoutRatePerSecond uint64
	Prover              proofs.Prover
	Clock               clock.Clock
}

type Ledger struct {
	paymentStore        *PaymentStore
	workerStore         *WorkerStore
	workerLocker        *concurrency.KeyedLocker
	signer              crypto.PrivKey
	paymentAccount      string
	payoutRatePerSecond uint64
	prover              proofs.Prover
	clock               clock.Clock
}

func NewLedger(params Params) *Ledger {
	if params.Clock == nil {
		params.Clock = clock.New()
	}
	return &Ledger{
		paymentStore:        params.PaymentStore,
		workerStore:         params.WorkerStore,
		workerLocker:        params.WorkerLocker,
		signer:              params.Signer,
		paymentAccount:      params.PaymentAccount,
		payoutRatePerSecond: params.PayoutRatePerSecond,
		prover:              params.Prover,
		clock:               params.Clock,
	}
}

// PaymentKey is the entity id of a payment inside the ledger namespace.
func PaymentKey(recipient string, nonce uint64) string {
	return fmt.Sprintf("%s:%d", recipient, nonce)
}

type GeneratePaymentRequest struct {
	WorkerPeer   string
	CurrentNonce uint64
	Amount       uint64
	Recipient    string
	// Payout marks the payment as a time-based payout, which resets the
	// worker's payout clock.
	Payout bool
}

// GeneratePayment mints a signed payment at CurrentNonce+1 and advances the
// worker's stored nonce in the same critical section. Re-minting an already
// committed nonce returns the existing payment: the deterministic payment id
// makes (recipient, nonce) the idempotency key.
func (l *Ledger) GeneratePayment(ctx context.Context, req GeneratePaymentRequest) (models.Payment, error) {
	unlock := l.workerLocker.Lock(req.WorkerPeer)
	defer unlock()

	record, err := l.workerStore.Get(ctx, req.WorkerPeer)
	if err != nil {
		return models.Payment{}, err
	}
	return l.mintLocked(ctx, req, record)
}

// MintForWorker mints a payment at the worker's current nonce+1, reading the
// nonce inside the critical section. This is the path the task manager uses
// on completion, where no caller-observed nonce exists.
func (l *Ledger) MintForWorker(ctx context.Context, workerPeer string, amount uint64) (models.Payment, error) {
	unlock := l.workerLocker.Lock(workerPeer)
	defer unlock()

	record, err := l.workerStore.Get(ctx, workerPeer)
	if err != nil {
		return models.Payment{}, err
	}
	return l.mintLocked(ctx, GeneratePaymentRequest{
		WorkerPeer:   workerPeer,
		CurrentNonce: record.State.Nonce,
		Amount:       amount,
		Recipient:    record.State.Recipient,
	}, record)
}

// RequestPayout converts the time accrued since the worker's last payout
// into an amount at the configured rate and mints a payment for it.
func (l *Ledger) RequestPayout(ctx context.Context, workerPeer string) (models.Payment, error) {
	unlock := l.workerLocker.Lock(workerPeer)
	defer unlock()

	record, err := l.workerStore.Get(ctx, workerPeer)
	if err != nil {
		return models.Payment{}, err
	}

	now := l.clock.Now().UTC()
	payoutSeconds := int64(now.Sub(record.State.LastPayout) / time.Second)
	if payoutSeconds <= 0 {
		return models.Payment{}, NewErrNothingAccrued(workerPeer)
	}

	amount := uint64(payoutSeconds) * l.payoutRatePerSecond
	if amount == 0 {
		return models.Payment{}, NewErrNothingAccrued(workerPeer)
	}

	return l.mintLocked(ctx, GeneratePaymentRequest{
		WorkerPeer:   workerPeer,
		CurrentNonce: record.State.Nonce,
		Amount:       amount,
		Recipient:    record.State.Recipient,
		Payout:       true,
	}, record)
}

// mintLocked performs the mint with the worker's lock held. The payment
// record is written first: if advancing the worker nonce then fails, the
// payment is deleted again so that no payment exists whose nonce was never
// committed to the worker record.
func (l *Ledger) mintLocked(
	ctx context.Context,
	req GeneratePaymentRequest,
	workerRecord entitystore.Record[models.WorkerState, models.WorkerEvent],
) (models.Payment, error) {
	if req.CurrentNonce == math.MaxUint64 {
		return models.Payment{}, NewErrNonceOverflow(req.WorkerPeer)
	}
	nonce := req.CurrentNonce + 1

	if nonce <= workerRecord.State.Nonce {
		// Already minted: a retry or a stale caller. Return the committed
		// payment instead of regressing the nonce.
		existing, err := l.paymentStore.Get(ctx, PaymentKey(req.Recipient, nonce))
		if err != nil {
			return models.Payment{}, err
		}
		return existing.State, nil
	}
	if nonce != workerRecord.State.Nonce+1 {
		return models.Payment{}, NewErrInvalidNonce(req.WorkerPeer, workerRecord.State.Nonce+1, nonce)
	}

	now := l.clock.Now().UTC()
	payment := models.Payment{
		ID:             models.PaymentID(req.Recipient, nonce),
		Recipient:      req.Recipient,
		Amount:         req.Amount,
		Nonce:          nonce,
		PaymentAccount: l.paymentAccount,
	}

	signature, err := l.signer.Sign(payment.SigningBytes())
	if err != nil {
		return models.Payment{}, fmt.Errorf("failed to sign payment %s: %w", payment.ID, err)
	}
	payment.Signature = signature

	paymentKey := PaymentKey(req.Recipient, nonce)
	paymentRecord := l.paymentStore.NewRecord(models.PaymentEvent{
		Type:      models.PaymentEventCreate,
		Timestamp: now,
		Payment:   &payment,
	})
	if err := l.paymentStore.Put(ctx, paymentKey, paymentRecord); err != nil {
		return models.Payment{}, err
	}

	l.workerStore.Append(&workerRecord, models.WorkerEvent{
		Type:      models.WorkerEventPayment,
		Timestamp: now,
		Nonce:     nonce,
		Amount:    req.Amount,
		Payout:    req.Payout,
	})
	if err := l.workerStore.Put(ctx, req.WorkerPeer, workerRecord); err != nil {
		// Undo the payment write so the two stores stay consistent.
		if deleteErr := l.paymentStore.Delete(ctx, paymentKey); deleteErr != nil {
			log.Ctx(ctx).Error().Err(deleteErr).
				Str("payment", payment.ID).
				Msg("failed to undo payment after nonce commit failure")
		}
		return models.Payment{}, err
	}

	telemetry.PaymentsMinted.Inc()
	telemetry.PaymentAmount.Add(float64(req.Amount))
	log.Ctx(ctx).Debug().
		Str("worker", req.WorkerPeer).
		Str("recipient", req.Recipient).
		Uint64("nonce", nonce).
		Uint64("amount", req.Amount).
		Msg("minted payment")

	return payment, nil
}

// GetPayments returns one page of a worker's minted payments, most recent
// nonce first. Page numbering starts at 1.
func (l *Ledger) GetPayments(ctx context.Context, workerPeer string, page, perPage int) ([]models.Payment, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}

	workerRecord, err := l.workerStore.Get(ctx, workerPeer)
	if err != nil {
		return nil, err
	}

	entities, err := l.paymentStore.List(ctx, entitystore.ListOptions[models.Payment, models.PaymentEvent]{
		Prefix: workerRecord.State.Recipient + ":",
		Limit:  -1,
	})
	if err != nil {
		return nil, err
	}

	payments := lo.Map(entities, func(e entitystore.Entity[models.Payment, models.PaymentEvent], _ int) models.Payment {
		return e.Record.State
	})
	sort.Slice(payments, func(i, j int) bool {
		return payments[i].Nonce > payments[j].Nonce
	})

	start := (page - 1) * perPage
	if start >= len(payments) {
		return []models.Payment{}, nil
	}
	end := start + perPage
	if end > len(payments) {
		end = len(payments)
	}
	return payments[start:end], nil
}

// RequestPaymentProof verifies the batch's signatures and contiguity, then
// delegates to the external proving function. Proof requests are read-only
// over committed payments: abandoning one mid-flight cannot corrupt ledger
// state, because nonces advance at mint time, not here.
func (l *Ledger) RequestPaymentProof(ctx context.Context, payments []models.Payment) (models.Proof, error) {
	if _, err := proofs.ValidateBatch(payments); err != nil {
		return models.Proof{}, err
	}

	publicKey := l.signer.GetPublic()
	for _, payment := range payments {
		valid, err := publicKey.Verify(payment.SigningBytes(), payment.Signature)
		if err != nil {
			return models.Proof{}, fmt.Errorf("failed to verify payment %s: %w", payment.ID, err)
		}
		if !valid {
			return models.Proof{}, NewErrInvalidSignature(payment.ID)
		}
	}

	return l.prover.Prove(ctx, payments)
}
