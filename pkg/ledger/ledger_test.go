//go:build unit || !integration

package ledger

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/stretchr/testify/suite"

	"github.com/effectai/engine-sub003/pkg/entitystore"
	"github.com/effectai/engine-sub003/pkg/lib/concurrency"
	"github.com/effectai/engine-sub003/pkg/logger"
	"github.com/effectai/engine-sub003/pkg/models"
	"github.com/effectai/engine-sub003/pkg/proofs"
)

const (
	testWorkerPeer = "12D3KooWTestWorker"
	testRecipient  = "recipient-account"
	testAccount    = "payment-account"
)

type LedgerSuite struct {
	suite.Suite
	ctx          context.Context
	clock        *clock.Mock
	signer       crypto.PrivKey
	workerStore  *WorkerStore
	paymentStore *PaymentStore
	ledger       *Ledger
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) SetupTest() {
	logger.ConfigureTestLogging(s.T())
	s.ctx = context.Background()
	s.clock = clock.NewMock()

	var err error
	s.signer, _, err = crypto.GenerateEd25519Key(rand.Reader)
	s.Require().NoError(err)

	datastore := entitystore.NewInMemoryDatastore()
	s.paymentStore = NewPaymentStore(datastore)
	s.workerStore = entitystore.NewStore(entitystore.StoreParams[models.WorkerState, models.WorkerEvent]{
		Datastore: datastore,
		Prefix:    "/worker/",
		Initial:   models.NewWorkerState,
		Apply:     models.ApplyWorkerEvent,
	})

	s.ledger = NewLedger(Params{
		PaymentStore:        s.paymentStore,
		WorkerStore:         s.workerStore,
		WorkerLocker:        concurrency.NewKeyedLocker(),
		Signer:              s.signer,
		PaymentAccount:      testAccount,
		PayoutRatePerSecond: 2,
		Prover:              proofs.NewNoopProver(),
		Clock:               s.clock,
	})

	s.createWorker(testWorkerPeer, testRecipient)
}

func (s *LedgerSuite) createWorker(peerID, recipient string) {
	record := s.workerStore.NewRecord(models.WorkerEvent{
		Type:      models.WorkerEventCreate,
		Timestamp: s.clock.Now().UTC(),
		PeerID:    peerID,
		Recipient: recipient,
	})
	s.Require().NoError(s.workerStore.Put(s.ctx, peerID, record))
}

func (s *LedgerSuite) workerNonce() uint64 {
	record, err := s.workerStore.Get(s.ctx, testWorkerPeer)
	s.Require().NoError(err)
	return record.State.Nonce
}

func (s *LedgerSuite) TestGeneratePaymentAdvancesNonce() {
	payment, err := s.ledger.GeneratePayment(s.ctx, GeneratePaymentRequest{
		WorkerPeer:   testWorkerPeer,
		CurrentNonce: 0,
		Amount:       10,
		Recipient:    testRecipient,
	})
	s.Require().NoError(err)

	s.Equal(uint64(1), payment.Nonce)
	s.Equal(models.PaymentID(testRecipient, 1), payment.ID)
	s.Equal(testAccount, payment.PaymentAccount)
	s.Equal(uint64(1), s.workerNonce())

	valid, err := s.signer.GetPublic().Verify(payment.SigningBytes(), payment.Signature)
	s.Require().NoError(err)
	s.True(valid)
}

func (s *LedgerSuite) TestReplayedMintReturnsExistingPayment() {
	first, err := s.ledger.GeneratePayment(s.ctx, GeneratePaymentRequest{
		WorkerPeer:   testWorkerPeer,
		CurrentNonce: 0,
		Amount:       10,
		Recipient:    testRecipient,
	})
	s.Require().NoError(err)

	// same caller retries with the same observed nonce
	replayed, err := s.ledger.GeneratePayment(s.ctx, GeneratePaymentRequest{
		WorkerPeer:   testWorkerPeer,
		CurrentNonce: 0,
		Amount:       99,
		Recipient:    testRecipient,
	})
	s.Require().NoError(err)

	s.Equal(first, replayed)
	s.Equal(uint64(1), s.workerNonce())
}

func (s *LedgerSuite) TestGapRejected() {
	_, err := s.ledger.GeneratePayment(s.ctx, GeneratePaymentRequest{
		WorkerPeer:   testWorkerPeer,
		CurrentNonce: 5,
		Amount:       10,
		Recipient:    testRecipient,
	})
	s.Require().Error(err)

	var invalidNonce ErrInvalidNonce
	s.Require().True(errors.As(err, &invalidNonce))
	s.Equal(uint64(1), invalidNonce.Expected)
	s.Equal(uint64(6), invalidNonce.Actual)
	s.Equal(uint64(0), s.workerNonce())
}

func (s *LedgerSuite) TestNonceOverflow() {
	_, err := s.ledger.GeneratePayment(s.ctx, GeneratePaymentRequest{
		WorkerPeer:   testWorkerPeer,
		CurrentNonce: math.MaxUint64,
		Amount:       1,
		Recipient:    testRecipient,
	})
	s.Require().Error(err)
	s.True(errors.As(err, &ErrNonceOverflow{}))
}

func (s *LedgerSuite) TestMintForWorkerSequences() {
	for want := uint64(1); want <= 3; want++ {
		payment, err := s.ledger.MintForWorker(s.ctx, testWorkerPeer, 5)
		s.Require().NoError(err)
		s.Equal(want, payment.Nonce)
	}
	s.Equal(uint64(3), s.workerNonce())

	record, err := s.workerStore.Get(s.ctx, testWorkerPeer)
	s.Require().NoError(err)
	s.Equal(uint64(15), record.State.TotalEarned)
}

func (s *LedgerSuite) TestConcurrentMintsStayContiguous() {
	const miners = 10
	var wg sync.WaitGroup
	payments := make([]models.Payment, miners)

	for i := 0; i < miners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payment, err := s.ledger.MintForWorker(s.ctx, testWorkerPeer, 1)
			s.Require().NoError(err)
			payments[i] = payment
		}(i)
	}
	wg.Wait()

	seen := make(map[uint64]bool)
	for _, payment := range payments {
		s.False(seen[payment.Nonce], "duplicate nonce %d", payment.Nonce)
		seen[payment.Nonce] = true
	}
	for nonce := uint64(1); nonce <= miners; nonce++ {
		s.True(seen[nonce], "missing nonce %d", nonce)
	}
	s.Equal(uint64(miners), s.workerNonce())
}

func (s *LedgerSuite) TestRequestPayoutUsesElapsedTime() {
	s.clock.Add(10 * time.Second)

	payment, err := s.ledger.RequestPayout(s.ctx, testWorkerPeer)
	s.Require().NoError(err)
	s.Equal(uint64(20), payment.Amount) // 10s at rate 2
	s.Equal(uint64(1), payment.Nonce)

	// the payout clock was reset
	_, err = s.ledger.RequestPayout(s.ctx, testWorkerPeer)
	s.Require().Error(err)
	s.True(errors.As(err, &ErrNothingAccrued{}))

	s.clock.Add(3 * time.Second)
	payment, err = s.ledger.RequestPayout(s.ctx, testWorkerPeer)
	s.Require().NoError(err)
	s.Equal(uint64(6), payment.Amount)
	s.Equal(uint64(2), payment.Nonce)
}

func (s *LedgerSuite) TestConcurrentPayoutsMintAtMostOnce() {
	s.clock.Add(10 * time.Second)

	const callers = 8
	var wg sync.WaitGroup
	payments := make([]models.Payment, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payments[i], errs[i] = s.ledger.RequestPayout(s.ctx, testWorkerPeer)
		}(i)
	}
	wg.Wait()

	// the payout clock is reset inside the critical section, so exactly one
	// caller drains the accrual and every other caller sees nothing accrued
	var minted []models.Payment
	for i := 0; i < callers; i++ {
		if errs[i] == nil {
			minted = append(minted, payments[i])
			continue
		}
		s.True(errors.As(errs[i], &ErrNothingAccrued{}), "unexpected error: %v", errs[i])
	}
	s.Require().Len(minted, 1)
	s.Equal(uint64(1), minted[0].Nonce)
	s.Equal(uint64(20), minted[0].Amount) // 10s at rate 2
	s.Equal(uint64(1), s.workerNonce())

	// accrual after the reset mints the adjacent nonce
	s.clock.Add(5 * time.Second)
	payment, err := s.ledger.RequestPayout(s.ctx, testWorkerPeer)
	s.Require().NoError(err)
	s.Equal(uint64(2), payment.Nonce)
	s.Equal(uint64(10), payment.Amount)
}

func (s *LedgerSuite) TestLocalPaymentStoreRoundTrip() {
	store := NewLocalPaymentStore(entitystore.NewInMemoryDatastore())

	payment := &models.Payment{
		ID:             models.PaymentID(testRecipient, math.MaxUint64-1),
		Recipient:      testRecipient,
		Amount:         math.MaxUint64 - 2,
		Nonce:          math.MaxUint64 - 1,
		PaymentAccount: testAccount,
		Signature:      []byte{0x01, 0x02},
	}
	record := store.NewRecord(models.PaymentEvent{
		Type:      models.PaymentEventCreate,
		Timestamp: s.clock.Now().UTC(),
		Payment:   payment,
	})
	key := PaymentKey(testRecipient, payment.Nonce)
	s.Require().NoError(store.Put(s.ctx, key, record))

	loaded, err := store.Get(s.ctx, key)
	s.Require().NoError(err)
	s.Equal(*payment, loaded.State)
	s.Equal(record.Events, loaded.Events)
}

func (s *LedgerSuite) TestGetPaymentsPaginatesNewestFirst() {
	for i := 0; i < 5; i++ {
		_, err := s.ledger.MintForWorker(s.ctx, testWorkerPeer, uint64(i+1))
		s.Require().NoError(err)
	}

	page, err := s.ledger.GetPayments(s.ctx, testWorkerPeer, 1, 2)
	s.Require().NoError(err)
	s.Require().Len(page, 2)
	s.Equal(uint64(5), page[0].Nonce)
	s.Equal(uint64(4), page[1].Nonce)

	page, err = s.ledger.GetPayments(s.ctx, testWorkerPeer, 3, 2)
	s.Require().NoError(err)
	s.Require().Len(page, 1)
	s.Equal(uint64(1), page[0].Nonce)

	page, err = s.ledger.GetPayments(s.ctx, testWorkerPeer, 4, 2)
	s.Require().NoError(err)
	s.Empty(page)
}

func (s *LedgerSuite) TestRequestPaymentProof() {
	var payments []models.Payment
	for i := 0; i < 3; i++ {
		payment, err := s.ledger.MintForWorker(s.ctx, testWorkerPeer, 10)
		s.Require().NoError(err)
		payments = append(payments, payment)
	}

	proof, err := s.ledger.RequestPaymentProof(s.ctx, payments)
	s.Require().NoError(err)
	s.Equal(testRecipient, proof.PublicSignals.Recipient)
	s.Equal(uint64(1), proof.PublicSignals.MinNonce)
	s.Equal(uint64(3), proof.PublicSignals.MaxNonce)
	s.Equal(uint64(30), proof.PublicSignals.Amount)
}

func (s *LedgerSuite) TestProofRejectsTamperedPayment() {
	payment, err := s.ledger.MintForWorker(s.ctx, testWorkerPeer, 10)
	s.Require().NoError(err)

	payment.Amount = 1000
	_, err = s.ledger.RequestPaymentProof(s.ctx, []models.Payment{payment})
	s.Require().Error(err)
	s.True(errors.As(err, &ErrInvalidSignature{}))
}

func (s *LedgerSuite) TestProofRejectsNonContiguousBatch() {
	first, err := s.ledger.MintForWorker(s.ctx, testWorkerPeer, 10)
	s.Require().NoError(err)
	_, err = s.ledger.MintForWorker(s.ctx, testWorkerPeer, 10)
	s.Require().NoError(err)
	third, err := s.ledger.MintForWorker(s.ctx, testWorkerPeer, 10)
	s.Require().NoError(err)

	_, err = s.ledger.RequestPaymentProof(s.ctx, []models.Payment{first, third})
	s.Require().Error(err)
	s.True(errors.As(err, &proofs.ErrNonContiguousBatch{}))
}
