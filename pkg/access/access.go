// Package access implements single-use invitation codes gating worker
// admission when the manager runs in restricted mode.
package access

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/effectai/engine-sub003/pkg/entitystore"
	"github.com/effectai/engine-sub003/pkg/lib/concurrency"
	"github.com/effectai/engine-sub003/pkg/models"
)

// StorePrefix is the key namespace owned by the access code service.
const StorePrefix = "/access-code/"

type Store = entitystore.Store[models.AccessCodeState, models.AccessCodeEvent]

// NewStore builds the entity store for access codes over the given datastore.
func NewStore(datastore entitystore.Datastore) *Store {
	return entitystore.NewStore(entitystore.StoreParams[models.AccessCodeState, models.AccessCodeEvent]{
		Datastore: datastore,
		Prefix:    StorePrefix,
		Initial:   models.NewAccessCodeState,
		Apply:     models.ApplyAccessCodeEvent,
	})
}

type ServiceParams struct {
	Store *Store
	Clock clock.Clock
}

// Service creates and redeems access codes. Redemption for a single code is
// serialized so that concurrent redeems of the same code cannot both win.
type Service struct {
	store  *Store
	clock  clock.Clock
	locker *concurrency.KeyedLocker
}

func NewService(params ServiceParams) *Service {
	if params.Clock == nil {
		params.Clock = clock.New()
	}
	return &Service{
		store:  params.Store,
		clock:  params.Clock,
		locker: concurrency.NewKeyedLocker(),
	}
}

// Create mints a fresh single-use code.
func (s *Service) Create(ctx context.Context) (string, error) {
	code := uuid.NewString()

	record := s.store.NewRecord(models.AccessCodeEvent{
		Type:      models.AccessCodeEventCreate,
		Timestamp: s.clock.Now().UTC(),
		Code:      code,
	})
	if err := s.store.Put(ctx, code, record); err != nil {
		return "", err
	}

	log.Ctx(ctx).Debug().Str("code", code).Msg("created access code")
	return code, nil
}

// Get returns the state of a code, or entitystore.ErrEntityNotFound.
func (s *Service) Get(ctx context.Context, code string) (models.AccessCodeState, error) {
	record, err := s.store.Get(ctx, code)
	if err != nil {
		return models.AccessCodeState{}, err
	}
	return record.State, nil
}

// Redeem marks the code as used by the given peer. A code can be redeemed
// exactly once: the second redeem fails with ErrAlreadyRedeemed no matter
// how the calls interleave.
func (s *Service) Redeem(ctx context.Context, code string, peerID string) error {
	unlock := s.locker.Lock(code)
	defer unlock()

	record, err := s.store.Get(ctx, code)
	if err != nil {
		return err
	}
	if record.State.Redeemed {
		return NewErrAlreadyRedeemed(code, record.State.RedeemedBy)
	}

	s.store.Append(&record, models.AccessCodeEvent{
		Type:       models.AccessCodeEventRedeem,
		Timestamp:  s.clock.Now().UTC(),
		RedeemedBy: peerID,
	})
	if err := s.store.Put(ctx, code, record); err != nil {
		return err
	}

	log.Ctx(ctx).Debug().Str("code", code).Str("peer", peerID).Msg("redeemed access code")
	return nil
}
