// Package protocol routes decoded message envelopes to their registered
// handlers, and holds a separate registry of locally-invoked actions.
package protocol

import (
	"context"
	"sync"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/rs/zerolog/log"

	"github.com/effectai/engine-sub003/pkg/models"
)

// Handler processes one inbound message from a remote peer and optionally
// returns a response envelope to write back on the same stream. Returning a
// nil envelope with a nil error produces a bare ack.
type Handler func(ctx context.Context, from peer.ID, env *models.Envelope) (*models.Envelope, error)

// Action is a locally-invoked operation. Actions live in a separate
// namespace from message handlers: they are never reachable from the wire.
type Action func(ctx context.Context, params interface{}) (interface{}, error)

type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	actions  map[string]Action
}

func NewRouter() *Router {
	return &Router{
		handlers: make(map[string]Handler),
		actions:  make(map[string]Action),
	}
}

// Register installs the handler for a message variant. Re-registering a
// variant overwrites the previous handler.
func (r *Router) Register(variant string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[variant] = handler
}

// Route dispatches the envelope to the handler registered for its single
// populated variant. Empty and ambiguous envelopes are rejected before any
// handler runs; a missing handler is reported but must not take down the
// remote peer's connection — the caller logs and drops.
func (r *Router) Route(ctx context.Context, from peer.ID, env *models.Envelope) (*models.Envelope, error) {
	variants := env.Variants()
	if len(variants) == 0 {
		return nil, NewErrEmptyMessage()
	}
	if len(variants) > 1 {
		return nil, NewErrAmbiguousMessage(variants)
	}

	variant := variants[0]
	r.mu.RLock()
	handler, ok := r.handlers[variant]
	r.mu.RUnlock()
	if !ok {
		return nil, NewErrNoHandler(variant)
	}

	log.Ctx(ctx).Trace().
		Str("variant", variant).
		Stringer("from", from).
		Msg("routing message")

	response, err := handler(ctx, from, env)
	if err != nil {
		return nil, err
	}
	if response == nil {
		response = models.NewAckEnvelope()
	}
	return response, nil
}

// RegisterAction installs an action under the given key. Re-registering a
// key overwrites the previous action.
func (r *Router) RegisterAction(key string, action Action) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.actions[key] = action
}

// InvokeAction runs the action registered under key, or fails with
// ErrNoAction.
func (r *Router) InvokeAction(ctx context.Context, key string, params interface{}) (interface{}, error) {
	r.mu.RLock()
	action, ok := r.actions[key]
	r.mu.RUnlock()
	if !ok {
		return nil, NewErrNoAction(key)
	}
	return action(ctx, params)
}
