package protocol

import "strings"

// ErrEmptyMessage is returned when an envelope has no populated variant.
type ErrEmptyMessage struct{}

func NewErrEmptyMessage() ErrEmptyMessage {
	return ErrEmptyMessage{}
}

func (e ErrEmptyMessage) Error() string {
	return "message envelope is empty"
}

// ErrAmbiguousMessage is returned when an envelope has more than one
// populated variant. The protocol is a one-of, so such envelopes can only
// come from a malformed or malicious peer and are dropped rather than
// routed by guesswork.
type ErrAmbiguousMessage struct {
	Variants []string
}

func NewErrAmbiguousMessage(variants []string) ErrAmbiguousMessage {
	return ErrAmbiguousMessage{Variants: variants}
}

func (e ErrAmbiguousMessage) Error() string {
	return "message envelope has multiple variants: " + strings.Join(e.Variants, ", ")
}

// ErrNoHandler is returned when no handler is registered for a variant.
type ErrNoHandler struct {
	Variant string
}

func NewErrNoHandler(variant string) ErrNoHandler {
	return ErrNoHandler{Variant: variant}
}

func (e ErrNoHandler) Error() string {
	return "no handler registered for message: " + e.Variant
}

// ErrNoAction is returned when no action is registered for a key.
type ErrNoAction struct {
	Key string
}

func NewErrNoAction(key string) ErrNoAction {
	return ErrNoAction{Key: key}
}

func (e ErrNoAction) Error() string {
	return "no action registered for key: " + e.Key
}
