package transport

const (
	// ServiceName scopes streams in the libp2p resource manager.
	ServiceName = "effect.engine"
	// ProtocolID is the single wire protocol. All message variants travel
	// inside one envelope type, so one protocol is enough.
	ProtocolID = "/effect/engine/1.0.0"
)
