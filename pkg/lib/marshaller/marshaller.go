package marshaller

// Marshaller is the interface for encoding and decoding persisted records.
// Implementations must round-trip 64-bit integers exactly: payment amounts
// and nonces are full-width uint64 values and must never be coerced through
// float64 on the decode path.
type Marshaller interface {
	Marshal(obj interface{}) ([]byte, error)
	Unmarshal(data []byte, obj interface{}) error
}

// Normalizable is implemented by types that need fixing up after decode,
// such as re-deriving fields that are not persisted.
type Normalizable interface {
	Normalize()
}

func normalizeIfApplicable(obj interface{}) {
	if normalizable, ok := obj.(Normalizable); ok {
		normalizable.Normalize()
	}
}
