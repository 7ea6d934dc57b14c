package marshaller

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// BinaryMarshaller encodes records with gob. Integers round-trip at full
// width, so it is safe for nonce and amount fields, but the output is
// Go-specific: use it only for stores that no other process reads.
type BinaryMarshaller struct{}

func NewBinaryMarshaller() *BinaryMarshaller {
	return &BinaryMarshaller{}
}

func (BinaryMarshaller) Marshal(obj interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(obj); err != nil {
		return nil, fmt.Errorf("gob encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (BinaryMarshaller) Unmarshal(data []byte, obj interface{}) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(obj); err != nil {
		return fmt.Errorf("gob decode: %w", err)
	}
	normalizeIfApplicable(obj)
	return nil
}

// compile-time check that BinaryMarshaller implements Marshaller
var _ Marshaller = BinaryMarshaller{}
