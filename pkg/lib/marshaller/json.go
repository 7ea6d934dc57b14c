package marshaller

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// JSONMarshaller uses JSON encoding for marshaling.
type JSONMarshaller struct{}

// NewJSONMarshaller initializes and returns a new JSONMarshaller.
func NewJSONMarshaller() *JSONMarshaller {
	return &JSONMarshaller{}
}

// Marshal converts the given object into a JSON-encoded byte slice.
func (JSONMarshaller) Marshal(obj interface{}) ([]byte, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("json encode: %w", err)
	}
	return data, nil
}

// Unmarshal decodes JSON data into the given object. The decoder is
// configured with UseNumber so that integers decoded into untyped fields
// stay as json.Number instead of losing precision as float64.
func (JSONMarshaller) Unmarshal(data []byte, obj interface{}) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(obj); err != nil {
		return fmt.Errorf("json decode: %w", err)
	}
	normalizeIfApplicable(obj)
	return nil
}

// compile-time check that JSONMarshaller implements Marshaller
var _ Marshaller = JSONMarshaller{}
