package adapter

import (
	"bytes"
	"encoding/json"
)

// JSON encodes cached metadata documents and decodes API responses
type JSON interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// numberPreservingJSON decodes numbers as json.Number so token amounts in
// loosely typed documents keep full precision
type numberPreservingJSON struct{}

func NewJSON() JSON {
	return numberPreservingJSON{}
}

func (numberPreservingJSON) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (numberPreservingJSON) Unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
