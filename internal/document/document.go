// Package document defines the stored document type and its
// deterministic JSON encoding.
package document

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Document pairs a primary key with its decoded JSON data.
type Document struct {
	PK   string         `json:"pk"`
	Data map[string]any `json:"data"`
}

// NewPK returns a time-ordered unique primary key.
// Uses github.com/google/uuid for RFC 4122 compliant UUIDv7 values.
func NewPK() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Decode parses a stored JSON blob back into a document mapping.
// Numbers decode as json.Number so integer values survive a round trip
// without float conversion.
func Decode(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return out, nil
}
