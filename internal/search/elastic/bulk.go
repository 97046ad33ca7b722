package elastic

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// DefaultBulkSize is the number of documents sent per bulk request.
const DefaultBulkSize = 500

// Envelope is one document addressed to an index.
type Envelope struct {
	ID     string   `json:"_id"`
	Type   string   `json:"_type"`
	Index  string   `json:"_index"`
	Source Document `json:"_source"`
}

// NewEnvelope addresses doc to index.
func NewEnvelope(index string, doc Document) Envelope {
	return Envelope{
		ID:     strconv.FormatInt(doc.ID, 10),
		Type:   DocType,
		Index:  index,
		Source: doc,
	}
}

// BulkBuffer accumulates envelopes until it holds Size of them.
type BulkBuffer struct {
	Size  int
	items []Envelope
}

// NewBulkBuffer returns a buffer flushing at size documents.
func NewBulkBuffer(size int) *BulkBuffer {
	if size <= 0 {
		size = DefaultBulkSize
	}
	return &BulkBuffer{Size: size}
}

// Add appends e and reports whether the buffer is full.
func (b *BulkBuffer) Add(e Envelope) bool {
	b.items = append(b.items, e)
	return len(b.items) >= b.Size
}

// Len is the number of buffered envelopes.
func (b *BulkBuffer) Len() int { return len(b.items) }

// Take returns the buffered envelopes and empties the buffer.
func (b *BulkBuffer) Take() []Envelope {
	out := b.items
	b.items = nil
	return out
}

// EncodeBulk renders envelopes as the newline-delimited _bulk body.
func EncodeBulk(envs []Envelope) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, e := range envs {
		action := map[string]any{"index": map[string]string{
			"_index": e.Index,
			"_type":  e.Type,
			"_id":    e.ID,
		}}
		if err := enc.Encode(action); err != nil {
			return nil, fmt.Errorf("encode bulk action %s: %w", e.ID, err)
		}
		if err := enc.Encode(e.Source); err != nil {
			return nil, fmt.Errorf("encode bulk source %s: %w", e.ID, err)
		}
	}
	return buf.Bytes(), nil
}
