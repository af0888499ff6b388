package snapshot

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Encode serializes a snapshot for persistence.
func Encode(s *Snapshot) ([]byte, error) {
	doc, err := msgpack.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode %s: %w", s.ID, err)
	}
	return doc, nil
}

// Decode restores a snapshot from its persisted form.
func Decode(doc []byte) (*Snapshot, error) {
	var s Snapshot
	if err := msgpack.Unmarshal(doc, &s); err != nil {
		return nil, fmt.Errorf("snapshot: decode: %w", err)
	}
	return &s, nil
}
