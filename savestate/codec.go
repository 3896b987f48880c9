package savestate

import (
	"encoding/json"
	"io"
)

// Codec determines how snapshots are encoded.
type Codec interface {
	Encode(w io.Writer, snap *Snapshot) error
	Decode(r io.Reader) (*Snapshot, error)
}

// JSONCodec encodes snapshots as JSON.
type JSONCodec struct {
	Indent bool
}

// Encode writes the snapshot as JSON to w.
func (c JSONCodec) Encode(w io.Writer, snap *Snapshot) error {
	encoder := json.NewEncoder(w)
	if c.Indent {
		encoder.SetIndent("", "  ")
	}

	return encoder.Encode(snap)
}

// Decode reads a JSON snapshot from r.
func (c JSONCodec) Decode(r io.Reader) (*Snapshot, error) {
	decoder := json.NewDecoder(r)

	snap := &Snapshot{}
	if err := decoder.Decode(snap); err != nil {
		return nil, err
	}

	return snap, nil
}
