package statechange

import (
	"encoding/json"
	"fmt"

	"github.com/sarchlab/emucore/emutime"
)

// A Record is a payload stamped with the virtual time it takes effect.
type Record struct {
	Time    emutime.EmuTime
	Payload Payload
}

func (r Record) String() string {
	return fmt.Sprintf("%d %v", r.Time, r.Payload)
}

type kindCodec struct {
	name   string
	decode func(raw json.RawMessage) (Payload, error)
}

// kindTable is the serialization table of all payload kinds. Names are part
// of the log format and must never change.
var kindTable = map[Kind]kindCodec{
	KindJoystick: {
		name: "joystick",
		decode: func(raw json.RawMessage) (Payload, error) {
			var js JoystickState
			if err := json.Unmarshal(raw, &js); err != nil {
				return nil, err
			}

			return NewJoystickState(js.Port, js.Press, js.Release)
		},
	},
	KindKeyMatrix: {
		name: "keymatrix",
		decode: func(raw json.RawMessage) (Payload, error) {
			var ks KeyMatrixState
			if err := json.Unmarshal(raw, &ks); err != nil {
				return nil, err
			}

			return NewKeyMatrixState(ks.Row, ks.Press, ks.Release)
		},
	},
	KindPaddle: {
		name: "paddle",
		decode: func(raw json.RawMessage) (Payload, error) {
			var ps PaddleState
			if err := json.Unmarshal(raw, &ps); err != nil {
				return nil, err
			}

			return NewPaddleState(ps.Port, ps.Dial, ps.Press, ps.Release)
		},
	},
	KindEndOfLog: {
		name: "end",
		decode: func(json.RawMessage) (Payload, error) {
			return EndOfLog{}, nil
		},
	},
}

var kindByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindTable))
	for k, c := range kindTable {
		m[c.name] = k
	}

	return m
}()

func (k Kind) String() string {
	if c, ok := kindTable[k]; ok {
		return c.name
	}

	return fmt.Sprintf("Kind(%d)", int(k))
}

type wireRecord struct {
	Time    emutime.EmuTime `json:"time"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func toWire(r Record) (wireRecord, error) {
	if r.Payload == nil {
		return wireRecord{}, fmt.Errorf("statechange: record at %d has no payload", r.Time)
	}

	c, ok := kindTable[r.Payload.Kind()]
	if !ok {
		return wireRecord{}, fmt.Errorf("%w: %d", ErrUnknownKind, int(r.Payload.Kind()))
	}

	w := wireRecord{Time: r.Time, Kind: c.name}
	if _, end := r.Payload.(EndOfLog); end {
		return w, nil
	}

	raw, err := json.Marshal(r.Payload)
	if err != nil {
		return wireRecord{}, err
	}
	w.Payload = raw

	return w, nil
}

func fromWire(w wireRecord) (Record, error) {
	k, ok := kindByName[w.Kind]
	if !ok {
		return Record{}, fmt.Errorf("%w: %w %q", ErrIncompatibleLog, ErrUnknownKind, w.Kind)
	}

	p, err := kindTable[k].decode(w.Payload)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %s record at %d: %w",
			ErrIncompatibleLog, w.Kind, w.Time, err)
	}

	return Record{Time: w.Time, Payload: p}, nil
}

// MarshalRecord encodes a record as JSON.
func MarshalRecord(r Record) ([]byte, error) {
	w, err := toWire(r)
	if err != nil {
		return nil, err
	}

	return json.Marshal(w)
}

// UnmarshalRecord decodes a record encoded by MarshalRecord. Records of
// unknown kinds fail with an error matching ErrUnknownKind.
func UnmarshalRecord(data []byte) (Record, error) {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrIncompatibleLog, err)
	}

	return fromWire(w)
}

// EncodePayload encodes only the payload of a record, returning the kind
// name and the JSON body. Stores that keep the time in a column of their
// own use it.
func EncodePayload(p Payload) (kind string, body []byte, err error) {
	w, err := toWire(Record{Payload: p})
	if err != nil {
		return "", nil, err
	}

	return w.Kind, w.Payload, nil
}

// DecodeRecord is the inverse of EncodePayload.
func DecodeRecord(t emutime.EmuTime, kind string, body []byte) (Record, error) {
	return fromWire(wireRecord{Time: t, Kind: kind, Payload: body})
}
