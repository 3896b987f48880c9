package statechange

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/sarchlab/emucore/emutime"
)

// A Log is an ordered list of records, the input history of a run.
type Log struct {
	Records []Record
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{}
}

// Append adds a record to the end of the log.
func (l *Log) Append(r Record) {
	l.Records = append(l.Records, r)
}

// Len returns the number of records.
func (l *Log) Len() int {
	return len(l.Records)
}

// Finish marks the end of the recording at t.
func (l *Log) Finish(t emutime.EmuTime) {
	l.Append(Record{Time: t, Payload: EndOfLog{}})
}

// Finished reports whether the log ends with an EndOfLog record.
func (l *Log) Finished() bool {
	if len(l.Records) == 0 {
		return false
	}

	_, end := l.Records[len(l.Records)-1].Payload.(EndOfLog)

	return end
}

// Validate checks that the log can be replayed from time from: records must
// carry payloads and be in time order, none before from.
func (l *Log) Validate(from emutime.EmuTime) error {
	prev := from
	for i, r := range l.Records {
		if r.Payload == nil {
			return fmt.Errorf("%w: record %d has no payload", ErrIncompatibleLog, i)
		}

		if r.Time < prev {
			return fmt.Errorf("%w: record %d at %d is before %d",
				ErrIncompatibleLog, i, r.Time, prev)
		}

		prev = r.Time
	}

	return nil
}

// Save writes the log as JSON lines, one record per line.
func (l *Log) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)

	for i, r := range l.Records {
		wr, err := toWire(r)
		if err != nil {
			return fmt.Errorf("statechange: saving record %d: %w", i, err)
		}

		if err := enc.Encode(wr); err != nil {
			return fmt.Errorf("statechange: saving record %d: %w", i, err)
		}
	}

	return bw.Flush()
}

// LoadLog reads a log written by Save.
func LoadLog(r io.Reader) (*Log, error) {
	l := NewLog()
	dec := json.NewDecoder(r)

	for {
		var w wireRecord

		err := dec.Decode(&w)
		if err == io.EOF {
			return l, nil
		}

		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %w", ErrIncompatibleLog, l.Len(), err)
		}

		rec, err := fromWire(w)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", l.Len(), err)
		}

		l.Append(rec)
	}
}

// MarshalJSON encodes the log as a JSON array of records.
func (l *Log) MarshalJSON() ([]byte, error) {
	wires := make([]wireRecord, 0, len(l.Records))
	for _, r := range l.Records {
		w, err := toWire(r)
		if err != nil {
			return nil, err
		}

		wires = append(wires, w)
	}

	return json.Marshal(wires)
}

// UnmarshalJSON decodes a log encoded by MarshalJSON.
func (l *Log) UnmarshalJSON(data []byte) error {
	var wires []wireRecord
	if err := json.Unmarshal(data, &wires); err != nil {
		return fmt.Errorf("%w: %w", ErrIncompatibleLog, err)
	}

	records := make([]Record, 0, len(wires))
	for _, w := range wires {
		r, err := fromWire(w)
		if err != nil {
			return err
		}

		records = append(records, r)
	}

	l.Records = records

	return nil
}
