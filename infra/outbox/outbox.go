package outbox

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
)

// -------------------- State --------------------

type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// -------------------- Entry --------------------

// Entry is one event waiting to leave the process. Seq is the journal
// sequence of the instruction that produced it; Index orders events
// within that instruction.
type Entry struct {
	Seq         uint64
	Index       uint16
	State       State
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

const entryHeader = 1 + 4 + 8

// binary encoding: [state:1][retries:4][lastAttempt:8][payload]
func encodeEntry(e Entry) []byte {
	buf := make([]byte, entryHeader+len(e.Payload))
	buf[0] = byte(e.State)
	binary.BigEndian.PutUint32(buf[1:5], e.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(e.LastAttempt))
	copy(buf[entryHeader:], e.Payload)
	return buf
}

func decodeEntry(key, b []byte) (Entry, error) {
	if len(b) < entryHeader {
		return Entry{}, errors.Newf("outbox: short entry %q", key)
	}
	seq, idx, err := parseKey(key)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		Seq:         seq,
		Index:       idx,
		State:       State(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     append([]byte(nil), b[entryHeader:]...),
	}, nil
}

// -------------------- Staging --------------------

// Stager is the write side of an open ledger transaction.
type Stager interface {
	SetRaw(key, value []byte) error
}

// Stage queues payload as a NEW entry in the caller's transaction, so the
// event is durable exactly when the state change that caused it is.
func Stage(tx Stager, seq uint64, index int, payload []byte) error {
	if index < 0 || index > 0xffff {
		return errors.Newf("outbox: event index %d out of range", index)
	}
	e := Entry{Seq: seq, Index: uint16(index), State: StateNew, Payload: payload}
	return tx.SetRaw(keyFor(e.Seq, e.Index), encodeEntry(e))
}

// -------------------- Outbox --------------------

// KV is the committed keyspace the outbox lives in.
type KV interface {
	Scan(prefix []byte, fn func(key, value []byte) error) error
	Set(key, value []byte) error
	Delete(key []byte) error
}

type Outbox struct {
	kv KV
}

func New(kv KV) *Outbox {
	return &Outbox{kv: kv}
}

// ScanByState visits entries in the given state in sequence order.
func (o *Outbox) ScanByState(state State, fn func(Entry) error) error {
	return o.scan(func(e Entry) error {
		if e.State != state {
			return nil
		}
		return fn(e)
	})
}

// Pending returns what still has to be published: NEW entries, SENT ones
// left behind by a crash, and FAILED ones with retries to spare.
func (o *Outbox) Pending(maxRetries uint32) ([]Entry, error) {
	var out []Entry
	err := o.scan(func(e Entry) error {
		switch e.State {
		case StateNew, StateSent:
			out = append(out, e)
		case StateFailed:
			if e.Retries < maxRetries {
				out = append(out, e)
			}
		}
		return nil
	})
	return out, err
}

// UpdateState records a delivery attempt.
func (o *Outbox) UpdateState(e Entry, state State, retries uint32) error {
	e.State = state
	e.Retries = retries
	e.LastAttempt = time.Now().UnixNano()
	return o.kv.Set(keyFor(e.Seq, e.Index), encodeEntry(e))
}

func (o *Outbox) Delete(e Entry) error {
	return o.kv.Delete(keyFor(e.Seq, e.Index))
}

// TruncateAcked deletes every ACKED entry.
func (o *Outbox) TruncateAcked() (int, error) {
	var acked []Entry
	if err := o.ScanByState(StateAcked, func(e Entry) error {
		acked = append(acked, e)
		return nil
	}); err != nil {
		return 0, err
	}
	for i, e := range acked {
		if err := o.Delete(e); err != nil {
			return i, err
		}
	}
	return len(acked), nil
}

// Counts tallies entries per state.
func (o *Outbox) Counts() (map[State]int, error) {
	out := make(map[State]int)
	err := o.scan(func(e Entry) error {
		out[e.State]++
		return nil
	})
	return out, err
}

func (o *Outbox) scan(fn func(Entry) error) error {
	var entries []Entry
	err := o.kv.Scan([]byte(keyPrefix), func(key, value []byte) error {
		e, err := decodeEntry(key, value)
		if err != nil {
			return err
		}
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// -------------------- Helpers --------------------

const keyPrefix = "outbox/"

func keyFor(seq uint64, index uint16) []byte {
	return []byte(fmt.Sprintf("%s%020d/%04d", keyPrefix, seq, index))
}

func parseKey(b []byte) (uint64, uint16, error) {
	var seq uint64
	var idx uint16
	_, err := fmt.Sscanf(string(bytes.TrimPrefix(b, []byte(keyPrefix))), "%d/%d", &seq, &idx)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "outbox: bad key %q", b)
	}
	return seq, idx, nil
}
