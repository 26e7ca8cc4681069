// Package sequence issues the global instruction sequence and persists its
// high-water mark next to the state it describes.
package sequence

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/cockroachdb/errors"

	"tokex/domain/errs"
)

// Key holds the last committed sequence inside the state store.
var Key = []byte("meta/seq")

type Sequencer struct {
	last atomic.Uint64
}

// New starts after last: the first Next returns last+1.
func New(last uint64) *Sequencer {
	s := &Sequencer{}
	s.last.Store(last)
	return s
}

func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

// Current returns the last issued sequence.
func (s *Sequencer) Current() uint64 {
	return s.last.Load()
}

// Peek returns the sequence the next call to Next will issue.
func (s *Sequencer) Peek() uint64 {
	return s.last.Load() + 1
}

// Reset is used once recovery knows the last committed sequence.
func (s *Sequencer) Reset(last uint64) {
	s.last.Store(last)
}

type Getter interface {
	GetRaw(key []byte) ([]byte, error)
}

type Setter interface {
	SetRaw(key, value []byte) error
}

// Stage writes seq as the committed mark in the caller's transaction.
func Stage(w Setter, seq uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], seq)
	return w.SetRaw(Key, b[:])
}

// Load reads the committed mark. A store that never committed reads 0.
func Load(r Getter) (uint64, error) {
	b, err := r.GetRaw(Key)
	if errors.Is(err, errs.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(b) != 8 {
		return 0, errors.Newf("sequence mark has %d bytes", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}
