package entry

import (
	"encoding/binary"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// Frame: [type:1][seq:8][time:8][len:4][payload][crc:4]
const headerSize = 1 + 8 + 8 + 4

type Config struct {
	Dir             string
	SegmentSize     int64
	SegmentDuration time.Duration
}

// WAL is the append-only instruction journal. Records carry strictly
// increasing sequence numbers across segments.
type WAL struct {
	mu         sync.Mutex
	dir        string
	segSize    int64
	segDur     time.Duration
	current    *segment
	lastSeq    uint64
	lastRotate time.Time
}

// Open resumes the journal at its newest segment.
func Open(cfg Config) (*WAL, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}

	files, err := segments(cfg.Dir)
	if err != nil {
		return nil, err
	}
	index := 0
	var lastSeq uint64
	if len(files) > 0 {
		newest := files[len(files)-1]
		index = segmentIndex(newest)

		seq, end, err := scanSegment(newest)
		if err != nil {
			return nil, errors.Wrapf(err, "scan %s", newest)
		}
		// Drop a frame torn by a crash so appends stay readable.
		if err := os.Truncate(newest, end); err != nil {
			return nil, err
		}
		lastSeq = seq
		for i := len(files) - 2; i >= 0 && lastSeq == 0; i-- {
			if lastSeq, err = maxSeqInSegment(files[i]); err != nil {
				return nil, errors.Wrapf(err, "scan %s", files[i])
			}
		}
	}

	seg, err := openSegment(cfg.Dir, index)
	if err != nil {
		return nil, err
	}

	return &WAL{
		dir:        cfg.Dir,
		segSize:    cfg.SegmentSize,
		segDur:     cfg.SegmentDuration,
		current:    seg,
		lastSeq:    lastSeq,
		lastRotate: time.Now(),
	}, nil
}

func (w *WAL) Append(r *Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if r.Seq <= w.lastSeq {
		return errors.Newf("journal: seq %d not after %d", r.Seq, w.lastSeq)
	}

	payloadLen := uint32(len(r.Data))
	buf := make([]byte, headerSize+payloadLen+4)

	buf[0] = byte(r.Type)
	binary.BigEndian.PutUint64(buf[1:9], r.Seq)
	binary.BigEndian.PutUint64(buf[9:17], uint64(r.Time))
	binary.BigEndian.PutUint32(buf[17:21], payloadLen)
	copy(buf[headerSize:], r.Data)

	crc := CRC32(buf[:headerSize+payloadLen])
	binary.BigEndian.PutUint32(buf[headerSize+payloadLen:], crc)

	if err := w.current.append(buf); err != nil {
		return err
	}
	w.lastSeq = r.Seq

	if w.shouldRotate() {
		return w.rotate()
	}
	return nil
}

// LastSeq is the sequence of the newest record in the current segment.
func (w *WAL) LastSeq() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeq
}

func (w *WAL) Dir() string { return w.dir }

func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current.close()
}

func (w *WAL) shouldRotate() bool {
	if w.segSize > 0 && w.current.offset >= w.segSize {
		return true
	}
	return w.segDur > 0 && time.Since(w.lastRotate) >= w.segDur
}

func (w *WAL) rotate() error {
	_ = w.current.close()

	seg, err := openSegment(w.dir, w.current.index+1)
	if err != nil {
		return err
	}

	w.current = seg
	w.lastRotate = time.Now()
	return nil
}

// TruncateBefore removes closed segments whose records are all at or
// below seq. The segment being written is always kept.
func (w *WAL) TruncateBefore(seq uint64) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	files, err := segments(w.dir)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, path := range files {
		if segmentIndex(path) >= w.current.index {
			continue
		}
		maxSeq, err := maxSeqInSegment(path)
		if err != nil {
			continue
		}
		if maxSeq <= seq {
			if err := os.Remove(path); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}
