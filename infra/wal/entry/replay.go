package entry

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/cockroachdb/errors"
)

type ReplayHandler func(*Record) error

// Replay feeds every journal record to fn in sequence order. A record cut
// short at the end of the newest segment is treated as the end of the log.
func Replay(dir string, fn ReplayHandler) (lastSeq uint64, err error) {
	files, err := segments(dir)
	if err != nil {
		return 0, err
	}

	for i, path := range files {
		newest := i == len(files)-1
		if lastSeq, err = replaySegment(path, newest, lastSeq, fn); err != nil {
			return lastSeq, errors.Wrapf(err, "replay %s", path)
		}
	}
	return lastSeq, nil
}

func replaySegment(path string, newest bool, lastSeq uint64, fn ReplayHandler) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return lastSeq, err
	}
	defer f.Close()

	for {
		rec, err := readRecord(f)
		switch {
		case err == io.EOF:
			return lastSeq, nil
		case errors.Is(err, io.ErrUnexpectedEOF) && newest:
			return lastSeq, nil
		case err != nil:
			return lastSeq, err
		}

		if rec.Seq <= lastSeq {
			return lastSeq, errors.Newf("non-monotonic seq %d after %d", rec.Seq, lastSeq)
		}
		lastSeq = rec.Seq

		if err := fn(rec); err != nil {
			return lastSeq, err
		}
	}
}

func readRecord(r io.Reader) (*Record, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	t := RecordType(header[0])
	seq := binary.BigEndian.Uint64(header[1:9])
	ts := binary.BigEndian.Uint64(header[9:17])
	l := binary.BigEndian.Uint32(header[17:21])

	data := make([]byte, l+4)
	if _, err := io.ReadFull(r, data); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	payload := data[:l]
	crc := binary.BigEndian.Uint32(data[l:])

	if !CRC32Valid(append(header, payload...), crc) {
		return nil, errors.Newf("crc mismatch at seq %d", seq)
	}

	return &Record{
		Type: t,
		Seq:  seq,
		Time: int64(ts),
		Data: payload,
	}, nil
}
