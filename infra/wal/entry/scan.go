package entry

import (
	"encoding/binary"
	"io"
	"os"
)

// scanSegment walks a segment's frames without decoding payloads. It
// returns the highest sequence seen and the offset just past the last
// complete frame, so a torn tail can be cut off.
func scanSegment(path string) (maxSeq uint64, end int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return 0, 0, err
	}

	header := make([]byte, headerSize)
	for {
		if _, err := io.ReadFull(f, header); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return maxSeq, end, nil
			}
			return maxSeq, end, err
		}

		payloadLen := int64(binary.BigEndian.Uint32(header[17:21]))
		next := end + headerSize + payloadLen + 4
		if next > st.Size() {
			return maxSeq, end, nil
		}

		if seq := binary.BigEndian.Uint64(header[1:9]); seq > maxSeq {
			maxSeq = seq
		}

		if _, err := f.Seek(next, io.SeekStart); err != nil {
			return maxSeq, end, err
		}
		end = next
	}
}

func maxSeqInSegment(path string) (uint64, error) {
	seq, _, err := scanSegment(path)
	return seq, err
}
