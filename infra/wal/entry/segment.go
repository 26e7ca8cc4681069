package entry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const segmentGlob = "segment-*.wal"

type segment struct {
	file   *os.File
	index  int
	offset int64
}

func segmentPath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("segment-%06d.wal", index))
}

func openSegment(dir string, index int) (*segment, error) {
	f, err := os.OpenFile(segmentPath(dir, index), os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &segment{file: f, index: index, offset: st.Size()}, nil
}

func (s *segment) append(b []byte) error {
	n, err := s.file.Write(b)
	s.offset += int64(n)
	if err != nil {
		return err
	}
	return s.file.Sync()
}

func (s *segment) close() error {
	return s.file.Close()
}

// segments lists the journal's segment files by ascending index.
func segments(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, segmentGlob))
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool {
		return segmentIndex(files[i]) < segmentIndex(files[j])
	})
	return files, nil
}

func segmentIndex(path string) int {
	name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), "segment-"), ".wal")
	n, err := strconv.Atoi(name)
	if err != nil {
		return -1
	}
	return n
}
