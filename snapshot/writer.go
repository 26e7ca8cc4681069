package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
)

const ext = ".snap"

type Writer struct {
	Dir  string
	Keep int // files retained after each write; <= 0 keeps all
}

// Write stores s as snapshot-<seq>.snap. The file appears atomically.
func (w *Writer) Write(s Snapshot) (string, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", err
	}

	b, err := msgpack.Marshal(&s)
	if err != nil {
		return "", errors.Wrap(err, "encode snapshot")
	}

	path := filepath.Join(w.Dir, fmt.Sprintf("snapshot-%020d%s", s.Seq, ext))
	tmp, err := os.CreateTemp(w.Dir, "snapshot-*.tmp")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}

	if w.Keep > 0 {
		if err := w.prune(); err != nil {
			return path, errors.Wrap(err, "prune snapshots")
		}
	}
	return path, nil
}

func (w *Writer) prune() error {
	files, err := list(w.Dir)
	if err != nil {
		return err
	}
	for len(files) > w.Keep {
		if err := os.Remove(files[0]); err != nil {
			return err
		}
		files = files[1:]
	}
	return nil
}

// list returns snapshot files oldest first.
func list(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "snapshot-") || !strings.HasSuffix(name, ext) {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	// zero-padded seq sorts lexically
	sort.Strings(out)
	return out, nil
}
