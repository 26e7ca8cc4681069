package snapshot

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"

	"tokex/domain/errs"
)

func Load(path string) (Snapshot, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	var s Snapshot
	if err := msgpack.Unmarshal(b, &s); err != nil {
		return Snapshot{}, errors.Wrapf(err, "decode snapshot %s", path)
	}
	if s.Version != Version {
		return Snapshot{}, errors.Newf("snapshot %s: unsupported version %d", path, s.Version)
	}
	return s, nil
}

// Latest loads the newest snapshot in dir, or errs.ErrNotFound.
func Latest(dir string) (Snapshot, error) {
	files, err := list(dir)
	if errors.Is(err, os.ErrNotExist) || (err == nil && len(files) == 0) {
		return Snapshot{}, errs.NotFound("no snapshot in %s", dir)
	}
	if err != nil {
		return Snapshot{}, err
	}
	return Load(files[len(files)-1])
}
