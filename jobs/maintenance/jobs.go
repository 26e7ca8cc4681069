package maintenance

import (
	"github.com/rs/zerolog"

	"tokex/infra/metrics"
	"tokex/snapshot"
)

// Source yields a consistent snapshot of the live books.
type Source interface {
	Snapshot(levels int) snapshot.Snapshot
}

// Truncator drops journal segments fully below a sequence.
type Truncator interface {
	TruncateBefore(seq uint64) (int, error)
}

// SnapshotJob writes a depth snapshot and, when a journal is attached,
// drops the segments the snapshot covers.
type SnapshotJob struct {
	Source  Source
	Writer  *snapshot.Writer
	Levels  int
	Journal Truncator // optional
	Metrics *metrics.Metrics
	Log     zerolog.Logger
}

func (j *SnapshotJob) Name() string { return "snapshot" }

func (j *SnapshotJob) Run() error {
	s := j.Source.Snapshot(j.Levels)
	path, err := j.Writer.Write(s)
	if err != nil {
		j.Metrics.Snapshots.WithLabelValues("failed").Inc()
		return err
	}
	j.Metrics.Snapshots.WithLabelValues("ok").Inc()

	ev := j.Log.Info().Str("path", path).Uint64("seq", s.Seq).Int("books", len(s.Books))
	if j.Journal != nil && s.Seq > 0 {
		removed, err := j.Journal.TruncateBefore(s.Seq)
		if err != nil {
			return err
		}
		ev = ev.Int("segments_removed", removed)
	}
	ev.Msg("snapshot written")
	return nil
}

// Acked is the outbox view the cleanup job needs.
type Acked interface {
	TruncateAcked() (int, error)
}

// OutboxCleanupJob deletes delivered outbox entries.
type OutboxCleanupJob struct {
	Outbox Acked
	Log    zerolog.Logger
}

func (j *OutboxCleanupJob) Name() string { return "outbox_cleanup" }

func (j *OutboxCleanupJob) Run() error {
	n, err := j.Outbox.TruncateAcked()
	if err != nil {
		return err
	}
	if n > 0 {
		j.Log.Debug().Int("removed", n).Msg("outbox truncated")
	}
	return nil
}
