package service

import (
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/gagliardetto/solana-go"

	"tokex/domain/account"
	"tokex/domain/errs"
	"tokex/domain/orderbook"
	"tokex/infra/sequence"
	"tokex/infra/store"
	"tokex/snapshot"
)

// Recover rebuilds the books from every live order in the ledger and
// resumes the sequencer after the last committed instruction. It must run
// before the service accepts traffic.
func (s *ExchangeService) Recover() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var committed uint64
	if err := s.store.View(func(tx *store.Tx) error {
		var err error
		committed, err = sequence.Load(tx)
		return err
	}); err != nil {
		return errors.Wrap(err, "load sequence mark")
	}

	var live []*account.Order
	err := s.store.ScanAccounts(func(_ solana.PublicKey, data []byte) error {
		if account.PeekKind(data) != account.KindOrder {
			return nil
		}
		rec, err := account.Decode(data)
		if err != nil {
			return err
		}
		o := rec.(*account.Order)
		if o.Status.Terminal() || o.Type != account.Limit {
			return nil
		}
		live = append(live, o)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "scan orders")
	}

	// Ids are assigned in arrival order, so resting by id restores time priority.
	sort.Slice(live, func(i, j int) bool {
		if live[i].CompanyID != live[j].CompanyID {
			return live[i].CompanyID < live[j].CompanyID
		}
		return live[i].ID < live[j].ID
	})

	s.books.Reset()
	for _, o := range live {
		if err := s.books.Get(o.CompanyID).Rest(o.ID, o.Owner, o.Side, o.Price, o.Remaining); err != nil {
			return errors.Wrapf(err, "restore order %d/%d", o.CompanyID, o.ID)
		}
	}

	last := committed
	if s.journal != nil && s.journal.LastSeq() > last {
		last = s.journal.LastSeq()
	}
	s.seq.Reset(last)
	s.metrics.RestingOrders.Set(float64(s.books.Live()))

	s.log.Info().
		Int("orders", len(live)).
		Int("books", len(s.books.Companies())).
		Uint64("seq", last).
		Msg("recovered")
	return nil
}

// Snapshot captures the books at the last committed sequence.
func (s *ExchangeService) Snapshot(levels int) snapshot.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshot.Take(s.seq.Current(), s.books, levels)
}

// VerifySnapshot checks the rebuilt books against the newest snapshot in
// dir. Only a snapshot taken at the recovered sequence is comparable; an
// older one is skipped and reported as unchecked. A snapshot from beyond
// the ledger, or one whose depth differs, is an invariant violation.
func (s *ExchangeService) VerifySnapshot(dir string) (checked bool, err error) {
	snap, err := snapshot.Latest(dir)
	if errors.Is(err, errs.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	seq := s.seq.Current()
	switch {
	case snap.Seq < seq:
		s.log.Debug().Uint64("snapshot_seq", snap.Seq).Uint64("seq", seq).Msg("snapshot predates ledger, not compared")
		return false, nil
	case snap.Seq > seq:
		return true, s.diverged(errs.InvariantViolation("snapshot at seq %d is ahead of the ledger at %d", snap.Seq, seq))
	}

	want := nonEmpty(snap.Books)
	var got []orderbook.Depth
	for _, id := range s.books.Companies() {
		b, _ := s.books.Lookup(id)
		got = append(got, b.Depth(snap.Levels))
	}
	got = nonEmpty(got)

	if len(got) != len(want) {
		return true, s.diverged(errs.InvariantViolation("snapshot has %d non-empty books, ledger rebuilt %d", len(want), len(got)))
	}
	for i := range want {
		if !sameDepth(want[i], got[i]) {
			return true, s.diverged(errs.InvariantViolation("book %d differs from snapshot at seq %d", want[i].CompanyID, seq))
		}
	}
	s.log.Info().Uint64("seq", seq).Int("books", len(got)).Msg("snapshot matches ledger")
	return true, nil
}

func (s *ExchangeService) diverged(err error) error {
	s.metrics.InvariantViolations.Inc()
	s.log.Error().Err(err).Msg("snapshot check failed")
	return err
}

func nonEmpty(ds []orderbook.Depth) []orderbook.Depth {
	out := ds[:0:0]
	for _, d := range ds {
		if len(d.Bids) > 0 || len(d.Asks) > 0 {
			out = append(out, d)
		}
	}
	return out
}

func sameDepth(a, b orderbook.Depth) bool {
	if a.CompanyID != b.CompanyID || len(a.Bids) != len(b.Bids) || len(a.Asks) != len(b.Asks) {
		return false
	}
	for i := range a.Bids {
		if a.Bids[i] != b.Bids[i] {
			return false
		}
	}
	for i := range a.Asks {
		if a.Asks[i] != b.Asks[i] {
			return false
		}
	}
	return true
}
