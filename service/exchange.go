package service

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"tokex/domain/account"
	"tokex/domain/errs"
	"tokex/domain/escrow"
	"tokex/domain/fees"
	"tokex/domain/matching"
	"tokex/domain/orderbook"
	"tokex/domain/portfolio"
	"tokex/domain/registry"
	"tokex/domain/token"
	"tokex/infra/metrics"
	"tokex/infra/outbox"
	"tokex/infra/sequence"
	"tokex/infra/store"
	"tokex/infra/wal/entry"
)

// Journal is the append side of the instruction journal.
type Journal interface {
	Append(r *entry.Record) error
	LastSeq() uint64
}

type Config struct {
	ProgramID solana.PublicKey
	Policy    matching.Policy
	Fees      registry.Limits
	Clock     func() time.Time
}

// ExchangeService owns the books and serializes every instruction.
type ExchangeService struct {
	mu sync.RWMutex

	store   *store.Store
	journal Journal // optional
	seq     *sequence.Sequencer
	books   *orderbook.Books
	clock   func() time.Time

	addr      account.Deriver
	tokens    token.Ledger
	portfolio portfolio.Ledger
	escrow    escrow.Manager
	transfers escrow.Transfers
	fees      fees.Accumulator
	registry  *registry.Registry
	engine    *matching.Engine

	metrics *metrics.Metrics
	log     zerolog.Logger
}

// ------------------------------------------------
// CONSTRUCTOR
// ------------------------------------------------

// New wires the domain over st. Call Recover before serving traffic.
func New(
	st *store.Store,
	journal Journal,
	cfg Config,
	m *metrics.Metrics,
	log zerolog.Logger,
) *ExchangeService {
	if cfg.ProgramID == (solana.PublicKey{}) {
		cfg.ProgramID = solana.MustPublicKeyFromBase58(account.DefaultProgramID)
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	d := account.NewDeriver(cfg.ProgramID)
	tokens := token.NewLedger(d)
	pf := portfolio.NewLedger(d)
	esc := escrow.NewManager(d, tokens)
	fa := fees.NewAccumulator(d, esc)

	return &ExchangeService{
		store:     st,
		journal:   journal,
		seq:       sequence.New(0),
		books:     orderbook.NewBooks(),
		clock:     cfg.Clock,
		addr:      d,
		tokens:    tokens,
		portfolio: pf,
		escrow:    esc,
		transfers: escrow.NewTransfers(d, tokens, pf),
		fees:      fa,
		registry:  registry.New(d, tokens, pf, cfg.Fees),
		engine:    matching.NewEngine(d, pf, esc, fa, cfg.Policy),
		metrics:   m,
		log:       log.With().Str("component", "exchange").Logger(),
	}
}

// Addresses exposes the deriver so callers can locate accounts.
func (s *ExchangeService) Addresses() account.Deriver { return s.addr }

// Seq returns the last committed instruction sequence.
func (s *ExchangeService) Seq() uint64 { return s.seq.Current() }

// ------------------------------------------------
// EXECUTION
// ------------------------------------------------

// call carries what one instruction produces besides ledger writes.
type call struct {
	seq    uint64
	at     time.Time
	events []staged
	fills  []fill
}

type staged struct {
	typ  string
	data any
}

// fill is a book delta waiting for the commit. The book is resolved only
// then, so a rejected instruction never creates one.
type fill struct {
	company uint64
	res     *matching.Result
}

func (c *call) now() int64 { return c.at.Unix() }

func (c *call) emit(typ string, data any) {
	c.events = append(c.events, staged{typ: typ, data: data})
}

func (c *call) apply(companyID uint64, res *matching.Result) {
	c.fills = append(c.fills, fill{company: companyID, res: res})
}

// exec runs fn as instruction typ. req is the journaled payload.
func (s *ExchangeService) exec(
	ctx context.Context,
	typ entry.RecordType,
	req any,
	fn func(tx *store.Tx, c *call) error,
) (uint64, error) {
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	c := &call{seq: s.seq.Peek(), at: s.clock()}
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		if err := fn(tx, c); err != nil {
			return err
		}
		for i, ev := range c.events {
			e, err := outbox.NewEvent(ev.typ, c.seq, c.at, ev.data)
			if err != nil {
				return err
			}
			b, err := e.Encode()
			if err != nil {
				return err
			}
			if err := outbox.Stage(tx, c.seq, i, b); err != nil {
				return err
			}
		}
		return sequence.Stage(tx, c.seq)
	})

	s.metrics.InstructionDuration.WithLabelValues(typ.String()).Observe(time.Since(start).Seconds())
	s.metrics.Instructions.WithLabelValues(typ.String(), errs.Class(err)).Inc()
	if err != nil {
		s.reject(typ, err)
		return 0, err
	}

	s.seq.Next()
	for _, f := range c.fills {
		if err := f.res.Apply(s.books.Get(f.company)); err != nil {
			// The ledger is committed; the book is behind it until restart.
			s.metrics.InvariantViolations.Inc()
			s.log.Error().Err(err).Uint64("seq", c.seq).Uint64("company", f.company).Msg("book diverged from ledger")
		}
		s.observeTrades(f.res)
	}
	s.metrics.RestingOrders.Set(float64(s.books.Live()))

	s.record(typ, c, req)
	s.log.Info().
		Str("instruction", typ.String()).
		Uint64("seq", c.seq).
		Int("events", len(c.events)).
		Msg("accepted")
	return c.seq, nil
}

func (s *ExchangeService) reject(typ entry.RecordType, err error) {
	if errs.IsInvariantViolation(err) {
		s.metrics.InvariantViolations.Inc()
		s.log.Error().Str("instruction", typ.String()).Msgf("escrow invariant violated: %+v", err)
		return
	}
	s.log.Warn().
		Str("instruction", typ.String()).
		Str("class", errs.Class(err)).
		Err(err).
		Msg("rejected")
}

// record appends the committed instruction to the journal.
func (s *ExchangeService) record(typ entry.RecordType, c *call, req any) {
	if s.journal == nil {
		return
	}
	payload, err := msgpack.Marshal(req)
	if err != nil {
		s.log.Error().Err(err).Uint64("seq", c.seq).Msg("encode journal payload")
		return
	}
	r := entry.NewRecord(typ, c.seq, payload)
	r.Time = c.at.UnixNano()
	if err := s.journal.Append(r); err != nil {
		s.log.Error().Err(err).Uint64("seq", c.seq).Msg("journal append failed")
	}
}

func (s *ExchangeService) observeTrades(res *matching.Result) {
	for _, t := range res.Trades {
		s.metrics.Trades.Inc()
		s.metrics.TradedQuantity.Add(float64(t.Amount))
		s.metrics.TradedNotional.Add(float64(t.Notional))
		s.metrics.FeesCollected.Add(float64(t.Fee))
	}
}
