package broadcaster

import (
	"context"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"tokex/infra/metrics"
	"tokex/infra/outbox"
)

// Publisher delivers one encoded event. Delivery must be idempotent on
// the receiving side: an event may be published more than once.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
	Close() error
}

type Config struct {
	Interval   time.Duration
	MaxRetries uint32
}

// Broadcaster relays committed outbox entries to every publisher.
type Broadcaster struct {
	outbox  *outbox.Outbox
	pubs    []Publisher
	cfg     Config
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// ------------------------------------------------
// CONSTRUCTOR
// ------------------------------------------------

func New(
	ob *outbox.Outbox,
	cfg Config,
	log zerolog.Logger,
	m *metrics.Metrics,
	pubs ...Publisher,
) *Broadcaster {
	if cfg.Interval <= 0 {
		cfg.Interval = 250 * time.Millisecond
	}
	return &Broadcaster{
		outbox:  ob,
		pubs:    pubs,
		cfg:     cfg,
		log:     log.With().Str("component", "broadcaster").Logger(),
		metrics: m,
	}
}

// ------------------------------------------------
// LOOP
// ------------------------------------------------

// Run relays on every tick until ctx is done.
func (b *Broadcaster) Run(ctx context.Context) {
	b.log.Info().Int("publishers", len(b.pubs)).Dur("interval", b.cfg.Interval).Msg("started")

	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.log.Info().Msg("stopped")
			return

		case <-ticker.C:
			if _, err := b.RelayOnce(ctx); err != nil && ctx.Err() == nil {
				b.log.Error().Err(err).Msg("relay pass failed")
			}
		}
	}
}

// ------------------------------------------------
// RELAY
// ------------------------------------------------

// RelayOnce makes one delivery attempt for every pending entry and
// reports how many were acknowledged.
func (b *Broadcaster) RelayOnce(ctx context.Context) (int, error) {
	pending, err := b.outbox.Pending(b.cfg.MaxRetries)
	if err != nil {
		return 0, errors.Wrap(err, "scan outbox")
	}
	b.metrics.OutboxPending.Set(float64(len(pending)))

	acked := 0
	for _, e := range pending {
		if err := ctx.Err(); err != nil {
			return acked, err
		}

		// Mark SENT first so a crash mid-publish is visible on restart.
		if err := b.outbox.UpdateState(e, outbox.StateSent, e.Retries); err != nil {
			return acked, err
		}

		if err := b.publish(ctx, e); err != nil {
			retries := e.Retries + 1
			b.metrics.OutboxPublished.WithLabelValues("failed").Inc()
			b.log.Warn().
				Err(err).
				Uint64("seq", e.Seq).
				Uint16("index", e.Index).
				Uint32("retries", retries).
				Msg("publish failed")
			if err := b.outbox.UpdateState(e, outbox.StateFailed, retries); err != nil {
				return acked, err
			}
			continue
		}

		if err := b.outbox.UpdateState(e, outbox.StateAcked, e.Retries); err != nil {
			return acked, err
		}
		b.metrics.OutboxPublished.WithLabelValues("acked").Inc()
		acked++
	}
	return acked, nil
}

func (b *Broadcaster) publish(ctx context.Context, e outbox.Entry) error {
	key := []byte(strconv.FormatUint(e.Seq, 10))
	for _, p := range b.pubs {
		if err := p.Publish(ctx, key, e.Payload); err != nil {
			return err
		}
	}
	return nil
}

// ------------------------------------------------
// SHUTDOWN
// ------------------------------------------------

func (b *Broadcaster) Close() error {
	var errs error
	for _, p := range b.pubs {
		errs = errors.CombineErrors(errs, p.Close())
	}
	return errs
}
