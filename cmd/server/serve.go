package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"tokex/api/grpcserver"
	"tokex/api/httpserver"
	"tokex/config"
	"tokex/domain/errs"
	"tokex/domain/matching"
	"tokex/domain/registry"
	"tokex/infra/kafka"
	"tokex/infra/logging"
	"tokex/infra/metrics"
	"tokex/infra/outbox"
	"tokex/infra/store"
	"tokex/infra/tradelog"
	"tokex/infra/wal/entry"
	"tokex/jobs/broadcaster"
	"tokex/jobs/maintenance"
	"tokex/service"
	"tokex/snapshot"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Recover state and serve the exchange",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		return serve(cfg)
	},
}

func serve(cfg *config.Config) error {
	log := logging.New(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty}, nil)

	// ---------------- State ----------------

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		return errors.Wrap(err, "open state")
	}
	defer st.Close()

	journal, err := entry.Open(entry.Config{
		Dir:             cfg.Journal.Dir,
		SegmentSize:     cfg.Journal.SegmentSize,
		SegmentDuration: cfg.Journal.SegmentDuration,
	})
	if err != nil {
		return errors.Wrap(err, "open journal")
	}
	defer journal.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// ---------------- Service ----------------

	policy := matching.Policy{AutoMatch: cfg.Matching.AutoMatch}
	if cfg.Matching.MarketRemainder == "reject" {
		policy.MarketRemainder = matching.RemainderReject
	}
	svc := service.New(st, journal, service.Config{
		ProgramID: cfg.ProgramID,
		Policy:    policy,
		Fees:      registry.Limits{DefaultFeeBps: cfg.Fees.DefaultBps, MaxFeeBps: cfg.Fees.MaxBps},
	}, m, logging.Component(log, "exchange"))

	start := time.Now()
	if err := svc.Recover(); err != nil {
		return errors.Wrap(err, "recover")
	}
	log.Info().Uint64("seq", svc.Seq()).Dur("took", time.Since(start)).Msg("state recovered")
	// The ledger stays authoritative; a mismatch is logged and counted.
	if _, err := svc.VerifySnapshot(cfg.SnapshotDir); err != nil && !errs.IsInvariantViolation(err) {
		return errors.Wrap(err, "verify snapshot")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// ---------------- Outbox relay ----------------

	ob := outbox.New(st)
	var (
		pubs    []broadcaster.Publisher
		history httpserver.TradeHistory
	)
	if cfg.Kafka.Enabled {
		pub, err := newKafkaPublisher(cfg.Kafka)
		if err != nil {
			return err
		}
		pubs = append(pubs, pub)
	}
	if cfg.TradeLog.Enabled {
		tl, err := tradelog.Open(cfg.TradeLog.DSN)
		if err != nil {
			return errors.Wrap(err, "open trade log")
		}
		pubs = append(pubs, tl)
		history = tl
	}
	bc := broadcaster.New(ob, broadcaster.Config{
		Interval:   cfg.Broadcaster.Interval,
		MaxRetries: cfg.Broadcaster.MaxRetries,
	}, log, m, pubs...)
	defer bc.Close()
	go bc.Run(ctx)

	// ---------------- Maintenance ----------------

	sched := maintenance.NewScheduler(log)
	snap := &maintenance.SnapshotJob{
		Source:  svc,
		Writer:  &snapshot.Writer{Dir: cfg.SnapshotDir, Keep: cfg.SnapshotKeep},
		Levels:  cfg.Maintenance.DepthLevels,
		Metrics: m,
		Log:     logging.Component(log, "snapshot"),
	}
	if cfg.Maintenance.TruncateJournal {
		snap.Journal = journal
	}
	if err := sched.AddJob(cfg.Maintenance.Schedule, snap); err != nil {
		return err
	}
	if err := sched.AddJob(cfg.Maintenance.Schedule, &maintenance.OutboxCleanupJob{
		Outbox: ob,
		Log:    logging.Component(log, "outbox"),
	}); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	// ---------------- Transports ----------------

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return errors.Wrapf(err, "listen %s", cfg.GRPCAddr)
	}
	grpcSrv := grpc.NewServer(grpc.UnaryInterceptor(grpcserver.UnaryLogger(log)))
	grpcserver.Register(grpcSrv, grpcserver.NewServer(svc))

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpserver.New(svc, history, reg, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 2)
	go func() { errc <- grpcSrv.Serve(lis) }()
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()
	log.Info().Str("grpc", cfg.GRPCAddr).Str("http", cfg.HTTPAddr).Msg("exchange running")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err = <-errc:
		log.Error().Err(err).Msg("server failed")
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if serr := httpSrv.Shutdown(shutdownCtx); serr != nil {
		log.Warn().Err(serr).Msg("http shutdown")
	}
	grpcSrv.GracefulStop()

	// A final snapshot at the last seq is what the next start verifies against.
	if serr := sched.RunNow(snap); serr != nil {
		log.Warn().Err(serr).Msg("final snapshot")
	}
	return err
}

func newKafkaPublisher(cfg config.Kafka) (broadcaster.Publisher, error) {
	if cfg.Driver == "sarama" {
		p, err := broadcaster.NewSaramaPublisher(cfg.Brokers, cfg.Topic)
		if err != nil {
			return nil, errors.Wrap(err, "sarama producer")
		}
		return p, nil
	}
	return kafka.NewProducer(cfg.Brokers, cfg.Topic), nil
}
