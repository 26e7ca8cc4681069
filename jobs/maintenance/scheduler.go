// Package maintenance runs periodic housekeeping on a cron schedule:
// depth snapshots, journal compaction and outbox cleanup.
package maintenance

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is one unit of scheduled work.
type Job interface {
	Run() error
	Name() string
}

type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

func NewScheduler(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		log:  log.With().Str("component", "scheduler").Logger(),
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("scheduler stopped")
}

// AddJob registers job under a cron spec such as "@every 1m" or
// "0 */5 * * * *".
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		if err := s.RunNow(job); err != nil {
			s.log.Error().Err(err).Str("job", job.Name()).Msg("job failed")
		}
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("schedule", schedule).Str("job", job.Name()).Msg("job registered")
	return nil
}

func (s *Scheduler) RunNow(job Job) error {
	s.log.Debug().Str("job", job.Name()).Msg("running job")
	return job.Run()
}
