package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"
)

// Job is one full fetch and filter run
type Job func(ctx context.Context) error

// Triggerable allows workers to be woken after a run
type Triggerable interface {
	Trigger()
}

type Scheduler struct {
	cronSpec string
	interval time.Duration
	job      Job
	cron     *cron.Cron
	ticker   *time.Ticker
	stopCh   chan struct{}
	stopOnce sync.Once

	running sync.Mutex
	workers []Triggerable
}

// New schedules job with a cron expression, or every interval when cronSpec is empty
func New(cronSpec string, interval time.Duration, job Job) *Scheduler {
	return &Scheduler{
		cronSpec: cronSpec,
		interval: interval,
		job:      job,
		cron:     cron.New(),
		stopCh:   make(chan struct{}),
	}
}

// SetWorkers registers background workers woken after every successful run
func (s *Scheduler) SetWorkers(workers ...Triggerable) {
	s.workers = workers
}

func (s *Scheduler) Start(ctx context.Context) error {
	switch {
	case s.cronSpec != "":
		log.Info().Str("cron", s.cronSpec).Msg("starting scheduler")
		_, err := s.cron.AddFunc(s.cronSpec, func() { s.run(ctx) })
		if err != nil {
			return eris.Wrapf(err, "invalid cron expression %q", s.cronSpec)
		}
		s.cron.Start()
	case s.interval > 0:
		log.Info().Dur("interval", s.interval).Msg("starting scheduler")
		s.ticker = time.NewTicker(s.interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					s.run(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	default:
		return eris.New("no schedule configured, set SCHEDULE_CRON or SCHEDULE_INTERVAL")
	}
	return nil
}

func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		<-s.cron.Stop().Done()
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
	})
}

// TriggerNow runs the job immediately, unless a run is already in progress
func (s *Scheduler) TriggerNow(ctx context.Context) error {
	if !s.running.TryLock() {
		return ErrBusy
	}
	defer s.running.Unlock()
	return s.runLocked(ctx)
}

// ErrBusy is returned when a run is requested while another one is in progress
var ErrBusy = eris.New("a run is already in progress")

func (s *Scheduler) run(ctx context.Context) {
	if err := s.TriggerNow(ctx); err != nil {
		if eris.Is(err, ErrBusy) {
			log.Warn().Msg("previous run still in progress, skipping")
			return
		}
		log.Error().Err(err).Msg("scheduled run failed")
	}
}

func (s *Scheduler) runLocked(ctx context.Context) error {
	start := time.Now()
	if err := s.job(ctx); err != nil {
		return err
	}
	log.Info().Dur("elapsed", time.Since(start)).Msg("scheduled run done")
	for _, w := range s.workers {
		w.Trigger()
	}
	return nil
}
