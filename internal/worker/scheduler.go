package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"reservo/internal/metrics"

	"github.com/rs/zerolog"
)

// Job is one unit of periodic work. Run returns an error only when the run as
// a whole failed; per-row failures are handled inside.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Waiter lets a job end its delay early, e.g. on a queue wake-up.
type Waiter interface {
	Wait(ctx context.Context, d time.Duration)
}

type schedule struct {
	job        Job
	interval   time.Duration
	runOnStart bool
}

// Scheduler drives every job in its own loop with a fixed delay between the
// end of one run and the start of the next.
type Scheduler struct {
	schedules []schedule
	logger    *zerolog.Logger
	wg        sync.WaitGroup
	running   atomic.Int32
}

func NewScheduler(logger *zerolog.Logger) *Scheduler {
	return &Scheduler{logger: logger}
}

// Add registers a job. Must be called before Start.
func (s *Scheduler) Add(job Job, interval time.Duration, runOnStart bool) {
	if interval <= 0 {
		interval = time.Hour
	}
	s.schedules = append(s.schedules, schedule{job: job, interval: interval, runOnStart: runOnStart})
}

// Start launches one goroutine per job and returns. Loops exit when ctx is
// cancelled; a run in progress is finished first.
func (s *Scheduler) Start(ctx context.Context) {
	for _, sch := range s.schedules {
		s.wg.Add(1)
		s.running.Add(1)
		go func(sch schedule) {
			defer s.wg.Done()
			defer s.running.Add(-1)
			s.loop(ctx, sch)
		}(sch)
	}
	s.logger.Info().Int("jobs", len(s.schedules)).Msg("Scheduler started")
}

// Wait blocks until every loop has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
	s.logger.Info().Msg("Scheduler stopped")
}

// Running returns the number of live job loops.
func (s *Scheduler) Running() int {
	return int(s.running.Load())
}

func (s *Scheduler) loop(ctx context.Context, sch schedule) {
	name := sch.job.Name()
	s.logger.Info().Str("job", name).Dur("interval", sch.interval).Bool("run_on_start", sch.runOnStart).Msg("Job loop started")
	defer s.logger.Info().Str("job", name).Msg("Job loop stopped")

	if sch.runOnStart {
		s.RunOnce(ctx, sch.job)
	}

	waiter, _ := sch.job.(Waiter)
	timer := time.NewTimer(sch.interval)
	defer timer.Stop()

	for {
		if waiter != nil {
			waiter.Wait(ctx, sch.interval)
		} else {
			select {
			case <-ctx.Done():
			case <-timer.C:
			}
		}
		if ctx.Err() != nil {
			return
		}

		s.RunOnce(ctx, sch.job)
		if waiter == nil {
			timer.Reset(sch.interval)
		}
	}
}

// RunOnce executes one run of job. Cancellation of ctx does not interrupt the
// run; a panic is logged and counted as a failed run.
func (s *Scheduler) RunOnce(ctx context.Context, job Job) (err error) {
	runCtx := context.WithoutCancel(ctx)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			s.logger.Error().
				Str("job", job.Name()).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("Job panicked")
		}
		metrics.ObserveRun(job.Name(), time.Since(start), err)
	}()

	if err = job.Run(runCtx); err != nil {
		s.logger.Error().Err(err).Str("job", job.Name()).Msg("Job run failed")
		return err
	}
	s.logger.Debug().Str("job", job.Name()).Dur("took", time.Since(start)).Msg("Job run finished")
	return nil
}
