// Package maintenance runs periodic upkeep external to the Engine's own
// event-driven suspension points, scheduled with robfig/cron the way the
// teacher's scheduler package runs its background jobs.
package maintenance

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/aristath/enginecore/internal/clock"
	"github.com/aristath/enginecore/internal/engine"
)

// GhostSweepJob discards shadow entries older than its configured
// timeout, across every instrument's OrderManager. It runs on a cron
// schedule rather than as an engine event, since it has no observable
// input and only needs engine-local time to decide.
type GhostSweepJob struct {
	log     zerolog.Logger
	state   *engine.EngineState
	clk     clock.Clock
	timeout int64 // nanoseconds
}

// NewGhostSweepJob builds a job that sweeps every registered instrument's
// OrderManager for ghosts older than timeoutNanos.
func NewGhostSweepJob(log zerolog.Logger, state *engine.EngineState, clk clock.Clock, timeoutNanos int64) *GhostSweepJob {
	return &GhostSweepJob{
		log:     log.With().Str("job", "ghost_sweep").Logger(),
		state:   state,
		clk:     clk,
		timeout: timeoutNanos,
	}
}

func (j *GhostSweepJob) Name() string { return "ghost_sweep" }

// Run sweeps every instrument, logging (but not failing on) any
// ReconcileError each discarded shadow produces.
func (j *GhostSweepJob) Run() error {
	now := j.clk.NowNanos()
	var total int
	for _, inst := range j.state.Registry().Instruments() {
		om, err := j.state.OrderManager(inst.Index)
		if err != nil {
			continue
		}
		for _, e := range om.SweepGhosts(now, j.timeout) {
			total++
			j.log.Warn().Err(e).Uint32("instrument", uint32(inst.Index)).Msg("ghost order discarded")
		}
	}
	if total > 0 {
		j.log.Info().Int("discarded", total).Msg("ghost sweep completed")
	}
	return nil
}

// Scheduler wraps a robfig/cron instance, the way the teacher's
// internal/scheduler package does: named jobs registered against a cron
// expression, running in their own goroutine once Start is called.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

// Job is anything schedulable: a name for logging and a Run that reports
// failure without panicking the scheduler.
type Job interface {
	Run() error
	Name() string
}

// NewScheduler builds a Scheduler with second-granularity cron parsing.
func NewScheduler(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		log:  log.With().Str("component", "maintenance_scheduler").Logger(),
	}
}

// AddJob registers job against a cron schedule expression (e.g.
// "*/5 * * * * *" for every 5 seconds).
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		if err := job.Run(); err != nil {
			s.log.Error().Err(err).Str("job", job.Name()).Msg("maintenance job failed")
		}
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("schedule", schedule).Str("job", job.Name()).Msg("maintenance job registered")
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("maintenance scheduler started")
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("maintenance scheduler stopped")
}
