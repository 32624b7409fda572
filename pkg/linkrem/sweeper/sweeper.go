// Package sweeper runs periodic maintenance jobs on a cron schedule.
//
// The orphan tag sweep here catches tags left behind when the best-effort
// sweep that follows each mutation fails.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// TagSweeper deletes orphaned tags for every owner
type TagSweeper interface {
	SweepAll(ctx context.Context) (int64, error)
}

// Pruner drops stale in-memory state
type Pruner interface {
	Prune()
}

// OrphanTagJob sweeps unlocked tags that no link references
type OrphanTagJob struct {
	sweeper TagSweeper
	logger  *slog.Logger
	timeout time.Duration
}

func NewOrphanTagJob(s TagSweeper, logger *slog.Logger) *OrphanTagJob {
	return &OrphanTagJob{sweeper: s, logger: logger, timeout: time.Minute}
}

func (j *OrphanTagJob) Name() string { return "OrphanTagSweep" }

func (j *OrphanTagJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	n, err := j.sweeper.SweepAll(ctx)
	if err != nil {
		j.logger.Error("orphan tag sweep failed", slog.Any("error", err))
		return
	}
	if n > 0 {
		j.logger.Info("orphan tag sweep removed tags", slog.Int64("count", n))
	}
}

// PruneJob calls Prune on a limiter or similar store
type PruneJob struct {
	name   string
	pruner Pruner
}

func NewPruneJob(name string, p Pruner) *PruneJob {
	return &PruneJob{name: name, pruner: p}
}

func (j *PruneJob) Name() string { return j.name }

func (j *PruneJob) Run() { j.pruner.Prune() }

// Scheduler wraps a cron instance with logging and panic recovery
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// New creates a scheduler accepting standard five-field specs and descriptors such as "@hourly"
func New(logger *slog.Logger) *Scheduler {
	logger = logger.With("system", "cron")
	c := cron.New(
		cron.WithChain(
			recoverWrapper(logger),
			loggingWrapper(logger),
			cron.SkipIfStillRunning(cron.DiscardLogger),
		),
	)
	return &Scheduler{cron: c, logger: logger}
}

// Add registers job on a cron schedule
func (s *Scheduler) Add(spec string, job cron.Job) error {
	if _, err := s.cron.AddJob(spec, job); err != nil {
		return fmt.Errorf("schedule %s on %q: %w", jobName(job), spec, err)
	}
	s.logger.Info("registered job", slog.String("job_name", jobName(job)), slog.String("schedule", spec))
	return nil
}

// Len reports the number of registered jobs
func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Start() {
	s.logger.Info("cron scheduler started")
	s.cron.Start()
}

// Stop waits for running jobs to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("cron scheduler stopped")
}

func loggingWrapper(logger *slog.Logger) cron.JobWrapper {
	return func(j cron.Job) cron.Job {
		return cron.FuncJob(func() {
			jobLogger := logger.With(
				slog.String("job_name", jobName(j)),
				slog.String("execution_id", uuid.New().String()),
			)
			start := time.Now()
			jobLogger.Debug("job started")
			j.Run()
			jobLogger.Debug("job finished", slog.Duration("duration", time.Since(start)))
		})
	}
}

func recoverWrapper(logger *slog.Logger) cron.JobWrapper {
	return func(j cron.Job) cron.Job {
		return cron.FuncJob(func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("job panicked",
						slog.String("job_name", jobName(j)),
						slog.Any("panic", r),
						slog.String("stack_trace", string(debug.Stack())),
					)
				}
			}()
			j.Run()
		})
	}
}

func jobName(j cron.Job) string {
	if named, ok := j.(interface{ Name() string }); ok {
		return named.Name()
	}
	t := reflect.TypeOf(j)
	if t.Kind() == reflect.Ptr {
		return t.Elem().String()
	}
	return t.String()
}
