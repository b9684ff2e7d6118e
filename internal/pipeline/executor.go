package pipeline

import (
	"context"
	"errors"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marcelocantos/pipe/internal/proc"
)

// DefaultKillGrace is how long a cancelled run waits after SIGTERM before
// sending SIGKILL.
const DefaultKillGrace = 2 * time.Second

// Observer receives run events. Metrics collection implements it.
type Observer interface {
	StageLaunched(rec proc.Record)
	StageDone(rec proc.Record)
	PipelineDone(res *Result)
}

// Result is the outcome of one run.
type Result struct {
	RunID    string
	Code     int
	Records  []proc.Record // stage order; shorter than the pipeline if launching was aborted
	Duration time.Duration
}

// Executor runs a pipeline of external programs.
type Executor struct {
	Launcher  *proc.Launcher
	Collector *proc.Collector
	Logger    *zap.Logger
	Observer  Observer

	// KillGrace is the delay between SIGTERM and SIGKILL once the run's
	// context is done.
	KillGrace time.Duration
}

// NewExecutor returns an executor using the platform loader and wait4.
func NewExecutor(logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		Launcher:  &proc.Launcher{Loader: proc.ExecLoader{}},
		Collector: proc.NewCollector(),
		Logger:    logger,
		KillGrace: DefaultKillGrace,
	}
}

// Execute allocates the links, launches every stage, waits for all of
// them and returns the aggregate result.
//
// The error is non-nil only for parent-side failures: pipe allocation,
// process creation or waiting. In the last two cases the result is still
// returned with whatever was collected, and every spawned child has been
// reaped unless waiting itself failed.
//
// ctx only bounds the run: once it is done, unfinished stages are sent
// SIGTERM and, after KillGrace, SIGKILL. Collection always continues
// until every child has been reaped.
func (e *Executor) Execute(ctx context.Context, p *Pipeline) (*Result, error) {
	if p == nil || p.Len() == 0 {
		return nil, ErrEmptyPipeline
	}
	start := time.Now()
	res := &Result{RunID: uuid.NewString()}
	log := e.logger().With(zap.String("run_id", res.RunID))
	log.Debug("pipeline.segmented", zap.Int("stages", p.Len()), zap.Any("argv", p.Argv()))

	fab, err := proc.Allocate(p.Len())
	if err != nil {
		log.Error("pipeline.alloc_failed", zap.Error(err))
		return nil, err
	}
	defer fab.Close()

	table := proc.NewTable(p.Len())
	var launchErr error
	for _, s := range p.Stages {
		rec, err := e.Launcher.Launch(s.Index, s.Tokens, fab)
		var le *proc.LoadError
		switch {
		case err == nil:
			log.Debug("stage.launched", zap.Int("stage", s.Index), zap.String("name", s.Name()), zap.Int("pid", rec.Pid))
		case errors.As(err, &le):
			log.Warn("stage.load_failed", zap.Int("stage", s.Index), zap.Error(err), zap.Int("code", le.Code()))
		default:
			log.Error("stage.fork_failed", zap.Int("stage", s.Index), zap.Error(err))
			launchErr = err
		}
		if launchErr != nil {
			break
		}
		table.Add(rec)
		e.observe(func(o Observer) { o.StageLaunched(rec) })
		if rec.Done() {
			e.observe(func(o Observer) { o.StageDone(rec) })
		}
	}
	// Stages that were never launched leave their links behind; drop them
	// so the spawned ones see end-of-stream or a broken pipe.
	fab.Close()

	stop := e.watch(ctx, table, log)
	collector := *e.Collector
	collector.OnExit = func(rec proc.Record) {
		log.Debug("stage.exited", zap.Int("stage", rec.Stage), zap.Int("pid", rec.Pid), zap.Stringer("outcome", rec.Outcome))
		e.observe(func(o Observer) { o.StageDone(rec) })
		if e.Collector.OnExit != nil {
			e.Collector.OnExit(rec)
		}
	}
	waitErr := collector.Collect(table)
	stop()

	res.Records = table.Records()
	res.Code = proc.Aggregate(res.Records)
	res.Duration = time.Since(start)
	e.observe(func(o Observer) { o.PipelineDone(res) })

	if waitErr != nil {
		log.Error("pipeline.wait_failed", zap.Error(waitErr))
		return res, waitErr
	}
	log.Debug("pipeline.done", zap.Int("code", res.Code), zap.Duration("duration", res.Duration))
	return res, launchErr
}

// watch signals unfinished stages once ctx is done. The returned func
// stops the watcher and must be called after collection.
func (e *Executor) watch(ctx context.Context, table *proc.Table, log *zap.Logger) func() {
	if ctx.Done() == nil {
		return func() {}
	}
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		select {
		case <-done:
			return
		case <-ctx.Done():
		}
		n := table.Signal(syscall.SIGTERM)
		log.Warn("pipeline.cancelled", zap.Error(ctx.Err()), zap.Int("signalled", n))

		grace := e.KillGrace
		if grace <= 0 {
			grace = DefaultKillGrace
		}
		t := time.NewTimer(grace)
		defer t.Stop()
		select {
		case <-done:
		case <-t.C:
			n := table.Signal(syscall.SIGKILL)
			log.Warn("pipeline.killed", zap.Int("signalled", n))
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}

func (e *Executor) observe(f func(Observer)) {
	if e.Observer != nil {
		f(e.Observer)
	}
}

func (e *Executor) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}
