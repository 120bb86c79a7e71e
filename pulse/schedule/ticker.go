package schedule

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/softwaremap/db"
	"github.com/teranos/softwaremap/errors"
	"github.com/teranos/softwaremap/logger"
)

// TaskFunc executes one named pipeline task
type TaskFunc func(ctx context.Context, task string) (Counts, error)

// Runner executes a list of tasks in order and records each as a run.
// A failed task does not stop the next; cancellation or a closed store does.
type Runner struct {
	store *RunStore
	exec  TaskFunc
	log   *zap.SugaredLogger
}

// NewRunner creates a runner recording to store
func NewRunner(store *RunStore, exec TaskFunc, log *zap.SugaredLogger) *Runner {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Runner{store: store, exec: exec, log: log}
}

// RunOnce executes tasks and returns their runs
func (r *Runner) RunOnce(ctx context.Context, tasks []string) ([]*Run, error) {
	var runs []*Run
	var errs error

	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return runs, errors.CombineErrors(errs, errors.Wrap(err, "pulse cycle cancelled"))
		}

		run, err := r.store.StartRun(ctx, task)
		if err != nil {
			return runs, errors.CombineErrors(errs, err)
		}
		log := r.log.With(logger.FieldRunID, run.ID, logger.FieldTask, task)
		logger.PulseInfow(log, "Run started")

		counts, taskErr := r.exec(logger.WithRunID(ctx, run.ID), task)

		status := RunStatusCompleted
		switch {
		case taskErr != nil && ctx.Err() != nil:
			status = RunStatusCancelled
		case taskErr != nil:
			status = RunStatusFailed
		}

		// Record the outcome even when ctx is already cancelled
		finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		finishErr := r.store.FinishRun(finishCtx, run, status, counts, taskErr)
		cancel()

		runs = append(runs, run)
		if finishErr != nil {
			errs = errors.CombineErrors(errs, finishErr)
		}

		if taskErr != nil {
			logger.PulseErrorw(log, "Run failed", logger.FieldStatus, status, logger.FieldError, taskErr)
			errs = errors.CombineErrors(errs, errors.Wrapf(taskErr, "task %s", task))
			if status == RunStatusCancelled || db.IsDatabaseClosed(taskErr) {
				return runs, errs
			}
			continue
		}
		logger.PulseInfow(log, "Run finished",
			logger.FieldCount, counts.Processed,
			logger.FieldSkipped, counts.Skipped,
			logger.FieldDurationMS, run.Duration().Milliseconds())
	}
	return runs, errs
}

// TickerConfig contains configuration for the Pulse ticker
type TickerConfig struct {
	Interval   time.Duration // time between cycles
	Tasks      []string      // tasks per cycle, in order
	RunOnStart bool          // run a cycle immediately instead of waiting one interval
}

// Ticker runs the configured tasks on a fixed interval. Interval and task
// list may change while it runs; changes apply from the next cycle.
type Ticker struct {
	runner *Runner
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    *zap.SugaredLogger
	reset  chan struct{}

	runOnStart bool

	mu       sync.Mutex
	interval time.Duration
	tasks    []string
	cycles   int64
	lastRun  time.Time
	nextRun  time.Time
	running  bool
}

// NewTicker creates a ticker with a parent context
func NewTicker(ctx context.Context, runner *Runner, cfg TickerConfig, log *zap.SugaredLogger) *Ticker {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	tickerCtx, cancel := context.WithCancel(ctx)
	return &Ticker{
		runner:   runner,
		ctx:      tickerCtx,
		cancel:   cancel,
		log:      log,
		reset:    make(chan struct{}, 1),
		interval: cfg.Interval,
		tasks:    append([]string(nil), cfg.Tasks...),

		runOnStart: cfg.RunOnStart,
	}
}

// Start begins the ticker loop
func (t *Ticker) Start() {
	t.mu.Lock()
	interval := t.interval
	t.mu.Unlock()

	t.wg.Add(1)
	go t.run(t.runOnStart)
	logger.PulseOpenInfow(t.log, "Pulse ticker started", "interval", interval)
}

// Stop cancels an in-flight cycle between entities and waits for the loop
func (t *Ticker) Stop() {
	t.cancel()
	t.wg.Wait()
	logger.PulseCloseInfow(t.log, "Pulse ticker stopped")
}

// Wait blocks until the ticker stops
func (t *Ticker) Wait() {
	t.wg.Wait()
}

// SetInterval changes the cycle interval; the wait restarts from now
func (t *Ticker) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	t.mu.Lock()
	changed := d != t.interval
	t.interval = d
	t.mu.Unlock()

	if changed {
		logger.PulseInfow(t.log, "Pulse interval changed", "interval", d)
		select {
		case t.reset <- struct{}{}:
		default:
		}
	}
}

// SetTasks replaces the task list for the next cycle
func (t *Ticker) SetTasks(tasks []string) {
	t.mu.Lock()
	t.tasks = append([]string(nil), tasks...)
	t.mu.Unlock()
}

// Status is a snapshot of the ticker
type Status struct {
	Interval time.Duration `json:"interval"`
	Tasks    []string      `json:"tasks"`
	Cycles   int64         `json:"cycles"`
	LastRun  time.Time     `json:"last_run,omitempty"`
	NextRun  time.Time     `json:"next_run"`
	Running  bool          `json:"running"`
}

// Status reports the ticker state
func (t *Ticker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Status{
		Interval: t.interval,
		Tasks:    append([]string(nil), t.tasks...),
		Cycles:   t.cycles,
		LastRun:  t.lastRun,
		NextRun:  t.nextRun,
		Running:  t.running,
	}
}

// run is the main ticker loop
func (t *Ticker) run(runNow bool) {
	defer t.wg.Done()

	if runNow {
		t.cycle()
	}

	for {
		t.mu.Lock()
		wait := t.interval
		t.nextRun = time.Now().Add(wait)
		t.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-t.ctx.Done():
			timer.Stop()
			return
		case <-t.reset:
			timer.Stop()
			continue
		case <-timer.C:
			t.cycle()
		}
	}
}

func (t *Ticker) cycle() {
	t.mu.Lock()
	tasks := append([]string(nil), t.tasks...)
	t.running = true
	t.cycles++
	cycle := t.cycles
	t.mu.Unlock()

	logger.PulseInfow(t.log, "Pulse cycle starting", "cycle", cycle, "tasks", tasks)
	runs, err := t.runner.RunOnce(t.ctx, tasks)
	if err != nil {
		t.log.Warnw("Pulse cycle finished with errors", "cycle", cycle, logger.FieldError, err)
	}

	t.mu.Lock()
	t.running = false
	t.lastRun = time.Now()
	t.mu.Unlock()

	logger.PulseInfow(t.log, "Pulse cycle done", "cycle", cycle, logger.FieldCount, len(runs))
}
