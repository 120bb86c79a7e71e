// Package wikidata runs the enrichment batches: it pulls rows from the query
// executor, groups them per entity, reconciles dates and commits each entity
// in its own transaction.
package wikidata

import (
	"context"
	"iter"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/softwaremap/errors"
	"github.com/teranos/softwaremap/kb"
	kbwd "github.com/teranos/softwaremap/kb/wikidata"
	"github.com/teranos/softwaremap/logger"
	"github.com/teranos/softwaremap/pulse"
	"github.com/teranos/softwaremap/pulse/schedule"
	"github.com/teranos/softwaremap/reconcile"
	"github.com/teranos/softwaremap/store"
)

// Task names, in the order Run executes them
const (
	TaskSoftware = "software"
	TaskDates    = "dates"
	TaskGenres   = "genres"
	TaskBlurbs   = "blurbs"
)

// DefaultBatchSize bounds rows per transaction and IDs per description query
const DefaultBatchSize = 500

// maxDescriptionIDs keeps VALUES clauses under the endpoint's URL/body limits
const maxDescriptionIDs = 200

// Source is the read side of the knowledge base
type Source interface {
	Dates(ctx context.Context, kind kb.PropertyKind) iter.Seq2[kbwd.DateRow, error]
	Software(ctx context.Context) iter.Seq2[kbwd.SoftwareRow, error]
	Classes(ctx context.Context) iter.Seq2[kbwd.ClassRow, error]
	Genres(ctx context.Context) iter.Seq2[kbwd.GenreRow, error]
	Descriptions(ctx context.Context, ids []string) iter.Seq2[kbwd.DescriptionRow, error]
}

var _ Source = (*kbwd.Client)(nil)

// Options configures a Processor
type Options struct {
	DryRun                bool
	BatchSize             int  // <= 0 uses DefaultBatchSize
	OverwriteManual       bool // scraped blurbs may replace manual ones
	DisputeThresholdYears int
	Progress              pulse.ProgressEmitter // nil discards progress
	Logger                *zap.SugaredLogger    // nil uses the global logger
}

// Processor runs enrichment tasks against one store
type Processor struct {
	store      *store.Store
	source     Source
	reconciler *reconcile.Reconciler
	opts       Options
	progress   pulse.ProgressEmitter
	logger     *zap.SugaredLogger
}

// Result counts what one task did
type Result struct {
	Task   string `json:"task"`
	DryRun bool   `json:"dry_run"`

	RowsFetched int `json:"rows_fetched"`
	RowsSkipped int `json:"rows_skipped"` // malformed rows and unusable observations

	EntitiesCreated   int `json:"entities_created"`
	EntitiesCommitted int `json:"entities_committed"`
	Observations      int `json:"observations"` // newly recorded
	CanonicalDates    int `json:"canonical_dates"`
	Disputed          int `json:"disputed"`
	Relations         int `json:"relations"` // new class or genre links
	Blurbs            int `json:"blurbs"`

	Errors    []string  `json:"errors,omitempty"` // batch-level failures
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Summary flattens the counters for progress output
func (r *Result) Summary() map[string]interface{} {
	return map[string]interface{}{
		"task":               r.Task,
		"rows_fetched":       r.RowsFetched,
		"rows_skipped":       r.RowsSkipped,
		"entities_created":   r.EntitiesCreated,
		"entities_committed": r.EntitiesCommitted,
		"observations":       r.Observations,
		"canonical_dates":    r.CanonicalDates,
		"disputed":           r.Disputed,
		"relations":          r.Relations,
		"blurbs":             r.Blurbs,
		"duration":           r.EndTime.Sub(r.StartTime).Round(time.Millisecond).String(),
	}
}

// Counts reports the result to the run history. Rows fetched count as
// processed; batch-level errors count as failed.
func (r *Result) Counts() schedule.Counts {
	if r == nil {
		return schedule.Counts{}
	}
	return schedule.Counts{
		Processed: r.RowsFetched,
		Skipped:   r.RowsSkipped,
		Failed:    len(r.Errors),
	}
}

// NewProcessor creates a processor writing to st and reading from src
func NewProcessor(st *store.Store, src Source, opts Options) *Processor {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	progress := opts.Progress
	if progress == nil {
		progress = pulse.NopEmitter{}
	}
	log := opts.Logger
	if log == nil {
		log = logger.Logger
	}
	return &Processor{
		store:      st,
		source:     src,
		reconciler: reconcile.New(opts.DisputeThresholdYears),
		opts:       opts,
		progress:   progress,
		logger:     log.Named("ix.wikidata"),
	}
}

func (p *Processor) newResult(task string) *Result {
	return &Result{Task: task, DryRun: p.opts.DryRun, StartTime: time.Now()}
}

func (p *Processor) finish(r *Result, err error) (*Result, error) {
	r.EndTime = time.Now()
	if err != nil {
		r.Errors = append(r.Errors, err.Error())
		p.progress.EmitError(r.Task, err)
	}
	p.progress.EmitComplete(r.Summary())
	logger.IxInfow(p.logger, "Task finished",
		logger.FieldTask, r.Task,
		logger.FieldCount, r.EntitiesCommitted,
		logger.FieldSkipped, r.RowsSkipped,
		logger.FieldDurationMS, r.EndTime.Sub(r.StartTime).Milliseconds())
	return r, err
}

// skipRow logs a per-row error and reports whether it was one
func (p *Processor) skipRow(r *Result, err error) bool {
	if !errors.IsPerRowError(err) {
		return false
	}
	r.RowsSkipped++
	p.logger.Debugw("Skipping row", logger.FieldTask, r.Task, logger.FieldError, err)
	return true
}

// RunTask executes one named task
func (p *Processor) RunTask(ctx context.Context, task string) (*Result, error) {
	switch task {
	case TaskSoftware:
		return p.RunSoftware(ctx)
	case TaskDates:
		return p.RunDates(ctx, nil)
	case TaskGenres:
		return p.RunGenres(ctx)
	case TaskBlurbs:
		return p.RunBlurbs(ctx)
	}
	return nil, errors.NewInvalidRequestError("unknown task %q", task)
}

// TaskFunc adapts the processor to the pulse runner
func (p *Processor) TaskFunc() schedule.TaskFunc {
	return func(ctx context.Context, task string) (schedule.Counts, error) {
		res, err := p.RunTask(ctx, task)
		return res.Counts(), err
	}
}

// Tasks lists every task in execution order
var Tasks = []string{TaskSoftware, TaskDates, TaskGenres, TaskBlurbs}

// Run executes the named tasks in canonical order. A failed task does not
// stop later ones; failures are combined into the returned error.
func (p *Processor) Run(ctx context.Context, tasks []string) ([]*Result, error) {
	want := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		want[t] = true
	}

	var results []*Result
	var errs error
	for _, name := range Tasks {
		if !want[name] {
			continue
		}
		delete(want, name)
		res, err := p.RunTask(ctx, name)
		if res != nil {
			results = append(results, res)
		}
		if err != nil {
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "task %s", name))
			if ctx.Err() != nil {
				return results, errs
			}
		}
	}
	for name := range want {
		errs = errors.CombineErrors(errs, errors.NewInvalidRequestError("unknown task %q", name))
	}
	return results, errs
}
