package commands

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teranos/softwaremap/db"
	"github.com/teranos/softwaremap/display"
	"github.com/teranos/softwaremap/errors"
	ixwd "github.com/teranos/softwaremap/ixgest/wikidata"
	"github.com/teranos/softwaremap/kb"
	"github.com/teranos/softwaremap/logger"
	"github.com/teranos/softwaremap/pulse/schedule"
	"github.com/teranos/softwaremap/sym"
)

// IxCmd represents the ix command - ingestion from the knowledge base
var IxCmd = &cobra.Command{
	Use:   "ix",
	Short: sym.Prefixed("ix", "Ingest from the knowledge base"),
	Long: sym.IX + ` Ingestion (ix) - pull software metadata from Wikidata.

Each task commits one entity (or one batch of relations) per transaction,
so an interrupted run keeps everything committed before the interrupt.
Runs are recorded in the run history shown by 'swmap pulse runs'.

Examples:
  swmap ix software                       # Discover software entities and classes
  swmap ix dates                          # All date kinds, in priority order
  swmap ix dates --kind publication       # One kind only
  swmap ix dates --dry-run                # Reconcile without writing
  swmap ix genres                         # Video game genres for known entities
  swmap ix blurbs                         # Descriptions for entities without a manual blurb
  swmap ix all                            # Every task in order`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var ixDatesCmd = &cobra.Command{
	Use:   "dates",
	Short: "Fetch and reconcile canonical dates",
	Long: `Fetch date observations for every property kind and reconcile one
canonical date per entity.

Property kinds, highest priority first:
  ` + strings.Join(kb.KindNames(), ", ") + `

The earliest date of the highest-priority kind wins. Dates of the winning
kind further apart than reconcile.dispute_threshold_years are flagged as
disputed (see 'swmap ls --disputed').`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var kinds []kb.PropertyKind
		for _, name := range ixKinds {
			kind, err := kb.ParseKind(name)
			if err != nil {
				return err
			}
			kinds = append(kinds, kind)
		}
		return runIx(cmd, ixwd.TaskDates, func(ctx context.Context, p *ixwd.Processor) (*ixwd.Result, error) {
			return p.RunDates(ctx, kinds)
		})
	},
}

var ixSoftwareCmd = &cobra.Command{
	Use:   "software",
	Short: "Discover software entities and their classes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIx(cmd, ixwd.TaskSoftware, func(ctx context.Context, p *ixwd.Processor) (*ixwd.Result, error) {
			return p.RunSoftware(ctx)
		})
	},
}

var ixGenresCmd = &cobra.Command{
	Use:   "genres",
	Short: "Fetch genres for known video games",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIx(cmd, ixwd.TaskGenres, func(ctx context.Context, p *ixwd.Processor) (*ixwd.Result, error) {
			return p.RunGenres(ctx)
		})
	},
}

var ixBlurbsCmd = &cobra.Command{
	Use:   "blurbs",
	Short: "Fetch descriptions as scraped blurbs",
	Long: `Fetch knowledge-base descriptions for known entities and store them as
scraped blurbs. Manual blurbs are kept unless blurbs.overwrite_manual is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIx(cmd, ixwd.TaskBlurbs, func(ctx context.Context, p *ixwd.Processor) (*ixwd.Result, error) {
			return p.RunBlurbs(ctx)
		})
	},
}

var ixAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Run every task in order",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, st, database, err := openStore()
		if err != nil {
			return err
		}
		defer database.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		p := newProcessor(cfg, st, progressFor(cmd), ixDryRun)
		if ixDryRun {
			results, err := p.Run(ctx, ixwd.Tasks)
			return reportIx(cmd, results, err)
		}

		var results []*ixwd.Result
		exec := func(ctx context.Context, task string) (schedule.Counts, error) {
			res, err := p.RunTask(ctx, task)
			if res != nil {
				results = append(results, res)
			}
			return res.Counts(), err
		}
		runner := schedule.NewRunner(schedule.NewRunStore(database), exec, logger.Logger)
		_, err = runner.RunOnce(ctx, ixwd.Tasks)
		return reportIx(cmd, results, err)
	},
}

var (
	ixDryRun bool
	ixKinds  []string
)

func init() {
	IxCmd.PersistentFlags().BoolVar(&ixDryRun, "dry-run", false, "Fetch and reconcile without writing to the store")
	ixDatesCmd.Flags().StringSliceVar(&ixKinds, "kind", nil, "Property kinds to fetch (default: all)")

	IxCmd.AddCommand(ixSoftwareCmd)
	IxCmd.AddCommand(ixDatesCmd)
	IxCmd.AddCommand(ixGenresCmd)
	IxCmd.AddCommand(ixBlurbsCmd)
	IxCmd.AddCommand(ixAllCmd)
}

type taskRun func(ctx context.Context, p *ixwd.Processor) (*ixwd.Result, error)

// runIx runs one task, recording it in the run history unless dry-running.
// SIGINT/SIGTERM cancel between entities.
func runIx(cmd *cobra.Command, task string, run taskRun) error {
	cfg, st, database, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := newProcessor(cfg, st, progressFor(cmd), ixDryRun)
	if ixDryRun {
		res, err := run(ctx, p)
		return reportIx(cmd, []*ixwd.Result{res}, err)
	}

	var res *ixwd.Result
	exec := func(ctx context.Context, _ string) (schedule.Counts, error) {
		var err error
		res, err = run(ctx, p)
		return res.Counts(), err
	}
	runner := schedule.NewRunner(schedule.NewRunStore(database), exec, logger.Logger)
	_, err = runner.RunOnce(ctx, []string{task})
	return reportIx(cmd, []*ixwd.Result{res}, err)
}

// reportIx prints results as JSON when asked; the CLI emitter already
// printed the human summary.
func reportIx(cmd *cobra.Command, results []*ixwd.Result, err error) error {
	if display.ShouldOutputJSON(cmd) {
		var out []*ixwd.Result
		for _, r := range results {
			if r != nil {
				out = append(out, r)
			}
		}
		if werr := display.WriteJSON(cmd.OutOrStdout(), out); werr != nil {
			return errors.CombineErrors(db.WithBusyHint(err), werr)
		}
	}
	return db.WithBusyHint(err)
}
