package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/softwaremap/am"
	"github.com/teranos/softwaremap/display"
	"github.com/teranos/softwaremap/errors"
	"github.com/teranos/softwaremap/ixgest"
	"github.com/teranos/softwaremap/logger"
	"github.com/teranos/softwaremap/pulse/schedule"
	"github.com/teranos/softwaremap/store"
	"github.com/teranos/softwaremap/sym"
)

// PulseCmd represents the pulse command - periodic enrichment runs
var PulseCmd = &cobra.Command{
	Use:   "pulse",
	Short: sym.Prefixed("pulse", "Run the enrichment tasks on an interval"),
	Long: sym.Pulse + ` Pulse - periodic enrichment runs.

The daemon runs pulse.tasks every pulse.interval_seconds and records each
task as a run. Editing the project am.toml while it runs changes the
interval and task list from the next cycle.

Examples:
  swmap pulse start              # Start daemon in foreground
  swmap pulse start --now        # Run a cycle immediately, then on the interval
  swmap pulse start --once       # Run one cycle and exit (for cron)
  swmap pulse runs --task dates  # Recent runs of one task
  swmap pulse status             # Schedule and last run per task`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// PulseStartCmd starts the Pulse daemon
var PulseStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the Pulse daemon",
	RunE:  runPulseStart,
}

var pulseRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent runs",
	RunE:  runPulseRuns,
}

var pulseStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the schedule and the last run of each task",
	RunE:  runPulseStatus,
}

var (
	pulseNow  bool
	pulseOnce bool
	runsTask  string
	runsLimit int
)

func init() {
	PulseStartCmd.Flags().BoolVar(&pulseNow, "now", false, "Run a cycle immediately instead of waiting one interval")
	PulseStartCmd.Flags().BoolVar(&pulseOnce, "once", false, "Run one cycle and exit")
	pulseRunsCmd.Flags().StringVar(&runsTask, "task", "", "Only runs of this task")
	pulseRunsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Number of runs to show")

	PulseCmd.AddCommand(PulseStartCmd)
	PulseCmd.AddCommand(pulseRunsCmd)
	PulseCmd.AddCommand(pulseStatusCmd)
}

func runPulseStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	log := logger.Logger.Named("pulse")
	runs := schedule.NewRunStore(database)

	// A run still marked running was interrupted by a crash or kill
	if n, err := runs.MarkAbandoned(cmd.Context()); err != nil {
		return err
	} else if n > 0 {
		log.Warnw("Marked abandoned runs as failed", logger.FieldCount, n)
	}

	p := newProcessor(cfg, store.New(database), ixgest.NewLogEmitter(log), false)
	runner := schedule.NewRunner(runs, p.TaskFunc(), log)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if pulseOnce {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		recorded, err := runner.RunOnce(ctx, cfg.GetPulseTasks())
		if printErr := printRuns(cmd, recorded); printErr != nil {
			return errors.CombineErrors(err, printErr)
		}
		return err
	}

	interval := cfg.GetPulseInterval()
	if interval <= 0 {
		return errors.WithHint(
			errors.New("pulse.interval_seconds is 0, periodic runs are disabled"),
			"use `swmap pulse start --once` or `swmap ix all` for a manual run",
		)
	}

	ticker := schedule.NewTicker(ctx, runner, schedule.TickerConfig{
		Interval:   interval,
		Tasks:      cfg.GetPulseTasks(),
		RunOnStart: pulseNow,
	}, log)
	ticker.Start()

	if path := am.FindProjectConfig(); path != "" {
		watcher, err := am.NewConfigWatcher(path, cfg)
		if err != nil {
			log.Warnw("Config hot reload disabled", logger.FieldError, err)
		} else {
			watcher.OnReload(func(c *am.Config) error {
				ticker.SetInterval(c.GetPulseInterval())
				ticker.SetTasks(c.GetPulseTasks())
				return nil
			})
			watcher.Start()
			defer watcher.Stop()
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s Pulse daemon started\n", sym.PulseOpen)
	fmt.Fprintf(out, "  Interval: %v\n", interval)
	fmt.Fprintf(out, "  Tasks:    %v\n", cfg.GetPulseTasks())
	fmt.Fprintf(out, "  Database: %s\n", cfg.GetDatabasePath())
	fmt.Fprintf(out, "\n%s Press Ctrl+C to stop (the current entity is finished first)\n\n", sym.Pulse)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	select {
	case <-sigChan:
	case <-cmd.Context().Done():
	}

	fmt.Fprintf(out, "\n%s Stopping...\n", sym.Pulse)
	ticker.Stop()
	fmt.Fprintf(out, "%s Pulse daemon stopped\n", sym.PulseClose)
	return nil
}

func runPulseRuns(cmd *cobra.Command, args []string) error {
	if runsLimit < 1 {
		return errors.NewInvalidRequestError("--limit must be positive, got %d", runsLimit)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	recorded, err := schedule.NewRunStore(database).ListRuns(cmd.Context(), runsTask, runsLimit)
	if err != nil {
		return err
	}
	return printRuns(cmd, recorded)
}

func printRuns(cmd *cobra.Command, runs []*schedule.Run) error {
	out := cmd.OutOrStdout()
	if display.ShouldOutputJSON(cmd) {
		return display.WriteJSON(out, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintf(out, "%s No runs recorded\n", sym.Pulse)
		return nil
	}

	data := pterm.TableData{{"Started", "Task", "Status", "Duration", "Processed", "Skipped", "Failed", "Error"}}
	for _, r := range runs {
		duration := "-"
		if r.FinishedAt != nil {
			duration = r.Duration().Round(time.Millisecond).String()
		}
		errMsg := ""
		if r.Error != nil {
			errMsg = display.Truncate(*r.Error, 40)
		}
		data = append(data, []string{
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Task,
			r.Status,
			duration,
			fmt.Sprint(r.Processed),
			fmt.Sprint(r.Skipped),
			fmt.Sprint(r.Failed),
			errMsg,
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithWriter(out).WithData(data).Render()
}

// taskStatus is one row of pulse status
type taskStatus struct {
	Task    string        `json:"task"`
	LastRun *schedule.Run `json:"last_run,omitempty"`
}

func runPulseStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	runs := schedule.NewRunStore(database)
	var statuses []taskStatus
	for _, task := range cfg.GetPulseTasks() {
		last, err := runs.LastRun(cmd.Context(), task)
		if err != nil {
			return err
		}
		statuses = append(statuses, taskStatus{Task: task, LastRun: last})
	}

	out := cmd.OutOrStdout()
	if display.ShouldOutputJSON(cmd) {
		return display.WriteJSON(out, map[string]interface{}{
			"interval_seconds": cfg.Pulse.IntervalSeconds,
			"tasks":            statuses,
		})
	}

	interval := "manual runs only"
	if d := cfg.GetPulseInterval(); d > 0 {
		interval = d.String()
	}
	fmt.Fprintf(out, "%s Interval: %s\n\n", sym.Pulse, interval)

	data := pterm.TableData{{"Task", "Last run", "Status", "Processed"}}
	for _, s := range statuses {
		if s.LastRun == nil {
			data = append(data, []string{s.Task, "never", "-", "-"})
			continue
		}
		data = append(data, []string{
			s.Task,
			s.LastRun.StartedAt.Local().Format("2006-01-02 15:04:05"),
			s.LastRun.Status,
			fmt.Sprint(s.LastRun.Processed),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithWriter(out).WithData(data).Render()
}
