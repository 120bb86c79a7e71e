package commands

import (
	"database/sql"
	"time"

	"github.com/spf13/cobra"

	"github.com/teranos/softwaremap/am"
	"github.com/teranos/softwaremap/db"
	"github.com/teranos/softwaremap/display"
	"github.com/teranos/softwaremap/errors"
	"github.com/teranos/softwaremap/ixgest"
	ixwd "github.com/teranos/softwaremap/ixgest/wikidata"
	kbwd "github.com/teranos/softwaremap/kb/wikidata"
	"github.com/teranos/softwaremap/logger"
	"github.com/teranos/softwaremap/pulse"
	"github.com/teranos/softwaremap/store"
	"github.com/teranos/softwaremap/version"
)

// loadConfig loads and validates the configuration cascade
func loadConfig() (*am.Config, error) {
	cfg, err := am.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.WithHint(
			errors.Wrap(err, "invalid configuration"),
			"run `swmap am where` to see which file set the value",
		)
	}
	return cfg, nil
}

// openDatabase opens and migrates the database at the configured path
func openDatabase(cfg *am.Config) (*sql.DB, error) {
	path := cfg.GetDatabasePath()
	database, err := db.OpenWithMigrations(path, logger.Logger)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database at %s", path)
	}
	return database, nil
}

// openStore loads the config and opens the annotation store. Callers close
// the returned database.
func openStore() (*am.Config, *store.Store, *sql.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	database, err := openDatabase(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, store.New(database), database, nil
}

// newWikidataClient builds the query executor from the wikidata section
func newWikidataClient(cfg *am.Config) *kbwd.Client {
	w := cfg.Wikidata
	return kbwd.NewClient(kbwd.Config{
		Endpoint:          w.Endpoint,
		Language:          w.Language,
		UserAgent:         version.Get().UserAgent(w.Contact),
		Timeout:           time.Duration(w.TimeoutSeconds) * time.Second,
		RequestsPerMinute: w.RequestsPerMinute,
		MaxAttempts:       w.MaxAttempts,
		InitialBackoff:    time.Duration(w.InitialBackoffMS) * time.Millisecond,
		MaxBackoff:        time.Duration(w.MaxBackoffSeconds) * time.Second,
		Logger:            logger.Logger.Named("wikidata"),
	})
}

// newProcessor wires the enrichment pipeline to st
func newProcessor(cfg *am.Config, st *store.Store, progress pulse.ProgressEmitter, dryRun bool) *ixwd.Processor {
	return ixwd.NewProcessor(st, newWikidataClient(cfg), ixwd.Options{
		DryRun:                dryRun,
		BatchSize:             cfg.Wikidata.BatchSize,
		OverwriteManual:       cfg.Blurbs.OverwriteManual,
		DisputeThresholdYears: cfg.Reconcile.DisputeThresholdYears,
		Progress:              progress,
		Logger:                logger.Logger,
	})
}

// progressFor picks the emitter matching the command's output mode
func progressFor(cmd *cobra.Command) pulse.ProgressEmitter {
	if display.ShouldOutputJSON(cmd) {
		return ixgest.NewJSONEmitter(cmd.OutOrStdout())
	}
	return ixgest.NewCLIEmitter(verbosity(cmd))
}

func verbosity(cmd *cobra.Command) int {
	v, _ := cmd.Flags().GetCount("verbose")
	return v
}
