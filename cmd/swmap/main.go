package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/softwaremap/cmd/swmap/commands"
	"github.com/teranos/softwaremap/errors"
	"github.com/teranos/softwaremap/logger"
)

var rootCmd = &cobra.Command{
	Use:   "swmap",
	Short: "softwaremap - History-of-Software metadata enrichment",
	Long: `softwaremap - History-of-Software metadata enrichment.

swmap pulls software entities, dates, genres and descriptions from
Wikidata, reconciles one canonical date per entity, and keeps the
editorial annotations (curation flags, blurbs) the timeline renders from.

Available commands:
  am      - Manage configuration ("I am")
  db      - Migrate and inspect the annotation store
  ix      - Ingest from the knowledge base
  curate  - Include or exclude entities
  blurb   - Manage descriptive blurbs
  show    - Show one entity
  ls      - List entities
  export  - Export annotations as JSON or YAML
  pulse   - Run the enrichment tasks on an interval
  server  - Serve annotations over a read-only HTTP API

Examples:
  swmap am show             # Show current configuration
  swmap ix dates            # Fetch and reconcile dates
  swmap ls --disputed       # Entities needing a manual date decision
  swmap pulse start         # Run all tasks daily`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		logJSON, _ := cmd.Flags().GetBool("log-json")
		if err := logger.Initialize(logJSON, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().Bool("json", false, "Output results as JSON")
	rootCmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON (also SWMAP_LOG_FORMAT=json)")

	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.IxCmd)
	rootCmd.AddCommand(commands.CurateCmd)
	rootCmd.AddCommand(commands.BlurbCmd)
	rootCmd.AddCommand(commands.ShowCmd)
	rootCmd.AddCommand(commands.LsCmd)
	rootCmd.AddCommand(commands.ExportCmd)
	rootCmd.AddCommand(commands.PulseCmd)
	rootCmd.AddCommand(commands.ServerCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if hint := errors.FlattenHints(err); hint != "" {
			fmt.Fprintf(os.Stderr, "hint: %s\n", hint)
		}
		os.Exit(1)
	}
}
