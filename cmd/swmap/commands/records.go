package commands

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/teranos/softwaremap/display"
	"github.com/teranos/softwaremap/errors"
	"github.com/teranos/softwaremap/export"
	"github.com/teranos/softwaremap/store"
)

// ShowCmd prints one entity with its annotation and taxonomy
var ShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one entity",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

// LsCmd lists entities
var LsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List entities",
	Long: `List entities with their canonical date, curation flag and blurb.

Examples:
  swmap ls                 # Enabled entities
  swmap ls --all           # Include disabled entities
  swmap ls --disputed      # Entities whose canonical date is disputed`,
	Args: cobra.NoArgs,
	RunE: runLs,
}

// ExportCmd writes the annotation records to a file or stdout
var ExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export annotations as JSON or YAML",
	Long: `Export every entity record for the timeline renderer.

Examples:
  swmap export                          # JSON to stdout, enabled entities
  swmap export --format yaml -o out.yml
  swmap export --all                    # Include disabled entities`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

var (
	lsAll        bool
	lsDisputed   bool
	exportFormat string
	exportOutput string
	exportAll    bool
)

func init() {
	LsCmd.Flags().BoolVar(&lsAll, "all", false, "Include disabled entities")
	LsCmd.Flags().BoolVar(&lsDisputed, "disputed", false, "Only entities with a disputed canonical date")

	ExportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "Output format: json, yaml")
	ExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")
	ExportCmd.Flags().BoolVar(&exportAll, "all", false, "Include disabled entities")
}

func runShow(cmd *cobra.Command, args []string) error {
	ids, err := entityIDs(args)
	if err != nil {
		return err
	}
	_, st, database, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	rec, err := st.GetRecord(cmd.Context(), ids[0])
	if err != nil {
		return err
	}
	if display.ShouldOutputJSON(cmd) {
		return display.WriteJSON(cmd.OutOrStdout(), export.FromStore([]store.Record{*rec})[0])
	}
	return display.RenderRecord(cmd.OutOrStdout(), rec)
}

func runLs(cmd *cobra.Command, args []string) error {
	_, st, database, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	records, err := st.List(cmd.Context(), store.ListOptions{
		IncludeDisabled: lsAll,
		DisputedOnly:    lsDisputed,
	})
	if err != nil {
		return err
	}
	if display.ShouldOutputJSON(cmd) {
		return display.WriteJSON(cmd.OutOrStdout(), export.FromStore(records))
	}
	return display.RenderRecords(cmd.OutOrStdout(), records)
}

func runExport(cmd *cobra.Command, args []string) (err error) {
	format, err := export.ParseFormat(exportFormat)
	if err != nil {
		return err
	}

	_, st, database, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	records, err := st.List(cmd.Context(), store.ListOptions{IncludeDisabled: exportAll, WithTaxonomy: true})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return errors.Wrapf(err, "failed to create %s", exportOutput)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = errors.Wrapf(cerr, "failed to close %s", exportOutput)
			}
		}()
		w = f
	}

	return export.Write(w, format, records, time.Now().UTC())
}
