package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/softwaremap/db"
	"github.com/teranos/softwaremap/display"
	"github.com/teranos/softwaremap/store"
	"github.com/teranos/softwaremap/sym"
)

// DbCmd represents the db (database) command
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: sym.DB + " Manage the annotation store",
	Long: sym.DB + ` db: Manage the annotation store

Examples:
  swmap db migrate      # Apply pending migrations and list them
  swmap db stats        # Show entity and annotation counts`,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending migrations",
	RunE:  runDbMigrate,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show annotation store statistics",
	RunE:  runDbStats,
}

func init() {
	DbCmd.AddCommand(dbMigrateCmd)
	DbCmd.AddCommand(dbStatsCmd)
}

func runDbMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	status, err := db.Status(database)
	if err != nil {
		return err
	}
	if display.ShouldOutputJSON(cmd) {
		return display.WriteJSON(cmd.OutOrStdout(), status)
	}

	data := pterm.TableData{{"Version", "Migration", "Applied"}}
	for _, s := range status {
		applied := "no"
		if s.Applied {
			applied = "yes"
		}
		data = append(data, []string{s.Version, s.Filename, applied})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", sym.DB, cfg.GetDatabasePath())
	return pterm.DefaultTable.WithHasHeader().WithWriter(cmd.OutOrStdout()).WithData(data).Render()
}

func runDbStats(cmd *cobra.Command, args []string) error {
	cfg, st, database, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	stats, err := st.Stats(cmd.Context())
	if err != nil {
		return err
	}
	return printStats(cmd, cfg.GetDatabasePath(), stats)
}

func printStats(cmd *cobra.Command, path string, stats *store.Stats) error {
	out := cmd.OutOrStdout()
	if display.ShouldOutputJSON(cmd) {
		return display.WriteJSON(out, stats)
	}
	fmt.Fprintf(out, "%s Annotation store: %s\n\n", sym.DB, path)
	return display.RenderStats(out, stats)
}
