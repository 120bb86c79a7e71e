package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/softwaremap/curation"
	"github.com/teranos/softwaremap/display"
	"github.com/teranos/softwaremap/kb"
	"github.com/teranos/softwaremap/sym"
)

// BlurbCmd manages descriptive blurbs
var BlurbCmd = &cobra.Command{
	Use:   "blurb",
	Short: sym.Prefixed("blurb", "Manage descriptive blurbs"),
	Long: sym.Blurb + ` blurb: Manage descriptive blurbs

Manual blurbs are written by editors. Scraped blurbs come from
'swmap ix blurbs' and never replace a manual one unless
blurbs.overwrite_manual is set.

Seed file format for 'blurb import':

  [[entity]]
  id = "Q7397"
  enabled = true
  blurb = "Programs and data that run on a computer."

Omitted fields are left alone; an empty blurb clears it.

Examples:
  swmap blurb set Q42 "The first widely played video game."
  swmap blurb clear Q42
  swmap blurb import curation.toml`,
}

var blurbSetCmd = &cobra.Command{
	Use:   "set <id> <text>",
	Short: "Set a manual blurb",
	Args:  cobra.ExactArgs(2),
	RunE:  runBlurbSet,
}

var blurbClearCmd = &cobra.Command{
	Use:   "clear <id>",
	Short: "Remove an entity's blurb",
	Args:  cobra.ExactArgs(1),
	RunE:  runBlurbClear,
}

var blurbImportCmd = &cobra.Command{
	Use:   "import <file.toml>",
	Short: "Import curation flags and manual blurbs from a seed file",
	Args:  cobra.ExactArgs(1),
	RunE:  runBlurbImport,
}

func init() {
	BlurbCmd.AddCommand(blurbSetCmd)
	BlurbCmd.AddCommand(blurbClearCmd)
	BlurbCmd.AddCommand(blurbImportCmd)
}

func runBlurbSet(cmd *cobra.Command, args []string) error {
	ids, err := entityIDs(args[:1])
	if err != nil {
		return err
	}
	_, st, database, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	if err := st.SetBlurb(cmd.Context(), ids[0], args[1], kb.BlurbManual); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s blurb set\n", sym.Blurb, ids[0])
	return nil
}

func runBlurbClear(cmd *cobra.Command, args []string) error {
	ids, err := entityIDs(args)
	if err != nil {
		return err
	}
	_, st, database, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	if err := st.ClearBlurb(cmd.Context(), ids[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s blurb cleared\n", sym.Blurb, ids[0])
	return nil
}

func runBlurbImport(cmd *cobra.Command, args []string) error {
	file, err := curation.ParseFile(args[0])
	if err != nil {
		return err
	}

	_, st, database, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	res, err := curation.Apply(cmd.Context(), st, file)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if display.ShouldOutputJSON(cmd) {
		return display.WriteJSON(out, res)
	}
	fmt.Fprintf(out, "%s Applied %d of %d entries from %s\n", sym.Blurb, res.Applied, len(file.Entities), args[0])
	for _, skipped := range res.Skipped {
		fmt.Fprintf(out, "  skipped #%d %s: %s\n", skipped.Index, skipped.ID, skipped.Cause)
	}
	for _, key := range res.Unknown {
		fmt.Fprintf(out, "  unknown key: %s\n", key)
	}
	return nil
}
