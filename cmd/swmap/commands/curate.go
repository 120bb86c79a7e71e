package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/softwaremap/errors"
	"github.com/teranos/softwaremap/kb"
	"github.com/teranos/softwaremap/store"
	"github.com/teranos/softwaremap/sym"
)

// CurateCmd toggles whether entities appear in the rendered history
var CurateCmd = &cobra.Command{
	Use:   "curate",
	Short: sym.Prefixed("curate", "Include or exclude entities"),
	Long: sym.Curate + ` curate: Include or exclude entities from the rendered history

Entities are enabled by default. Setting a flag to its current value is a
no-op.

Examples:
  swmap curate disable Q42 Q43     # Hide two entities
  swmap curate enable wd:Q42       # Show one again`,
}

var curateEnableCmd = &cobra.Command{
	Use:   "enable <id>...",
	Short: "Include entities in the rendered history",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCurate(cmd, args, true)
	},
}

var curateDisableCmd = &cobra.Command{
	Use:   "disable <id>...",
	Short: "Exclude entities from the rendered history",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCurate(cmd, args, false)
	},
}

func init() {
	CurateCmd.AddCommand(curateEnableCmd)
	CurateCmd.AddCommand(curateDisableCmd)
}

func runCurate(cmd *cobra.Command, args []string, enabled bool) error {
	ids, err := entityIDs(args)
	if err != nil {
		return err
	}

	_, st, database, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	// All or nothing across the listed IDs
	err = st.InTx(cmd.Context(), func(tx *store.Tx) error {
		for _, id := range ids {
			if err := tx.SetCuration(cmd.Context(), id, enabled); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	state := "disabled"
	if enabled {
		state = "enabled"
	}
	for _, id := range ids {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", sym.Curate, id, state)
	}
	return nil
}

// entityIDs normalises command-line entity references
func entityIDs(args []string) ([]string, error) {
	ids := make([]string, 0, len(args))
	for _, a := range args {
		id, ok := kb.NormalizeEntityID(a)
		if !ok {
			return nil, errors.WithHint(
				errors.NewInvalidRequestError("not an entity ID: %q", a),
				"use a Wikidata item ID such as Q7397",
			)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
