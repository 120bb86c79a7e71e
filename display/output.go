// Package display renders store contents for the terminal: pterm tables for
// people, indented JSON when --json is set.
package display

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/teranos/softwaremap/errors"
)

// ShouldOutputJSON reports whether the command's local or global --json flag is set
func ShouldOutputJSON(cmd *cobra.Command) bool {
	if cmd == nil {
		return false
	}
	if cmd.Flags().Changed("json") {
		v, _ := cmd.Flags().GetBool("json")
		return v
	}
	v, _ := cmd.Root().PersistentFlags().GetBool("json")
	return v
}

// MarshalJSON marshals v with two-space indentation
func MarshalJSON(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// WriteJSON writes v as JSON followed by a newline
func WriteJSON(w io.Writer, v any) error {
	data, err := MarshalJSON(v)
	if err != nil {
		return errors.Wrap(err, "marshal JSON")
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
