package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/teranos/softwaremap/am"
	"github.com/teranos/softwaremap/display"
	"github.com/teranos/softwaremap/errors"
	"github.com/teranos/softwaremap/sym"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: sym.Prefixed("am", "Manage softwaremap configuration"),
	Long: sym.AM + ` am: Manage softwaremap configuration ("I am")

Configuration sources (later overrides earlier):
1. Default values
2. System config (/etc/softwaremap/am.toml)
3. User config (~/.softwaremap/am.toml)
4. Project config (./am.toml, searched upward)
5. Environment variables (SWMAP_* prefix, e.g. SWMAP_WIKIDATA_CONTACT)

Examples:
  swmap am show                         # Show current configuration
  swmap am show --format json           # Show configuration as JSON
  swmap am get wikidata.endpoint        # Get one value
  swmap am set pulse.interval_seconds 3600
  swmap am where                        # Show which file set each value
  swmap am init                         # Write a default ./am.toml`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runAmShow,
}

var amGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long:  "Get a specific configuration value using dot notation (e.g., database.path, wikidata.batch_size)",
	Args:  cobra.ExactArgs(1),
	RunE:  runAmGet,
}

var amSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value in a TOML file",
	Long: `Set a configuration value using dot notation.

The value is written to the project am.toml (or --file). Booleans,
integers and comma-separated lists are typed accordingly. The previous
file is kept as a .back1 backup, and the edit is refused if the result
would not validate.`,
	Args: cobra.ExactArgs(2),
	RunE: runAmSet,
}

var amValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	RunE:  runAmValidate,
}

var amWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Show where configuration is loaded from",
	RunE:  runAmWhere,
}

var amInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default am.toml in the current directory",
	RunE:  runAmInit,
}

var (
	configFormat string
	amSetFile    string
	amInitForce  bool
)

func init() {
	amShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")
	amSetCmd.Flags().StringVar(&amSetFile, "file", "", "Config file to edit (default: project am.toml)")
	amInitCmd.Flags().BoolVar(&amInitForce, "force", false, "Overwrite an existing am.toml (a backup is kept)")

	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amGetCmd)
	AmCmd.AddCommand(amSetCmd)
	AmCmd.AddCommand(amValidateCmd)
	AmCmd.AddCommand(amWhereCmd)
	AmCmd.AddCommand(amInitCmd)
}

func runAmShow(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	format := configFormat
	if display.ShouldOutputJSON(cmd) {
		format = "json"
	}

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config to JSON: %w", err)
		}
		fmt.Fprintln(out, string(data))

	case "yaml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config to YAML: %w", err)
		}
		fmt.Fprintf(out, "# softwaremap configuration\n%s", string(data))

	case "toml":
		data, err := toml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config to TOML: %w", err)
		}
		fmt.Fprintf(out, "# softwaremap configuration\n%s", string(data))

	default:
		return fmt.Errorf("unsupported format: %s (supported: toml, json, yaml)", format)
	}

	return nil
}

func runAmGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	v := am.GetViper()
	if !v.IsSet(key) {
		return fmt.Errorf("configuration key %q not found", key)
	}

	fmt.Fprintln(cmd.OutOrStdout(), am.Get(key))
	return nil
}

func runAmSet(cmd *cobra.Command, args []string) error {
	path := amSetFile
	if path == "" {
		path = am.FindProjectConfig()
	}
	if path == "" {
		path = am.ProjectConfigName
	}

	if err := am.SetValue(path, args[0], am.ParseValue(args[1])); err != nil {
		return err
	}
	am.Reset()

	fmt.Fprintf(cmd.OutOrStdout(), "%s %s set in %s\n", sym.AM, args[0], path)
	return nil
}

func runAmValidate(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration is valid")
	return nil
}

func runAmWhere(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	sources := am.Sources()

	if display.ShouldOutputJSON(cmd) {
		return display.WriteJSON(out, sources)
	}

	fmt.Fprintln(out, "Configuration cascade (later overrides earlier):")
	fmt.Fprintf(out, "  [%s]  built-in defaults\n", am.SourceDefault)
	for _, path := range am.ConfigPaths() {
		state := "missing"
		if _, err := os.Stat(path); err == nil {
			state = "found"
		}
		fmt.Fprintf(out, "  [file]     %s (%s)\n", path, state)
	}
	fmt.Fprintf(out, "  [%s]      SWMAP_* environment variables\n", am.SourceEnv)
	fmt.Fprintln(out)

	bySource := make(map[string][]am.KeySource)
	var order []string
	for _, s := range sources {
		if _, ok := bySource[s.Source]; !ok {
			order = append(order, s.Source)
		}
		bySource[s.Source] = append(bySource[s.Source], s)
	}
	sort.SliceStable(order, func(i, j int) bool {
		return sourceRank(order[i]) < sourceRank(order[j])
	})

	fmt.Fprintln(out, "Active configuration:")
	for _, source := range order {
		settings := bySource[source]
		fmt.Fprintf(out, "\n%s: %d settings\n", source, len(settings))
		for _, s := range settings {
			fmt.Fprintf(out, "  %s = %s\n", s.Key, display.Truncate(fmt.Sprintf("%v", s.Value), 50))
		}
	}
	return nil
}

// sourceRank orders defaults first and environment last, files in between
func sourceRank(source string) int {
	switch source {
	case am.SourceDefault:
		return 0
	case am.SourceEnv:
		return 2
	}
	return 1
}

func runAmInit(cmd *cobra.Command, args []string) error {
	path := am.ProjectConfigName
	if _, err := os.Stat(path); err == nil && !amInitForce {
		return errors.WithHint(
			errors.Newf("%s already exists", path),
			"use --force to overwrite it; the current file is kept as a backup",
		)
	}

	v := viper.New()
	am.SetDefaults(v)
	cfg, err := am.LoadWithViper(v)
	if err != nil {
		return err
	}
	if err := am.WriteConfig(path, cfg); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s Wrote %s\n", sym.AM, path)
	return nil
}
