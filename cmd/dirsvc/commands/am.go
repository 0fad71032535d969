package commands

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/dirsvc/am"
	"github.com/teranos/dirsvc/display"
	"github.com/teranos/dirsvc/errors"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: "Manage dirsvc configuration",
	Long: `am - Manage dirsvc configuration

Configuration sources (in order of precedence):
1. Command line flags
2. Environment variables (DIRSVC_* prefix)
3. Project config (./dirsvc.toml, searched up the directory tree)
4. User config (~/.dirsvc/dirsvc.toml)
5. System config (/etc/dirsvc/dirsvc.toml)
6. Default values

Examples:
  dirsvc am show                       # Show current configuration
  dirsvc am show --format json         # Show configuration in JSON format
  dirsvc am get backend.kind           # Get specific config value
  dirsvc am set table.default_version 1
  dirsvc am where                      # Show where each value comes from
  dirsvc am validate                   # Validate current configuration`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runAmShow,
}

var amGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long:  "Get a specific configuration value using dot notation (e.g., backend.kind, server.port)",
	Args:  cobra.ExactArgs(1),
	RunE:  runAmGet,
}

var amSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value in the user config",
	Long: `Write a value into ~/.dirsvc/dirsvc.toml (or --file). The change is
validated first; the previous file is kept as .back1 (up to three backups).`,
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

var (
	configFormat string
	setFile      string
)

func init() {
	amShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")
	amSetCmd.Flags().StringVar(&setFile, "file", "", "Config file to write (default ~/.dirsvc/dirsvc.toml)")

	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amGetCmd)
	AmCmd.AddCommand(amSetCmd)
	AmCmd.AddCommand(amValidateCmd)
	AmCmd.AddCommand(amWhereCmd)
}

func runAmShow(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	out := cmd.OutOrStdout()
	switch configFormat {
	case "json":
		return display.OutputJSON(out, cfg)

	case "yaml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config to YAML: %w", err)
		}
		fmt.Fprintf(out, "# dirsvc configuration\n%s", string(data))

	case "toml":
		data, err := toml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config to TOML: %w", err)
		}
		fmt.Fprintf(out, "# dirsvc configuration\n%s", string(data))

	default:
		return fmt.Errorf("unsupported format: %s (supported: toml, json, yaml)", configFormat)
	}
	return nil
}

func runAmGet(cmd *cobra.Command, args []string) error {
	key := args[0]
	if !am.GetViper().IsSet(key) {
		return fmt.Errorf("configuration key %q not found", key)
	}
	fmt.Fprintln(cmd.OutOrStdout(), am.Get(key))
	return nil
}

func runAmSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	path := setFile
	if path == "" {
		var err error
		if path, err = am.Set(key, value); err != nil {
			return err
		}
	} else if err := am.SetInFile(path, key, value); err != nil {
		return err
	}

	pterm.Success.Printf("%s = %s written to %s\n", key, value, path)
	return nil
}

func runAmValidate(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(); err != nil {
		return err
	}
	pterm.Success.Println("Configuration is valid")
	return nil
}

func runAmWhere(cmd *cobra.Command, args []string) error {
	intro := am.GetConfigIntrospection()

	fmt.Fprintln(cmd.OutOrStdout(), "Configuration cascade (later overrides earlier):")
	fmt.Fprintln(cmd.OutOrStdout(), "  1. [DEFAULT]  Built-in defaults")
	fmt.Fprintln(cmd.OutOrStdout(), "  2. [SYSTEM]   "+am.SystemConfigPath)
	fmt.Fprintln(cmd.OutOrStdout(), "  3. [USER]     ~/.dirsvc/"+am.ConfigFileName)
	fmt.Fprintln(cmd.OutOrStdout(), "  4. [PROJECT]  ./"+am.ConfigFileName+" (searches up directories)")
	fmt.Fprintln(cmd.OutOrStdout(), "  5. [ENV]      "+am.EnvPrefix+"_* environment variables")
	fmt.Fprintln(cmd.OutOrStdout())

	if intro.ConfigFile != "" {
		pterm.Info.Printf("Active config file: %s\n", intro.ConfigFile)
	} else {
		pterm.Info.Println("No config file found, using defaults and environment")
	}

	data := pterm.TableData{{"Key", "Value", "Source", "From"}}
	for _, s := range intro.Settings {
		data = append(data, []string{s.Key, fmt.Sprint(s.Value), string(s.Source), s.SourcePath})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return errors.Wrap(err, "failed to render settings")
	}
	return nil
}
