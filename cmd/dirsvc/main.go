package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/dirsvc/am"
	"github.com/teranos/dirsvc/cmd/dirsvc/commands"
	"github.com/teranos/dirsvc/errors"
	"github.com/teranos/dirsvc/logger"
)

var rootCmd = &cobra.Command{
	Use:   "dirsvc",
	Short: "dirsvc - directory query tabulation service",
	Long: `dirsvc - answers directory queries with column-oriented tables.

A query selects channels from a directory backend (memory, sqlite or a
ChannelFinder service). The matches are filtered, sorted and returned as a
versioned table envelope over gRPC.

Available commands:
  am      - Manage dirsvc configuration
  serve   - Start the gRPC directory service
  query   - Query a running service and print the table
  import  - Load channel fixtures into the sqlite directory
  version - Show build information

Examples:
  dirsvc serve                                   # Start the service
  dirsvc query 'SR:*' --show cell,archived       # Query a running service
  dirsvc import channels.yaml                    # Seed the sqlite directory
  dirsvc am set backend.kind memory              # Change configuration`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A broken config must not stop 'am' from reporting on it
		jsonOutput, level := false, ""
		if cfg, err := am.Load(); err == nil {
			jsonOutput, level = cfg.Log.JSON, cfg.Log.Level
		}

		verbosity, _ := cmd.Flags().GetCount("verbose")
		if err := logger.Initialize(jsonOutput, logger.LevelForVerbosity(level, verbosity)); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")

	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.ImportCmd)
	rootCmd.AddCommand(commands.QueryCmd)
	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	err := rootCmd.Execute()
	if err != nil && !errors.Is(err, commands.ErrNoData) {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(commands.ExitCode(err))
}
