package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/dirsvc/am"
	"github.com/teranos/dirsvc/directory"
	"github.com/teranos/dirsvc/directory/sqlitedir"
	"github.com/teranos/dirsvc/errors"
	"github.com/teranos/dirsvc/logger"
)

// ImportCmd loads fixtures into the sqlite directory
var ImportCmd = &cobra.Command{
	Use:   "import <fixture-file>...",
	Short: "Load channel fixtures into the sqlite directory",
	Long: `Read channels from .json, .yaml or .toml fixture files and store them in
the sqlite directory. Channels already present are replaced by name and keep
their position in query results.

Examples:
  dirsvc import channels.yaml
  dirsvc import --db-path /var/lib/dirsvc/dirsvc.db a.toml b.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

var importDBPath string

func init() {
	ImportCmd.Flags().StringVar(&importDBPath, "db-path", "", "Database path (overrides backend.database_path)")
}

func runImport(cmd *cobra.Command, args []string) error {
	path := importDBPath
	if path == "" {
		cfg, err := am.Load()
		if err != nil {
			return errors.Wrap(err, "failed to load configuration")
		}
		path = cfg.Backend.DatabasePath
	}
	if path == "" {
		return errors.WithHint(errors.New("no database path"), "pass --db-path or set backend.database_path")
	}

	var entities []directory.Entity
	for _, file := range args {
		loaded, err := directory.LoadFixtures(file)
		if err != nil {
			return err
		}
		entities = append(entities, loaded...)
	}

	store, err := sqlitedir.Open(path, logger.ComponentLogger("import"))
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", path)
	}
	defer store.Close()

	if err := store.Put(cmd.Context(), entities...); err != nil {
		return err
	}
	total, err := store.Count(cmd.Context())
	if err != nil {
		return err
	}

	pterm.Success.Printf("Imported %d channels into %s (%d total)\n", len(entities), path, total)
	return nil
}
