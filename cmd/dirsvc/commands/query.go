package commands

import (
	"context"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/dirsvc/display"
	"github.com/teranos/dirsvc/envelope"
	"github.com/teranos/dirsvc/errors"
	"github.com/teranos/dirsvc/logger"
	"github.com/teranos/dirsvc/rpc"
	"github.com/teranos/dirsvc/service"
)

// QueryCmd queries a running directory service
var QueryCmd = &cobra.Command{
	Use:   "query <query>",
	Short: "Query a running directory service",
	Long: `Send a directory query to a running dirsvc server and print the table.

A query is whitespace separated terms: name globs (OR-ed), tag=<glob> and
<property>=<glob> (AND-ed). Quote terms containing spaces.

Examples:
  dirsvc query 'SR:*'
  dirsvc query 'SR:* tag=archived' --show cell,archived --sort cell
  dirsvc query '*' --owner --version 1 --json

Exit status is 2 for a reply that is not a table, 3 when no channel
matched and 4 when the query argument is missing.`,
	Args: queryArgs,
	RunE: runQuery,
}

var (
	queryAddr       string
	queryShow       string
	querySort       string
	queryOwner      bool
	queryVersion    string
	queryTimeout    time.Duration
	queryConstraint string
)

func init() {
	QueryCmd.Flags().StringVar(&queryAddr, "addr", "", "Server address host:port (default from server.address and server.port)")
	QueryCmd.Flags().StringVar(&queryShow, "show", "", "Comma separated properties and tags to include (@owner for the owner column)")
	QueryCmd.Flags().StringVar(&querySort, "sort", "", "Comma separated property keys to sort by")
	QueryCmd.Flags().BoolVar(&queryOwner, "owner", false, "Request the @owner column")
	QueryCmd.Flags().StringVar(&queryVersion, "version", "", "Envelope version (1 or 2, default: server default)")
	QueryCmd.Flags().BoolP("json", "j", false, "Print the raw envelope as JSON")
	QueryCmd.Flags().DurationVar(&queryTimeout, "timeout", 30*time.Second, "Request timeout")
	QueryCmd.Flags().StringVar(&queryConstraint, "server-version", "", "Semver constraint the server must satisfy, e.g. '>= 1.0'")
}

func queryArgs(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return errors.NewMissingArgumentError("query")
	}
	return cobra.ExactArgs(1)(cmd, args)
}

func runQuery(cmd *cobra.Command, args []string) error {
	addr := queryAddr
	if addr == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		addr = cfg.Server.ListenAddress()
	}

	client, err := rpc.Dial(addr, rpc.ClientOptions{
		ServerConstraint: queryConstraint,
		Logger:           logger.ComponentLogger("client"),
	})
	if err != nil {
		return err
	}
	defer client.Close()

	req := service.Request{
		Query:   args[0],
		Show:    queryShow,
		ShowSet: cmd.Flags().Changed("show"),
		Sort:    querySort,
		Owner:   queryOwner,
		Version: envelope.ParseVersion(queryVersion),
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), queryTimeout)
	defer cancel()

	if display.ShouldOutputJSON(cmd) {
		out, err := client.Query(ctx, req)
		if err != nil {
			return err
		}
		if err := display.OutputJSON(cmd.OutOrStdout(), out); err != nil {
			return err
		}
		t, _, err := envelope.DefaultRegistry().Decode(out)
		if err != nil {
			return err
		}
		if t.Rows == 0 {
			return ErrNoData
		}
		return nil
	}

	t, v, err := client.Table(ctx, req)
	if err != nil {
		return err
	}
	if t.Rows == 0 {
		pterm.Info.Println("No channels matched")
		return ErrNoData
	}
	if err := display.RenderTable(t); err != nil {
		return errors.Wrap(err, "failed to render table")
	}
	pterm.Info.Printf("%d channels, %d columns (envelope v%s)\n", t.Rows, len(t.Columns), v)
	return nil
}
