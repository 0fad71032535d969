package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/dirsvc/am"
	"github.com/teranos/dirsvc/directory"
	"github.com/teranos/dirsvc/envelope"
	"github.com/teranos/dirsvc/errors"
	"github.com/teranos/dirsvc/logger"
	"github.com/teranos/dirsvc/rpc"
	"github.com/teranos/dirsvc/service"
	"github.com/teranos/dirsvc/version"
)

// ServeCmd starts the gRPC directory service
var ServeCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Start the gRPC directory service",
	Long: `Start the directory service. Queries are answered from the configured
backend; the backend is opened on the first query, not at startup.

Editing the active dirsvc.toml while the server runs reloads
table.default_version without a restart.`,
	RunE: runServe,
}

var (
	serveAddr     string
	serveNoReload bool
)

func init() {
	ServeCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address host:port (overrides server.address and server.port)")
	ServeCmd.Flags().BoolVar(&serveNoReload, "no-reload", false, "Do not watch the config file for changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	factory, err := backendFactory(cfg.Backend)
	if err != nil {
		return err
	}
	handle := directory.NewHandle(factory)
	defer func() {
		if err := handle.Close(); err != nil {
			logger.Warnw("Failed to close directory backend", logger.FieldError, err)
		}
	}()

	svc, err := service.New(handle, nil, service.Options{
		DefaultVersion: envelope.ParseVersion(cfg.Table.DefaultVersion),
		Logger:         logger.ComponentLogger("service"),
	})
	if err != nil {
		return errors.Wrap(err, "failed to create service")
	}

	srv := rpc.NewServer(svc, rpc.ServerOptions{
		MaxRequestsPerSecond: cfg.Server.MaxRequestsPerSecond,
		Logger:               logger.ComponentLogger("rpc"),
		Version:              version.Version,
	})

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.ListenAddress()
	}

	if !serveNoReload {
		if stop := watchConfig(svc); stop != nil {
			defer stop()
		}
	}

	printStartupBanner(cfg, addr)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := srv.ListenAndServe(ctx, addr); err != nil {
		return err
	}
	pterm.Success.Println("Server stopped cleanly")
	return nil
}

// watchConfig reloads the default envelope version when the active config
// file changes. It returns nil when no config file is in use.
func watchConfig(svc *service.Service) func() {
	path := am.GetViper().ConfigFileUsed()
	if path == "" {
		return nil
	}

	watcher, err := am.NewConfigWatcher(path)
	if err != nil {
		logger.Warnw("Config hot reload disabled", logger.FieldPath, path, logger.FieldError, err)
		return nil
	}
	watcher.OnReload(func(cfg *am.Config) error {
		return svc.SetDefaultVersion(envelope.ParseVersion(cfg.Table.DefaultVersion))
	})
	watcher.Start()

	return func() {
		if err := watcher.Stop(); err != nil {
			logger.Warnw("Failed to stop config watcher", logger.FieldError, err)
		}
	}
}

func printStartupBanner(cfg *am.Config, addr string) {
	info := version.Get()
	pterm.DefaultSection.Printf("dirsvc %s (%s)\n", info.Version, info.Short())
	rows := pterm.TableData{
		{"Listen", addr},
		{"Backend", cfg.Backend.Kind},
		{"Default envelope", "v" + string(envelope.ParseVersion(cfg.Table.DefaultVersion))},
	}
	switch cfg.Backend.Kind {
	case am.BackendSQLite:
		rows = append(rows, []string{"Database", cfg.Backend.DatabasePath})
	case am.BackendMemory:
		rows = append(rows, []string{"Fixtures", cfg.Backend.FixturePath})
	case am.BackendChannelFinder:
		rows = append(rows, []string{"ChannelFinder", cfg.Backend.URL})
	}
	if cfg.Server.MaxRequestsPerSecond > 0 {
		rows = append(rows, []string{"Rate limit", pterm.Sprintf("%g req/s", cfg.Server.MaxRequestsPerSecond)})
	}
	_ = pterm.DefaultTable.WithData(rows).Render()
}
