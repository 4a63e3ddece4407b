package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/parley-dev/parley/internal/config"
	"github.com/parley-dev/parley/internal/demos"
	"github.com/parley-dev/parley/internal/errors"
	"github.com/parley-dev/parley/pkg/middleware"
	"github.com/parley-dev/parley/pkg/server"
	"github.com/parley-dev/parley/pkg/transfer"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		host       string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the bundled demo applications",
		Long: `Start a parley server hosting the bundled demos: echo and sysinfo
on the goroutine model, monitor on the coroutine model, and the
upload app when file transfer is enabled.

Settings come from parley.yaml in the current directory or any
parent; flags override the file. Without a config file the defaults
apply and uploads spool to a temporary directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath, host, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to parley.yaml")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (overrides config)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (overrides config)")

	return cmd
}

func runServe(configPath, host string, port int) error {
	cfg, err := loadServeConfig(configPath)
	if err != nil {
		return err
	}
	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)
	sc := serverConfig(cfg, logger)

	var store transfer.Store
	if cfg.Transfer.Enabled {
		disk, err := transfer.NewDiskStore(cfg.SpoolDir(), cfg.Transfer.MaxFileSize)
		if err != nil {
			return errors.New("E060").WithDetail(err.Error()).Wrap(err)
		}
		store = disk
		stop := transfer.StartCleanup(disk, cfg.TransferCleanupInterval(), cfg.TransferMaxAge(), logger)
		defer stop()
	}

	apps := demos.Apps(store)
	srv := server.New(sc, apps)

	if cfg.Metrics.Enabled {
		middleware.Prometheus(middleware.WithNamespace(cfg.Metrics.Namespace)).
			Instrument(srv.Sessions())
		srv.Handle(cfg.Metrics.Path, promhttp.Handler())
	}
	if store != nil {
		srv.Handle("/transfer", transfer.HandlerWithConfig(store, &transfer.Config{
			MaxFileSize: cfg.Transfer.MaxFileSize,
		}))
	}

	names := make([]string, 0, len(apps))
	for name := range apps {
		names = append(names, name)
	}
	sort.Strings(names)

	printBanner()
	fmt.Println()
	success("%s listening on %s", projectName(cfg), cfg.URL())
	info("apps: %s", strings.Join(names, ", "))
	if cfg.Metrics.Enabled {
		info("metrics: %s%s", cfg.URL(), cfg.Metrics.Path)
	}
	if store != nil {
		info("uploads spool to %s", cfg.SpoolDir())
	}
	fmt.Println()

	if err := srv.Run(); err != nil {
		return errors.New("E082").WithDetail(err.Error()).Wrap(err)
	}
	return nil
}

// loadServeConfig resolves the effective configuration. An explicit
// --config path must exist; otherwise the working directory and its
// parents are searched, falling back to defaults with a temporary
// spool so the demos work out of the box.
func loadServeConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}

	cfg, err := config.LoadFromWorkingDir()
	if err == nil {
		return cfg, nil
	}
	if pe, ok := err.(*errors.ParleyError); ok && pe.Code == "E080" {
		warn("no parley.yaml found, using defaults")
		cfg = config.New()
		cfg.Transfer.Enabled = true
		cfg.Transfer.Dir = filepath.Join(os.TempDir(), "parley-spool")
		return cfg, nil
	}
	return nil, err
}

// serverConfig maps the YAML configuration onto the server's config.
func serverConfig(cfg *config.Config, logger *slog.Logger) *server.Config {
	sc := server.DefaultConfig()
	sc.Logger = logger
	sc.Address = cfg.Address()
	if cfg.Server.MaxMessageSize > 0 {
		sc.MaxMessageSize = cfg.Server.MaxMessageSize
	}
	sc.HeartbeatInterval = cfg.HeartbeatInterval()
	sc.ReadTimeout = cfg.ReadTimeout()
	sc.WriteTimeout = cfg.WriteTimeout()
	sc.ShutdownTimeout = cfg.ShutdownTimeout()
	sc.SessionIdleTimeout = cfg.SessionIdleTimeout()
	sc.CleanupInterval = cfg.SessionCleanupInterval()
	sc.PullInterval = cfg.PullInterval()
	sc.MaxSessions = cfg.Session.MaxSessions
	sc.MaxSessionsPerIP = cfg.Session.MaxSessionsPerIP
	if cfg.Session.MaxPendingEvents > 0 {
		sc.MaxPendingEvents = cfg.Session.MaxPendingEvents
	}
	sc.TrustProxyHeaders = cfg.Server.TrustProxyHeaders
	sc.WrapSession = middleware.OpenTelemetry()
	return sc
}

func projectName(cfg *config.Config) string {
	if cfg.Name != "" {
		return cfg.Name
	}
	return "parley"
}
