// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/adinunzio10/rd-watch-sub012/internal/api"
	"github.com/adinunzio10/rd-watch-sub012/internal/backoff"
	"github.com/adinunzio10/rd-watch-sub012/internal/browser"
	"github.com/adinunzio10/rd-watch-sub012/internal/buildinfo"
	"github.com/adinunzio10/rd-watch-sub012/internal/config"
	"github.com/adinunzio10/rd-watch-sub012/internal/database"
	"github.com/adinunzio10/rd-watch-sub012/internal/domain"
	"github.com/adinunzio10/rd-watch-sub012/internal/metrics"
	"github.com/adinunzio10/rd-watch-sub012/internal/models"
	"github.com/adinunzio10/rd-watch-sub012/internal/realdebrid"
)

const (
	debridRequestTimeoutSeconds = 30
	listingCacheMaxAge          = 7 * 24 * time.Hour
)

func main() {
	config.InitDefaultLogger(buildinfo.Version)

	var rootCmd = &cobra.Command{
		Use:   "rdwatch",
		Short: "A remote content browser for debrid cloud storage",
		Long: `rdwatch - Browse, filter and bulk-manage the contents of a
debrid cloud-storage account through a single sortable view.`,
	}

	rootCmd.Version = buildinfo.Version

	rootCmd.AddCommand(RunServeCommand())
	rootCmd.AddCommand(RunVersionCommand(buildinfo.Version))
	rootCmd.AddCommand(RunGenerateConfigCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func RunServeCommand() *cobra.Command {
	var (
		configDir string
		dataDir   string
		logPath   string
	)

	var command = &cobra.Command{
		Use:   "serve",
		Short: "Start the server",
	}

	command.Flags().StringVar(&configDir, "config-dir", "", "config directory path (default is OS-specific: ~/.config/rdwatch/ or %APPDATA%\\rdwatch\\). Can also be a direct path to a .toml file")
	command.Flags().StringVar(&dataDir, "data-dir", "", "data directory for the cache database (default is next to config file)")
	command.Flags().StringVar(&logPath, "log-path", "", "log file path (default is stdout)")

	command.Run = func(cmd *cobra.Command, args []string) {
		app := NewApplication(configDir, dataDir, logPath)
		app.runServer()
	}

	return command
}

func RunVersionCommand(version string) *cobra.Command {
	var command = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of rdwatch",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}

	return command
}

func RunGenerateConfigCommand() *cobra.Command {
	var configDir string

	command := &cobra.Command{
		Use:   "generate-config",
		Short: "Generate a default configuration file",
		Long: `Generate a default configuration file without starting the server.

If no --config-dir is specified, uses the OS-specific default location:
- Linux/macOS: ~/.config/rdwatch/config.toml
- Windows: %APPDATA%\rdwatch\config.toml

You can specify either a directory path or a direct file path:
- Directory: rdwatch generate-config --config-dir /path/to/config/
- File: rdwatch generate-config --config-dir /path/to/myconfig.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var configPath string
			if configDir != "" {
				if strings.HasSuffix(strings.ToLower(configDir), ".toml") {
					configPath = configDir
				} else if info, err := os.Stat(configDir); err == nil && !info.IsDir() {
					configPath = configDir
				} else {
					configPath = filepath.Join(configDir, "config.toml")
				}
			} else {
				configPath = filepath.Join(config.GetDefaultConfigDir(), "config.toml")
			}

			if _, err := os.Stat(configPath); err == nil {
				fmt.Printf("Config file already exists at: %s\n", configPath)
				return nil
			}

			if err := config.WriteDefaultConfig(configPath); err != nil {
				return err
			}

			fmt.Printf("Generated default config at: %s\n", configPath)
			return nil
		},
	}

	command.Flags().StringVar(&configDir, "config-dir", "", "config directory or file path")

	return command
}

type Application struct {
	configDir string
	dataDir   string
	logPath   string
}

func NewApplication(configDir, dataDir, logPath string) *Application {
	return &Application{
		configDir: configDir,
		dataDir:   dataDir,
		logPath:   logPath,
	}
}

func (app *Application) runServer() {
	cfg, err := config.New(app.configDir, buildinfo.Version)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize configuration")
	}

	// Override with CLI flags if provided
	if app.dataDir != "" {
		os.Setenv("RDWATCH__DATA_DIR", app.dataDir)
		cfg.SetDataDir(app.dataDir)
	}
	if app.logPath != "" {
		os.Setenv("RDWATCH__LOG_PATH", app.logPath)
		cfg.Config.LogPath = app.logPath
	}

	cfg.ApplyLogConfig()

	log.Info().Str("version", buildinfo.Version).Msg("Starting rdwatch")

	if cfg.Config.DebridToken == "" {
		log.Fatal().Msg("No debrid API token configured - set debridToken in config.toml or RDWATCH__DEBRID_TOKEN")
	}

	db, err := database.Open(context.Background(), cfg.GetDatabasePath())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	listingCache := models.NewListingCacheStore(db)

	go func() {
		pruneCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if pruned, err := listingCache.PruneStale(pruneCtx, listingCacheMaxAge); err != nil {
			log.Warn().Err(err).Msg("Failed to prune stale listing cache entries")
		} else if pruned > 0 {
			log.Info().Int64("pruned", pruned).Msg("Pruned stale listing cache entries")
		}
	}()

	debridClient := realdebrid.NewClient(cfg.Config.DebridBaseURL, cfg.Config.DebridToken, debridRequestTimeoutSeconds)

	session, err := browser.NewSession(debridClient, debridClient, browser.SessionOptions{
		PageSize:         cfg.Config.PageSize,
		Workers:          cfg.Config.BulkWorkers,
		ItemTimeout:      time.Duration(cfg.Config.BulkItemTimeoutSecs) * time.Second,
		RecoveryAttempts: cfg.Config.RecoveryMaxAttempts,
		Policy:           backoff.Default(),
		Cache:            listingCache,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize browser session")
	}

	warmCtx, warmCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if seeded, err := session.WarmStart(warmCtx); err != nil {
		log.Warn().Err(err).Msg("Could not seed listing from cache")
	} else if seeded > 0 {
		log.Info().Int("items", seeded).Msg("Seeded listing from cache")
	}
	warmCancel()

	cfg.RegisterReloadListener(func(conf *domain.Config) {
		session.SetPageSize(conf.PageSize)
	})

	browserMetrics := metrics.NewBrowserMetrics()

	httpServer := api.NewServer(&api.Dependencies{
		Config:         cfg,
		Version:        buildinfo.Version,
		Session:        session,
		BrowserMetrics: browserMetrics,
	})

	errorChannel := make(chan error)
	serverReady := make(chan struct{}, 1)
	go func() {
		if err := httpServer.ListenAndServeReady(serverReady); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errorChannel <- err
		}
	}()

	select {
	case <-serverReady:
	case err := <-errorChannel:
		log.Fatal().Err(err).Msg("failed to start HTTP server")
	}

	var metricsServer *metrics.Server
	if cfg.Config.MetricsEnabled {
		metricsServer = metrics.NewServer(cfg.Config.MetricsHost, cfg.Config.MetricsPort)

		go func() {
			errorChannel <- metricsServer.ListenAndServe()
		}()
	}

	// Wait for interrupt signal to gracefully shutdown the server
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Msgf("got signal %v, shutting down server", sig.String())
	case err := <-errorChannel:
		log.Error().Err(err).Msg("got unexpected error from server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("got error during metrics server shutdown")
		}
	}

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("got error during graceful http shutdown")

		os.Exit(1)
	}
}
