// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keywarden Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/keywarden/keywarden/internal/access"
	"github.com/keywarden/keywarden/internal/auth"
	"github.com/keywarden/keywarden/internal/config"
	"github.com/keywarden/keywarden/internal/gate"
	"github.com/keywarden/keywarden/internal/logging"
	"github.com/keywarden/keywarden/internal/observability"
	"github.com/keywarden/keywarden/internal/shortener"
	"github.com/keywarden/keywarden/internal/store"
	"github.com/keywarden/keywarden/internal/xdg"
)

// StoreFile is the record store file name inside the data directory.
const StoreFile = "player-records.yaml"

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication gate",
		Long: `Start the gate process that accepts player connections, tracks
session continuity, and serves register/authenticate/unregister
operations against the player record store.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	// Flag defaults mirror config.Default so unchanged flags never
	// override file-provided values with empty strings.
	defaults := config.Default()
	cmd.Flags().StringVar(&configFile, "config", "", "config file path")
	cmd.Flags().String("listen", defaults.Listen, "gate listen address")
	cmd.Flags().String("metrics-addr", defaults.MetricsAddr, "observability listen address")
	cmd.Flags().String("data-dir", defaults.DataDir, "data directory for the record store")
	cmd.Flags().String("server-name", defaults.ServerName, "server name shown in enrollment links")

	return cmd
}

func runServe(ctx context.Context, cfg config.Config) error {
	logging.SetDefault("keywarden", version, cfg.Log.Format, cfg.Log.Level)

	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = xdg.DataDir()
	}
	if err := xdg.EnsureDir(dataDir); err != nil {
		return err
	}
	storePath := filepath.Join(dataDir, StoreFile)

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}

	recordStore := store.Open(storePath, registry, cfg.ReauthWindow())
	if migrated, err := store.MigrateLegacy(storePath); err != nil {
		return err
	} else if migrated {
		slog.Info("legacy record store converted", "path", storePath)
	}
	if err := recordStore.Load(); err != nil {
		return err
	}

	authz, err := access.New(access.DefaultRoles())
	if err != nil {
		return err
	}
	for _, admin := range cfg.Admins {
		authz.Assign(admin, "admin")
	}

	links := shortener.NewLinkService(
		shortener.New(cfg.Shortener.Endpoint, cfg.ShortenerTimeout()),
		cfg.ServerName,
	)

	obs := observability.NewServer(cfg.MetricsAddr, func() bool { return true })
	obsErr, err := obs.Start()
	if err != nil {
		return err
	}

	engine := auth.NewEngine(auth.EngineConfig{
		Store:   recordStore,
		Methods: registry,
		Enabled: cfg.Methods,
		Authz:   authz,
		Enroll:  links,
		Metrics: obs.Metrics(),
	})
	tracker := auth.NewTracker(recordStore)

	gateServer := gate.NewServer(cfg.Listen, gate.Deps{
		Engine:    engine,
		Tracker:   tracker,
		Store:     recordStore,
		Methods:   registry,
		OnConnect: obs.Metrics().ConnectionsTotal.Inc,
	})
	engine.SetNotifier(gateServer)

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gateDone := make(chan error, 1)
	go func() { gateDone <- gateServer.Run(runCtx) }()

	select {
	case err = <-gateDone:
	case obsFailure := <-obsErr:
		err = obsFailure
		stop()
		<-gateDone
	}

	slog.Info("shutting down")
	engine.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if stopErr := obs.Stop(shutdownCtx); stopErr != nil {
		slog.Error("failed to stop observability server", "error", stopErr)
	}
	if saveErr := recordStore.Save(); saveErr != nil {
		slog.Error("final save failed", "error", saveErr)
	}
	return err
}

// buildRegistry constructs the fixed method set. Config gates which
// methods the engine accepts, not registry membership.
func buildRegistry(cfg config.Config) (*auth.Registry, error) {
	totpMethod, err := auth.NewTOTPMethod(cfg.TOTP.HashWidth, cfg.TOTP.Digits)
	if err != nil {
		return nil, fmt.Errorf("totp configuration: %w", err)
	}
	return auth.NewRegistry(
		totpMethod,
		auth.NewKeyMethod(),
		auth.NewOneTimeKeyMethod(),
	), nil
}
