package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tokamak-network/ai-tokamak/internal/api"
	"github.com/tokamak-network/ai-tokamak/internal/buildinfo"
	"github.com/tokamak-network/ai-tokamak/internal/mqtt"
	"github.com/tokamak-network/ai-tokamak/internal/scheduler"
	"github.com/tokamak-network/ai-tokamak/internal/skills"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server, message bus and channel transports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cmd, flags)
		},
	}
}

// runServe wires every component and runs them until SIGINT/SIGTERM or
// the first component failure.
func runServe(ctx context.Context, cmd *cobra.Command, flags *globalFlags) error {
	cfg, cfgPath, err := loadConfig(flags)
	if err != nil {
		return err
	}
	logger, err := loggerFor(cmd.OutOrStdout(), cfg)
	if err != nil {
		return err
	}
	logger.Info("starting aitokamak", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "config", cfgPath)

	if err := ensureDir(cfg.DataDir); err != nil {
		return err
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.bus.Stop()

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	// --- Scheduler ---
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		var store *scheduler.Store
		sched, store, err = newScheduler(a, logger)
		if err != nil {
			return err
		}
		defer store.Close()
		g.Go(func() error { return sched.Run(ctx) })
	} else {
		logger.Info("scheduler disabled")
	}

	// --- MQTT ---
	var transport *mqtt.Transport
	if cfg.MQTT.Enabled() {
		clientID, err := mqtt.LoadOrCreateClientID(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("mqtt client id: %w", err)
		}
		transport = mqtt.New(cfg.MQTT, clientID, a.bus, logger)
		transport.Attach(a.bus)
		g.Go(func() error { return transport.Run(ctx) })
	} else {
		logger.Info("mqtt disabled (no broker configured)")
	}

	// --- Skills watcher ---
	if cfg.Skills.Watch && cfg.Skills.Dir != "" {
		if err := ensureDir(cfg.Skills.Dir); err != nil {
			return err
		}
		w, err := skills.NewWatcher(a.skills, logger)
		if err != nil {
			logger.Warn("skills watcher unavailable", "error", err)
		} else {
			g.Go(func() error { return w.Run(ctx) })
		}
	}

	a.status = func() map[string]any {
		status := map[string]any{
			"channels":         a.bus.Channels(),
			"outbound_dropped": a.bus.Dropped(),
			"mqtt_enabled":     transport != nil,
		}
		if sched != nil {
			status["scheduler"] = sched.Stats()
		}
		return status
	}

	g.Go(func() error { return a.bus.DispatchOutbound(ctx) })
	g.Go(func() error { return a.chat.Run(ctx, a.bus.Inbound()) })

	// --- API server ---
	server := api.NewServer(cfg.Listen.Address, cfg.Listen.Port, api.Deps{
		Chat:     a.chat,
		Sessions: a.sessions,
		Tools:    a.tools,
		Metrics:  a.metrics.Handler(),
		Bus:      a.bus,
	}, logger)
	g.Go(func() error { return server.Start(ctx) })

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received")
	}()

	if err := g.Wait(); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	logger.Info("aitokamak stopped")
	return nil
}

// newScheduler opens the task store, builds the executor and registers
// the built-in session cleanup task.
func newScheduler(a *app, logger *slog.Logger) (*scheduler.Scheduler, *scheduler.Store, error) {
	cfg := a.cfg
	if err := ensureDir(filepath.Dir(cfg.Scheduler.DBPath)); err != nil {
		return nil, nil, err
	}
	store, err := scheduler.NewStore(cfg.Scheduler.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("scheduler store: %w", err)
	}

	exec := scheduler.NewExecutor(a.sessions, a.loop, a.bus, cfg.Agent.MaxRetries, logger)
	sched := scheduler.New(store, exec.Execute,
		scheduler.WithLogger(logger),
		scheduler.WithRecorder(a.metrics),
	)
	if _, err := sched.EnsureTask(scheduler.SessionCleanupTask(cfg.Session.CleanupInterval, cfg.Session.MaxAge)); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("register session cleanup: %w", err)
	}
	logger.Info("scheduler configured", "db", cfg.Scheduler.DBPath)
	return sched, store, nil
}
