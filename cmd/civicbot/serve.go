package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nadzzz/civicbot/internal/config"
	"github.com/nadzzz/civicbot/internal/hazard"
	"github.com/nadzzz/civicbot/internal/health"
	"github.com/nadzzz/civicbot/internal/monitor"
	"github.com/nadzzz/civicbot/internal/notify"
	"github.com/nadzzz/civicbot/internal/transport"
	grpctransport "github.com/nadzzz/civicbot/internal/transport/grpc"
	httptransport "github.com/nadzzz/civicbot/internal/transport/http"
)

func newServeCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the chat transports, hazard monitor and health server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configFile)
		},
	}
}

func runServe(parent context.Context, configFile string) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	slog.Info("civicbot starting", "version", version)

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}

	var transports []transport.Transport
	if cfg.Transports.GRPC.Enabled {
		transports = append(transports, grpctransport.New(cfg.Transports.GRPC.Port))
	}
	if cfg.Transports.HTTP.Enabled {
		transports = append(transports, httptransport.New(cfg.Transports.HTTP))
	}
	if len(transports) == 0 {
		return errors.New("no transports enabled, enable at least one in config")
	}

	mon, notifiers, err := newMonitor(cfg, a.hazards)
	if err != nil {
		return err
	}
	if notifiers != nil {
		defer notifiers.Close()
	}

	healthServer := health.New(cfg.Server.HealthPort, version)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return healthServer.ListenAndServe(gctx)
	})
	g.Go(func() error {
		a.chat.Run(gctx)
		return nil
	})

	if mon != nil {
		healthServer.SetComponent("monitor", "up")
		g.Go(func() error {
			mon.Run(gctx)
			return nil
		})
	}

	for _, t := range transports {
		healthServer.SetComponent(t.Name(), "up")
		g.Go(func() error {
			slog.Info("starting transport", "name", t.Name())
			if err := t.Listen(gctx, a.chat); err != nil {
				healthServer.SetComponent(t.Name(), "failed")
				return fmt.Errorf("transport %s: %w", t.Name(), err)
			}
			return nil
		})
	}

	healthServer.SetReady(true)
	slog.Info("civicbot ready",
		"transports", len(transports),
		"monitor", cfg.Monitor.Enabled,
		"health_port", cfg.Server.HealthPort)

	<-gctx.Done()
	slog.Info("shutdown signal received, draining...")
	healthServer.SetReady(false)

	for _, t := range transports {
		if err := t.Close(); err != nil {
			slog.Error("transport close error", "name", t.Name(), "error", err)
		}
	}

	err = g.Wait()
	slog.Info("civicbot stopped")
	return err
}

// newMonitor builds the hazard monitor and its notifiers. Both are nil when
// the monitor is disabled.
func newMonitor(cfg *config.Config, source *hazard.Source) (*monitor.Monitor, notify.Multi, error) {
	if !cfg.Monitor.Enabled {
		return nil, nil, nil
	}
	notifiers, err := notify.FromConfig(cfg.Notify)
	if err != nil {
		return nil, nil, fmt.Errorf("configuring notifiers: %w", err)
	}
	mon, err := monitor.New(source, notifiers, cfg.Monitor, source.Region())
	if err != nil {
		notifiers.Close()
		return nil, nil, err
	}
	return mon, notifiers, nil
}
