package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/thejerf/suture/v4"

	"github.com/dray-io/auditvault/internal/archival"
	"github.com/dray-io/auditvault/internal/metrics"
)

func newServeCmd(a *app) *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled archival and the metrics endpoint until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.loadConfig(); err != nil {
				return err
			}
			if metricsAddr != "" {
				a.cfg.Observability.MetricsAddr = metricsAddr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Override metrics listen address (e.g., :9090)")
	return cmd
}

// serve runs the daemon until ctx is done.
func (a *app) serve(ctx context.Context, reg prometheus.Registerer, gatherer prometheus.Gatherer) error {
	rec := newRecorders(reg)
	b, err := a.open(ctx, a.cfg, a.logger, rec)
	if err != nil {
		return fmt.Errorf("failed to open stores: %w", err)
	}
	defer b.Close()

	svc := newServices(a.cfg, b, a.logger, rec)

	sup := suture.New("auditvaultd", suture.Spec{
		EventHook: func(e suture.Event) {
			a.logger.Warnf("supervisor event", map[string]any{"event": e.String()})
		},
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          10 * time.Second,
	})

	srv := metrics.NewServerWithRegistry(a.cfg.Observability.MetricsAddr, gatherer)
	srv.SetLogger(a.logger)
	for name, check := range healthChecks(b) {
		srv.AddHealthCheck(name, check)
	}
	sup.Add(srv)

	if a.cfg.Archival.Enabled {
		if len(a.cfg.Archival.Tenants) == 0 {
			a.logger.Warn("archival enabled but no tenants configured")
		}
		sup.Add(archival.NewScheduler(svc.archiver, archival.SchedulerConfig{
			Tenants:    a.cfg.Archival.Tenants,
			Interval:   a.cfg.Archival.Interval,
			RunOnStart: a.cfg.Archival.RunOnStart,
		}, a.logger))
	}

	a.logger.Infof("auditvaultd starting", map[string]any{
		"version":     version,
		"metricsAddr": a.cfg.Observability.MetricsAddr,
		"tenants":     a.cfg.Archival.Tenants,
	})

	err = sup.Serve(ctx)

	svc.retrieval.Wait()
	if svc.locks != nil {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if rerr := svc.locks.ReleaseAll(releaseCtx); rerr != nil {
			a.logger.Warnf("failed to release archival locks", map[string]any{"error": rerr.Error()})
		}
	}
	a.logger.Info("auditvaultd shutdown complete")

	if err == nil || ctx.Err() != nil {
		return nil
	}
	return err
}
