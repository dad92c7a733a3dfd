package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/leadflow-api/internal/handler"
	"github.com/noah-isme/leadflow-api/internal/router"
	"github.com/noah-isme/leadflow-api/internal/service"
	"github.com/noah-isme/leadflow-api/pkg/config"
	"github.com/noah-isme/leadflow-api/pkg/jobs"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long:  "Load the lead store and serve the JSON API until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Port = port
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "port to listen on (default: PORT)")

	return cmd
}

func runServe(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logr, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logr.Sync() //nolint:errcheck

	a, err := bootstrap(ctx, cfg, logr)
	if err != nil {
		return err
	}
	defer a.close()

	if cfg.Seed.OnEmpty {
		gen := service.NewSampleGenerator(time.Now().UnixNano(), a.auth.Counselors(), nil)
		if _, err := service.SeedLeads(ctx, a.store, gen, cfg.Seed.Count, true, logr); err != nil {
			return fmt.Errorf("seed leads: %w", err)
		}
	}

	engine, messaging := buildServer(a)
	messaging.Start(ctx)
	defer messaging.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "driver", cfg.Persistence.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := withTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
		return err
	}
	return nil
}

// buildServer wires services and handlers onto a gin engine.
func buildServer(a *app) (http.Handler, *service.MessagingService) {
	cfg := a.cfg
	loc := cfg.Location()

	query := service.NewQueryEngine(nil, loc)
	policy := service.NewAccessPolicy()

	dashboard := service.NewDashboardService(service.DashboardServiceParams{
		Leads:  a.store,
		Policy: policy,
		Query:  query,
		Cache:  a.dashboardCache(),
		Logger: a.logger,
		Config: service.DashboardServiceConfig{
			CacheTTL:             cfg.Dashboard.CacheTTL,
			OverdueThresholdDays: cfg.Dashboard.OverdueThresholdDays,
			FreshThresholdDays:   cfg.Dashboard.FreshThresholdDays,
		},
	})

	leads := service.NewLeadService(service.LeadServiceParams{
		Store:                a.store,
		Policy:               policy,
		Stages:               service.NewStageMachine(nil),
		Query:                query,
		Directory:            a.auth,
		Cache:                dashboard,
		Logger:               a.logger,
		OverdueThresholdDays: cfg.Dashboard.OverdueThresholdDays,
	})

	exporter := service.NewExportService(loc, a.logger, nil, nil)

	messaging := service.NewMessagingService(service.MessagingServiceParams{
		Leads:   leads,
		Metrics: a.metrics,
		Logger:  a.logger,
		Queue: jobs.QueueConfig{
			Workers:    cfg.Messaging.Workers,
			BufferSize: cfg.Messaging.BufferSize,
			MaxRetries: cfg.Messaging.MaxRetries,
			RetryDelay: cfg.Messaging.RetryDelay,
		},
	})

	engine := router.New(router.Params{
		Config:  cfg,
		Logger:  a.logger,
		Metrics: a.metrics,
		Tokens:  a.auth,
		Handlers: router.Handlers{
			Auth: handler.NewAuthHandler(a.auth),
			Leads: handler.NewLeadHandler(leads, exporter, a.auth, handler.LeadHandlerConfig{
				Location:             loc,
				OverdueThresholdDays: dashboard.OverdueThresholdDays(),
			}),
			Dashboard: handler.NewDashboardHandler(dashboard, exporter, loc),
			Messages:  handler.NewMessageHandler(messaging),
			Metrics:   handler.NewMetricsHandler(a.metrics, a.readinessChecks(), a.logger),
		},
	})
	return engine, messaging
}
