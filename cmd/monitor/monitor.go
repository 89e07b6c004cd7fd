// Package monitor implements the long-running accuracy monitoring service.
package monitor

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	"github.com/parkfan/waitwatch-go/internal/accuracy"
	"github.com/parkfan/waitwatch-go/internal/alerts"
	apiv2 "github.com/parkfan/waitwatch-go/internal/api/v2"
	"github.com/parkfan/waitwatch-go/internal/conf"
	"github.com/parkfan/waitwatch-go/internal/datastore"
	"github.com/parkfan/waitwatch-go/internal/logging"
	"github.com/parkfan/waitwatch-go/internal/mqtt"
	"github.com/parkfan/waitwatch-go/internal/observability"
	"github.com/parkfan/waitwatch-go/internal/scheduler"
)

// Command creates the monitor command, the main entry point of the service.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Run the accuracy monitoring service",
		Long:  "Starts the comparison, retention and drift jobs on their schedules and serves the read API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitor(settings)
		},
	}
}

// comparisonJob sweeps expired records before each comparison pass, so the
// comparator never re-scans candidates past their retention horizon. A failed
// sweep is logged but does not block the comparison.
func comparisonJob(sweeper *accuracy.Sweeper, comparator *accuracy.Comparator) func(context.Context) error {
	return func(ctx context.Context) error {
		if _, err := sweeper.Run(ctx); err != nil {
			logging.Error("Retention sweep failed", "error", err)
		}
		_, err := comparator.Run(ctx)
		return err
	}
}

func runMonitor(settings *conf.Settings) error {
	ds := datastore.New(settings)
	if ds == nil {
		return fmt.Errorf("no database output enabled in settings")
	}
	if err := ds.Open(); err != nil {
		return fmt.Errorf("failed to open datastore: %w", err)
	}
	defer func() {
		if err := ds.Close(); err != nil {
			logging.Error("Failed to close datastore", "error", err)
		}
	}()

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	var publisher accuracy.AlertPublisher
	if settings.MQTT.Enabled {
		client, err := mqtt.NewClient(settings)
		if err != nil {
			return fmt.Errorf("failed to create MQTT client: %w", err)
		}
		defer client.Disconnect()
		publisher = alerts.NewDriftPublisher(settings, client)
	}

	comparator := accuracy.NewComparator(settings, ds, metrics.Accuracy)
	sweeper := accuracy.NewSweeper(settings, ds, metrics.Accuracy)
	aggregator := accuracy.NewAggregator(settings, ds)
	driftMonitor := accuracy.NewDriftMonitor(settings, ds, aggregator, publisher, metrics.Accuracy)
	correlator := accuracy.NewCorrelator(settings, ds)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup

	sched := scheduler.New()
	sched.AddJob("comparison",
		time.Duration(settings.Accuracy.Comparison.IntervalMinutes)*time.Minute,
		comparisonJob(sweeper, comparator))
	sched.AddJob("drift-evaluation", 6*time.Hour,
		func(ctx context.Context) error {
			_, err := driftMonitor.Evaluate(ctx)
			return err
		})
	sched.Start(ctx, &wg)

	quitChan := make(chan struct{})
	if settings.Telemetry.Enabled {
		endpoint, err := observability.NewEndpoint(settings, metrics)
		if err != nil {
			return fmt.Errorf("failed to create telemetry endpoint: %w", err)
		}
		endpoint.Start(&wg, quitChan)
	}

	var apiServer *echo.Echo
	if settings.WebServer.Enabled {
		apiServer = echo.New()
		apiServer.HideBanner = true
		apiv2.New(apiServer, ds, settings, aggregator, driftMonitor, correlator)

		wg.Add(1)
		go func() {
			defer wg.Done()
			addr := ":" + settings.WebServer.Port
			logging.Info("API server starting", "addr", addr)
			if err := apiServer.Start(addr); err != nil && err != http.ErrServerClosed {
				logging.Error("API server error", "error", err)
			}
		}()
	}

	logging.Info("Accuracy monitoring service started",
		"comparison_interval_min", settings.Accuracy.Comparison.IntervalMinutes,
		"telemetry", settings.Telemetry.Enabled,
		"api", settings.WebServer.Enabled)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logging.Info("Shutdown signal received")
	cancel()
	close(quitChan)

	if apiServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logging.Error("API server shutdown error", "error", err)
		}
	}

	wg.Wait()
	logging.Info("Accuracy monitoring service stopped")
	return nil
}
