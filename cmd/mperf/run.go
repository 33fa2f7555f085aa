package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/docker/go-units"
	"github.com/ethpandaops/mperf/pkg/healer"
	"github.com/ethpandaops/mperf/pkg/metrics"
	"github.com/ethpandaops/mperf/pkg/orchestrator"
	"github.com/ethpandaops/mperf/pkg/session"
	"github.com/ethpandaops/mperf/pkg/stats"
	"github.com/ethpandaops/mperf/pkg/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func runLoad(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	reportInterval, err := cfg.Report.Duration()
	if err != nil {
		return fmt.Errorf("parsing report interval: %w", err)
	}

	// Setup context with signal handling.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.WithField("signal", sig).Info("Received shutdown signal")
		cancel()
	}()

	store, err := storage.New(log, &cfg.Storage)
	if err != nil {
		return fmt.Errorf("creating storage: %w", err)
	}

	sess := session.New(&cfg.Upload)

	log.WithFields(logrus.Fields{
		"version":         version,
		"session":         sess.ID,
		"backend":         store.Type(),
		"object_size":     units.BytesSize(float64(sess.ObjectSize)),
		"max_outstanding": cfg.Upload.MaxOutstanding,
		"interval":        sess.Interval,
	}).Info("Starting mperf")

	if err := sess.Bootstrap(ctx, log, store); err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := metrics.New(registry)
	m.Session(sess.ID, store.Type())

	counters := &stats.Counters{}

	orch := orchestrator.New(log, sess, store, healer.New(log, store),
		orchestrator.WithMetrics(m),
		orchestrator.WithAdmissionHook(func(admitted bool) {
			if admitted {
				counters.Admitted()

				return
			}

			counters.Denied()
		}),
		orchestrator.WithCompletionHook(func(a *orchestrator.Attempt) {
			counters.Finished(a.State() == orchestrator.StateSucceeded, a.Retried(), a.Bytes)
		}),
	)

	reporter := stats.NewReporter(log, counters, stats.NewHostReader(log), orch.Outstanding, reportInterval)

	if cfg.Metrics.Listen != "" {
		srv := metrics.NewServer(log, &cfg.Metrics, registry, func() any {
			return reporter.Snapshot(context.Background())
		})

		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("starting metrics server: %w", err)
		}

		defer func() {
			if err := srv.Stop(); err != nil {
				log.WithError(err).Warn("Failed to stop metrics server")
			}
		}()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return orch.Run(gctx)
	})

	g.Go(func() error {
		return reporter.Run(gctx)
	})

	runErr := g.Wait()
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	log.WithField("outstanding", orch.Outstanding()).Info("Waiting for outstanding uploads")
	orch.Wait()

	reporter.Report(context.Background())
	log.WithField("session", sess.ID).Info("mperf stopped")

	return runErr
}
