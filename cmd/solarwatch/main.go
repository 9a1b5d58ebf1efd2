package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"solar-telemetry/pkg/client"
	"solar-telemetry/pkg/config"
	"solar-telemetry/pkg/diag"
	"solar-telemetry/pkg/feed"
	"solar-telemetry/pkg/metrics"
	"solar-telemetry/pkg/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.LoadArgs(args)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading configuration: %v\n", err)
		return 1
	}
	if cfg == nil {
		return 0 // Help was shown
	}
	if cfg.ShowVersion {
		fmt.Fprintln(stdout, version.Info())
		return 0
	}

	logger := log.New(stdout, "[solarwatch] ", log.LstdFlags|log.Lmicroseconds)
	if cfg.ConfigFile != "" {
		logger.Printf("Using config file %s", cfg.ConfigFile)
	}

	aggregator := diag.NewAggregator(diag.RealClock{}, diag.DefaultConfig())
	aggregator.Start(ctx)
	defer aggregator.Stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metricsPublisher := metrics.NewPublisher(registry)

	c, err := client.New(client.Config{
		BaseURL:        cfg.ChannelURL,
		Transports:     cfg.Transports,
		Policy:         cfg.Policy(),
		RatedCapacityW: cfg.Store.RatedCapacityW,
		MQTTClientID:   cfg.MQTTClientID,
	}, logger, diag.Multi(aggregator, metricsPublisher))
	if err != nil {
		fmt.Fprintf(stderr, "Error creating client: %v\n", err)
		return 1
	}
	defer c.Close()

	server := feed.NewServer(cfg.Feed.Addr, c, aggregator, registry, logger)
	unsubscribe := c.Subscribe(func(s client.Snapshot) {
		server.Publish(s)
		metricsPublisher.ObserveState(s.Metrics, s.Efficiency, len(s.Alerts))
	})
	defer unsubscribe()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var feedFailed atomic.Bool
	feedDone := make(chan struct{})
	go func() {
		defer close(feedDone)
		if err := server.ListenAndServe(runCtx); err != nil {
			logger.Printf("ERROR: feed server: %v", err)
			feedFailed.Store(true)
			cancel()
		}
	}()

	if err := c.Connect(runCtx); err != nil {
		fmt.Fprintf(stderr, "Error connecting: %v\n", err)
		return 1
	}

	cli := NewCLI(c, aggregator, cfg, logger)
	err = cli.Run(runCtx)
	cancel()
	<-feedDone

	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if feedFailed.Load() {
		return 1
	}
	return 0
}
