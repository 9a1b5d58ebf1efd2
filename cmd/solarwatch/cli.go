package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"solar-telemetry/pkg/client"
	"solar-telemetry/pkg/config"
	"solar-telemetry/pkg/diag"
	"solar-telemetry/pkg/events"
	"solar-telemetry/pkg/store"
	"solar-telemetry/pkg/utils"
)

// StateReader is the live state the CLI reports on.
type StateReader interface {
	State() client.Snapshot
}

// CLI represents the command-line status runner
type CLI struct {
	state  StateReader
	diag   diag.Reader
	config *config.Config
	logger *log.Logger

	// State
	printed      bool
	lastState    client.Snapshot
	lastDiag     diag.Snapshot
	lastAlertIDs string
	done         chan struct{}
}

// NewCLI creates a new command-line status runner
func NewCLI(state StateReader, diagReader diag.Reader, cfg *config.Config, logger *log.Logger) *CLI {
	return &CLI{
		state:  state,
		diag:   diagReader,
		config: cfg,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Run prints periodic status lines and blocks until ctx is done or Stop is called
func (c *CLI) Run(ctx context.Context) error {
	c.logger.Printf("Starting solarwatch %s", time.Now().Format(time.RFC3339))
	c.logger.Printf("Channel: %s", c.config.ChannelURL)
	c.logger.Printf("Transports: %s", strings.Join(c.config.Transports, ", "))
	c.logger.Printf("Reconnect: %s, %d attempts, %dms delay",
		c.config.Reconnect.Strategy, c.config.Reconnect.MaxAttempts, c.config.Reconnect.DelayMs)
	c.logger.Printf("Feed: %s", c.config.Feed.Addr)

	ticker := time.NewTicker(c.config.StatusInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Printf("Shutting down...")
			return nil
		case <-ticker.C:
			c.printStatus()
		case <-c.done:
			return nil
		}
	}
}

// Stop stops the CLI runner
func (c *CLI) Stop() {
	close(c.done)
}

// printStatus prints the current state when something worth reporting changed
func (c *CLI) printStatus() {
	state := c.state.State()
	d := c.diag.Snapshot()

	if c.shouldPrintStatus(state, d) {
		c.logger.Printf("Status - state=%s transport=%s messages=%s rate=%.1f/s errors=%d",
			state.ConnectionState,
			orNone(state.Transport),
			utils.FormatNumber(d.MessagesReceived),
			d.MessagesPerSecond,
			d.ErrorsTotal)

		c.logger.Printf("Power - solar=%s load=%s grid=%s battery=%s efficiency=%s",
			utils.FormatWatts(state.Metrics.SolarPower),
			utils.FormatWatts(state.Metrics.LoadPower),
			utils.FormatWatts(state.Metrics.GridPower),
			utils.FormatPercent(state.Metrics.BatteryLevel),
			utils.FormatPercent(state.Efficiency))

		if len(d.DispatchedByType) > 0 {
			var parts []string
			for _, tc := range utils.SortTypesByCount(d.DispatchedByType) {
				parts = append(parts, fmt.Sprintf("%s=%s", tc.Type, utils.FormatNumber(tc.Count)))
			}
			c.logger.Printf("Messages by type: %s", strings.Join(parts, ", "))
		}

		if state.Prediction != nil {
			c.logger.Printf("Prediction - %s at %s confidence",
				utils.FormatWatts(state.Prediction.PredictedPower),
				utils.FormatPercent(state.Prediction.Confidence*100))
		}

		if len(state.Alerts) > 0 {
			counts := utils.CountBySeverity(state.Alerts)
			top := utils.SortAlertsBySeverity(state.Alerts)[0]
			c.logger.Printf("Alerts - %d (critical=%d warn=%d info=%d), top: [%s] %s",
				len(state.Alerts),
				counts[events.SeverityCritical],
				counts[events.SeverityWarn],
				counts[events.SeverityInfo],
				top.Severity,
				top.Message)
		}

		if d.ReconnectsFailed > c.lastDiag.ReconnectsFailed {
			c.logger.Printf("Reconnect attempts exhausted, channel is down")
		}
	}

	c.printed = true
	c.lastState = state
	c.lastDiag = d
	c.lastAlertIDs = alertIDs(state.Alerts)
}

// shouldPrintStatus determines if we should print a status update
func (c *CLI) shouldPrintStatus(state client.Snapshot, d diag.Snapshot) bool {
	// Always print first status
	if !c.printed {
		return true
	}

	// Print if messages arrived
	if d.MessagesReceived != c.lastDiag.MessagesReceived {
		return true
	}

	// Print if there are errors
	if d.ErrorsTotal > c.lastDiag.ErrorsTotal {
		return true
	}

	// Print if connection status changed
	if state.ConnectionState != c.lastState.ConnectionState || state.Transport != c.lastState.Transport {
		return true
	}

	return alertIDs(state.Alerts) != c.lastAlertIDs
}

func alertIDs(alerts []store.AlertEntry) string {
	ids := make([]string, len(alerts))
	for i, a := range alerts {
		ids[i] = a.ID
	}
	return strings.Join(ids, ",")
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
