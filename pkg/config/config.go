package config

import (
	"os"
	"time"

	"solar-telemetry/pkg/backoff"
)

type Config struct {
	ChannelURL   string
	Transports   []string
	MQTTClientID string
	Reconnect    ReconnectConfig
	Store        StoreConfig
	Feed         FeedConfig

	// ConfigFile is the YAML file that was read, if any.
	ConfigFile  string
	ShowVersion bool
}

type ReconnectConfig struct {
	MaxAttempts int
	DelayMs     int
	Strategy    string
	MaxDelayMs  int
	Jitter      float64
}

type StoreConfig struct {
	RatedCapacityW float64
}

type FeedConfig struct {
	Addr                  string
	StatusIntervalSeconds int
}

// Load loads configuration from os.Args.
func Load() (*Config, error) {
	return LoadArgs(os.Args[1:])
}

// LoadArgs loads configuration from args, the environment (including a .env
// file) and an optional YAML file, in that order of precedence.
// It returns nil, nil when help was requested.
func LoadArgs(args []string) (*Config, error) {
	cli, err := parseCLIFlags(args)
	if err != nil {
		return nil, err
	}

	if cli.showHelp {
		printUsage(os.Stdout)
		return nil, nil // Return nil to indicate help was shown
	}
	if cli.showVersion {
		return &Config{ShowVersion: true}, nil
	}

	if err := loadDotEnv(cli.envFile); err != nil {
		return nil, err
	}
	fileSource, err := NewFileSource(cli.configFile)
	if err != nil {
		return nil, err
	}

	// Create resolver with precedence: CLI flags > Environment variables > Config file
	resolver := NewConfigResolver(cli.source, &EnvSource{}, fileSource)

	cfg := &Config{
		ChannelURL:   resolver.ResolveString(KeyChannelURL, ""),
		Transports:   resolver.ResolveList(KeyTransports, DefaultTransports),
		MQTTClientID: resolver.ResolveString(KeyMQTTClient, ""),
		Reconnect: ReconnectConfig{
			MaxAttempts: resolver.ResolveInt(KeyMaxReconnectAttempts, DefaultMaxReconnectAttempts),
			DelayMs:     resolver.ResolveInt(KeyReconnectDelayMs, DefaultReconnectDelayMs),
			Strategy:    resolver.ResolveString(KeyBackoffStrategy, DefaultBackoffStrategy),
			MaxDelayMs:  resolver.ResolveInt(KeyBackoffMaxDelayMs, DefaultBackoffMaxDelayMs),
			Jitter:      resolver.ResolveFloat(KeyBackoffJitter, DefaultBackoffJitter),
		},
		Store: StoreConfig{
			RatedCapacityW: resolver.ResolveFloat(KeyRatedCapacityW, DefaultRatedCapacityW),
		},
		Feed: FeedConfig{
			Addr:                  resolver.ResolveString(KeyFeedAddr, DefaultFeedAddr),
			StatusIntervalSeconds: resolver.ResolveInt(KeyStatusIntervalSeconds, DefaultStatusIntervalSeconds),
		},
		ConfigFile: fileSource.Used(),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Policy builds the reconnection policy the config describes.
func (c *Config) Policy() backoff.Policy {
	delay := time.Duration(c.Reconnect.DelayMs) * time.Millisecond
	if c.Reconnect.Strategy == StrategyExponential {
		maxDelay := time.Duration(c.Reconnect.MaxDelayMs) * time.Millisecond
		return backoff.NewExponential(c.Reconnect.MaxAttempts, delay, maxDelay, c.Reconnect.Jitter)
	}
	return backoff.Fixed{MaxAttempts: c.Reconnect.MaxAttempts, Delay: delay}
}

// StatusInterval is the period of the console status line.
func (c *Config) StatusInterval() time.Duration {
	return time.Duration(c.Feed.StatusIntervalSeconds) * time.Second
}
