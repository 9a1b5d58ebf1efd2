package config

import (
	"fmt"
	"net/url"
	"strings"

	"solar-telemetry/pkg/connection"
	"solar-telemetry/pkg/transport"
)

func (c *Config) validate() error {
	if strings.TrimSpace(c.ChannelURL) == "" {
		return fmt.Errorf("%s is required: %w", KeyChannelURL, connection.ErrNoAddress)
	}
	u, err := url.Parse(c.ChannelURL)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", KeyChannelURL, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "ws", "wss", "mqtt", "mqtts", "tcp", "ssl":
	default:
		return fmt.Errorf("%s %q: %w", KeyChannelURL, c.ChannelURL, transport.ErrUnsupportedScheme)
	}

	if len(c.Transports) == 0 {
		return fmt.Errorf("%s must name at least one transport", KeyTransports)
	}
	for _, name := range c.Transports {
		switch name {
		case transport.NameWebSocket, transport.NamePolling, transport.NameMQTT:
		default:
			return fmt.Errorf("%s: unknown transport %q", KeyTransports, name)
		}
	}

	if c.Reconnect.MaxAttempts < 0 {
		return fmt.Errorf("%s must not be negative", KeyMaxReconnectAttempts)
	}
	if c.Reconnect.DelayMs <= 0 {
		return fmt.Errorf("%s must be positive", KeyReconnectDelayMs)
	}
	switch c.Reconnect.Strategy {
	case StrategyFixed:
	case StrategyExponential:
		if c.Reconnect.MaxDelayMs < c.Reconnect.DelayMs {
			return fmt.Errorf("%s must be at least %s", KeyBackoffMaxDelayMs, KeyReconnectDelayMs)
		}
	default:
		return fmt.Errorf("%s must be %q or %q", KeyBackoffStrategy, StrategyFixed, StrategyExponential)
	}
	if c.Reconnect.Jitter < 0 || c.Reconnect.Jitter > 1 {
		return fmt.Errorf("%s must be between 0 and 1", KeyBackoffJitter)
	}

	if c.Store.RatedCapacityW <= 0 {
		return fmt.Errorf("%s must be positive", KeyRatedCapacityW)
	}
	if c.Feed.StatusIntervalSeconds <= 0 {
		return fmt.Errorf("%s must be positive", KeyStatusIntervalSeconds)
	}
	return nil
}
