package config

// Configuration key constants
// Keys double as environment variable names and, lower-cased, as config file keys.

const (
	// Channel configuration keys
	KeyChannelURL = "SOLAR_CHANNEL_URL"
	KeyTransports = "SOLAR_TRANSPORTS"
	KeyMQTTClient = "SOLAR_MQTT_CLIENT_ID"

	// Reconnect configuration keys
	KeyMaxReconnectAttempts = "SOLAR_MAX_RECONNECT_ATTEMPTS"
	KeyReconnectDelayMs     = "SOLAR_RECONNECT_DELAY_MS"
	KeyBackoffStrategy      = "SOLAR_BACKOFF_STRATEGY"
	KeyBackoffMaxDelayMs    = "SOLAR_BACKOFF_MAX_DELAY_MS"
	KeyBackoffJitter        = "SOLAR_BACKOFF_JITTER"

	// Derived state keys
	KeyRatedCapacityW = "SOLAR_RATED_CAPACITY_W"

	// Local surfaces
	KeyFeedAddr              = "FEED_ADDR"
	KeyStatusIntervalSeconds = "STATUS_INTERVAL_SECONDS"
)

// Backoff strategies
const (
	StrategyFixed       = "fixed"
	StrategyExponential = "exponential"
)

// Default values for configuration
const (
	DefaultTransports = "websocket,polling"

	DefaultMaxReconnectAttempts = 10
	DefaultReconnectDelayMs     = 1000
	DefaultBackoffStrategy      = StrategyFixed
	DefaultBackoffMaxDelayMs    = 30000
	DefaultBackoffJitter        = 0.2

	DefaultRatedCapacityW = 5000.0

	DefaultFeedAddr              = ":8090"
	DefaultStatusIntervalSeconds = 10
)

// CLI flag name constants
const (
	FlagChannelURL            = "channel-url"
	FlagTransports            = "transports"
	FlagMQTTClientID          = "mqtt-client-id"
	FlagMaxReconnectAttempts  = "max-reconnect-attempts"
	FlagReconnectDelayMs      = "reconnect-delay-ms"
	FlagBackoffStrategy       = "backoff-strategy"
	FlagBackoffMaxDelayMs     = "backoff-max-delay-ms"
	FlagBackoffJitter         = "backoff-jitter"
	FlagRatedCapacityW        = "rated-capacity-w"
	FlagFeedAddr              = "feed-addr"
	FlagStatusIntervalSeconds = "status-interval-seconds"
	FlagConfigFile            = "config"
	FlagEnvFile               = "env-file"
	FlagVersion               = "version"
	FlagHelp                  = "help"
)

// Help message constants
const (
	AppName        = "solarwatch"
	AppDescription = "Live solar telemetry client"
	UsageFormat    = "solarwatch [OPTIONS]"

	// Help descriptions
	HelpChannelURL            = "Backend channel URL, http(s)://, ws(s):// or mqtt(s):// (required)"
	HelpTransports            = "Comma-separated transports to try in order: websocket, polling, mqtt"
	HelpMQTTClientID          = "MQTT client id (default: solarwatch-<uuid>)"
	HelpMaxReconnectAttempts  = "Reconnect attempts before giving up"
	HelpReconnectDelayMs      = "Delay between reconnect attempts in milliseconds"
	HelpBackoffStrategy       = "Backoff strategy: fixed or exponential"
	HelpBackoffMaxDelayMs     = "Max delay for exponential backoff in milliseconds"
	HelpBackoffJitter         = "Jitter fraction for exponential backoff"
	HelpRatedCapacityW        = "Rated array capacity in watts"
	HelpFeedAddr              = "Listen address for the state feed"
	HelpStatusIntervalSeconds = "Seconds between status lines"
	HelpConfigFile            = "Path to a YAML config file"
	HelpEnvFile               = "Path to a .env file"
	HelpVersion               = "Print version and exit"
	HelpShowHelp              = "Show this help message"

	// Help section headers
	HelpOptions         = "Options:"
	HelpEnvironmentVars = "Environment Variables:"
	HelpUsage           = "Usage:"
	HelpNote            = "Note: CLI options override environment variables, which override the config file"
)

// envHelp lists the environment variables in help order.
var envHelp = []struct{ key, desc string }{
	{KeyChannelURL, HelpChannelURL},
	{KeyTransports, HelpTransports},
	{KeyMQTTClient, HelpMQTTClientID},
	{KeyMaxReconnectAttempts, HelpMaxReconnectAttempts},
	{KeyReconnectDelayMs, HelpReconnectDelayMs},
	{KeyBackoffStrategy, HelpBackoffStrategy},
	{KeyBackoffMaxDelayMs, HelpBackoffMaxDelayMs},
	{KeyBackoffJitter, HelpBackoffJitter},
	{KeyRatedCapacityW, HelpRatedCapacityW},
	{KeyFeedAddr, HelpFeedAddr},
	{KeyStatusIntervalSeconds, HelpStatusIntervalSeconds},
}
