package config

import (
	"flag"
	"fmt"
	"io"
)

// cliOptions is the result of parsing the command line.
type cliOptions struct {
	source      *FlagSource
	configFile  string
	envFile     string
	showHelp    bool
	showVersion bool
}

// parseCLIFlags parses args into a FlagSource holding only the flags that were
// set explicitly, so a zero on the command line still overrides other sources.
func parseCLIFlags(args []string) (*cliOptions, error) {
	fs := flag.NewFlagSet(AppName, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	channelURL := fs.String(FlagChannelURL, "", HelpChannelURL)
	transports := fs.String(FlagTransports, "", HelpTransports)
	mqttClientID := fs.String(FlagMQTTClientID, "", HelpMQTTClientID)
	maxReconnectAttempts := fs.Int(FlagMaxReconnectAttempts, 0, HelpMaxReconnectAttempts)
	reconnectDelayMs := fs.Int(FlagReconnectDelayMs, 0, HelpReconnectDelayMs)
	backoffStrategy := fs.String(FlagBackoffStrategy, "", HelpBackoffStrategy)
	backoffMaxDelayMs := fs.Int(FlagBackoffMaxDelayMs, 0, HelpBackoffMaxDelayMs)
	backoffJitter := fs.Float64(FlagBackoffJitter, 0, HelpBackoffJitter)
	ratedCapacityW := fs.Float64(FlagRatedCapacityW, 0, HelpRatedCapacityW)
	feedAddr := fs.String(FlagFeedAddr, "", HelpFeedAddr)
	statusIntervalSeconds := fs.Int(FlagStatusIntervalSeconds, 0, HelpStatusIntervalSeconds)
	configFile := fs.String(FlagConfigFile, "", HelpConfigFile)
	envFile := fs.String(FlagEnvFile, "", HelpEnvFile)
	version := fs.Bool(FlagVersion, false, HelpVersion)
	help := fs.Bool(FlagHelp, false, HelpShowHelp)

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return &cliOptions{source: NewFlagSource(), showHelp: true}, nil
		}
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	opts := &cliOptions{
		source:      NewFlagSource(),
		configFile:  *configFile,
		envFile:     *envFile,
		showHelp:    *help,
		showVersion: *version,
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case FlagChannelURL:
			opts.source.Set(KeyChannelURL, *channelURL)
		case FlagTransports:
			opts.source.Set(KeyTransports, *transports)
		case FlagMQTTClientID:
			opts.source.Set(KeyMQTTClient, *mqttClientID)
		case FlagMaxReconnectAttempts:
			opts.source.Set(KeyMaxReconnectAttempts, *maxReconnectAttempts)
		case FlagReconnectDelayMs:
			opts.source.Set(KeyReconnectDelayMs, *reconnectDelayMs)
		case FlagBackoffStrategy:
			opts.source.Set(KeyBackoffStrategy, *backoffStrategy)
		case FlagBackoffMaxDelayMs:
			opts.source.Set(KeyBackoffMaxDelayMs, *backoffMaxDelayMs)
		case FlagBackoffJitter:
			opts.source.Set(KeyBackoffJitter, *backoffJitter)
		case FlagRatedCapacityW:
			opts.source.Set(KeyRatedCapacityW, *ratedCapacityW)
		case FlagFeedAddr:
			opts.source.Set(KeyFeedAddr, *feedAddr)
		case FlagStatusIntervalSeconds:
			opts.source.Set(KeyStatusIntervalSeconds, *statusIntervalSeconds)
		}
	})

	return opts, nil
}

// printUsage prints the usage message
func printUsage(w io.Writer) {
	fmt.Fprintf(w, "%s - %s\n", AppName, AppDescription)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s\n", HelpUsage)
	fmt.Fprintf(w, "  %s\n", UsageFormat)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s\n", HelpOptions)
	fmt.Fprintf(w, "  --%-26s %s\n", FlagChannelURL+" string", HelpChannelURL)
	fmt.Fprintf(w, "  --%-26s %s (default: %s)\n", FlagTransports+" string", HelpTransports, DefaultTransports)
	fmt.Fprintf(w, "  --%-26s %s\n", FlagMQTTClientID+" string", HelpMQTTClientID)
	fmt.Fprintf(w, "  --%-26s %s (default: %d)\n", FlagMaxReconnectAttempts+" int", HelpMaxReconnectAttempts, DefaultMaxReconnectAttempts)
	fmt.Fprintf(w, "  --%-26s %s (default: %d)\n", FlagReconnectDelayMs+" int", HelpReconnectDelayMs, DefaultReconnectDelayMs)
	fmt.Fprintf(w, "  --%-26s %s (default: %s)\n", FlagBackoffStrategy+" string", HelpBackoffStrategy, DefaultBackoffStrategy)
	fmt.Fprintf(w, "  --%-26s %s (default: %d)\n", FlagBackoffMaxDelayMs+" int", HelpBackoffMaxDelayMs, DefaultBackoffMaxDelayMs)
	fmt.Fprintf(w, "  --%-26s %s (default: %.1f)\n", FlagBackoffJitter+" float", HelpBackoffJitter, DefaultBackoffJitter)
	fmt.Fprintf(w, "  --%-26s %s (default: %.0f)\n", FlagRatedCapacityW+" float", HelpRatedCapacityW, DefaultRatedCapacityW)
	fmt.Fprintf(w, "  --%-26s %s (default: %s)\n", FlagFeedAddr+" string", HelpFeedAddr, DefaultFeedAddr)
	fmt.Fprintf(w, "  --%-26s %s (default: %d)\n", FlagStatusIntervalSeconds+" int", HelpStatusIntervalSeconds, DefaultStatusIntervalSeconds)
	fmt.Fprintf(w, "  --%-26s %s\n", FlagConfigFile+" string", HelpConfigFile)
	fmt.Fprintf(w, "  --%-26s %s\n", FlagEnvFile+" string", HelpEnvFile)
	fmt.Fprintf(w, "  --%-26s %s\n", FlagVersion, HelpVersion)
	fmt.Fprintf(w, "  --%-26s %s\n", FlagHelp, HelpShowHelp)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s\n", HelpEnvironmentVars)
	for _, e := range envHelp {
		fmt.Fprintf(w, "  %-30s %s\n", e.key, e.desc)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s\n", HelpNote)
}
