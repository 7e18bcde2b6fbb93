package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/zeusync/multinet/internal/config"
	"github.com/zeusync/multinet/internal/core/observability/log"
)

type options struct {
	configPath string
	port       int
	transport  string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "multinet",
		Short:        "Lag-compensated value replication over WebSocket or QUIC",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Load configuration from YAML file")
	flags.IntVar(&opts.port, "port", 0, "Override server and client port")
	flags.StringVar(&opts.transport, "transport", "", "Override transport (websocket|quic)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Override log level (debug|info|warn|error)")

	root.AddCommand(newServeCmd(opts), newJoinCmd(opts))
	return root
}

// load reads the configuration, applies the flags that were set and builds
// the process logger.
func (o *options) load(flags *pflag.FlagSet) (*config.Config, *log.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}

	if flags.Changed("port") {
		cfg.OverridePort(o.port)
	}
	if flags.Changed("transport") {
		cfg.OverrideTransport(o.transport)
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}

	if err = cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := log.New(log.ParseLevel(cfg.Log.Level))
	logger.Info("Configuration loaded", log.String("config", cfg.String()))
	return cfg, logger, nil
}
