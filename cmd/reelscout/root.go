package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ahrav/go-reelscout/infrastructure/configfile"
	"github.com/ahrav/go-reelscout/internal/application"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	pretty     bool
	logLevel   string
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "reelscout",
		Short:         "Discover short travel videos for a destination",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().BoolVar(&flags.pretty, "pretty", false, "human-readable console logs")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level override (trace, debug, info, warn, error)")

	root.AddCommand(newSearchCommand(flags), newServeCommand(flags))
	return root
}

// newLogger builds the process logger writing to w.
func newLogger(w io.Writer, pretty bool, level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// bootstrap loads configuration and builds the logger it asks for.
func bootstrap(ctx context.Context, flags *globalFlags) (application.Config, zerolog.Logger, *configfile.Loader, error) {
	// Config errors are reported before the configured level is known.
	bootLog, err := newLogger(os.Stderr, flags.pretty, "info")
	if err != nil {
		return application.Config{}, zerolog.Nop(), nil, err
	}

	loader := configfile.New(flags.configPath, bootLog,
		configfile.WithPrepare(application.PrepareConfig),
		configfile.WithFactory(application.NewDefaultConfig),
	)
	cfg, err := application.LoadConfig(ctx, loader)
	if err != nil {
		bootLog.Error().Err(err).Str("path", flags.configPath).Msg("configuration rejected")
		return application.Config{}, zerolog.Nop(), nil, err
	}

	level := cfg.Observability.LogLevel
	if flags.logLevel != "" {
		level = flags.logLevel
	}
	logger, err := newLogger(os.Stderr, flags.pretty, level)
	if err != nil {
		return application.Config{}, zerolog.Nop(), nil, err
	}
	return cfg, logger, loader, nil
}
