package main

import (
	"encoding/json"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ahrav/go-reelscout/infrastructure/middleware"
	"github.com/ahrav/go-reelscout/internal/application"
)

func newSearchCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Print ranked results for a query as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, _, err := bootstrap(ctx, flags)
			if err != nil {
				return err
			}

			orchestrator, closer, err := application.Build(ctx, cfg, application.Deps{
				Logger:  logger,
				Metrics: middleware.NewPrometheusMetrics(prometheus.NewRegistry()),
			})
			if err != nil {
				return err
			}
			defer closer.Close()

			results := orchestrator.Search(ctx, strings.Join(args, " "))

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		},
	}
}
