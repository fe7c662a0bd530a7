package cmd

import (
	"github.com/spf13/cobra"

	"github.com/airportmatch/nearestairport/internal/common/app"
	"github.com/airportmatch/nearestairport/internal/common/logging"
	"github.com/airportmatch/nearestairport/internal/ingester"
)

const (
	userStartFlag = "userRange.start"
	userEndFlag   = "userRange.end"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Runs a complete ingestion of the configured user range",
		RunE:  runIngestion,
	}
	cmd.Flags().Int64(userStartFlag, 0, "First user id to process, overrides the config file")
	cmd.Flags().Int64(userEndFlag, 0, "User id after the last one to process, overrides the config file")
	return cmd
}

func runIngestion(_ *cobra.Command, _ []string) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := app.CreateContextWithShutdown()
	if _, err := ingester.Run(ctx, config); err != nil {
		logging.WithStacktrace(ctx.Log, err).Error("Ingestion run failed")
		return err
	}
	return nil
}
